package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/gallery/internal/otel"
)

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level otel.Level) int {
	switch level {
	case otel.LevelInfo:
		return 1
	case otel.LevelWarn:
		return 2
	case otel.LevelError:
		return 3
	default:
		return 0
	}
}

type eventsOptions struct {
	tail    int
	follow  bool
	kind    string
	key     string
	level   string
	comp    string
	rawJSON bool
	file    string
}

func (o eventsOptions) match(e otel.Event) bool {
	if o.level != "" && levelRank(e.Level) < levelRank(otel.Level(o.level)) {
		return false
	}
	if o.comp != "" && e.Comp != o.comp {
		return false
	}
	return true
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var opts eventsOptions

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the JSONL event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.file
			if path == "" {
				path = ctx.configValue().Paths.EventLog
			}
			return runEvents(cmd, path, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.tail, "tail", "n", 50, "Number of recent events to show (0 for all)")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Keep printing new events")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "Filter by event kind prefix (e.g. 'media' or 'playback.evict')")
	cmd.Flags().StringVar(&opts.key, "key", "", "Filter by media item key")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.comp, "comp", "", "Filter by component name")
	cmd.Flags().BoolVar(&opts.rawJSON, "json", false, "Output JSON lines")
	cmd.Flags().StringVar(&opts.file, "file", "", "Event log path (defaults to paths.event_log)")
	return cmd
}

func runEvents(cmd *cobra.Command, path string, opts eventsOptions) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("event log not found at %s; run the gallery first to generate events", path)
		}
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	filter := otel.Filter{Kind: opts.kind, Key: opts.key}
	all, err := otel.Read(f, filter)
	if err != nil {
		return err
	}
	var events []otel.Event
	for _, e := range all {
		if opts.match(e) {
			events = append(events, e)
		}
	}
	if opts.tail > 0 && len(events) > opts.tail {
		events = events[len(events)-opts.tail:]
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if err := printEvent(out, e, opts.rawJSON); err != nil {
			return err
		}
	}
	if !opts.follow {
		return nil
	}

	// Follow mode: poll for appended lines until interrupted.
	reader := bufio.NewReader(f)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var partial []byte
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			partial = append(partial, line...)
			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("follow event log: %w", err)
		}
		line = append(partial, line...)
		partial = nil

		var e otel.Event
		if json.Unmarshal(line, &e) != nil {
			continue
		}
		if matchKind(filter, e) && opts.match(e) {
			if err := printEvent(out, e, opts.rawJSON); err != nil {
				return err
			}
		}
	}
}

func matchKind(f otel.Filter, e otel.Event) bool {
	if f.Kind != "" && !strings.HasPrefix(string(e.Kind), f.Kind) {
		return false
	}
	return f.Key == "" || e.Key == f.Key
}

func printEvent(w io.Writer, e otel.Event, rawJSON bool) error {
	if rawJSON {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintln(w, formatEvent(e))
	return err
}

func formatEvent(e otel.Event) string {
	ts := e.Time.Format("15:04:05.000")
	lvl := strings.ToUpper(string(e.Level))
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-5s] %-20s", ts, lvl, e.Comp, e.Kind)}

	if e.Key != "" {
		parts = append(parts, e.Key)
	}
	if e.Gen > 0 {
		parts = append(parts, fmt.Sprintf("g%d", e.Gen))
	}
	if e.From != "" || e.To != "" {
		parts = append(parts, e.From+"→"+e.To)
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	if e.Msg != "" {
		parts = append(parts, "- "+e.Msg)
	}
	if e.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(e.DurMs), e.DurMs))
	}
	if e.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", e.Count))
	}
	if e.Err != "" {
		parts = append(parts, "err="+e.Err)
	}
	return strings.Join(parts, " ")
}

// durPrecision picks decimal places so small durations stay readable.
func durPrecision(ms float64) int {
	switch {
	case ms < 1:
		return 2
	case ms < 10:
		return 1
	default:
		return 0
	}
}
