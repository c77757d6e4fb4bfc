package otel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Filter selects events when reading a log back.
type Filter struct {
	Kind  string // prefix match on Kind, e.g. "media" or "media.failed"
	Key   string // exact item key
	Level Level
}

func (f Filter) match(e Event) bool {
	if f.Kind != "" && !strings.HasPrefix(string(e.Kind), f.Kind) {
		return false
	}
	if f.Key != "" && e.Key != f.Key {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	return true
}

// Read parses JSONL events from r, keeping those accepted by f. Blank lines
// are skipped; a malformed line is an error naming its line number.
func Read(r io.Reader, f Filter) ([]Event, error) {
	var out []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return out, fmt.Errorf("event log line %d: %w", line, err)
		}
		if f.match(e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read event log: %w", err)
	}
	return out, nil
}
