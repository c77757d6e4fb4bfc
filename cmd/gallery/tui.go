package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/gallery/internal/config"
	"github.com/abelbrown/gallery/internal/coord"
	"github.com/abelbrown/gallery/internal/logging"
	"github.com/abelbrown/gallery/internal/media"
	"github.com/abelbrown/gallery/internal/otel"
	"github.com/abelbrown/gallery/internal/probe"
	"github.com/abelbrown/gallery/internal/store"
	"github.com/abelbrown/gallery/internal/ui"
)

// runTUI wires the repository, prober and coordinator into the Bubble Tea
// program and blocks until the user quits.
func runTUI(cmd *cobra.Command, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if err := logging.Init(cfg.Paths.LogDir); err != nil {
		return err
	}
	defer logging.Close()

	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events, err := otel.OpenFile(cfg.Paths.EventLog)
	if err != nil {
		logging.Warn("event log unavailable, continuing without it", "error", err)
		events = otel.NewNullLogger()
	}
	events.SetRingBuffer(ring)
	defer events.Close()
	events.Info(otel.KindStartup, "main", "gallery "+logging.Version)

	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		events.Error(otel.KindError, "main", err)
		return wrapOpenError(err, cfg.Paths.Database)
	}
	defer st.Close()

	prober := probe.New(probe.Config{
		RangeBytes:        cfg.Probe.RangeBytes,
		RequestsPerSecond: cfg.Probe.RequestsPerSecond,
		Burst:             cfg.Probe.Burst,
		Timeout:           cfg.ProbeTimeout(),
		UserAgent:         cfg.Probe.UserAgent,
	}, nil)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	co := coord.New(st, prober, coord.Options{
		Concurrency:    cfg.Loading.Concurrency,
		ProbeTimeout:   cfg.ProbeTimeout(),
		ReloadInterval: cfg.ReloadInterval(),
	}, events)

	app := ui.NewApp(ui.AppConfig{
		Classifier: cfg.Classifier(),
		Disclosure: cfg.DisclosureConfig(),
		Loading:    cfg.LoadConfig(),
		Load:       co.Load,

		Reload: func() tea.Cmd { return co.Reload(ctx) },
		Delete: func(item media.Item) tea.Cmd {
			return func() tea.Msg {
				return ui.ActionDone{Action: ui.ActionDelete, Key: item.Key(), Err: st.Delete(ctx, item)}
			}
		},
		Rename: func(item media.Item, name string) tea.Cmd {
			return func() tea.Msg {
				err := st.Rename(ctx, item, strings.TrimSpace(name))
				return ui.ActionDone{Action: ui.ActionRename, Key: item.Key(), Err: err}
			}
		},
		ToggleVisibility: func(item media.Item) tea.Cmd {
			return func() tea.Msg {
				_, err := st.ToggleVisibility(ctx, item.ProjectID)
				return ui.ActionDone{Action: ui.ActionToggle, Key: item.Key(), Err: err}
			}
		},

		PlaybackCapacity: cfg.Playback.Capacity,
		Visibility:       cfg.VisibilityOptions(),
		Estimator:        cfg.Estimator(),
		Breakpoints:      cfg.Breakpoints(),

		Events: events,
		Ring:   ring,
	})

	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	co.Start(ctx, program)

	_, runErr := program.Run()
	interrupted := ctx.Err() != nil

	// Graceful shutdown
	cancel()
	co.Wait()
	events.Info(otel.KindShutdown, "main", "gallery stopped")

	if runErr != nil && !interrupted {
		logging.Error("program exited", "error", runErr)
		return fmt.Errorf("run gallery: %w", runErr)
	}
	return nil
}
