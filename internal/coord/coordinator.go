// Package coord runs the background work behind the gallery UI: probing
// media for the load state machine and reloading the repository.
package coord

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/gallery/internal/loadstate"
	"github.com/abelbrown/gallery/internal/logging"
	"github.com/abelbrown/gallery/internal/media"
	"github.com/abelbrown/gallery/internal/otel"
	"github.com/abelbrown/gallery/internal/probe"
	"github.com/abelbrown/gallery/internal/ui"
)

const (
	defaultConcurrency  = 6
	defaultProbeTimeout = 10 * time.Second
	defaultQueueSize    = 256
)

// prober interface for dependency injection (testing).
type prober interface {
	Probe(ctx context.Context, url string, want media.FileType) (probe.Result, error)
}

// lister is the read side of the media repository.
type lister interface {
	List(ctx context.Context) (media.Sources, error)
}

// sender delivers messages to the running program. *tea.Program satisfies it.
type sender interface {
	Send(msg tea.Msg)
}

// Options tunes a Coordinator. Zero values take defaults; a zero
// ReloadInterval loads once at start and never again.
type Options struct {
	Concurrency    int
	ProbeTimeout   time.Duration
	ReloadInterval time.Duration
	QueueSize      int
}

type job struct {
	ticket loadstate.Ticket
	item   media.Item
}

// Coordinator manages background probing and reloading.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	repo   lister
	prober prober
	events *otel.Logger // optional
	opts   Options

	jobs      chan job
	quit      chan struct{}
	startOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Coordinator. events may be nil.
func New(repo lister, p prober, opts Options, events *otel.Logger) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Coordinator{
		repo:   repo,
		prober: p,
		events: events,
		opts:   opts,
		jobs:   make(chan job, opts.QueueSize),
		quit:   make(chan struct{}),
	}
}

// Start begins background work. Call with a cancellable context. The
// repository is loaded immediately, then every ReloadInterval.
func (c *Coordinator) Start(ctx context.Context, program sender) {
	c.startOnce.Do(func() {
		c.wg.Add(3)
		go func() {
			defer c.wg.Done()
			<-ctx.Done()
			close(c.quit)
		}()
		go func() {
			defer c.wg.Done()
			c.reloadLoop(ctx, program)
		}()
		go func() {
			defer c.wg.Done()
			c.probeLoop(ctx, program)
		}()
	})
}

// Wait blocks until the background goroutines exit.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Load is a loadstate.LoadFunc. The returned command queues a probe and
// produces no message itself; the result arrives through the program.
func (c *Coordinator) Load(ticket loadstate.Ticket, item media.Item) tea.Cmd {
	return func() tea.Msg {
		c.Submit(ticket, item)
		return nil
	}
}

// Submit queues a probe, blocking while the queue is full. Returns false
// once the coordinator has stopped.
func (c *Coordinator) Submit(ticket loadstate.Ticket, item media.Item) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.jobs <- job{ticket: ticket, item: item}:
		return true
	case <-c.quit:
		return false
	}
}

// Reload returns a command that lists the repository once. The UI uses it
// after an action to pull the authoritative collection.
func (c *Coordinator) Reload(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		return c.list(ctx)
	}
}

func (c *Coordinator) list(ctx context.Context) ui.SourcesLoaded {
	start := time.Now()
	src, err := c.repo.List(ctx)
	if err != nil {
		logging.Error("repository list failed", "error", err)
		if c.events != nil {
			c.events.Error(otel.KindRepoError, "coord", err)
		}
		return ui.SourcesLoaded{Err: err}
	}
	if c.events != nil {
		c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRepoLoad, Comp: "coord",
			Count: src.Len(), Dur: time.Since(start)})
	}
	return ui.SourcesLoaded{Sources: src}
}

func (c *Coordinator) reloadLoop(ctx context.Context, program sender) {
	c.send(ctx, program, c.list(ctx))
	if c.opts.ReloadInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.opts.ReloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.send(ctx, program, c.list(ctx))
		}
	}
}

// probeLoop drains the queue with at most Concurrency probes in flight.
func (c *Coordinator) probeLoop(ctx context.Context, program sender) {
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-c.jobs:
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				c.probe(ctx, j, program)
				return nil // never fail the group - errors reported per item
			})
		}
	}
}

// probe runs one job and reports the outcome to the load tracker.
func (c *Coordinator) probe(ctx context.Context, j job, program sender) {
	pctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	res, err := c.prober.Probe(pctx, j.item.URL, j.item.FileType)
	if ctx.Err() != nil {
		return
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(probe.ErrTransient, err)
	}

	if c.events != nil {
		ev := otel.Event{Level: otel.LevelDebug, Kind: otel.KindMediaProbe, Comp: "coord",
			Key: j.ticket.Key, Gen: j.ticket.Generation, URL: j.item.URL, Dur: res.Dur, Count: res.Bytes}
		if err != nil {
			ev.Level = otel.LevelWarn
			ev.Err = err.Error()
		}
		c.events.Emit(ev)
	}

	if err != nil {
		logging.Debug("probe failed", "key", j.ticket.Key, "gen", j.ticket.Generation, "transient", probe.IsTransient(err), "error", err)
		c.send(ctx, program, loadstate.DecodeErrorMsg{Ticket: j.ticket, Err: err})
		return
	}
	c.send(ctx, program, loadstate.DecodedMsg{Ticket: j.ticket})
}

// send handles a nil program gracefully for testing.
func (c *Coordinator) send(ctx context.Context, program sender, msg tea.Msg) {
	if program == nil || ctx.Err() != nil {
		return
	}
	program.Send(msg)
}
