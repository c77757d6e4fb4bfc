// Package disclose reveals a growing prefix of the sorted projection as the
// user scrolls toward the end of it.
package disclose

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	DefaultFloor   = 30
	DefaultInitial = 40
	DefaultStep    = 30
	DefaultSettle  = 300 * time.Millisecond
)

// Config holds the disclosure tuning knobs.
type Config struct {
	Floor   int           // prefix length after a filter reset
	Initial int           // prefix length on first render
	Step    int           // growth per request
	Settle  time.Duration // delay before growth lands
}

// DefaultConfig returns the standard 40/30/30/300ms configuration.
func DefaultConfig() Config {
	return Config{
		Floor:   DefaultFloor,
		Initial: DefaultInitial,
		Step:    DefaultStep,
		Settle:  DefaultSettle,
	}
}

// GrowMsg is delivered after the settle delay of an accepted request.
type GrowMsg struct {
	Epoch int
}

// Controller tracks the visible prefix length and the loading gate.
//
// Only RequestMore sets the gate and only Grow clears it. Reset changes the
// epoch so that a growth scheduled before the reset does not extend the
// freshly reset prefix.
type Controller struct {
	cfg     Config
	visible int
	loading bool
	epoch   int
}

// New creates a Controller. Zero counts in cfg fall back to the defaults;
// a zero Settle delivers growth without a delay.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.Floor <= 0 {
		cfg.Floor = def.Floor
	}
	if cfg.Initial <= 0 {
		cfg.Initial = def.Initial
	}
	if cfg.Initial < cfg.Floor {
		cfg.Initial = cfg.Floor
	}
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	return &Controller{cfg: cfg, visible: cfg.Initial}
}

// VisibleCount returns the raw prefix length (may exceed total).
func (c *Controller) VisibleCount() int { return c.visible }

// Loading reports whether a growth request is in flight.
func (c *Controller) Loading() bool { return c.loading }

// Epoch identifies the current reset generation.
func (c *Controller) Epoch() int { return c.epoch }

// HasMore reports whether items remain beyond the visible prefix.
func (c *Controller) HasMore(total int) bool {
	return c.visible < total
}

// Window returns how many of total items should be rendered.
func (c *Controller) Window(total int) int {
	if c.visible < total {
		return c.visible
	}
	return total
}

// RequestMore asks for the next step. It returns nil when a request is
// already in flight or everything is visible; otherwise it sets the gate and
// returns a command that delivers GrowMsg after the settle delay.
func (c *Controller) RequestMore(total int) tea.Cmd {
	if c.loading || c.visible >= total {
		return nil
	}
	c.loading = true
	epoch := c.epoch
	if c.cfg.Settle == 0 {
		return func() tea.Msg { return GrowMsg{Epoch: epoch} }
	}
	return tea.Tick(c.cfg.Settle, func(time.Time) tea.Msg {
		return GrowMsg{Epoch: epoch}
	})
}

// Grow applies a settled request and clears the gate. Growth from an earlier
// epoch only clears the gate. Returns true when the prefix changed.
func (c *Controller) Grow(msg GrowMsg, total int) bool {
	c.loading = false
	if msg.Epoch != c.epoch {
		return false
	}
	before := c.visible
	next := c.visible + c.cfg.Step
	if next > total {
		next = total
	}
	if next > c.visible {
		c.visible = next
	}
	return c.visible != before
}

// Reset drops the prefix back to the floor. Called whenever the category or
// query changes, regardless of the gate.
func (c *Controller) Reset() {
	c.visible = c.cfg.Floor
	c.epoch++
}
