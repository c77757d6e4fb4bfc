package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/abelbrown/gallery/internal/catalog"
	"github.com/abelbrown/gallery/internal/disclose"
	"github.com/abelbrown/gallery/internal/loadstate"
	"github.com/abelbrown/gallery/internal/masonry"
	"github.com/abelbrown/gallery/internal/playback"
	"github.com/abelbrown/gallery/internal/visibility"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds on-disk locations. Empty values resolve under DataDir.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	Database string `toml:"database"`
	LogDir   string `toml:"log_dir"`
	EventLog string `toml:"event_log"`
}

// Repository tunes how often the collection is reloaded.
type Repository struct {
	ReloadSeconds int `toml:"reload_seconds"` // 0 disables periodic reload
}

// Disclosure tunes progressive disclosure.
type Disclosure struct {
	Floor    int `toml:"floor"`
	Initial  int `toml:"initial"`
	Step     int `toml:"step"`
	SettleMS int `toml:"settle_ms"`
}

// Loading tunes the per-item retry ladder.
type Loading struct {
	MaxAttempts    int `toml:"max_attempts"`
	RetryBackoffMS int `toml:"retry_backoff_ms"`
	VideoTimeoutMS int `toml:"video_timeout_ms"`
	Concurrency    int `toml:"concurrency"` // probes in flight
}

// Playback bounds simultaneously playing videos.
type Playback struct {
	Capacity int `toml:"capacity"`
}

// Visibility configures the lazy-load and sentinel observers.
type Visibility struct {
	Threshold  float64 `toml:"threshold"`
	RootMargin string  `toml:"root_margin"`
}

// Breakpoint maps a terminal width to a masonry column count.
type Breakpoint struct {
	MinWidth int `toml:"min_width"`
	Columns  int `toml:"columns"`
}

// Masonry configures the discovery layout height estimate.
type Masonry struct {
	Base        float64      `toml:"base"`
	PerRune     float64      `toml:"per_rune"`
	Breakpoints []Breakpoint `toml:"breakpoints"`
}

// Classify holds storage-path markers for the AI and uploads categories.
type Classify struct {
	AIMarkers     []string `toml:"ai_markers"`
	UploadMarkers []string `toml:"upload_markers"`
}

// Probe configures remote media sniffing.
type Probe struct {
	RangeBytes        int     `toml:"range_bytes"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	UserAgent         string  `toml:"user_agent"`
}

// Config is the persistent application configuration.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Repository Repository `toml:"repository"`
	Disclosure Disclosure `toml:"disclosure"`
	Loading    Loading    `toml:"loading"`
	Playback   Playback   `toml:"playback"`
	Visibility Visibility `toml:"visibility"`
	Masonry    Masonry    `toml:"masonry"`
	Classify   Classify   `toml:"classify"`
	Probe      Probe      `toml:"probe"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	bps := make([]Breakpoint, 0, len(masonry.DefaultBreakpoints))
	for _, bp := range masonry.DefaultBreakpoints {
		bps = append(bps, Breakpoint{MinWidth: bp.MinWidth, Columns: bp.Columns})
	}
	return &Config{
		Paths: Paths{
			DataDir: "~/.gallery",
		},
		Repository: Repository{
			ReloadSeconds: 60,
		},
		Disclosure: Disclosure{
			Floor:    disclose.DefaultFloor,
			Initial:  disclose.DefaultInitial,
			Step:     disclose.DefaultStep,
			SettleMS: int(disclose.DefaultSettle / time.Millisecond),
		},
		Loading: Loading{
			MaxAttempts:    loadstate.DefaultMaxAttempts,
			RetryBackoffMS: int(loadstate.DefaultBackoff / time.Millisecond),
			VideoTimeoutMS: int(loadstate.DefaultTimeout / time.Millisecond),
			Concurrency:    6,
		},
		Playback: Playback{
			Capacity: playback.DefaultCapacity,
		},
		Visibility: Visibility{
			Threshold:  visibility.DefaultThreshold,
			RootMargin: visibility.DefaultRootMargin,
		},
		Masonry: Masonry{
			Base:        masonry.DefaultEstimator.Base,
			PerRune:     masonry.DefaultEstimator.PerRune,
			Breakpoints: bps,
		},
		Classify: Classify{
			AIMarkers:     append([]string(nil), catalog.DefaultAIMarkers...),
			UploadMarkers: append([]string(nil), catalog.DefaultUploadMarkers...),
		},
		Probe: Probe{
			RangeBytes:        64 * 1024,
			RequestsPerSecond: 8,
			Burst:             4,
			TimeoutSeconds:    10,
			UserAgent:         "gallery/0.1",
		},
	}
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gallery", "config.toml")
}

// Load reads path (ConfigPath when empty), applies environment overrides,
// resolves paths and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Array tables append to a non-nil slice.
		defaultBreakpoints := cfg.Masonry.Breakpoints
		cfg.Masonry.Breakpoints = nil
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.Masonry.Breakpoints == nil {
			cfg.Masonry.Breakpoints = defaultBreakpoints
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as TOML to path (ConfigPath when empty).
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("GALLERY_DATA_DIR"); ok && strings.TrimSpace(v) != "" {
		c.Paths.DataDir = v
	}
	if v, ok := os.LookupEnv("GALLERY_DB"); ok && strings.TrimSpace(v) != "" {
		c.Paths.Database = v
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	defaults := map[*string]string{
		&c.Paths.Database: filepath.Join(c.Paths.DataDir, "gallery.db"),
		&c.Paths.LogDir:   filepath.Join(c.Paths.DataDir, "logs"),
		&c.Paths.EventLog: filepath.Join(c.Paths.DataDir, "events.jsonl"),
	}
	for field, def := range defaults {
		if strings.TrimSpace(*field) == "" {
			*field = def
			continue
		}
		if *field == ":memory:" {
			continue
		}
		if *field, err = ExpandPath(*field); err != nil {
			return err
		}
	}
	c.Visibility.RootMargin = strings.TrimSpace(c.Visibility.RootMargin)
	return nil
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DisclosureConfig converts the [disclosure] section.
func (c *Config) DisclosureConfig() disclose.Config {
	return disclose.Config{
		Floor:   c.Disclosure.Floor,
		Initial: c.Disclosure.Initial,
		Step:    c.Disclosure.Step,
		Settle:  time.Duration(c.Disclosure.SettleMS) * time.Millisecond,
	}
}

// LoadConfig converts the [loading] section.
func (c *Config) LoadConfig() loadstate.Config {
	return loadstate.Config{
		MaxAttempts: c.Loading.MaxAttempts,
		Backoff:     time.Duration(c.Loading.RetryBackoffMS) * time.Millisecond,
		Timeout:     time.Duration(c.Loading.VideoTimeoutMS) * time.Millisecond,
	}
}

// VisibilityOptions returns observer options for lazy tiles.
func (c *Config) VisibilityOptions() visibility.Options {
	return visibility.Options{
		Threshold:  c.Visibility.Threshold,
		RootMargin: c.Visibility.RootMargin,
	}
}

// Estimator returns the masonry height estimator.
func (c *Config) Estimator() masonry.Estimator {
	return masonry.Estimator{Base: c.Masonry.Base, PerRune: c.Masonry.PerRune}
}

// Breakpoints returns the masonry width breakpoints.
func (c *Config) Breakpoints() []masonry.Breakpoint {
	out := make([]masonry.Breakpoint, 0, len(c.Masonry.Breakpoints))
	for _, bp := range c.Masonry.Breakpoints {
		out = append(out, masonry.Breakpoint{MinWidth: bp.MinWidth, Columns: bp.Columns})
	}
	return out
}

// Classifier returns the category classifier.
func (c *Config) Classifier() catalog.Classifier {
	return catalog.Classifier{AIMarkers: c.Classify.AIMarkers, UploadMarkers: c.Classify.UploadMarkers}
}

// ReloadInterval returns the periodic reload interval, zero when disabled.
func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.Repository.ReloadSeconds) * time.Second
}

// ProbeTimeout returns the per-request probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}
