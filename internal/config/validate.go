package config

import (
	"errors"
	"fmt"

	"github.com/abelbrown/gallery/internal/visibility"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDisclosure(); err != nil {
		return err
	}
	if err := c.validateLoading(); err != nil {
		return err
	}
	if err := c.validateVisibility(); err != nil {
		return err
	}
	if err := c.validateMasonry(); err != nil {
		return err
	}
	if err := c.validateProbe(); err != nil {
		return err
	}
	if c.Playback.Capacity <= 0 {
		return errors.New("playback.capacity must be positive")
	}
	if c.Repository.ReloadSeconds < 0 {
		return errors.New("repository.reload_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDisclosure() error {
	d := c.Disclosure
	if err := ensurePositive(map[string]int{
		"disclosure.floor":   d.Floor,
		"disclosure.initial": d.Initial,
		"disclosure.step":    d.Step,
	}); err != nil {
		return err
	}
	if d.Initial < d.Floor {
		return errors.New("disclosure.initial must be >= disclosure.floor")
	}
	if d.SettleMS < 0 {
		return errors.New("disclosure.settle_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLoading() error {
	return ensurePositive(map[string]int{
		"loading.max_attempts":     c.Loading.MaxAttempts,
		"loading.retry_backoff_ms": c.Loading.RetryBackoffMS,
		"loading.video_timeout_ms": c.Loading.VideoTimeoutMS,
		"loading.concurrency":      c.Loading.Concurrency,
	})
}

func (c *Config) validateVisibility() error {
	if c.Visibility.Threshold < 0 || c.Visibility.Threshold > 1 {
		return errors.New("visibility.threshold must be between 0 and 1")
	}
	if _, err := visibility.ParseMargin(c.Visibility.RootMargin); err != nil {
		return fmt.Errorf("visibility.root_margin: %w", err)
	}
	return nil
}

func (c *Config) validateMasonry() error {
	if c.Masonry.Base < 0 || c.Masonry.PerRune < 0 {
		return errors.New("masonry.base and masonry.per_rune must be >= 0")
	}
	for i, bp := range c.Masonry.Breakpoints {
		if bp.Columns <= 0 {
			return fmt.Errorf("masonry.breakpoints[%d].columns must be positive", i)
		}
	}
	return nil
}

func (c *Config) validateProbe() error {
	if c.Probe.RangeBytes <= 0 {
		return errors.New("probe.range_bytes must be positive")
	}
	if c.Probe.RequestsPerSecond <= 0 {
		return errors.New("probe.requests_per_second must be positive")
	}
	if c.Probe.Burst <= 0 {
		return errors.New("probe.burst must be positive")
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return errors.New("probe.timeout_seconds must be positive")
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
