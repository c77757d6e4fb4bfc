package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/gallery/internal/otel"
)

func TestDebugOverlayNilRing(t *testing.T) {
	result := debugOverlay(nil, 80, 24, time.Now())
	if result != "" {
		t.Errorf("debugOverlay(nil) should return empty string, got %q", result)
	}
}

func TestDebugOverlayRendersStats(t *testing.T) {
	now := time.Now()
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindMediaRequest, Time: now})
	ring.Push(otel.Event{Kind: otel.KindMediaRequest, Time: now})
	ring.Push(otel.Event{Kind: otel.KindMediaLoaded, Time: now})
	ring.Push(otel.Event{Kind: otel.KindPlaybackRegister, Time: now})
	ring.Push(otel.Event{Kind: otel.KindPlaybackEvict, Time: now})

	result := debugOverlay(ring, 80, 40, now)

	if !strings.Contains(result, "Pipeline Stats") {
		t.Error("overlay should contain 'Pipeline Stats' header")
	}
	if !strings.Contains(result, "2 requested, 1 loaded, 0 retried") {
		t.Errorf("overlay should show load stats, got:\n%s", result)
	}
	if !strings.Contains(result, "1 started, 1 evicted") {
		t.Errorf("overlay should show playback stats, got:\n%s", result)
	}
	if !strings.Contains(result, "5 / 64 events") {
		t.Errorf("overlay should show buffer stats, got:\n%s", result)
	}
}

func TestDebugOverlayRecentEvents(t *testing.T) {
	now := time.Now()
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindRepoLoad, Time: now, Msg: "hello world"})
	ring.Push(otel.Event{Kind: otel.KindMediaFailed, Time: now, Err: "timeout"})
	ring.Push(otel.Event{Kind: otel.KindMediaRetry, Time: now, Key: "chat:a1", Gen: 2})

	result := debugOverlay(ring, 80, 40, now)

	if !strings.Contains(result, "Recent Events") {
		t.Error("overlay should contain 'Recent Events' header")
	}
	if !strings.Contains(result, "hello world") {
		t.Errorf("overlay should show event message, got:\n%s", result)
	}
	if !strings.Contains(result, "ERR:timeout") {
		t.Errorf("overlay should show error, got:\n%s", result)
	}
	if !strings.Contains(result, "chat:a1 g2") {
		t.Errorf("overlay should show key and generation, got:\n%s", result)
	}
}

func TestDebugOverlayTruncation(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	for i := 0; i < 30; i++ {
		ring.Push(otel.Event{Kind: otel.KindMediaRequest, Time: time.Now()})
	}

	// Very small height should still render without panic
	result := debugOverlay(ring, 80, 10, time.Now())
	if result == "" {
		t.Error("overlay should still render with small height")
	}

	// With height=10, maxHeight=6 content lines plus border and padding
	if lines := strings.Count(result, "\n"); lines > 12 {
		t.Errorf("overlay should be truncated, got %d lines", lines)
	}
}

func TestDebugOverlayReadsAppRing(t *testing.T) {
	ring := otel.NewRingBuffer(16)
	ring.Push(otel.Event{Kind: otel.KindDiscloseGrow, Time: time.Now()})
	cfg := testConfig(newMock())
	cfg.Ring = ring

	app := sized(t, cfg, 100, 30)
	app = pump(t, app, key("D"))
	if !strings.Contains(app.View(), "1 grown") {
		t.Errorf("debug view should render the ring, got:\n%s", app.View())
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{0, "0ms"},
		{50 * time.Millisecond, "50ms"},
		{999 * time.Millisecond, "999ms"},
		{1500 * time.Millisecond, "1.5s"},
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "2m"}, // 1.5 minutes rounds to 2 with %.0f
		{5 * time.Minute, "5m"},
	}
	for _, tt := range tests {
		got := formatAge(tt.dur)
		if got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.dur, got, tt.want)
		}
	}
}

func TestFormatAgeNegative(t *testing.T) {
	got := formatAge(-5 * time.Second)
	if got != "0ms" {
		t.Errorf("formatAge(-5s) = %q, want \"0ms\"", got)
	}
}
