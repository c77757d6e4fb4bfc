// Package probe confirms that a media URL serves decodable content by
// reading its first bytes. A probe stands in for "first frame decoded":
// it never downloads the whole resource.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"github.com/abelbrown/gallery/internal/media"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, throttling,
	// server errors and dropped connections.
	ErrTransient = errors.New("probe: transient failure")
	// ErrMismatch means the content is not the kind of media the item claims.
	ErrMismatch = errors.New("probe: content does not match file type")
	// ErrCorrupt means the header could not be decoded.
	ErrCorrupt = errors.New("probe: corrupt media header")
)

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Result describes a successful probe.
type Result struct {
	URL      string
	MIME     string
	FileType media.FileType
	Width    int // images only, 0 when the format has no registered decoder
	Height   int
	Bytes    int // bytes read
	Dur      time.Duration
}

// Config tunes a Prober.
type Config struct {
	RangeBytes        int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	UserAgent         string
}

// DefaultConfig returns a 64KiB range, 8 req/s with a burst of 4 and a 10s timeout.
func DefaultConfig() Config {
	return Config{
		RangeBytes:        64 * 1024,
		RequestsPerSecond: 8,
		Burst:             4,
		Timeout:           10 * time.Second,
		UserAgent:         "gallery/0.1",
	}
}

// Prober sniffs remote or local media. Goroutine-safe.
type Prober struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a Prober. A nil client uses one with cfg.Timeout.
func New(cfg Config, client *http.Client) *Prober {
	def := DefaultConfig()
	if cfg.RangeBytes <= 0 {
		cfg.RangeBytes = def.RangeBytes
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Prober{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Probe reads the head of rawURL and checks it against want. An empty want
// accepts any media type. Local paths and file:// URLs bypass the limiter.
func (p *Prober) Probe(ctx context.Context, rawURL string, want media.FileType) (Result, error) {
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if media.IsEphemeralURL(rawURL) {
		return Result{}, fmt.Errorf("probe %s: ephemeral address", rawURL)
	}

	start := time.Now()
	var head []byte
	var err error
	if path, local := localPath(rawURL); local {
		head, err = readFileHead(path, p.cfg.RangeBytes)
	} else {
		if err := p.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		head, err = p.fetchHead(ctx, rawURL)
	}
	if err != nil {
		return Result{}, err
	}

	res, err := sniff(head, want, len(head) >= p.cfg.RangeBytes)
	res.URL = rawURL
	res.Bytes = len(head)
	res.Dur = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("probe %s: %w", rawURL, err)
	}
	return res, nil
}

func (p *Prober) fetchHead(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.cfg.RangeBytes-1))

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch %s: %w: %v", rawURL, ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, int64(p.cfg.RangeBytes)))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read %s: %w: %v", rawURL, ErrTransient, err)
		}
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", rawURL)
	}
	return head, nil
}

// classifyStatus maps an HTTP status to nil, ErrTransient or a permanent error.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK || code == http.StatusPartialContent:
		return nil
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("HTTP %d: %w", code, ErrTransient)
	default:
		return fmt.Errorf("HTTP %d %s", code, http.StatusText(code))
	}
}

// sniff detects the content type of head and checks it against want. clipped
// reports that head stops at the range limit rather than at the end of the
// resource.
func sniff(head []byte, want media.FileType, clipped bool) (Result, error) {
	mt := mimetype.Detect(head)
	res := Result{MIME: mt.String()}

	ft, ok := media.ParseFileType(mt.String())
	if !ok {
		return res, fmt.Errorf("%w: sniffed %s", ErrMismatch, mt.String())
	}
	res.FileType = ft
	if want != "" && !compatible(want, ft) {
		return res, fmt.Errorf("%w: want %s, sniffed %s", ErrMismatch, want, mt.String())
	}

	if ft == media.FileImage {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
		switch {
		case err == nil:
			res.Width, res.Height = cfg.Width, cfg.Height
		case errors.Is(err, image.ErrFormat):
			// No registered decoder (avif, svg); the sniff is enough.
		case clipped && errors.Is(err, io.ErrUnexpectedEOF):
			// Header runs past the range (large JPEG APP segments).
		default:
			return res, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return res, nil
}

// compatible treats audio and video as interchangeable: containers like
// webm or ogg sniff as either depending on their first track.
func compatible(want, got media.FileType) bool {
	if want == got {
		return true
	}
	timed := func(f media.FileType) bool { return f == media.FileVideo || f == media.FileAudio }
	return timed(want) && timed(got)
}

// localPath reports whether rawURL names a file on disk.
func localPath(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, "/") || strings.HasPrefix(rawURL, "./") {
		return filepath.Clean(rawURL), true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

func readFileHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	head, err := io.ReadAll(io.LimitReader(f, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("read %s: empty file", path)
	}
	return head, nil
}
