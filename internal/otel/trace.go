package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is read on every UI message; atomic so tests can flip it.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("GALLERY_TRACE") != "")
}

// TraceEnabled reports whether GALLERY_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
