package llm

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StreamBody wraps an upstream SSE body. Chunks pass through opaquely; the
// gateway never buffers or reframes them. The first Read that yields data
// records time-to-first-byte against the request start and logs it once;
// for an adopted speculative call the start is the speculative launch, so
// TTFT reflects true wall-clock latency.
type StreamBody struct {
	rc       io.ReadCloser
	provider string
	status   int
	start    time.Time
	logger   *zap.Logger
	once     sync.Once
}

// NewStreamBody wraps an upstream response body for passthrough streaming.
func NewStreamBody(rc io.ReadCloser, provider string, status int, start time.Time, logger *zap.Logger) *StreamBody {
	return &StreamBody{
		rc:       rc,
		provider: provider,
		status:   status,
		start:    start,
		logger:   logger,
	}
}

func (b *StreamBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.once.Do(func() {
			b.logger.Info("Provider response",
				zap.String("provider", b.provider),
				zap.Int("status", b.status),
				zap.Int64("ttft_ms", time.Since(b.start).Milliseconds()),
				zap.Bool("stream", true),
			)
		})
	}
	return n, err
}

// Close releases the upstream connection. Closing before the stream is
// drained signals cancellation to the backend.
func (b *StreamBody) Close() error {
	return b.rc.Close()
}
