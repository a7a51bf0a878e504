package extract

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/punzip/internal"
	"golang.org/x/time/rate"
)

// newProgress returns the writer that receives every decompressed chunk.
//
// With --progress it is a progress bar; otherwise it logs the running total
// at most once every 5 seconds. Either way the writer must be safe for
// concurrent use because several files are usually being extracted at once.
func (c *Command) newProgress(ctx context.Context, total uint64) io.WriteCloser {
	if c.Progress {
		return internal.DefaultBytes(int64(total), internal.MustPrefix(ctx)+"extracting")
	}

	return &throttledLogger{
		logger:    internal.MustLogger(ctx),
		total:     total,
		sometimes: rate.Sometimes{Interval: 5 * time.Second},
	}
}

type throttledLogger struct {
	logger    *log.Logger
	total     uint64
	written   atomic.Uint64
	sometimes rate.Sometimes
}

func (t *throttledLogger) Write(p []byte) (int, error) {
	n := t.written.Add(uint64(len(p)))
	t.sometimes.Do(func() {
		t.logger.Printf("extracted %s/%s so far", humanize.Bytes(n), humanize.Bytes(t.total))
	})
	return len(p), nil
}

func (t *throttledLogger) Close() error {
	return nil
}
