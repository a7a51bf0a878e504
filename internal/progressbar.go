package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// DefaultBytes is equivalent to progressbar.DefaultBytes but writes to stderr and renders at most once per second,
// which reads better when several extraction workers feed the bar concurrently.
func DefaultBytes(maxBytes int64, description string, options ...progressbar.Option) *progressbar.ProgressBar {
	return progressbar.NewOptions64(maxBytes,
		append([]progressbar.Option{
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(time.Second),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true)},
			options...)...)
}
