package progress

import (
	"fmt"
	"log/slog"
	"time"
)

// Log returns a Func that logs upload progress for a body of total bytes.
// A total of zero or less logs only the percentage and elapsed time.
func Log(logger *slog.Logger, msg string, total int64) Func {
	start := time.Now()

	return func(percent float64) {
		elapsed := time.Since(start)

		attrs := []any{
			"progress", fmt.Sprintf("%.1f%%", percent),
			"elapsed", elapsed.Round(time.Millisecond),
		}
		if total <= 0 {
			logger.Info(msg, attrs...)
			return
		}

		transferred := int64(float64(total) * percent / 100)
		attrs = append(attrs, "transferred", transferred, "total", total)
		if secs := elapsed.Seconds(); secs > 0 {
			attrs = append(attrs, "mbps", fmt.Sprintf("%.2f", float64(transferred)/secs/(1024*1024)))
		}

		logger.Info(msg, attrs...)
	}
}
