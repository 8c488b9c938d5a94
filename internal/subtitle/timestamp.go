package subtitle

import (
	"fmt"
	"time"
)

// FormatTimestamp renders d as HH:MM:SS,mmm. Sub-millisecond precision is
// truncated and negative durations clamp to zero.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	seconds := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms%1000)
}

// SecondsToDuration converts fractional seconds, as reported by ffprobe, to a duration.
func SecondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
