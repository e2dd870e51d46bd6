package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// FromMs converts a millisecond count to a Duration.
func FromMs[T ~uint16 | ~uint32 | ~int | ~int64](ms T) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
