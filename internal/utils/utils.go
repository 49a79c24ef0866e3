package utils

import (
	"context"
	"strings"
	"time"
)

var sleep = time.Sleep

func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Range is a half-open interval [Start, End) of slice indexes.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indexes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Shards splits n items into at most parts contiguous ranges. Earlier ranges
// receive the remainder, so for two parts the first one holds ceil(n/2) items.
// Empty ranges are never returned.
func Shards(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}

	size := n / parts
	rest := n % parts

	ranges := make([]Range, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rest {
			end++
		}
		ranges = append(ranges, Range{Start: start, End: end})
		start = end
	}

	return ranges
}
