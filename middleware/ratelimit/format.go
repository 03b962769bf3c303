package ratelimit

import (
	"strconv"
	"time"
)

// formatação dos valores numéricos dos headers, sem passar por fmt

func formatInt(v int) string { return strconv.Itoa(v) }

func formatUnix(t time.Time) string {
	// arredonda para cima: o cliente nunca deve ver um reset no passado
	secs := t.Unix()
	if t.Nanosecond() > 0 {
		secs++
	}
	return strconv.FormatInt(secs, 10)
}

func formatSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
