package tsgate

import (
	"strconv"
	"strings"
	"time"
)

// Timestamps cross the store as float seconds since epoch, the format the
// event schema exposes to consumers.

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func formatUnixFloat(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 6, 64)
}

func parseUnixFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func timeFromUnixFloat(ts float64) time.Time {
	return time.Unix(0, int64(ts*1e9))
}
