package model

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a bar sampling frequency.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Intervals lists every supported interval, finest first.
var Intervals = []Interval{Interval1m, Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d}

func (iv Interval) String() string { return string(iv) }

// ParseInterval normalises user input such as "5m", "M5" or "60m".
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1m", "m1":
		return Interval1m, nil
	case "5m", "m5":
		return Interval5m, nil
	case "15m", "m15":
		return Interval15m, nil
	case "30m", "m30":
		return Interval30m, nil
	case "1h", "h1", "60m":
		return Interval1h, nil
	case "4h", "h4":
		return Interval4h, nil
	case "1d", "d1", "day":
		return Interval1d, nil
	default:
		return "", fmt.Errorf("unsupported interval %q", s)
	}
}

func (iv Interval) Duration() time.Duration {
	switch iv {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// IsIntraday reports whether bars are sampled more often than once a day.
func (iv Interval) IsIntraday() bool {
	d := iv.Duration()
	return d > 0 && d < 24*time.Hour
}
