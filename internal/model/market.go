package model

import (
	"sort"
	"time"
)

// Bar represents a single OHLCV candlestick.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is the time-indexed bar table for one (symbol, interval) pair.
// Bars are strictly increasing by Time with no duplicates.
type PriceSeries struct {
	Symbol   string
	Interval Interval
	Location *time.Location
	Bars     []Bar
}

func (s *PriceSeries) Len() int { return len(s.Bars) }

// Times returns the bar timestamps in order.
func (s *PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Time
	}
	return out
}

// IndexAtOrBefore returns the index of the latest bar with Time <= t, or -1.
func (s *PriceSeries) IndexAtOrBefore(t time.Time) int {
	// first bar strictly after t
	i := sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Time.After(t) })
	return i - 1
}

// AtOrBefore is the as-of lookup: the latest bar with Time <= t.
func (s *PriceSeries) AtOrBefore(t time.Time) (Bar, bool) {
	i := s.IndexAtOrBefore(t)
	if i < 0 {
		return Bar{}, false
	}
	return s.Bars[i], true
}

// Before returns the bars strictly before t. The slice aliases the series.
func (s *PriceSeries) Before(t time.Time) []Bar {
	i := sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Time.Before(t) })
	return s.Bars[:i]
}

func (s *PriceSeries) First() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[0], true
}

func (s *PriceSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}
