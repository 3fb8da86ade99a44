package collector

import (
	"time"

	"FuturesBacktest/internal/model"
)

// bucketStart aligns t down to the interval grid of its day in loc.
func bucketStart(t time.Time, interval model.Interval, loc *time.Location) time.Time {
	lt := t.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	d := interval.Duration()
	if d <= 0 || d >= 24*time.Hour {
		return day
	}
	return day.Add(lt.Sub(day) / d * d)
}

// Resample aggregates sorted finer bars into interval buckets aligned to midnight in loc.
// Each bucket opens with its first bar, closes with its last, and sums volume.
func Resample(bars []model.Bar, interval model.Interval, loc *time.Location) []model.Bar {
	if len(bars) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	var out []model.Bar
	var cur model.Bar
	var started bool

	for _, b := range bars {
		key := bucketStart(b.Time, interval, loc)
		if !started {
			cur = model.Bar{Time: key, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			started = true
			continue
		}
		if !key.Equal(cur.Time) {
			out = append(out, cur)
			cur = model.Bar{Time: key, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}
