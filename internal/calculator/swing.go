package calculator

import "FuturesBacktest/internal/model"

// SwingFlags flags strict local extremes over a 3-bar window.
// A bar is a swing low iff its low is below both neighbours' lows, and a swing high
// iff its high is above both neighbours' highs. First and last bars are never flagged.
func SwingFlags(bars []model.Bar) []model.SwingFlag {
	flags := make([]model.SwingFlag, len(bars))
	for i := 1; i < len(bars)-1; i++ {
		prev, cur, next := bars[i-1], bars[i], bars[i+1]
		flags[i] = model.SwingFlag{
			SwingLow:  cur.Low < prev.Low && cur.Low < next.Low,
			SwingHigh: cur.High > prev.High && cur.High > next.High,
		}
	}
	return flags
}

// LastSwingHigh returns the high of the most recent swing high in bars.
func LastSwingHigh(bars []model.Bar) (float64, bool) {
	flags := SwingFlags(bars)
	for i := len(flags) - 1; i >= 0; i-- {
		if flags[i].SwingHigh {
			return bars[i].High, true
		}
	}
	return 0, false
}

// LastSwingLow returns the low of the most recent swing low in bars.
func LastSwingLow(bars []model.Bar) (float64, bool) {
	flags := SwingFlags(bars)
	for i := len(flags) - 1; i >= 0; i-- {
		if flags[i].SwingLow {
			return bars[i].Low, true
		}
	}
	return 0, false
}

// SwingMarkers lists swing points for chart overlays: highs at the bar high, lows at the bar low.
func SwingMarkers(s *model.PriceSeries) []model.SwingMarker {
	var out []model.SwingMarker
	for i, f := range SwingFlags(s.Bars) {
		b := s.Bars[i]
		if f.SwingLow {
			out = append(out, model.SwingMarker{Time: b.Time, Price: b.Low})
		}
		if f.SwingHigh {
			out = append(out, model.SwingMarker{Time: b.Time, Price: b.High, High: true})
		}
	}
	return out
}
