package calculator

import (
	"math"

	"FuturesBacktest/internal/model"
)

// FVGFlags annotates every bar with the fair-value-gap test against the bar two places earlier.
// Bullish at i iff High[i-2] < Low[i]; bearish iff Low[i-2] > High[i].
// The first two bars carry Valid=false and no gap.
func FVGFlags(bars []model.Bar) []model.GapFlag {
	flags := make([]model.GapFlag, len(bars))
	for i := 2; i < len(bars); i++ {
		h2, l2 := bars[i-2].High, bars[i-2].Low
		flags[i] = model.GapFlag{
			HighLag2: h2,
			LowLag2:  l2,
			Valid:    true,
			Bull:     h2 < bars[i].Low,
			Bear:     l2 > bars[i].High,
		}
	}
	return flags
}

// LastGap returns the index of the most recent gap of the given kind at or before upto, or -1.
func LastGap(flags []model.GapFlag, kind model.GapKind, upto int) int {
	if upto >= len(flags) {
		upto = len(flags) - 1
	}
	for i := upto; i >= 0; i-- {
		f := flags[i]
		if (kind == model.GapBull && f.Bull) || (kind == model.GapBear && f.Bear) {
			return i
		}
	}
	return -1
}

// ConfirmationZone is the zone between the gap bar's low and the opposite bound two bars back:
// [HighLag2, Low(i)] for a bullish gap, [Low(i), LowLag2] for a bearish one. The trigger is Low(i)
// in both cases.
func ConfirmationZone(bars []model.Bar, flags []model.GapFlag, i int) model.Confirmation {
	f := flags[i]
	a := bars[i].Low
	b := f.HighLag2
	if f.Bear {
		b = f.LowLag2
	}
	return model.Confirmation{
		Zone:    model.Zone{Low: math.Min(a, b), High: math.Max(a, b)},
		Trigger: a,
	}
}

// GapZones lists every gap as a rectangle from bar i-2 to bar i, for chart overlays.
// The rectangle is the imbalance itself ([HighLag2, Low(i)] bullish, [High(i), LowLag2] bearish),
// which for a bearish gap is narrower than its ConfirmationZone.
func GapZones(s *model.PriceSeries) []model.GapZone {
	var out []model.GapZone
	flags := FVGFlags(s.Bars)
	for i, f := range flags {
		if f.Bull {
			out = append(out, model.GapZone{
				Kind: model.GapBull, From: s.Bars[i-2].Time, To: s.Bars[i].Time, Index: i,
				Zone: model.Zone{Low: f.HighLag2, High: s.Bars[i].Low},
			})
		}
		if f.Bear {
			out = append(out, model.GapZone{
				Kind: model.GapBear, From: s.Bars[i-2].Time, To: s.Bars[i].Time, Index: i,
				Zone: model.Zone{Low: s.Bars[i].High, High: f.LowLag2},
			})
		}
	}
	return out
}
