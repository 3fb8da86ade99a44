package model

import "time"

// SwingFlag marks a strict 3-bar local extreme.
type SwingFlag struct {
	SwingLow  bool
	SwingHigh bool
}

// GapFlag annotates bar i with the fair-value-gap test against bar i-2.
// Valid is false for the first two bars of a series.
type GapFlag struct {
	HighLag2 float64
	LowLag2  float64
	Valid    bool
	Bull     bool
	Bear     bool
}

// GapKind selects bullish or bearish gaps.
type GapKind string

const (
	GapBull GapKind = "bull"
	GapBear GapKind = "bear"
)

// Zone is a closed price interval with Low <= High.
type Zone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Confirmation is the zone left by a gap together with the price a close must break to enter.
// Trigger is always the gap bar's own low: a buy needs a close above it, a sell a close below it.
type Confirmation struct {
	Zone    Zone    `json:"zone"`
	Trigger float64 `json:"trigger"`
}

// GapZone is a fair value gap drawn from bar i-2 to bar i.
type GapZone struct {
	Kind  GapKind   `json:"kind"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Zone  Zone      `json:"zone"`
	Index int       `json:"index"`
}

// SwingMarker is a swing point for chart overlays.
type SwingMarker struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
	High  bool      `json:"high"`
}

// Phase is the state of the sweep/FVG strategy.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseWaitSweep Phase = "wait_sweep"
	PhaseEnterFVG  Phase = "enter_fvg"
	PhaseDone      Phase = "done"
)

// Direction is the trade direction chosen after a liquidity sweep.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)
