package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is an order direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Fill is an executed trade. Size is a positive unit count.
type Fill struct {
	Time  time.Time       `json:"timestamp"`
	Side  Side            `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
}

// EquityPoint is one mark-to-market sample, taken after the strategy acted on a bar.
// Equity == Cash + Position*Mark.
type EquityPoint struct {
	Time     time.Time       `json:"timestamp"`
	Cash     decimal.Decimal `json:"cash"`
	Position int64           `json:"position"`
	Mark     decimal.Decimal `json:"mark"`
	Equity   decimal.Decimal `json:"equity"`
}

// Summary is the performance snapshot reported for a run.
type Summary struct {
	StartBalance  decimal.Decimal `json:"start_balance"`
	EndBalance    decimal.Decimal `json:"end_balance"`
	NetPL         decimal.Decimal `json:"net_pl"`
	TotalTrades   int             `json:"total_trades"`
	Wins          int             `json:"wins"`
	WinRate       float64         `json:"win_rate"`
	UnpairedSells int             `json:"unpaired_sells"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown"`
}
