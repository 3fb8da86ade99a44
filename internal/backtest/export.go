package backtest

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"FuturesBacktest/internal/calculator"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/performance"
)

// TradeRow is one line of the trade table.
type TradeRow struct {
	Time     time.Time       `json:"timestamp"`
	Side     model.Side      `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Size     int64           `json:"size"`
	PnL      decimal.Decimal `json:"pnl"`
	Unpaired bool            `json:"unpaired,omitempty"`
}

// Trades lists the fills with their FIFO P&L.
func (r *Result) Trades() []TradeRow {
	pairs := performance.PairFIFO(r.Fills)
	rows := make([]TradeRow, len(pairs))
	for i, p := range pairs {
		rows[i] = TradeRow{
			Time:     p.Fill.Time,
			Side:     p.Fill.Side,
			Price:    p.Fill.Price,
			Size:     p.Fill.Size,
			PnL:      p.PnL,
			Unpaired: p.Unpaired,
		}
	}
	return rows
}

// WriteCSV writes the trade table with a header row.
func WriteCSV(w io.Writer, rows []TradeRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "side", "price", "size", "pnl"}); err != nil {
		return err
	}
	for _, t := range rows {
		if err := cw.Write([]string{
			t.Time.Format(time.RFC3339),
			string(t.Side),
			t.Price.String(),
			strconv.FormatInt(t.Size, 10),
			t.PnL.String(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the trade table to path.
func WriteCSVFile(path string, rows []TradeRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Report is the JSON document a UI consumes: summary, trades, equity and chart overlays.
type Report struct {
	Request      Request             `json:"request"`
	Summary      model.Summary       `json:"summary"`
	Phase        model.Phase         `json:"phase,omitempty"`
	Trades       []TradeRow          `json:"trades"`
	Equity       []model.EquityPoint `json:"equity"`
	GapZones     []model.GapZone     `json:"gap_zones"`
	SwingMarkers []model.SwingMarker `json:"swing_markers"`
}

// NewReport assembles the report, computing overlays on the primary series.
func NewReport(r *Result) Report {
	rep := Report{
		Request: r.Request,
		Summary: r.Summary,
		Phase:   r.Phase,
		Trades:  r.Trades(),
		Equity:  r.EquityCurve,
	}
	if r.Primary != nil {
		rep.GapZones = calculator.GapZones(r.Primary)
		rep.SwingMarkers = calculator.SwingMarkers(r.Primary)
	}
	return rep
}

// WriteJSON encodes the report for r as indented JSON.
func WriteJSON(w io.Writer, r *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(r))
}
