package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FuturesBacktest/internal/backtest"
	"FuturesBacktest/internal/broker"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/performance"
)

func sampleResult(symbol string) *backtest.Result {
	t0 := time.Date(2025, 4, 1, 13, 30, 0, 0, time.UTC)
	l := broker.NewLedger(decimal.NewFromInt(50000))
	l.RecordEquity(t0, 100)
	l.Buy(t0.Add(5*time.Minute), 104, 1)
	l.Sell(t0.Add(5*time.Minute), 110, 1)
	l.RecordEquity(t0.Add(5*time.Minute), 104)
	l.RecordEquity(t0.Add(10*time.Minute), 108)

	req := backtest.Request{
		Symbol: symbol, Start: t0, End: t0.Add(24 * time.Hour),
		Interval: model.Interval5m, StartingCash: l.StartingCash(),
	}
	res := &backtest.Result{
		Request:      req,
		EquityCurve:  l.EquityCurve(),
		Fills:        l.Fills(),
		StartingCash: l.StartingCash(),
		Phase:        model.PhaseDone,
	}
	res.Summary = performance.Summarize(res.Fills, res.EquityCurve, res.StartingCash)
	return res
}

func openTemp(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_RecordRun(t *testing.T) {
	r := openTemp(t)
	run := NewRun("cli", sampleResult("ES=F"))
	require.NoError(t, r.RecordRun(run))

	runs, err := r.Recent("ES=F", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "cli", got.Trigger)
	assert.Equal(t, "5m", got.Interval)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "6", got.NetPL)
	assert.Equal(t, 1, got.TotalTrades)
	assert.Equal(t, 100.0, got.WinRate)
	assert.Equal(t, "done", got.Phase)
	assert.Equal(t, 2, got.Fills)

	eq, err := r.EquityPoints(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"50000", "50006", "50006"}, eq)
}

func TestSQLiteRecorder_RecordFailureAndFilter(t *testing.T) {
	r := openTemp(t)
	require.NoError(t, r.RecordRun(NewRun("schedule", sampleResult("ES=F"))))
	req := backtest.Request{Symbol: "NQ=F", Interval: model.Interval1m}
	require.NoError(t, r.RecordFailure(NewFailure("schedule", req, errors.New("no data for NQ=F"))))

	all, err := r.Recent("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	nq, err := r.Recent("NQ=F", 10)
	require.NoError(t, err)
	require.Len(t, nq, 1)
	assert.Equal(t, "error", nq[0].Status)
	assert.Equal(t, "no data for NQ=F", nq[0].Error)
	assert.Equal(t, 0, nq[0].Fills)
}

func TestNewRun_UniqueIDs(t *testing.T) {
	res := sampleResult("ES=F")
	a, b := NewRun("cli", res), NewRun("cli", res)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordRun(NewRun("cli", sampleResult("ES=F"))))
	assert.NoError(t, r.Close())
}
