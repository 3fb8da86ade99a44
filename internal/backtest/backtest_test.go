package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FuturesBacktest/internal/broker"
	"FuturesBacktest/internal/collector"
	"FuturesBacktest/internal/logger"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/strategy"
)

var la, _ = time.LoadLocation("America/Los_Angeles")

func at(day int, hhmm string) time.Time {
	t, _ := time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("2025-04-%02d %s", day, hhmm), la)
	return t
}

func ohlc(ts time.Time, o, h, l, c float64) model.Bar {
	return model.Bar{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: 100}
}

// sweepFixture: swing high 106 and swing low 98 before 06:30, a sweep of 98 at 06:35,
// a bearish 1m gap with zone [101, 103] and a 104 close by 06:40.
func sweepFixture() *collector.StaticSource {
	return &collector.StaticSource{Bars: map[model.Interval][]model.Bar{
		model.Interval5m: {
			ohlc(at(1, "06:00"), 102, 104, 101, 102),
			ohlc(at(1, "06:05"), 102, 106, 101.5, 103),
			ohlc(at(1, "06:10"), 103, 105, 100, 101),
			ohlc(at(1, "06:15"), 101, 103, 98, 100),
			ohlc(at(1, "06:20"), 100, 102, 99, 101),
			ohlc(at(1, "06:25"), 101, 103, 100, 102),
			ohlc(at(1, "06:30"), 102, 103, 100, 101),
			ohlc(at(1, "06:35"), 101, 102, 97, 99),
			ohlc(at(1, "06:40"), 103, 105, 103, 104),
			ohlc(at(1, "06:45"), 104, 109, 103, 108),
			ohlc(at(1, "06:50"), 108, 111, 107, 110),
		},
		model.Interval1m: {
			ohlc(at(1, "06:30"), 104, 105, 103, 103.5),
			ohlc(at(1, "06:31"), 103, 103.5, 102, 102.5),
			ohlc(at(1, "06:32"), 102, 102, 101, 101.5),
			ohlc(at(1, "06:33"), 101.5, 102.5, 101, 102),
			ohlc(at(1, "06:40"), 102, 104.5, 102, 104),
		},
	}}
}

func sweepFactory(t *testing.T) strategy.Factory {
	t.Helper()
	f, err := strategy.Lookup(strategy.SweepFVGName, strategy.DefaultParams())
	require.NoError(t, err)
	return f
}

func request() Request {
	return Request{
		Symbol:       "ES=F",
		Start:        at(1, "00:00"),
		End:          at(2, "00:00"),
		Interval:     model.Interval5m,
		StartingCash: decimal.NewFromInt(50000),
	}
}

func TestRun_SweepBuyEndToEnd(t *testing.T) {
	p := collector.NewProvider(sweepFixture(), la, zerolog.Nop())
	res, err := Run(context.Background(), p, request(), sweepFactory(t))
	require.NoError(t, err)

	assert.Equal(t, model.PhaseDone, res.Phase)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, model.Buy, res.Fills[0].Side)
	assert.True(t, res.Fills[0].Price.Equal(decimal.NewFromInt(104)))
	assert.Equal(t, model.Sell, res.Fills[1].Side)
	assert.True(t, res.Fills[1].Price.Equal(decimal.NewFromInt(110)))

	require.Len(t, res.EquityCurve, res.Primary.Len())
	for i, pt := range res.EquityCurve {
		assert.True(t, pt.Time.Equal(res.Primary.Bars[i].Time))
		assert.True(t, pt.Equity.Equal(pt.Cash.Add(pt.Mark.Mul(decimal.NewFromInt(pt.Position)))))
	}

	s := res.Summary
	assert.True(t, s.StartBalance.Equal(decimal.NewFromInt(50000)))
	assert.True(t, s.EndBalance.Equal(decimal.NewFromInt(50006)))
	assert.True(t, s.NetPL.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 100.0, s.WinRate)
	assert.Equal(t, 0, s.UnpairedSells)
}

func TestRun_NoDataIsReturnedUnwrapped(t *testing.T) {
	p := collector.NewProvider(&collector.StaticSource{}, la, zerolog.Nop())
	_, err := Run(context.Background(), p, request(), sweepFactory(t))
	require.Error(t, err)
	nd, ok := err.(*collector.NoDataError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, "ES=F", nd.Symbol)
}

// sellFirst sells one unit on the first bar without holding anything.
type sellFirst struct{ done bool }

func (s *sellFirst) OnStart(context.Context, strategy.Env, *model.PriceSeries, *broker.Ledger) error {
	return nil
}

func (s *sellFirst) OnBar(ts time.Time, bar model.Bar, l *broker.Ledger) {
	if !s.done {
		l.Sell(ts, bar.Close, 1)
		s.done = true
	}
}

func TestRun_UnpairedSellIsWarnedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.NewWithWriter(&buf, "debug").WithContext(context.Background())

	p := collector.NewProvider(sweepFixture(), la, zerolog.Nop())
	res, err := Run(ctx, p, request(), func() strategy.Strategy { return &sellFirst{} })
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.UnpairedSells)
	assert.Equal(t, 0, res.Summary.TotalTrades)
	assert.Equal(t, model.Phase(""), res.Phase)
	assert.Contains(t, buf.String(), `"unpaired_sells":1`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

type failingStart struct{}

func (failingStart) OnStart(context.Context, strategy.Env, *model.PriceSeries, *broker.Ledger) error {
	return errors.New("no secondary data")
}
func (failingStart) OnBar(time.Time, model.Bar, *broker.Ledger) {}

func TestRun_StrategyStartError(t *testing.T) {
	p := collector.NewProvider(sweepFixture(), la, zerolog.Nop())
	_, err := Run(context.Background(), p, request(), func() strategy.Strategy { return failingStart{} })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start strategy")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := collector.NewProvider(sweepFixture(), la, zerolog.Nop())
	_, err := Run(ctx, p, request(), func() strategy.Strategy { return &sellFirst{} })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExport_CSVAndJSON(t *testing.T) {
	p := collector.NewProvider(sweepFixture(), la, zerolog.Nop())
	res, err := Run(context.Background(), p, request(), sweepFactory(t))
	require.NoError(t, err)

	rows := res.Trades()
	require.Len(t, rows, 2)
	assert.True(t, rows[0].PnL.IsZero())
	assert.True(t, rows[1].PnL.Equal(decimal.NewFromInt(6)))

	var csvBuf bytes.Buffer
	require.NoError(t, WriteCSV(&csvBuf, rows))
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,side,price,size,pnl", lines[0])
	assert.Equal(t, "2025-04-01T06:40:00-07:00,SELL,110,1,6", lines[2])

	var jsonBuf bytes.Buffer
	require.NoError(t, WriteJSON(&jsonBuf, res))
	var rep struct {
		Summary struct {
			TotalTrades int    `json:"total_trades"`
			NetPL       string `json:"net_pl"`
		} `json:"summary"`
		Phase        string            `json:"phase"`
		Trades       []json.RawMessage `json:"trades"`
		SwingMarkers []struct {
			Price float64 `json:"price"`
			High  bool    `json:"high"`
		} `json:"swing_markers"`
	}
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &rep))
	assert.Equal(t, 1, rep.Summary.TotalTrades)
	assert.Equal(t, "6", rep.Summary.NetPL)
	assert.Equal(t, "done", rep.Phase)
	assert.Len(t, rep.Trades, 2)
	assert.NotEmpty(t, rep.SwingMarkers)
}
