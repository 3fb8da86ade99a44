package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FuturesBacktest/internal/backtest"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/recorder"
)

type fakeTelegram struct {
	mu       sync.Mutex
	failures int
	sent     []map[string]string
}

func (f *fakeTelegram) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failures > 0 {
				f.failures--
				http.Error(w, `{"ok":false}`, http.StatusTooManyRequests)
				return
			}
			var p map[string]string
			_ = json.NewDecoder(r.Body).Decode(&p)
			f.sent = append(f.sent, p)
			_, _ = w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":7,"message":{"text":" /last "}},
				{"update_id":8,"message":null}
			]}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", zerolog.Nop())
	n.APIBase = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func TestTelegramNotifier_Send(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake)
	require.NoError(t, n.Send(context.Background(), "hello"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "42", fake.sent[0]["chat_id"])
	assert.Equal(t, "hello", fake.sent[0]["text"])
	assert.Equal(t, "HTML", fake.sent[0]["parse_mode"])
}

func TestTelegramNotifier_RetriesThenSucceeds(t *testing.T) {
	fake := &fakeTelegram{failures: 2}
	n := newTestNotifier(t, fake)
	require.NoError(t, n.Notify(context.Background(), "report"))
	assert.Len(t, fake.sent, 1)
}

func TestTelegramNotifier_RetriesExhausted(t *testing.T) {
	fake := &fakeTelegram{failures: 10}
	n := newTestNotifier(t, fake)
	err := n.SendWithRetry(context.Background(), "report", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retries exhausted")
	assert.Contains(t, err.Error(), "status 429")
}

func TestTelegramNotifier_PollDispatchesCommands(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake)

	var got []string
	next, err := n.poll(context.Background(), n.Client, 0, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "reply to " + cmd
	})
	require.NoError(t, err)
	assert.Equal(t, 9, next)
	assert.Equal(t, []string{"/last"}, got)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "reply to /last", fake.sent[0]["text"])
}

func sampleResult() *backtest.Result {
	ts := time.Date(2025, 4, 1, 6, 40, 0, 0, time.UTC)
	fills := []model.Fill{
		{Time: ts, Side: model.Buy, Price: decimal.NewFromInt(104), Size: 1},
		{Time: ts, Side: model.Sell, Price: decimal.NewFromInt(110), Size: 1},
	}
	return &backtest.Result{
		Request: backtest.Request{
			Symbol: "ES=F", Interval: model.Interval5m,
			Start: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC),
		},
		Fills: fills,
		Summary: model.Summary{
			StartBalance: decimal.NewFromInt(50000), EndBalance: decimal.NewFromInt(50006),
			NetPL: decimal.NewFromInt(6), TotalTrades: 1, Wins: 1, WinRate: 100,
		},
		Phase: model.PhaseDone,
	}
}

func TestFormatRunReport(t *testing.T) {
	msg := FormatRunReport(sampleResult())
	assert.Contains(t, msg, "Backtest ES=F")
	assert.Contains(t, msg, "2025-04-01 → 2025-04-18")
	assert.Contains(t, msg, "Net P/L: +6.00")
	assert.Contains(t, msg, "Trades: 1 | Win%: 100.0%")
	assert.Contains(t, msg, "SELL 1 @ 110.00 (+6.00)")
	assert.Contains(t, msg, "Strategy phase: done")
	assert.NotContains(t, msg, "no open buy")
}

func TestFormatFailureAndRecent(t *testing.T) {
	req := backtest.Request{Symbol: "NQ=F", Interval: model.Interval1m}
	assert.Contains(t, FormatFailure(req, errors.New("no data")), "Backtest NQ=F</b> | 1m failed: no data")

	assert.Equal(t, "No runs recorded yet.", FormatRecent(nil))
	out := FormatRecent([]recorder.RunSummary{
		{RanAt: time.Date(2025, 4, 2, 14, 30, 0, 0, time.UTC), Symbol: "ES=F", Interval: "5m", Status: "ok", NetPL: "6", TotalTrades: 1, Phase: "done"},
		{RanAt: time.Date(2025, 4, 2, 14, 30, 0, 0, time.UTC), Symbol: "NQ=F", Interval: "5m", Status: "error", Error: "no data"},
	})
	assert.Contains(t, out, "ES=F 5m P/L 6, 1 trades, done")
	assert.Contains(t, out, "NQ=F 5m ❌ no data")
}
