package notifier

import (
	"fmt"
	"strings"

	"FuturesBacktest/internal/backtest"
	"FuturesBacktest/internal/recorder"
)

// FormatRunReport formats a finished backtest into a Telegram message.
func FormatRunReport(res *backtest.Result) string {
	var b strings.Builder
	req := res.Request
	s := res.Summary

	b.WriteString(fmt.Sprintf("📊 <b>Backtest %s</b> | %s\n", req.Symbol, req.Interval))
	b.WriteString(fmt.Sprintf("%s → %s\n\n", req.Start.Format("2006-01-02"), req.End.Format("2006-01-02")))

	b.WriteString(fmt.Sprintf("Start: %s\n", s.StartBalance.StringFixed(2)))
	b.WriteString(fmt.Sprintf("End: %s\n", s.EndBalance.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Net P/L: %s\n", signed(s.NetPL.StringFixed(2))))
	b.WriteString(fmt.Sprintf("Trades: %d | Win%%: %.1f%%\n", s.TotalTrades, s.WinRate))
	b.WriteString(fmt.Sprintf("Max drawdown: %s\n", s.MaxDrawdown.StringFixed(2)))
	if res.Phase != "" {
		b.WriteString(fmt.Sprintf("Strategy phase: %s\n", res.Phase))
	}

	if len(res.Fills) > 0 {
		b.WriteString("\n<b>Fills:</b>\n")
		for _, t := range res.Trades() {
			b.WriteString(fmt.Sprintf("  %s %s %d @ %s",
				t.Time.Format("01-02 15:04"), t.Side, t.Size, t.Price.StringFixed(2)))
			if !t.PnL.IsZero() {
				b.WriteString(fmt.Sprintf(" (%s)", signed(t.PnL.StringFixed(2))))
			}
			b.WriteString("\n")
		}
	}
	if s.UnpairedSells > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d sell fill(s) had no open buy\n", s.UnpairedSells))
	}
	return b.String()
}

// FormatFailure formats a failed run.
func FormatFailure(req backtest.Request, err error) string {
	return fmt.Sprintf("❌ <b>Backtest %s</b> | %s failed: %v", req.Symbol, req.Interval, err)
}

// FormatRecent lists stored runs, newest first.
func FormatRecent(runs []recorder.RunSummary) string {
	if len(runs) == 0 {
		return "No runs recorded yet."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Recent runs</b>\n\n")
	for _, r := range runs {
		if r.Status != "ok" {
			b.WriteString(fmt.Sprintf("%s %s %s ❌ %s\n", r.RanAt.Format("01-02 15:04"), r.Symbol, r.Interval, r.Error))
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s %s P/L %s, %d trades, %s\n",
			r.RanAt.Format("01-02 15:04"), r.Symbol, r.Interval, r.NetPL, r.TotalTrades, r.Phase))
	}
	return b.String()
}

func signed(v string) string {
	if strings.HasPrefix(v, "-") {
		return v
	}
	return "+" + v
}
