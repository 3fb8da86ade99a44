package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"FuturesBacktest/internal/metrics"
	"FuturesBacktest/internal/model"
)

// DefaultChunkDays is the widest intraday window, in calendar days, requested in one call.
const DefaultChunkDays = 7

// StaticSource serves fixed bars, filtered to the requested range. Used for testing and offline replays.
type StaticSource struct {
	Bars map[model.Interval][]model.Bar
	// Calls records every requested window, in order.
	Calls []Window
}

// Window is one [Start, End) request.
type Window struct {
	Start time.Time
	End   time.Time
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) FetchRange(_ context.Context, _ string, start, end time.Time, interval model.Interval) ([]model.Bar, error) {
	s.Calls = append(s.Calls, Window{Start: start, End: end})
	var out []model.Bar
	for _, b := range s.Bars[interval] {
		if !b.Time.Before(start) && b.Time.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Provider assembles normalised price series from a Source.
type Provider struct {
	Source    Source
	Location  *time.Location
	ChunkDays int
	Log       zerolog.Logger
}

// NewProvider creates a Provider that converts timestamps to loc.
func NewProvider(src Source, loc *time.Location, log zerolog.Logger) *Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &Provider{Source: src, Location: loc, ChunkDays: DefaultChunkDays, Log: log}
}

// Fetch returns the bars for [start, end) as a strictly increasing, de-duplicated series in the
// provider's location. Intraday ranges longer than ChunkDays are split into consecutive windows
// fetched one after another; on a timestamp shared by two windows the earlier window's bar wins.
// An empty result yields *NoDataError.
func (p *Provider) Fetch(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) (*model.PriceSeries, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("fetch %s: end %s must be after start %s", symbol, end, start)
	}

	var raw []model.Bar
	for _, w := range p.windows(start, end, interval) {
		bars, err := p.Source.FetchRange(ctx, symbol, w.Start, w.End, interval)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s [%s, %s): %w", symbol, interval,
				w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339), err)
		}
		metrics.FetchChunksTotal.WithLabelValues(p.Source.Name(), interval.String()).Inc()
		p.Log.Debug().Str("source", p.Source.Name()).Str("symbol", symbol).Str("interval", interval.String()).
			Time("from", w.Start).Time("to", w.End).Int("bars", len(bars)).Msg("chunk fetched")
		raw = append(raw, bars...)
	}

	bars := normalize(raw, p.Location)
	if len(bars) == 0 {
		return nil, &NoDataError{Symbol: symbol, Start: start, End: end, Interval: interval}
	}
	return &model.PriceSeries{Symbol: symbol, Interval: interval, Location: p.Location, Bars: bars}, nil
}

// windows steps by calendar days in the provider's location, so boundaries keep their
// wall-clock time across DST changes.
func (p *Provider) windows(start, end time.Time, interval model.Interval) []Window {
	days := p.ChunkDays
	if days <= 0 {
		days = DefaultChunkDays
	}
	step := func(t time.Time) time.Time {
		return t.In(p.Location).AddDate(0, 0, days).In(start.Location())
	}
	if !interval.IsIntraday() || !step(start).Before(end) {
		return []Window{{Start: start, End: end}}
	}
	var out []Window
	for cur := start; cur.Before(end); {
		next := step(cur)
		if next.After(end) {
			next = end
		}
		out = append(out, Window{Start: cur, End: next})
		cur = next
	}
	return out
}

// normalize converts to loc, orders by time and keeps the first bar seen for each timestamp.
func normalize(raw []model.Bar, loc *time.Location) []model.Bar {
	out := make([]model.Bar, len(raw))
	for i, b := range raw {
		b.Time = b.Time.In(loc)
		out[i] = b
	}
	// stable: among equal timestamps the earlier chunk stays first
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(b.Time) {
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}
