package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"FuturesBacktest/internal/broker"
	"FuturesBacktest/internal/calculator"
	"FuturesBacktest/internal/config"
	"FuturesBacktest/internal/model"
)

// SweepFVGName is the registry key of SweepFVG.
const SweepFVGName = "sweep_fvg"

// InsufficientReferenceError is reported when no swing high or swing low precedes the anchor bar.
// The strategy stays in init and retries at the next anchor.
type InsufficientReferenceError struct {
	Symbol string
	At     time.Time
}

func (e *InsufficientReferenceError) Error() string {
	return fmt.Sprintf("%s: no swing high/low before %s", e.Symbol, e.At.Format(time.RFC3339))
}

// Levels is the reference state captured at the anchor.
type Levels struct {
	SwingHigh float64         `json:"swing_high"`
	SwingLow  float64         `json:"swing_low"`
	Captured  time.Time       `json:"captured"`
	Direction model.Direction `json:"direction"`
}

// SweepFVG trades one liquidity sweep per run.
//
// At the daily anchor it records the latest swing high and swing low on the primary series. A bar
// trading above the swing high sets up a sell, one trading below the swing low a buy. It then waits
// for the latest secondary bar to close through the most recent fair value gap against the sweep
// (bearish gap for a buy, bullish gap for a sell), enters at that close, and immediately places the
// exit at RewardRisk times the distance to the swept level.
type SweepFVG struct {
	params Params
	anchor cron.Schedule
	log    zerolog.Logger
	symbol string

	primary   *model.PriceSeries
	secondary *model.PriceSeries
	gaps      []model.GapFlag

	nextAnchor time.Time
	phase      model.Phase
	levels     Levels
}

// NewSweepFVGFactory validates p and returns a factory of SweepFVG strategies.
func NewSweepFVGFactory(p Params) (Factory, error) {
	if p.RewardRisk <= 0 {
		return nil, fmt.Errorf("reward/risk must be positive, got %v", p.RewardRisk)
	}
	if p.Size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", p.Size)
	}
	if p.SecondaryInterval == "" {
		p.SecondaryInterval = model.Interval1m
	}
	sched, err := anchorSchedule(p.Anchor)
	if err != nil {
		return nil, err
	}
	return func() Strategy {
		return &SweepFVG{params: p, anchor: sched, phase: model.PhaseInit}
	}, nil
}

// anchorSchedule turns "HH:MM" into a daily cron schedule evaluated in the bar's location.
func anchorSchedule(anchor string) (cron.Schedule, error) {
	c, err := config.ParseClock(anchor)
	if err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	return cron.ParseStandard(fmt.Sprintf("%d %d * * *", c.Minute, c.Hour))
}

func (s *SweepFVG) Phase() model.Phase { return s.phase }
func (s *SweepFVG) Levels() Levels     { return s.levels }

// OnStart loads the secondary series covering every primary day and flags its gaps.
func (s *SweepFVG) OnStart(ctx context.Context, env Env, primary *model.PriceSeries, _ *broker.Ledger) error {
	s.log = env.Logger.With().Str("strategy", SweepFVGName).Str("symbol", env.Symbol).Logger()
	s.symbol = env.Symbol
	s.primary = primary

	first, ok := primary.First()
	if !ok {
		return fmt.Errorf("%s: empty primary series", env.Symbol)
	}
	last, _ := primary.Last()
	loc := first.Time.Location()
	start := startOfDay(first.Time, loc)
	end := startOfDay(last.Time, loc).AddDate(0, 0, 1)

	sec, err := env.Fetcher.Fetch(ctx, env.Symbol, start, end, s.params.SecondaryInterval)
	if err != nil {
		return fmt.Errorf("secondary series: %w", err)
	}
	s.secondary = sec
	s.gaps = calculator.FVGFlags(sec.Bars)
	s.nextAnchor = s.anchor.Next(first.Time.Add(-time.Second))
	s.log.Debug().Int("secondary_bars", sec.Len()).Time("first_anchor", s.nextAnchor).Msg("strategy started")
	return nil
}

func (s *SweepFVG) OnBar(ts time.Time, bar model.Bar, ledger *broker.Ledger) {
	atAnchor := !ts.Before(s.nextAnchor)
	if atAnchor {
		s.nextAnchor = s.anchor.Next(ts)
	}

	switch s.phase {
	case model.PhaseInit, model.PhaseWaitSweep:
		if atAnchor {
			s.captureLevels(ts)
			return
		}
		if s.phase == model.PhaseWaitSweep {
			s.watchSweep(ts, bar)
		}
	case model.PhaseEnterFVG:
		s.tryEntry(ts, ledger)
	case model.PhaseDone:
	}
}

func (s *SweepFVG) captureLevels(ts time.Time) {
	before := s.primary.Before(ts)
	hi, okH := calculator.LastSwingHigh(before)
	lo, okL := calculator.LastSwingLow(before)
	if !okH || !okL {
		err := &InsufficientReferenceError{Symbol: s.symbol, At: ts}
		s.log.Warn().Err(err).Str("phase", string(s.phase)).Msg("anchor skipped")
		return
	}
	s.levels = Levels{SwingHigh: hi, SwingLow: lo, Captured: ts}
	s.phase = model.PhaseWaitSweep
	s.log.Info().Time("ts", ts).Float64("swing_high", hi).Float64("swing_low", lo).Msg("levels captured")
}

func (s *SweepFVG) watchSweep(ts time.Time, bar model.Bar) {
	switch {
	case bar.High > s.levels.SwingHigh:
		s.levels.Direction = model.DirectionSell
	case bar.Low < s.levels.SwingLow:
		s.levels.Direction = model.DirectionBuy
	default:
		return
	}
	s.phase = model.PhaseEnterFVG
	s.log.Info().Time("ts", ts).Str("direction", string(s.levels.Direction)).Msg("liquidity sweep")
}

func (s *SweepFVG) tryEntry(ts time.Time, ledger *broker.Ledger) {
	upto := s.secondary.IndexAtOrBefore(ts)
	if upto < 0 {
		return
	}
	kind := model.GapBull
	if s.levels.Direction == model.DirectionBuy {
		kind = model.GapBear
	}
	gi := calculator.LastGap(s.gaps, kind, upto)
	if gi < 0 {
		return
	}
	conf := calculator.ConfirmationZone(s.secondary.Bars, s.gaps, gi)
	entry := s.secondary.Bars[upto].Close
	size := s.params.Size

	switch s.levels.Direction {
	case model.DirectionBuy:
		if entry <= conf.Trigger {
			return
		}
		target := entry + s.params.RewardRisk*(entry-s.levels.SwingLow)
		ledger.Buy(ts, entry, size)
		ledger.Sell(ts, target, size)
		s.logEntry(ts, entry, target, conf)
	case model.DirectionSell:
		if entry >= conf.Trigger {
			return
		}
		target := entry - s.params.RewardRisk*(s.levels.SwingHigh-entry)
		ledger.Sell(ts, entry, size)
		ledger.Buy(ts, target, size)
		s.logEntry(ts, entry, target, conf)
	default:
		return
	}
	s.phase = model.PhaseDone
}

func (s *SweepFVG) logEntry(ts time.Time, entry, target float64, conf model.Confirmation) {
	s.log.Info().Time("ts", ts).Str("direction", string(s.levels.Direction)).
		Float64("entry", entry).Float64("target", target).Float64("trigger", conf.Trigger).
		Float64("zone_low", conf.Zone.Low).Float64("zone_high", conf.Zone.High).Msg("entered")
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
