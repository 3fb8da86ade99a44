// Package scheduler runs trailing-window backtests on a cron schedule and reports them.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"FuturesBacktest/internal/backtest"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/notifier"
	"FuturesBacktest/internal/recorder"
	"FuturesBacktest/internal/strategy"
)

// Job describes the backtest repeated on every tick.
type Job struct {
	Symbols      []string
	Interval     model.Interval
	LookbackDays int
	StartingCash decimal.Decimal
	Parallelism  int
	Location     *time.Location
}

// Outcome is the result of one symbol's run.
type Outcome struct {
	Symbol string
	Result *backtest.Result
	Err    error
}

// recentLister is implemented by recorders that can read runs back.
type recentLister interface {
	Recent(symbol string, limit int) ([]recorder.RunSummary, error)
}

// Scheduler manages the cron task and command handling.
type Scheduler struct {
	Cron     *cron.Cron
	Fetcher  strategy.Fetcher
	Factory  strategy.Factory
	Job      Job
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Log      zerolog.Logger
	Ctx      context.Context
	// Now is the clock used to place the trailing window.
	Now func() time.Time

	running sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, fetcher strategy.Fetcher, factory strategy.Factory, job Job,
	n notifier.Notifier, rec recorder.Recorder, log zerolog.Logger) *Scheduler {
	if job.Location == nil {
		job.Location = time.UTC
	}
	if job.Parallelism <= 0 {
		job.Parallelism = 1
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(job.Location)),
		Fetcher:  fetcher,
		Factory:  factory,
		Job:      job,
		Notifier: n,
		Recorder: rec,
		Log:      log,
		Ctx:      ctx,
		Now:      time.Now,
	}
}

// Register adds the backtest task under a six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.scheduledTask); err != nil {
		return fmt.Errorf("register backtest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info().Strs("symbols", s.Job.Symbols).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) scheduledTask() {
	s.RunAll(s.Ctx, "schedule", s.Job.Symbols)
}

// Window returns the trailing [start, end) range ending at the start of the current day.
func (s *Scheduler) Window() (time.Time, time.Time) {
	now := s.Now().In(s.Job.Location)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.Job.Location)
	return end.AddDate(0, 0, -s.Job.LookbackDays), end
}

// RunAll backtests symbols concurrently, at most Job.Parallelism at a time. Each run is recorded
// and reported on its own; one symbol failing does not stop the others.
func (s *Scheduler) RunAll(ctx context.Context, trigger string, symbols []string) []Outcome {
	s.running.Lock()
	defer s.running.Unlock()

	start, end := s.Window()
	s.Log.Info().Str("trigger", trigger).Strs("symbols", symbols).Time("from", start).Time("to", end).Msg("running backtests")

	out := make([]Outcome, len(symbols))
	var g errgroup.Group
	g.SetLimit(s.Job.Parallelism)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			req := backtest.Request{
				Symbol:       sym,
				Start:        start,
				End:          end,
				Interval:     s.Job.Interval,
				StartingCash: s.Job.StartingCash,
			}
			res, err := backtest.Run(s.Log.WithContext(ctx), s.Fetcher, req, s.Factory)
			out[i] = Outcome{Symbol: sym, Result: res, Err: err}
			s.report(ctx, trigger, req, res, err)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Scheduler) report(ctx context.Context, trigger string, req backtest.Request, res *backtest.Result, runErr error) {
	var text string
	if runErr != nil {
		text = notifier.FormatFailure(req, runErr)
		if err := s.Recorder.RecordFailure(recorder.NewFailure(trigger, req, runErr)); err != nil {
			s.Log.Error().Err(err).Str("symbol", req.Symbol).Msg("record failure")
		}
	} else {
		text = notifier.FormatRunReport(res)
		if err := s.Recorder.RecordRun(recorder.NewRun(trigger, res)); err != nil {
			s.Log.Error().Err(err).Str("symbol", req.Symbol).Msg("record run")
		}
	}
	if err := s.Notifier.Notify(ctx, text); err != nil {
		s.Log.Error().Err(err).Str("symbol", req.Symbol).Msg("send notification")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch fields[0] {
	case "/run":
		symbols := s.Job.Symbols
		if len(fields) > 1 {
			symbols = fields[1:]
		}
		s.RunAll(ctx, "command", symbols)
		return ""
	case "/last":
		lister, ok := s.Recorder.(recentLister)
		if !ok {
			return "Run history is not stored."
		}
		symbol := ""
		if len(fields) > 1 {
			symbol = fields[1]
		}
		runs, err := lister.Recent(symbol, 10)
		if err != nil {
			return fmt.Sprintf("❌ read history: %v", err)
		}
		return notifier.FormatRecent(runs)
	default:
		return helpText
	}
}

const helpText = "Commands:\n• /run [symbol ...] backtest now\n• /last [symbol] recent runs"
