// Package recorder persists backtest runs for later analysis.
package recorder

import (
	"time"

	"github.com/google/uuid"

	"FuturesBacktest/internal/backtest"
)

// Run is one completed backtest and how it was triggered.
type Run struct {
	ID      string
	Trigger string // "cli" or "schedule"
	RanAt   time.Time
	Result  *backtest.Result
}

// NewRun stamps a result with a fresh run ID.
func NewRun(trigger string, res *backtest.Result) *Run {
	return &Run{ID: uuid.NewString(), Trigger: trigger, RanAt: time.Now(), Result: res}
}

// Failure is a run that ended in an error before producing a result.
type Failure struct {
	ID      string
	Trigger string
	RanAt   time.Time
	Request backtest.Request
	Err     string
}

// NewFailure stamps a failed request with a fresh run ID.
func NewFailure(trigger string, req backtest.Request, err error) *Failure {
	return &Failure{ID: uuid.NewString(), Trigger: trigger, RanAt: time.Now(), Request: req, Err: err.Error()}
}

// RunSummary is a stored run as read back from storage.
type RunSummary struct {
	ID          string
	RanAt       time.Time
	Trigger     string
	Symbol      string
	Interval    string
	Status      string
	Error       string
	NetPL       string
	TotalTrades int
	WinRate     float64
	Phase       string
	Fills       int
}

// Recorder persists runs.
type Recorder interface {
	RecordRun(run *Run) error
	RecordFailure(f *Failure) error
	Close() error
}
