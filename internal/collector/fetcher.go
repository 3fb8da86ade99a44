package collector

import (
	"context"
	"fmt"
	"time"

	"FuturesBacktest/internal/model"
)

// Source fetches raw bars for [start, end) at a sampling interval.
// Implementations may return bars unsorted or in any location; the Provider normalises them.
// An empty result is not an error at this level.
type Source interface {
	FetchRange(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) ([]model.Bar, error)
	Name() string
}

// NoDataError reports that a fetch produced no bars for the requested range.
type NoDataError struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval model.Interval
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data for %s %s→%s (%s)",
		e.Symbol, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"), e.Interval)
}

// NewSource picks a Source by provider name: "yahoo" or "rest".
func NewSource(provider, baseURL, apiKey, proxyURL string) (Source, error) {
	switch provider {
	case "", "yahoo":
		return NewYahooSource(proxyURL), nil
	case "rest":
		if baseURL == "" {
			return nil, fmt.Errorf("rest source needs a base URL")
		}
		return NewRESTSource(baseURL, apiKey, proxyURL), nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", provider)
	}
}
