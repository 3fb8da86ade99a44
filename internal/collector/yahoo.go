package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"FuturesBacktest/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource implements Source using the Yahoo Finance chart API.
type YahooSource struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooSource creates a Yahoo Finance source with optional proxy support.
func NewYahooSource(proxyURL string) *YahooSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooSource{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"ES":     "ES=F",
			"NQ":     "NQ=F",
			"YM":     "YM=F",
			"RTY":    "RTY=F",
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
		},
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

func (f *YahooSource) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// at returns vals[i], with ok=false when it is missing or null.
func at(vals []interface{}, i int) (float64, bool) {
	if i >= len(vals) {
		return 0, false
	}
	n, ok := vals[i].(float64)
	return n, ok
}

// yahooInterval maps an interval to Yahoo's name and reports whether the bars must be resampled.
func yahooInterval(iv model.Interval) (string, model.Interval, error) {
	switch iv {
	case model.Interval1m, model.Interval5m, model.Interval15m, model.Interval30m, model.Interval1d:
		return iv.String(), iv, nil
	case model.Interval1h:
		return "60m", iv, nil
	case model.Interval4h:
		// no native 4h bars: fetch hourly and bucket
		return "60m", model.Interval1h, nil
	default:
		return "", "", fmt.Errorf("yahoo: unsupported interval %q", iv)
	}
}

// FetchRange downloads [start, end) from the chart endpoint.
func (f *YahooSource) FetchRange(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) ([]model.Bar, error) {
	yiv, native, err := yahooInterval(interval)
	if err != nil {
		return nil, err
	}
	ticker := f.yahooSymbol(symbol)
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", yiv)
	q.Set("includePrePost", "false")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(ticker), q.Encode())

	bars, loc, err := f.fetchChart(ctx, u, ticker)
	if err != nil {
		return nil, err
	}
	from := start
	if native != interval {
		bars = Resample(bars, interval, loc)
		// keep a bucket that began before start but holds bars inside the window
		from = bucketStart(start, interval, loc)
	}
	// the API widens the window to whole sessions for some intervals
	out := bars[:0]
	for _, b := range bars {
		if !b.Time.Before(from) && b.Time.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *YahooSource) fetchChart(ctx context.Context, u, ticker string) ([]model.Bar, *time.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("yahoo read body: %w", err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
		}
		return nil, nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	if len(chart.Chart.Result) == 0 {
		return nil, time.UTC, nil
	}

	// multi-symbol payloads: keep the requested ticker only
	result := chart.Chart.Result[0]
	for _, r := range chart.Chart.Result {
		if r.Meta.Symbol == ticker {
			result = r
			break
		}
	}
	loc := time.UTC
	if result.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, loc, nil
	}

	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, okO := at(quote.Open, i)
		h, okH := at(quote.High, i)
		l, okL := at(quote.Low, i)
		c, okC := at(quote.Close, i)
		if !okO || !okH || !okL || !okC {
			continue // null or partial bars (halts, holidays)
		}
		v, _ := at(quote.Volume, i)
		bars = append(bars, model.Bar{
			Time:   time.Unix(ts, 0).In(loc),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	return bars, loc, nil
}
