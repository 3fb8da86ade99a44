package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FuturesBacktest/internal/model"
)

const chartPayload = `{"chart":{"result":[
 {"meta":{"symbol":"NQ=F","exchangeTimezoneName":"America/New_York"},
  "timestamp":[1743501600],
  "indicators":{"quote":[{"open":[1],"high":[2],"low":[0.5],"close":[1.5],"volume":[9]}]}},
 {"meta":{"symbol":"ES=F","exchangeTimezoneName":"America/New_York"},
  "timestamp":[1743501600,1743501660,1743501720],
  "indicators":{"quote":[{"open":[5600.25,null,5601],"high":[5602,null,5603.5],"low":[5599,null,5600],"close":[5601,null,5603],"volume":[120,null,80]}]}}
],"error":null}}`

func TestYahooSource_ParsesChart(t *testing.T) {
	var gotPath, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	y := NewYahooSource("")
	y.BaseURL = srv.URL

	start := time.Unix(1743501600, 0)
	bars, err := y.FetchRange(context.Background(), "ES", start, start.Add(time.Hour), model.Interval1m)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/ES=F", gotPath)
	assert.Equal(t, "1m", gotInterval)
	require.Len(t, bars, 2, "null bar skipped, other symbol ignored")
	assert.Equal(t, 5600.25, bars[0].Open)
	assert.Equal(t, 120.0, bars[0].Volume)
	assert.Equal(t, 5603.5, bars[1].High)
	assert.Equal(t, "America/New_York", bars[0].Time.Location().String())
}

func TestYahooSource_SkipsPartialBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"ES=F","exchangeTimezoneName":"UTC"},
		"timestamp":[1743501600,1743501660,1743501720],
		"indicators":{"quote":[{"open":[10,11,12],"high":[11,12,13],"low":[9,null,11],"close":[10.5,11.5,12.5],"volume":[5,5,null]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	y := NewYahooSource("")
	y.BaseURL = srv.URL
	start := time.Unix(1743501600, 0)
	bars, err := y.FetchRange(context.Background(), "ES=F", start, start.Add(time.Hour), model.Interval1m)
	require.NoError(t, err)
	require.Len(t, bars, 2, "bar with a null low is dropped")
	assert.Equal(t, 9.0, bars[0].Low)
	assert.Equal(t, 11.0, bars[1].Low)
	assert.Equal(t, 0.0, bars[1].Volume, "null volume alone keeps the bar")
}

func TestYahooSource_ApiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	y := NewYahooSource("")
	y.BaseURL = srv.URL
	_, err := y.FetchRange(context.Background(), "ZZ=F", day0, day0.Add(time.Hour), model.Interval5m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol may be delisted")
}

func TestYahooSource_FourHourResamplesHourly(t *testing.T) {
	var gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotInterval = r.URL.Query().Get("interval")
		// 2025-04-01 00:00..05:00 UTC, hourly
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"ES=F","exchangeTimezoneName":"UTC"},
		"timestamp":[1743465600,1743469200,1743472800,1743476400,1743480000,1743483600],
		"indicators":{"quote":[{"open":[1,2,3,4,5,6],"high":[2,3,9,5,6,7],"low":[0.5,1,2,3,4,5],"close":[2,3,4,5,6,7],"volume":[1,1,1,1,1,1]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	y := NewYahooSource("")
	y.BaseURL = srv.URL
	start := time.Unix(1743465600, 0)
	bars, err := y.FetchRange(context.Background(), "ES=F", start, start.Add(6*time.Hour), model.Interval4h)
	require.NoError(t, err)
	assert.Equal(t, "60m", gotInterval)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Open)
	assert.Equal(t, 9.0, bars[0].High)
	assert.Equal(t, 5.0, bars[0].Close)
	assert.Equal(t, 4.0, bars[0].Volume)
	assert.Equal(t, 2.0, bars[1].Volume)
}

func TestYahooSource_UnsupportedInterval(t *testing.T) {
	y := NewYahooSource("")
	_, err := y.FetchRange(context.Background(), "ES=F", day0, day0.Add(time.Hour), model.Interval("3m"))
	require.Error(t, err)
}

func TestRESTSource_FetchRange(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v1/bars", r.URL.Path)
		assert.Equal(t, "ES", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`[
			{"timestamp":1743465600,"open":1,"high":2,"low":0.5,"close":1.5,"volume":3},
			{"timestamp":1743465900,"open":1.5,"high":2.5,"low":1,"close":2,"volume":4},
			{"timestamp":1743552000,"open":9,"high":9,"low":9,"close":9,"volume":9}
		]`))
	}))
	defer srv.Close()

	src := NewRESTSource(srv.URL, "secret", "")
	start := time.Unix(1743465600, 0)
	bars, err := src.FetchRange(context.Background(), "ES", start, start.Add(time.Hour), model.Interval5m)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	require.Len(t, bars, 2, "bars outside the window are dropped")
	assert.Equal(t, 2.0, bars[1].Close)
}

func TestRESTSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewRESTSource(srv.URL, "", "")
	_, err := src.FetchRange(context.Background(), "ES", day0, day0.Add(time.Hour), model.Interval5m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewSource(t *testing.T) {
	src, err := NewSource("yahoo", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "yahoo", src.Name())

	src, err = NewSource("rest", "http://localhost:1", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "rest", src.Name())

	_, err = NewSource("rest", "", "", "")
	require.Error(t, err)
	_, err = NewSource("bloomberg", "", "", "")
	require.Error(t, err)
}
