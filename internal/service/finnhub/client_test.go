package finnhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FinScan/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New("secret", srv.URL, WithRateLimit(1000, 100), WithBreaker(1, time.Minute, time.Minute, 2))
	return c, srv
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestQuote(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Finnhub-Token"))
		assert.Equal(t, "ABCD", r.URL.Query().Get("symbol"))
		writeJSON(w, map[string]interface{}{"c": 4.5, "d": 0.5, "dp": 12.5, "h": 4.6, "l": 3.9, "o": 4.0, "pc": 4.0, "t": 1700000000})
	})

	q, err := c.Quote(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", q.Symbol)
	assert.Equal(t, 4.5, q.Current)
	assert.Equal(t, 4.0, q.PrevClose)
	assert.Equal(t, int64(1700000000), q.Timestamp)
}

func TestProfileConvertsSharesFromMillions(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/profile2", r.URL.Path)
		writeJSON(w, map[string]interface{}{
			"name": "Acme Corp", "exchange": "NASDAQ", "country": "US",
			"finnhubIndustry": "Technology", "shareOutstanding": 42.5,
		})
	})

	p, err := c.Profile(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", p.Name)
	assert.Equal(t, "Technology", p.Industry)
	assert.InDelta(t, 42_500_000, p.SharesOut, 0.001)
}

func TestNewsSortedNewestFirst(t *testing.T) {
	from := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-03-04", r.URL.Query().Get("to"))
		writeJSON(w, []map[string]interface{}{
			{"headline": "older", "datetime": 1709300000, "source": "x"},
			{"headline": "newer", "datetime": 1709500000, "source": "y"},
		})
	})

	items, err := c.News(context.Background(), "ACME", from, to)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "newer", items[0].Headline)
	assert.Equal(t, "older", items[1].Headline)
}

func TestCandles(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "15", r.URL.Query().Get("resolution"))
		writeJSON(w, map[string]interface{}{
			"s": "ok",
			"t": []int64{100, 200},
			"o": []float64{1, 2},
			"h": []float64{1.5, 2.5},
			"l": []float64{0.5, 1.5},
			"c": []float64{1.2, 2.2},
			"v": []float64{1000, 2500},
		})
	})

	bars, err := c.Candles(context.Background(), "ACME", models.Res15m, time.Unix(0, 0), time.Unix(300, 0))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2500.0, bars[1].Volume)
	assert.Equal(t, int64(200), bars[1].Time.Unix())
}

func TestCandlesNoData(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"s": "no_data"})
	})

	bars, err := c.Candles(context.Background(), "ACME", models.ResDaily, time.Unix(0, 0), time.Unix(300, 0))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestRateLimitedStatusMapsToSentinel(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Quote(context.Background(), "ACME")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRateLimited)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		_, err := c.Quote(context.Background(), "ACME")
		require.Error(t, err)
	}
	assert.Equal(t, "open", c.State())

	_, err := c.Quote(context.Background(), "ACME")
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
