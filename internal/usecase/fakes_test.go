package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"FinScan/internal/domain/models"
)

type fakeMarket struct {
	mu       sync.Mutex
	quotes   map[string]*models.Quote
	profiles map[string]*models.Profile
	news     map[string][]models.NewsItem
	daily    map[string][]models.Bar
	intraday map[string][]models.Bar
	quoteErr map[string]error
	calls    map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		quotes:   map[string]*models.Quote{},
		profiles: map[string]*models.Profile{},
		news:     map[string][]models.NewsItem{},
		daily:    map[string][]models.Bar{},
		intraday: map[string][]models.Bar{},
		quoteErr: map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeMarket) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeMarket) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeMarket) Quote(_ context.Context, symbol string) (*models.Quote, error) {
	f.hit("quote")
	if err := f.quoteErr[symbol]; err != nil {
		return nil, err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return &models.Quote{Symbol: symbol}, nil
	}
	return q, nil
}

func (f *fakeMarket) Profile(_ context.Context, symbol string) (*models.Profile, error) {
	f.hit("profile")
	p, ok := f.profiles[symbol]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (f *fakeMarket) News(_ context.Context, symbol string, _, _ time.Time) ([]models.NewsItem, error) {
	f.hit("news")
	return f.news[symbol], nil
}

func (f *fakeMarket) Candles(_ context.Context, symbol string, res models.Resolution, _, _ time.Time) ([]models.Bar, error) {
	f.hit("candles_" + string(res))
	if res == models.ResDaily {
		if symbol == "ERR" {
			return nil, errors.New("upstream 500")
		}
		return f.daily[symbol], nil
	}
	return f.intraday[symbol], nil
}

type fakeSource struct {
	symbols []string
	err     error
}

func (f *fakeSource) ListSymbols(context.Context) ([]string, error) { return f.symbols, f.err }

type recordingMetrics struct {
	mu     sync.Mutex
	scans  map[string]int
	gates  map[string]int
	errors map[string]int
	builds map[string]int
	board  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{scans: map[string]int{}, gates: map[string]int{}, errors: map[string]int{}, builds: map[string]int{}}
}

func (m *recordingMetrics) RecordScan(result string, _ float64) {
	m.mu.Lock()
	m.scans[result]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordUniverseBuild(result string, _, _ int, _ float64) {
	m.mu.Lock()
	m.builds[result]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordBoardSize(n int) {
	m.mu.Lock()
	m.board = n
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordGate(gate string, passed bool) {
	key := gate + ":fail"
	if passed {
		key = gate + ":pass"
	}
	m.mu.Lock()
	m.gates[key]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLatency(string, float64) {}

type captureSink struct {
	mu     sync.Mutex
	boards []*models.Board
	err    error
}

func (c *captureSink) Publish(_ context.Context, b *models.Board) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards = append(c.boards, b)
	return c.err
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.boards)
}

// dailyBars returns n bars with the given volume and closing price.
func dailyBars(n int, volume, close float64) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{Time: time.Unix(int64(i)*86400, 0).UTC(), Close: close, Volume: volume}
	}
	return bars
}
