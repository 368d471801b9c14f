package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinScan/internal/domain/models"
	"FinScan/internal/repository"
	"FinScan/internal/services/gates"
	"FinScan/pkg/cache"
	"FinScan/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBuilder struct {
	state  *repository.MemoryStateStore
	syms   []string
	err    error
	called int
}

func (b *stubBuilder) Build(context.Context) (*models.BuildResult, error) {
	b.called++
	if b.err != nil {
		return nil, b.err
	}
	b.state.SetUniverse(b.syms, time.Now())
	return &models.BuildResult{Kept: len(b.syms)}, nil
}

type scanFixture struct {
	uc      *ScannerUseCase
	md      *fakeMarket
	state   *repository.MemoryStateStore
	locks   *cache.MemoryCache
	metrics *recordingMetrics
	sink    *captureSink
	builder *stubBuilder
	clock   time.Time
}

func newScanFixture(t *testing.T, opts ScanOptions) *scanFixture {
	t.Helper()
	f := &scanFixture{
		md:      newFakeMarket(),
		state:   repository.NewMemoryStateStore(),
		locks:   cache.NewMemoryCache(),
		metrics: newRecordingMetrics(),
		sink:    &captureSink{},
		clock:   time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC), // 11:00 in Toronto
	}
	t.Cleanup(func() { _ = f.locks.Close() })
	f.builder = &stubBuilder{state: f.state}

	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	opts.MaxHeadlines = 15
	f.uc = NewScannerUseCase(f.md, f.state, f.builder, gates.NewEvaluator(gates.DefaultThresholds()),
		f.locks, f.sink, f.metrics, logger.Nop(), opts)
	f.uc.now = func() time.Time { return f.clock }
	f.uc.newID = func() string { return "scan-1" }

	f.md.quotes["AAA"] = &models.Quote{Symbol: "AAA", Current: 10, PrevClose: 9.5}
	f.md.profiles["AAA"] = &models.Profile{Symbol: "AAA", Name: "Acme Corp", SharesOut: 50e6}
	f.md.intraday["AAA"] = []models.Bar{{Volume: 10}, {Volume: 3e6}}
	f.md.news["AAA"] = []models.NewsItem{{Headline: "Acme announces merger"}}

	f.md.quotes["BBB"] = &models.Quote{Symbol: "BBB", Current: 5, PrevClose: 6}
	f.md.news["BBB"] = []models.NewsItem{{Headline: "Pipeline update"}, {Headline: "  "}}

	f.md.quotes["CCC"] = &models.Quote{Symbol: "CCC", Current: 50, PrevClose: 49}
	f.md.quoteErr["DDD"] = errors.New("timeout")

	f.md.quotes["EEEY"] = &models.Quote{Symbol: "EEEY", Current: 20, PrevClose: 19}
	f.md.profiles["EEEY"] = &models.Profile{Symbol: "EEEY", Name: "Eee Holdings", SharesOut: 10e6}
	f.md.intraday["EEEY"] = []models.Bar{{Volume: 100}}

	f.state.SetUniverse([]string{"AAA", "BBB", "CCC", "DDD", "EEEY"}, f.clock)
	return f
}

func symbolsOf(rows []models.BoardRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Symbol
	}
	return out
}

func TestScanBuildsRankedBoard(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})

	res, err := f.uc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scan complete", res.Message)
	assert.Equal(t, "scan-1", res.ScanID)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, f.clock.Unix(), res.TS)

	b := f.state.Board()
	require.NotNil(t, b)
	assert.Equal(t, []string{"AAA", "BBB", "EEEY"}, symbolsOf(b.Rows))
	assert.Equal(t, 5, b.Scanned)

	top := b.Rows[0]
	assert.Equal(t, "Tier-1/A", top.TierGrade)
	assert.Equal(t, 10.2, top.Trigger)
	assert.Equal(t, "Above", top.VWAPStatus)
	assert.Equal(t, "Meets (3,000,000)", top.VolumeVsReq)
	assert.Equal(t, 8.0, top.Score)

	assert.Equal(t, "Tier-3/C", b.Rows[1].TierGrade)
	assert.Equal(t, "Tier-2/B", b.Rows[2].TierGrade)

	// CCC fails the price gate before any further calls; DDD never quotes
	assert.Equal(t, 3, f.md.count("profile"))
	assert.Equal(t, 1, f.metrics.errors["quote"])
	assert.Equal(t, 1, f.metrics.gates["price:fail"])
	assert.Equal(t, 3, f.metrics.gates["price:pass"])
	assert.Equal(t, 1, f.metrics.scans["ok"])
	assert.Equal(t, 3, f.metrics.board)
	assert.Equal(t, 1, f.sink.count())

	// lock released
	ok, err := f.locks.TryLock(context.Background(), scanLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScanTruncatesToMaxRows(t *testing.T) {
	f := newScanFixture(t, ScanOptions{MaxRows: 2})

	res, err := f.uc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"AAA", "BBB"}, symbolsOf(f.state.Board().Rows))
}

func TestScanRejectsConcurrentRun(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})
	ok, err := f.locks.TryLock(context.Background(), scanLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.uc.Scan(context.Background())
	assert.ErrorIs(t, err, models.ErrScanInProgress)
	assert.True(t, IsBusy(err))
	assert.Equal(t, 1, f.metrics.scans["skipped"])
	assert.Nil(t, f.state.Board())
	assert.Equal(t, 0, f.md.count("quote"))
}

func TestScanBuildsUniverseWhenEmpty(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})
	f.state.Reset()
	f.builder.syms = []string{"AAA"}

	res, err := f.uc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.builder.called)
	assert.Equal(t, 1, res.Count)
}

func TestScanFailsWhenUniverseCannotBeBuilt(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})
	f.state.Reset()
	f.builder.err = models.ErrNoCandidates

	_, err := f.uc.Scan(context.Background())
	assert.ErrorIs(t, err, models.ErrNoCandidates)
	assert.Equal(t, 1, f.metrics.scans["error"])
}

func TestScanFailsWhenProviderIsDown(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})
	f.state.SetUniverse([]string{"DDD"}, f.clock)
	f.md.quoteErr["DDD"] = models.ErrProviderUnavailable

	_, err := f.uc.Scan(context.Background())
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Nil(t, f.state.Board())
	assert.Equal(t, 0, f.sink.count())
}

func TestScanIgnoresSinkErrors(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})
	f.sink.err = errors.New("kafka down")

	_, err := f.uc.Scan(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, f.state.Board())
}

func TestBoardView(t *testing.T) {
	f := newScanFixture(t, ScanOptions{StaleAfter: 15 * time.Minute})

	v := f.uc.Board(0)
	assert.True(t, v.Stale)
	assert.Equal(t, 0, v.Count)
	assert.NotNil(t, v.Rows)
	assert.Equal(t, int64(0), v.TS)
	assert.True(t, v.MarketHours)

	_, err := f.uc.Scan(context.Background())
	require.NoError(t, err)

	v = f.uc.Board(0)
	assert.False(t, v.Stale)
	assert.Equal(t, 3, v.Count)
	assert.Equal(t, 0.0, v.AgeMin)
	assert.Equal(t, "scan-1", v.ScanID)

	v = f.uc.Board(1)
	assert.Equal(t, 3, v.Count, "count reports the whole board")
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "AAA", v.Rows[0].Symbol)

	f.clock = f.clock.Add(16*time.Minute + 30*time.Second)
	v = f.uc.Board(0)
	assert.True(t, v.Stale)
	assert.Equal(t, 16.5, v.AgeMin)
}

func TestResetAndStatus(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})
	_, err := f.uc.Scan(context.Background())
	require.NoError(t, err)

	st := f.uc.Status()
	assert.True(t, st.OK)
	assert.True(t, st.UniverseBuilt)
	assert.True(t, st.Scanned)
	assert.Equal(t, 5, st.UniverseCount)
	assert.Equal(t, 3, st.BoardCount)

	f.uc.Reset()
	st = f.uc.Status()
	assert.False(t, st.UniverseBuilt)
	assert.False(t, st.Scanned)
	assert.Equal(t, 0, st.BoardCount)
	assert.True(t, f.uc.Board(0).Stale)
}

func TestQuotePassthroughNormalisesSymbol(t *testing.T) {
	f := newScanFixture(t, ScanOptions{})
	q, err := f.uc.Quote(context.Background(), " aaa ")
	require.NoError(t, err)
	assert.Equal(t, 10.0, q.Current)

	_, err = f.uc.Quote(context.Background(), "ddd")
	assert.Error(t, err)
}
