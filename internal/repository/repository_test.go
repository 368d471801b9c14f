package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FinScan/internal/domain/models"
	"FinScan/pkg/cache"
	pkgkafka "FinScan/pkg/kafka"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleBoard() *models.Board {
	return &models.Board{
		ScanID:    "scan-1",
		Timestamp: time.Unix(1700000000, 0),
		Scanned:   3,
		Rows: []models.BoardRow{
			{Symbol: "AAA", TierGrade: "Tier-1/A", Trigger: 10.2, Price: 10, Score: 8},
			{Symbol: "BBB", TierGrade: "Tier-3/C", Trigger: 5.1, Price: 5, Score: 3},
		},
	}
}

func TestMemoryStateStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStateStore()
	assert.Nil(t, s.Board())

	syms := []string{"AAA", "BBB"}
	at := time.Unix(100, 0)
	s.SetUniverse(syms, at)
	syms[0] = "ZZZ"

	got, gotAt := s.Universe()
	assert.Equal(t, []string{"AAA", "BBB"}, got)
	assert.Equal(t, at, gotAt)
	got[1] = "YYY"
	again, _ := s.Universe()
	assert.Equal(t, "BBB", again[1])

	b := sampleBoard()
	s.SetBoard(b)
	b.Rows[0].Symbol = "MUT"
	stored := s.Board()
	require.NotNil(t, stored)
	assert.Equal(t, "AAA", stored.Rows[0].Symbol)

	s.Reset()
	u, uAt := s.Universe()
	assert.Empty(t, u)
	assert.True(t, uAt.IsZero())
	assert.Nil(t, s.Board())
}

type countingMarketData struct {
	quotes, profiles, news, candles int
	failProfile                     bool
}

func (c *countingMarketData) Quote(_ context.Context, symbol string) (*models.Quote, error) {
	c.quotes++
	return &models.Quote{Symbol: symbol, Current: 1}, nil
}

func (c *countingMarketData) Profile(_ context.Context, symbol string) (*models.Profile, error) {
	c.profiles++
	if c.failProfile {
		return nil, errors.New("boom")
	}
	return &models.Profile{Symbol: symbol, Name: "Acme", SharesOut: 5e6}, nil
}

func (c *countingMarketData) News(_ context.Context, _ string, _, _ time.Time) ([]models.NewsItem, error) {
	c.news++
	return []models.NewsItem{{Headline: "Acme wins contract", Time: time.Unix(10, 0).UTC()}}, nil
}

func (c *countingMarketData) Candles(_ context.Context, _ string, _ models.Resolution, _, _ time.Time) ([]models.Bar, error) {
	c.candles++
	return []models.Bar{{Time: time.Unix(20, 0).UTC(), Close: 2, Volume: 100}}, nil
}

func TestCachedMarketData(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingMarketData{}
	md := NewCachedMarketData(next, mc, CacheTTLs{Profile: time.Hour, News: time.Hour, Candles: time.Hour}, nil)
	ctx := context.Background()
	from, to := time.Unix(0, 0), time.Unix(86400*3, 0)

	for i := 0; i < 2; i++ {
		p, err := md.Profile(ctx, "ACME")
		require.NoError(t, err)
		assert.Equal(t, 5e6, p.SharesOut)

		n, err := md.News(ctx, "ACME", from, to)
		require.NoError(t, err)
		if diff := cmp.Diff([]models.NewsItem{{Headline: "Acme wins contract", Time: time.Unix(10, 0).UTC()}}, n); diff != "" {
			t.Fatalf("news mismatch (-want +got):\n%s", diff)
		}

		bars, err := md.Candles(ctx, "ACME", models.ResDaily, from, to)
		require.NoError(t, err)
		assert.Len(t, bars, 1)

		_, err = md.Candles(ctx, "ACME", models.Res15m, from, to)
		require.NoError(t, err)

		_, err = md.Quote(ctx, "ACME")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, next.profiles)
	assert.Equal(t, 1, next.news)
	assert.Equal(t, 3, next.candles) // daily once, intraday twice
	assert.Equal(t, 2, next.quotes)
}

func TestCachedMarketDataDoesNotCacheErrorsOrZeroTTL(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingMarketData{failProfile: true}
	md := NewCachedMarketData(next, mc, CacheTTLs{}, nil)
	ctx := context.Background()

	_, err := md.Profile(ctx, "ACME")
	assert.Error(t, err)
	_, err = md.Profile(ctx, "ACME")
	assert.Error(t, err)
	assert.Equal(t, 2, next.profiles)

	_, _ = md.News(ctx, "ACME", time.Unix(0, 0), time.Unix(1, 0))
	_, _ = md.News(ctx, "ACME", time.Unix(0, 0), time.Unix(1, 0))
	assert.Equal(t, 2, next.news)
	assert.Equal(t, 0, mc.Len())
}

type fakeBatchPublisher struct {
	topic  string
	msgs   []pkgkafka.Message
	err    error
	closed bool
}

func (f *fakeBatchPublisher) PublishBatch(_ context.Context, topic string, messages []pkgkafka.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, messages...)
	return f.err
}

func (f *fakeBatchPublisher) Close() error {
	f.closed = true
	return nil
}

func TestKafkaBoardSink(t *testing.T) {
	pub := &fakeBatchPublisher{}
	sink := NewKafkaBoardSink(pub, "finscan.board")

	require.NoError(t, sink.Publish(context.Background(), sampleBoard()))
	assert.Equal(t, "finscan.board", pub.topic)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, []byte("AAA"), pub.msgs[0].Key)

	m, ok := pub.msgs[1].Value.(BoardMessage)
	require.True(t, ok)
	assert.Equal(t, "scan-1", m.ScanID)
	assert.Equal(t, 2, m.Rank)
	assert.Equal(t, int64(1700000000), m.TS)

	require.NoError(t, sink.Publish(context.Background(), &models.Board{}))
	assert.Len(t, pub.msgs, 2)

	pub.err = errors.New("broker down")
	assert.ErrorContains(t, sink.Publish(context.Background(), sampleBoard()), "broker down")

	require.NoError(t, sink.Close())
	assert.False(t, pub.closed, "producer belongs to the caller")
}

func TestClickHouseInsertQuery(t *testing.T) {
	sink := NewClickHouseBoardSink(nil, "finscan")
	q, args := sink.insertQuery(sampleBoard())

	assert.True(t, strings.HasPrefix(q, "INSERT INTO finscan.board_rows (ts, scan_id, rank, symbol"))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 28)
	assert.Equal(t, "scan-1", args[1])
	assert.Equal(t, uint16(1), args[2])
	assert.Equal(t, "AAA", args[3])
	assert.Equal(t, 8.0, args[13])
	assert.Equal(t, "BBB", args[17])

	assert.NoError(t, sink.Publish(context.Background(), nil))
}

func TestBoardRowsSchema(t *testing.T) {
	stmts := BoardRowsSchema("finscan")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS finscan", stmts[0])
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS finscan.board_rows")
}

type recordingSink struct {
	got    int
	err    error
	closed bool
}

func (r *recordingSink) Publish(_ context.Context, _ *models.Board) error {
	r.got++
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func TestFanoutSinkJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("nope")}
	f := NewFanoutSink(nil, ok, nil, bad)
	assert.Equal(t, 2, f.Len())

	err := f.Publish(context.Background(), sampleBoard())
	assert.ErrorContains(t, err, "nope")
	assert.Equal(t, 1, ok.got)
	assert.Equal(t, 1, bad.got)

	require.NoError(t, f.Close())
	assert.True(t, ok.closed)
	assert.True(t, bad.closed)
}
