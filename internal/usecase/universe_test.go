package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinScan/internal/domain/models"
	"FinScan/internal/repository"
	"FinScan/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUniverse(src *fakeSource, md *fakeMarket, m *recordingMetrics, maxLiquid int) (*UniverseUseCase, *repository.MemoryStateStore) {
	state := repository.NewMemoryStateStore()
	uc := NewUniverseUseCase(src, md, state, m, logger.Nop(), UniverseOptions{
		PriceMax:     30,
		MaxLiquid:    maxLiquid,
		BatchSize:    2,
		LookbackDays: 10,
		Concurrency:  3,
	})
	uc.now = func() time.Time { return time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC) }
	return uc, state
}

func TestUniverseBuildRanksByDollarVolume(t *testing.T) {
	md := newFakeMarket()
	md.daily["A"] = dailyBars(10, 1e6, 10) // 1e7
	md.daily["B"] = dailyBars(10, 5e6, 5)  // 2.5e7
	md.daily["C"] = dailyBars(10, 9e9, 40) // above price max
	md.daily["E"] = dailyBars(10, 1e6, 10) // ties with A
	md.daily["Z"] = dailyBars(10, 100, 1)  // least liquid
	src := &fakeSource{symbols: []string{"A", "B", "C", "D", "ERR", "E", "Z"}}
	m := newRecordingMetrics()

	uc, state := newUniverse(src, md, m, 3)
	res, err := uc.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, res.Candidates)
	assert.Equal(t, 3, res.Kept)
	syms, at := state.Universe()
	assert.Equal(t, []string{"B", "A", "E"}, syms)
	assert.Equal(t, res.TS, at.Unix())
	assert.Equal(t, 1, m.builds["ok"])
	assert.Equal(t, 1, m.errors["universe_symbol"])

	view := uc.Universe()
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, res.TS, view.TS)
}

func TestUniverseUsesOnlyLookbackWindow(t *testing.T) {
	md := newFakeMarket()
	// five old huge-volume bars followed by ten quiet ones
	md.daily["OLD"] = append(dailyBars(5, 1e9, 10), dailyBars(10, 1, 10)...)
	md.daily["NEW"] = dailyBars(10, 1000, 10)
	src := &fakeSource{symbols: []string{"OLD", "NEW"}}

	uc, state := newUniverse(src, md, newRecordingMetrics(), 0)
	_, err := uc.Build(context.Background())
	require.NoError(t, err)

	syms, _ := state.Universe()
	assert.Equal(t, []string{"NEW", "OLD"}, syms)
}

func TestUniverseBuildWithoutCandidates(t *testing.T) {
	m := newRecordingMetrics()
	uc, state := newUniverse(&fakeSource{err: errors.New("ftp down")}, newFakeMarket(), m, 600)

	_, err := uc.Build(context.Background())
	assert.ErrorIs(t, err, models.ErrNoCandidates)
	assert.Equal(t, 1, m.builds["error"])

	syms, _ := state.Universe()
	assert.Empty(t, syms)
	assert.Equal(t, 0, uc.Universe().Count)
	assert.NotNil(t, uc.Universe().Symbols)

	uc2, _ := newUniverse(&fakeSource{}, newFakeMarket(), m, 600)
	_, err = uc2.Refresh(context.Background())
	assert.ErrorIs(t, err, models.ErrNoCandidates)
}

func TestUniverseBuildCancelled(t *testing.T) {
	md := newFakeMarket()
	src := &fakeSource{symbols: []string{"A"}}
	uc, _ := newUniverse(src, md, newRecordingMetrics(), 10)
	uc.market = cancelledMarket{md}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := uc.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type cancelledMarket struct{ *fakeMarket }

func (cancelledMarket) Candles(ctx context.Context, _ string, _ models.Resolution, _, _ time.Time) ([]models.Bar, error) {
	return nil, ctx.Err()
}
