package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"FinScan/internal/domain/models"
	drepo "FinScan/internal/domain/repository"
	"FinScan/pkg/logger"
	"FinScan/pkg/util"

	"golang.org/x/sync/errgroup"
)

// UniverseOptions tunes the liquidity ranking.
type UniverseOptions struct {
	PriceMax     float64
	MaxLiquid    int
	BatchSize    int
	LookbackDays int
	Concurrency  int
}

// UniverseUseCase builds the scan universe: raw directory symbols ranked by
// average dollar volume over the lookback window.
type UniverseUseCase struct {
	source  drepo.SymbolSource
	market  drepo.MarketData
	state   drepo.StateStore
	metrics drepo.Metrics
	log     *logger.Logger
	opts    UniverseOptions
	now     func() time.Time
}

func NewUniverseUseCase(
	source drepo.SymbolSource,
	market drepo.MarketData,
	state drepo.StateStore,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts UniverseOptions,
) *UniverseUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 180
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 10
	}
	return &UniverseUseCase{
		source:  source,
		market:  market,
		state:   state,
		metrics: metrics,
		log:     log,
		opts:    opts,
		now:     time.Now,
	}
}

type liquidity struct {
	symbol    string
	dollarVol float64
}

// Build replaces the universe with the most liquid symbols priced within the gate.
func (uc *UniverseUseCase) Build(ctx context.Context) (*models.BuildResult, error) {
	start := uc.now()

	raw, err := uc.source.ListSymbols(ctx)
	if err != nil || len(raw) == 0 {
		uc.metrics.RecordUniverseBuild("error", 0, 0, uc.now().Sub(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrNoCandidates, err)
		}
		return nil, models.ErrNoCandidates
	}
	uc.log.Info("universe candidates listed", logger.Int("candidates", len(raw)))

	scored, err := uc.rank(ctx, raw)
	if err != nil {
		uc.metrics.RecordUniverseBuild("error", len(raw), 0, uc.now().Sub(start).Seconds())
		return nil, err
	}

	keep := len(scored)
	if uc.opts.MaxLiquid > 0 && keep > uc.opts.MaxLiquid {
		keep = uc.opts.MaxLiquid
	}
	symbols := make([]string, keep)
	for i := 0; i < keep; i++ {
		symbols[i] = scored[i].symbol
	}

	at := uc.now()
	uc.state.SetUniverse(symbols, at)
	elapsed := at.Sub(start)
	uc.metrics.RecordUniverseBuild("ok", len(raw), keep, elapsed.Seconds())
	uc.log.Info("universe built",
		logger.Int("candidates", len(raw)),
		logger.Int("priced", len(scored)),
		logger.Int("kept", keep),
		logger.Duration("elapsed", elapsed),
	)

	return &models.BuildResult{
		Message:    "universe built",
		Candidates: len(raw),
		Kept:       keep,
		TS:         at.Unix(),
	}, nil
}

// Refresh rebuilds the universe from scratch.
func (uc *UniverseUseCase) Refresh(ctx context.Context) (*models.BuildResult, error) {
	return uc.Build(ctx)
}

// Universe returns the current universe.
func (uc *UniverseUseCase) Universe() *models.UniverseView {
	syms, at := uc.state.Universe()
	if syms == nil {
		syms = []string{}
	}
	var ts int64
	if !at.IsZero() {
		ts = at.Unix()
	}
	return &models.UniverseView{Count: len(syms), Symbols: syms, TS: ts}
}

func (uc *UniverseUseCase) rank(ctx context.Context, raw []string) ([]liquidity, error) {
	from, to := util.SessionWindow(uc.now(), uc.opts.LookbackDays)

	var (
		mu     sync.Mutex
		scored = make([]liquidity, 0, len(raw))
		failed int
	)

	for i := 0; i < len(raw); i += uc.opts.BatchSize {
		end := i + uc.opts.BatchSize
		if end > len(raw) {
			end = len(raw)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(uc.opts.Concurrency)
		for _, sym := range raw[i:end] {
			g.Go(func() error {
				l, ok, err := uc.score(gctx, sym, from, to)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					failed++
					uc.metrics.RecordError("universe_symbol")
					return nil
				}
				if ok {
					scored = append(scored, l)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("rank universe: %w", err)
		}
		uc.log.Debug("universe batch ranked", logger.Int("from", i), logger.Int("to", end), logger.Int("priced", len(scored)))
	}

	if failed > 0 {
		uc.log.Warn("universe symbols skipped on error", logger.Int("failed", failed))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].dollarVol != scored[j].dollarVol {
			return scored[i].dollarVol > scored[j].dollarVol
		}
		return scored[i].symbol < scored[j].symbol
	})
	return scored, nil
}

// score computes the average dollar volume of sym. ok is false when the symbol has no
// usable bars or trades outside (0, PriceMax].
func (uc *UniverseUseCase) score(ctx context.Context, sym string, from, to time.Time) (liquidity, bool, error) {
	bars, err := uc.market.Candles(ctx, sym, models.ResDaily, from, to)
	if err != nil {
		return liquidity{}, false, err
	}
	if len(bars) == 0 {
		return liquidity{}, false, nil
	}
	if len(bars) > uc.opts.LookbackDays {
		bars = bars[len(bars)-uc.opts.LookbackDays:]
	}

	var total float64
	for _, b := range bars {
		total += b.Volume
	}
	avgVol := total / float64(len(bars))
	last := bars[len(bars)-1].Close
	if last <= 0 || last > uc.opts.PriceMax {
		return liquidity{}, false, nil
	}
	return liquidity{symbol: sym, dollarVol: avgVol * last}, true, nil
}
