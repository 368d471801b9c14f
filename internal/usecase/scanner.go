package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"FinScan/internal/domain/models"
	drepo "FinScan/internal/domain/repository"
	"FinScan/internal/services/gates"
	"FinScan/pkg/logger"
	"FinScan/pkg/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const scanLockKey = "scan:lock"

// ScanOptions tunes a scan run and how the board is served.
type ScanOptions struct {
	Concurrency  int
	LockTTL      time.Duration
	NewsLookback time.Duration
	MaxHeadlines int
	MaxRows      int
	StaleAfter   time.Duration
}

// UniverseBuilder is what the scanner needs from the universe use case.
type UniverseBuilder interface {
	Build(ctx context.Context) (*models.BuildResult, error)
}

// ScannerUseCase runs the gates over the universe and maintains the board.
type ScannerUseCase struct {
	market    drepo.MarketData
	state     drepo.StateStore
	universe  UniverseBuilder
	evaluator *gates.Evaluator
	locker    drepo.Locker
	sink      drepo.BoardSink
	metrics   drepo.Metrics
	log       *logger.Logger
	opts      ScanOptions
	now       func() time.Time
	newID     func() string
}

func NewScannerUseCase(
	market drepo.MarketData,
	state drepo.StateStore,
	universe UniverseBuilder,
	evaluator *gates.Evaluator,
	locker drepo.Locker,
	sink drepo.BoardSink,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ScanOptions,
) *ScannerUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.NewsLookback <= 0 {
		opts.NewsLookback = 72 * time.Hour
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Minute
	}
	return &ScannerUseCase{
		market:    market,
		state:     state,
		universe:  universe,
		evaluator: evaluator,
		locker:    locker,
		sink:      sink,
		metrics:   metrics,
		log:       log,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Scan evaluates every universe symbol and replaces the board. Only one scan runs at a time;
// a concurrent call gets ErrScanInProgress.
func (uc *ScannerUseCase) Scan(ctx context.Context) (*models.ScanResult, error) {
	ok, err := uc.locker.TryLock(ctx, scanLockKey, uc.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !ok {
		uc.metrics.RecordScan("skipped", 0)
		return nil, models.ErrScanInProgress
	}
	defer func() {
		// the caller's context may already be done; the lock must still go
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := uc.locker.Unlock(unlockCtx, scanLockKey); err != nil {
			uc.log.Warn("release scan lock failed", logger.Error(err))
		}
	}()

	start := uc.now()
	board, err := uc.run(ctx)
	if err != nil {
		uc.metrics.RecordScan("error", uc.now().Sub(start).Seconds())
		return nil, err
	}
	elapsed := uc.now().Sub(start)

	uc.state.SetBoard(board)
	uc.metrics.RecordScan("ok", elapsed.Seconds())
	uc.metrics.RecordBoardSize(len(board.Rows))
	uc.log.Info("scan complete",
		logger.String("scan_id", board.ScanID),
		logger.Int("scanned", board.Scanned),
		logger.Int("rows", len(board.Rows)),
		logger.Duration("elapsed", elapsed),
	)

	if uc.sink != nil {
		if err := uc.sink.Publish(ctx, board); err != nil {
			uc.log.Warn("publish board failed", logger.String("scan_id", board.ScanID), logger.Error(err))
		}
	}

	return &models.ScanResult{
		Message: "scan complete",
		ScanID:  board.ScanID,
		Count:   len(board.Rows),
		TS:      board.Timestamp.Unix(),
	}, nil
}

func (uc *ScannerUseCase) run(ctx context.Context) (*models.Board, error) {
	symbols, _ := uc.state.Universe()
	if len(symbols) == 0 {
		uc.log.Info("universe empty, building before scan")
		if _, err := uc.universe.Build(ctx); err != nil {
			return nil, fmt.Errorf("build universe: %w", err)
		}
		symbols, _ = uc.state.Universe()
	}

	evals := make([]*gates.Evaluation, len(symbols))
	var (
		mu      sync.Mutex
		quoted  int
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.opts.Concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			snap, err := uc.snapshot(gctx, sym)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				uc.log.Debug("quote failed, skipping", logger.String("symbol", sym), logger.Error(err))
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			ev := uc.evaluator.Evaluate(*snap)
			evals[i] = &ev

			mu.Lock()
			quoted++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if quoted == 0 && lastErr != nil {
		return nil, fmt.Errorf("scan: no quotes from %d symbols: %w", len(symbols), lastErr)
	}

	rows := make([]models.BoardRow, 0, len(symbols))
	for _, ev := range evals {
		if ev == nil {
			continue
		}
		uc.recordGates(ev)
		if ev.Passed() {
			rows = append(rows, ev.Row)
		}
	}
	gates.Rank(rows)
	if uc.opts.MaxRows > 0 && len(rows) > uc.opts.MaxRows {
		rows = rows[:uc.opts.MaxRows]
	}

	return &models.Board{
		ScanID:    uc.newID(),
		Rows:      rows,
		Timestamp: uc.now(),
		Scanned:   len(symbols),
	}, nil
}

// snapshot gathers the inputs for one symbol. Only the quote is required; the
// rest degrades to zero values. Symbols failing the price gate stop after the quote.
func (uc *ScannerUseCase) snapshot(ctx context.Context, sym string) (*models.Snapshot, error) {
	q, err := uc.market.Quote(ctx, sym)
	if err != nil {
		uc.metrics.RecordError("quote")
		return nil, err
	}
	snap := &models.Snapshot{Symbol: sym, Price: q.Current, PrevClose: q.PrevClose}
	if !uc.evaluator.PriceOK(snap.Price) {
		return snap, nil
	}

	if p, err := uc.market.Profile(ctx, sym); err == nil {
		snap.Name = p.Name
		snap.SharesOut = p.SharesOut
	} else {
		uc.metrics.RecordError("profile")
		uc.log.Debug("profile unavailable", logger.String("symbol", sym), logger.Error(err))
	}

	now := uc.now()
	if bars, err := uc.market.Candles(ctx, sym, models.Res15m, util.SessionStart(now), now); err == nil {
		if len(bars) > 0 {
			snap.Vol15 = int64(bars[len(bars)-1].Volume)
		}
	} else {
		uc.metrics.RecordError("candles")
		uc.log.Debug("intraday bars unavailable", logger.String("symbol", sym), logger.Error(err))
	}

	if news, err := uc.market.News(ctx, sym, now.Add(-uc.opts.NewsLookback), now); err == nil {
		for _, n := range news {
			if uc.opts.MaxHeadlines > 0 && len(snap.Headlines) >= uc.opts.MaxHeadlines {
				break
			}
			if h := strings.TrimSpace(n.Headline); h != "" {
				snap.Headlines = append(snap.Headlines, h)
			}
		}
	} else {
		uc.metrics.RecordError("news")
		uc.log.Debug("news unavailable", logger.String("symbol", sym), logger.Error(err))
	}

	return snap, nil
}

func (uc *ScannerUseCase) recordGates(ev *gates.Evaluation) {
	uc.metrics.RecordGate("price", ev.PriceOK)
	if !ev.PriceOK {
		return
	}
	uc.metrics.RecordGate("volume", ev.VolumeOK)
	uc.metrics.RecordGate("float", ev.FloatOK)
	uc.metrics.RecordGate("catalyst", ev.Catalyst == models.CatalystReal)
}

// Board returns the latest board with freshness data. limit > 0 caps the rows returned.
func (uc *ScannerUseCase) Board(limit int) *models.BoardView {
	now := uc.now()
	view := &models.BoardView{
		Rows:        []models.BoardRow{},
		Stale:       true,
		MarketHours: util.IsMarketHours(now),
	}

	b := uc.state.Board()
	if b == nil {
		return view
	}

	rows := b.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows != nil {
		view.Rows = rows
	}
	view.ScanID = b.ScanID
	view.Count = len(b.Rows)
	view.TS = b.Timestamp.Unix()
	view.AgeMin = util.AgeMinutes(b.Timestamp, now)
	view.Stale = now.Sub(b.Timestamp) > uc.opts.StaleAfter
	return view
}

// Reset clears the universe and the board.
func (uc *ScannerUseCase) Reset() {
	uc.state.Reset()
	uc.metrics.RecordBoardSize(0)
	uc.log.Info("state reset")
}

// Status summarises the in-process state.
func (uc *ScannerUseCase) Status() *models.Status {
	syms, _ := uc.state.Universe()
	b := uc.state.Board()
	st := &models.Status{
		OK:            true,
		TS:            uc.now().Unix(),
		UniverseCount: len(syms),
		UniverseBuilt: len(syms) > 0,
		Scanned:       b != nil,
	}
	if b != nil {
		st.BoardCount = len(b.Rows)
	}
	return st
}

// Quote passes a single quote through from the provider.
func (uc *ScannerUseCase) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	q, err := uc.market.Quote(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return q, nil
}

// IsBusy reports whether err means another scan holds the lock.
func IsBusy(err error) bool { return errors.Is(err, models.ErrScanInProgress) }
