package repository

import (
	"context"
	"time"

	"FinScan/internal/domain/models"
)

// MarketData is the read side of the third-party market data API.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	Profile(ctx context.Context, symbol string) (*models.Profile, error)
	News(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsItem, error)
	Candles(ctx context.Context, symbol string, res models.Resolution, from, to time.Time) ([]models.Bar, error)
}

// SymbolSource lists raw candidate symbols for the universe.
type SymbolSource interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

// StateStore holds the in-process universe and board.
type StateStore interface {
	SetUniverse(symbols []string, at time.Time)
	Universe() ([]string, time.Time)
	SetBoard(b *models.Board)
	Board() *models.Board
	Reset()
}

// BoardSink receives every finished board.
type BoardSink interface {
	Publish(ctx context.Context, b *models.Board) error
	Close() error
}

// Locker guards the scan against concurrent runs.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordScan(result string, seconds float64)
	RecordUniverseBuild(result string, candidates, kept int, seconds float64)
	RecordBoardSize(n int)
	RecordGate(gate string, passed bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
