package repository

import (
	"sync"
	"time"

	"FinScan/internal/domain/models"
	drepo "FinScan/internal/domain/repository"
)

// MemoryStateStore keeps the universe and the latest board in process.
type MemoryStateStore struct {
	mu         sync.RWMutex
	universe   []string
	universeAt time.Time
	board      *models.Board
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) SetUniverse(symbols []string, at time.Time) {
	cp := append([]string(nil), symbols...)
	s.mu.Lock()
	s.universe = cp
	s.universeAt = at
	s.mu.Unlock()
}

// Universe returns a copy of the symbols and the time they were set.
func (s *MemoryStateStore) Universe() ([]string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.universe...), s.universeAt
}

func (s *MemoryStateStore) SetBoard(b *models.Board) {
	var cp *models.Board
	if b != nil {
		c := *b
		c.Rows = append([]models.BoardRow(nil), b.Rows...)
		cp = &c
	}
	s.mu.Lock()
	s.board = cp
	s.mu.Unlock()
}

// Board returns a copy of the latest board, or nil before the first scan.
func (s *MemoryStateStore) Board() *models.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.board == nil {
		return nil
	}
	c := *s.board
	c.Rows = append([]models.BoardRow(nil), s.board.Rows...)
	return &c
}

func (s *MemoryStateStore) Reset() {
	s.mu.Lock()
	s.universe = nil
	s.universeAt = time.Time{}
	s.board = nil
	s.mu.Unlock()
}

var _ drepo.StateStore = (*MemoryStateStore)(nil)
