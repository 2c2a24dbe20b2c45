package api

import (
	"sync"
	"time"

	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/internal/index"
)

// LevelService shares one engine between request goroutines and the scheduler.
// ⭐ SSOT: every engine call from a concurrent caller goes through this lock
type LevelService struct {
	mu      sync.Mutex
	engine  *index.Engine
	indexID string
	updated time.Time
}

// NewLevelService wraps engine for concurrent use
func NewLevelService(engine *index.Engine, indexID string) *LevelService {
	return &LevelService{
		engine:  engine,
		indexID: indexID,
		updated: time.Now(),
	}
}

// IndexID returns the served index identifier
func (s *LevelService) IndexID() string {
	return s.indexID
}

// Levels computes or returns the levels in [from, to]
func (s *LevelService) Levels(from, to time.Time) (contracts.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ComputeLevels(from, to)
}

// Rebalances returns the rebalance log
func (s *LevelService) Rebalances() []contracts.Rebalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Rebalances()
}

// State returns the engine's rebalance state
func (s *LevelService) State() index.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

// HistoryRange returns the widest range Levels accepts
func (s *LevelService) HistoryRange() (time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.HistoryRange()
}

// Swap replaces the engine, e.g. after prices were reloaded
func (s *LevelService) Swap(engine *index.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
	s.updated = time.Now()
}

// Updated returns when the engine was last replaced
func (s *LevelService) Updated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}
