package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/pthm-cable/flappy/telemetry"
)

// MemoryStore keeps everything in maps. It is used by tests and by runs
// that do not need to keep their results.
type MemoryStore struct {
	mu          sync.RWMutex
	winners     map[string]WinnerRecord
	generations map[string]map[int]telemetry.GenerationStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.winners == nil {
		s.winners = make(map[string]WinnerRecord)
	}
	if s.generations == nil {
		s.generations = make(map[string]map[int]telemetry.GenerationStats)
	}
	return nil
}

func (s *MemoryStore) SaveWinner(_ context.Context, w WinnerRecord) error {
	if err := validateWinner(w); err != nil {
		return err
	}
	w.Genome = slices.Clone(w.Genome)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.winners == nil {
		s.winners = make(map[string]WinnerRecord)
	}
	s.winners[w.Name] = w
	return nil
}

func (s *MemoryStore) GetWinner(_ context.Context, name string) (WinnerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.winners[name]
	if !ok {
		return WinnerRecord{}, false, nil
	}
	w.Genome = slices.Clone(w.Genome)
	return w, true, nil
}

func (s *MemoryStore) SaveGeneration(_ context.Context, stats telemetry.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations == nil {
		s.generations = make(map[string]map[int]telemetry.GenerationStats)
	}
	run := s.generations[stats.RunID]
	if run == nil {
		run = make(map[int]telemetry.GenerationStats)
		s.generations[stats.RunID] = run
	}
	run[stats.Generation] = stats
	return nil
}

func (s *MemoryStore) GetGenerations(_ context.Context, runID string) ([]telemetry.GenerationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run := s.generations[runID]
	out := make([]telemetry.GenerationStats, 0, len(run))
	for _, g := range run {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Generation < out[j].Generation })
	return out, nil
}
