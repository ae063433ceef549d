// Package storage persists the winning genome of a training run together
// with the per-generation statistics.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pthm-cable/flappy/telemetry"
)

// ErrNotFound is returned by LoadWinner when no winner is stored under a name.
var ErrNotFound = errors.New("record not found")

// WinnerRecord is a saved champion. Genome holds the versioned genome JSON.
type WinnerRecord struct {
	Name       string    `json:"name"`
	RunID      string    `json:"run_id"`
	Generation int       `json:"generation"`
	AgentID    string    `json:"agent_id"`
	Fitness    float64   `json:"fitness"`
	Nodes      int       `json:"nodes"`
	Links      int       `json:"links"`
	SavedAt    time.Time `json:"saved_at"`
	Genome     []byte    `json:"genome"`
}

// Store is implemented by every backend.
type Store interface {
	Init(ctx context.Context) error
	SaveWinner(ctx context.Context, w WinnerRecord) error
	GetWinner(ctx context.Context, name string) (WinnerRecord, bool, error)
	SaveGeneration(ctx context.Context, stats telemetry.GenerationStats) error
	GetGenerations(ctx context.Context, runID string) ([]telemetry.GenerationStats, error)
}

// LoadWinner fetches a winner and reports ErrNotFound when it is absent.
func LoadWinner(ctx context.Context, store Store, name string) (WinnerRecord, error) {
	w, ok, err := store.GetWinner(ctx, name)
	if err != nil {
		return WinnerRecord{}, err
	}
	if !ok {
		return WinnerRecord{}, fmt.Errorf("winner %q: %w", name, ErrNotFound)
	}
	return w, nil
}

func validateWinner(w WinnerRecord) error {
	if w.Name == "" {
		return errors.New("winner name is required")
	}
	if len(w.Genome) == 0 {
		return errors.New("winner genome is empty")
	}
	return nil
}
