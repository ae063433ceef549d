package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/flappy/telemetry"
)

// SQLiteStore keeps winners and generation rows in a SQLite database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveWinner(ctx context.Context, w WinnerRecord) error {
	if err := validateWinner(w); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO winners (name, run_id, generation, agent_id, fitness, nodes, links, saved_at, genome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			run_id = excluded.run_id,
			generation = excluded.generation,
			agent_id = excluded.agent_id,
			fitness = excluded.fitness,
			nodes = excluded.nodes,
			links = excluded.links,
			saved_at = excluded.saved_at,
			genome = excluded.genome
	`, w.Name, w.RunID, w.Generation, w.AgentID, w.Fitness, w.Nodes, w.Links,
		w.SavedAt.UTC().Format(time.RFC3339Nano), w.Genome)
	return err
}

func (s *SQLiteStore) GetWinner(ctx context.Context, name string) (WinnerRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return WinnerRecord{}, false, err
	}

	var (
		w       WinnerRecord
		savedAt string
	)
	err = db.QueryRowContext(ctx, `
		SELECT name, run_id, generation, agent_id, fitness, nodes, links, saved_at, genome
		FROM winners WHERE name = ?
	`, name).Scan(&w.Name, &w.RunID, &w.Generation, &w.AgentID, &w.Fitness, &w.Nodes, &w.Links, &savedAt, &w.Genome)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WinnerRecord{}, false, nil
		}
		return WinnerRecord{}, false, err
	}
	if savedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, savedAt)
		if err != nil {
			return WinnerRecord{}, false, fmt.Errorf("decode winner %s saved_at: %w", name, err)
		}
		w.SavedAt = t
	}
	return w, true, nil
}

func (s *SQLiteStore) SaveGeneration(ctx context.Context, stats telemetry.GenerationStats) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO generations (run_id, generation, best_fitness, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			best_fitness = excluded.best_fitness,
			payload = excluded.payload
	`, stats.RunID, stats.Generation, stats.BestFitness, payload)
	return err
}

func (s *SQLiteStore) GetGenerations(ctx context.Context, runID string) ([]telemetry.GenerationStats, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT payload FROM generations WHERE run_id = ? ORDER BY generation ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []telemetry.GenerationStats{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var stats telemetry.GenerationStats
		if err := json.Unmarshal(payload, &stats); err != nil {
			return nil, fmt.Errorf("decode generation for run %s: %w", runID, err)
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS winners (
			name TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			fitness REAL NOT NULL,
			nodes INTEGER NOT NULL,
			links INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			genome BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS generations (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			best_fitness REAL NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
