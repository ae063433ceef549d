package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pthm-cable/flappy/telemetry"
)

// FileStore writes JSON documents under a directory:
//
//	<dir>/winners/<name>.json
//	<dir>/runs/<run id>.json
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// winnerFile stores the genome inline so the file stays readable.
type winnerFile struct {
	Name       string          `json:"name"`
	RunID      string          `json:"run_id"`
	Generation int             `json:"generation"`
	AgentID    string          `json:"agent_id"`
	Fitness    float64         `json:"fitness"`
	Nodes      int             `json:"nodes"`
	Links      int             `json:"links"`
	SavedAt    time.Time       `json:"saved_at"`
	Genome     json.RawMessage `json:"genome"`
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Init(_ context.Context) error {
	for _, sub := range []string{"winners", "runs"} {
		if err := os.MkdirAll(filepath.Join(s.dir, sub), 0755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}
	return nil
}

func (s *FileStore) SaveWinner(_ context.Context, w WinnerRecord) error {
	if err := validateWinner(w); err != nil {
		return err
	}
	if !json.Valid(w.Genome) {
		return errors.New("winner genome is not valid JSON")
	}
	path, err := s.entryPath("winners", w.Name)
	if err != nil {
		return err
	}

	// The genome is embedded as raw JSON; Marshal compacts it, so it is
	// stored and returned in compact form.
	data, err := json.Marshal(winnerFile{
		Name:       w.Name,
		RunID:      w.RunID,
		Generation: w.Generation,
		AgentID:    w.AgentID,
		Fitness:    w.Fitness,
		Nodes:      w.Nodes,
		Links:      w.Links,
		SavedAt:    w.SavedAt,
		Genome:     json.RawMessage(w.Genome),
	})
	if err != nil {
		return fmt.Errorf("encoding winner: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(path, data)
}

func (s *FileStore) GetWinner(_ context.Context, name string) (WinnerRecord, bool, error) {
	path, err := s.entryPath("winners", name)
	if err != nil {
		return WinnerRecord{}, false, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return WinnerRecord{}, false, nil
	}
	if err != nil {
		return WinnerRecord{}, false, fmt.Errorf("reading winner: %w", err)
	}

	var f winnerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return WinnerRecord{}, false, fmt.Errorf("decoding winner %s: %w", path, err)
	}
	var genome bytes.Buffer
	if err := json.Compact(&genome, f.Genome); err != nil {
		return WinnerRecord{}, false, fmt.Errorf("decoding winner genome %s: %w", path, err)
	}
	return WinnerRecord{
		Name:       f.Name,
		RunID:      f.RunID,
		Generation: f.Generation,
		AgentID:    f.AgentID,
		Fitness:    f.Fitness,
		Nodes:      f.Nodes,
		Links:      f.Links,
		SavedAt:    f.SavedAt,
		Genome:     genome.Bytes(),
	}, true, nil
}

func (s *FileStore) SaveGeneration(_ context.Context, stats telemetry.GenerationStats) error {
	path, err := s.entryPath("runs", stats.RunID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := readRun(path)
	if err != nil {
		return err
	}
	replaced := false
	for i := range run {
		if run[i].Generation == stats.Generation {
			run[i] = stats
			replaced = true
			break
		}
	}
	if !replaced {
		run = append(run, stats)
	}
	sort.Slice(run, func(i, j int) bool { return run[i].Generation < run[j].Generation })

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}
	return writeFileAtomic(path, data)
}

func (s *FileStore) GetGenerations(_ context.Context, runID string) ([]telemetry.GenerationStats, error) {
	path, err := s.entryPath("runs", runID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readRun(path)
}

func (s *FileStore) entryPath(kind, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid %s name %q", kind, name)
	}
	return filepath.Join(s.dir, kind, name+".json"), nil
}

func readRun(path string) ([]telemetry.GenerationStats, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []telemetry.GenerationStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}
	var run []telemetry.GenerationStats
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", path, err)
	}
	return run, nil
}

// writeFileAtomic replaces path through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
