package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pthm-cable/flappy/telemetry"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(dir, "files")),
		"sqlite": NewSQLiteStore(filepath.Join(dir, "flappy.db")),
	}
}

func initStore(t *testing.T, store Store) context.Context {
	t.Helper()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = CloseIfSupported(store)
	})
	return ctx
}

func TestWinnerRoundTrip(t *testing.T) {
	saved := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := initStore(t, store)

			w := WinnerRecord{
				Name:       "winner",
				RunID:      "run-1",
				Generation: 17,
				AgentID:    "g812",
				Fitness:    1234.5,
				Nodes:      6,
				Links:      5,
				SavedAt:    saved,
				Genome:     []byte(`{"version":1,"id":812}`),
			}
			if err := store.SaveWinner(ctx, w); err != nil {
				t.Fatalf("save winner: %v", err)
			}

			got, ok, err := store.GetWinner(ctx, "winner")
			if err != nil {
				t.Fatalf("get winner: %v", err)
			}
			if !ok {
				t.Fatal("expected winner to be found")
			}
			if got.RunID != w.RunID || got.Generation != 17 || got.AgentID != "g812" || got.Fitness != 1234.5 {
				t.Errorf("unexpected winner %+v", got)
			}
			if got.Nodes != 6 || got.Links != 5 || !got.SavedAt.Equal(saved) {
				t.Errorf("unexpected metadata %+v", got)
			}
			if string(got.Genome) != string(w.Genome) {
				t.Errorf("genome changed: %s", got.Genome)
			}

			// Saving under the same name replaces the record.
			w.Fitness = 2000
			if err := store.SaveWinner(ctx, w); err != nil {
				t.Fatalf("overwrite winner: %v", err)
			}
			got, _, _ = store.GetWinner(ctx, "winner")
			if got.Fitness != 2000 {
				t.Errorf("expected overwritten fitness 2000, got %v", got.Fitness)
			}
		})
	}
}

func TestWinnerMissing(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := initStore(t, store)

			_, ok, err := store.GetWinner(ctx, "nobody")
			if err != nil || ok {
				t.Fatalf("expected a clean miss, got ok=%v err=%v", ok, err)
			}
			_, err = LoadWinner(ctx, store, "nobody")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSaveWinnerRejectsEmptyRecord(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := initStore(t, store)
			if err := store.SaveWinner(ctx, WinnerRecord{Name: "x"}); err == nil {
				t.Error("expected an error for an empty genome")
			}
			if err := store.SaveWinner(ctx, WinnerRecord{Genome: []byte(`{}`)}); err == nil {
				t.Error("expected an error for an empty name")
			}
		})
	}
}

func TestGenerationsOrderedAndUpserted(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := initStore(t, store)

			for _, gen := range []int{3, 1, 2} {
				s := telemetry.GenerationStats{RunID: "run-a", Generation: gen, BestFitness: float64(gen * 10)}
				if err := store.SaveGeneration(ctx, s); err != nil {
					t.Fatalf("save generation %d: %v", gen, err)
				}
			}
			if err := store.SaveGeneration(ctx, telemetry.GenerationStats{RunID: "run-b", Generation: 1}); err != nil {
				t.Fatal(err)
			}
			if err := store.SaveGeneration(ctx, telemetry.GenerationStats{RunID: "run-a", Generation: 2, BestFitness: 99, Outcome: "score_cap"}); err != nil {
				t.Fatal(err)
			}

			got, err := store.GetGenerations(ctx, "run-a")
			if err != nil {
				t.Fatalf("get generations: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 generations, got %d", len(got))
			}
			for i, s := range got {
				if s.Generation != i+1 {
					t.Errorf("row %d: expected generation %d, got %d", i, i+1, s.Generation)
				}
			}
			if got[1].BestFitness != 99 || got[1].Outcome != "score_cap" {
				t.Errorf("generation 2 was not replaced: %+v", got[1])
			}

			empty, err := store.GetGenerations(ctx, "missing")
			if err != nil || len(empty) != 0 {
				t.Errorf("expected no rows for an unknown run, got %v, %v", empty, err)
			}
		})
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	if _, _, err := store.GetWinner(context.Background(), "winner"); err == nil {
		t.Fatal("expected an error before Init")
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := first.SaveWinner(ctx, WinnerRecord{Name: "w", Genome: []byte(`{}`)}); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, ok, err := second.GetWinner(ctx, "w"); err != nil || !ok {
		t.Errorf("winner lost across reopen: ok=%v err=%v", ok, err)
	}
}

func TestFileStoreRejectsPathNames(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := initStore(t, store)
	for _, name := range []string{"../escape", "a/b", ".."} {
		if err := store.SaveWinner(ctx, WinnerRecord{Name: name, Genome: []byte(`{}`)}); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestFileStoreCompactsGenome(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := initStore(t, store)

	w := WinnerRecord{Name: "spaced", Genome: []byte("{ \"version\": 1,\n  \"id\": 812 }")}
	if err := store.SaveWinner(ctx, w); err != nil {
		t.Fatalf("save winner: %v", err)
	}
	got, _, err := store.GetWinner(ctx, "spaced")
	if err != nil {
		t.Fatalf("get winner: %v", err)
	}
	if want := `{"version":1,"id":812}`; string(got.Genome) != want {
		t.Errorf("expected compact genome %s, got %s", want, got.Genome)
	}

	// A hand-edited, indented file still reads back compact.
	indented := "{\n  \"name\": \"edited\",\n  \"genome\": {\n    \"version\": 1\n  }\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "winners", "edited.json"), []byte(indented), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.GetWinner(ctx, "edited")
	if err != nil || !ok {
		t.Fatalf("get edited winner: %v (found %v)", err, ok)
	}
	if string(got.Genome) != `{"version":1}` {
		t.Errorf("expected compact genome, got %s", got.Genome)
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		kind, path string
		wantErr    bool
	}{
		{"memory", "", false},
		{"", "", false},
		{"file", t.TempDir(), false},
		{"file", "", true},
		{"sqlite", filepath.Join(t.TempDir(), "f.db"), false},
		{"unknown", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			store, err := NewStore(tt.kind, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil || store == nil {
				t.Fatalf("NewStore(%q): %v", tt.kind, err)
			}
		})
	}
}
