package neural

import (
	"math/rand"
	"testing"
)

func TestNewSpeciesManager(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())

	if len(sm.Species) != 0 {
		t.Errorf("expected 0 species, got %d", len(sm.Species))
	}
	if len(sm.speciesColors) < 32 {
		t.Errorf("expected at least 32 pre-generated colors, got %d", len(sm.speciesColors))
	}
}

func TestSpeciesManagerAssignSpecies(t *testing.T) {
	opts := DefaultNEATOptions()
	sm := NewSpeciesManager(opts)
	rng := rand.New(rand.NewSource(1))

	genome1 := CreateBrainGenome(1, 1.0, rng)
	speciesID := sm.AssignSpecies(genome1)
	if speciesID == 0 {
		t.Error("expected non-zero species ID")
	}

	clone, _ := CloneGenome(genome1, 2)
	if got := sm.AssignSpecies(clone); got != speciesID {
		t.Errorf("identical genome should join species %d, got %d", speciesID, got)
	}

	opts.CompatThreshold = 0
	other := CreateBrainGenome(3, 1.0, rng)
	if got := sm.AssignSpecies(other); got == speciesID {
		t.Error("with a zero threshold every genome should found a new species")
	}
	if len(sm.Species) != 2 {
		t.Errorf("expected 2 species, got %d", len(sm.Species))
	}
}

func TestSpeciesStaleness(t *testing.T) {
	opts := DefaultNEATOptions()
	opts.DropOffAge = 2
	sm := NewSpeciesManager(opts)
	rng := rand.New(rand.NewSource(1))

	opts.CompatThreshold = 0
	a := sm.AssignSpecies(CreateBrainGenome(1, 1.0, rng))
	b := sm.AssignSpecies(CreateBrainGenome(2, 1.0, rng))

	for gen := 0; gen < 3; gen++ {
		sm.ResetMembers()
		sm.AddMember(a, 1)
		sm.AddMember(b, 2)
		// Only species a keeps improving
		sm.AccumulateFitness(a, float64(gen))
		sm.AccumulateFitness(b, -1)
		sm.EndGeneration(0)
	}

	if sm.GetSpecies(a) == nil {
		t.Error("improving species should survive")
	}
	if sm.GetSpecies(b) != nil {
		t.Error("stale species should be dropped")
	}
}

func TestSpeciesProtectedFromStaleness(t *testing.T) {
	opts := DefaultNEATOptions()
	opts.DropOffAge = 1
	sm := NewSpeciesManager(opts)
	id := sm.AssignSpecies(CreateBrainGenome(1, 1.0, rand.New(rand.NewSource(1))))

	for gen := 0; gen < 3; gen++ {
		sm.ResetMembers()
		sm.AddMember(id, 1)
		sm.AccumulateFitness(id, 0)
		sm.EndGeneration(id)
	}
	if sm.GetSpecies(id) == nil {
		t.Error("protected species must not be dropped")
	}
}

func TestSpeciesEmptyAreDropped(t *testing.T) {
	sm := NewSpeciesManager(DefaultNEATOptions())
	sm.AssignSpecies(CreateBrainGenome(1, 1.0, rand.New(rand.NewSource(1))))
	sm.EndGeneration(0)
	if len(sm.Species) != 0 {
		t.Errorf("species without members should be removed, got %d", len(sm.Species))
	}
}

func TestSpeciesStats(t *testing.T) {
	opts := DefaultNEATOptions()
	opts.CompatThreshold = 0
	sm := NewSpeciesManager(opts)
	rng := rand.New(rand.NewSource(1))

	a := sm.AssignSpecies(CreateBrainGenome(1, 1.0, rng))
	b := sm.AssignSpecies(CreateBrainGenome(2, 1.0, rng))
	sm.AddMember(a, 1)
	sm.AddMember(a, 3)
	sm.AddMember(b, 2)
	sm.AccumulateFitness(a, 4)
	sm.AccumulateFitness(a, 2)
	sm.AccumulateFitness(b, 7)

	stats := sm.GetStats()
	if stats.Count != 2 || stats.TotalMembers != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.LargestSize != 2 || stats.SmallestSize != 1 {
		t.Errorf("expected sizes 2 and 1, got %d and %d", stats.LargestSize, stats.SmallestSize)
	}
	if stats.BestFitness != 7 {
		t.Errorf("expected best fitness 7, got %v", stats.BestFitness)
	}

	top := sm.GetTopSpecies(1)
	if len(top) != 1 || top[0].ID != a {
		t.Errorf("expected species %d on top, got %+v", a, top)
	}
}
