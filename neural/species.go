package neural

import (
	"math"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
)

// SpeciesColor represents an RGB color for species visualization.
type SpeciesColor struct {
	R, G, B uint8
}

// Species represents a group of genetically similar genomes.
type Species struct {
	ID             int
	Representative *genetics.Genome // Used for compatibility comparisons
	Members        []int            // Genome IDs of members
	BestFitness    float64          // Best fitness ever seen in this species
	AvgFitness     float64
	TotalFitness   float64
	Age            int // Generations since species was created
	Staleness      int // Generations without fitness improvement
	Color          SpeciesColor
	OffspringCount int // Total offspring produced by this species
}

// SpeciesManager manages speciation for the population.
type SpeciesManager struct {
	Species       []*Species
	opts          *neat.Options
	nextSpeciesID int
	generation    int
	speciesColors []SpeciesColor // Pre-generated distinct colors
}

// NewSpeciesManager creates a new species manager.
func NewSpeciesManager(opts *neat.Options) *SpeciesManager {
	return &SpeciesManager{
		Species:       make([]*Species, 0),
		opts:          opts,
		nextSpeciesID: 1,
		speciesColors: generateDistinctColors(64),
	}
}

// generateDistinctColors creates visually distinct colors using golden angle.
func generateDistinctColors(count int) []SpeciesColor {
	colors := make([]SpeciesColor, count)
	goldenAngle := 137.508

	for i := 0; i < count; i++ {
		hue := math.Mod(float64(i)*goldenAngle, 360.0)
		r, g, b := hsvToRGB(hue, 0.7, 0.9)
		colors[i] = SpeciesColor{R: r, G: g, B: b}
	}
	return colors
}

// hsvToRGB converts HSV to RGB.
func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	h = math.Mod(h, 360)
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return uint8((r + m) * 255), uint8((g + m) * 255), uint8((b + m) * 255)
}

// ResetMembers empties every species before a new speciation pass.
func (sm *SpeciesManager) ResetMembers() {
	for _, sp := range sm.Species {
		sp.Members = sp.Members[:0]
		sp.TotalFitness = 0
	}
}

// AssignSpecies finds or creates a species for the given genome.
// Returns the species ID.
func (sm *SpeciesManager) AssignSpecies(genome *genetics.Genome) int {
	if genome == nil {
		return 0
	}

	for _, sp := range sm.Species {
		if sp.Representative == nil {
			continue
		}
		if GenomeCompatibility(genome, sp.Representative, sm.opts) < sm.opts.CompatThreshold {
			return sp.ID
		}
	}

	colorIdx := sm.nextSpeciesID % len(sm.speciesColors)
	newSpecies := &Species{
		ID:             sm.nextSpeciesID,
		Representative: genome,
		Members:        make([]int, 0),
		BestFitness:    math.Inf(-1),
		Color:          sm.speciesColors[colorIdx],
	}
	sm.nextSpeciesID++
	sm.Species = append(sm.Species, newSpecies)

	return newSpecies.ID
}

// GetSpecies returns the species with the given ID, or nil.
func (sm *SpeciesManager) GetSpecies(speciesID int) *Species {
	for _, sp := range sm.Species {
		if sp.ID == speciesID {
			return sp
		}
	}
	return nil
}

// GetSpeciesColor returns the color for a species ID.
// Returns a default gray if species not found.
func (sm *SpeciesManager) GetSpeciesColor(speciesID int) SpeciesColor {
	if sp := sm.GetSpecies(speciesID); sp != nil {
		return sp.Color
	}
	return SpeciesColor{R: 128, G: 128, B: 128}
}

// AddMember adds a genome to its species.
func (sm *SpeciesManager) AddMember(speciesID int, genomeID int) {
	if sp := sm.GetSpecies(speciesID); sp != nil {
		sp.Members = append(sp.Members, genomeID)
	}
}

// AccumulateFitness adds to the total fitness for a species member.
func (sm *SpeciesManager) AccumulateFitness(speciesID int, fitness float64) {
	sp := sm.GetSpecies(speciesID)
	if sp == nil {
		return
	}
	sp.TotalFitness += fitness
	if fitness > sp.BestFitness {
		sp.BestFitness = fitness
		sp.Staleness = -1 // EndGeneration brings this back to 0
	}
}

// EndGeneration processes end-of-generation updates and drops empty or
// stale species. The species with ID protect survives staleness.
// Call it once per generation after all fitness values are accumulated.
func (sm *SpeciesManager) EndGeneration(protect int) {
	sm.generation++

	for _, sp := range sm.Species {
		sp.Age++
		if len(sp.Members) > 0 {
			sp.AvgFitness = sp.TotalFitness / float64(len(sp.Members))
		}
		sp.Staleness++
	}

	sm.RemoveStaleSpecies(protect)
}

// RecordOffspring increments the offspring count for a species.
func (sm *SpeciesManager) RecordOffspring(speciesID int, n int) {
	if sp := sm.GetSpecies(speciesID); sp != nil {
		sp.OffspringCount += n
	}
}

// RemoveStaleSpecies removes species that have no members or are too stale.
func (sm *SpeciesManager) RemoveStaleSpecies(protect int) {
	maxStaleness := sm.opts.DropOffAge
	active := make([]*Species, 0, len(sm.Species))

	for _, sp := range sm.Species {
		if len(sp.Members) == 0 {
			continue
		}
		if sp.ID == protect || maxStaleness <= 0 || sp.Staleness < maxStaleness {
			active = append(active, sp)
		}
	}

	sm.Species = active
}

// SpeciesStats contains summary statistics about all species.
type SpeciesStats struct {
	Count            int
	TotalMembers     int
	LargestSize      int
	SmallestSize     int
	AverageStaleness float64
	Generation       int
	TotalOffspring   int
	BestFitness      float64
}

// SpeciesInfo contains display information about a single species.
type SpeciesInfo struct {
	ID        int
	Size      int
	BestFit   float64
	AvgFit    float64
	Age       int
	Staleness int
	Color     SpeciesColor
	Offspring int
}

// GetStats returns summary statistics about species distribution.
func (sm *SpeciesManager) GetStats() SpeciesStats {
	if len(sm.Species) == 0 {
		return SpeciesStats{Generation: sm.generation}
	}

	stats := SpeciesStats{
		Count:        len(sm.Species),
		SmallestSize: math.MaxInt,
		Generation:   sm.generation,
		BestFitness:  math.Inf(-1),
	}

	totalStaleness := 0
	for _, sp := range sm.Species {
		size := len(sp.Members)
		stats.TotalMembers += size
		stats.TotalOffspring += sp.OffspringCount
		stats.BestFitness = max(stats.BestFitness, sp.BestFitness)
		stats.LargestSize = max(stats.LargestSize, size)
		if size > 0 {
			stats.SmallestSize = min(stats.SmallestSize, size)
		}
		totalStaleness += sp.Staleness
	}

	stats.AverageStaleness = float64(totalStaleness) / float64(stats.Count)
	if stats.SmallestSize == math.MaxInt {
		stats.SmallestSize = 0
	}

	return stats
}

// GetTopSpecies returns info about the top N species by size.
func (sm *SpeciesManager) GetTopSpecies(n int) []SpeciesInfo {
	if len(sm.Species) == 0 {
		return nil
	}

	sorted := make([]*Species, len(sm.Species))
	copy(sorted, sm.Species)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Members) > len(sorted[j].Members)
	})

	n = min(n, len(sorted))
	result := make([]SpeciesInfo, n)
	for i := 0; i < n; i++ {
		sp := sorted[i]
		result[i] = SpeciesInfo{
			ID:        sp.ID,
			Size:      len(sp.Members),
			BestFit:   sp.BestFitness,
			AvgFit:    sp.AvgFitness,
			Age:       sp.Age,
			Staleness: sp.Staleness,
			Color:     sp.Color,
			Offspring: sp.OffspringCount,
		}
	}

	return result
}
