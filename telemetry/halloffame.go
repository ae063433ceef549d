package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
)

// HallEntry is a champion genome with the fitness that earned its place.
type HallEntry struct {
	Generation int             `json:"generation"`
	AgentID    string          `json:"agent_id"`
	Fitness    float64         `json:"fitness"`
	Score      int             `json:"score"`
	Nodes      int             `json:"nodes"`
	Links      int             `json:"links"`
	Genome     json.RawMessage `json:"genome"`
}

// HallOfFame keeps the best generation champions of a run, best first.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
	rng     *rand.Rand
}

// NewHallOfFame creates a hall of fame holding at most maxSize entries.
func NewHallOfFame(maxSize int, rng *rand.Rand) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		entries: make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
		rng:     rng,
	}
}

// Consider offers an entry. Returns true if it was added.
func (hof *HallOfFame) Consider(entry HallEntry) bool {
	var added bool
	hof.entries, added = hof.insertEntry(hof.entries, entry)
	return added
}

// insertEntry adds an entry to the hall, maintaining sorted order by fitness.
// If the hall is full, the lowest-fitness entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) ([]HallEntry, bool) {
	// Sorted descending; ties keep the earlier entry first
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})

	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall, false
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}

	return hall, true
}

// Sample selects an entry using tournament selection.
// Returns false if the hall is empty.
func (hof *HallOfFame) Sample() (HallEntry, bool) {
	if len(hof.entries) == 0 {
		return HallEntry{}, false
	}

	const tournamentSize = 3
	best := -1
	for i := 0; i < tournamentSize && i < len(hof.entries); i++ {
		idx := hof.rng.Intn(len(hof.entries))
		if best < 0 || hof.entries[idx].Fitness > hof.entries[best].Fitness {
			best = idx
		}
	}
	return hof.entries[best], true
}

// Best returns the top entry.
func (hof *HallOfFame) Best() (HallEntry, bool) {
	if len(hof.entries) == 0 {
		return HallEntry{}, false
	}
	return hof.entries[0], true
}

// Entries returns the entries, best first.
func (hof *HallOfFame) Entries() []HallEntry {
	return hof.entries
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	return len(hof.entries)
}

// TopFitness returns the highest fitness in the hall, or 0 if it is empty.
func (hof *HallOfFame) TopFitness() float64 {
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Fitness
}

// MarshalJSON serializes the hall of fame to compact JSON. Genome payloads
// are embedded verbatim, so indenting the output would rewrite them.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MaxSize int         `json:"max_size"`
		Entries []HallEntry `json:"entries"`
	}{hof.maxSize, hof.entries})
}

// LoadHallOfFameFromFile reads a hall of fame JSON file.
func LoadHallOfFameFromFile(path string, rng *rand.Rand) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var raw struct {
		MaxSize int         `json:"max_size"`
		Entries []HallEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	hof := NewHallOfFame(max(raw.MaxSize, len(raw.Entries)), rng)
	for i, e := range raw.Entries {
		// Files may have been re-indented by hand or by other tools.
		if len(e.Genome) > 0 {
			var buf bytes.Buffer
			if err := json.Compact(&buf, e.Genome); err != nil {
				return nil, fmt.Errorf("hall of fame entry %d: %w", i, err)
			}
			e.Genome = buf.Bytes()
		}
		hof.Consider(e)
	}
	return hof, nil
}
