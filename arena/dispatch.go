package arena

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// parallelThreshold is the minimum alive count to fan decisions out.
// Below this, sequential evaluation is faster than goroutine overhead.
const parallelThreshold = 32

// evaluateAll fills a.decisions for every alive slot. Observations are built
// before this runs and obstacle state is not touched, so the parallel path
// only reads shared state. Jumps are applied afterwards in population order.
func (a *Arena) evaluateAll() {
	n := len(a.slots)
	if !a.settings.Parallel || n < parallelThreshold {
		for i := 0; i < n; i++ {
			a.decisions[i] = evaluate(a.slots[i].decide, a.observations[i])
		}
		return
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				a.decisions[i] = evaluate(a.slots[i].decide, a.observations[i])
			}
		}(start, end)
	}
	wg.Wait()
}

// evaluate runs one decision function and validates its output.
func evaluate(fn DecisionFunction, obs []float64) decision {
	out, err := fn.Decide(obs)
	if err != nil {
		return decision{err: err}
	}
	if len(out) != ActionSize {
		return decision{err: fmt.Errorf("%w: got %d outputs, want %d", ErrMalformedOutput, len(out), ActionSize)}
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return decision{err: fmt.Errorf("%w: non-finite output %v", ErrMalformedOutput, out[0])}
	}
	return decision{output: out[0]}
}
