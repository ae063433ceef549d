// Package arena implements the per-tick flappy simulation: agent physics,
// obstacle scrolling, collision culling, decision dispatch and fitness accrual.
package arena

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flappy/components"
	"github.com/pthm-cable/flappy/config"
)

// ObservationSize is the length of the vector passed to a DecisionFunction:
// agent height, distance to the gap top, distance to the gap bottom.
const ObservationSize = 3

// ActionSize is the expected length of a decision output.
const ActionSize = 1

// ErrNilDecision is returned when an entrant has no decision function.
var ErrNilDecision = errors.New("nil decision function")

// ErrMalformedOutput marks decision outputs that cannot be acted on.
var ErrMalformedOutput = errors.New("malformed decision output")

// DecisionFunction maps an observation to an action vector.
// Implementations must be deterministic and free of side effects.
type DecisionFunction interface {
	Decide(observation []float64) ([]float64, error)
}

// DecisionFunc adapts a plain function to DecisionFunction.
type DecisionFunc func(observation []float64) ([]float64, error)

// Decide calls f.
func (f DecisionFunc) Decide(observation []float64) ([]float64, error) {
	return f(observation)
}

// Entrant is one member of the population.
type Entrant struct {
	ID     string
	Decide DecisionFunction
}

// Settings holds everything the arena needs from config.
type Settings struct {
	Body          Body
	Field         FieldParams
	Rewards       Rewards
	FloorY        float64
	JumpThreshold float64
	Parallel      bool
	ScoreCap      int // 0 = uncapped
	MaxTicks      int // 0 = unlimited
}

// NewSettings builds arena settings from config.
func NewSettings(cfg *config.Config) Settings {
	return Settings{
		Body:          NewBody(cfg),
		Field:         NewFieldParams(cfg),
		Rewards:       NewRewards(cfg),
		FloorY:        cfg.World.FloorY,
		JumpThreshold: cfg.Arena.JumpThreshold,
		Parallel:      cfg.Arena.ParallelDecisions,
		ScoreCap:      cfg.Generation.ScoreCap,
		MaxTicks:      cfg.Generation.MaxTicks,
	}
}

// slot ties an ECS entity to its decision function. Slots are kept in
// population order and only hold alive agents.
type slot struct {
	entity ecs.Entity
	id     string
	decide DecisionFunction
}

// decision is the evaluated output for one slot in the current tick.
type decision struct {
	output float64
	err    error
}

// Arena runs one generation's simulation.
type Arena struct {
	settings Settings
	ledger   FitnessLedger

	world  *ecs.World
	birds  *ecs.Map3[components.Position, components.Velocity, components.Bird]
	filter ecs.Filter3[components.Position, components.Velocity, components.Bird]

	slots        []slot
	observations [][]float64
	decisions    []decision
	population   int

	field *ObstacleField

	generation int
	tick       int
	score      int
	refIndex   int
	maxAge     int
	faults     int
	deaths     []Death
	outcome    Outcome
}

// New creates an arena with one agent per entrant at the configured start
// position. Entrant order is population order.
func New(settings Settings, generation int, entrants []Entrant, ledger FitnessLedger, rng *rand.Rand) (*Arena, error) {
	for _, e := range entrants {
		if e.Decide == nil {
			return nil, fmt.Errorf("agent %q: %w", e.ID, ErrNilDecision)
		}
	}

	world := ecs.NewWorld()
	a := &Arena{
		settings:     settings,
		ledger:       ledger,
		world:        world,
		birds:        ecs.NewMap3[components.Position, components.Velocity, components.Bird](world),
		filter:       *ecs.NewFilter3[components.Position, components.Velocity, components.Bird](world),
		slots:        make([]slot, 0, len(entrants)),
		observations: make([][]float64, len(entrants)),
		decisions:    make([]decision, len(entrants)),
		population:   len(entrants),
		field:        NewObstacleField(settings.Field, rng),
		generation:   generation,
	}

	for i, e := range entrants {
		pos := components.Position{X: settings.Body.StartX, Y: settings.Body.StartY}
		vel := components.Velocity{}
		bird := components.Bird{ID: e.ID, Index: i}
		entity := a.birds.NewEntity(&pos, &vel, &bird)
		a.slots = append(a.slots, slot{entity: entity, id: e.ID, decide: e.Decide})
		a.observations[i] = make([]float64, ObservationSize)
	}

	if len(a.slots) == 0 {
		a.outcome = Extinct
	}
	return a, nil
}

// Step advances the simulation by one tick and returns the resulting report.
// Stepping a finished arena only returns its final report.
func (a *Arena) Step() Report {
	if a.outcome != Running {
		return a.Report()
	}
	a.tick++
	a.deaths = a.deaths[:0]

	a.refIndex = a.referenceIndex()
	a.advanceAgents()
	a.dispatch()

	a.removeDead(a.resolveCollisions())

	passed := a.detectPasses()
	removals := a.field.Tick()
	if passed {
		a.score++
		reward := a.settings.Rewards.Milestone(a.score)
		for _, s := range a.slots {
			a.ledger.Credit(s.id, reward, CreditMilestone)
		}
		a.field.MaybeSpawn(true)
	}
	a.field.Remove(removals)

	a.outcome = a.checkTerminal()
	return a.Report()
}

// Abort ends the generation immediately.
func (a *Arena) Abort() {
	if a.outcome == Running {
		a.outcome = Aborted
	}
}

// referenceIndex picks the obstacle the whole population observes this
// tick. Once the lead agent is past obstacle 0, everyone looks at obstacle 1.
func (a *Arena) referenceIndex() int {
	if len(a.slots) == 0 || a.field.Len() < 2 {
		return 0
	}
	pos, _, _ := a.birds.Get(a.slots[0].entity)
	if pos.X > a.field.At(0).RightEdge() {
		return 1
	}
	return 0
}

// advanceAgents applies physics to every alive agent.
func (a *Arena) advanceAgents() {
	body := a.settings.Body
	query := a.filter.Query()
	for query.Next() {
		pos, vel, bird := query.Get()
		body.Advance(pos, vel)
		bird.Age++
		if bird.Age > a.maxAge {
			a.maxAge = bird.Age
		}
	}
}

// dispatch credits survival, builds observations, evaluates decisions and
// applies jumps, all in population order.
func (a *Arena) dispatch() {
	var ref *Obstacle
	if a.field.Len() > a.refIndex {
		ref = a.field.At(a.refIndex)
	}

	for i, s := range a.slots {
		pos, _, _ := a.birds.Get(s.entity)
		a.ledger.Credit(s.id, a.settings.Rewards.Survival(a.score, pos.Y), CreditSurvival)
		observe(a.observations[i], pos.Y, ref)
	}

	a.evaluateAll()

	for i, s := range a.slots {
		_, vel, bird := a.birds.Get(s.entity)
		d := a.decisions[i]
		if d.err != nil {
			bird.Faults++
			bird.Jumped = false
			a.faults++
			slog.Debug("decision fault",
				"generation", a.generation,
				"tick", a.tick,
				"agent", s.id,
				"error", d.err,
			)
			continue
		}
		bird.LastOutput = d.output
		bird.Jumped = d.output > a.settings.JumpThreshold
		if bird.Jumped {
			a.settings.Body.Jump(vel)
		}
	}
}

// observe fills obs for an agent at height y against ref.
func observe(obs []float64, y float64, ref *Obstacle) {
	obs[0] = y
	if ref == nil {
		obs[1], obs[2] = 0, 0
		return
	}
	obs[1] = abs(y - ref.GapTop())
	obs[2] = abs(y - ref.GapBottom())
}

// resolveCollisions tests every alive agent against the obstacles at their
// current, not yet advanced, positions and applies terminal penalties.
// Returns slot indices of the dead in ascending order.
func (a *Arena) resolveCollisions() []int {
	var dead []int
	body := a.settings.Body
	penalty := a.settings.Rewards.Penalty(a.score)
	obstacles := a.field.Obstacles()

	for i, s := range a.slots {
		pos, _, bird := a.birds.Get(s.entity)
		shape := body.Shape(*pos)
		died := false
		cause := CreditCollision

		for _, o := range obstacles {
			if o.CollidesWith(shape) {
				a.ledger.Credit(s.id, -penalty, CreditCollision)
				died = true
				break
			}
		}
		if body.OutOfBounds(*pos, a.settings.FloorY) {
			a.ledger.Credit(s.id, -penalty, CreditBoundary)
			if !died {
				cause = CreditBoundary
			}
			died = true
		}

		if died {
			dead = append(dead, i)
			a.deaths = append(a.deaths, Death{
				ID:    s.id,
				Tick:  a.tick,
				Age:   bird.Age,
				Score: a.score,
				Cause: cause,
				Y:     pos.Y,
			})
		}
	}
	return dead
}

// removeDead drops dead agents from the world and from dispatch. Removal
// happens after the collision pass so iteration order is unaffected.
func (a *Arena) removeDead(dead []int) {
	if len(dead) == 0 {
		return
	}
	for _, i := range dead {
		a.world.RemoveEntity(a.slots[i].entity)
	}

	kept := a.slots[:0]
	next := 0
	for i, s := range a.slots {
		if next < len(dead) && dead[next] == i {
			next++
			continue
		}
		kept = append(kept, s)
	}
	a.slots = kept
}

// detectPasses marks obstacles that some alive agent has moved beyond and
// reports whether any flipped this tick. Several flips in one tick still
// count as a single pass event: one point and one spawn.
func (a *Arena) detectPasses() bool {
	passed := false
	for _, o := range a.field.Obstacles() {
		if o.Passed {
			continue
		}
		for _, s := range a.slots {
			pos, _, _ := a.birds.Get(s.entity)
			if pos.X > o.X {
				o.Passed = true
				passed = true
				break
			}
		}
	}
	return passed
}

func (a *Arena) checkTerminal() Outcome {
	switch {
	case len(a.slots) == 0:
		return Extinct
	case a.settings.ScoreCap > 0 && a.score > a.settings.ScoreCap:
		return ScoreCap
	case a.settings.MaxTicks > 0 && a.tick >= a.settings.MaxTicks:
		return TickLimit
	}
	return Running
}

// Report builds the renderable snapshot of the current state.
func (a *Arena) Report() Report {
	r := Report{
		Generation: a.generation,
		Tick:       a.tick,
		Score:      a.score,
		Alive:      len(a.slots),
		Population: a.population,
		RefIndex:   a.refIndex,
		MaxAge:     a.maxAge,
		Faults:     a.faults,
		Agents:     make([]AgentView, 0, len(a.slots)),
		Obstacles:  make([]ObstacleView, 0, a.field.Len()),
		Terminal:   a.outcome != Running,
		Outcome:    a.outcome,
	}
	if len(a.deaths) > 0 {
		r.Deaths = append([]Death(nil), a.deaths...)
	}
	for _, s := range a.slots {
		pos, vel, bird := a.birds.Get(s.entity)
		r.Agents = append(r.Agents, AgentView{
			ID:     s.id,
			X:      pos.X,
			Y:      pos.Y,
			VY:     vel.Y,
			Output: bird.LastOutput,
			Jumped: bird.Jumped,
			Age:    bird.Age,
		})
	}
	for _, o := range a.field.Obstacles() {
		r.Obstacles = append(r.Obstacles, ObstacleView{
			X:         o.X,
			Width:     o.Width,
			GapTop:    o.GapTop(),
			GapBottom: o.GapBottom(),
			Passed:    o.Passed,
		})
	}
	return r
}

// Score returns the shared score.
func (a *Arena) Score() int { return a.score }

// Tick returns the number of completed ticks.
func (a *Arena) Tick() int { return a.tick }

// Alive returns the number of alive agents.
func (a *Arena) Alive() int { return len(a.slots) }

// RefIndex returns the reference obstacle index used in the last tick.
func (a *Arena) RefIndex() int { return a.refIndex }

// Outcome returns the current outcome; Running until the generation ends.
func (a *Arena) Outcome() Outcome { return a.outcome }

// Field exposes the obstacle field.
func (a *Arena) Field() *ObstacleField { return a.field }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
