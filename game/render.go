package game

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/config"
	"github.com/pthm-cable/flappy/telemetry"
	"github.com/pthm-cable/flappy/ui"
)

// ColorFunc picks the draw color of an agent.
type ColorFunc func(agentID string) rl.Color

var (
	skyColor    = rl.Color{R: 78, G: 192, B: 202, A: 255}
	groundColor = rl.Color{R: 222, G: 216, B: 149, A: 255}
	pipeColor   = rl.Color{R: 96, G: 176, B: 56, A: 255}
	pipeEdge    = rl.Color{R: 40, G: 90, B: 20, A: 255}
	birdColor   = rl.Color{R: 250, G: 210, B: 60, A: 255}
)

const maxSpeed = 32

// Renderer draws tick reports into the raylib window and reads keyboard
// input. It implements both Observer and Controls; the window must be open
// before the first report arrives.
//
// Keys: R restarts (play mode), TAB toggles the overlay, < and > change
// how many ticks pass per drawn frame (training mode).
type Renderer struct {
	cfg    *config.Config
	play   bool
	scaleX float32
	scaleY float32

	color ColorFunc
	perf  *telemetry.PerfCollector

	hud        *ui.HUD
	widgets    *ui.Renderer
	overlay    ui.PanelDescriptor
	perfPanel  *ui.PerfPanel
	trainPanel *ui.TrainingPanel

	showOverlay bool
	speed       int
	pending     Signals
	training    ui.TrainingData
	tickRate    int
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithColors sets the agent color source.
func WithColors(f ColorFunc) RendererOption {
	return func(r *Renderer) { r.color = f }
}

// WithRenderPerf shows the collector's stats in the overlay and records frame times.
func WithRenderPerf(p *telemetry.PerfCollector) RendererOption {
	return func(r *Renderer) { r.perf = p }
}

// NewRenderer creates a renderer. play selects single-agent mode, which
// enables restart and uses the play tick rate for the time display.
func NewRenderer(cfg *config.Config, play bool, opts ...RendererOption) *Renderer {
	r := &Renderer{
		cfg:        cfg,
		play:       play,
		scaleX:     cfg.Derived.ScaleX,
		scaleY:     cfg.Derived.ScaleY,
		hud:        ui.NewHUD(),
		widgets:    ui.NewRenderer(),
		overlay:    ui.AgentOverlayPanel(cfg.World.FloorY),
		perfPanel:  ui.NewPerfPanel(10, int32(cfg.Screen.Height)-110),
		trainPanel: ui.NewTrainingPanel(int32(cfg.Screen.Width)-250, 10, 240, 230),
		speed:      1,
		tickRate:   cfg.Training.TickRate,
	}
	if play {
		r.tickRate = cfg.Play.TickRate
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTrainingData replaces the evolution panel contents.
func (r *Renderer) SetTrainingData(d ui.TrainingData) {
	r.training = d
}

// SetTopSpecies replaces the species list of the evolution panel.
func (r *Renderer) SetTopSpecies(species []ui.SpeciesInfo) {
	r.training.TopSpecies = species
}

// ObserveGeneration updates the evolution panel from a finished generation.
func (r *Renderer) ObserveGeneration(s telemetry.GenerationStats) {
	r.training.Generation = s.Generation
	r.training.SpeciesCount = s.Species
	r.training.BestFitness = s.BestFitness
	r.training.MeanFitness = s.MeanFitness
	r.training.LastScore = s.Score
}

// SetChampionFitness sets the best fitness of the run so far.
func (r *Renderer) SetChampionFitness(f float64) {
	r.training.ChampionFitness = f
}

// Observe draws one frame. In training mode only every speed-th tick is
// drawn; the terminal frame always is.
func (r *Renderer) Observe(rep arena.Report) {
	if !r.play && r.speed > 1 && !rep.Terminal && rep.Tick%r.speed != 0 {
		return
	}
	r.perf.RecordFrame()

	rl.BeginDrawing()
	rl.ClearBackground(skyColor)

	r.drawObstacles(rep.Obstacles)
	r.drawGround()
	r.drawAgents(rep.Agents)

	screenW := int32(r.cfg.Screen.Width)
	screenH := int32(r.cfg.Screen.Height)
	r.hud.Draw(ui.HUDData{
		Generation: rep.Generation,
		Score:      rep.Score,
		Alive:      rep.Alive,
		Population: rep.Population,
		TimeSec:    r.seconds(rep.MaxAge),
		Speed:      r.speed,
		GameOver:   rep.Terminal,
		Outcome:    rep.Outcome.String(),
	}, screenW, screenH)

	if r.showOverlay {
		if r.play {
			r.widgets.DrawDescribedPanel(r.overlay, r.overlayData(rep), screenW, screenH)
		} else {
			r.trainPanel.Draw(r.training)
		}
		if r.perf != nil {
			r.perfPanel.Draw(r.perf.Stats())
		}
	}

	if r.play {
		if rep.Terminal && gui.Button(rl.Rectangle{X: float32(screenW)/2 - 60, Y: float32(screenH)/2 + 50, Width: 120, Height: 30}, "Restart") {
			r.pending.Restart = true
		}
		r.hud.DrawControls(screenH, "[R] restart  [TAB] overlay")
	} else {
		r.hud.DrawControls(screenH, "[TAB] stats  [</>] speed")
	}

	rl.EndDrawing()
}

// Poll implements Controls.
func (r *Renderer) Poll() Signals {
	sig := r.pending
	r.pending = Signals{}

	if rl.WindowShouldClose() {
		sig.Quit = true
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		r.showOverlay = !r.showOverlay
		sig.ToggleOverlay = true
	}
	if r.play {
		if rl.IsKeyPressed(rl.KeyR) {
			sig.Restart = true
		}
		return sig
	}

	if rl.IsKeyPressed(rl.KeyComma) && r.speed > 1 {
		r.speed /= 2
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && r.speed < maxSpeed {
		r.speed *= 2
	}
	return sig
}

func (r *Renderer) drawObstacles(obstacles []arena.ObstacleView) {
	for _, o := range obstacles {
		x := int32(float32(o.X) * r.scaleX)
		w := int32(float32(o.Width) * r.scaleX)
		length := r.cfg.Obstacle.Length

		topY := int32(float32(o.GapTop-length) * r.scaleY)
		h := int32(float32(length) * r.scaleY)
		rl.DrawRectangle(x, topY, w, h, pipeColor)
		rl.DrawRectangleLines(x, topY, w, h, pipeEdge)

		bottomY := int32(float32(o.GapBottom) * r.scaleY)
		rl.DrawRectangle(x, bottomY, w, h, pipeColor)
		rl.DrawRectangleLines(x, bottomY, w, h, pipeEdge)
	}
}

func (r *Renderer) drawGround() {
	y := int32(float32(r.cfg.World.FloorY) * r.scaleY)
	rl.DrawRectangle(0, y, int32(r.cfg.Screen.Width), int32(r.cfg.Screen.Height)-y, groundColor)
}

func (r *Renderer) drawAgents(agents []arena.AgentView) {
	w := float32(r.cfg.Agent.Width) * r.scaleX
	h := float32(r.cfg.Agent.Height) * r.scaleY
	for _, a := range agents {
		c := birdColor
		if r.color != nil {
			c = r.color(a.ID)
		}
		c.A = 200

		// Agents are positioned by their top-left corner.
		cx := float32(a.X)*r.scaleX + w/2
		cy := float32(a.Y)*r.scaleY + h/2
		rl.DrawEllipse(int32(cx), int32(cy), w/2, h/2, c)
		rl.DrawEllipseLines(int32(cx), int32(cy), w/2, h/2, rl.Black)
		if a.Jumped {
			rl.DrawCircle(int32(cx+w/4), int32(cy-h/4), 3, rl.White)
		}
	}
}

func (r *Renderer) overlayData(rep arena.Report) ui.AgentOverlayData {
	d := ui.AgentOverlayData{FPS: rl.GetFPS(), Color: birdColor}
	if len(rep.Agents) == 0 {
		return d
	}
	a := rep.Agents[0]
	d.Height = r.cfg.World.FloorY - (a.Y + r.cfg.Agent.Height)
	d.Velocity = a.VY
	d.Output = a.Output
	d.Jumped = a.Jumped
	if r.color != nil {
		d.Color = r.color(a.ID)
	}
	if rep.RefIndex >= 0 && rep.RefIndex < len(rep.Obstacles) {
		d.PipeDistance = rep.Obstacles[rep.RefIndex].X - a.X
		d.HasPipe = true
	}
	return d
}

func (r *Renderer) seconds(ticks int) float64 {
	if r.tickRate <= 0 {
		return 0
	}
	return float64(ticks) / float64(r.tickRate)
}

// String describes the renderer mode for logs.
func (r *Renderer) String() string {
	mode := "training"
	if r.play {
		mode = "play"
	}
	return fmt.Sprintf("raylib renderer (%s, %dx%d)", mode, r.cfg.Screen.Width, r.cfg.Screen.Height)
}
