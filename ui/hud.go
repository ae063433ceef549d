package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flappy/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Generation int
	Score      int
	Alive      int
	Population int
	TimeSec    float64 // Longest time alive this generation
	Speed      int     // Ticks per drawn frame
	GameOver   bool
	Outcome    string
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData, screenW, screenH int32) {
	score := fmt.Sprintf("%d", data.Score)
	rl.DrawText(score, (screenW-rl.MeasureText(score, 48))/2, 40, 48, rl.White)

	rl.DrawText(fmt.Sprintf("Gen: %d", data.Generation), 10, 10, 20, rl.White)
	rl.DrawText(fmt.Sprintf("Alive: %d/%d", data.Alive, data.Population), 10, 35, 16, rl.LightGray)
	rl.DrawText(fmt.Sprintf("Time: %.1fs", data.TimeSec), 10, 55, 16, rl.LightGray)
	if data.Speed > 1 {
		rl.DrawText(fmt.Sprintf("Speed: %dx", data.Speed), 10, 75, 16, rl.LightGray)
	}

	if data.GameOver {
		const banner = "GAMEOVER"
		w := rl.MeasureText(banner, 40)
		rl.DrawRectangle(0, screenH/2-40, screenW, 80, rl.Color{R: 0, G: 0, B: 0, A: 160})
		rl.DrawText(banner, (screenW-w)/2, screenH/2-30, 40, rl.Red)
		if data.Outcome != "" {
			sub := data.Outcome
			rl.DrawText(sub, (screenW-rl.MeasureText(sub, 16))/2, screenH/2+14, 16, rl.LightGray)
		}
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenH int32, controls string) {
	rl.DrawText(controls, 10, screenH-20, 12, rl.Gray)
}

// PerfPanel renders the per-phase tick timing.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x, y := p.x, p.y

	rl.DrawText("Tick Performance", x, y, 14, rl.White)
	y += 18
	rl.DrawText(fmt.Sprintf("Avg: %s  TPS: %.0f  FPS: %.0f",
		stats.AvgTick.Round(time.Microsecond), stats.TicksPerSecond, stats.FPS), x, y, 12, rl.Yellow)
	y += 14

	for _, phase := range telemetry.Phases() {
		pct := stats.PhasePct[phase]
		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}
		rl.DrawText(fmt.Sprintf("%-10s %8s %5.1f%%", phase.String(), stats.PhaseAvg[phase].Round(time.Microsecond), pct), x, y, 12, color)
		y += 14
	}
}

// TrainingData holds data for the evolution stats panel.
type TrainingData struct {
	Generation      int
	SpeciesCount    int
	BestFitness     float64
	MeanFitness     float64
	ChampionFitness float64
	LastScore       int
	TopSpecies      []SpeciesInfo
}

// SpeciesInfo holds info about a single species.
type SpeciesInfo struct {
	ID      int
	Size    int
	Age     int
	BestFit float64
	Color   rl.Color
}

// TrainingPanel renders the evolution statistics of the last generation.
type TrainingPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	height   int32
}

// NewTrainingPanel creates a new training panel.
func NewTrainingPanel(x, y, width, height int32) *TrainingPanel {
	return &TrainingPanel{renderer: NewRenderer(), x: x, y: y, width: width, height: height}
}

// SetPosition updates the panel position.
func (n *TrainingPanel) SetPosition(x, y int32) {
	n.x = x
	n.y = y
}

// Draw renders the training panel.
func (n *TrainingPanel) Draw(data TrainingData) {
	r := n.renderer
	padding := r.Theme.Padding
	lineHeight := int32(16)

	r.DrawPanel(n.x, n.y, n.width, n.height)
	y := n.y + padding

	rl.DrawText("Evolution", n.x+padding, y, 16, rl.White)
	y += lineHeight + 4

	y = r.DrawLabelValue(n.x+padding, y, "Generation", fmt.Sprintf("%d", data.Generation))
	y = r.DrawLabelValue(n.x+padding, y, "Species", fmt.Sprintf("%d", data.SpeciesCount))
	y = r.DrawLabelValue(n.x+padding, y, "Best", fmt.Sprintf("%.1f", data.BestFitness))
	y = r.DrawLabelValue(n.x+padding, y, "Mean", fmt.Sprintf("%.1f", data.MeanFitness))
	y = r.DrawLabelValue(n.x+padding, y, "Champion", fmt.Sprintf("%.1f", data.ChampionFitness))
	y = r.DrawLabelValue(n.x+padding, y, "Score", fmt.Sprintf("%d", data.LastScore))
	y += 4

	if len(data.TopSpecies) == 0 {
		return
	}
	rl.DrawText("Top Species:", n.x+padding, y, 14, rl.Yellow)
	y += lineHeight + 2

	for i, sp := range data.TopSpecies {
		if i >= 5 || y+lineHeight > n.y+n.height {
			break
		}
		swatchSize := int32(10)
		rl.DrawRectangle(n.x+padding, y+2, swatchSize, swatchSize, sp.Color)
		text := fmt.Sprintf("#%d: %d members (age: %d, fit: %.0f)", sp.ID, sp.Size, sp.Age, sp.BestFit)
		rl.DrawText(text, n.x+padding+swatchSize+6, y, 12, rl.LightGray)
		y += lineHeight
	}
}
