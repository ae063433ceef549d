package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// AgentOverlayData is what the play overlay shows about the agent.
type AgentOverlayData struct {
	FPS          int32
	Height       float64 // Distance above the floor
	PipeDistance float64 // Horizontal distance to the reference obstacle
	HasPipe      bool
	Velocity     float64
	Output       float64
	Jumped       bool
	Color        rl.Color
}

func overlayData(data any) AgentOverlayData {
	d, _ := data.(AgentOverlayData)
	return d
}

// AgentOverlayPanel describes the TAB overlay.
func AgentOverlayPanel(worldHeight float64) PanelDescriptor {
	return PanelDescriptor{
		Title:  "Agent",
		Width:  230,
		Anchor: AnchorTopRight,
		Sections: []SectionDescriptor{
			{
				Fields: []FieldDescriptor{
					{Label: "FPS", Widget: WidgetText, Format: "%.0f",
						Getter: func(d any) float32 { return float32(overlayData(d).FPS) }},
					{Label: "Height", Widget: WidgetBar, Range: FieldRange{Min: 0, Max: float32(worldHeight)},
						Getter: func(d any) float32 { return float32(overlayData(d).Height) }},
					{Label: "Pipe", Widget: WidgetText,
						TextGetter: func(d any) string {
							o := overlayData(d)
							if !o.HasPipe {
								return "-"
							}
							return fmt.Sprintf("%.0f", o.PipeDistance)
						}},
					{Label: "Velocity", Widget: WidgetCenteredBar, Range: FieldRange{Min: -15, Max: 15},
						Getter: func(d any) float32 { return float32(overlayData(d).Velocity) }},
				},
			},
			{
				Title: "Network",
				Fields: []FieldDescriptor{
					{Label: "Output", Widget: WidgetCenteredBar, Range: CenteredRange(),
						Getter: func(d any) float32 { return float32(overlayData(d).Output) }},
					{Label: "Jump", Widget: WidgetText,
						TextGetter: func(d any) string {
							if overlayData(d).Jumped {
								return "yes"
							}
							return "no"
						}},
					{Label: "Species", Widget: WidgetColorSwatch,
						ColorGetter: func(d any) rl.Color { return overlayData(d).Color }},
				},
			},
		},
	}
}
