package ui

import "testing"

func TestPanelOrigin(t *testing.T) {
	tests := []struct {
		anchor PanelAnchor
		x, y   int32
	}{
		{AnchorTopLeft, 10, 10},
		{AnchorTopRight, 400 - 100 - 10, 10},
		{AnchorBottomLeft, 10, 700 - 50 - 10},
		{AnchorBottomRight, 290, 640},
		{AnchorCenter, 150, 325},
	}
	for _, tt := range tests {
		x, y := PanelOrigin(tt.anchor, 100, 50, 400, 700, 10)
		if x != tt.x || y != tt.y {
			t.Errorf("anchor %d: got (%d, %d), want (%d, %d)", tt.anchor, x, y, tt.x, tt.y)
		}
	}
}

func TestPanelHeightSkipsHiddenFields(t *testing.T) {
	r := NewRenderer()
	th := r.Theme
	pd := AgentOverlayPanel(700)

	// Title, 1 text + 1 bar + 1 text + 1 bar, header + bar + text + swatch.
	want := 2*th.Padding + th.LineHeight + 4 +
		(th.LineHeight + (th.LineHeight + 2) + th.LineHeight + (th.LineHeight + 2) + 4) +
		(th.LineHeight + (th.LineHeight + 2) + th.LineHeight + th.LineHeight + 4)
	if got := r.PanelHeight(pd, AgentOverlayData{}); got != want {
		t.Errorf("PanelHeight = %d, want %d", got, want)
	}

	pd.Sections[1].Visible = func(any) bool { return false }
	short := r.PanelHeight(pd, AgentOverlayData{})
	if short >= want {
		t.Errorf("hiding a section should shrink the panel: %d >= %d", short, want)
	}
}

func TestBarFractions(t *testing.T) {
	if got := normalize(350, FieldRange{Min: 0, Max: 700}); got != 0.5 {
		t.Errorf("normalize = %v, want 0.5", got)
	}
	if got := normalize(-5, DefaultRange()); got != 0 {
		t.Errorf("normalize should clamp, got %v", got)
	}
	if got := centeredFraction(-7.5, FieldRange{Min: -15, Max: 15}); got != 0.5 {
		t.Errorf("centeredFraction = %v, want 0.5", got)
	}
	if got := centeredFraction(3, CenteredRange()); got != 1 {
		t.Errorf("centeredFraction should clamp, got %v", got)
	}
}
