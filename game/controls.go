package game

// Signals is one poll of user or host input.
type Signals struct {
	Quit          bool
	Restart       bool
	ToggleOverlay bool
}

// Controls is polled once per tick.
type Controls interface {
	Poll() Signals
}

// NoControls never signals anything.
type NoControls struct{}

// Poll implements Controls.
func (NoControls) Poll() Signals { return Signals{} }

// ControlsFunc adapts a function to Controls.
type ControlsFunc func() Signals

// Poll calls f.
func (f ControlsFunc) Poll() Signals { return f() }

// MultiControls merges the signals of several input sources.
type MultiControls []Controls

// Poll polls every source and ORs the results.
func (m MultiControls) Poll() Signals {
	var sig Signals
	for _, c := range m {
		s := c.Poll()
		sig.Quit = sig.Quit || s.Quit
		sig.Restart = sig.Restart || s.Restart
		sig.ToggleOverlay = sig.ToggleOverlay || s.ToggleOverlay
	}
	return sig
}
