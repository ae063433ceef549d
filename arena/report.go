package arena

// Outcome describes why a generation is (or is not yet) over.
type Outcome uint8

const (
	Running   Outcome = iota
	Extinct           // Every agent died
	ScoreCap          // Score exceeded the configured cap
	Aborted           // Quit or restart signal
	TickLimit         // Safety valve reached
)

var outcomeNames = [...]string{"running", "extinct", "score_cap", "aborted", "tick_limit"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// AgentView is the renderable state of one alive agent.
type AgentView struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VY     float64 `json:"vy"`
	Output float64 `json:"output"`
	Jumped bool    `json:"jumped"`
	Age    int     `json:"age"`
}

// ObstacleView is the renderable state of one obstacle.
type ObstacleView struct {
	X         float64 `json:"x"`
	Width     float64 `json:"width"`
	GapTop    float64 `json:"gap_top"`
	GapBottom float64 `json:"gap_bottom"`
	Passed    bool    `json:"passed"`
}

// Report is the per-tick snapshot handed to renderers and observers.
type Report struct {
	Generation int            `json:"generation"`
	Tick       int            `json:"tick"`
	Score      int            `json:"score"`
	Alive      int            `json:"alive"`
	Population int            `json:"population"`
	RefIndex   int            `json:"ref_index"`
	MaxAge     int            `json:"max_age"`
	Faults     int            `json:"faults"`
	Agents     []AgentView    `json:"agents"`
	Obstacles  []ObstacleView `json:"obstacles"`
	Deaths     []Death        `json:"deaths,omitempty"`
	Terminal   bool           `json:"terminal"`
	Outcome    Outcome        `json:"outcome"`
}

// Death records an agent removed during a tick.
type Death struct {
	ID    string  `json:"id"`
	Tick  int     `json:"tick"`
	Age   int     `json:"age"`
	Score int     `json:"score"`
	Cause Reason  `json:"cause"`
	Y     float64 `json:"y"`
}
