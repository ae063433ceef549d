package spectate

import (
	"encoding/json"
	"log/slog"

	"github.com/pthm-cable/flappy/arena"
	"github.com/pthm-cable/flappy/telemetry"
)

// Message types sent to spectators.
const (
	TypeTick       = "tick"
	TypeGeneration = "generation"
)

// Message is the envelope of every frame sent to a spectator.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Publisher accepts encoded messages. Hub is the usual implementation.
type Publisher interface {
	Publish(msg []byte)
}

// Observer forwards reports to a publisher, one frame every n ticks plus
// every terminal frame. It implements game.Observer and receives
// generation statistics from the trainer.
type Observer struct {
	pub   Publisher
	every int

	lastGen  int
	lastTick int
}

// NewObserver creates an observer that publishes every n-th tick.
func NewObserver(pub Publisher, every int) *Observer {
	if every < 1 {
		every = 1
	}
	return &Observer{pub: pub, every: every, lastTick: -1}
}

// Observe publishes r when it is due. A frame repeated while a finished
// run waits for restart is sent once.
func (o *Observer) Observe(r arena.Report) {
	if r.Generation == o.lastGen && r.Tick == o.lastTick {
		return
	}
	if !r.Terminal && r.Tick%o.every != 0 {
		return
	}
	if !o.listening() {
		return
	}
	o.lastGen, o.lastTick = r.Generation, r.Tick
	o.send(Message{Type: TypeTick, Data: r})
}

// ObserveGeneration publishes the statistics of a finished generation.
func (o *Observer) ObserveGeneration(s telemetry.GenerationStats) {
	if !o.listening() {
		return
	}
	o.send(Message{Type: TypeGeneration, Data: s})
}

func (o *Observer) listening() bool {
	if c, ok := o.pub.(interface{ ClientCount() int }); ok {
		return c.ClientCount() > 0
	}
	return true
}

func (o *Observer) send(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Warn("encoding spectator message", "type", m.Type, "error", err)
		return
	}
	o.pub.Publish(data)
}
