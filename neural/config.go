package neural

import (
	"github.com/yaricom/goNEAT/v4/neat"

	"github.com/pthm-cable/flappy/config"
)

// SensorInputs is the number of observation values fed to a brain.
const SensorInputs = 3

// BrainInputs is the number of sensor nodes including the bias node.
const BrainInputs = SensorInputs + 1

// BrainOutputs is the number of outputs from the brain network.
const BrainOutputs = 1

// biasValue is loaded into the bias sensor every activation.
const biasValue = 1.0

// DefaultNEATOptions returns NEAT options tuned for the flappy population.
func DefaultNEATOptions() *neat.Options {
	return &neat.Options{
		// Weight mutation
		WeightMutPower: 2.5,

		// Structural mutation rates
		MutateAddNodeProb:      0.03,
		MutateAddLinkProb:      0.08,
		MutateToggleEnableProb: 0.01,

		// Weight mutation probability
		MutateLinkWeightsProb: 0.8,
		MutateOnlyProb:        0.25,

		// Mating probabilities
		MateMultipointProb: 1.0,
		MateOnlyProb:       0.2,
		RecurOnlyProb:      0.0,

		// Speciation
		CompatThreshold: 3.0,
		DisjointCoeff:   1.0,
		ExcessCoeff:     1.0,
		MutdiffCoeff:    0.5,

		// Species management
		DropOffAge:      20,
		SurvivalThresh:  0.2,
		AgeSignificance: 1.0,

		PopSize: 50,
	}
}

// NEATOptions converts the neural config section into goNEAT options.
func NEATOptions(cfg config.NeuralConfig) *neat.Options {
	opts := DefaultNEATOptions()
	opts.PopSize = cfg.PopulationSize
	opts.WeightMutPower = cfg.WeightMutPower
	opts.MutateAddNodeProb = cfg.MutateAddNodeProb
	opts.MutateAddLinkProb = cfg.MutateAddLinkProb
	opts.MutateToggleEnableProb = cfg.MutateToggleProb
	opts.MutateLinkWeightsProb = cfg.MutateLinkWeightsProb
	opts.MutateOnlyProb = cfg.MutateOnlyProb
	opts.MateOnlyProb = cfg.MateOnlyProb
	opts.CompatThreshold = cfg.CompatThreshold
	opts.DisjointCoeff = cfg.DisjointCoeff
	opts.ExcessCoeff = cfg.ExcessCoeff
	opts.MutdiffCoeff = cfg.MutdiffCoeff
	opts.DropOffAge = cfg.DropOffAge
	opts.SurvivalThresh = cfg.SurvivalThresh
	return opts
}
