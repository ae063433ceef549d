package main

import (
	"github.com/pthm-cable/flappy/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of NEAT parameters to tune.
// Population size, elitism and the distance coefficients stay fixed.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "weight_mut_power", Path: "neural.weight_mut_power", Min: 0.5, Max: 5.0, Default: 2.5},
			{Name: "add_node_prob", Path: "neural.mutate_add_node_prob", Min: 0.005, Max: 0.1, Default: 0.03},
			{Name: "add_link_prob", Path: "neural.mutate_add_link_prob", Min: 0.01, Max: 0.3, Default: 0.08},
			{Name: "link_weights_prob", Path: "neural.mutate_link_weights_prob", Min: 0.3, Max: 1.0, Default: 0.8},
			{Name: "mutate_only_prob", Path: "neural.mutate_only_prob", Min: 0.0, Max: 0.6, Default: 0.25},
			{Name: "compat_threshold", Path: "neural.compat_threshold", Min: 1.0, Max: 6.0, Default: 3.0},
			{Name: "survival_thresh", Path: "neural.survival_thresh", Min: 0.1, Max: 0.5, Default: 0.2},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	n := &cfg.Neural
	n.WeightMutPower = clamped[0]
	n.MutateAddNodeProb = clamped[1]
	n.MutateAddLinkProb = clamped[2]
	n.MutateLinkWeightsProb = clamped[3]
	n.MutateOnlyProb = clamped[4]
	n.CompatThreshold = clamped[5]
	n.SurvivalThresh = clamped[6]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	n := cfg.Neural
	return []float64{
		n.WeightMutPower,
		n.MutateAddNodeProb,
		n.MutateAddLinkProb,
		n.MutateLinkWeightsProb,
		n.MutateOnlyProb,
		n.CompatThreshold,
		n.SurvivalThresh,
	}
}

// EvalRow is one line of optimize_log.csv.
type EvalRow struct {
	Eval            int     `csv:"eval"`
	Fitness         float64 `csv:"fitness"`
	MeanScore       float64 `csv:"mean_score"`
	WeightMutPower  float64 `csv:"weight_mut_power"`
	AddNodeProb     float64 `csv:"add_node_prob"`
	AddLinkProb     float64 `csv:"add_link_prob"`
	LinkWeightsProb float64 `csv:"link_weights_prob"`
	MutateOnlyProb  float64 `csv:"mutate_only_prob"`
	CompatThreshold float64 `csv:"compat_threshold"`
	SurvivalThresh  float64 `csv:"survival_thresh"`
}

// NewEvalRow flattens an evaluation for CSV output. values must be clamped.
func NewEvalRow(eval int, fitness, meanScore float64, values []float64) EvalRow {
	return EvalRow{
		Eval:            eval,
		Fitness:         fitness,
		MeanScore:       meanScore,
		WeightMutPower:  values[0],
		AddNodeProb:     values[1],
		AddLinkProb:     values[2],
		LinkWeightsProb: values[3],
		MutateOnlyProb:  values[4],
		CompatThreshold: values[5],
		SurvivalThresh:  values[6],
	}
}
