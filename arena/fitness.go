package arena

import (
	"math"

	"github.com/pthm-cable/flappy/config"
)

// Reason tags a fitness credit with its cause.
type Reason uint8

const (
	CreditSurvival  Reason = iota // Per-tick shaping reward
	CreditMilestone               // Reward for the population clearing an obstacle
	CreditCollision               // Penalty for hitting an obstacle
	CreditBoundary                // Penalty for leaving the world
)

var reasonNames = [...]string{"survival", "milestone", "collision", "boundary"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// FitnessLedger receives every fitness delta the arena produces.
type FitnessLedger interface {
	Credit(id string, delta float64, reason Reason)
}

// Rewards is the fitness schedule.
type Rewards struct {
	SurvivalReward   float64
	EarlyBonus       float64
	EarlyBonusUntil  int
	HeightReward     float64
	HalfHeight       float64
	MilestoneBase    float64
	MilestoneStep    int
	PenaltyEarly     float64
	PenaltyLate      float64
	PenaltyThreshold int
}

// NewRewards builds the schedule from config.
func NewRewards(cfg *config.Config) Rewards {
	f := cfg.Fitness
	return Rewards{
		SurvivalReward:   f.SurvivalReward,
		EarlyBonus:       f.EarlyBonus,
		EarlyBonusUntil:  f.EarlyBonusUntil,
		HeightReward:     f.HeightReward,
		HalfHeight:       cfg.Derived.HalfHeight,
		MilestoneBase:    f.MilestoneBase,
		MilestoneStep:    f.MilestoneStep,
		PenaltyEarly:     f.PenaltyEarly,
		PenaltyLate:      f.PenaltyLate,
		PenaltyThreshold: f.PenaltyThreshold,
	}
}

// Survival is the combined per-tick reward for an alive agent at height y.
// The height term goes negative once the agent is farther than HalfHeight
// from the center, which happens above the ceiling.
func (r Rewards) Survival(score int, y float64) float64 {
	delta := r.SurvivalReward
	if score < r.EarlyBonusUntil {
		delta += r.EarlyBonus * (1 - float64(score)/float64(r.EarlyBonusUntil))
	}
	if r.HalfHeight > 0 {
		delta += r.HeightReward * (1 - math.Abs(y-r.HalfHeight)/r.HalfHeight)
	}
	return delta
}

// Milestone is the reward for reaching score, the value after the increment.
func (r Rewards) Milestone(score int) float64 {
	if r.MilestoneStep <= 0 {
		return r.MilestoneBase
	}
	return r.MilestoneBase + float64(score/r.MilestoneStep)
}

// Penalty is the magnitude of a terminal penalty at the given score.
func (r Rewards) Penalty(score int) float64 {
	if score < r.PenaltyThreshold {
		return r.PenaltyEarly
	}
	return r.PenaltyLate
}
