// Package generator draws randomized alarm conditions for trials.
package generator

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/adamsim/internal/model"
	"github.com/verte-zerg/adamsim/internal/sim"
)

// Generator produces randomized trial inputs from a seeded source.
type Generator struct {
	rnd  *rand.Rand
	seed int64
}

// New returns a Generator for seed. A zero seed is replaced by the current
// time.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), seed: seed}
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Severity draws a uniform severity in [1,5].
func (g *Generator) Severity() int {
	return model.MinSeverity + g.rnd.Intn(model.MaxSeverity-model.MinSeverity+1)
}

// Arrival draws a uniform arrival second in [0,horizon).
func (g *Generator) Arrival(horizonSec int) int {
	if horizonSec <= 0 {
		return 0
	}
	return g.rnd.Intn(horizonSec)
}

// Jitter draws a uniform task-time jitter in [0,maxSec). It makes Generator
// the sim.Rand of an engine.
func (g *Generator) Jitter(maxSec float64) float64 {
	if maxSec <= 0 {
		return 0
	}
	return g.rnd.Float64() * maxSec
}

// Trial draws params.Conditions conditions with uniform severities and
// arrivals.
func (g *Generator) Trial(name string, params model.TrialParams) sim.Trial {
	conds := make([]sim.Condition, 0, params.Conditions)
	for i := 0; i < params.Conditions; i++ {
		conds = append(conds, sim.NewCondition(i, g.Severity(), g.Arrival(params.HorizonSec)))
	}
	return sim.NewTrial(name, conds)
}

// TrialSeed derives the seed of trial index i from a run seed. The same index
// yields the same seed for every policy, so policies are compared on
// identical condition sets.
func TrialSeed(runSeed int64, i int) int64 {
	z := uint64(runSeed) + uint64(i+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	s := int64(z >> 1)
	if s == 0 {
		s = 1
	}
	return s
}
