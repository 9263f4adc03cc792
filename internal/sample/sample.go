// Package sample draws reproducible scenario cohorts from an intent's
// scenario pool. Sampling is seeded so dry-run and live runs over the same
// pool stay comparable.
package sample

import (
	"math/rand"

	"relgate/internal/intent"
)

// DefaultSeed is used when the caller does not override the seed. Fixed so
// repeated pipeline runs sample the same cohort.
const DefaultSeed int64 = 1746

// CanarySeed is the default seed for canary cohorts. Distinct from
// DefaultSeed so the canary cohort is independent of the gate-test sample.
const CanarySeed int64 = 9271

// Set is an ordered scenario cohort drawn from one intent.
type Set struct {
	IntentID  string            `json:"intent_id"`
	Version   string            `json:"version"`
	Seed      int64             `json:"seed"`
	Requested int               `json:"requested"`
	Truncated bool              `json:"truncated,omitempty"`
	Scenarios []intent.Scenario `json:"scenarios"`
}

// IDs returns the cohort's scenario ids in sample order.
func (s Set) IDs() []string {
	ids := make([]string, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		ids[i] = sc.ID
	}
	return ids
}

// Draw samples n scenarios without replacement: seeded uniform shuffle, then
// first n. The same (pool, seed, n) always yields the same Set. If n exceeds
// the pool size the full pool is returned with Truncated set; that is not an
// error.
func Draw(spec *intent.Spec, n int, seed int64) Set {
	pool := make([]intent.Scenario, len(spec.Scenarios))
	copy(pool, spec.Scenarios)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	set := Set{
		IntentID:  spec.ID,
		Version:   spec.Version,
		Seed:      seed,
		Requested: n,
	}
	if n >= len(pool) {
		set.Truncated = n > len(pool)
		set.Scenarios = pool
		return set
	}
	set.Scenarios = pool[:n]
	return set
}

// Full returns the entire scenario pool in document order, for stages that
// run every scenario (the live test stage).
func Full(spec *intent.Spec) Set {
	pool := make([]intent.Scenario, len(spec.Scenarios))
	copy(pool, spec.Scenarios)
	return Set{
		IntentID:  spec.ID,
		Version:   spec.Version,
		Requested: len(pool),
		Scenarios: pool,
	}
}
