package match

import (
	"fmt"
	"math"
	"sort"
)

// ComputeDecoyQValues estimates q-values by target-decoy competition. The
// target and decoy collections are pooled, typically holding the top match
// per spectrum. Walking from the best score down, the FDR at each score is
// decoys/targets seen so far, capped at 1; q-values are the running minimum
// of the FDR from the worst score up. Tied scores share one q-value. Results
// are stored as DecoyXCorrQValue on every match holding t, and that type is
// registered on both collections.
func ComputeDecoyQValues(target, decoy *Collection, t ScoreType) error {
	if !target.registered[t] {
		return fmt.Errorf("target: %w: %s", ErrScoreTypeNotRegistered, t)
	}
	if !decoy.registered[t] {
		return fmt.Errorf("decoy: %w: %s", ErrScoreTypeNotRegistered, t)
	}

	var pooled []*Match
	for _, m := range target.matches {
		if m.HasScore(t) {
			pooled = append(pooled, m)
		}
	}
	for _, m := range decoy.matches {
		if m.HasScore(t) {
			pooled = append(pooled, m)
		}
	}
	sort.SliceStable(pooled, func(i, j int) bool {
		return Compare(pooled[i], pooled[j], t) < 0
	})

	fdr := make([]float64, len(pooled))
	targets, decoys := 0, 0
	for i := 0; i < len(pooled); {
		// Advance over the whole group of tied scores before computing the FDR.
		j := i
		for j < len(pooled) && (j == i || sameScore(pooled[j].scores[t], pooled[i].scores[t])) {
			if pooled[j].Decoy {
				decoys++
			} else {
				targets++
			}
			j++
		}
		f := 1.0
		if targets > 0 {
			f = min(float64(decoys)/float64(targets), 1)
		}
		for k := i; k < j; k++ {
			fdr[k] = f
		}
		i = j
	}

	q := 1.0
	for i := len(pooled) - 1; i >= 0; i-- {
		q = min(q, fdr[i])
		pooled[i].SetScore(DecoyXCorrQValue, q)
	}

	target.RegisterScores(DecoyXCorrQValue)
	decoy.RegisterScores(DecoyXCorrQValue)
	return nil
}

func sameScore(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
