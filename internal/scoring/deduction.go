// Package scoring holds the pure submission-scoring core: check-code run
// deductions, per-attempt aggregation, final-score policy selection and
// leaderboard ranking. Nothing in this package performs I/O, so every
// function is deterministic for a given input and safe to re-run during
// regrades.
package scoring

import "math"

// EffectiveScore applies the check-code run deduction to an item's base
// points.
//
// The deduction only applies when the restriction is enabled, more than one
// run was used and the percentage is positive. The run count is clamped to
// maxRuns before counting extra runs, so runs past the cap cost nothing
// further. The result is floored at zero and rounded to two decimals.
func EffectiveScore(basePoints float64, runCount int, deductionPct float64, maxRuns int, restricted bool) float64 {
	if !restricted || runCount <= 1 || deductionPct <= 0 {
		return basePoints
	}
	if maxRuns > 0 && runCount > maxRuns {
		runCount = maxRuns
	}
	extraRuns := runCount - 1
	deduction := basePoints * (deductionPct / 100) * float64(extraRuns)
	score := basePoints - deduction
	if score < 0 {
		score = 0
	}
	return round2(score)
}

// ApplyRunPenalty charges the same run deduction against an earned raw
// score instead of the full base points. The raw score is first capped to
// basePoints (a client can never earn more than the item is worth), then
// the penalty derived from the run count is subtracted. Floored at zero,
// rounded to two decimals. With raw == basePoints this degenerates to
// EffectiveScore.
func ApplyRunPenalty(raw, basePoints float64, runCount int, deductionPct float64, maxRuns int, restricted bool) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > basePoints {
		raw = basePoints
	}
	penalty := basePoints - EffectiveScore(basePoints, runCount, deductionPct, maxRuns, restricted)
	score := raw - penalty
	if score < 0 {
		score = 0
	}
	return round2(score)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
