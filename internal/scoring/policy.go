package scoring

import "errors"

// ErrNoAttempts is returned when a final score is requested for a student
// with no attempt summaries. Callers must guarantee at least one attempt
// exists before resolving a policy.
var ErrNoAttempts = errors.New("scoring: no attempt summaries to select from")

// Policy mirrors the activity's final-score policy values.
type Policy string

const (
	PolicyLastAttempt  Policy = "last_attempt"
	PolicyHighestScore Policy = "highest_score"
)

// SelectFinal picks the attempt whose score and time count toward the
// leaderboard.
//
// highest_score takes the summary with the maximum total score, breaking
// ties by the lower total time. last_attempt takes the summary with the
// highest attempt number regardless of score. Unknown policies fall back to
// last_attempt, matching the activity model's default.
func SelectFinal(summaries []AttemptSummary, policy Policy) (AttemptSummary, error) {
	if len(summaries) == 0 {
		return AttemptSummary{}, ErrNoAttempts
	}

	best := summaries[0]
	switch policy {
	case PolicyHighestScore:
		for _, s := range summaries[1:] {
			if s.TotalScore > best.TotalScore ||
				(s.TotalScore == best.TotalScore && s.TotalTimeSpent < best.TotalTimeSpent) {
				best = s
			}
		}
	default:
		for _, s := range summaries[1:] {
			if s.AttemptNo > best.AttemptNo {
				best = s
			}
		}
	}
	return best, nil
}
