package scoring

import "sort"

// ItemResult is the slice of a submission the aggregator cares about: which
// attempt it belongs to, what it scored and how long it took.
type ItemResult struct {
	AttemptNo     int
	Score         float64
	ItemTimeSpent int
}

// AttemptSummary aggregates every item result sharing one attempt number.
type AttemptSummary struct {
	AttemptNo      int     `json:"attempt_no"`
	TotalScore     float64 `json:"total_score"`
	TotalTimeSpent int     `json:"total_time_spent"`
	ItemCount      int     `json:"item_count"`
}

// AggregateAttempts groups per-item results by attempt number and sums score
// and time within each group. The output is ordered by ascending attempt
// number so attempt-history views can render it directly.
func AggregateAttempts(results []ItemResult) []AttemptSummary {
	byAttempt := make(map[int]*AttemptSummary)
	for _, r := range results {
		s, ok := byAttempt[r.AttemptNo]
		if !ok {
			s = &AttemptSummary{AttemptNo: r.AttemptNo}
			byAttempt[r.AttemptNo] = s
		}
		s.TotalScore += r.Score
		s.TotalTimeSpent += r.ItemTimeSpent
		s.ItemCount++
	}

	summaries := make([]AttemptSummary, 0, len(byAttempt))
	for _, s := range byAttempt {
		s.TotalScore = round2(s.TotalScore)
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].AttemptNo < summaries[j].AttemptNo
	})
	return summaries
}
