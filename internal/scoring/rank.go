package scoring

import (
	"sort"
	"strings"
)

// RankEntry is one enrolled student's final result as read from the pivot
// table, joined with the roster for name tie-breaking.
type RankEntry struct {
	StudentID uint
	Score     float64
	TimeSpent int
	Lastname  string
	Firstname string
}

// RankedEntry is a RankEntry with its assigned 1-based position.
type RankedEntry struct {
	RankEntry
	Rank int
}

// Rank orders students by score descending, time ascending, then lastname
// and firstname ascending (case-insensitive), and assigns positions 1..N.
//
// Ranks are position-based, not dense: fully tied students keep their input
// order (the sort is stable) and still receive distinct consecutive ranks,
// so N students always get exactly the ranks 1 through N.
func Rank(entries []RankEntry) []RankedEntry {
	sorted := make([]RankEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TimeSpent != b.TimeSpent {
			return a.TimeSpent < b.TimeSpent
		}
		if ln := strings.Compare(strings.ToLower(a.Lastname), strings.ToLower(b.Lastname)); ln != 0 {
			return ln < 0
		}
		return strings.ToLower(a.Firstname) < strings.ToLower(b.Firstname)
	})

	ranked := make([]RankedEntry, len(sorted))
	for i, e := range sorted {
		ranked[i] = RankedEntry{RankEntry: e, Rank: i + 1}
	}
	return ranked
}
