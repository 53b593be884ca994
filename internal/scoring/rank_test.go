package scoring

import "testing"

func TestRankOrdering(t *testing.T) {
	entries := []RankEntry{
		{StudentID: 1, Score: 70, TimeSpent: 300, Lastname: "Cruz", Firstname: "Ana"},
		{StudentID: 2, Score: 90, TimeSpent: 500, Lastname: "Reyes", Firstname: "Ben"},
		{StudentID: 3, Score: 90, TimeSpent: 200, Lastname: "Santos", Firstname: "Carl"},
		{StudentID: 4, Score: 70, TimeSpent: 300, Lastname: "cruz", Firstname: "Abel"},
	}

	ranked := Rank(entries)

	wantOrder := []uint{3, 2, 4, 1}
	for i, want := range wantOrder {
		if ranked[i].StudentID != want {
			t.Fatalf("position %d: got student %d, want %d (full order %+v)", i, ranked[i].StudentID, want, ranked)
		}
	}
}

func TestRankTieBreaks(t *testing.T) {
	tests := []struct {
		name    string
		entries []RankEntry
		first   uint
	}{
		{
			name: "equal score ranks by lower time",
			entries: []RankEntry{
				{StudentID: 1, Score: 80, TimeSpent: 400, Lastname: "B", Firstname: "B"},
				{StudentID: 2, Score: 80, TimeSpent: 100, Lastname: "A", Firstname: "A"},
			},
			first: 2,
		},
		{
			name: "equal score and time ranks by lastname case-insensitively",
			entries: []RankEntry{
				{StudentID: 1, Score: 80, TimeSpent: 100, Lastname: "zulueta", Firstname: "Ana"},
				{StudentID: 2, Score: 80, TimeSpent: 100, Lastname: "Abad", Firstname: "Zeno"},
			},
			first: 2,
		},
		{
			name: "same lastname falls through to firstname",
			entries: []RankEntry{
				{StudentID: 1, Score: 80, TimeSpent: 100, Lastname: "Cruz", Firstname: "zara"},
				{StudentID: 2, Score: 80, TimeSpent: 100, Lastname: "CRUZ", Firstname: "Abel"},
			},
			first: 2,
		},
		{
			name: "full tie keeps input order",
			entries: []RankEntry{
				{StudentID: 7, Score: 80, TimeSpent: 100, Lastname: "Cruz", Firstname: "Ana"},
				{StudentID: 8, Score: 80, TimeSpent: 100, Lastname: "Cruz", Firstname: "Ana"},
			},
			first: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := Rank(tt.entries)
			if ranked[0].StudentID != tt.first {
				t.Errorf("first place = student %d, want %d", ranked[0].StudentID, tt.first)
			}
		})
	}
}

// N students always receive exactly the ranks 1..N, even with ties.
func TestRankDensity(t *testing.T) {
	entries := []RankEntry{
		{StudentID: 1, Score: 80, TimeSpent: 100, Lastname: "Cruz", Firstname: "Ana"},
		{StudentID: 2, Score: 80, TimeSpent: 100, Lastname: "Cruz", Firstname: "Ana"},
		{StudentID: 3, Score: 80, TimeSpent: 100, Lastname: "Cruz", Firstname: "Ana"},
		{StudentID: 4, Score: 50, TimeSpent: 900, Lastname: "Reyes", Firstname: "Ben"},
		{StudentID: 5, Score: 95, TimeSpent: 10, Lastname: "Santos", Firstname: "Eva"},
	}

	ranked := Rank(entries)
	seen := make(map[int]bool)
	for _, r := range ranked {
		if r.Rank < 1 || r.Rank > len(entries) {
			t.Fatalf("rank %d out of range 1..%d", r.Rank, len(entries))
		}
		if seen[r.Rank] {
			t.Fatalf("rank %d assigned twice", r.Rank)
		}
		seen[r.Rank] = true
	}
	if len(seen) != len(entries) {
		t.Fatalf("expected %d distinct ranks, got %d", len(entries), len(seen))
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	entries := []RankEntry{
		{StudentID: 1, Score: 10, TimeSpent: 1, Lastname: "B", Firstname: "B"},
		{StudentID: 2, Score: 90, TimeSpent: 1, Lastname: "A", Firstname: "A"},
	}
	Rank(entries)
	if entries[0].StudentID != 1 {
		t.Error("input slice was reordered")
	}
}
