package service

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLeaderboardKeepsBestResult(t *testing.T) {
	ctx := context.Background()
	lb := NewMemoryLeaderboard()
	now := time.Now()

	entries := []struct {
		entry LeaderboardEntry
		want  bool
	}{
		{LeaderboardEntry{UserID: 1, Username: "ann", Score: 5, Total: 10, Percentage: 50, Date: now}, true},
		{LeaderboardEntry{UserID: 1, Username: "ann", Score: 4, Total: 10, Percentage: 40, Date: now}, false},
		{LeaderboardEntry{UserID: 1, Username: "ann", Score: 8, Total: 10, Percentage: 80, Date: now}, true},
		{LeaderboardEntry{UserID: 2, FirstName: "Bob", Score: 9, Total: 10, Percentage: 90, Date: now}, true},
		{LeaderboardEntry{UserID: 3, Username: "cy", Score: 2, Total: 10, Percentage: 20, Date: now}, true},
	}
	for i, c := range entries {
		got, err := lb.Record(ctx, c.entry)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got != c.want {
			t.Fatalf("record %d: expected %v, got %v", i, c.want, got)
		}
	}

	top, err := lb.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != 2 || top[1].UserID != 1 || top[1].Score != 8 {
		t.Fatalf("unexpected top %+v", top)
	}
	if top[0].DisplayName() != "Bob" || top[1].DisplayName() != "@ann" {
		t.Fatalf("unexpected display names %q %q", top[0].DisplayName(), top[1].DisplayName())
	}

	pos, entry, err := lb.Position(ctx, 3)
	if err != nil || pos != 3 || entry == nil || entry.Username != "cy" {
		t.Fatalf("unexpected position %d %+v %v", pos, entry, err)
	}
	if pos, _, _ := lb.Position(ctx, 42); pos != -1 {
		t.Fatalf("expected -1 for unknown user, got %d", pos)
	}
}

func TestEntryFromReport(t *testing.T) {
	end := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Report{UserID: 9, CorrectCount: 3, TotalQuestions: 4, Percentage: 75, EndTime: end}
	e := EntryFromReport(r, "neo", "Thomas")
	if e.UserID != 9 || e.Score != 3 || e.Total != 4 || e.Percentage != 75 || !e.Date.Equal(end) {
		t.Fatalf("unexpected entry %+v", e)
	}
}
