package service

import (
	"context"
	"sort"
	"sync"
	"time"
)

// LeaderboardEntry is a user's best finished run.
type LeaderboardEntry struct {
	UserID     int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	Score      int       `gorm:"not null" json:"score"`
	Total      int       `gorm:"not null" json:"total"`
	Percentage float64   `gorm:"not null" json:"percentage"`
	Date       time.Time `gorm:"not null" json:"date"`
}

func (LeaderboardEntry) TableName() string { return "leaderboard_entries" }

// Leaderboard keeps one entry per user, replaced only by a better result.
type Leaderboard interface {
	// Record stores entry if it is the user's first or best result and
	// reports whether it did.
	Record(ctx context.Context, entry LeaderboardEntry) (bool, error)
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// Position is 1-based; -1 means the user has no entry.
	Position(ctx context.Context, userID int64) (int, *LeaderboardEntry, error)
}

func EntryFromReport(r Report, username, firstName string) LeaderboardEntry {
	return LeaderboardEntry{
		UserID:     r.UserID,
		Username:   username,
		FirstName:  firstName,
		Score:      r.CorrectCount,
		Total:      r.TotalQuestions,
		Percentage: r.Percentage,
		Date:       r.EndTime,
	}
}

// Beats orders by percentage, then by score.
func (e LeaderboardEntry) Beats(other LeaderboardEntry) bool {
	if e.Percentage == other.Percentage {
		return e.Score > other.Score
	}
	return e.Percentage > other.Percentage
}

// DisplayName prefers the @username.
func (e LeaderboardEntry) DisplayName() string {
	if e.Username != "" {
		return "@" + e.Username
	}
	return e.FirstName
}

// SortEntries sorts best first; ties keep their relative order.
func SortEntries(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Beats(entries[j])
	})
}

// MemoryLeaderboard is used when results need not survive a restart.
type MemoryLeaderboard struct {
	mu      sync.RWMutex
	entries map[int64]LeaderboardEntry
}

func NewMemoryLeaderboard() *MemoryLeaderboard {
	return &MemoryLeaderboard{entries: make(map[int64]LeaderboardEntry)}
}

func (m *MemoryLeaderboard) Record(_ context.Context, entry LeaderboardEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[entry.UserID]; ok && !entry.Beats(existing) {
		return false, nil
	}
	m.entries[entry.UserID] = entry
	return true, nil
}

func (m *MemoryLeaderboard) Top(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	m.mu.RLock()
	sorted := make([]LeaderboardEntry, 0, len(m.entries))
	for _, e := range m.entries {
		sorted = append(sorted, e)
	}
	m.mu.RUnlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })
	SortEntries(sorted)
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *MemoryLeaderboard) Position(ctx context.Context, userID int64) (int, *LeaderboardEntry, error) {
	all, err := m.Top(ctx, 0)
	if err != nil {
		return -1, nil, err
	}
	for i := range all {
		if all[i].UserID == userID {
			return i + 1, &all[i], nil
		}
	}
	return -1, nil, nil
}
