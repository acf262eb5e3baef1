package storage

import (
	"context"
	"errors"

	"github.com/PoluyanbIch/QuizBot/internal/service"
	"gorm.io/gorm"
)

// LeaderboardRepository is the persistent service.Leaderboard.
type LeaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

func (r *LeaderboardRepository) Record(ctx context.Context, entry service.LeaderboardEntry) (bool, error) {
	improved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing service.LeaderboardEntry
		err := tx.First(&existing, "user_id = ?", entry.UserID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			improved = true
			return tx.Create(&entry).Error
		case err != nil:
			return err
		}
		if !entry.Beats(existing) {
			return nil
		}
		improved = true
		return tx.Model(&service.LeaderboardEntry{}).
			Where("user_id = ?", entry.UserID).
			Select("*").
			Omit("user_id").
			Updates(&entry).Error
	})
	if err != nil {
		return false, err
	}
	return improved, nil
}

func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]service.LeaderboardEntry, error) {
	var entries []service.LeaderboardEntry
	q := r.db.WithContext(ctx).Order("percentage DESC, score DESC, user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *LeaderboardRepository) Position(ctx context.Context, userID int64) (int, *service.LeaderboardEntry, error) {
	var entry service.LeaderboardEntry
	err := r.db.WithContext(ctx).First(&entry, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return -1, nil, nil
		}
		return -1, nil, err
	}
	var ahead int64
	err = r.db.WithContext(ctx).Model(&service.LeaderboardEntry{}).
		Where("percentage > ? OR (percentage = ? AND score > ?) OR (percentage = ? AND score = ? AND user_id < ?)",
			entry.Percentage, entry.Percentage, entry.Score, entry.Percentage, entry.Score, entry.UserID).
		Count(&ahead).Error
	if err != nil {
		return -1, nil, err
	}
	return int(ahead) + 1, &entry, nil
}
