package storage

import (
	"context"
	"errors"
	"time"

	"github.com/PoluyanbIch/QuizBot/internal/service"
	"gorm.io/gorm"
)

// User is a Telegram account that has interacted with the bot.
type User struct {
	ID        int64   `gorm:"primaryKey;autoIncrement:false"`
	Username  *string `gorm:"uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// SessionRepository stores quiz sessions with gorm.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Active(ctx context.Context, userID int64) (*service.QuizSession, error) {
	var s service.QuizSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, service.StatusActive).
		Order("start_time DESC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts s, making sure the user row exists and that the user has no
// other active session.
func (r *SessionRepository) Create(ctx context.Context, s *service.QuizSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.FirstOrCreate(&User{ID: s.UserID}, User{ID: s.UserID}).Error; err != nil {
			return err
		}
		var active int64
		if err := tx.Model(&service.QuizSession{}).
			Where("user_id = ? AND status = ?", s.UserID, service.StatusActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 && !s.Status.Terminal() {
			return service.ErrActiveSessionExists
		}
		return tx.Create(s).Error
	})
}

// Update overwrites s. Cancelled and finished sessions are not touched and
// report gorm.ErrRecordNotFound.
func (r *SessionRepository) Update(ctx context.Context, s *service.QuizSession) error {
	res := r.db.WithContext(ctx).
		Model(&service.QuizSession{}).
		Where("id = ? AND status = ?", s.ID, service.StatusActive).
		Select("*").
		Omit("id").
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActive is the number of sessions not yet cancelled or finished.
func (r *SessionRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&service.QuizSession{}).
		Where("status = ?", service.StatusActive).
		Count(&n).Error
	return n, err
}

// History lists a user's sessions, newest first.
func (r *SessionRepository) History(ctx context.Context, userID int64, limit int) ([]service.QuizSession, error) {
	var sessions []service.QuizSession
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("start_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// UserRepository keeps the users table in step with Telegram profiles.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Upsert(ctx context.Context, id int64, username string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u User
		if err := tx.FirstOrCreate(&u, User{ID: id}).Error; err != nil {
			return err
		}
		if username == "" || (u.Username != nil && *u.Username == username) {
			return nil
		}
		return tx.Model(&u).Update("username", username).Error
	})
}
