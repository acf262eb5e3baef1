package service

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCancelled SessionStatus = "cancelled"
	StatusFinished  SessionStatus = "finished"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusFinished
}

// QuizSession is one user's run through the bank. The store owns the record;
// QuizService works on a copy loaded per request.
type QuizSession struct {
	ID                   uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               int64         `gorm:"not null;index:idx_quiz_sessions_user_status" json:"user_id"`
	CurrentQuestionIndex int           `gorm:"not null" json:"current_question_index"`
	CorrectCount         int           `gorm:"column:correct_answers_count;not null" json:"correct_answers_count"`
	AnsweredCount        int           `gorm:"not null" json:"answered_count"`
	StartTime            time.Time     `gorm:"not null" json:"start_time"`
	EndTime              *time.Time    `json:"end_time,omitempty"`
	Status               SessionStatus `gorm:"type:varchar(16);not null;index:idx_quiz_sessions_user_status" json:"status"`
}

func (QuizSession) TableName() string { return "quiz_sessions" }

func newSession(userID int64, index int, now time.Time) *QuizSession {
	return &QuizSession{
		ID:                   uuid.New(),
		UserID:               userID,
		CurrentQuestionIndex: index,
		StartTime:            now,
		Status:               StatusActive,
	}
}

func (s *QuizSession) end(status SessionStatus, at time.Time) {
	s.Status = status
	s.EndTime = &at
}
