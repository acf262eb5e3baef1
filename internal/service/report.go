package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report is emitted once when a session finishes.
type Report struct {
	UserID         int64         `json:"user_id"`
	SessionID      uuid.UUID     `json:"session_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	CorrectCount   int           `json:"correct_count"`
	IncorrectCount int           `json:"incorrect_count"`
	TotalQuestions int           `json:"total_questions"`
	Percentage     float64       `json:"percentage"`
	Status         SessionStatus `json:"status"`
}

// ReportSink receives finished-session reports.
type ReportSink interface {
	Emit(ctx context.Context, r Report) error
}

// Percentage is correct/total*100, or 0 for an empty bank.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

func NewReport(s *QuizSession, total int) Report {
	r := Report{
		UserID:         s.UserID,
		SessionID:      s.ID,
		StartTime:      s.StartTime,
		CorrectCount:   s.CorrectCount,
		IncorrectCount: s.AnsweredCount - s.CorrectCount,
		TotalQuestions: total,
		Percentage:     Percentage(s.CorrectCount, total),
		Status:         s.Status,
	}
	if s.EndTime != nil {
		r.EndTime = *s.EndTime
	}
	return r
}

// FormattedPercentage renders the percentage with two decimals.
func (r Report) FormattedPercentage() string {
	return fmt.Sprintf("%.2f", r.Percentage)
}
