package service

import (
	"context"
	"fmt"
	"time"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	"github.com/sirupsen/logrus"
)

// SessionStore persists quiz sessions. Each call must be atomic for a single
// user. Active returns nil, nil when the user has no active session.
type SessionStore interface {
	Active(ctx context.Context, userID int64) (*QuizSession, error)
	Create(ctx context.Context, s *QuizSession) error
	Update(ctx context.Context, s *QuizSession) error
}

// Recorder receives lifecycle events, typically for metrics.
type Recorder interface {
	SessionStarted()
	AnswerRecorded(correct bool)
	SessionEnded(status SessionStatus)
}

// QuestionView is what the transport renders for one question.
type QuestionView struct {
	Index   int
	Total   int
	Body    string
	Answers []Answer
}

// Number is the 1-based position shown to users.
func (v QuestionView) Number() int { return v.Index + 1 }

// AnswerResult describes the outcome of a valid answer. Next is set while the
// quiz continues; Report is set when this answer finished it.
type AnswerResult struct {
	Session      *QuizSession
	Correct      bool
	CorrectLabel string
	CorrectText  string
	Next         *QuestionView
	Report       *Report
}

// QuizService drives the per-user session state machine over a shared bank.
type QuizService struct {
	bank     *Bank
	store    SessionStore
	sink     ReportSink
	recorder Recorder
	now      func() time.Time
}

type Option func(*QuizService)

func WithReportSink(sink ReportSink) Option {
	return func(s *QuizService) { s.sink = sink }
}

func WithRecorder(r Recorder) Option {
	return func(s *QuizService) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func NewQuizService(bank *Bank, store SessionStore, opts ...Option) *QuizService {
	s := &QuizService{
		bank:  bank,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QuizService) Bank() *Bank { return s.bank }

// View returns the display form of the question at index.
func (s *QuizService) View(index int) (QuestionView, error) {
	q, ok := s.bank.At(index)
	if !ok {
		return QuestionView{}, &InvalidIndexError{Index: index, Total: s.bank.Len()}
	}
	return QuestionView{
		Index:   index,
		Total:   s.bank.Len(),
		Body:    q.Body(),
		Answers: q.Answers(),
	}, nil
}

// Start returns the user's active session, creating one at the first
// question if there is none. created reports which happened.
func (s *QuizService) Start(ctx context.Context, userID int64) (session *QuizSession, created bool, err error) {
	log := config.WithContext(ctx)

	session, err = s.active(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if session != nil {
		log.Debug("Active session already exists")
		return session, false, nil
	}

	session = newSession(userID, 0, s.now())
	if err := s.store.Create(ctx, session); err != nil {
		log.WithError(err).Error("Failed to create session")
		return nil, false, persistenceError("create session", err)
	}
	s.sessionStarted()
	log.WithField("session_id", session.ID.String()).Info("Quiz session started")
	return session, true, nil
}

// Current returns the active session and the question it is positioned on.
func (s *QuizService) Current(ctx context.Context, userID int64) (*QuizSession, QuestionView, error) {
	session, err := s.requireActive(ctx, userID)
	if err != nil {
		return nil, QuestionView{}, err
	}
	if session.CurrentQuestionIndex >= s.bank.Len() {
		return session, QuestionView{}, s.finishExhausted(ctx, session)
	}
	view, err := s.View(session.CurrentQuestionIndex)
	return session, view, err
}

// JumpTo positions the user's session on index, creating a session there if
// none is active. Score and start time of an existing session are kept.
func (s *QuizService) JumpTo(ctx context.Context, userID int64, index int) (*QuizSession, QuestionView, bool, error) {
	log := config.WithContext(ctx).WithField("index", index)

	view, err := s.View(index)
	if err != nil {
		return nil, QuestionView{}, false, err
	}

	session, err := s.active(ctx, userID)
	if err != nil {
		return nil, QuestionView{}, false, err
	}
	if session == nil {
		session = newSession(userID, index, s.now())
		if err := s.store.Create(ctx, session); err != nil {
			log.WithError(err).Error("Failed to create session")
			return nil, QuestionView{}, false, persistenceError("create session", err)
		}
		s.sessionStarted()
		log.WithField("session_id", session.ID.String()).Info("Quiz session started by jump")
		return session, view, true, nil
	}

	prev := *session
	session.CurrentQuestionIndex = index
	if err := s.store.Update(ctx, session); err != nil {
		*session = prev
		log.WithError(err).Error("Failed to move session")
		return nil, QuestionView{}, false, persistenceError("update session", err)
	}
	log.Info("Jumped to question")
	return session, view, false, nil
}

// SubmitAnswer scores label against the current question and advances the
// session. An unknown label changes nothing. Answering the last question
// finishes the session and emits its report.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID int64, label string) (*AnswerResult, error) {
	log := config.WithContext(ctx).WithField("label", label)

	session, err := s.requireActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	total := s.bank.Len()
	if session.CurrentQuestionIndex >= total {
		return nil, s.finishExhausted(ctx, session)
	}

	question, _ := s.bank.At(session.CurrentQuestionIndex)
	if _, ok := question.AnswerText(label); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAnswer, label)
	}

	prev := *session
	correct := label == question.CorrectLabel()
	if correct {
		session.CorrectCount++
	}
	session.AnsweredCount++
	session.CurrentQuestionIndex++
	finished := session.CurrentQuestionIndex == total
	if finished {
		session.end(StatusFinished, s.now())
	}
	if err := s.store.Update(ctx, session); err != nil {
		*session = prev
		log.WithError(err).Error("Failed to record answer")
		return nil, persistenceError("update session", err)
	}
	if s.recorder != nil {
		s.recorder.AnswerRecorded(correct)
	}

	result := &AnswerResult{
		Session:      session,
		Correct:      correct,
		CorrectLabel: question.CorrectLabel(),
		CorrectText:  question.CorrectText(),
	}
	if !finished {
		next, err := s.View(session.CurrentQuestionIndex)
		if err != nil {
			return nil, err
		}
		result.Next = &next
		return result, nil
	}

	report := NewReport(session, total)
	result.Report = &report
	s.sessionEnded(StatusFinished)
	log.WithFields(logrus.Fields{
		"session_id": session.ID.String(),
		"correct":    report.CorrectCount,
		"total":      report.TotalQuestions,
		"percentage": report.FormattedPercentage(),
	}).Info("Quiz finished")
	s.emit(ctx, report)
	return result, nil
}

// Stop cancels the user's active session.
func (s *QuizService) Stop(ctx context.Context, userID int64) (*QuizSession, error) {
	log := config.WithContext(ctx)

	session, err := s.requireActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	prev := *session
	session.end(StatusCancelled, s.now())
	if err := s.store.Update(ctx, session); err != nil {
		*session = prev
		log.WithError(err).Error("Failed to cancel session")
		return nil, persistenceError("update session", err)
	}
	s.sessionEnded(StatusCancelled)
	log.WithField("session_id", session.ID.String()).Info("Quiz session cancelled")
	return session, nil
}

func (s *QuizService) active(ctx context.Context, userID int64) (*QuizSession, error) {
	session, err := s.store.Active(ctx, userID)
	if err != nil {
		config.WithContext(ctx).WithError(err).Error("Failed to load session")
		return nil, persistenceError("load session", err)
	}
	return session, nil
}

func (s *QuizService) requireActive(ctx context.Context, userID int64) (*QuizSession, error) {
	session, err := s.active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}
	return session, nil
}

// finishExhausted closes a session whose index already ran past the bank,
// which happens when the bank shrank between restarts.
func (s *QuizService) finishExhausted(ctx context.Context, session *QuizSession) error {
	prev := *session
	session.end(StatusFinished, s.now())
	if err := s.store.Update(ctx, session); err != nil {
		*session = prev
		return persistenceError("update session", err)
	}
	s.sessionEnded(StatusFinished)
	config.WithContext(ctx).WithField("session_id", session.ID.String()).Warn("Session was past the last question, marked finished")
	return ErrQuizAlreadyFinished
}

func (s *QuizService) emit(ctx context.Context, r Report) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Emit(ctx, r); err != nil {
		config.WithContext(ctx).WithError(err).Warn("Failed to emit quiz report")
	}
}

func (s *QuizService) sessionStarted() {
	if s.recorder != nil {
		s.recorder.SessionStarted()
	}
}

func (s *QuizService) sessionEnded(status SessionStatus) {
	if s.recorder != nil {
		s.recorder.SessionEnded(status)
	}
}
