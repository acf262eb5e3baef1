package metrics

import (
	"github.com/PoluyanbIch/QuizBot/internal/config"
	"github.com/PoluyanbIch/QuizBot/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Number of quiz sessions started",
		},
	)

	sessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_ended_total",
			Help: "Number of quiz sessions ended, by final status",
		},
		[]string{"status"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_active_sessions",
			Help: "Quiz sessions neither cancelled nor finished",
		},
	)

	answers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Answers recorded, by result",
		},
		[]string{"result"},
	)

	bankQuestions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_bank_questions",
			Help: "Questions in the loaded bank",
		},
	)

	bankFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_bank_files_total",
			Help: "Question files seen by the loader, by outcome",
		},
		[]string{"outcome"},
	)

	bankRecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_bank_records_skipped_total",
			Help: "Malformed question records skipped by the loader",
		},
	)

	updatesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_telegram_updates_total",
			Help: "Telegram updates handled, by kind",
		},
		[]string{"kind"},
	)
)

// Prometheus feeds the collectors above. It implements service.Recorder and
// service.LoadObserver.
type Prometheus struct{}

var (
	_ service.Recorder     = Prometheus{}
	_ service.LoadObserver = Prometheus{}
)

func (Prometheus) SessionStarted() {
	sessionsStarted.Inc()
	activeSessions.Inc()
}

func (Prometheus) SessionEnded(status service.SessionStatus) {
	sessionsEnded.WithLabelValues(string(status)).Inc()
	activeSessions.Dec()
}

func (Prometheus) AnswerRecorded(correct bool) {
	if correct {
		answers.WithLabelValues("correct").Inc()
		return
	}
	answers.WithLabelValues("incorrect").Inc()
}

func (Prometheus) FileLoaded(path string, questions int) {
	bankFiles.WithLabelValues("loaded").Inc()
	config.Logger.WithField("file", path).WithField("questions", questions).Debug("Question file loaded")
}

func (Prometheus) FileSkipped(path string, reason error) {
	bankFiles.WithLabelValues("skipped").Inc()
	config.Logger.WithField("file", path).WithError(reason).Warn("Question file skipped")
}

func (Prometheus) RecordSkipped(path string, index int, reason error) {
	bankRecordsSkipped.Inc()
	config.Logger.WithField("file", path).WithField("record", index).WithError(reason).Warn("Question record skipped")
}

// SetActiveSessions seeds the active-session gauge from storage at startup,
// since sessions outlive the process.
func SetActiveSessions(n int64) {
	activeSessions.Set(float64(n))
}

// SetBankSize publishes the number of loaded questions.
func SetBankSize(n int) {
	bankQuestions.Set(float64(n))
}

func UpdateHandled(kind string) {
	updatesHandled.WithLabelValues(kind).Inc()
}
