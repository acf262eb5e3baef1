package config

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process logger. InitLogger configures it; until then it logs
// at info level in text format.
var Logger = logrus.New()

type ctxKey int

const (
	userIDKey ctxKey = iota
	chatIDKey
)

func InitLogger(cfg LogConfig) {
	Logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// ContextWithUser tags ctx so that WithContext adds the ids to every entry.
func ContextWithUser(ctx context.Context, userID, chatID int64) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, chatIDKey, chatID)
}

// WithContext returns a log entry carrying the request fields found in ctx.
func WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(Logger)
	if ctx == nil {
		return entry
	}
	if id, ok := ctx.Value(userIDKey).(int64); ok {
		entry = entry.WithField("user_id", id)
	}
	if id, ok := ctx.Value(chatIDKey).(int64); ok {
		entry = entry.WithField("chat_id", id)
	}
	return entry
}
