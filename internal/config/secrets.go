package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type secretsFile struct {
	TelegramBotToken string `yaml:"telegram_bot_token"`
	DBPassword       string `yaml:"db_password"`
}

// LoadSecrets fills the token and database credentials. The secrets file
// wins; without one a .env next to it (or in the working directory) is
// loaded into the environment, and the environment is consulted last.
func LoadSecrets(cfg *Config) error {
	var secrets secretsFile
	data, err := os.ReadFile(cfg.Secrets.File)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &secrets); err != nil {
			return fmt.Errorf("parse secrets %s: %w", cfg.Secrets.File, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		loadDotEnv(filepath.Join(filepath.Dir(cfg.Secrets.File), ".env"), ".env")
	default:
		return fmt.Errorf("read secrets: %w", err)
	}

	cfg.Telegram.Token = firstNonEmpty(secrets.TelegramBotToken, os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.Database.Password = firstNonEmpty(secrets.DBPassword, os.Getenv("DB_PASSWORD"))
	cfg.Database.DSN = os.Getenv("DATABASE_DSN")
	if url := os.Getenv("RABBITMQ_URI"); url != "" && cfg.Events.AMQPURL == "" {
		cfg.Events.AMQPURL = url
	}
	return nil
}

// loadDotEnv loads the first existing file. godotenv never overrides
// variables that are already set.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			Logger.WithError(err).Warnf("failed to load %s", p)
		}
		return
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
