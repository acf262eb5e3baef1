package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is built once at startup and handed to every component that needs
// it. Nothing in the module reads configuration from globals.
type Config struct {
	Bank     BankConfig     `yaml:"bank"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Locales  string         `yaml:"locales"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
	Telegram TelegramConfig `yaml:"telegram"`
	Secrets  SecretsConfig  `yaml:"secrets"`
}

type BankConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

type OutputConfig struct {
	LogDir     string `yaml:"log_dir"`
	AnswersDir string `yaml:"answers_dir"`
}

type DatabaseConfig struct {
	Adapter  string `yaml:"adapter"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
	DSN      string `yaml:"-"`
	Pool     int    `yaml:"pool"`
	// Timeout is the connect timeout in milliseconds.
	Timeout int `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type TelegramConfig struct {
	Token       string `yaml:"-"`
	Debug       bool   `yaml:"debug"`
	PollTimeout int    `yaml:"poll_timeout"`
}

// SecretsConfig points at the file holding credentials. The values
// themselves never live in the main config file.
type SecretsConfig struct {
	File string `yaml:"file"`
}

const (
	AdapterSQLite   = "sqlite3"
	AdapterPostgres = "postgresql"
	AdapterMemory   = "memory"
)

// Default returns the settings used when the config file leaves a field out.
func Default() Config {
	return Config{
		Bank: BankConfig{
			Dir:       "config/questions",
			Extension: "yml",
		},
		Output: OutputConfig{
			LogDir:     "log",
			AnswersDir: "quiz_answers",
		},
		Database: DatabaseConfig{
			Adapter:  AdapterSQLite,
			Database: "db/quiz.sqlite3",
			Pool:     5,
			Timeout:  5000,
		},
		Locales: "config/locales.yml",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Events: EventsConfig{
			Exchange: "quiz.events",
		},
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Secrets: SecretsConfig{
			File: "config/secrets.yml",
		},
	}
}

// Load reads the YAML config at path over Default, resolves secrets and
// validates the result. Relative paths in the file are kept relative to the
// process working directory.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := LoadSecrets(&cfg); err != nil {
		return Config{}, err
	}
	Normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a single YAML document into cfg, rejecting unknown keys.
func Parse(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("parse config: multiple YAML documents are not supported")
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Normalize trims user input and fills zero values that must not stay zero.
func Normalize(cfg *Config) {
	cfg.Bank.Dir = strings.TrimSpace(cfg.Bank.Dir)
	cfg.Bank.Extension = strings.TrimPrefix(strings.TrimSpace(cfg.Bank.Extension), ".")
	cfg.Output.LogDir = strings.TrimSpace(cfg.Output.LogDir)
	cfg.Output.AnswersDir = strings.TrimSpace(cfg.Output.AnswersDir)
	cfg.Database.Adapter = strings.ToLower(strings.TrimSpace(cfg.Database.Adapter))
	if cfg.Database.Adapter == "postgres" {
		cfg.Database.Adapter = AdapterPostgres
	}
	if cfg.Database.Pool <= 0 {
		cfg.Database.Pool = 5
	}
	if cfg.Telegram.PollTimeout <= 0 {
		cfg.Telegram.PollTimeout = 60
	}
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var problems []string
	if c.Bank.Dir == "" {
		problems = append(problems, "bank.dir is required")
	}
	if c.Bank.Extension == "" {
		problems = append(problems, "bank.extension is required")
	}
	if c.Output.LogDir == "" {
		problems = append(problems, "output.log_dir is required")
	}
	if c.Output.AnswersDir == "" {
		problems = append(problems, "output.answers_dir is required")
	}
	switch c.Database.Adapter {
	case AdapterSQLite:
		if c.Database.Database == "" {
			problems = append(problems, "database.database is required for sqlite3")
		}
	case AdapterPostgres:
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Username == "" || c.Database.Database == "") {
			problems = append(problems, "database host, username and database are required for postgresql")
		}
	case AdapterMemory:
	default:
		problems = append(problems, fmt.Sprintf("database.adapter %q is not supported", c.Database.Adapter))
	}
	if c.Telegram.Token == "" {
		problems = append(problems, "telegram bot token is missing")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
