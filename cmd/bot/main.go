package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	"github.com/PoluyanbIch/QuizBot/internal/locale"
	"github.com/PoluyanbIch/QuizBot/internal/metrics"
	"github.com/PoluyanbIch/QuizBot/internal/report"
	"github.com/PoluyanbIch/QuizBot/internal/service"
	"github.com/PoluyanbIch/QuizBot/internal/storage"
	"github.com/PoluyanbIch/QuizBot/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
)

// sessionStore is what both storage backends offer beyond service.SessionStore.
type sessionStore interface {
	service.SessionStore
	telegram.SessionHistory
	CountActive(ctx context.Context) (int64, error)
}

type backend struct {
	sessions    sessionStore
	users       telegram.UserStore
	leaderboard service.Leaderboard
	health      metrics.HealthFunc
}

func main() {
	configPath := flag.String("config", "config/config.yml", "path to the config file")
	migrateOnly := flag.Bool("migrate", false, "create or update the database tables and exit")
	flag.Parse()

	log := config.Logger
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	config.InitLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, db, err := openBackend(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to open storage")
	}
	if db != nil {
		if err := storage.Migrate(db); err != nil {
			log.WithError(err).Fatal("Failed to migrate database")
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
	}
	if *migrateOnly {
		log.Info("Database tables are up to date")
		return
	}

	active, err := be.sessions.CountActive(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to count active sessions")
	}
	metrics.SetActiveSessions(active)

	loader := &service.BankLoader{
		Shuffle:  service.RandomPermutation,
		Observer: metrics.Prometheus{},
	}
	bank, err := loader.Load(ctx, cfg.Bank.Dir, cfg.Bank.Extension)
	if err != nil {
		if errors.Is(err, service.ErrBankEmpty) {
			log.WithError(err).Fatal("No questions loaded, the quiz cannot run")
		}
		log.WithError(err).Fatal("Failed to load questions")
	}
	metrics.SetBankSize(bank.Len())
	if err := report.WriteBankDump(bank, cfg.Output.LogDir); err != nil {
		log.WithError(err).Error("Failed to save question dump")
	}

	messages, err := locale.Load(cfg.Locales)
	if err != nil {
		log.WithError(err).Error("Failed to load locales, messages will show their keys")
		messages = locale.New(nil)
	}

	publisher, err := report.NewEventPublisher(cfg.Events)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize event publisher")
	}
	defer publisher.Close()

	quiz := service.NewQuizService(bank, be.sessions,
		service.WithReportSink(report.Multi{report.NewFileSink(cfg.Output.AnswersDir), publisher}),
		service.WithRecorder(metrics.Prometheus{}),
	)

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, metrics.NewRouter(be.health)); err != nil {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Telegram")
	}
	api.Debug = cfg.Telegram.Debug
	log.WithField("account", api.Self.UserName).Info("Authorised on account")

	bot := telegram.NewBot(api, telegram.Deps{
		Quiz:        quiz,
		Users:       be.users,
		Leaderboard: be.leaderboard,
		History:     be.sessions,
		Messages:    messages,
		PollTimeout: cfg.Telegram.PollTimeout,
	})
	log.WithField("questions", bank.Len()).Info("Bot is starting")
	bot.Start(ctx)
	log.Info("Bot stopped")
}

// openBackend returns the stores for the configured adapter. db is nil for
// the memory adapter.
func openBackend(ctx context.Context, cfg config.DatabaseConfig) (backend, *gorm.DB, error) {
	if cfg.Adapter == config.AdapterMemory {
		config.Logger.Warn("Using in-memory storage, sessions are lost on restart")
		mem := storage.NewMemoryStore()
		return backend{
			sessions:    mem,
			users:       mem,
			leaderboard: service.NewMemoryLeaderboard(),
		}, nil, nil
	}

	db, err := storage.Open(ctx, cfg)
	if err != nil {
		return backend{}, nil, err
	}
	return backend{
		sessions:    storage.NewSessionRepository(db),
		users:       storage.NewUserRepository(db),
		leaderboard: storage.NewLeaderboardRepository(db),
		health: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, db, nil
}
