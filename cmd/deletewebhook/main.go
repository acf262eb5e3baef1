// Command deletewebhook removes the bot's webhook so long polling works.
package main

import (
	"flag"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	configPath := flag.String("config", "config/config.yml", "path to the config file")
	dropPending := flag.Bool("drop-pending", false, "also discard updates queued on Telegram's side")
	flag.Parse()

	log := config.Logger
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	config.InitLogger(cfg.Log)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Telegram")
	}

	info, err := api.GetWebhookInfo()
	if err != nil {
		log.WithError(err).Fatal("Failed to get webhook info")
	}
	if !info.IsSet() {
		log.Info("No webhook is set")
		return
	}
	log.WithField("url", info.URL).Info("Deleting webhook")

	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: *dropPending}); err != nil {
		log.WithError(err).Fatal("Failed to delete webhook")
	}
	log.Info("Webhook deleted")
}
