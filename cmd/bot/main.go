package main

import (
	"flag"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/app"
	"github.com/shrimpsizemoose/overdue/internal/bot"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	cfg, err := bot.ReadConfig(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to read bot config: %v", err)
	}

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	var tokens *app.TokenManager
	if cfg.Auth.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Auth.RedisURL)
		if err != nil {
			logger.Error.Fatalf("Failed to parse redis URL: %v", err)
		}
		tokens = app.NewTokenManager(redis.NewClient(opt), cfg.Auth.TokenKeyTemplate)
		defer tokens.Close()
	} else {
		logger.Info.Println("No redis configured, /token and /bind are disabled")
	}

	b, err := bot.New(cfg, service, tokens)
	if err != nil {
		logger.Error.Fatalf("Failed to create bot: %v", err)
	}

	logger.Info.Println("Bot initialized successfully")
	if err := b.Start(); err != nil {
		logger.Error.Fatalf("Bot error: %v", err)
	}
}
