package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/notigram/notigram/internal/attachment"
	"github.com/notigram/notigram/internal/config"
	"github.com/notigram/notigram/internal/ingest"
	"github.com/notigram/notigram/internal/notion"
	"github.com/notigram/notigram/internal/poller"
	"github.com/notigram/notigram/internal/store"
	"github.com/notigram/notigram/internal/telegram"
	"github.com/notigram/notigram/pkg/utils"
	"github.com/robfig/cron/v3"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Telegram-Notion bridge (poller)",
		zap.String("schedule", cfg.Poller.Schedule),
		zap.Int("batch_limit", cfg.Poller.BatchLimit),
		zap.String("journal_path", cfg.Poller.JournalPath))

	if dir := filepath.Dir(cfg.Poller.JournalPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create journal directory", zap.Error(err))
		}
	}
	journal, err := store.Open(cfg.Poller.JournalPath, logger)
	if err != nil {
		logger.Fatal("Failed to open poller journal", zap.Error(err))
	}
	defer journal.Close()

	tgClient, err := telegram.NewClient(cfg.Telegram.BotToken, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram client", zap.Error(err))
	}

	notionClient := notion.NewClient(cfg.Notion.Token, cfg.Notion.Version, logger)
	uploader := attachment.NewUploader(tgClient, notionClient, cfg.Notion.MaxUpload(), logger)
	pipeline := ingest.NewPipeline(notionClient, uploader, tgClient,
		cfg.Notion.DatabaseID, cfg.Notion.MaxUpload(), logger)

	p := poller.New(tgClient, pipeline, journal, cfg.Poller.BatchLimit, logger)

	scheduler := cron.New()
	if err := p.Schedule(scheduler, cfg.Poller.Schedule); err != nil {
		logger.Fatal("Failed to schedule poller", zap.Error(err))
	}
	scheduler.Start()
	logger.Info("Poller scheduled")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down poller...")
	<-scheduler.Stop().Done()
	logger.Info("Poller exited")
}
