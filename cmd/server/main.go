package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notigram/notigram/internal/attachment"
	"github.com/notigram/notigram/internal/config"
	"github.com/notigram/notigram/internal/ingest"
	"github.com/notigram/notigram/internal/notion"
	"github.com/notigram/notigram/internal/telegram"
	"github.com/notigram/notigram/internal/webhook"
	"github.com/notigram/notigram/pkg/utils"
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

	logger.Info("Starting Telegram-Notion bridge (webhook)",
		zap.Int("port", cfg.Server.Port),
		zap.String("webhook_path", cfg.Server.WebhookPath),
		zap.String("notion_version", cfg.Notion.Version),
		zap.Int64("max_upload_bytes", cfg.Notion.MaxUpload()))

	tgClient, err := telegram.NewClient(cfg.Telegram.BotToken, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram client", zap.Error(err))
	}

	notionClient := notion.NewClient(cfg.Notion.Token, cfg.Notion.Version, logger)
	uploader := attachment.NewUploader(tgClient, notionClient, cfg.Notion.MaxUpload(), logger)
	pipeline := ingest.NewPipeline(notionClient, uploader, tgClient,
		cfg.Notion.DatabaseID, cfg.Notion.MaxUpload(), logger)

	handler := webhook.NewHandler(pipeline,
		cfg.Telegram.SecretToken, cfg.Telegram.RequireSecret, logger)

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "notigram",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	router.POST(cfg.Server.WebhookPath, handler.Handle)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
