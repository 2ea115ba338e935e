// cmd/bedsvc/main.go
//
// Development bed service. It serves the REST contract the dashboard talks
// to, keeping beds in memory, so wardboard can run without the hospital
// backend.
//
//	bedsvc -config bedsvc.yaml
//	bedsvc -issue-token nurse.joy   # print a bearer token and exit

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kingrea/wardboard/internal/bedsvc"
)

func main() {
	var (
		configPath string
		issueFor   string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "settings file (yaml, json or toml)")
	flag.StringVar(&issueFor, "issue-token", "", "print a bearer token for this nurse and exit")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flag.Parse()

	settings, err := bedsvc.LoadSettings(configPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	if issueFor != "" {
		token, err := bedsvc.NewTokens(settings.JWTSecret, settings.TokenTTL).Issue(issueFor)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	srv := bedsvc.NewServer(settings, bedsvc.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Failed to start bed service", zap.Error(err))
	}
	logger.Info("Bed service started",
		zap.String("url", srv.BaseURL()),
		zap.Int("beds", settings.BedCount),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Bed service stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service_name", "bedsvc")), nil
}
