package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profiler-service/internal/app"
	"profiler-service/internal/config"

	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Profiler Service...")

	// Load configuration
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize service", zap.Error(err))
	}
	defer a.Close()

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	modelName := "none"
	if info := a.ModelInfo(); info != nil {
		if m, ok := info["model"].(string); ok {
			modelName = m
		}
	}

	logger.Info("Profiler Service is running",
		zap.String("port", cfg.Server.Port),
		zap.String("renderer", cfg.Fetch.Renderer),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("model", modelName))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// open event streams keep Shutdown waiting until the deadline
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
		srv.Close()
	}

	logger.Info("Server exited")
}
