package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamani-ai/rag-backend/internal/app"
	"github.com/adamani-ai/rag-backend/internal/config"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("configuration invalid: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	application, err := app.NewApp(ctx, lg, cfg)
	if err != nil {
		lg.Fatal("startup failed", "error", err)
	}
	defer application.Close()

	// Handle SIGINT/SIGTERM for graceful shutdown.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	go func() {
		if err := application.Server.Start(); err != nil {
			lg.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown error", "error", err)
	}
}
