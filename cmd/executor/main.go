package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/finarena/finarena/internal/adapters/llm"
	"github.com/finarena/finarena/internal/config"
	"github.com/finarena/finarena/internal/core/services"
	"github.com/finarena/finarena/pkg/executor"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting executor agent")

	if err := run(logger); err != nil {
		logger.Error("executor startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg := config.LoadExecutor()

	llmClient, err := llm.Build(cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	var trace *services.TraceLog
	if cfg.TracePath != "" {
		trace, err = services.NewTraceLog(logger, cfg.TracePath)
		if err != nil {
			return fmt.Errorf("open trace log: %w", err)
		}
		defer trace.Close()
		logger.Info("reasoning trace enabled", "path", cfg.TracePath)
	}

	reasoner := services.NewReasoner(logger, llmClient, cfg.MaxIterations, trace)
	server := executor.NewServer(logger, reasoner)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: server.Handler(),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting executor api server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
