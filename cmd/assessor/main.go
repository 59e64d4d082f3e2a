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

	"github.com/finarena/finarena/internal/adapters/dataset"
	"github.com/finarena/finarena/internal/adapters/filecache"
	"github.com/finarena/finarena/internal/adapters/llm"
	"github.com/finarena/finarena/internal/config"
	"github.com/finarena/finarena/internal/core/services"
	"github.com/finarena/finarena/internal/tools"
	"github.com/finarena/finarena/pkg/assessor"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting assessor agent")

	if err := run(logger); err != nil {
		logger.Error("assessor startup failed", "error", err)
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

	cfg := config.LoadAssessor()

	questions, err := dataset.NewCSVLoader(cfg.DatasetPath).Load(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", "path", cfg.DatasetPath, "size", len(questions))

	cache, err := filecache.New(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("init filing cache: %w", err)
	}

	docs := tools.NewDocumentStore()
	registry, err := tools.BuildRegistry(logger, cache, docs)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	llmClient, err := llm.Build(cfg.LLM)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	judge := services.NewJudge(logger, llmClient, cfg.JudgeThreshold)

	var safetyLLM = llmClient
	if !cfg.SafetyCheck {
		safetyLLM = nil
	}

	evaluator := services.NewEvaluator(logger, services.EvaluatorOptions{
		Questions:       questions,
		Judge:           judge,
		Executor:        assessor.NewExecutorClient(cfg.ExecutorURL, cfg.QuestionTimeout),
		ToolEndpoint:    fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		QuestionTimeout: cfg.QuestionTimeout,
		SafetyLLM:       safetyLLM,
		Scratch:         docs,
	})

	server := assessor.NewServer(logger, evaluator, registry)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: server.Handler(),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting assessor api server", "addr", httpServer.Addr)
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
