package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/EyalShechtman/open-ai-video-understanding/config"
	"github.com/EyalShechtman/open-ai-video-understanding/processors"
	"github.com/EyalShechtman/open-ai-video-understanding/server"
	"github.com/EyalShechtman/open-ai-video-understanding/storage"
)

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init vector store", "backend", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("vector store initialized", "backend", cfg.Store)

	provisioner := storage.NewProvisioner(store, cfg.EmbeddingDim, logger)
	pipelines := processors.NewPipelines(
		store,
		provisioner,
		processors.NewOpenAIEmbedder(cfg, logger),
		processors.NewOpenAIGenerator(cfg),
		processors.LocalImageLoader{},
		logger,
	)
	handlers := server.NewRAGHandlers(pipelines, store, provisioner, cfg.DefaultIndex, cfg.Store, logger)

	http.HandleFunc("/api/rag", handlers.RAGHandler)
	http.HandleFunc("/health", handlers.HealthHandler)

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
