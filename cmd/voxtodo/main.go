package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antoniostano/voxtodo/internal/config"
	"github.com/antoniostano/voxtodo/internal/embedding"
	"github.com/antoniostano/voxtodo/internal/engine"
	"github.com/antoniostano/voxtodo/internal/httpapi"
	"github.com/antoniostano/voxtodo/internal/index"
	"github.com/antoniostano/voxtodo/internal/intent"
	"github.com/antoniostano/voxtodo/internal/observability"
	"github.com/antoniostano/voxtodo/internal/session"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := tasks.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("task store init failed: %v", err)
	}
	defer store.Close()
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("task store: in-memory (set DATABASE_URL for postgres)")
	} else {
		log.Printf("task store: postgres")
	}

	embedder := embedding.NewEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingDim)
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		log.Printf("embedder: local hashing (no OPENAI_API_KEY)")
	} else {
		log.Printf("embedder: openai")
	}

	idx := index.New()
	sessions := session.NewRegistry(cfg.SessionInactivityTimeout)
	eng := engine.New(store, idx, sessions, embedder, metrics)
	if err := eng.WarmIndex(ctx); err != nil {
		log.Printf("index warm-up failed (continuing with lazy hydration): %v", err)
	}
	sessions.SetEvictHook(func(sessionID string) {
		eng.ReleaseSession(sessionID)
		metrics.SetActiveSessions(sessions.ActiveCount())
	})

	var parser intent.Parser
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		parser = intent.NewOpenAIParser(cfg.OpenAIAPIKey, cfg.IntentModel)
		log.Printf("intent parser: openai (%s)", cfg.IntentModel)
	} else {
		log.Printf("intent parser: disabled (voice commands return 501; REST endpoints stay available)")
	}

	api := httpapi.New(cfg, eng, parser, sessions, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
