// Command server runs the shopping-assistant backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	oai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"github.com/trailpost/shopagent/pkg/agent"
	"github.com/trailpost/shopagent/pkg/agent/llm"
	"github.com/trailpost/shopagent/pkg/agent/llm/anthropic"
	"github.com/trailpost/shopagent/pkg/agent/llm/openai"
	"github.com/trailpost/shopagent/pkg/agent/server"
	"github.com/trailpost/shopagent/pkg/agent/summarize"
	"github.com/trailpost/shopagent/pkg/agent/tools"
	"github.com/trailpost/shopagent/pkg/agent/turnstore"
	turnpg "github.com/trailpost/shopagent/pkg/agent/turnstore/postgres"
	"github.com/trailpost/shopagent/pkg/shop"
	"github.com/trailpost/shopagent/pkg/shop/cart"
	cartpg "github.com/trailpost/shopagent/pkg/shop/cart/postgres"
	"github.com/trailpost/shopagent/pkg/shop/catalog"
	catalogpg "github.com/trailpost/shopagent/pkg/shop/catalog/postgres"
	"github.com/trailpost/shopagent/pkg/shop/search"
	searchpg "github.com/trailpost/shopagent/pkg/shop/search/postgres"
)

// fileConfig is the yaml config file layout. Secrets come from the
// environment, never from the file.
type fileConfig struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	// Reasoning selects the chat provider: "anthropic" or "openai".
	Reasoning string `yaml:"reasoning"`

	Agent agent.Config `yaml:"agent"`
}

func loadConfig(path string) (fileConfig, error) {
	cfg := fileConfig{}
	cfg.Server.Addr = ":8080"
	cfg.Log.Level = "info"
	cfg.Reasoning = "anthropic"
	cfg.Agent = agent.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Environment overrides
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	return cfg, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg fileConfig, logger *slog.Logger) error {
	var (
		turns turnstore.Store
		cat   shop.Catalog
		crt   shop.Cart
		index search.VectorIndex
	)

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		if err := migrate(ctx, pool); err != nil {
			return err
		}

		turns = turnpg.New(pool)
		cat = catalogpg.New(pool)
		crt = cartpg.New(pool)
		index = searchpg.New(pool)
		logger.Info("using postgres stores")
	} else {
		memCatalog := catalog.NewMemoryStore()
		turns = turnstore.NewMemoryStore()
		cat = memCatalog
		crt = cart.NewMemoryStore(memCatalog)
		index = search.NewMemoryIndex()
		logger.Warn("no database configured, using in-memory stores")
	}

	openaiClient := oai.NewClient(os.Getenv("OPENAI_API_KEY"))

	var reasoning llm.Provider
	switch cfg.Reasoning {
	case "openai":
		reasoning = openai.New(openaiClient)
	default:
		reasoning = anthropic.NewFromEnv()
	}

	summarizer := summarize.NewLLM(openai.New(openaiClient), cfg.Agent.SummaryModel, cfg.Agent.SummaryTimeout)

	embedder := search.NewOpenAIEmbedder(openaiClient, "")
	searcher := search.NewService(embedder, index, cat)

	registry := tools.NewRegistry()
	shop.RegisterTools(registry, cat, crt, searcher)

	ag := agent.New(reasoning, turns, registry, summarizer,
		agent.WithConfig(cfg.Agent),
		agent.WithLogger(logger),
	)

	srv := server.New(ag, cat, crt, searcher, server.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "reasoning", cfg.Reasoning)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// Products first: cart lines and embeddings reference them.
	for _, ddl := range []string{
		catalogpg.Migration(),
		cartpg.Migration(),
		searchpg.Migration(),
		turnpg.Migration(),
	} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("applying migration: %w", err)
		}
	}
	return nil
}
