package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/rosterbot/internal/api"
	"github.com/kalambet/rosterbot/internal/config"
	"github.com/kalambet/rosterbot/internal/engine"
	"github.com/kalambet/rosterbot/internal/generation"
	"github.com/kalambet/rosterbot/internal/pipeline"
	"github.com/kalambet/rosterbot/internal/retrieval"
	"github.com/kalambet/rosterbot/internal/roster"
	"github.com/kalambet/rosterbot/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the roster index and start the HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running rosterbot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, backend and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the roster tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "rosterbot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// engines returns the embedding engine and, when generation runs on Ollama,
// the generation engine. They share one client when both are Ollama.
func engines(cfg config.Config) (embed engine.Engine, gen engine.Engine, err error) {
	embed, err = engine.Detect(engine.DetectConfig{
		Provider:      cfg.Embedding.Provider,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("detecting embedding engine: %w", err)
	}
	if cfg.Generation.Provider != config.ProviderOllama {
		return embed, nil, nil
	}
	if cfg.Embedding.Provider == config.ProviderOllama {
		return embed, embed, nil
	}
	return embed, engine.NewOllamaEngine(cfg.Ollama.BaseURL), nil
}

// buildPipeline loads the roster, readies the model backends (pulling
// missing Ollama models, with progress on progress) and builds the index.
// It returns only once every employee is embedded.
func buildPipeline(ctx context.Context, cfg config.Config, progress io.Writer) (*pipeline.Pipeline, error) {
	employees, err := roster.Load(cfg.Roster.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("roster loaded", "path", cfg.Roster.Path, "employees", len(employees))

	embedEngine, genEngine, err := engines(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Embedding.Provider == config.ProviderOllama {
		models := []string{cfg.Embedding.Model}
		if genEngine == embedEngine {
			models = append(models, cfg.Generation.Model)
		}
		if err := engine.EnsureReady(ctx, embedEngine, progress, models...); err != nil {
			return nil, err
		}
	} else if !embedEngine.IsRunning(ctx) {
		return nil, fmt.Errorf("embedding provider %s is not reachable", cfg.Embedding.Provider)
	}
	if genEngine != nil && genEngine != embedEngine {
		if err := engine.EnsureReady(ctx, genEngine, progress, cfg.Generation.Model); err != nil {
			return nil, err
		}
	}

	completer, err := generation.NewCompleter(generation.Options{
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
		APIKey:   cfg.GenerationAPIKey(),
		BaseURL:  cfg.GenerationBaseURL(),
		Engine:   genEngine,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.New(ctx, employees,
		retrieval.NewEmbedder(embedEngine, cfg.Embedding.Model),
		generation.New(completer, slog.Default()),
		pipeline.Options{TopK: cfg.Retrieval.TopK},
	)
}

func runServer(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "rosterbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	// Refuse to start twice on the same address.
	healthURL := strings.TrimRight(cfg.Client.BackendURL, "/") + "/health"
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		printWarning("rosterbot is already running at %s", cfg.Client.BackendURL)
		return fmt.Errorf("server already running at %s", cfg.Client.BackendURL)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	handler := api.NewRouter(api.Deps{
		Pipeline:       p,
		Store:          store,
		Provider:       cfg.Generation.Provider,
		Model:          cfg.Generation.Model,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
	})

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		printSuccess("rosterbot listening on %s (%d employees)", addr, p.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP serves the MCP tools on stdin/stdout. Logs and pull progress go to
// stderr so they never mix with the protocol stream.
func runMCP(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Pipeline: p,
		Store:    store,
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
	}, version)

	slog.Info("MCP server started (stdio transport)", "employees", p.Len())
	err = server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.LoadClient()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("rosterbot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop rosterbot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to rosterbot (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.LoadClient()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := &http.Client{Timeout: 2 * time.Second}
	base := strings.TrimRight(cfg.Client.BackendURL, "/")

	resp, err := client.Get(base + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health struct {
			Employees int `json:"employees"`
		}
		json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running at %s", base)
			printStatus("Employees", "%d indexed", health.Employees)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if engine.NewOllamaEngine(cfg.Ollama.BaseURL).IsRunning(ctx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}

	printStatus("Embedding", "%s (%s)", cfg.Embedding.Model, cfg.Embedding.Provider)
	printStatus("Generation", "%s (%s)", cfg.Generation.Model, cfg.Generation.Provider)
	printStatus("Top k", "%d", cfg.Retrieval.TopK)
	printStatus("Roster", "%s", cfg.Roster.Path)

	if err == nil && resp.StatusCode == http.StatusOK {
		ixResp, err := client.Get(base + "/interactions?limit=100")
		if err == nil {
			var interactions []json.RawMessage
			if json.NewDecoder(ixResp.Body).Decode(&interactions) == nil {
				printStatus("Interactions", "%s", countLabel(len(interactions), 100))
			}
			ixResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Config file", "%s", config.ConfigFilePath())
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
