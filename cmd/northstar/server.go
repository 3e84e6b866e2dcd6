package main

import (
	"context"
	"errors"
	"fmt"
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

	"github.com/northstar-app/northstar/internal/api"
	"github.com/northstar-app/northstar/internal/assembler"
	"github.com/northstar-app/northstar/internal/config"
	"github.com/northstar-app/northstar/internal/conversation"
	"github.com/northstar-app/northstar/internal/ingest"
	"github.com/northstar-app/northstar/internal/lambda"
	"github.com/northstar-app/northstar/internal/openai"
	"github.com/northstar-app/northstar/internal/pipeline"
	"github.com/northstar-app/northstar/internal/retrieval"
	"github.com/northstar-app/northstar/internal/semcache"
	"github.com/northstar-app/northstar/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the northstar server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running northstar server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show northstar system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "northstar.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "northstar version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.EnsureAPIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice: probe the health endpoint first.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("northstar is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("northstar is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the request pipeline.
	var openaiClient *openai.Client
	if cfg.OpenAI.BaseURL != "" {
		openaiClient = openai.NewClientWithBaseURL(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	} else {
		openaiClient = openai.NewClient(cfg.OpenAI.APIKey)
	}
	if !openaiClient.HasKey() {
		slog.Warn("no OpenAI API key configured; direct transport and retrieval are degraded")
	}

	embedder := retrieval.NewEmbedder(openaiClient)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore)
	contextBuilder := assembler.New(store, retriever)
	conversations := conversation.NewStore(store)

	var cache *semcache.Cache
	if cfg.Cache.Enabled {
		cache = semcache.New(store, embedder, float32(cfg.Cache.Threshold))
	}

	var proxyClient pipeline.ProxyClient
	if cfg.Proxy.Endpoint != "" {
		proxyClient = lambda.NewClient(cfg.Proxy.Endpoint)
	}

	orchestrator := pipeline.New(cache, contextBuilder, openaiClient, proxyClient)

	handler := api.NewHandler(api.Deps{
		Store:         store,
		Conversations: conversations,
		Orchestrator:  orchestrator,
		Retriever:     retriever,
		Token:         apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Background indexing worker.
	worker := ingest.NewWorker(store, embedder, vectorStore, 500*time.Millisecond)
	go worker.Run(ctx)

	// MCP server on stdio.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:        store,
		Retriever:    retriever,
		Orchestrator: orchestrator,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "northstar listening on %s\n", addr)
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

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("northstar is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop northstar (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to northstar (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.OpenAI.APIKey != "" {
		printStatus("OpenAI", "key configured, model %s", cfg.OpenAI.Model)
	} else {
		printStatus("OpenAI", "no key (direct transport disabled)")
	}
	if cfg.Proxy.Endpoint != "" {
		printStatus("Proxy", "%s", cfg.Proxy.Endpoint)
	} else {
		printStatus("Proxy", "not configured")
	}

	if running {
		if token, tokenErr := config.APIToken(cfg); tokenErr == nil {
			if stats, err := fetchStats(client, serverURL, token); err == nil {
				printStatus("Requests", "%d (%d cache hits, %d failures)",
					stats["requests"], stats["cache_hits"], stats["failures"])
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func fetchStats(client *http.Client, serverURL, token string) (map[string]uint64, error) {
	req, err := http.NewRequest("GET", serverURL+"/v1/stats", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	var stats map[string]uint64
	err = decodeJSON(resp, &stats)
	return stats, err
}
