package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
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

	"github.com/kalambet/endpointd/internal/api"
	"github.com/kalambet/endpointd/internal/cascade"
	"github.com/kalambet/endpointd/internal/config"
	"github.com/kalambet/endpointd/internal/embedding"
	"github.com/kalambet/endpointd/internal/kb"
	"github.com/kalambet/endpointd/internal/mcpserver"
	"github.com/kalambet/endpointd/internal/ollama"
	"github.com/kalambet/endpointd/internal/search"
	"github.com/kalambet/endpointd/internal/synth"
	"github.com/kalambet/endpointd/internal/vectorstore"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the endpointd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running endpointd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show endpointd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "endpointd.pid")
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

// telemetry adapts the sqlite store to the cascade's device-signal surface.
type telemetry struct {
	store *kb.SQLiteKB
}

func (t telemetry) RecentLogs(limit int) ([]kb.LogLine, error) {
	return t.store.RecentLogs(limit)
}

func (t telemetry) LatestHealth() (*kb.DeviceHealth, error) {
	h, err := t.store.LatestHealth()
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "endpointd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	backend, err := search.ParseBackend(cfg.Search.Backend)
	if err != nil {
		return err
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("endpointd is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("endpointd is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness. The vector backend needs the embedding model
	// before serving; other backends only touch it from the indexing
	// endpoints, so a cold Ollama is a warning there, not a startup failure.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if backend == search.BackendVector {
		if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
			return err
		}
	} else if !ollamaClient.IsRunning(ctx) {
		printWarning("Ollama is not running; vector indexing will fail until it is started")
	}

	// Open the knowledge base and the vector index.
	store, err := kb.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening knowledge base: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing knowledge base: %v\n", err)
		}
	}()

	vectors, err := vectorstore.Open(cfg.Storage.ResolvedVectorDir())
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer func() {
		if err := vectors.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing vector store: %v\n", err)
		}
	}()

	// Build the retrieval service.
	embedder := embedding.NewProvider(ollamaClient, cfg.Ollama.EmbedModel)
	retriever := search.NewRetriever(embedder, vectors, cfg.Search.Collection)
	searchSvc := search.NewService(search.Options{
		Backend:    backend,
		TopK:       cfg.Search.TopK,
		Synthesize: cfg.Synth.Enabled,
		Collection: cfg.Search.Collection,
		VectorDir:  cfg.Storage.ResolvedVectorDir(),
	}, search.Deps{
		KB: store,
		OpenPostgres: func() (search.LikeSearcher, error) {
			return kb.OpenPostgres(kb.PostgresConfig{
				Host:     cfg.Postgres.Host,
				Port:     cfg.Postgres.Port,
				Database: cfg.Postgres.Database,
				User:     cfg.Postgres.User,
				Password: cfg.Postgres.Password,
				Table:    cfg.Postgres.Table,
				SSLMode:  cfg.Postgres.SSLMode,
			})
		},
		Retriever: retriever,
		Embedder:  embedder,
		Store:     vectors,
		Synth:     synth.New(cfg.Synth.Bin, time.Duration(cfg.Synth.TimeoutSeconds)*time.Second),
	})

	// Build the decision cascade.
	static, err := cascade.LoadStatic(cfg.Storage.StaticKB)
	if err != nil {
		return fmt.Errorf("loading static KB table: %w", err)
	}
	uploadDir := cfg.Storage.ResolvedUploadDir()
	docsDir := cfg.Storage.ResolvedDocsDir()
	responder := cascade.New(logger, searchSvc, telemetry{store: store}, cascade.Options{
		UploadDirs: []string{uploadDir},
		DataDir:    docsDir,
		Static:     static,
	})

	// Build HTTP handler and server.
	handler := api.NewHandler(api.Deps{
		Asker:     responder,
		Indexer:   searchSvc,
		KB:        store,
		UploadDir: uploadDir,
		IndexDirs: []string{uploadDir, docsDir},
		DataDir:   docsDir,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Build and start MCP server (stdio transport in a goroutine).
	if cfg.MCP.Enabled {
		mcpSrv := mcpserver.New(mcpserver.Deps{
			Asker:    responder,
			Searcher: searchSvc,
			KB:       store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "endpointd listening on %s (backend=%s)\n", addr, backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
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
		printError("endpointd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop endpointd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to endpointd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check Ollama.
	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Backend", "%s", cfg.Search.Backend)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)

	// Show KB size directly from the local store.
	if store, err := kb.Open(cfg.Storage.DataDir); err == nil {
		if entries, err := store.All(); err == nil {
			printStatus("KB entries", "%d", len(entries))
		}
		store.Close()
	}

	// Show vector chunk count.
	if vectors, err := vectorstore.Open(cfg.Storage.ResolvedVectorDir()); err == nil {
		if n, err := vectors.Count(cfg.Search.Collection); err == nil {
			printStatus("Indexed chunks", "%d", n)
		}
		vectors.Close()
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
