// Package main is the Shirabe CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/catalog"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/loader"
	"github.com/hyperjump/shirabe/internal/manifest"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/server"
	"github.com/hyperjump/shirabe/internal/watcher"
	"github.com/hyperjump/shirabe/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shirabe/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "shirabe server" from the project dir uses the
// project's config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "manifest":
		runManifest()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("shirabe version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.Dataset, components.Ingest, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(components.Ingest, components.Catalog, components.Embedder, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	components.Ingest.Wait()
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	dataset := fs.String("dataset", "", "target dataset id (required)")
	versionLabel := fs.String("version", "", "version label (default: server-generated timestamp)")
	upsert := fs.Bool("upsert", false, "replace the version if it already exists")
	_ = fs.Parse(os.Args[2:])

	if *dataset == "" || fs.NArg() < 1 {
		fmt.Println("Usage: shirabe ingest -dataset <id> [flags] <source>")
		os.Exit(1)
	}
	source := fs.Arg(0)
	if !strings.Contains(source, "://") {
		if abs, err := filepath.Abs(source); err == nil {
			source = abs
		}
	}

	req := &models.IngestRequest{
		DatasetID: *dataset,
		Source:    source,
		Version:   *versionLabel,
		Upsert:    *upsert,
	}
	body, _ := json.Marshal(req)
	resp, err := http.Post(*serverURL+"/api/v1/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Ingest rejected (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out models.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Accepted: dataset=%s version=%s task=%s\n", out.DatasetID, out.Version, out.TaskID)
}

// buildQueryText joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	dataset := fs.String("dataset", "", "dataset id (required)")
	versionLabel := fs.String("version", "", "version label (required)")
	topK := fs.Int("top-k", 3, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *dataset == "" || *versionLabel == "" || fs.NArg() < 1 {
		fmt.Println("Usage: shirabe query -dataset <id> -version <label> [flags] <query>")
		os.Exit(1)
	}
	queryText := buildQueryText(fs.Args())
	if queryText == "" {
		fmt.Println("Usage: shirabe query -dataset <id> -version <label> [flags] <query>")
		os.Exit(1)
	}

	body, _ := json.Marshal(&models.QueryRequest{Query: queryText, TopK: *topK})
	url := fmt.Sprintf("%s/api/v1/datasets/%s/versions/%s/query", *serverURL, *dataset, *versionLabel)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Query failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(out.Results) == 0 {
			fmt.Println("No results.")
			return
		}
		for i, r := range out.Results {
			fmt.Printf("%d. score=%.4f\n", i+1, r.Score)
			fmt.Printf("   %s\n", utils.Truncate(r.Text, 200))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runManifest() {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	dataset := fs.String("dataset", "", "dataset id (required)")
	_ = fs.Parse(os.Args[2:])

	if *dataset == "" {
		fmt.Println("Usage: shirabe manifest -dataset <id>")
		os.Exit(1)
	}
	resp, err := http.Get(*serverURL + "/api/v1/datasets/" + *dataset + "/manifest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Manifest failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var m models.DatasetManifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// runWatch runs the directory watcher in the foreground without the HTTP
// server: files under the configured directories are ingested directly.
func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Watch.Directories) == 0 {
		fmt.Println("No watch directories configured (watch.directories)")
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.Dataset, components.Ingest, watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	w.SyncExistingFiles()
	logger.Info("watching", zap.Strings("directories", cfg.Watch.Directories), zap.String("dataset", cfg.Watch.Dataset))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	w.Stop()
	components.Ingest.Wait()
}

// Components holds initialized services.
type Components struct {
	Store    manifest.Store
	Embedder embedding.Embedder
	Catalog  *catalog.Catalog
	Ingest   *manifest.Service
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var store manifest.Store
	switch cfg.Storage.Backend {
	case "", "fs":
		store = manifest.NewFSStore(cfg.Storage.DataDir)
	case "minio":
		client, err := minio.New(cfg.Storage.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Storage.Minio.AccessKey, cfg.Storage.Minio.SecretKey, ""),
			Secure: cfg.Storage.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		store = manifest.NewMinioStore(client, cfg.Storage.Minio.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (use fs or minio)", cfg.Storage.Backend)
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using mock embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	cat := catalog.New()
	if n := cat.LoadSnapshots(cfg.Storage.IndexDir, func(path string, err error) {
		logger.Warn("skipping unreadable index snapshot", zap.String("path", path), zap.Error(err))
	}); n > 0 {
		logger.Info("loaded index snapshots", zap.Int("count", n))
	}

	registry := loader.NewRegistry()
	splitter := loader.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	registry.Register("file", loader.NewFileLoader(splitter))
	registry.RegisterUnsupported("s3", "s3 sources are not supported; download the object and ingest the local file")

	svc := manifest.NewService(store, registry, embedder, cat, manifest.ServiceConfig{
		IndexRoot:     cfg.Storage.IndexDir,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
	}, logger)

	return &Components{
		Store:    store,
		Embedder: embedder,
		Catalog:  cat,
		Ingest:   svc,
	}, nil
}

func printUsage() {
	fmt.Println(`shirabe - versioned document ingestion and semantic retrieval

Usage:
  shirabe server [flags]             Start the HTTP server
  shirabe ingest [flags] <source>    Submit a document for ingestion
  shirabe query [flags] <query>      Query a built dataset version
  shirabe manifest [flags]           Show a dataset's ingestion manifest
  shirabe status [flags]             Show server status
  shirabe watch [flags]              Watch directories and ingest changed files
  shirabe version                    Show version
  shirabe help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shirabe/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --server string    Server URL (default: http://localhost:8080)
  --dataset string   Target dataset id (required)
  --version string   Version label (default: server-generated timestamp)
  --upsert           Replace the version if it already exists

Query Flags:
  --server string    Server URL (default: http://localhost:8080)
  --dataset string   Dataset id (required)
  --version string   Version label (required)
  --top-k int        Number of results (default: 3)
  --output string    Output format: text or json (default: text)

Manifest Flags:
  --server string    Server URL (default: http://localhost:8080)
  --dataset string   Dataset id (required)

Watch Flags:
  --config string    Config file path
  --debug            Enable debug logging

Examples:
  shirabe server
  shirabe ingest --dataset docs --upsert report.pdf
  shirabe ingest --dataset docs --version v20250101T000000 notes.md
  shirabe manifest --dataset docs
  shirabe query --dataset docs --version v20250101T000000 "quarterly revenue"
  shirabe status
  shirabe watch`)
}
