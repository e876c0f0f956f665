// Command rivaldexd is the rivaldex competitor-tracking service.
// It serves the competitor API, a health check, and Prometheus metrics.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/rivaldex/rivaldex/internal/api"
	"github.com/rivaldex/rivaldex/internal/competitor"
	"github.com/rivaldex/rivaldex/internal/imagestore"
	"github.com/rivaldex/rivaldex/internal/ingestion"
	"github.com/rivaldex/rivaldex/internal/metrics"
	"github.com/rivaldex/rivaldex/internal/platform"
	"github.com/rivaldex/rivaldex/internal/profile"
	"github.com/rivaldex/rivaldex/pkg/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfgPath := os.Getenv("RIVALDEX_CONFIG")
	if cfgPath == "" {
		cfgPath = "rivaldex.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := platform.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init image storage: %w", err)
	}

	var source profile.Source
	if cfg.Source.BaseURL != "" {
		src, err := profile.NewHTTPSource(cfg.Source.BaseURL, cfg.Source.APIKey, nil)
		if err != nil {
			return fmt.Errorf("init profile source: %w", err)
		}
		source = src
	} else {
		logger.Warn("profile source not configured, ingestion will report the source as unavailable")
	}

	resolver := profile.NewResolver(source, logger)
	materializer := imagestore.NewMaterializer(blobs, nil, logger)
	store := competitor.NewStore(db)
	pipeline := ingestion.NewService(resolver, materializer, store, logger)

	apiMux := http.NewServeMux()
	handler := api.NewHandler(pipeline, store, time.Duration(cfg.Server.TimeoutSeconds)*time.Second, logger)
	handler.RegisterRoutes(apiMux)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.APIKeyAuth(cfg.Server.APIKey)(apiMux))
	mux.HandleFunc("GET /healthz", healthHandler(db))
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.CORS(api.RequestLog(logger)(mux)),
	}

	go func() {
		logger.Info("starting rivaldexd", "port", cfg.Server.Port, "image_backend", cfg.Images.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (imagestore.BlobStore, error) {
	switch cfg.Images.Backend {
	case "s3":
		return imagestore.NewS3Store(ctx, imagestore.S3Config{
			Bucket:     cfg.Images.S3.Bucket,
			Region:     cfg.Images.S3.Region,
			Endpoint:   cfg.Images.S3.Endpoint,
			AccessKey:  cfg.Images.S3.AccessKey,
			SecretKey:  cfg.Images.S3.SecretKey,
			PublicBase: cfg.Images.S3.PublicBase,
		})
	case "gcs":
		return imagestore.NewGCSStore(ctx, cfg.Images.GCS.Bucket, cfg.Images.GCS.PublicBase)
	default:
		return imagestore.NewLocalStore(cfg.Images.Local.Dir, cfg.Images.Local.PublicBase), nil
	}
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
