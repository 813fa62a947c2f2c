package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/docindex/docindex/handlers"
	"github.com/docindex/docindex/internal/config"
	"github.com/docindex/docindex/internal/database"
	"github.com/docindex/docindex/internal/document/handler"
	"github.com/docindex/docindex/internal/document/repository"
	"github.com/docindex/docindex/internal/document/service"
	"github.com/docindex/docindex/internal/extract"
	"github.com/docindex/docindex/internal/locks"
	"github.com/docindex/docindex/internal/searchindex"
	"github.com/docindex/docindex/internal/storage"
	"github.com/docindex/docindex/internal/uploadlog"
	"github.com/docindex/docindex/pkg/logger"
	"github.com/docindex/docindex/pkg/metrics"
	"github.com/docindex/docindex/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: mongo=%v redis=%v minio=%v index=%q", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.Index.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Check{}

	// Redis backs the upload log and the maintenance lock when configured.
	var rdb *redis.Client
	var upLog uploadlog.Log = uploadlog.NewFileLog(cfg.Upload.LogPath)
	var locker locks.Locker = locks.NewLocalLocker()
	if addr := cfg.RedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; using file upload log and local lock", addr, err)
			_ = client.Close()
		} else {
			rdb = client
			defer func() { _ = rdb.Close() }()
			upLog = uploadlog.NewRedisLog(rdb, cfg.Redis.UploadLogKey)
			locker = locks.NewRedisLocker(rdb, "docindex:lock:", cfg.Redis.LockTTL)
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			logger.Infof("using Redis at %s for upload log and maintenance lock", addr)
		}
	}

	var repo repository.Repository = repository.NewMemoryRepo()
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.ConnectAttempts)
		if err != nil {
			logger.Fatalf("metadata store unavailable: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		mrepo, err := repository.NewMongoRepo(ctx, col)
		if err != nil {
			logger.Fatalf("failed to prepare documents collection: %v", err)
		}
		repo = mrepo
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	} else {
		logger.Warnf("MONGODB_URI not set; documents are kept in memory")
	}

	tempDir := cfg.Storage.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "docindex")
	}
	local, err := storage.NewLocalStore(tempDir)
	if err != nil {
		logger.Fatalf("failed to prepare temp storage: %v", err)
	}
	var blobs storage.BlobStore = local
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, cfg.MinIO, local)
		if err != nil {
			logger.Fatalf("failed to initialize MinIO storage: %v", err)
		}
		blobs = ms
		logger.Infof("storing uploads in MinIO bucket %s", cfg.MinIO.Bucket)
	}

	idx, err := searchindex.Open(cfg.Index.Path)
	if err != nil {
		logger.Fatalf("failed to open search index: %v", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			logger.Errorf("closing search index: %v", err)
		}
	}()
	checks["index"] = func(ctx context.Context) error {
		_, err := idx.Count(ctx)
		return err
	}

	extractor := extract.New(extract.Options{
		PDFToTextBin:           cfg.Extract.PDFToTextBin,
		LibreOfficeBin:         cfg.Extract.LibreOfficeBin,
		CommandTimeout:         cfg.Extract.CommandTimeout,
		SpreadsheetMemoryLimit: cfg.Extract.SpreadsheetMemoryLimit,
		TempDir:                tempDir,
	})

	svc := service.New(service.Deps{
		Repo:      repo,
		Index:     idx,
		Blobs:     blobs,
		Extractor: extractor,
		UploadLog: upLog,
		Locker:    locker,
	}, service.Options{
		Workers:    cfg.Upload.Workers,
		MaxHits:    cfg.Index.MaxHits,
		BatchSize:  cfg.Purge.BatchSize,
		BatchDelay: cfg.Purge.BatchDelay,
	})

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.RequestMetrics())

	handlers.RegisterHealth(r, startTime, 5*time.Second, checks)
	handlers.RegisterSwagger(r)

	api := r.Group("/")
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			api.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	api.Use(middleware.UploadLimit(cfg.Server.MaxUploadBytes))
	handler.RegisterDocumentRoutes(api, svc)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting docindex on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
	}
}
