package app

import (
	"context"
	"fmt"
	"log/slog"

	httpapp "arcfolio/internal/app/http"
	"arcfolio/internal/config"
	"arcfolio/internal/lib/logger/sl"
	"arcfolio/internal/repository"
	services "arcfolio/internal/services/project_service"
	"arcfolio/internal/storage/blob"
	blobs3 "arcfolio/internal/storage/blob/s3"
	filestorage "arcfolio/internal/storage/filestorage"
	redisstorage "arcfolio/internal/storage/redis"
	httprouters "arcfolio/internal/transport/http"
)

type App struct {
	log        *slog.Logger
	HTTPServer *httpapp.Server
	Projects   *services.ProjectService
	repo       *repository.Repository
	redis      *redisstorage.Client
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	repo, err := repository.NewRepository(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	checks := map[string]httprouters.HealthCheck{
		"postgres": repo.Ping,
	}

	var projects repository.ProjectRepository = repo.Project

	var rdb *redisstorage.Client
	if cfg.Redis.RedisAddr != "" {
		rdb = redisstorage.NewClient(cfg.Redis.RedisAddr, cfg.Redis.RedisPassword, cfg.Redis.RedisDB, cfg.Redis.Timeout)
		if err := rdb.HealthCheck(ctx); err != nil {
			// кэш необязателен, ошибки Redis обходятся в декораторе
			log.Warn("redis unavailable at start", sl.Err(err))
		}
		projects = repository.NewCachedProjectRepository(log, projects, rdb.Client, cfg.Cache.ProjectTTL)
		checks["redis"] = rdb.HealthCheck
	}

	store, uploadsDir, err := newBlobStore(ctx, cfg)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	projectService := services.NewProjectService(log, projects, blob.Instrument(store), services.Options{
		Folder: cfg.BlobStore.Folder,
		Transforms: []blob.Transform{
			{Width: cfg.BlobStore.MaxWidth, Crop: blob.CropLimit},
		},
		MaxFileSize:   cfg.BlobStore.MaxFileSize,
		UploadTimeout: cfg.BlobStore.UploadTimeout,
		DeleteTimeout: cfg.BlobStore.DeleteTimeout,
		Concurrency:   cfg.BlobStore.Concurrency,
		ListCacheTTL:  cfg.Cache.ListTTL,
	})

	routers := httprouters.NewRouter(log, projectService, checks)

	server := httpapp.New(log, routers, httpapp.Options{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		JWTSecret:       cfg.Auth.JWTSecret,
		BodyLimit:       cfg.HTTP.BodyLimit,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		UploadsDir:      uploadsDir,
		UploadsPrefix:   cfg.FileStorage.URLPrefix,
	})
	server.BuildRouters()

	return &App{
		log:        log,
		HTTPServer: server,
		Projects:   projectService,
		repo:       repo,
		redis:      rdb,
	}, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, string, error) {
	switch cfg.BlobStore.Driver {
	case config.BlobDriverS3:
		s3cfg := cfg.BlobStore.S3
		store, err := blobs3.New(ctx, blobs3.Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			PublicBaseURL:   s3cfg.PublicBaseURL,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
		return store, "", err
	default:
		store, err := filestorage.NewLocalFileStorage(cfg.FileStorage.BaseDir, cfg.FileStorage.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.BaseDir(), nil
	}
}

// Stop останавливает HTTP, дожидается фоновых удалений и закрывает соединения
func (a *App) Stop(ctx context.Context) {
	const op = "app.Stop"

	log := a.log.With(slog.String("op", op))

	if err := a.HTTPServer.Stop(); err != nil {
		log.Error("failed to stop http server", sl.Err(err))
	}

	if err := a.Projects.Wait(ctx); err != nil {
		log.Warn("background blob deletions still running", sl.Err(err))
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error("failed to close redis", sl.Err(err))
		}
	}

	a.repo.Close()
}
