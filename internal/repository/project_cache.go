package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"arcfolio/internal/domain/models"
	"arcfolio/internal/lib/logger/sl"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	projectKeyPrefix = "project:"
	generationSuffix = ":gen"
)

var errStaleRead = errors.New("project changed during read")

// CachedProjectRepository читает документы проектов через Redis.
// Ошибки Redis только логируются, источником истины остаётся next.
//
// Каждая запись увеличивает счётчик project:<id>:gen. Читатель запоминает счётчик до похода
// в базу и кладёт документ в кэш под WATCH, только если счётчик не изменился, поэтому
// прочитанная до записи копия не переживает эту запись.
type CachedProjectRepository struct {
	log  *slog.Logger
	next ProjectRepository
	rdb  redis.UniversalClient
	ttl  time.Duration
}

var _ ProjectRepository = (*CachedProjectRepository)(nil)

func NewCachedProjectRepository(log *slog.Logger, next ProjectRepository, rdb redis.UniversalClient, ttl time.Duration) *CachedProjectRepository {
	return &CachedProjectRepository{
		log:  log,
		next: next,
		rdb:  rdb,
		ttl:  ttl,
	}
}

// Uncached возвращает хранилище под кэшем; остальные реализации возвращаются как есть
func Uncached(repo ProjectRepository) ProjectRepository {
	if c, ok := repo.(*CachedProjectRepository); ok {
		return c.next
	}
	return repo
}

func projectKey(id uuid.UUID) string {
	return projectKeyPrefix + id.String()
}

func generationKey(id uuid.UUID) string {
	return projectKey(id) + generationSuffix
}

func (c *CachedProjectRepository) GetProject(ctx context.Context, id uuid.UUID) (models.Project, error) {
	const op = "repository.project_cache.GetProject"

	log := c.log.With(
		slog.String("op", op),
		slog.String("project_id", id.String()),
	)

	key := projectKey(id)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var project models.Project
		if err := json.Unmarshal(data, &project); err == nil {
			return project, nil
		}
		log.Warn("corrupted cache entry, dropping")
		c.drop(ctx, log, key)
	case errors.Is(err, redis.Nil):
	default:
		log.Warn("cache read failed", sl.Err(err))
	}

	// без известного поколения копию из базы в кэш не кладём
	cacheable := true
	gen, err := c.rdb.Get(ctx, generationKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn("cache generation read failed", sl.Err(err))
		cacheable = false
	}

	project, err := c.next.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}

	if !cacheable {
		return project, nil
	}

	payload, err := json.Marshal(project)
	if err != nil {
		return project, nil
	}

	err = c.fill(ctx, id, gen, payload)
	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		log.Debug("project changed while loading, not cached")
	default:
		log.Warn("cache write failed", sl.Err(err))
	}

	return project, nil
}

// fill кладёт payload в кэш, если поколение проекта всё ещё равно gen
func (c *CachedProjectRepository) fill(ctx context.Context, id uuid.UUID, gen string, payload []byte) error {
	genKey := generationKey(id)

	return c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleRead
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, projectKey(id), payload, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

func (c *CachedProjectRepository) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	return c.next.CreateProject(ctx, project)
}

func (c *CachedProjectRepository) SaveProject(ctx context.Context, project models.Project) (models.Project, error) {
	const op = "repository.project_cache.SaveProject"

	saved, err := c.next.SaveProject(ctx, project)
	if err != nil {
		return models.Project{}, err
	}

	log := c.log.With(slog.String("op", op), slog.String("project_id", project.ID.String()))
	c.invalidate(ctx, log, project.ID)

	return saved, nil
}

func (c *CachedProjectRepository) DeleteProject(ctx context.Context, id uuid.UUID) error {
	const op = "repository.project_cache.DeleteProject"

	if err := c.next.DeleteProject(ctx, id); err != nil {
		return err
	}

	log := c.log.With(slog.String("op", op), slog.String("project_id", id.String()))
	c.invalidate(ctx, log, id)

	return nil
}

func (c *CachedProjectRepository) ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, int, error) {
	return c.next.ListProjects(ctx, filter)
}

// invalidate сдвигает поколение и удаляет документ из кэша
func (c *CachedProjectRepository) invalidate(ctx context.Context, log *slog.Logger, id uuid.UUID) {
	genKey := generationKey(id)

	if err := c.rdb.Incr(ctx, genKey).Err(); err != nil {
		log.Warn("cache generation bump failed", sl.Err(fmt.Errorf("incr %s: %w", genKey, err)))
	} else if c.ttl > 0 {
		// счётчик должен пережить закэшированный документ
		if err := c.rdb.Expire(ctx, genKey, 2*c.ttl).Err(); err != nil {
			log.Warn("cache generation expire failed", sl.Err(err))
		}
	}

	c.drop(ctx, log, projectKey(id))
}

func (c *CachedProjectRepository) drop(ctx context.Context, log *slog.Logger, key string) {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.Warn("cache invalidation failed", sl.Err(fmt.Errorf("del %s: %w", key, err)))
	}
}
