package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arcfolio/internal/domain/models"
	"arcfolio/internal/lib/logger/handlers/slogdiscard"
	"arcfolio/internal/repository"
	"arcfolio/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const cacheTTL = time.Minute

type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) GetProject(ctx context.Context, id uuid.UUID) (models.Project, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Project), args.Error(1)
}

func (m *MockProjectRepository) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	args := m.Called(ctx, project)
	return args.Get(0).(models.Project), args.Error(1)
}

func (m *MockProjectRepository) SaveProject(ctx context.Context, project models.Project) (models.Project, error) {
	args := m.Called(ctx, project)
	return args.Get(0).(models.Project), args.Error(1)
}

func (m *MockProjectRepository) DeleteProject(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProjectRepository) ListProjects(ctx context.Context, filter repository.ProjectFilter) ([]models.Project, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Project), args.Int(1), args.Error(2)
}

func sampleProject() models.Project {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return models.Project{
		ID:       uuid.New(),
		Title:    "Villa",
		Category: models.CategoryArchitecture,
		Images: []models.Image{
			{URL: "https://cdn/a.png", PublicID: "projects/a", IsMain: true},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func setupCache(t *testing.T) (*repository.CachedProjectRepository, *MockProjectRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	next := new(MockProjectRepository)
	return repository.NewCachedProjectRepository(slogdiscard.NewDiscardLogger(), next, rdb, cacheTTL), next, mr
}

func TestCachedProjectRepository_GetProject(t *testing.T) {
	ctx := context.Background()

	t.Run("miss populates cache, hit skips database", func(t *testing.T) {
		cache, next, mr := setupCache(t)
		project := sampleProject()

		next.On("GetProject", mock.Anything, project.ID).Return(project, nil).Once()

		got, err := cache.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, project, got)
		assert.True(t, mr.Exists("project:"+project.ID.String()))
		assert.Equal(t, cacheTTL, mr.TTL("project:"+project.ID.String()))

		got, err = cache.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, project, got)

		next.AssertNumberOfCalls(t, "GetProject", 1)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		cache, next, mr := setupCache(t)
		id := uuid.New()

		next.On("GetProject", mock.Anything, id).Return(models.Project{}, storage.ErrProjectNotFound).Twice()

		_, err := cache.GetProject(ctx, id)
		assert.ErrorIs(t, err, storage.ErrProjectNotFound)
		assert.False(t, mr.Exists("project:"+id.String()))

		_, err = cache.GetProject(ctx, id)
		assert.ErrorIs(t, err, storage.ErrProjectNotFound)
		next.AssertExpectations(t)
	})

	t.Run("corrupted entry falls through", func(t *testing.T) {
		cache, next, mr := setupCache(t)
		project := sampleProject()
		require.NoError(t, mr.Set("project:"+project.ID.String(), "{not json"))

		next.On("GetProject", mock.Anything, project.ID).Return(project, nil).Once()

		got, err := cache.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, project, got)
	})

	t.Run("redis failures fall through to database", func(t *testing.T) {
		db, rmock := redismock.NewClientMock()
		next := new(MockProjectRepository)
		cache := repository.NewCachedProjectRepository(slogdiscard.NewDiscardLogger(), next, db, cacheTTL)

		project := sampleProject()
		key := "project:" + project.ID.String()

		rmock.ExpectGet(key).SetErr(errors.New("connection refused"))
		rmock.ExpectGet(key + ":gen").SetErr(errors.New("connection refused"))
		next.On("GetProject", mock.Anything, project.ID).Return(project, nil).Once()

		got, err := cache.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, project, got)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})
}

func TestCachedProjectRepository_SaveProject(t *testing.T) {
	ctx := context.Background()

	t.Run("save invalidates cached document", func(t *testing.T) {
		cache, next, mr := setupCache(t)
		project := sampleProject()
		updated := project.Clone()
		updated.Title = "Villa II"

		next.On("GetProject", mock.Anything, project.ID).Return(project, nil).Once()
		next.On("SaveProject", mock.Anything, updated).Return(updated, nil).Once()
		next.On("GetProject", mock.Anything, project.ID).Return(updated, nil).Once()

		_, err := cache.GetProject(ctx, project.ID)
		require.NoError(t, err)

		saved, err := cache.SaveProject(ctx, updated)
		require.NoError(t, err)
		assert.Equal(t, "Villa II", saved.Title)
		assert.False(t, mr.Exists("project:"+project.ID.String()))

		gen, err := mr.Get("project:" + project.ID.String() + ":gen")
		require.NoError(t, err)
		assert.Equal(t, "1", gen)
		assert.Equal(t, 2*cacheTTL, mr.TTL("project:"+project.ID.String()+":gen"))

		got, err := cache.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, "Villa II", got.Title)
		next.AssertExpectations(t)
	})

	t.Run("failed save keeps cache untouched", func(t *testing.T) {
		cache, next, mr := setupCache(t)
		project := sampleProject()
		require.NoError(t, mr.Set("project:"+project.ID.String(), "cached"))

		next.On("SaveProject", mock.Anything, project).Return(models.Project{}, errors.New("db down")).Once()

		_, err := cache.SaveProject(ctx, project)
		assert.Error(t, err)
		assert.True(t, mr.Exists("project:"+project.ID.String()))
	})
}

func TestCachedProjectRepository_DeleteProject(t *testing.T) {
	ctx := context.Background()

	t.Run("delete removes cached document", func(t *testing.T) {
		cache, next, mr := setupCache(t)
		project := sampleProject()
		require.NoError(t, mr.Set("project:"+project.ID.String(), "cached"))

		next.On("DeleteProject", mock.Anything, project.ID).Return(nil).Once()

		require.NoError(t, cache.DeleteProject(ctx, project.ID))
		assert.False(t, mr.Exists("project:"+project.ID.String()))
	})

	t.Run("missing project propagates not found", func(t *testing.T) {
		cache, next, _ := setupCache(t)
		id := uuid.New()

		next.On("DeleteProject", mock.Anything, id).Return(storage.ErrProjectNotFound).Once()

		assert.ErrorIs(t, cache.DeleteProject(ctx, id), storage.ErrProjectNotFound)
	})

	t.Run("redis failures do not block delete", func(t *testing.T) {
		db, rmock := redismock.NewClientMock()
		next := new(MockProjectRepository)
		cache := repository.NewCachedProjectRepository(slogdiscard.NewDiscardLogger(), next, db, cacheTTL)

		id := uuid.New()
		key := "project:" + id.String()

		rmock.ExpectIncr(key + ":gen").SetErr(errors.New("connection refused"))
		rmock.ExpectDel(key).SetErr(errors.New("connection refused"))
		next.On("DeleteProject", mock.Anything, id).Return(nil).Once()

		require.NoError(t, cache.DeleteProject(ctx, id))
		assert.NoError(t, rmock.ExpectationsWereMet())
	})
}

func TestCachedProjectRepository_ListProjects(t *testing.T) {
	cache, next, _ := setupCache(t)
	filter := repository.ProjectFilter{Categories: []models.Category{models.CategoryArchitecture}, Page: 1, PerPage: 10}
	projects := []models.Project{sampleProject()}

	next.On("ListProjects", mock.Anything, filter).Return(projects, 1, nil).Once()

	got, total, err := cache.ListProjects(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, projects, got)
}

// heldRepository хранит документы в памяти; первый GetProject отдаёт прочитанную копию
// только после release, как медленный запрос к базе
type heldRepository struct {
	mu       sync.Mutex
	projects map[uuid.UUID]models.Project
	loaded   chan struct{}
	release  chan struct{}
	held     bool
}

func newHeldRepository(projects ...models.Project) *heldRepository {
	r := &heldRepository{
		projects: make(map[uuid.UUID]models.Project),
		loaded:   make(chan struct{}),
		release:  make(chan struct{}),
	}
	for _, p := range projects {
		r.projects[p.ID] = p.Clone()
	}
	return r
}

func (r *heldRepository) GetProject(_ context.Context, id uuid.UUID) (models.Project, error) {
	r.mu.Lock()
	project, ok := r.projects[id]
	hold := !r.held
	r.held = true
	r.mu.Unlock()

	if hold {
		close(r.loaded)
		<-r.release
	}

	if !ok {
		return models.Project{}, storage.ErrProjectNotFound
	}
	return project.Clone(), nil
}

func (r *heldRepository) CreateProject(_ context.Context, project models.Project) (models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = project.Clone()
	return project, nil
}

func (r *heldRepository) SaveProject(_ context.Context, project models.Project) (models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; !ok {
		return models.Project{}, storage.ErrProjectNotFound
	}
	r.projects[project.ID] = project.Clone()
	return project, nil
}

func (r *heldRepository) DeleteProject(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return storage.ErrProjectNotFound
	}
	delete(r.projects, id)
	return nil
}

func (r *heldRepository) ListProjects(_ context.Context, _ repository.ProjectFilter) ([]models.Project, int, error) {
	return nil, 0, nil
}

func TestCachedProjectRepository_WriteDuringRead(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, project models.Project) (*repository.CachedProjectRepository, *heldRepository, *miniredis.Miniredis) {
		t.Helper()

		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		next := newHeldRepository(project)
		return repository.NewCachedProjectRepository(slogdiscard.NewDiscardLogger(), next, rdb, cacheTTL), next, mr
	}

	// readDuring запускает чтение, выполняет write, пока чтение держит старую копию, и ждёт чтение
	readDuring := func(t *testing.T, cache *repository.CachedProjectRepository, next *heldRepository, id uuid.UUID, write func()) models.Project {
		t.Helper()

		type result struct {
			project models.Project
			err     error
		}
		done := make(chan result, 1)
		go func() {
			p, err := cache.GetProject(ctx, id)
			done <- result{p, err}
		}()

		<-next.loaded
		write()
		close(next.release)

		res := <-done
		require.NoError(t, res.err)
		return res.project
	}

	t.Run("deleted project is not served from cache", func(t *testing.T) {
		project := sampleProject()
		project.Title = "v1"
		cache, next, mr := setup(t, project)

		stale := readDuring(t, cache, next, project.ID, func() {
			require.NoError(t, cache.DeleteProject(ctx, project.ID))
		})
		assert.Equal(t, "v1", stale.Title)
		assert.False(t, mr.Exists("project:"+project.ID.String()))

		_, err := cache.GetProject(ctx, project.ID)
		assert.ErrorIs(t, err, storage.ErrProjectNotFound)
	})

	t.Run("saved project replaces the copy read before the save", func(t *testing.T) {
		project := sampleProject()
		project.Title = "v1"
		project.Images = []models.Image{
			{URL: "https://cdn/a.png", PublicID: "projects/a", IsMain: true},
			{URL: "https://cdn/b.png", PublicID: "projects/b"},
		}
		cache, next, mr := setup(t, project)

		updated := project.Clone()
		updated.Title = "v2"
		updated.Images = updated.Images[:1]

		readDuring(t, cache, next, project.ID, func() {
			_, err := cache.SaveProject(ctx, updated)
			require.NoError(t, err)
		})
		assert.False(t, mr.Exists("project:"+project.ID.String()))

		got, err := cache.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Title)
		assert.Equal(t, []string{"projects/a"}, got.PublicIDs())

		// свежая копия уже в кэше
		assert.True(t, mr.Exists("project:"+project.ID.String()))
	})
}

func TestUncached(t *testing.T) {
	next := new(MockProjectRepository)
	cache := repository.NewCachedProjectRepository(slogdiscard.NewDiscardLogger(), next, redis.NewClient(&redis.Options{}), cacheTTL)

	assert.Same(t, next, repository.Uncached(cache))
	assert.Same(t, next, repository.Uncached(next))
}
