package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"
	"sync"
	"time"

	"arcfolio/internal/domain/models"
	"arcfolio/internal/lib/logger/sl"
	"arcfolio/internal/metrics"
	"arcfolio/internal/repository"
	"arcfolio/internal/storage/blob"
	"arcfolio/internal/transport/http/dto"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNothingToUpdate = errors.New("no fields to update")
	ErrInvalidInput    = errors.New("invalid input")
)

// Options задаёт параметры работы с blob-хранилищем
type Options struct {
	Folder        string
	Transforms    []blob.Transform
	MaxFileSize   int64
	UploadTimeout time.Duration
	DeleteTimeout time.Duration
	Concurrency   int
	ListCacheTTL  time.Duration
}

type ProjectService struct {
	log   *slog.Logger
	repo  repository.ProjectRepository
	blobs blob.Store
	opts  Options
	lists *cache.Cache
	now   func() time.Time

	// source читает в обход кэша: изменения строятся только от актуального документа
	source repository.ProjectRepository

	// фоновые удаления blob-объектов; после Wait новые удаления выполняются синхронно
	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

func NewProjectService(log *slog.Logger, repo repository.ProjectRepository, blobs blob.Store, opts Options) *ProjectService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ListCacheTTL <= 0 {
		opts.ListCacheTTL = 30 * time.Second
	}

	return &ProjectService{
		log:    log,
		repo:   repo,
		source: repository.Uncached(repo),
		blobs:  blobs,
		opts:   opts,
		lists:  cache.New(opts.ListCacheTTL, 2*opts.ListCacheTTL),
		now:    time.Now,
	}
}

func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (models.Project, error) {
	const op = "services.project_service.GetProject"

	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	return project, nil
}

type projectPage struct {
	projects []models.Project
	total    int
}

func (s *ProjectService) ListProjects(ctx context.Context, query dto.ListProjectsQuery) ([]models.Project, int, error) {
	const op = "services.project_service.ListProjects"

	log := s.log.With(slog.String("op", op))

	filter := repository.ProjectFilter{Page: query.Page, PerPage: query.PerPage}
	for _, raw := range query.Category {
		for _, part := range strings.Split(raw, ",") {
			c, ok := models.ParseCategory(strings.TrimSpace(part))
			if !ok {
				return nil, 0, fmt.Errorf("%s: %w: unknown category %q", op, ErrInvalidInput, part)
			}
			filter.Categories = append(filter.Categories, c)
		}
	}
	if len(filter.Categories) > 1 {
		filter.Categories = lo.Uniq(filter.Categories)
	}

	key := fmt.Sprintf("%v|%d|%d", filter.Categories, filter.Page, filter.PerPage)
	if cached, ok := s.lists.Get(key); ok {
		page := cached.(projectPage)
		return page.projects, page.total, nil
	}

	projects, total, err := s.repo.ListProjects(ctx, filter)
	if err != nil {
		log.Error("failed to list projects", sl.Err(err))
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	s.lists.SetDefault(key, projectPage{projects: projects, total: total})

	return projects, total, nil
}

func (s *ProjectService) CreateProject(ctx context.Context, input dto.CreateProjectInput) (models.Project, error) {
	const op = "services.project_service.CreateProject"

	input.Normalize()

	log := s.log.With(
		slog.String("op", op),
		slog.String("title", input.Title),
	)

	if input.Title == "" {
		return models.Project{}, fmt.Errorf("%s: %w: title is required", op, ErrInvalidInput)
	}
	if len(input.Files) == 0 {
		return models.Project{}, fmt.Errorf("%s: %w: at least one image is required", op, ErrInvalidInput)
	}

	var category models.Category
	if input.Category != "" {
		c, ok := models.ParseCategory(input.Category)
		if !ok {
			return models.Project{}, fmt.Errorf("%s: %w: unknown category %q", op, ErrInvalidInput, input.Category)
		}
		category = c
	}

	log.Info("create project", slog.Int("images", len(input.Files)))

	images, err := s.uploadAll(ctx, log, input.Files)
	if err != nil {
		log.Error("failed to upload images", sl.Err(err))
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	project := models.Project{
		ID:          uuid.New(),
		Title:       input.Title,
		Excerpt:     input.Excerpt,
		Description: input.Description,
		Location:    input.Location,
		Category:    category,
		Images:      images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	project.SetMainImage(0)

	saved, err := s.repo.CreateProject(ctx, project)
	if err != nil {
		log.Error("failed to save project", sl.Err(err))
		s.deleteBlobs(ctx, log, metrics.OrphanCompensation, project.PublicIDs())
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	s.lists.Flush()
	log.Info("project created", slog.String("project_id", saved.ID.String()))

	return saved, nil
}

// UpdateProject применяет изменения в порядке: удаление ссылок, загрузка новых файлов,
// выбор главного изображения, текстовые поля, одна запись документа.
// Удалённые из документа объекты стираются в хранилище только после успешной записи.
func (s *ProjectService) UpdateProject(ctx context.Context, id uuid.UUID, input dto.UpdateProjectInput) (models.Project, error) {
	const op = "services.project_service.UpdateProject"

	log := s.log.With(
		slog.String("op", op),
		slog.String("project_id", id.String()),
	)

	if input.IsEmpty() {
		metrics.ProjectUpdatesTotal.WithLabelValues("rejected").Inc()
		return models.Project{}, fmt.Errorf("%s: %w", op, ErrNothingToUpdate)
	}

	current, err := s.source.GetProject(ctx, id)
	if err != nil {
		metrics.ProjectUpdatesTotal.WithLabelValues("not_found").Inc()
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	project := current.Clone()

	removeIDs := lo.Compact(lo.Map(input.DeleteImagePublicIDs, func(id string, _ int) string {
		return strings.TrimSpace(id)
	}))
	var removed []models.Image
	if len(removeIDs) > 0 {
		project.Images, removed = lo.FilterReject(project.Images, func(img models.Image, _ int) bool {
			return !lo.Contains(removeIDs, img.PublicID)
		})
	}

	uploaded, err := s.uploadAll(ctx, log, input.Files)
	if err != nil {
		log.Error("failed to upload images", sl.Err(err))
		metrics.ProjectUpdatesTotal.WithLabelValues("upload_failed").Inc()
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}
	project.Images = append(project.Images, uploaded...)

	if input.MainImageIndex != nil && !project.SetMainImage(*input.MainImageIndex) {
		log.Debug("main image index out of range, ignored",
			slog.Int("index", *input.MainImageIndex),
			slog.Int("images", len(project.Images)),
		)
	}

	applyFields(log, &project, input)
	project.UpdatedAt = s.now().UTC()

	saved, err := s.repo.SaveProject(ctx, project)
	if err != nil {
		log.Error("failed to save project", sl.Err(err))
		metrics.ProjectUpdatesTotal.WithLabelValues("save_failed").Inc()
		s.deleteBlobs(ctx, log, metrics.OrphanCompensation, publicIDs(uploaded))
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	s.lists.Flush()
	metrics.ProjectUpdatesTotal.WithLabelValues("ok").Inc()

	s.deleteBlobs(ctx, log, metrics.OrphanRemoval, publicIDs(removed))

	main, _ := saved.MainImage()
	log.Info("project updated",
		slog.Int("removed", len(removed)),
		slog.Int("uploaded", len(uploaded)),
		slog.String("main_image", main.PublicID),
	)

	return saved, nil
}

// DeleteProject удаляет документ, затем в фоне все его объекты в хранилище
func (s *ProjectService) DeleteProject(ctx context.Context, id uuid.UUID) error {
	const op = "services.project_service.DeleteProject"

	log := s.log.With(
		slog.String("op", op),
		slog.String("project_id", id.String()),
	)

	project, err := s.source.GetProject(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.DeleteProject(ctx, id); err != nil {
		log.Error("failed to delete project", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.lists.Flush()

	ids := project.PublicIDs()
	s.deleteBlobs(ctx, log, metrics.OrphanCascade, ids)

	log.Info("project deleted", slog.Int("images", len(ids)))

	return nil
}

// Wait ждёт завершения фоновых удалений или отмены ctx.
// Удаления, начатые после вызова Wait, в фон уже не уходят и выполняются в вызывающей горутине.
func (s *ProjectService) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func applyFields(log *slog.Logger, project *models.Project, input dto.UpdateProjectInput) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}

	set(&project.Title, input.Title)
	set(&project.Excerpt, input.Excerpt)
	set(&project.Description, input.Description)
	set(&project.Location, input.Location)

	if raw := strings.TrimSpace(input.Category); raw != "" {
		if c, ok := models.ParseCategory(raw); ok {
			project.Category = c
		} else {
			log.Warn("unknown category ignored", slog.String("category", raw))
		}
	}
}

// uploadAll загружает файлы параллельно и сохраняет порядок запроса.
// При любой ошибке уже загруженные объекты удаляются.
func (s *ProjectService) uploadAll(ctx context.Context, log *slog.Logger, files []*multipart.FileHeader) ([]models.Image, error) {
	if len(files) == 0 {
		return nil, nil
	}

	images := make([]models.Image, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, fh := range files {
		g.Go(func() error {
			file, err := blob.OpenImage(fh, s.opts.MaxFileSize)
			if err != nil {
				return &blob.UploadError{Filename: fh.Filename, Err: err}
			}

			uctx, cancel := s.withTimeout(gctx, s.opts.UploadTimeout)
			defer cancel()

			res, err := s.blobs.Upload(uctx, file, s.opts.Folder, s.opts.Transforms)
			if err != nil {
				var uploadErr *blob.UploadError
				if !errors.As(err, &uploadErr) {
					err = &blob.UploadError{Filename: fh.Filename, Err: err}
				}
				return err
			}

			images[i] = models.Image{URL: res.URL, PublicID: res.PublicID}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.deleteBlobs(ctx, log, metrics.OrphanCompensation, publicIDs(images))
		return nil, err
	}

	return images, nil
}

// deleteBlobs удаляет объекты в фоне, отвязавшись от отмены запроса.
// Ошибки не возвращаются: объект остаётся сиротой, это логируется и считается.
func (s *ProjectService) deleteBlobs(ctx context.Context, log *slog.Logger, reason string, ids []string) {
	if len(ids) == 0 {
		return
	}

	bg := context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		log.Debug("service is stopping, deleting blobs inline", slog.Int("count", len(ids)))
		s.deleteAll(bg, log, reason, ids)
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()

		s.deleteAll(bg, log, reason, ids)
	}()
}

func (s *ProjectService) deleteAll(bg context.Context, log *slog.Logger, reason string, ids []string) {
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			dctx, cancel := s.withTimeout(bg, s.opts.DeleteTimeout)
			defer cancel()

			err := s.blobs.Delete(dctx, id)
			switch {
			case err == nil:
			case errors.Is(err, blob.ErrNotFound):
				log.Debug("blob already absent", slog.String("public_id", id))
			default:
				log.Error("failed to delete blob",
					slog.String("public_id", id),
					slog.String("reason", reason),
					sl.Err(err),
				)
				metrics.OrphanedBlobsTotal.WithLabelValues(reason).Inc()
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (s *ProjectService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func publicIDs(images []models.Image) []string {
	return models.Project{Images: images}.PublicIDs()
}
