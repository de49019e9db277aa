package http

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"arcfolio/internal/domain/models"
	"arcfolio/internal/lib/logger/sl"
	services "arcfolio/internal/services/project_service"
	"arcfolio/internal/storage"
	"arcfolio/internal/storage/blob"
	"arcfolio/internal/transport/http/dto"
	"arcfolio/internal/transport/http/dto/response"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	_ "arcfolio/docs"
)

type ProjectService interface {
	CreateProject(ctx context.Context, input dto.CreateProjectInput) (models.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (models.Project, error)
	ListProjects(ctx context.Context, query dto.ListProjectsQuery) ([]models.Project, int, error)
	UpdateProject(ctx context.Context, id uuid.UUID, input dto.UpdateProjectInput) (models.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
}

// HealthCheck проверяет одну внешнюю зависимость
type HealthCheck func(ctx context.Context) error

type Routers struct {
	log            *slog.Logger
	ProjectService ProjectService
	checks         map[string]HealthCheck
}

func NewRouter(log *slog.Logger, projectService ProjectService, checks map[string]HealthCheck) *Routers {
	return &Routers{
		log:            log,
		ProjectService: projectService,
		checks:         checks,
	}
}

const (
	formFieldImages         = "images"
	formFieldDeleteImageIDs = "deleteImagePublicIds"
	formFieldMainImageIndex = "mainImageIndex"

	healthCheckTimeout = 2 * time.Second
)

// ListProjects godoc
// @Summary Список проектов
// @Description Возвращает проекты от новых к старым. Общее количество в заголовке X-Total-Count.
// @Tags projects
// @Produce json
// @Param category query []string false "Фильтр по категории (Architecture, Interior design, Project management)" collectionFormat(multi)
// @Param page query int false "Номер страницы" default(1)
// @Param per_page query int false "Количество элементов на странице" default(20)
// @Success 200 {array} models.Project
// @Header 200 {integer} X-Total-Count "Общее количество проектов"
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/projects [get]
func (r *Routers) ListProjects(c echo.Context) error {
	const op = "http.routers.ListProjects"

	log := r.log.With(
		slog.String("op", op),
	)

	var query dto.ListProjectsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("Invalid query parameters", err.Error()))
	}

	projects, total, err := r.ProjectService.ListProjects(c.Request().Context(), query)
	if err != nil {
		return r.projectError(c, log, err, "Failed to fetch projects")
	}

	c.Response().Header().Set("X-Total-Count", strconv.Itoa(total))
	return c.JSON(http.StatusOK, projects)
}

// GetProject godoc
// @Summary Получить проект
// @Tags projects
// @Produce json
// @Param id path string true "UUID проекта" format(uuid)
// @Success 200 {object} models.Project
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/projects/{id} [get]
func (r *Routers) GetProject(c echo.Context) error {
	const op = "http.routers.GetProject"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidProjectID)
	}

	project, err := r.ProjectService.GetProject(c.Request().Context(), id)
	if err != nil {
		return r.projectError(c, log, err, "Failed to fetch project")
	}

	return c.JSON(http.StatusOK, project)
}

// CreateProject godoc
// @Summary Создать проект
// @Description Загружает изображения и создаёт проект. Первое изображение становится главным.
// @Tags projects
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Название"
// @Param excerpt formData string false "Краткое описание"
// @Param description formData string false "Описание"
// @Param location formData string false "Местоположение"
// @Param category formData string false "Категория"
// @Param images formData file true "Изображения (можно несколько)"
// @Success 201 {object} dto.CreateProjectResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/projects [post]
func (r *Routers) CreateProject(c echo.Context) error {
	const op = "http.routers.CreateProject"

	log := r.log.With(
		slog.String("op", op),
	)

	values, files, err := parseForm(c)
	if err != nil {
		log.Warn("invalid form", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("Invalid request format", err.Error()))
	}

	input := dto.CreateProjectInput{
		Title:       values.Get("title"),
		Excerpt:     values.Get("excerpt"),
		Description: values.Get("description"),
		Location:    values.Get("location"),
		Category:    values.Get("category"),
		Files:       files,
	}
	input.Normalize()

	if err := c.Validate(&input); err != nil {
		log.Warn("invalid create request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("Invalid project data", err.Error()))
	}

	// клиент может уйти, но загрузка и запись доводятся до конца
	ctx := context.WithoutCancel(c.Request().Context())

	project, err := r.ProjectService.CreateProject(ctx, input)
	if err != nil {
		return r.projectError(c, log, err, "Upload or save failed")
	}

	return c.JSON(http.StatusCreated, dto.CreateProjectResponse{Success: true, Project: project})
}

// UpdateProject godoc
// @Summary Изменить проект
// @Description Удаляет и добавляет изображения, выбирает главное, обновляет непустые поля.
// @Tags projects
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "UUID проекта" format(uuid)
// @Param title formData string false "Название"
// @Param excerpt formData string false "Краткое описание"
// @Param description formData string false "Описание"
// @Param location formData string false "Местоположение"
// @Param category formData string false "Категория"
// @Param images formData file false "Новые изображения"
// @Param deleteImagePublicIds formData []string false "public_id удаляемых изображений" collectionFormat(multi)
// @Param mainImageIndex formData int false "Индекс главного изображения в итоговом списке"
// @Success 200 {object} models.Project
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/projects/{id} [patch]
func (r *Routers) UpdateProject(c echo.Context) error {
	const op = "http.routers.UpdateProject"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidProjectID)
	}

	values, files, err := parseForm(c)
	if err != nil {
		log.Warn("invalid form", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("Invalid request format", err.Error()))
	}

	input := dto.UpdateProjectInput{
		Title:                values.Get("title"),
		Excerpt:              values.Get("excerpt"),
		Description:          values.Get("description"),
		Location:             values.Get("location"),
		Category:             values.Get("category"),
		Files:                files,
		DeleteImagePublicIDs: values[formFieldDeleteImageIDs],
		MainImageIndex:       parseMainImageIndex(values.Get(formFieldMainImageIndex)),
	}

	ctx := context.WithoutCancel(c.Request().Context())

	project, err := r.ProjectService.UpdateProject(ctx, id, input)
	if err != nil {
		return r.projectError(c, log, err, "Failed to update project")
	}

	return c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Удалить проект
// @Description Удаляет документ проекта, изображения удаляются из хранилища в фоне
// @Tags projects
// @Produce json
// @Param id path string true "UUID проекта" format(uuid)
// @Success 200 {object} dto.DeleteProjectResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/projects/{id} [delete]
func (r *Routers) DeleteProject(c echo.Context) error {
	const op = "http.routers.DeleteProject"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidProjectID)
	}

	ctx := context.WithoutCancel(c.Request().Context())

	if err := r.ProjectService.DeleteProject(ctx, id); err != nil {
		return r.projectError(c, log, err, "Failed to delete project")
	}

	return c.JSON(http.StatusOK, dto.DeleteProjectResponse{
		Success: true,
		Message: "Project and images deleted successfully",
	})
}

// Health godoc
// @Summary Проверка состояния
// @Tags service
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (r *Routers) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		return c.JSON(http.StatusServiceUnavailable, response.UnavailableResponse(failed))
	}

	checked := lo.Keys(r.checks)
	slices.Sort(checked)

	return c.JSON(http.StatusOK, response.SuccessResponse(checked))
}

func (r *Routers) projectError(c echo.Context, log *slog.Logger, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrNothingToUpdate):
		return c.JSON(http.StatusBadRequest, response.ErrNothingToUpdate)
	case errors.Is(err, services.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("Invalid project data", err.Error()))
	case errors.Is(err, storage.ErrProjectNotFound):
		return c.JSON(http.StatusNotFound, response.ErrProjectNotFound)
	}

	var uploadErr *blob.UploadError
	if errors.As(err, &uploadErr) {
		log.Error("image upload failed", slog.String("filename", uploadErr.Filename), sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrorResponseWithDetails(fallback, uploadErr.Error()))
	}

	log.Error(fallback, sl.Err(err))
	return c.JSON(http.StatusInternalServerError, response.ErrorResponseWithDetails(fallback, err.Error()))
}

// parseForm принимает multipart и urlencoded формы; пустые файлы отбрасываются
func parseForm(c echo.Context) (url.Values, []*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err == nil {
		files := lo.Filter(form.File[formFieldImages], func(fh *multipart.FileHeader, _ int) bool {
			return fh.Size > 0
		})
		return url.Values(form.Value), files, nil
	}
	if !errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, err
	}

	values, err := c.FormParams()
	if err != nil {
		return nil, nil, err
	}
	return values, nil, nil
}

// parseMainImageIndex: пустое значение означает "не задано", нечисловое даёт -1 и будет проигнорировано
func parseMainImageIndex(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	idx, err := strconv.Atoi(raw)
	if err != nil {
		idx = -1
	}
	return &idx
}
