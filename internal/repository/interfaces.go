package repository

import (
	"context"

	"arcfolio/internal/domain/models"

	"github.com/google/uuid"
)

// ProjectFilter задаёт выборку списка проектов; пустой Categories означает все категории
type ProjectFilter struct {
	Categories []models.Category
	Page       int
	PerPage    int
}

type ProjectRepository interface {
	GetProject(ctx context.Context, id uuid.UUID) (models.Project, error)
	CreateProject(ctx context.Context, project models.Project) (models.Project, error)
	// SaveProject пишет существующий документ целиком и возвращает сохранённую версию
	SaveProject(ctx context.Context, project models.Project) (models.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
	ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, int, error)
}
