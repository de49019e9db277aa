package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"arcfolio/internal/domain/models"
	"arcfolio/internal/storage"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

const (
	projectsTable = "projects"

	defaultPerPage = 20
	maxPerPage     = 100
)

var projectColumns = []string{
	"id", "title", "excerpt", "description", "location",
	"category", "images", "created_at", "updated_at",
}

type ProjectRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

var _ ProjectRepository = (*ProjectRepo)(nil)

func NewProjectRepository(db *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ProjectRepo) GetProject(ctx context.Context, id uuid.UUID) (models.Project, error) {
	const op = "repository.project_repository.GetProject"

	query, args, err := r.sb.Select(projectColumns...).
		From(projectsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	project, err := scanProject(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, fmt.Errorf("%s: %w", op, storage.ErrProjectNotFound)
		}
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	return project, nil
}

func (r *ProjectRepo) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	const op = "repository.project_repository.CreateProject"

	images, err := marshalImages(project.Images)
	if err != nil {
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := r.sb.Insert(projectsTable).
		Columns(projectColumns...).
		Values(
			project.ID,
			project.Title,
			project.Excerpt,
			project.Description,
			project.Location,
			string(project.Category),
			images,
			project.CreatedAt,
			project.UpdatedAt,
		).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := scanProject(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Project{}, fmt.Errorf("%s: %w", op, storage.ErrProjectExists)
		}
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

// SaveProject перезаписывает документ целиком одной командой.
// Удалённый к этому моменту проект не воскрешается: возвращается ErrProjectNotFound.
func (r *ProjectRepo) SaveProject(ctx context.Context, project models.Project) (models.Project, error) {
	const op = "repository.project_repository.SaveProject"

	images, err := marshalImages(project.Images)
	if err != nil {
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := r.sb.Update(projectsTable).
		SetMap(map[string]interface{}{
			"title":       project.Title,
			"excerpt":     project.Excerpt,
			"description": project.Description,
			"location":    project.Location,
			"category":    string(project.Category),
			"images":      images,
			"updated_at":  project.UpdatedAt,
		}).
		Where(sq.Eq{"id": project.ID}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	saved, err := scanProject(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, fmt.Errorf("%s: %w", op, storage.ErrProjectNotFound)
		}
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	return saved, nil
}

func (r *ProjectRepo) DeleteProject(ctx context.Context, id uuid.UUID) error {
	const op = "repository.project_repository.DeleteProject"

	query, args, err := r.sb.Delete(projectsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrProjectNotFound)
	}

	return nil
}

func (r *ProjectRepo) ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, int, error) {
	const op = "repository.project_repository.ListProjects"

	page, perPage := normalizePage(filter.Page, filter.PerPage)

	where := sq.And{}
	if len(filter.Categories) > 0 {
		categories := lo.Map(filter.Categories, func(c models.Category, _ int) string { return string(c) })
		where = append(where, sq.Expr("category = ANY(?)", pq.Array(categories)))
	}

	// Получаем общее количество проектов (для пагинации)
	countQuery, countArgs, err := r.sb.Select("COUNT(*)").
		From(projectsTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := r.sb.Select(projectColumns...).
		From(projectsTable).
		Where(where).
		OrderBy("created_at DESC", "id").
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0, perPage)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return projects, total, nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func columnList() string {
	return strings.Join(projectColumns, ", ")
}

func marshalImages(images []models.Image) (string, error) {
	if images == nil {
		images = []models.Image{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func scanProject(row pgx.Row) (models.Project, error) {
	var (
		p        models.Project
		category string
		images   []byte
	)

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Excerpt,
		&p.Description,
		&p.Location,
		&category,
		&images,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return models.Project{}, err
	}

	p.Category = models.Category(category)
	p.Images = []models.Image{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return models.Project{}, fmt.Errorf("decode images: %w", err)
		}
	}

	return p, nil
}
