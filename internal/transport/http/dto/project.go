package dto

import (
	"mime/multipart"
	"strings"

	"arcfolio/internal/domain/models"

	"github.com/samber/lo"
)

// CreateProjectInput собирается из multipart формы POST /api/v1/projects
type CreateProjectInput struct {
	Title       string                  `validate:"required"`
	Excerpt     string                  `validate:"max=1000"`
	Description string                  `validate:"max=20000"`
	Location    string                  `validate:"max=255"`
	Category    string                  `validate:"omitempty,project_category"`
	Files       []*multipart.FileHeader `validate:"min=1"`
}

// Normalize обрезает пробелы по краям текстовых полей
func (in *CreateProjectInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.TrimSpace(in.Category)
}

// UpdateProjectInput собирается из multipart формы PATCH /api/v1/projects/:id.
// Пустые текстовые поля означают "не менять".
type UpdateProjectInput struct {
	Title                string
	Excerpt              string
	Description          string
	Location             string
	Category             string
	Files                []*multipart.FileHeader
	DeleteImagePublicIDs []string
	MainImageIndex       *int
}

// IsEmpty сообщает, что запрос ничего не меняет
func (in UpdateProjectInput) IsEmpty() bool {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	return blank(in.Title) &&
		blank(in.Excerpt) &&
		blank(in.Description) &&
		blank(in.Location) &&
		blank(in.Category) &&
		len(in.Files) == 0 &&
		lo.EveryBy(in.DeleteImagePublicIDs, blank) &&
		in.MainImageIndex == nil
}

type ListProjectsQuery struct {
	Category []string `query:"category"`
	Page     int      `query:"page"`
	PerPage  int      `query:"per_page"`
}

type CreateProjectResponse struct {
	Success bool           `json:"success"`
	Project models.Project `json:"project"`
}

type DeleteProjectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
