package models

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryArchitecture      Category = "Architecture"
	CategoryInteriorDesign    Category = "Interior design"
	CategoryProjectManagement Category = "Project management"
)

// Categories возвращает допустимые категории проекта в порядке отображения
func Categories() []Category {
	return []Category{
		CategoryArchitecture,
		CategoryInteriorDesign,
		CategoryProjectManagement,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryArchitecture, CategoryInteriorDesign, CategoryProjectManagement:
		return true
	}
	return false
}

// ParseCategory сопоставляет строку с категорией; регистр и пробелы должны совпадать точно
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}

// Image представляет изображение проекта, хранящееся в blob-хранилище
type Image struct {
	URL      string `json:"url"`       // URL, возвращённый хранилищем при загрузке
	PublicID string `json:"public_id"` // Идентификатор объекта в хранилище, нужен для удаления
	IsMain   bool   `json:"isMain"`    // Главное изображение проекта
}

// Project представляет проект портфолио вместе с упорядоченным списком изображений
type Project struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Category    Category  `json:"category,omitempty"`
	Images      []Image   `json:"images"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone возвращает копию, не разделяющую с p список изображений
func (p Project) Clone() Project {
	cp := p
	cp.Images = make([]Image, len(p.Images))
	copy(cp.Images, p.Images)
	return cp
}

// MainImage возвращает первое изображение с флагом главного
func (p Project) MainImage() (Image, bool) {
	for _, img := range p.Images {
		if img.IsMain {
			return img, true
		}
	}
	return Image{}, false
}

func (p Project) MainImageCount() int {
	n := 0
	for _, img := range p.Images {
		if img.IsMain {
			n++
		}
	}
	return n
}

func (p Project) PublicIDs() []string {
	ids := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img.PublicID != "" {
			ids = append(ids, img.PublicID)
		}
	}
	return ids
}

// SetMainImage снимает все флаги главного и ставит его images[idx].
// Индекс вне диапазона оставляет список как есть и возвращает false.
func (p *Project) SetMainImage(idx int) bool {
	if idx < 0 || idx >= len(p.Images) {
		return false
	}
	for i := range p.Images {
		p.Images[i].IsMain = false
	}
	p.Images[idx].IsMain = true
	return true
}
