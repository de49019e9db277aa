// Package blob описывает внешнее хранилище изображений проектов.
//
// Реализации не повторяют вызовы: вызывающий решает, прерывает ли ошибка
// запрос (загрузка) или только логируется (удаление).
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrUpload       = errors.New("blob upload failed")
	ErrInvalidImage = errors.New("invalid image")
	ErrNotFound     = errors.New("blob not found")
	ErrTransient    = errors.New("blob store unavailable")
)

// Store загружает и удаляет объекты во внешнем хранилище
type Store interface {
	Upload(ctx context.Context, file File, folder string, transforms []Transform) (UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// UploadError возвращается для любой загрузки, не создавшей объект.
// errors.Is находит в ней и ErrUpload, и исходную причину.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("%s: %v", ErrUpload, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrUpload, e.Filename, e.Err)
}

func (e *UploadError) Unwrap() []error {
	return []error{ErrUpload, e.Err}
}

const CropLimit = "limit"

// Transform директива доставки для CDN перед хранилищем:
// {Width: 1600, Crop: "limit"} значит не шире 1600px и без увеличения.
type Transform struct {
	Width  int
	Height int
	Crop   string
}

func (t Transform) String() string {
	parts := make([]string, 0, 3)
	if t.Width > 0 {
		parts = append(parts, "w_"+strconv.Itoa(t.Width))
	}
	if t.Height > 0 {
		parts = append(parts, "h_"+strconv.Itoa(t.Height))
	}
	if t.Crop != "" {
		parts = append(parts, "c_"+t.Crop)
	}
	return strings.Join(parts, ",")
}

// DeliveryURL склеивает base и publicID и добавляет по параметру "t" на каждую трансформацию
func DeliveryURL(baseURL, publicID string, transforms []Transform) string {
	u := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(publicID, "/")

	q := url.Values{}
	for _, t := range transforms {
		if s := t.String(); s != "" {
			q.Add("t", s)
		}
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
