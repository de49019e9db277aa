package blob

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"arcfolio/internal/storage"

	"github.com/gabriel-vasile/mimetype"
)

// File изображение, целиком прочитанное в память, с определённым по содержимому типом
type File struct {
	Filename    string
	ContentType string
	Extension   string
	Data        []byte
}

func (f File) Size() int64 {
	return int64(len(f.Data))
}

func (f File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// OpenImage читает часть multipart и отклоняет всё, что не является изображением.
// maxSize <= 0 отключает проверку размера.
func OpenImage(fh *multipart.FileHeader, maxSize int64) (File, error) {
	const op = "blob.OpenImage"

	if fh == nil || fh.Size == 0 {
		return File{}, fmt.Errorf("%s: %w: empty file", op, ErrInvalidImage)
	}
	if maxSize > 0 && fh.Size > maxSize {
		return File{}, fmt.Errorf("%s: %w: %d bytes", op, storage.ErrFileTooLarge, fh.Size)
	}

	src, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", op, err)
	}
	defer src.Close()

	var r io.Reader = src
	if maxSize > 0 {
		r = io.LimitReader(src, maxSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", op, err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return File{}, fmt.Errorf("%s: %w", op, storage.ErrFileTooLarge)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return File{}, fmt.Errorf("%s: %w: detected %s", op, ErrInvalidImage, mtype.String())
	}

	return File{
		Filename:    fh.Filename,
		ContentType: mtype.String(),
		Extension:   mtype.Extension(),
		Data:        data,
	}, nil
}
