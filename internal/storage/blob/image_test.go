package blob_test

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"arcfolio/internal/storage"
	"arcfolio/internal/storage/blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func createTestFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("images", filename)
	require.NoError(t, err)

	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	file, header, err := req.FormFile("images")
	require.NoError(t, err)
	file.Close()

	return header
}

func TestOpenImage(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		fh := createTestFile(t, "cover.png", pngHeader)

		f, err := blob.OpenImage(fh, 1<<20)
		require.NoError(t, err)
		assert.Equal(t, "image/png", f.ContentType)
		assert.Equal(t, ".png", f.Extension)
		assert.Equal(t, "cover.png", f.Filename)
		assert.Equal(t, int64(len(pngHeader)), f.Size())
	})

	t.Run("not an image", func(t *testing.T) {
		fh := createTestFile(t, "notes.png", []byte("just some text"))

		_, err := blob.OpenImage(fh, 1<<20)
		assert.ErrorIs(t, err, blob.ErrInvalidImage)
	})

	t.Run("too large", func(t *testing.T) {
		fh := createTestFile(t, "big.png", pngHeader)

		_, err := blob.OpenImage(fh, 4)
		assert.ErrorIs(t, err, storage.ErrFileTooLarge)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := blob.OpenImage(&multipart.FileHeader{Filename: "empty.png"}, 0)
		assert.ErrorIs(t, err, blob.ErrInvalidImage)
	})
}
