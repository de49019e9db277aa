package blob

import (
	"context"
	"errors"
	"time"

	"arcfolio/internal/metrics"
)

type instrumentedStore struct {
	next Store
}

// Instrument считает вызовы и время каждой операции next
func Instrument(next Store) Store {
	return &instrumentedStore{next: next}
}

func (s *instrumentedStore) Upload(ctx context.Context, file File, folder string, transforms []Transform) (UploadResult, error) {
	start := time.Now()
	res, err := s.next.Upload(ctx, file, folder, transforms)
	observe("upload", start, err)
	return res, err
}

func (s *instrumentedStore) Delete(ctx context.Context, publicID string) error {
	start := time.Now()
	err := s.next.Delete(ctx, publicID)
	observe("delete", start, err)
	return err
}

func observe(op string, start time.Time, err error) {
	metrics.BlobOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	result := metrics.ResultOK
	switch {
	case errors.Is(err, ErrNotFound):
		result = metrics.ResultNotFound
	case err != nil:
		result = metrics.ResultError
	}
	metrics.BlobOperationsTotal.WithLabelValues(op, result).Inc()
}
