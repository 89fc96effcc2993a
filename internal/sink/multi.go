package sink

import (
	"context"
	"errors"
	"io"

	"github.com/nao1215/domaincrawl/internal/model"
)

// Multi emits every record to all of its sinks.
type Multi []model.RecordSink

// Emit delivers record to each sink, even when an earlier one fails.
func (m Multi) Emit(ctx context.Context, record *model.PageRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
