package driven

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedFormat is returned for file extensions the extractor
	// does not handle.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptDocument is returned when a file of a supported format
	// cannot be parsed.
	ErrCorruptDocument = errors.New("corrupt document")
)

// TextExtractor converts a submission file on disk to plain text suitable
// for scoring.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}
