package client

import (
	"context"
	"errors"

	"github.com/famomatic/vodfetch/internal/types"
)

var (
	// ErrInvalidInput indicates a malformed media reference.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates an unknown channel, media item or episode.
	ErrNotFound = types.ErrNotFound
	// ErrUnsupported indicates the channel cannot perform the operation.
	ErrUnsupported = types.ErrUnsupported
)

// ErrorCategory is a stable, coarse label for errors returned by Client.
type ErrorCategory string

const (
	ErrorCategoryNone         ErrorCategory = ""
	ErrorCategoryInvalidInput ErrorCategory = "invalid_input"
	ErrorCategoryNotFound     ErrorCategory = "not_found"
	ErrorCategoryNetwork      ErrorCategory = "network"
	ErrorCategoryParse        ErrorCategory = "parse"
	ErrorCategoryExternalTool ErrorCategory = "external_tool"
	ErrorCategoryConcurrency  ErrorCategory = "concurrency"
	ErrorCategoryUnsupported  ErrorCategory = "unsupported"
	ErrorCategoryCanceled     ErrorCategory = "canceled"
	ErrorCategoryUnknown      ErrorCategory = "unknown"
)

// ClassifyError maps err onto an ErrorCategory.
func ClassifyError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, ErrInvalidInput):
		return ErrorCategoryInvalidInput
	case errors.Is(err, types.ErrNotFound):
		return ErrorCategoryNotFound
	case errors.Is(err, types.ErrNetwork):
		return ErrorCategoryNetwork
	case errors.Is(err, types.ErrParse):
		return ErrorCategoryParse
	case errors.Is(err, types.ErrExternalTool):
		return ErrorCategoryExternalTool
	case errors.Is(err, types.ErrConcurrency):
		return ErrorCategoryConcurrency
	case errors.Is(err, types.ErrUnsupported):
		return ErrorCategoryUnsupported
	case errors.Is(err, types.ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCanceled
	default:
		return ErrorCategoryUnknown
	}
}
