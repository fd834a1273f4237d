package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork indicates a transport failure or a non-2xx response.
	ErrNetwork = errors.New("network error")

	// ErrParse indicates a malformed manifest, page, or API payload.
	ErrParse = errors.New("parse error")

	// ErrNotFound indicates an unknown channel or an invalid media id.
	ErrNotFound = errors.New("not found")

	// ErrExternalTool indicates the remux tool exited unsuccessfully.
	ErrExternalTool = errors.New("external tool failed")

	// ErrConcurrency indicates a download permit could not be acquired.
	ErrConcurrency = errors.New("concurrency permit unavailable")

	// ErrUnsupported indicates the channel does not implement the operation.
	ErrUnsupported = errors.New("operation not supported by channel")

	// ErrCanceled indicates the job was canceled before reaching a terminal state.
	ErrCanceled = errors.New("canceled")
)

// NetworkError captures a failed HTTP exchange. StatusCode is 0 for transport errors.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed: status=%d url=%s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("request failed: url=%s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error        { return e.Err }
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ParseError reports content that could not be interpreted.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What + " failed"
	}
	return fmt.Sprintf("parse %s failed: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// NotFoundError reports a missing channel or media item.
type NotFoundError struct {
	Kind string // "channel", "media", "episode"
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.ID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error        { return e.Err }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ExternalToolError reports a non-zero exit of an external process.
type ExternalToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	tail := strings.TrimSpace(e.Stderr)
	if i := strings.LastIndexByte(tail, '\n'); i >= 0 {
		tail = strings.TrimSpace(tail[i+1:])
	}
	if tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error        { return e.Err }
func (e *ExternalToolError) Is(target error) bool { return target == ErrExternalTool }

// ConcurrencyError reports a permit acquisition failure.
type ConcurrencyError struct {
	Err error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("acquire download permit: %v", e.Err)
}

func (e *ConcurrencyError) Unwrap() error        { return e.Err }
func (e *ConcurrencyError) Is(target error) bool { return target == ErrConcurrency }
