package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/reconcile"
)

// ErrNoInput is returned when the operator's input stream closes.
var ErrNoInput = errors.New("no more input")

// ErrorCategory groups failures by what the operator can do about them.
type ErrorCategory string

const (
	CategoryInvalidURL  ErrorCategory = "invalid_url"
	CategoryInput       ErrorCategory = "invalid_input"
	CategoryNetwork     ErrorCategory = "network"
	CategoryTimeout     ErrorCategory = "timeout"
	CategoryUnavailable ErrorCategory = "unavailable"
	CategoryParse       ErrorCategory = "parse"
	CategoryProcess     ErrorCategory = "process"
	CategoryUnsupported ErrorCategory = "unsupported"
	CategoryFilesystem  ErrorCategory = "filesystem"
	CategoryCancelled   ErrorCategory = "cancelled"
	CategoryUnknown     ErrorCategory = "unknown"
)

// CategorizedError attaches a category to an error.
type CategorizedError struct {
	Category ErrorCategory
	Err      error
}

func (e CategorizedError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return e.Err.Error()
}

func (e CategorizedError) Unwrap() error {
	return e.Err
}

func wrapCategory(category ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	var existing CategorizedError
	if errors.As(err, &existing) {
		return err
	}
	return CategorizedError{Category: category, Err: err}
}

// CategoryOf reports the category of err. Context and parse errors are
// recognized even when nobody wrapped them.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	switch {
	case errors.Is(err, context.Canceled):
		return CategoryCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, formats.ErrMalformed):
		return CategoryParse
	case errors.Is(err, reconcile.ErrInvalidChoice), errors.Is(err, ErrNoInput):
		return CategoryInput
	}
	return CategoryUnknown
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CategoryOf(err) {
	case CategoryInvalidURL, CategoryInput:
		return 2
	case CategoryUnsupported:
		return 3
	case CategoryNetwork, CategoryTimeout, CategoryUnavailable:
		return 4
	case CategoryFilesystem:
		return 5
	case CategoryProcess, CategoryParse:
		return 6
	case CategoryCancelled:
		return 130
	}
	return 1
}

// Recoverable reports whether the interactive loop should carry on after err.
func Recoverable(err error) bool {
	switch CategoryOf(err) {
	case CategoryCancelled:
		return false
	}
	return !errors.Is(err, ErrNoInput)
}

type reportedError struct {
	err error
}

func (e reportedError) Error() string {
	return e.err.Error()
}

func (e reportedError) Unwrap() error {
	return e.err
}

// MarkReported flags err as already shown to the operator.
func MarkReported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// IsReported returns true if the error has already been printed to stderr.
func IsReported(err error) bool {
	var re reportedError
	return errors.As(err, &re)
}

// classifyToolError turns a yt-dlp "ERROR:" message into a categorized error.
func classifyToolError(action, message string) error {
	lower := strings.ToLower(message)
	category := CategoryProcess
	switch {
	case containsAny(lower, "unsupported url", "is not a valid url", "no video formats found"):
		category = CategoryUnsupported
	case containsAny(lower, "private", "sign in", "members only", "video unavailable",
		"not available", "has been removed", "age-restricted", "copyright", "http error 404"):
		category = CategoryUnavailable
	case containsAny(lower, "unable to download webpage", "connection", "temporary failure",
		"name resolution", "timed out", "http error 5", "http error 429"):
		category = CategoryNetwork
	}
	return CategorizedError{Category: category, Err: fmt.Errorf("%s: %s", action, message)}
}

func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
