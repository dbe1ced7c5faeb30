package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external service error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Disposition describes how the pipeline treats a failed stage.
type Disposition string

const (
	// Recoverable failures are retried until the item's retry budget runs out.
	Recoverable Disposition = "recoverable"
	// Fatal failures mark the item failed without retrying.
	Fatal Disposition = "fatal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a stage error to its disposition. Only validation,
// configuration, and not-found markers are fatal; anything unrecognised is
// assumed transient.
func Classify(err error) Disposition {
	switch {
	case err == nil:
		return Recoverable
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return Fatal
	default:
		return Recoverable
	}
}

// IsRecoverable reports whether err should be retried.
func IsRecoverable(err error) bool {
	return Classify(err) == Recoverable
}

// IsTimeout reports whether err stems from a deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
