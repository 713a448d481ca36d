package datasets

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfig is wrapped by every configuration validation error.
	ErrInvalidConfig = errors.New("invalid dataset configuration")

	// ErrNoData is returned by operations that need a partition the Session doesn't hold.
	ErrNoData = errors.New("partition not loaded")
)

// StageError identifies the partition, stage and configuration field
// responsible for a failure.
type StageError struct {
	Partition string
	Stage     string
	Field     string
	Err       error
}

// Error implements error.
func (e *StageError) Error() string {
	msg := e.Stage
	if e.Partition != "" {
		msg = fmt.Sprintf("partition %q: %s", e.Partition, msg)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

func invalidConfig(field, format string, args ...any) error {
	return &StageError{
		Stage: "config",
		Field: field,
		Err:   errors.Wrapf(ErrInvalidConfig, format, args...),
	}
}
