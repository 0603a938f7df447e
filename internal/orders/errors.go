package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is returned by input collaborators that cannot produce rows at all.
	ErrSourceUnavailable = errors.New("order source unavailable")
	// ErrEmptyDataset means no row survived validation.
	ErrEmptyDataset = errors.New("no valid order rows")
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError reports a rejected freight parameter.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// RowError describes why one input row was excluded.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
}
