package scan

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a fatal scan failure. Kinds are string-based so they
// serialize naturally and stay readable in logs.
type ErrorKind string

const (
	// KindEmptyDataset indicates the root contained zero eligible images.
	KindEmptyDataset ErrorKind = "EMPTY_DATASET"

	// KindRootNotFound indicates the root directory is missing or unreadable.
	KindRootNotFound ErrorKind = "ROOT_NOT_FOUND"

	// KindTableNotFound indicates the label table path is missing or unreadable.
	KindTableNotFound ErrorKind = "TABLE_NOT_FOUND"

	// KindColumnDetectionFailed indicates the filename column could not be
	// detected and no override was given, or an override named an absent column.
	KindColumnDetectionFailed ErrorKind = "COLUMN_DETECTION_FAILED"

	// KindInvalidConfig indicates the configuration was rejected before any I/O.
	KindInvalidConfig ErrorKind = "INVALID_CONFIGURATION"
)

// ScanError is a fatal error aborting a scan before any result is produced.
// Detail carries the offending path, column, or setting so callers can present
// an actionable message without string-matching.
type ScanError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ScanError) Unwrap() error { return e.Err }

// scanErrorf builds a ScanError with a formatted detail string.
func scanErrorf(kind ErrorKind, format string, args ...any) *ScanError {
	return &ScanError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *ScanError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *ScanError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
