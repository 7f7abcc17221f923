package importer

import (
	"errors"
	"fmt"
	"strings"
)

// FileFormatError means the upload cannot be read as the expected workbook.
// Nothing is imported when it occurs.
type FileFormatError struct {
	Reason  string
	Missing []string
	Err     error
}

func (e *FileFormatError) Error() string {
	msg := "invalid workbook: " + e.Reason
	if len(e.Missing) > 0 {
		msg += " (missing: " + strings.Join(e.Missing, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FileFormatError) Unwrap() error { return e.Err }

func IsFileFormatError(err error) bool {
	var fe *FileFormatError
	return errors.As(err, &fe)
}

// RowSkipped describes a row excluded for failing validation.
type RowSkipped struct {
	SourceRow int      `json:"source_row"`
	Problems  []string `json:"problems"`
}

func (e *RowSkipped) Error() string {
	return fmt.Sprintf("row %d skipped: %s", e.SourceRow, strings.Join(e.Problems, "; "))
}

// ErrAssigneeCreationRace is reported when another import created the same
// assignee first; the caller reloads and reuses that user.
var ErrAssigneeCreationRace = errors.New("assignee created concurrently")

// ConstraintViolation is a storage constraint failure that could not be
// resolved as a duplicate. It aborts the commit.
type ConstraintViolation struct {
	SourceRow int
	Err       error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("row %d violates a storage constraint: %v", e.SourceRow, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }
