package ledger

import (
	"errors"
	"fmt"
)

// ErrFinalBalance marks the unrecoverable case of a known method with no
// final balance row. It is created exactly once, at method creation; its
// absence later means the store is corrupt and must not be papered over.
var ErrFinalBalance = errors.New("final balance row missing")

// FieldError is a caller-attributable parse or validation failure. Field
// names the offending input so the presentation layer can point at it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }

// NotFoundError is a lookup failure for a user-entered name. Suggestion, if
// set, is the closest known name by edit distance.
type NotFoundError struct {
	Field      string
	Name       string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: unknown name %q (did you mean %q?)", e.Field, e.Name, e.Suggestion)
	}
	return fmt.Sprintf("%s: unknown name %q", e.Field, e.Name)
}
