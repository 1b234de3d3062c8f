package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrBranchInUse    = errors.New("branch has related projects and cannot be deleted")
	ErrDuplicateValue = errors.New("value already in use")
)

// ValidationError is a rule violation on a single field. Conflict marks uniqueness
// violations, which match ErrDuplicateValue.
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Conflict bool   `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return e.Conflict && target == ErrDuplicateValue
}

// NewConflict reports that value is already taken by another record.
func NewConflict(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Conflict: true}
}

// ValidationErrors collects every violation found on one record.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, v := range e {
		out[i] = v
	}
	return out
}

// Err returns nil when no violation was recorded.
func (e ValidationErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e *ValidationErrors) add(field, message string) {
	*e = append(*e, &ValidationError{Field: field, Message: message})
}

// IsValidation reports whether err carries field-level validation problems.
func IsValidation(err error) bool {
	var one *ValidationError
	var many ValidationErrors
	return errors.As(err, &one) || errors.As(err, &many)
}

// Fields flattens err into its validation problems. Non-validation errors yield nil.
func Fields(err error) []*ValidationError {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return []*ValidationError{one}
	}
	return nil
}
