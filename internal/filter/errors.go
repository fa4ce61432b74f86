package filter

import (
	"errors"
	"fmt"

	"github.com/joeblew999/plat-layers/internal/style"
)

var (
	ErrMalformedStyle   = errors.New("malformed style")
	ErrUnknownFieldKind = errors.New("unknown field kind")
	ErrInvalidFreeText  = errors.New("invalid free-text filter")

	errNilSetting = errors.New("no setting")
)

// MalformedStyleError is returned when a setting breaks the structural rules
// the compiler relies on. It only fails the compile call that saw it.
type MalformedStyleError struct {
	Geometry style.GeometryType // empty when compiling a lone setting
	Err      error
}

func (e *MalformedStyleError) Error() string {
	if e.Geometry != "" {
		return fmt.Sprintf("malformed style for %s: %v", e.Geometry, e.Err)
	}
	return fmt.Sprintf("malformed style: %v", e.Err)
}

func (e *MalformedStyleError) Unwrap() []error {
	return []error{ErrMalformedStyle, e.Err}
}

// UnknownFieldKindError is a warning: a style references a field without
// metadata, so its values were written as bare literals.
type UnknownFieldKindError struct {
	Field string
}

func (e *UnknownFieldKindError) Error() string {
	return fmt.Sprintf("no metadata for field %q, values written as bare literals", e.Field)
}

func (e *UnknownFieldKindError) Unwrap() error {
	return ErrUnknownFieldKind
}
