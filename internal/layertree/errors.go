package layertree

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("node not found")
	ErrDuplicateID      = errors.New("duplicate node id")
	ErrInvalidID        = errors.New("invalid node id")
	ErrNotGroup         = errors.New("node is not a group")
	ErrNotLayer         = errors.New("node is not a layer")
	ErrStatusRegression = errors.New("status regression")
)

// StatusRegressionError reports a rejected attempt to lower a node's status.
type StatusRegressionError struct {
	Path string
	From Status
	To   Status
}

func (e *StatusRegressionError) Error() string {
	return fmt.Sprintf("%s: cannot go from %s to %s", e.Path, e.From, e.To)
}

func (e *StatusRegressionError) Unwrap() error {
	return ErrStatusRegression
}
