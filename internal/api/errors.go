package api

import (
	"errors"
	"io/fs"

	"github.com/alecthomas/participle/v2"
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-layers/internal/db"
	"github.com/joeblew999/plat-layers/internal/filter"
	"github.com/joeblew999/plat-layers/internal/layertree"
	"github.com/joeblew999/plat-layers/internal/service"
	"github.com/joeblew999/plat-layers/internal/style"
)

// apiError maps service errors to Huma status errors.
func apiError(err error) error {
	var (
		regression *layertree.StatusRegressionError
		syntax     participle.Error
	)
	switch {
	case errors.As(err, &regression):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, layertree.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, layertree.ErrNotLayer),
		errors.Is(err, style.ErrNoEntry),
		errors.Is(err, service.ErrInvalidSource),
		errors.Is(err, db.ErrInvalidTable):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, filter.ErrInvalidFreeText), errors.Is(err, db.ErrInvalidFilter):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.As(err, &syntax):
		return huma.Error422UnprocessableEntity("filter cannot be evaluated: " + err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
