package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/updash/internal/model"
	"github.com/crimson-sun/updash/internal/render"
)

// Multi fans a series out to several renderers. A failing renderer does not
// stop delivery to the ones after it.
type Multi struct {
	renderers []render.Renderer
}

// New creates a Multi over the given renderers.
func New(renderers ...render.Renderer) *Multi {
	return &Multi{renderers: renderers}
}

func (m *Multi) Render(ctx context.Context, ts model.TimeSeries) error {
	var errs []error
	for _, r := range m.renderers {
		if err := r.Render(ctx, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, r := range m.renderers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
