package render

import (
	"context"

	"github.com/crimson-sun/updash/internal/model"
)

// Renderer redraws the chart from the full current series. It is called after
// every store update with a series whose two sequences have equal length.
type Renderer interface {
	Render(ctx context.Context, ts model.TimeSeries) error
	Close() error
}
