package choropleth

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/binning"
	"github.com/sells-group/tqgap/internal/boundary"
	"github.com/sells-group/tqgap/internal/dataset"
	"github.com/sells-group/tqgap/internal/palette"
)

// Options configures a Builder.
type Options struct {
	Order binning.Mode
	Fetch FetchOptions
	Map   MapOptions
	// DefaultColorscale is used when a selection carries no colors.
	DefaultColorscale []string
}

// Result is one rebuilt map plus what was left out of it.
type Result struct {
	Spec     *MapSpec         `json:"figure"`
	Title    string           `json:"title"`
	Bins     []string         `json:"bins"`
	Colors   binning.ColorMap `json:"colors"`
	Dropped  []string         `json:"dropped"` // bins with no colorscale entry
	Failures []BinFailure     `json:"failures"`
	Warnings []string         `json:"warnings"`
}

// Builder runs the rebuild pipeline over a read-only dataset.
type Builder struct {
	ds       *dataset.Dataset
	provider boundary.Provider
	opts     Options
}

// NewBuilder creates a Builder. The dataset is shared and never modified.
func NewBuilder(ds *dataset.Dataset, provider boundary.Provider, opts Options) *Builder {
	if len(opts.DefaultColorscale) == 0 {
		opts.DefaultColorscale = palette.Default
	}
	return &Builder{ds: ds, provider: provider, opts: opts}
}

// Dataset returns the dataset the builder reads.
func (b *Builder) Dataset() *dataset.Dataset { return b.ds }

// Bins returns the ordered bins of the (year, metric) slice.
func (b *Builder) Bins(year int, metric string) []string {
	return binning.Order(b.ds.Bins(year, metric), b.opts.Order)
}

// InitialColorscale samples the default scale to the bin count of the opening slice.
func (b *Builder) InitialColorscale() []string {
	lo, _, ok := b.ds.YearRange()
	if !ok {
		return palette.Sample(b.opts.DefaultColorscale, len(b.opts.DefaultColorscale))
	}
	n := len(b.Bins(lo, dataset.DefaultMetric))
	if n == 0 {
		n = len(b.opts.DefaultColorscale)
	}
	return palette.Sample(b.opts.DefaultColorscale, n)
}

// Build rebuilds the map for sel, keeping the camera of prev.
// prev is never modified. An empty slice yields an empty map, not an error.
func (b *Builder) Build(ctx context.Context, sel Selection, prev *MapSpec) (*Result, error) {
	if err := sel.Validate(b.ds); err != nil {
		return nil, err
	}
	colorscale := sel.Colorscale
	if len(colorscale) == 0 {
		colorscale = b.InitialColorscale()
	}

	log := zap.L().With(zap.String("component", "choropleth.builder"),
		zap.Int("year", sel.Year), zap.String("metric", sel.Metric), zap.String("state", sel.State))

	raw := b.ds.Bins(sel.Year, sel.Metric)
	ordered := binning.Order(raw, b.opts.Order)
	colors := binning.AssignColors(ordered, colorscale)
	mapped, dropped := colors.Split(ordered)

	var warnings []string
	for _, l := range binning.Malformed(ordered) {
		warnings = append(warnings, fmt.Sprintf("bin %q does not start with a digit or '-'; ordered with non-negative bins", l))
	}
	if len(dropped) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d bin(s) have no color: colorscale has %d entries for %d bins", len(dropped), len(colorscale), len(ordered)))
	}

	base := boundary.Key{Year: sel.Year, Metric: sel.Metric, State: sel.State}
	overlays, failures, err := FetchOverlays(ctx, b.provider, base, mapped, colors, b.opts.Fetch)
	if err != nil {
		return nil, eris.Wrap(err, "choropleth: build")
	}
	if len(failures) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d boundary overlay(s) failed to load", len(failures), len(mapped)))
	}

	annotations := BuildLegend(mapped, colors, sel.Metric, sel.HideLegend)
	cam := CameraFrom(prev)
	if prev == nil && b.opts.Map.Camera != (Camera{}) {
		cam = b.opts.Map.Camera
	}
	spec := Compose(b.ds.Slice(sel.Year, sel.Metric), overlays, annotations, cam, b.opts.Map)

	log.Debug("map rebuilt",
		zap.Int("bins", len(ordered)),
		zap.Int("overlays", len(overlays)),
		zap.Int("dropped", len(dropped)),
		zap.Int("failures", len(failures)),
	)

	return &Result{
		Spec:     spec,
		Title:    Title(sel.Year),
		Bins:     ordered,
		Colors:   colors,
		Dropped:  dropped,
		Failures: failures,
		Warnings: warnings,
	}, nil
}
