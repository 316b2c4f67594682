package choropleth

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tqgap/internal/binning"
	"github.com/sells-group/tqgap/internal/boundary"
)

// FetchPolicy decides what a failed boundary fetch does to the rebuild.
type FetchPolicy string

const (
	// PolicySkip leaves the failed bin's overlay out and reports it.
	PolicySkip FetchPolicy = "skip"
	// PolicyAbort fails the whole rebuild on the first failed bin.
	PolicyAbort FetchPolicy = "abort"
)

// ParsePolicy maps a config value to a FetchPolicy, defaulting to PolicySkip.
func ParsePolicy(s string) FetchPolicy {
	if FetchPolicy(s) == PolicyAbort {
		return PolicyAbort
	}
	return PolicySkip
}

// Fetch outcomes reported to FetchOptions.Observe and in BinFailure.Reason.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeMalformed = "malformed"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// FetchOptions configures FetchOverlays.
type FetchOptions struct {
	Policy FetchPolicy
	// Timeout bounds each fetch. Zero means no per-fetch limit.
	Timeout time.Duration
	// Concurrency is the number of fetches in flight. Values below 1 mean sequential.
	Concurrency int
	Observe     func(outcome string, d time.Duration)
}

// BinFailure reports a bin whose overlay could not be built.
type BinFailure struct {
	Bin    string `json:"bin"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// FetchOverlays builds one fill overlay per colored bin, in bin order.
// Bins without a color are ignored. Under PolicySkip failed bins are omitted and returned as
// failures; under PolicyAbort the first failure in bin order is returned as the error.
func FetchOverlays(ctx context.Context, p boundary.Provider, base boundary.Key, bins []string, colors binning.ColorMap, opts FetchOptions) ([]Overlay, []BinFailure, error) {
	log := zap.L().With(zap.String("component", "choropleth.overlays"),
		zap.Int("year", base.Year), zap.String("metric", base.Metric), zap.String("state", base.State))

	mapped := make([]string, 0, len(bins))
	for _, b := range bins {
		if _, ok := colors[b]; ok {
			mapped = append(mapped, b)
		}
	}

	results := make([]*boundary.Geometry, len(mapped))
	errs := make([]error, len(mapped))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, bin := range mapped {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			key := base
			key.Bin = bin
			results[i], errs[i] = fetchOne(gctx, p, key, opts)
			if errs[i] != nil && opts.Policy == PolicyAbort {
				return errs[i]
			}
			return nil
		})
	}
	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "choropleth: fetch overlays")
	}

	if opts.Policy == PolicyAbort && waitErr != nil {
		for i, err := range errs {
			if err != nil && !errors.Is(err, context.Canceled) {
				return nil, nil, eris.Wrapf(err, "choropleth: overlay for bin %q", mapped[i])
			}
		}
		return nil, nil, eris.Wrap(waitErr, "choropleth: fetch overlays")
	}

	overlays := make([]Overlay, 0, len(mapped))
	var failures []BinFailure
	for i, bin := range mapped {
		if errs[i] != nil {
			log.Warn("boundary fetch failed, skipping overlay", zap.String("bin", bin), zap.Error(errs[i]))
			failures = append(failures, BinFailure{Bin: bin, Reason: outcomeOf(errs[i]), Error: errs[i].Error()})
			continue
		}
		overlays = append(overlays, Overlay{
			SourceType: "geojson",
			Source:     results[i].Payload,
			Type:       "fill",
			Color:      colors[bin],
			Opacity:    OverlayOpacity,
			Name:       bin,
		})
	}
	return overlays, failures, nil
}

func fetchOne(ctx context.Context, p boundary.Provider, key boundary.Key, opts FetchOptions) (*boundary.Geometry, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	g, err := p.Fetch(ctx, key)
	if opts.Observe != nil {
		opts.Observe(outcomeOf(err), time.Since(start))
	}
	return g, err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, boundary.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, boundary.ErrMalformed):
		return OutcomeMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
