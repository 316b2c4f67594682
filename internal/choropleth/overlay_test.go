package choropleth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tqgap/internal/binning"
	"github.com/sells-group/tqgap/internal/boundary"
	"github.com/sells-group/tqgap/internal/boundary/mocks"
)

var baseKey = boundary.Key{Year: 1988, Metric: "experience_gap", State: "Washington"}

func TestFetchOverlays_OrderAndKeys(t *testing.T) {
	bins := []string{"0.3 to 0.5", "0.1 to 0.3", "-0.2 to -0.1"}
	colors := binning.AssignColors(bins, []string{"#111111", "#222222", "#333333"})

	p := mocks.NewMockProvider(t)
	for _, b := range bins {
		key := baseKey
		key.Bin = b
		g, err := boundary.ParseGeometry([]byte(polygonFC))
		require.NoError(t, err)
		p.On("Fetch", mock.Anything, key).Return(g, nil).Once()
	}

	overlays, failures, err := FetchOverlays(context.Background(), p, baseKey, bins, colors, FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, overlays, 3)
	for i, o := range overlays {
		assert.Equal(t, bins[i], o.Name)
		assert.Equal(t, colors[bins[i]], o.Color)
		assert.Equal(t, 0.6, o.Opacity)
		assert.Equal(t, "geojson", o.SourceType)
		assert.Equal(t, "fill", o.Type)
		assert.JSONEq(t, polygonFC, string(o.Source))
	}
}

func TestFetchOverlays_IgnoresUncoloredBins(t *testing.T) {
	bins := []string{"c", "b", "a"}
	colors := binning.AssignColors(bins, []string{"#111111", "#222222"})
	p := &fakeProvider{}

	overlays, _, err := FetchOverlays(context.Background(), p, baseKey, bins, colors, FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, overlays, 2)
	assert.Equal(t, []string{"c", "b"}, p.bins())
}

func TestFetchOverlays_SkipPolicy(t *testing.T) {
	bins := []string{"c", "b", "a"}
	colors := binning.AssignColors(bins, []string{"#111111", "#222222", "#333333"})
	p := &fakeProvider{errs: map[string]error{
		"b": eris.Wrap(boundary.ErrNotFound, "boundary: 1988/x"),
	}}

	var mu sync.Mutex
	observed := map[string]int{}
	opts := FetchOptions{Policy: PolicySkip, Observe: func(outcome string, _ time.Duration) {
		mu.Lock()
		observed[outcome]++
		mu.Unlock()
	}}

	overlays, failures, err := FetchOverlays(context.Background(), p, baseKey, bins, colors, opts)
	require.NoError(t, err)
	require.Len(t, overlays, 2)
	assert.Equal(t, "c", overlays[0].Name)
	assert.Equal(t, "a", overlays[1].Name)

	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Bin)
	assert.Equal(t, OutcomeNotFound, failures[0].Reason)
	assert.Equal(t, map[string]int{OutcomeOK: 2, OutcomeNotFound: 1}, observed)
}

func TestFetchOverlays_AbortPolicy(t *testing.T) {
	bins := []string{"c", "b", "a"}
	colors := binning.AssignColors(bins, []string{"#111111", "#222222", "#333333"})
	p := &fakeProvider{errs: map[string]error{"b": errors.New("connection reset")}}

	_, _, err := FetchOverlays(context.Background(), p, baseKey, bins, colors, FetchOptions{Policy: PolicyAbort})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `bin "b"`)
	assert.Contains(t, err.Error(), "connection reset")
	// Sequential fetch stops at the failing bin.
	assert.Equal(t, []string{"c", "b"}, p.bins())
}

func TestFetchOverlays_Timeout(t *testing.T) {
	bins := []string{"slow", "fast"}
	colors := binning.AssignColors(bins, []string{"#111111", "#222222"})
	p := &fakeProvider{delays: map[string]time.Duration{"slow": time.Second}}

	overlays, failures, err := FetchOverlays(context.Background(), p, baseKey, bins, colors, FetchOptions{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, overlays, 1)
	assert.Equal(t, "fast", overlays[0].Name)
	require.Len(t, failures, 1)
	assert.Equal(t, OutcomeTimeout, failures[0].Reason)
}

func TestFetchOverlays_ConcurrentKeepsOrder(t *testing.T) {
	bins := []string{"e", "d", "c", "b", "a"}
	colors := binning.AssignColors(bins, []string{"#111111", "#222222", "#333333", "#444444", "#555555"})
	// Earlier bins finish last.
	p := &fakeProvider{delays: map[string]time.Duration{
		"e": 50 * time.Millisecond,
		"d": 40 * time.Millisecond,
		"c": 30 * time.Millisecond,
		"b": 20 * time.Millisecond,
	}}

	overlays, failures, err := FetchOverlays(context.Background(), p, baseKey, bins, colors, FetchOptions{Concurrency: 5})
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, overlays, 5)
	for i, o := range overlays {
		assert.Equal(t, bins[i], o.Name)
	}
}

func TestFetchOverlays_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bins := []string{"a"}
	_, _, err := FetchOverlays(ctx, &fakeProvider{}, baseKey, bins, binning.AssignColors(bins, []string{"#111111"}), FetchOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchOverlays_Empty(t *testing.T) {
	overlays, failures, err := FetchOverlays(context.Background(), &fakeProvider{}, baseKey, nil, binning.ColorMap{}, FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, overlays)
	assert.Empty(t, failures)
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyAbort, ParsePolicy("abort"))
	assert.Equal(t, PolicySkip, ParsePolicy("skip"))
	assert.Equal(t, PolicySkip, ParsePolicy(""))
}
