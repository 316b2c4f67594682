package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tqgap/internal/boundary"
	"github.com/sells-group/tqgap/internal/choropleth"
	"github.com/sells-group/tqgap/internal/dataset"
	"github.com/sells-group/tqgap/internal/palette"
)

type stubProvider struct {
	missing map[string]bool
}

func (p stubProvider) Fetch(_ context.Context, key boundary.Key) (*boundary.Geometry, error) {
	if p.missing[key.Bin] {
		return nil, boundary.ErrNotFound
	}
	return boundary.ParseGeometry([]byte(`{"type":"Polygon","coordinates":[[[-122,47],[-121,47],[-121,48],[-122,47]]]}`))
}

func newTestServer(t *testing.T, p boundary.Provider, opts choropleth.Options) http.Handler {
	t.Helper()
	ds := dataset.New([]dataset.Record{
		{Year: 1988, Metric: "experience_gap", Latitude: 47.1, Longitude: -122.1, Hover: "a", Bin: "0.1 to 0.3"},
		{Year: 1988, Metric: "experience_gap", Latitude: 47.2, Longitude: -122.2, Hover: "b", Bin: "-0.2 to -0.1"},
		{Year: 1988, Metric: "experience_gap", Latitude: 47.3, Longitude: -122.3, Hover: "c", Bin: "nan"},
		{Year: 1990, Metric: "novice_gap", Latitude: 47.4, Longitude: -122.4, Hover: "d", Bin: "0.0 to 0.1"},
	})
	b := choropleth.NewBuilder(ds, p, opts)
	cache, err := boundary.NewMemoryCache(4, time.Minute)
	require.NoError(t, err)
	srv := NewServer(b, choropleth.NewSessions(b, time.Hour), Options{
		Presets: palette.Presets{"default": palette.Default, "mono": {"#000000", "#ffffff"}},
		Cache:   cache,
	})
	return srv.Router([]string{"*"})
}

func postMap(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/map", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type mapBody struct {
	SessionID string                  `json:"session_id"`
	Title     string                  `json:"title"`
	Bins      []string                `json:"bins"`
	Dropped   []string                `json:"dropped"`
	Failures  []choropleth.BinFailure `json:"failures"`
	Figure    choropleth.MapSpec      `json:"figure"`
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(4), body["records"])
}

func TestOptions(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/options", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body optionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1988, body.YearMin)
	assert.Equal(t, 1990, body.YearMax)
	assert.Equal(t, []string{"Washington", "North Carolina"}, body.States)
	assert.Contains(t, body.Metrics["teacher_quality"], "experience_gap")
	assert.Contains(t, body.Metrics["student_disadvantage"], "novice_gap_frl")
	// Sized to the 1988 experience_gap slice: two non-sentinel bins.
	assert.Len(t, body.DefaultColorscale, 2)
	assert.Equal(t, []string{"default", "mono"}, body.Presets)
}

func TestBinsAndTitle(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bins?year=1988&metric=experience_gap", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var bins struct {
		Bins []string `json:"bins"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bins))
	assert.Equal(t, []string{"0.1 to 0.3", "-0.2 to -0.1"}, bins.Bins)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bins?year=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bins?year=1989", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"year":1989,"metric":"experience_gap","bins":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/title?year=1990", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"Heatmap of Measures of Teacher Quality in Year 1990"}`, w.Body.String())
}

func TestMap_SessionKeepsCamera(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})

	w := postMap(t, h, map[string]any{
		"year": 1988, "metric": "experience_gap", "state": "Washington",
		"colorscale": []string{"#111111", "#222222"},
		"camera":     map[string]float64{"lat": 10, "lon": 20, "zoom": 3},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var first mapBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.NotEmpty(t, first.SessionID)
	assert.Equal(t, first.SessionID, w.Header().Get(SessionHeader))
	assert.Equal(t, []string{"0.1 to 0.3", "-0.2 to -0.1"}, first.Bins)
	assert.Len(t, first.Figure.Layout.Mapbox.Layers, 2)
	assert.Equal(t, "Heatmap of Measures of Teacher Quality in Year 1988", first.Title)

	w = postMap(t, h, map[string]any{
		"session_id": first.SessionID,
		"year":       1990, "metric": "novice_gap", "state": "Washington",
		"preset": "mono",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var second mapBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, choropleth.Camera{Lat: 10, Lon: 20, Zoom: 3}, second.Figure.Camera())
	assert.Equal(t, "#000000", second.Figure.Layout.Mapbox.Layers[0].Color)
}

func TestMap_PartialFailure(t *testing.T) {
	h := newTestServer(t, stubProvider{missing: map[string]bool{"-0.2 to -0.1": true}}, choropleth.Options{})

	w := postMap(t, h, map[string]any{"year": 1988, "metric": "experience_gap"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body mapBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "-0.2 to -0.1", body.Failures[0].Bin)
	assert.Len(t, body.Figure.Layout.Mapbox.Layers, 1)
}

func TestMap_AbortPolicyReturnsBadGateway(t *testing.T) {
	h := newTestServer(t, stubProvider{missing: map[string]bool{"-0.2 to -0.1": true}},
		choropleth.Options{Fetch: choropleth.FetchOptions{Policy: choropleth.PolicyAbort}})

	w := postMap(t, h, map[string]any{"year": 1988, "metric": "experience_gap"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestMap_Invalid(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})

	tests := []struct {
		name string
		body any
	}{
		{"unknown metric", map[string]any{"year": 1988, "metric": "nope"}},
		{"year out of range", map[string]any{"year": 2020, "metric": "experience_gap"}},
		{"bad color", map[string]any{"year": 1988, "metric": "experience_gap", "colorscale": []string{"reddish"}}},
		{"unknown preset", map[string]any{"year": 1988, "metric": "experience_gap", "preset": "neon"}},
		{"not json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postMap(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestBins_Invalid(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})

	for _, target := range []string{
		"/api/bins?year=1988&metric=nope",
		"/api/bins?year=2020&metric=experience_gap",
		"/api/bins?year=1900",
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, w.Code, target)

		var body errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "validation_failed", body.Error, target)
	}
}

func TestCamera(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/camera?session_id=unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postMap(t, h, map[string]any{
		"year": 1988, "metric": "experience_gap",
		"camera": map[string]float64{"lat": 10, "lon": 20, "zoom": 3},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := w.Header().Get(SessionHeader)

	req := httptest.NewRequest(http.MethodGet, "/api/camera", nil)
	req.Header.Set(SessionHeader, id)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var cam choropleth.Camera
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cam))
	assert.Equal(t, choropleth.Camera{Lat: 10, Lon: 20, Zoom: 3}, cam)
}

func TestCacheStats(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats boundary.CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.MaxEntries)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, stubProvider{}, choropleth.Options{})
	req := httptest.NewRequest(http.MethodOptions, "/api/map", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
