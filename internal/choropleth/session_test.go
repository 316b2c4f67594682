package choropleth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tqgap/internal/boundary"
)

func validSelection(metric string) Selection {
	return Selection{Year: 1988, Metric: metric, State: "Washington", Colorscale: threeColors}
}

func TestSessions_NewSessionGetsID(t *testing.T) {
	s := NewSessions(newTestBuilder(&fakeProvider{}), time.Hour)

	id, res, err := s.Rebuild(context.Background(), "", validSelection("experience_gap"), nil)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, DefaultCamera, res.Spec.Camera())
	assert.Equal(t, 1, s.Len())

	again, _, err := s.Rebuild(context.Background(), id, validSelection("novice_gap"), nil)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, s.Len())
}

func TestSessions_CameraCarriedForward(t *testing.T) {
	s := NewSessions(newTestBuilder(&fakeProvider{}), time.Hour)
	ctx := context.Background()

	id, _, err := s.Rebuild(ctx, "", validSelection("experience_gap"), &Camera{Lat: 10, Lon: 20, Zoom: 3})
	require.NoError(t, err)

	_, res, err := s.Rebuild(ctx, id, validSelection("novice_gap"), nil)
	require.NoError(t, err)
	assert.Equal(t, Camera{Lat: 10, Lon: 20, Zoom: 3}, res.Spec.Camera())

	cam, ok := s.Camera(id)
	require.True(t, ok)
	assert.Equal(t, Camera{Lat: 10, Lon: 20, Zoom: 3}, cam)
}

func TestSessions_FailedRebuildKeepsCamera(t *testing.T) {
	p := &fakeProvider{}
	b := NewBuilder(testDataset(), p, Options{Fetch: FetchOptions{Policy: PolicyAbort}})
	s := NewSessions(b, time.Hour)
	ctx := context.Background()

	id, _, err := s.Rebuild(ctx, "", validSelection("experience_gap"), &Camera{Lat: 10, Lon: 20, Zoom: 3})
	require.NoError(t, err)

	p.mu.Lock()
	p.errs = map[string]error{"0.0 to 0.1": boundary.ErrNotFound}
	p.mu.Unlock()

	_, _, err = s.Rebuild(ctx, id, validSelection("novice_gap"), &Camera{Lat: 1, Lon: 1, Zoom: 1})
	require.Error(t, err)

	_, _, err = s.Rebuild(ctx, id, Selection{Year: 1988, Metric: "bogus", State: "Washington"}, nil)
	require.True(t, errors.Is(err, ErrInvalidSelection))

	cam, ok := s.Camera(id)
	require.True(t, ok)
	assert.Equal(t, Camera{Lat: 10, Lon: 20, Zoom: 3}, cam)

	_, res, err := s.Rebuild(ctx, id, validSelection("experience_gap"), nil)
	require.NoError(t, err)
	assert.Equal(t, Camera{Lat: 10, Lon: 20, Zoom: 3}, res.Spec.Camera())
}

func TestSessions_UnknownIDReplaced(t *testing.T) {
	s := NewSessions(newTestBuilder(&fakeProvider{}), time.Hour)

	id, _, err := s.Rebuild(context.Background(), "not-a-uuid", validSelection("experience_gap"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", id)

	_, ok := s.Camera("missing")
	assert.False(t, ok)
}

func TestSessions_InvalidFirstRebuildHasNoCamera(t *testing.T) {
	s := NewSessions(newTestBuilder(&fakeProvider{}), time.Hour)

	id, _, err := s.Rebuild(context.Background(), "", Selection{Year: 1988, Metric: "bogus", State: "Washington"}, nil)
	require.Error(t, err)

	_, ok := s.Camera(id)
	assert.False(t, ok)
}

func TestSessions_RetainCameraOnly(t *testing.T) {
	s := NewSessions(newTestBuilder(&fakeProvider{}), time.Hour)
	ctx := context.Background()

	for range 20 {
		_, res, err := s.Rebuild(ctx, "", validSelection("experience_gap"), &Camera{Lat: 10, Lon: 20, Zoom: 3})
		require.NoError(t, err)
		require.NotEmpty(t, res.Spec.Layout.Mapbox.Layers)
	}
	require.Equal(t, 20, s.Len())

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		assert.True(t, sess.hasCamera)
		assert.Equal(t, Camera{Lat: 10, Lon: 20, Zoom: 3}, sess.camera)
	}
}

func TestSessions_ReturnedSpecNotShared(t *testing.T) {
	s := NewSessions(newTestBuilder(&fakeProvider{}), time.Hour)
	ctx := context.Background()

	id, first, err := s.Rebuild(ctx, "", validSelection("experience_gap"), &Camera{Lat: 10, Lon: 20, Zoom: 3})
	require.NoError(t, err)

	// Mutating a returned spec must not leak into the next rebuild.
	first.Spec.Layout.Mapbox.Center = LatLon{Lat: -1, Lon: -1}
	first.Spec.Layout.Mapbox.Layers = nil

	_, second, err := s.Rebuild(ctx, id, validSelection("novice_gap"), nil)
	require.NoError(t, err)
	assert.Equal(t, Camera{Lat: 10, Lon: 20, Zoom: 3}, second.Spec.Camera())
}

func TestSessions_Sweep(t *testing.T) {
	s := NewSessions(newTestBuilder(&fakeProvider{}), time.Minute)
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, _, err := s.Rebuild(context.Background(), "", validSelection("experience_gap"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Sweep())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}
