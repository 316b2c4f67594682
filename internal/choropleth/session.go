package choropleth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions retains the last good camera per client so it survives rebuilds.
// Built maps are returned to the caller and never kept.
// Rebuilds of one session are serialized; different sessions rebuild concurrently.
type Sessions struct {
	builder *Builder
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu        sync.Mutex
	camera    Camera
	hasCamera bool
	lastUsed  time.Time
}

// cameraSpec is a previous spec carrying nothing but a camera.
func cameraSpec(c Camera) *MapSpec {
	return &MapSpec{Layout: Layout{Mapbox: Mapbox{
		Center: LatLon{Lat: c.Lat, Lon: c.Lon},
		Zoom:   c.Zoom,
	}}}
}

// NewSessions creates a session store. Sessions idle longer than ttl are dropped by Sweep.
func NewSessions(b *Builder, ttl time.Duration) *Sessions {
	return &Sessions{
		builder:  b,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// get returns the session for id, creating one under a fresh id when id is unknown.
func (s *Sessions) get(id string) (string, *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = s.now()
		return id, sess
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	sess := &session{lastUsed: s.now()}
	s.sessions[id] = sess
	return id, sess
}

// Rebuild builds the map for sel in session id and returns the (possibly new) session id.
// A non-nil camera replaces the retained one, as after a user pan or zoom.
// A failed rebuild leaves the retained camera untouched.
func (s *Sessions) Rebuild(ctx context.Context, id string, sel Selection, camera *Camera) (string, *Result, error) {
	id, sess := s.get(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var prev *MapSpec
	switch {
	case camera != nil:
		prev = cameraSpec(*camera)
	case sess.hasCamera:
		prev = cameraSpec(sess.camera)
	}

	res, err := s.builder.Build(ctx, sel, prev)
	if err != nil {
		return id, nil, err
	}
	sess.camera, sess.hasCamera = res.Spec.Camera(), true
	return id, res, nil
}

// Camera returns the retained camera of a session. ok is false for unknown
// sessions and for sessions without a successful rebuild.
func (s *Sessions) Camera(id string) (Camera, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return Camera{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.camera, sess.hasCamera
}

// Sweep drops sessions idle for longer than the ttl and returns how many were removed.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	var n int
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of retained sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration, onSweep func(removed, remaining int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			removed := s.Sweep()
			if onSweep != nil {
				onSweep(removed, s.Len())
			}
		}
	}
}
