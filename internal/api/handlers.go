package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/choropleth"
	"github.com/sells-group/tqgap/internal/dataset"
	"github.com/sells-group/tqgap/internal/metrics"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"records":  s.builder.Dataset().Len(),
		"sessions": s.sessions.Len(),
	})
}

type optionsResponse struct {
	YearMin           int                 `json:"year_min"`
	YearMax           int                 `json:"year_max"`
	Years             []int               `json:"years"`
	Metrics           map[string][]string `json:"metrics"`
	States            []string            `json:"states"`
	DefaultMetric     string              `json:"default_metric"`
	DefaultState      string              `json:"default_state"`
	DefaultColorscale []string            `json:"default_colorscale"`
	Presets           []string            `json:"presets"`
}

func (s *Server) handleOptions(w http.ResponseWriter, _ *http.Request) {
	ds := s.builder.Dataset()
	lo, hi, _ := ds.YearRange()
	writeJSON(w, http.StatusOK, optionsResponse{
		YearMin: lo,
		YearMax: hi,
		Years:   ds.Years(),
		Metrics: map[string][]string{
			string(dataset.GroupTeacherQuality):      dataset.TeacherQualityMetrics,
			string(dataset.GroupStudentDisadvantage): dataset.StudentDisadvantageMetrics,
		},
		States:            dataset.States,
		DefaultMetric:     dataset.DefaultMetric,
		DefaultState:      dataset.DefaultState,
		DefaultColorscale: s.builder.InitialColorscale(),
		Presets:           s.presets.Names(),
	})
}

func (s *Server) handleBins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "year must be an integer")
		return
	}
	metric := strings.TrimSpace(q.Get("metric"))
	if metric == "" {
		metric = dataset.DefaultMetric
	}
	sel := choropleth.Selection{Year: year, Metric: metric, State: dataset.DefaultState}
	if err := sel.Validate(s.builder.Dataset()); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	bins := s.builder.Bins(year, metric)
	if bins == nil {
		bins = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "metric": metric, "bins": bins})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "year must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": choropleth.Title(year)})
}

type mapRequest struct {
	SessionID string `json:"session_id"`
	choropleth.Selection
	Preset string             `json:"preset"`
	Camera *choropleth.Camera `json:"camera"`
}

type mapResponse struct {
	SessionID string `json:"session_id"`
	*choropleth.Result
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req mapRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		metrics.ObserveRebuild("invalid", time.Since(start))
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get(SessionHeader)
	}
	if req.State == "" {
		req.State = dataset.DefaultState
	}
	if len(req.Colorscale) == 0 && req.Preset != "" {
		scale, ok := s.presets[req.Preset]
		if !ok {
			metrics.ObserveRebuild("invalid", time.Since(start))
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown preset "+strconv.Quote(req.Preset))
			return
		}
		req.Colorscale = scale
	}

	id, res, err := s.sessions.Rebuild(r.Context(), req.SessionID, req.Selection, req.Camera)
	w.Header().Set(SessionHeader, id)
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	if err != nil {
		if errors.Is(err, choropleth.ErrInvalidSelection) {
			metrics.ObserveRebuild("invalid", time.Since(start))
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		metrics.ObserveRebuild("error", time.Since(start))
		zap.L().Error("api: map rebuild failed", zap.String("session", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "rebuild_failed", err.Error())
		return
	}

	outcome := "ok"
	if len(res.Failures) > 0 {
		outcome = "partial"
	}
	metrics.ObserveRebuild(outcome, time.Since(start))
	if n := len(res.Dropped); n > 0 {
		metrics.DroppedBinsTotal.Add(float64(n))
	}

	writeJSON(w, http.StatusOK, mapResponse{SessionID: id, Result: res})
}

// handleCamera reports the camera retained for the session named by the session header
// or the session_id query parameter.
func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		id = r.Header.Get(SessionHeader)
	}
	cam, ok := s.sessions.Camera(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session_not_found", "no camera retained for session")
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache_disabled", "memory cache is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}
