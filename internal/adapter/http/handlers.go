package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// Radius limits accepted by the forecast endpoint, in meters.
const (
	DefaultRadius = 150
	MinRadius     = 50
	MaxRadius     = 500
)

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type stationsResponse struct {
	Stations []domain.Station `json:"stations"`
	Count    int              `json:"count"`
}

type cacheResponse struct {
	Invalidated string `json:"invalidated"`
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.svc.Stations(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stationsResponse{Stations: stations, Count: len(stations)})
}

// handleForecast serves GET /api/forecast?station=<query>&radius=<m>.
// Set history=true to include the daily modeling frame.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("station"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "station is required"})
		return
	}
	radius, err := parseRadius(q.Get("radius"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	withHistory := q.Get("history") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.writeError(w, err)
		return
	}

	type outcome struct {
		result domain.ForecastResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer s.sem.Release(1)
		res, err := s.svc.Run(ctx, query, radius)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		// The run sees the canceled context at its next stage boundary; its
		// result is dropped.
		s.writeError(w, ctx.Err())
	case out := <-done:
		if out.err != nil {
			s.writeError(w, out.err)
			return
		}
		if !withHistory {
			out.result.History = nil
		}
		writeJSON(w, http.StatusOK, out.result)
	}
}

func (s *Server) handlePurgeCache(w http.ResponseWriter, _ *http.Request) {
	if !s.svc.PurgeCache() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "result cache is disabled"})
		return
	}
	writeJSON(w, http.StatusOK, cacheResponse{Invalidated: "all"})
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	key, enabled, err := s.svc.InvalidateCache(r.Context(), chi.URLParam(r, "station"))
	if !enabled {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "result cache is disabled"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cacheResponse{Invalidated: key})
}

func parseRadius(s string) (int, error) {
	if s == "" {
		return DefaultRadius, nil
	}
	radius, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("radius must be an integer number of meters")
	}
	if radius < MinRadius || radius > MaxRadius {
		return 0, fmt.Errorf("radius must be between %d and %d meters", MinRadius, MaxRadius)
	}
	return radius, nil
}

// statusOf maps pipeline errors onto HTTP statuses.
func statusOf(err error) int {
	var (
		nf *domain.NotFoundError
		ie *domain.InsufficientDataError
		ae *domain.AlignmentError
		de *domain.DataError
	)
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ie), errors.As(err, &ae):
		return http.StatusUnprocessableEntity
	case errors.As(err, &de):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; the status is never seen.
		return 499
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error()}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		resp.Suggestions = nf.Suggestions
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		resp.Error = "internal error"
	}
	if status == http.StatusGatewayTimeout {
		resp.Error = "forecast timed out"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
