package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/swaggo/swag"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
	Kind  string `json:"kind,omitempty" example:"transport"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// BackfillRequest asks for a consumption history import
// @Description Consumption backfill request
type BackfillRequest struct {
	Days int `json:"days" example:"30"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the liveness status of the process
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the state store and lock backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  StatusResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := StatusResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Auth endpoints

// handleLogin godoc
// @Summary      Login
// @Description  Authenticate with username and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.auth.Authenticate(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "username and password are required")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		s.logger.Error("authentication failed", "error", err)
		writeError(w, http.StatusInternalServerError, "authentication failed")
	}
}

// Snapshot endpoints

// handleGetSnapshot godoc
// @Summary      Latest snapshot
// @Description  Returns the most recently published snapshot
// @Tags         Snapshot
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Snapshot
// @Failure      404  {object}  ErrorResponse  "No snapshot published yet"
// @Router       /snapshot [get]
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeServiceError(w, errCoordinatorUnavailable)
		return
	}
	snap, err := s.snapshots.Snapshot(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshot published yet")
			return
		}
		s.logger.Error("failed to read snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSnapshotStream godoc
// @Summary      Snapshot stream
// @Description  Server-sent events; one "snapshot" event per published snapshot, starting with the current one
// @Tags         Snapshot
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200
// @Failure      503  {object}  ErrorResponse
// @Router       /snapshot/stream [get]
func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		writeServiceError(w, errCoordinatorUnavailable)
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	updates, unsubscribe := s.coordinator.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				s.logger.Error("failed to encode snapshot event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Sequence, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// Coordinator endpoints

// handleGetStatus godoc
// @Summary      Coordinator status
// @Description  Tick counters, schedules and background task handles
// @Tags         Coordinator
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.CoordinatorStatus
// @Failure      503  {object}  ErrorResponse
// @Router       /status [get]
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		writeServiceError(w, errCoordinatorUnavailable)
		return
	}
	status, err := s.coordinator.Status(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleRefresh godoc
// @Summary      Run a tick now
// @Description  Runs one update tick immediately. Rate limited.
// @Tags         Coordinator
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.TickResult
// @Failure      409  {object}  ErrorResponse  "A tick is already running"
// @Failure      429  {object}  ErrorResponse  "Too many refresh requests"
// @Failure      502  {object}  ErrorResponse  "Upstream fetch failed"
// @Router       /refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		writeServiceError(w, errCoordinatorUnavailable)
		return
	}

	reservation := s.refreshLimiter.ReserveN(s.now(), 1)
	if delay := reservation.DelayFrom(s.now()); delay > 0 {
		reservation.CancelAt(s.now())
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "refresh rate limit exceeded")
		return
	}

	result, err := s.coordinator.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleBackfill godoc
// @Summary      Start a consumption backfill
// @Description  Imports hourly consumption history for the last N days in the background
// @Tags         Coordinator
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      BackfillRequest  true  "Days to import"
// @Success      202      {object}  domain.TaskHandle
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Backfill already running"
// @Router       /consumption/backfill [post]
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		writeServiceError(w, errCoordinatorUnavailable)
		return
	}

	var req BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	handle, err := s.coordinator.Backfill(r.Context(), req.Days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

// handleCancelTask godoc
// @Summary      Cancel a background task
// @Tags         Coordinator
// @Security     BearerAuth
// @Param        name  path  string  true  "Task name"
// @Success      204
// @Failure      404  {object}  ErrorResponse  "Task is not running"
// @Router       /tasks/{name} [delete]
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		writeServiceError(w, errCoordinatorUnavailable)
		return
	}
	if err := s.coordinator.CancelTask(r.Context(), r.PathValue("name")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Calendar endpoints

// handleListCalendar godoc
// @Summary      Calendar events
// @Description  Peak events mirrored into the contract calendar
// @Tags         Calendar
// @Produce      json
// @Security     BearerAuth
// @Param        since  query  string  false  "RFC 3339 lower bound on event end (default: now)"
// @Success      200  {array}   domain.CalendarEvent
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse  "Calendar sync disabled"
// @Router       /calendar [get]
func (s *Server) handleListCalendar(w http.ResponseWriter, r *http.Request) {
	if s.calendar == nil {
		writeError(w, http.StatusNotFound, "calendar sync is disabled")
		return
	}

	since := s.now()
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	events, err := s.calendar.ListEvents(r.Context(), since)
	if err != nil {
		s.logger.Error("failed to list calendar events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list calendar events")
		return
	}
	if events == nil {
		events = []*domain.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Helper functions

// writeServiceError maps core errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var fetchErr *domain.FetchError
	switch {
	case errors.As(err, &fetchErr):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: fetchErr.Error(), Kind: string(fetchErr.Kind)})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrPortalDisabled):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTickInProgress),
		errors.Is(err, domain.ErrTickLocked),
		errors.Is(err, domain.ErrTaskRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotRunning), errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
