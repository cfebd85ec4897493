// Package api exposes HTTP handlers for activity scheduling, attendance and chat.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rafaelmorch/platform-sports/internal/auth"
	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/persistence"
)

const defaultImageMaxBytes = 5 << 20

// ProfileRecorder stores the caller's display identity so rosters and chat can resolve names.
type ProfileRecorder interface {
	Upsert(ctx context.Context, profile domain.Profile) error
}

// Services groups the domain services served over HTTP.
type Services struct {
	Activities *domain.ActivityService
	Attendance *domain.AttendanceService
	Chat       *domain.ChatService
}

// Option configures a Handler.
type Option func(*Handler)

// WithProfileRecorder records caller profiles from token claims on write requests.
func WithProfileRecorder(recorder ProfileRecorder) Option {
	return func(h *Handler) { h.profiles = recorder }
}

// WithImageMaxBytes bounds image upload bodies.
func WithImageMaxBytes(limit int64) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.imageMaxBytes = limit
		}
	}
}

// WithLogger overrides the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	activities    *domain.ActivityService
	attendance    *domain.AttendanceService
	chat          *domain.ChatService
	profiles      ProfileRecorder
	imageMaxBytes int64
	logger        *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(services Services, opts ...Option) *Handler {
	h := &Handler{
		activities:    services.Activities,
		attendance:    services.Attendance,
		chat:          services.Chat,
		imageMaxBytes: defaultImageMaxBytes,
		logger:        slog.Default().With("module", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/activities", h.publishActivities)
	mux.HandleFunc("GET /v1/activities", h.listUpcoming)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("PUT /v1/activities/{id}", h.updateActivity)
	mux.HandleFunc("DELETE /v1/activities/{id}", h.deleteActivity)
	mux.HandleFunc("PUT /v1/activities/{id}/image", h.replaceImage)

	mux.HandleFunc("GET /v1/activities/{id}/attendance", h.attendanceSummary)
	mux.HandleFunc("POST /v1/activities/{id}/attendance", h.confirmAttendance)
	mux.HandleFunc("DELETE /v1/activities/{id}/attendance", h.cancelAttendance)
	mux.HandleFunc("GET /v1/activities/{id}/roster", h.roster)
	mux.HandleFunc("GET /v1/activities/{id}/attendees", h.ownerRoster)

	mux.HandleFunc("GET /v1/activities/{id}/messages", h.listMessages)
	mux.HandleFunc("POST /v1/activities/{id}/messages", h.postMessage)

	mux.HandleFunc("GET /v1/me/activities", h.listMine)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) publishActivities(w http.ResponseWriter, r *http.Request) {
	caller := auth.SubjectFromContext(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
		return
	}

	var req PublishRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.recordProfile(r)
	created, err := h.activities.Publish(r.Context(), domain.PublishInput{
		OwnerID:  caller,
		Content:  req.content(),
		Dates:    req.Dates,
		TimeZone: req.TimeZone,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items := make([]ActivityView, 0, len(created))
	for _, activity := range created {
		items = append(items, toActivityView(activity, nil))
	}
	writeJSON(w, http.StatusCreated, PublishResponse{Items: items})
}

func (h *Handler) listUpcoming(w http.ResponseWriter, r *http.Request) {
	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	details, next, err := h.activities.ListUpcoming(r.Context(), cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(details, next))
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	details, next, err := h.activities.ListByOwner(r.Context(), auth.SubjectFromContext(r.Context()), cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(details, next))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	detail, err := h.activities.Get(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(detail.Activity, &detail.Attendance))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, siblings, err := h.activities.Update(r.Context(), domain.UpdateInput{
		ActivityID: r.PathValue("id"),
		ActorID:    auth.SubjectFromContext(r.Context()),
		Content:    req.content(),
		ExtraDates: req.ExtraDates,
		TimeZone:   req.TimeZone,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := UpdateResponse{
		Activity: toActivityView(*updated, nil),
		Siblings: make([]ActivityView, 0, len(siblings)),
	}
	for _, sibling := range siblings {
		resp.Siblings = append(resp.Siblings, toActivityView(sibling, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.activities.Delete(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context())); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) replaceImage(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.imageMaxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "image exceeds "+strconv.FormatInt(h.imageMaxBytes, 10)+" bytes")
		return
	}
	body := http.MaxBytesReader(w, r.Body, h.imageMaxBytes)
	defer body.Close()

	size := max(r.ContentLength, 0)
	updated, err := h.activities.ReplaceImage(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()), r.Header.Get("Content-Type"), body, size)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*updated, nil))
}

// recordProfile refreshes the caller's profile from token claims. Failures only cost display names.
func (h *Handler) recordProfile(r *http.Request) {
	if h.profiles == nil {
		return
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return
	}
	profile := domain.Profile{UserID: claims.Subject, DisplayName: claims.Name, Email: claims.Email}
	if err := h.profiles.Upsert(r.Context(), profile); err != nil {
		h.logger.Warn("profile refresh failed", "user_id", claims.Subject, "error", err)
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "image exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_failed", Message: validation.Reason, Field: validation.Field})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", "only the activity owner can do this")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded", "activity is full and its waitlist is closed")
	case errors.Is(err, domain.ErrImageStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "image_storage_unavailable", "image uploads are not enabled")
	case errors.Is(err, context.Canceled):
		h.logger.Debug("request cancelled", "method", r.Method, "path", r.URL.Path)
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func pageParams(w http.ResponseWriter, r *http.Request) (*domain.Cursor, int, bool) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return nil, 0, false
		}
		limit = parsed
	}

	cursor, err := persistence.DecodeCursor(strings.TrimSpace(r.URL.Query().Get("cursor")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return nil, 0, false
	}
	return cursor, limit, true
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
