package api

import (
	"net/http"

	"github.com/rafaelmorch/platform-sports/internal/auth"
	"github.com/rafaelmorch/platform-sports/internal/domain"
)

func (h *Handler) confirmAttendance(w http.ResponseWriter, r *http.Request) {
	h.recordProfile(r)
	result, err := h.attendance.Confirm(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replay {
		status = http.StatusOK
	}
	writeJSON(w, status, ConfirmResponse{
		Status:     string(result.Verdict),
		Replay:     result.Replay,
		Attendance: toAttendanceView(result.Summary),
	})
}

func (h *Handler) cancelAttendance(w http.ResponseWriter, r *http.Request) {
	result, err := h.attendance.Cancel(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{
		Removed:    result.Removed,
		Attendance: toAttendanceView(result.Summary),
	})
}

func (h *Handler) attendanceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.attendance.Summary(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceView(*summary))
}

func (h *Handler) roster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.attendance.ListConfirmed(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	switch v := roster.(type) {
	case domain.OwnerRoster:
		writeJSON(w, http.StatusOK, toOwnerRosterView(v))
	case domain.PublicRoster:
		writeJSON(w, http.StatusOK, toPublicRosterView(v))
	default:
		h.writeDomainError(w, r, errUnknownRoster)
	}
}

func (h *Handler) ownerRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.attendance.OwnerRoster(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOwnerRosterView(*roster))
}
