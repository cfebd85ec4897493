package api

import (
	"net/http"

	"github.com/rafaelmorch/platform-sports/internal/auth"
	"github.com/rafaelmorch/platform-sports/internal/persistence"
)

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	cursor, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	page, err := h.chat.List(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()), cursor, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := ChatPageResponse{
		Items:      make([]ChatMessageView, 0, len(page.Messages)),
		NextCursor: persistence.EncodeCursor(page.Next),
	}
	for _, msg := range page.Messages {
		resp.Items = append(resp.Items, ChatMessageView{
			MessageID:  msg.ID,
			UserID:     msg.UserID,
			SenderName: msg.SenderName,
			Body:       msg.Body,
			PostedAt:   msg.PostedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.recordProfile(r)
	msg, err := h.chat.Post(r.Context(), r.PathValue("id"), auth.SubjectFromContext(r.Context()), req.Body)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ChatMessageView{
		MessageID: msg.ID,
		UserID:    msg.UserID,
		Body:      msg.Body,
		PostedAt:  msg.PostedAt,
	})
}
