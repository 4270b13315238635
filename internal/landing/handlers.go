package landing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/macworld/concierge/internal/conversation"
)

type messageRequest struct {
	Content string `json:"content"`
}

type notifyRequest struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Reply     string            `json:"reply"`
	Completed bool              `json:"completed"`
	Session   conversation.View `json:"session"`
}

type errorResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Session *conversation.View `json:"session,omitempty"`
}

const msgBusy = "Rob is still replying. Please wait a moment."

func (l *Landing) handleCreate(w http.ResponseWriter, r *http.Request) {
	d := l.registry.Create(r.Context())
	writeJSON(w, http.StatusCreated, d.View())
}

func (l *Landing) handleGet(w http.ResponseWriter, r *http.Request) {
	d, ok := l.dialogue(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (l *Landing) handleMessage(w http.ResponseWriter, r *http.Request) {
	d, ok := l.dialogue(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	res, err := d.Submit(r.Context(), req.Content)
	switch {
	case errors.Is(err, conversation.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResponse{Message: msgBusy})
	case errors.Is(err, conversation.ErrReplyUnavailable):
		v := d.View()
		writeJSON(w, http.StatusBadGateway, errorResponse{Message: conversation.MsgRobUnavailable, Session: &v})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: err.Error()})
	case res == nil:
		// Blank input changes nothing.
		writeJSON(w, http.StatusOK, messageResponse{Session: d.View()})
	default:
		writeJSON(w, http.StatusOK, messageResponse{Reply: res.Reply, Completed: res.Completed, Session: res.View})
	}
}

func (l *Landing) handleNotify(w http.ResponseWriter, r *http.Request) {
	d, ok := l.dialogue(w, r)
	if !ok {
		return
	}

	var req notifyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
			return
		}
	}

	v, err := d.RetryNotification(r.Context(), req.Email)
	switch {
	case errors.Is(err, conversation.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResponse{Message: msgBusy})
	case errors.Is(err, conversation.ErrNotComplete), errors.Is(err, conversation.ErrAlreadyNotified):
		cur := d.View()
		writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error(), Session: &cur})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: err.Error()})
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func (l *Landing) handleReset(w http.ResponseWriter, r *http.Request) {
	d, ok := l.dialogue(w, r)
	if !ok {
		return
	}
	if err := d.Reset(r.Context()); err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Message: msgBusy})
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// dialogue resolves the {key} URL parameter. Keys are UUIDs.
func (l *Landing) dialogue(w http.ResponseWriter, r *http.Request) (*conversation.Dialogue, bool) {
	key := chi.URLParam(r, "key")
	if _, err := uuid.Parse(key); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid session id"})
		return nil, false
	}
	return l.registry.Get(r.Context(), key), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
