package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the operator endpoints under /api/leads.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/leads", func(r chi.Router) {
		r.Get("/notifications", handleList(store))
		r.Post("/notifications/{id}/read", handleMarkRead(store))
		r.Get("/sessions/{id}", handleGetSession(store))
		r.Get("/sessions/{id}/messages", handleMessages(store))
		r.Get("/sessions/{id}/transcript", handleTranscript(store))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{}

		if v := q.Get("type"); v != "" {
			filter.Type = NotificationType(v)
		}
		if v := q.Get("unread"); v != "" {
			filter.UnreadOnly, _ = strconv.ParseBool(v)
		}
		if v := q.Get("delivered"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				filter.Delivered = &b
			}
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		list, err := store.ListNotifications(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []AdminNotification{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleMarkRead(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

type sessionDetail struct {
	Session *LeadSession `json:"session"`
	Client  *Client      `json:"client"`
}

func handleGetSession(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ls, err := store.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		c, err := store.GetClient(r.Context(), ls.ClientID)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sessionDetail{Session: ls, Client: c})
	}
}

func handleMessages(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := store.GetSession(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		msgs, err := store.GetMessages(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if msgs == nil {
			msgs = []LeadMessage{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleTranscript(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ls, err := store.GetSession(ctx, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		c, err := store.GetClient(ctx, ls.ClientID)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		msgs, err := store.GetMessages(ctx, ls.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := RenderTranscript(w, c, ls, msgs); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func statusFor(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
