package landing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/macworld/concierge/internal/conversation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type      string `json:"type"`       // "message", "notify", "reset" or "state"
	SessionID string `json:"session_id"` // empty starts a new dialogue
	Content   string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type      string             `json:"type"` // "response", "status", "state" or "error"
	SessionID string             `json:"session_id"`
	Content   string             `json:"content"`
	Session   *conversation.View `json:"session,omitempty"`
}

func (l *Landing) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.log.Warn("websocket read", "error", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			l.sendError(conn, "", "invalid message format", nil)
			continue
		}

		d, ok := l.wsDialogue(conn, r, req.SessionID)
		if !ok {
			continue
		}

		switch req.Type {
		case "message":
			l.handleChatMessage(conn, r, d, req.Content)
		case "notify":
			l.handleNotifyMessage(conn, r, d, req.Content)
		case "reset":
			if err := d.Reset(r.Context()); err != nil {
				l.sendError(conn, d.Key(), msgBusy, nil)
				continue
			}
			l.sendState(conn, d)
		case "state":
			l.sendState(conn, d)
		default:
			l.sendError(conn, d.Key(), "unknown message type: "+req.Type, nil)
		}
	}
}

func (l *Landing) wsDialogue(conn *websocket.Conn, r *http.Request, key string) (*conversation.Dialogue, bool) {
	if key == "" {
		return l.registry.Create(r.Context()), true
	}
	if _, err := uuid.Parse(key); err != nil {
		l.sendError(conn, key, "invalid session id", nil)
		return nil, false
	}
	return l.registry.Get(r.Context(), key), true
}

func (l *Landing) handleChatMessage(conn *websocket.Conn, r *http.Request, d *conversation.Dialogue, content string) {
	res, err := d.Submit(r.Context(), content)
	switch {
	case errors.Is(err, conversation.ErrBusy):
		l.sendError(conn, d.Key(), msgBusy, nil)
		return
	case err != nil:
		v := d.View()
		l.sendError(conn, d.Key(), conversation.MsgRobUnavailable, &v)
		return
	case res == nil:
		l.sendState(conn, d)
		return
	}

	l.send(conn, chatResponse{
		Type:      "response",
		SessionID: d.Key(),
		Content:   res.Reply,
		Session:   &res.View,
	})
	if res.Completed {
		l.sendStatus(conn, res.View)
	}
}

func (l *Landing) handleNotifyMessage(conn *websocket.Conn, r *http.Request, d *conversation.Dialogue, email string) {
	v, err := d.RetryNotification(r.Context(), email)
	if err != nil {
		cur := d.View()
		l.sendError(conn, d.Key(), err.Error(), &cur)
		return
	}
	l.sendStatus(conn, v)
}

func (l *Landing) sendStatus(conn *websocket.Conn, v conversation.View) {
	l.send(conn, chatResponse{
		Type:      "status",
		SessionID: v.Key,
		Content:   v.Status.Message,
		Session:   &v,
	})
}

func (l *Landing) sendState(conn *websocket.Conn, d *conversation.Dialogue) {
	v := d.View()
	l.send(conn, chatResponse{Type: "state", SessionID: v.Key, Session: &v})
}

func (l *Landing) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		l.log.Warn("websocket write", "error", err)
	}
}

func (l *Landing) sendError(conn *websocket.Conn, sessionID, message string, v *conversation.View) {
	l.send(conn, chatResponse{
		Type:      "error",
		SessionID: sessionID,
		Content:   message,
		Session:   v,
	})
}
