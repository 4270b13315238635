package conversation

import (
	"encoding/json"
	"strings"
	"time"
)

// SnapshotVersion is written into every persisted session. Snapshots that
// carry a different version are discarded on restore; snapshots without a
// version field are read as the current version.
const SnapshotVersion = 1

// Session is the complete resumable state of one dialogue.
type Session struct {
	History             []Message
	Step                Step
	Slots               Slots
	Appointment         *AppointmentLog
	Status              Status
	PendingNotification bool
}

// NewSession returns a fresh dialogue seeded with Rob's greeting.
func NewSession() Session {
	return Session{
		History: []Message{{Role: RoleAssistant, Content: Greeting}},
		Step:    StepDevice,
		Status:  Status{State: StatusIdle},
	}
}

type snapshotDoc struct {
	Version  int       `json:"version"`
	Messages []Message `json:"messages"`
	Step     Step      `json:"conversationStep"`
	Slots
	AppointmentLog      *AppointmentLog `json:"appointmentLog"`
	EmailStatus         Status          `json:"emailStatus"`
	PendingNotification bool            `json:"pendingNotification,omitempty"`
}

// Encode serializes the session for a SnapshotStore.
func (s Session) Encode() ([]byte, error) {
	return json.Marshal(snapshotDoc{
		Version:             SnapshotVersion,
		Messages:            s.History,
		Step:                s.Step,
		Slots:               s.Slots,
		AppointmentLog:      s.Appointment,
		EmailStatus:         s.Status,
		PendingNotification: s.PendingNotification,
	})
}

// Restore decodes a persisted snapshot. Every field is decoded on its own:
// a missing or malformed field keeps its fresh-session default, and an
// unreadable blob or unknown version yields a fresh session.
func Restore(blob []byte) Session {
	s := NewSession()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(blob, &fields); err != nil || fields == nil {
		return s
	}

	if raw, ok := fields["version"]; ok {
		var v int
		if err := json.Unmarshal(raw, &v); err != nil || v != SnapshotVersion {
			return s
		}
	}

	var msgs []Message
	if decodeField(fields, "messages", &msgs) {
		if h := cleanHistory(msgs); len(h) > 0 {
			s.History = h
		}
	}

	var step Step
	if decodeField(fields, "conversationStep", &step) && step.Valid() {
		s.Step = step
	}

	decodeString(fields, "deviceInfo", &s.Slots.Device)
	decodeString(fields, "contactInfo", &s.Slots.ContactRaw)
	decodeString(fields, "clientName", &s.Slots.ClientName)
	decodeString(fields, "clientPhone", &s.Slots.ClientPhone)
	decodeString(fields, "clientEmail", &s.Slots.ClientEmail)
	decodeString(fields, "preferredTime", &s.Slots.PreferredTime)

	var log AppointmentLog
	if decodeField(fields, "appointmentLog", &log) && log != (AppointmentLog{}) {
		s.Appointment = &log
	}

	var st Status
	if decodeField(fields, "emailStatus", &st) && validStatus(st.State) {
		s.Status = st
	}
	// A restart while confirmations were being sent leaves no outcome;
	// surface it as a failure so the request can be retried.
	if s.Status.State == StatusLoading {
		s.Status = Status{State: StatusError, Message: MsgNotifyFailed}
		s.PendingNotification = true
	}

	var pending bool
	if decodeField(fields, "pendingNotification", &pending) && pending {
		s.PendingNotification = true
	}

	return s
}

// RestoreProfile seeds a fresh session from a saved appointment profile,
// the record written when a previous dialogue completed. The step and
// greeting stay at their initial values.
func RestoreProfile(blob []byte) Session {
	s := NewSession()

	var log AppointmentLog
	if err := json.Unmarshal(blob, &log); err != nil {
		return s
	}
	if log.ClientName != DefaultClientName {
		s.Slots.ClientName = strings.TrimSpace(log.ClientName)
	}
	if log.ClientPhone != DefaultClientPhone {
		s.Slots.ClientPhone = strings.TrimSpace(log.ClientPhone)
	}
	s.Slots.ClientEmail = strings.TrimSpace(log.ClientEmail)
	s.Slots.PreferredTime = strings.TrimSpace(log.PreferredTime)
	s.Slots.Device = strings.TrimSpace(log.Device)
	return s
}

// EncodeProfile serializes an appointment log as a profile record.
func EncodeProfile(log AppointmentLog) ([]byte, error) {
	return json.Marshal(log)
}

func decodeField(fields map[string]json.RawMessage, name string, v any) bool {
	raw, ok := fields[name]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func decodeString(fields map[string]json.RawMessage, name string, dst *string) {
	var v string
	if decodeField(fields, name, &v) {
		*dst = v
	}
}

func cleanHistory(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if (m.Role == RoleAssistant || m.Role == RoleUser) && m.Content != "" {
			out = append(out, m)
		}
	}
	return out
}

func validStatus(s StatusState) bool {
	switch s {
	case StatusIdle, StatusLoading, StatusSuccess, StatusError:
		return true
	}
	return false
}

// profileTTLDefault mirrors the seven-day lifetime of the visitor profile.
const profileTTLDefault = 7 * 24 * time.Hour
