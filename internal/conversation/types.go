// Package conversation implements Rob's slot-filling lead-capture dialogue:
// which detail to ask for next, what has been captured so far, and the
// one-shot notification fired when an appointment request is complete.
package conversation

import (
	"errors"
	"time"
)

// Step is the field the dialogue is currently waiting for.
type Step string

const (
	StepDevice   Step = "device"
	StepContact  Step = "contact"
	StepEmail    Step = "email"
	StepTime     Step = "time"
	StepComplete Step = "complete"
)

var stepOrder = map[Step]int{
	StepDevice:   0,
	StepContact:  1,
	StepEmail:    2,
	StepTime:     3,
	StepComplete: 4,
}

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	_, ok := stepOrder[s]
	return ok
}

var stepSequence = []Step{StepDevice, StepContact, StepEmail, StepTime, StepComplete}

// Next returns the step that follows s. StepComplete is its own successor,
// and an unknown step restarts at StepDevice.
func (s Step) Next() Step {
	i, ok := stepOrder[s]
	if !ok {
		return StepDevice
	}
	if i+1 >= len(stepSequence) {
		return StepComplete
	}
	return stepSequence[i+1]
}

// Before reports whether s comes strictly earlier in the dialogue than other.
func (s Step) Before(other Step) bool {
	return stepOrder[s] < stepOrder[other]
}

// Slots holds the structured details captured from the visitor. A slot
// that has a value is never overwritten.
type Slots struct {
	Device        string `json:"deviceInfo"`
	ContactRaw    string `json:"contactInfo"`
	ClientName    string `json:"clientName"`
	ClientPhone   string `json:"clientPhone"`
	ClientEmail   string `json:"clientEmail"`
	PreferredTime string `json:"preferredTime"`
}

// Role identifies who authored a history entry.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is one entry of the chat transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StatusState is the lifecycle of the confirmation notification.
type StatusState string

const (
	StatusIdle    StatusState = "idle"
	StatusLoading StatusState = "loading"
	StatusSuccess StatusState = "success"
	StatusError   StatusState = "error"
)

// Status is the visitor-facing notification outcome.
type Status struct {
	State   StatusState `json:"status"`
	Message string      `json:"message"`
}

// Visitor-facing copy.
const (
	Greeting = "Hi, I’m Rob from MacWORLD. What device make and model would you like help with today?"

	MsgSending        = "Sending confirmations..."
	MsgSent           = "Your appointment request has been sent! Check your email for confirmation."
	MsgNotifyFailed   = "We could not send confirmation emails right now. Our admin team will follow up manually."
	MsgNeedEmail      = "Need an email address to send confirmations. Please share your email when you can."
	MsgRobUnavailable = "Rob is unavailable right now. Please try again shortly."
)

// Placeholders used in the appointment log when a detail was not captured.
const (
	DefaultClientName  = "MacWORLD Client"
	DefaultClientPhone = "Not provided"
)

// AppointmentLog is the record kept once every detail has been captured.
type AppointmentLog struct {
	Device        string    `json:"device"`
	Contact       string    `json:"contact"`
	ClientName    string    `json:"clientName"`
	ClientPhone   string    `json:"clientPhone"`
	ClientEmail   string    `json:"clientEmail"`
	PreferredTime string    `json:"preferredTime"`
	CapturedAt    time.Time `json:"capturedAt"`
}

// NewAppointmentLog snapshots the slots, substituting display placeholders
// for a missing name or phone.
func NewAppointmentLog(s Slots, at time.Time) AppointmentLog {
	log := AppointmentLog{
		Device:        s.Device,
		Contact:       s.ContactRaw,
		ClientName:    s.ClientName,
		ClientPhone:   s.ClientPhone,
		ClientEmail:   s.ClientEmail,
		PreferredTime: s.PreferredTime,
		CapturedAt:    at.UTC(),
	}
	if log.ClientName == "" {
		log.ClientName = DefaultClientName
	}
	if log.ClientPhone == "" {
		log.ClientPhone = DefaultClientPhone
	}
	return log
}

// Lead is what the Notifier receives for a completed dialogue.
type Lead struct {
	SessionKey string
	Slots      Slots
	Summary    string
	History    []Message
	CapturedAt time.Time
}

var (
	// ErrBusy is returned when a reply is already in flight for the dialogue.
	ErrBusy = errors.New("a reply is already in progress")
	// ErrReplyUnavailable wraps reply generator failures.
	ErrReplyUnavailable = errors.New("reply generator unavailable")
	// ErrNotFound is returned by a SnapshotStore for an absent or expired key.
	ErrNotFound = errors.New("snapshot not found")
	// ErrNotComplete is returned when a notification is retried before the
	// dialogue has captured every detail.
	ErrNotComplete = errors.New("dialogue is not complete")
	// ErrAlreadyNotified is returned when the notification already succeeded.
	ErrAlreadyNotified = errors.New("appointment request already sent")
)
