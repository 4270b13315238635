// Package leads keeps the durable record of captured appointment requests
// and relays them to the email-notification endpoint.
package leads

import (
	"errors"
	"time"
)

// Sender identifies who wrote a stored chat message.
type Sender string

const (
	SenderRob    Sender = "rob"
	SenderClient Sender = "client"
)

// NotificationType categorises an admin notification.
type NotificationType string

const (
	TypeAppointmentRequest NotificationType = "appointment_request"
)

// Client is a visitor identified by email address.
type Client struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone_number,omitempty"`
	IsNew     bool      `json:"is_new"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadSession is one completed chat that produced an appointment request.
type LeadSession struct {
	ID                   string    `json:"id"`
	ClientID             string    `json:"client_id"`
	DialogueKey          string    `json:"dialogue_key,omitempty"`
	DeviceInfo           string    `json:"device_info,omitempty"`
	ServiceType          string    `json:"service_type,omitempty"`
	AppointmentTime      string    `json:"appointment_time,omitempty"`
	AppointmentScheduled bool      `json:"appointment_scheduled"`
	CreatedAt            time.Time `json:"created_at"`
}

// LeadMessage is one stored transcript entry.
type LeadMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Sender    Sender    `json:"sender_type"`
	Text      string    `json:"message_text"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminNotification is what the operator sees in the notifications list.
type AdminNotification struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id,omitempty"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"notification_type"`
	IsRead    bool             `json:"is_read"`
	Delivered bool             `json:"delivered"`
	CreatedAt time.Time        `json:"created_at"`
}

// Recorded is the result of persisting one completed lead.
type Recorded struct {
	Client       *Client
	Session      *LeadSession
	Notification *AdminNotification
}

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")
