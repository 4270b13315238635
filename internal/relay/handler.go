// Package relay serves the email-notification endpoint that turns a
// completed appointment request into an operator alert and a client
// confirmation.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Request is the body of POST /api/send-email.
type Request struct {
	ClientName          string `json:"clientName" validate:"required"`
	ClientEmail         string `json:"clientEmail" validate:"required"`
	ClientPhone         string `json:"clientPhone,omitempty"`
	DeviceInfo          string `json:"deviceInfo" validate:"required"`
	PreferredTime       string `json:"preferredTime" validate:"required"`
	AdminEmail          string `json:"adminEmail,omitempty"`
	SupportEmail        string `json:"supportEmail,omitempty"`
	ConversationSummary string `json:"conversationSummary,omitempty"`
}

// Response is the JSON reply of the endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Options configures the handler.
type Options struct {
	Mailer Mailer
	// OperatorAddress receives the operator alert when the request names none.
	OperatorAddress string
	// SupportAddress is the sender when the request names none.
	SupportAddress string
	Logger         *slog.Logger
}

// Handler serves POST /api/send-email.
type Handler struct {
	opts     Options
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler creates a relay handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger,
	}
}

// RegisterRoutes mounts the relay endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/send-email", h.ServeHTTP)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body."})
		return
	}
	trim(&req)

	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Missing required appointment details."})
		return
	}

	admin := firstNonEmpty(req.AdminEmail, h.opts.OperatorAddress)
	if admin == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Admin email is not configured."})
		return
	}
	from := firstNonEmpty(req.SupportEmail, h.opts.SupportAddress)

	for _, e := range []Email{OperatorEmail(req, admin, from), ClientEmail(req, from)} {
		if err := h.opts.Mailer.Send(r.Context(), e); err != nil {
			h.log.Error("email send error", "to", e.To, "error", err)
			writeJSON(w, http.StatusInternalServerError, Response{Message: "Failed to send notification emails."})
			return
		}
	}

	h.log.Info("appointment emails sent", "client", req.ClientEmail, "admin", admin)
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Notification emails sent."})
}

// OperatorEmail builds the alert sent to the shop.
func OperatorEmail(req Request, to, from string) Email {
	lines := []string{
		"Client: " + req.ClientName,
		"Email: " + req.ClientEmail,
	}
	if req.ClientPhone != "" {
		lines = append(lines, "Phone: "+req.ClientPhone)
	}
	lines = append(lines,
		"Device: "+req.DeviceInfo,
		"Preferred time: "+req.PreferredTime,
	)
	if req.ConversationSummary != "" {
		lines = append(lines, "Notes:\n"+req.ConversationSummary)
	}

	return Email{
		To:      to,
		From:    from,
		Subject: "New MacWORLD appointment request from " + req.ClientName,
		Text:    "A client scheduled an appointment:\n\n" + strings.Join(lines, "\n"),
	}
}

// ClientEmail builds the confirmation sent to the visitor.
func ClientEmail(req Request, from string) Email {
	return Email{
		To:      req.ClientEmail,
		From:    from,
		Subject: "MacWORLD appointment request received",
		Text: fmt.Sprintf("Hi %s,\n\nThanks for reaching out. We have your %s request for %s. "+
			"Our admin team will confirm shortly. If you need to update anything, reply to this email "+
			"or call +234 816 836 6739.\n\n- MacWORLD Gallery Ltd.",
			req.ClientName, req.DeviceInfo, req.PreferredTime),
	}
}

func trim(req *Request) {
	for _, f := range []*string{
		&req.ClientName, &req.ClientEmail, &req.ClientPhone, &req.DeviceInfo,
		&req.PreferredTime, &req.AdminEmail, &req.SupportEmail,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
