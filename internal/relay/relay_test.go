package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macworld/concierge/internal/config"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/send-email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

const validBody = `{
	"clientName": "Ada Obi",
	"clientEmail": "ada@example.com",
	"clientPhone": "+2348011112222",
	"deviceInfo": "iPhone 13 screen",
	"preferredTime": "Friday 2pm",
	"conversationSummary": "Rob: Hi\nClient: iPhone 13 screen"
}`

func TestSendEmailSuccess(t *testing.T) {
	m := &fakeMailer{}
	h := newRouter(NewHandler(Options{Mailer: m, OperatorAddress: "ops@macworld.com", SupportAddress: "support@macworld.com"}))

	w, resp := post(t, h, validBody)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Response{Success: true, Message: "Notification emails sent."}, resp)

	require.Len(t, m.sent, 2)
	admin, client := m.sent[0], m.sent[1]

	assert.Equal(t, "ops@macworld.com", admin.To)
	assert.Equal(t, "support@macworld.com", admin.From)
	assert.Equal(t, "New MacWORLD appointment request from Ada Obi", admin.Subject)
	assert.Equal(t, "A client scheduled an appointment:\n\n"+
		"Client: Ada Obi\n"+
		"Email: ada@example.com\n"+
		"Phone: +2348011112222\n"+
		"Device: iPhone 13 screen\n"+
		"Preferred time: Friday 2pm\n"+
		"Notes:\nRob: Hi\nClient: iPhone 13 screen", admin.Text)

	assert.Equal(t, "ada@example.com", client.To)
	assert.Equal(t, "MacWORLD appointment request received", client.Subject)
	assert.True(t, strings.HasPrefix(client.Text, "Hi Ada Obi,\n\nThanks for reaching out. We have your iPhone 13 screen request for Friday 2pm."))
	assert.True(t, strings.HasSuffix(client.Text, "call +234 816 836 6739.\n\n- MacWORLD Gallery Ltd."))
}

func TestSendEmailRequestAddressesWin(t *testing.T) {
	m := &fakeMailer{}
	h := newRouter(NewHandler(Options{Mailer: m, OperatorAddress: "ops@macworld.com", SupportAddress: "support@macworld.com"}))

	body := `{"clientName":"Ada","clientEmail":"ada@example.com","deviceInfo":"iPad","preferredTime":"noon",
		"adminEmail":"owner@macworld.com","supportEmail":"desk@macworld.com"}`
	w, _ := post(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "owner@macworld.com", m.sent[0].To)
	assert.Equal(t, "desk@macworld.com", m.sent[0].From)
	assert.NotContains(t, m.sent[0].Text, "Phone:")
	assert.NotContains(t, m.sent[0].Text, "Notes:")
}

func TestSendEmailMissingFields(t *testing.T) {
	h := newRouter(NewHandler(Options{Mailer: &fakeMailer{}, OperatorAddress: "ops@macworld.com"}))

	for _, body := range []string{
		`{}`,
		`{"clientName":"Ada","clientEmail":"ada@example.com","deviceInfo":"iPad"}`,
		`{"clientName":"  ","clientEmail":"ada@example.com","deviceInfo":"iPad","preferredTime":"noon"}`,
	} {
		w, resp := post(t, h, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, Response{Message: "Missing required appointment details."}, resp)
	}
}

func TestSendEmailWithoutAdmin(t *testing.T) {
	m := &fakeMailer{}
	h := newRouter(NewHandler(Options{Mailer: m}))

	w, resp := post(t, h, validBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Admin email is not configured.", resp.Message)
	assert.Empty(t, m.sent)
}

func TestSendEmailMailerFailure(t *testing.T) {
	h := newRouter(NewHandler(Options{Mailer: &fakeMailer{err: errors.New("smtp down")}, OperatorAddress: "ops@macworld.com"}))

	w, resp := post(t, h, validBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestSendEmailBadJSON(t *testing.T) {
	h := newRouter(NewHandler(Options{Mailer: &fakeMailer{}}))
	w, resp := post(t, h, `{"clientName":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestSMTPMailer(t *testing.T) {
	var (
		gotAddr string
		gotAuth smtp.Auth
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	m := NewSMTPMailer(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587, User: "bot", Password: "pw", From: "support@macworld.com",
	}).WithSendFunc(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	})
	m.now = func() time.Time { return time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC) }

	err := m.Send(context.Background(), Email{To: "ada@example.com", Subject: "Hello\nBcc: x", Text: "line1\nline2"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "support@macworld.com", gotFrom)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Hello Bcc: x\r\n")
	assert.Contains(t, gotMsg, "Date: Sun, 01 Feb 2026 08:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline1\r\nline2"))
}

func TestSMTPMailerError(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 25}).
		WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		})

	err := m.Send(context.Background(), Email{To: "ada@example.com", From: "a@b.co"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewMailer(t *testing.T) {
	_, ok := NewMailer(config.SMTPConfig{}, nil).(LogMailer)
	assert.True(t, ok)
	_, ok = NewMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, nil).(*SMTPMailer)
	assert.True(t, ok)

	assert.NoError(t, LogMailer{}.Send(context.Background(), Email{To: "x@y.z"}))
}
