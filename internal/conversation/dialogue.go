package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/macworld/concierge/internal/llm"
)

// ReplyGenerator produces Rob's next utterance from the full prompt.
type ReplyGenerator interface {
	Reply(ctx context.Context, messages []llm.Message) (string, error)
}

// Notifier delivers the confirmation for a completed dialogue.
type Notifier interface {
	Notify(ctx context.Context, lead Lead) error
}

// SnapshotStore persists serialized sessions by key. Read returns
// ErrNotFound for an absent or expired key. A ttl of zero never expires.
type SnapshotStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Clear(ctx context.Context, key string) error
}

// ProfileKey is the store key of the visitor profile kept alongside the
// session snapshot.
func ProfileKey(key string) string {
	return key + ":profile"
}

// DialogueOptions configures a Dialogue.
type DialogueOptions struct {
	Generator ReplyGenerator
	Notifier  Notifier
	// Store may be nil, in which case nothing is persisted.
	Store SnapshotStore
	Clock func() time.Time

	ReplyTimeout  time.Duration
	NotifyTimeout time.Duration
	// SessionTTL bounds how long an idle snapshot is kept; zero keeps it.
	SessionTTL time.Duration
	// ProfileTTL bounds how long the visitor profile is kept.
	ProfileTTL time.Duration

	Logger *slog.Logger
}

// Dialogue owns one visitor's conversation. It is safe for concurrent use;
// only one reply can be in flight at a time.
type Dialogue struct {
	key  string
	opts DialogueOptions
	log  *slog.Logger

	mu        sync.Mutex
	state     Session
	chatError string
	busy      bool
}

// Result is returned by a successful Submit.
type Result struct {
	Reply     string
	Completed bool
	View      View
}

// View is a read-only copy of the dialogue.
type View struct {
	Key                 string          `json:"session_id"`
	Messages            []Message       `json:"messages"`
	Step                Step            `json:"step"`
	Slots               Slots           `json:"slots"`
	Status              Status          `json:"email_status"`
	ChatError           string          `json:"chat_error,omitempty"`
	Appointment         *AppointmentLog `json:"appointment,omitempty"`
	PendingNotification bool            `json:"pending_notification"`
	Busy                bool            `json:"busy"`
}

// NewDialogue returns a fresh dialogue for key. Call Load to resume a
// persisted one.
func NewDialogue(key string, opts DialogueOptions) *Dialogue {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ProfileTTL == 0 {
		opts.ProfileTTL = profileTTLDefault
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialogue{
		key:   key,
		opts:  opts,
		log:   logger.With("session", key),
		state: NewSession(),
	}
}

// Key returns the dialogue's session key.
func (d *Dialogue) Key() string {
	return d.key
}

// Load resumes the persisted session for the dialogue's key. Without a
// snapshot it falls back to the visitor profile, and then to a fresh
// dialogue. Store failures are logged and never returned.
func (d *Dialogue) Load(ctx context.Context) {
	s := d.load(ctx)

	d.mu.Lock()
	d.state = s
	d.chatError = ""
	d.mu.Unlock()
}

func (d *Dialogue) load(ctx context.Context) Session {
	if d.opts.Store == nil {
		return NewSession()
	}

	data, err := d.opts.Store.Read(ctx, d.key)
	switch {
	case err == nil:
		return Restore(data)
	case !errors.Is(err, ErrNotFound):
		d.log.Warn("reading session snapshot", "error", err)
		return NewSession()
	}

	profile, err := d.opts.Store.Read(ctx, ProfileKey(d.key))
	switch {
	case err == nil:
		d.log.Debug("restoring visitor profile")
		return RestoreProfile(profile)
	case !errors.Is(err, ErrNotFound):
		d.log.Warn("reading visitor profile", "error", err)
	}
	return NewSession()
}

// Submit sends one visitor utterance through the dialogue. A blank
// utterance is ignored and returns (nil, nil). While a reply is pending a
// second call fails with ErrBusy.
//
// The dialogue only changes once the reply generator answers; on failure
// the state is left as it was and the error wraps ErrReplyUnavailable.
func (d *Dialogue) Submit(ctx context.Context, utterance string) (*Result, error) {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	turn, ok := SubmitUserTurn(utterance, d.state.Slots, d.state.Step, d.state.History)
	if !ok {
		d.mu.Unlock()
		return nil, nil
	}
	d.busy = true
	d.chatError = ""
	d.mu.Unlock()
	defer d.release()

	reply, err := d.generate(ctx, turn)
	if err != nil {
		d.log.Error("rob chat error", "step", turn.Step, "error", err)
		d.mu.Lock()
		d.chatError = MsgRobUnavailable
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrReplyUnavailable, err)
	}

	// Persistence and notification outlive the caller's request.
	bg := context.WithoutCancel(ctx)

	d.mu.Lock()
	d.state.Slots = turn.Slots
	d.state.Step = turn.Step
	d.state.History = append(turn.History, Message{Role: RoleAssistant, Content: reply})
	d.mu.Unlock()
	d.persist(bg)

	if turn.Completed {
		d.complete(bg, turn.Slots)
	}

	return &Result{Reply: reply, Completed: turn.Completed, View: d.View()}, nil
}

func (d *Dialogue) generate(ctx context.Context, turn Turn) (string, error) {
	if d.opts.Generator == nil {
		return "", errors.New("no reply generator configured")
	}
	if d.opts.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.ReplyTimeout)
		defer cancel()
	}

	reply, err := d.opts.Generator.Reply(ctx, BuildMessages(turn))
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func (d *Dialogue) complete(ctx context.Context, slots Slots) {
	log := NewAppointmentLog(slots, d.opts.Clock())
	d.log.Info("rob appointment request",
		"device", log.Device,
		"client", log.ClientName,
		"email", log.ClientEmail,
		"preferred_time", log.PreferredTime,
	)

	d.mu.Lock()
	d.state.Appointment = &log
	d.mu.Unlock()

	if d.opts.Store != nil {
		if data, err := EncodeProfile(log); err != nil {
			d.log.Warn("encoding visitor profile", "error", err)
		} else if err := d.opts.Store.Write(ctx, ProfileKey(d.key), data, d.opts.ProfileTTL); err != nil {
			d.log.Warn("storing visitor profile", "error", err)
		}
	}

	d.handleCompletion(ctx)
	d.persist(ctx)
}

// handleCompletion notifies once for the captured slots. Without an email
// it records a pending notification instead of calling the Notifier.
func (d *Dialogue) handleCompletion(ctx context.Context) {
	d.mu.Lock()
	slots := d.state.Slots
	if slots.ClientEmail == "" {
		d.state.Status = Status{State: StatusError, Message: MsgNeedEmail}
		d.state.PendingNotification = true
		d.mu.Unlock()
		return
	}
	d.state.Status = Status{State: StatusLoading, Message: MsgSending}
	lead := Lead{
		SessionKey: d.key,
		Slots:      slots,
		Summary:    Summarize(d.state.History),
		History:    slices.Clone(d.state.History),
		CapturedAt: d.opts.Clock().UTC(),
	}
	if d.state.Appointment != nil {
		lead.CapturedAt = d.state.Appointment.CapturedAt
	}
	d.mu.Unlock()

	err := d.notify(ctx, lead)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.log.Error("failed to send appointment emails", "error", err)
		d.state.Status = Status{State: StatusError, Message: MsgNotifyFailed}
		d.state.PendingNotification = true
		return
	}
	d.state.Status = Status{State: StatusSuccess, Message: MsgSent}
	d.state.PendingNotification = false
}

func (d *Dialogue) notify(ctx context.Context, lead Lead) error {
	if d.opts.Notifier == nil {
		return errors.New("no notifier configured")
	}
	if d.opts.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.NotifyTimeout)
		defer cancel()
	}
	return d.opts.Notifier.Notify(ctx, lead)
}

// RetryNotification re-runs the completion notification for a finished
// dialogue whose confirmation has not gone out. A non-empty email fills
// the email slot when it is still empty.
func (d *Dialogue) RetryNotification(ctx context.Context, email string) (View, error) {
	d.mu.Lock()
	switch {
	case d.busy:
		d.mu.Unlock()
		return View{}, ErrBusy
	case d.state.Step != StepComplete:
		d.mu.Unlock()
		return View{}, ErrNotComplete
	case d.state.Status.State == StatusSuccess:
		d.mu.Unlock()
		return View{}, ErrAlreadyNotified
	}
	if email = strings.TrimSpace(email); email != "" && d.state.Slots.ClientEmail == "" {
		d.state.Slots.ClientEmail = email
		if d.state.Appointment != nil {
			d.state.Appointment.ClientEmail = email
		}
	}
	d.busy = true
	d.mu.Unlock()
	defer d.release()

	bg := context.WithoutCancel(ctx)
	d.handleCompletion(bg)
	d.persist(bg)
	return d.View(), nil
}

// Reset discards the stored snapshot and starts over from the greeting.
// The visitor profile is kept.
func (d *Dialogue) Reset(ctx context.Context) error {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return ErrBusy
	}
	d.state = NewSession()
	d.chatError = ""
	d.mu.Unlock()

	if d.opts.Store != nil {
		if err := d.opts.Store.Clear(ctx, d.key); err != nil {
			d.log.Warn("clearing session snapshot", "error", err)
		}
	}
	return nil
}

// View returns a copy of the current dialogue.
func (d *Dialogue) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Key:                 d.key,
		Messages:            slices.Clone(d.state.History),
		Step:                d.state.Step,
		Slots:               d.state.Slots,
		Status:              d.state.Status,
		ChatError:           d.chatError,
		PendingNotification: d.state.PendingNotification,
		Busy:                d.busy,
	}
	if d.state.Appointment != nil {
		log := *d.state.Appointment
		v.Appointment = &log
	}
	return v
}

func (d *Dialogue) release() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
}

func (d *Dialogue) persist(ctx context.Context) {
	if d.opts.Store == nil {
		return
	}
	d.mu.Lock()
	data, err := d.state.Encode()
	d.mu.Unlock()
	if err != nil {
		d.log.Warn("encoding session snapshot", "error", err)
		return
	}
	if err := d.opts.Store.Write(ctx, d.key, data, d.opts.SessionTTL); err != nil {
		d.log.Warn("unable to persist chat state", "error", err)
	}
}
