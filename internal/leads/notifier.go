package leads

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/progress"
	"github.com/macworld/concierge/internal/relay"
)

// RelaySender delivers a relay request.
type RelaySender interface {
	Send(ctx context.Context, req relay.Request) error
}

// Notifier records completed leads and relays them for email delivery.
// It implements conversation.Notifier.
type Notifier struct {
	store          *Store
	relay          RelaySender
	adminAddress   string
	supportAddress string
	log            *slog.Logger
}

// NotifierOptions configures a Notifier.
type NotifierOptions struct {
	// Store may be nil, in which case leads are relayed without a record.
	Store          *Store
	Relay          RelaySender
	AdminAddress   string
	SupportAddress string
	Logger         *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(opts NotifierOptions) *Notifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		store:          opts.Store,
		relay:          opts.Relay,
		adminAddress:   opts.AdminAddress,
		supportAddress: opts.SupportAddress,
		log:            logger,
	}
}

// Notify stores the lead and relays it. A storage failure is logged and
// does not stop the relay; a relay failure is returned. A lead the store
// already marks delivered, for example by Redeliver, is not sent again.
func (n *Notifier) Notify(ctx context.Context, lead conversation.Lead) error {
	var rec *Recorded
	if n.store != nil {
		sent, err := n.store.Delivered(ctx, lead)
		if err != nil {
			n.log.Warn("checking earlier delivery", "session", lead.SessionKey, "error", err)
		}
		if sent {
			n.log.Info("appointment request already delivered", "session", lead.SessionKey)
			return nil
		}

		rec, err = n.store.Record(ctx, lead)
		if err != nil {
			n.log.Error("unable to save chat session", "session", lead.SessionKey, "error", err)
		}
	}

	if err := n.relay.Send(ctx, n.request(conversation.NewAppointmentLog(lead.Slots, lead.CapturedAt), lead.Summary)); err != nil {
		return err
	}

	if rec != nil {
		if err := n.store.MarkDelivered(ctx, rec.Notification.ID); err != nil {
			n.log.Warn("marking notification delivered", "id", rec.Notification.ID, "error", err)
		}
	}
	return nil
}

// request builds the relay body from the appointment log, so an empty
// name or phone goes out as its display placeholder.
func (n *Notifier) request(log conversation.AppointmentLog, summary string) relay.Request {
	return relay.Request{
		ClientName:          log.ClientName,
		ClientEmail:         log.ClientEmail,
		ClientPhone:         log.ClientPhone,
		DeviceInfo:          log.Device,
		PreferredTime:       log.PreferredTime,
		AdminEmail:          n.adminAddress,
		SupportEmail:        n.supportAddress,
		ConversationSummary: summary,
	}
}

// RedeliveryResult summarises a Redeliver run.
type RedeliveryResult struct {
	Attempted int
	Delivered int
	Failed    []string
}

// Redeliver re-sends every undelivered appointment request from the store.
func (n *Notifier) Redeliver(ctx context.Context, reporter progress.Reporter) (*RedeliveryResult, error) {
	if n.store == nil {
		return nil, fmt.Errorf("redelivery needs a lead store")
	}
	pending, err := n.store.PendingNotifications(ctx)
	if err != nil {
		return nil, err
	}

	res := &RedeliveryResult{}
	reporter.Start(len(pending))
	defer reporter.Finish()

	for i, an := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++

		req, err := n.rebuild(ctx, an)
		if err == nil {
			err = n.relay.Send(ctx, req)
		}
		if err == nil {
			err = n.store.MarkDelivered(ctx, an.ID)
		}

		label := an.Title
		if err != nil {
			n.log.Warn("redelivery failed", "notification", an.ID, "error", err)
			res.Failed = append(res.Failed, an.ID)
			label = "failed: " + label
		} else {
			res.Delivered++
		}
		reporter.Update(i+1, label)
	}
	return res, nil
}

func (n *Notifier) rebuild(ctx context.Context, an AdminNotification) (relay.Request, error) {
	if an.SessionID == "" {
		return relay.Request{}, fmt.Errorf("notification %s has no session", an.ID)
	}
	ls, err := n.store.GetSession(ctx, an.SessionID)
	if err != nil {
		return relay.Request{}, err
	}
	c, err := n.store.GetClient(ctx, ls.ClientID)
	if err != nil {
		return relay.Request{}, err
	}
	msgs, err := n.store.GetMessages(ctx, ls.ID)
	if err != nil {
		return relay.Request{}, err
	}

	slots := conversation.Slots{
		Device:        ls.DeviceInfo,
		ClientName:    c.Name,
		ClientPhone:   c.Phone,
		ClientEmail:   c.Email,
		PreferredTime: ls.AppointmentTime,
	}
	return n.request(conversation.NewAppointmentLog(slots, ls.CreatedAt), summarize(msgs)), nil
}

func summarize(msgs []LeadMessage) string {
	history := make([]conversation.Message, len(msgs))
	for i, m := range msgs {
		role := conversation.RoleUser
		if m.Sender == SenderRob {
			role = conversation.RoleAssistant
		}
		history[i] = conversation.Message{Role: role, Content: m.Text}
	}
	return conversation.Summarize(history)
}
