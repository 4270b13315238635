package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/db"
)

// ListFilter controls which notifications ListNotifications returns.
type ListFilter struct {
	Type       NotificationType
	UnreadOnly bool
	Delivered  *bool
	Limit      int
	Offset     int
}

// Store persists clients, lead sessions, transcripts and admin
// notifications.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// execer is implemented by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetOrCreateClient returns the client with the given email, creating it
// when absent. An existing client is returned unchanged.
func (s *Store) GetOrCreateClient(ctx context.Context, name, email, phone string) (*Client, error) {
	return s.getOrCreateClient(ctx, s.db, name, email, phone)
}

func (s *Store) getOrCreateClient(ctx context.Context, q execer, name, email, phone string) (*Client, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("client email is required to save a chat session")
	}

	c, err := scanClient(q.QueryRowContext(ctx, clientQuery+" WHERE email = ? COLLATE NOCASE", email))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up client: %w", err)
	}

	c = &Client{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Phone:     phone,
		IsNew:     true,
		Status:    "active",
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO clients (id, email, name, phone_number, is_new, status, created_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		c.ID, c.Email, c.Name, nullable(c.Phone), c.Status, stamp(c.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting client: %w", err)
	}
	return c, nil
}

// CreateSession inserts a lead session. The appointment counts as
// scheduled when a time was captured.
func (s *Store) CreateSession(ctx context.Context, ls LeadSession) (*LeadSession, error) {
	return s.createSession(ctx, s.db, ls)
}

func (s *Store) createSession(ctx context.Context, q execer, ls LeadSession) (*LeadSession, error) {
	if ls.ID == "" {
		ls.ID = uuid.New().String()
	}
	ls.AppointmentScheduled = ls.AppointmentTime != ""
	ls.CreatedAt = s.now().UTC().Truncate(time.Second)

	_, err := q.ExecContext(ctx, `
		INSERT INTO lead_sessions (id, client_id, dialogue_key, device_info, service_type, appointment_time, appointment_scheduled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ls.ID, ls.ClientID, ls.DialogueKey, nullable(ls.DeviceInfo), nullable(ls.ServiceType),
		nullable(ls.AppointmentTime), boolInt(ls.AppointmentScheduled), stamp(ls.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting lead session: %w", err)
	}
	return &ls, nil
}

// InsertMessages stores the transcript of a session in order.
func (s *Store) InsertMessages(ctx context.Context, sessionID string, history []conversation.Message) error {
	return s.insertMessages(ctx, s.db, sessionID, history)
}

func (s *Store) insertMessages(ctx context.Context, q execer, sessionID string, history []conversation.Message) error {
	created := stamp(s.now())
	for i, m := range history {
		_, err := q.ExecContext(ctx, `
			INSERT INTO lead_messages (id, session_id, seq, sender_type, message_text, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, i, string(senderFor(m.Role)), m.Content, created,
		)
		if err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}
	return nil
}

// CreateNotification inserts an admin notification.
func (s *Store) CreateNotification(ctx context.Context, n AdminNotification) (*AdminNotification, error) {
	return s.createNotification(ctx, s.db, n)
}

func (s *Store) createNotification(ctx context.Context, q execer, n AdminNotification) (*AdminNotification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = s.now().UTC().Truncate(time.Second)

	_, err := q.ExecContext(ctx, `
		INSERT INTO admin_notifications (id, session_id, title, message, notification_type, is_read, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, nullable(n.SessionID), n.Title, n.Message, string(n.Type),
		boolInt(n.IsRead), boolInt(n.Delivered), stamp(n.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}
	return &n, nil
}

// Record persists a completed lead in one transaction: the client, a
// lead session, its transcript and an undelivered admin notification.
func (s *Store) Record(ctx context.Context, lead conversation.Lead) (*Recorded, error) {
	name := lead.Slots.ClientName
	if name == "" {
		name = conversation.DefaultClientName
	}

	var out Recorded
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if lead.SessionKey != "" {
			found, err := s.refreshUndelivered(ctx, tx, lead)
			if err != nil || found != nil {
				if found != nil {
					out = *found
				}
				return err
			}
		}

		c, err := s.getOrCreateClient(ctx, tx, name, lead.Slots.ClientEmail, lead.Slots.ClientPhone)
		if err != nil {
			return err
		}
		ls, err := s.createSession(ctx, tx, LeadSession{
			ClientID:        c.ID,
			DialogueKey:     lead.SessionKey,
			DeviceInfo:      lead.Slots.Device,
			AppointmentTime: lead.Slots.PreferredTime,
		})
		if err != nil {
			return err
		}
		if err := s.insertMessages(ctx, tx, ls.ID, lead.History); err != nil {
			return err
		}
		n, err := s.createNotification(ctx, tx, AdminNotification{
			SessionID: ls.ID,
			Title:     fmt.Sprintf("New appointment request from %s", name),
			Message:   fmt.Sprintf("%s requested help with %s around %s.", name, lead.Slots.Device, lead.Slots.PreferredTime),
			Type:      TypeAppointmentRequest,
		})
		if err != nil {
			return err
		}
		out = Recorded{Client: c, Session: ls, Notification: n}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording lead: %w", err)
	}
	return &out, nil
}

// refreshUndelivered finds an earlier, still undelivered record of the
// same dialogue and replaces its transcript, so a retried notification
// does not create a second lead.
func (s *Store) refreshUndelivered(ctx context.Context, tx *sql.Tx, lead conversation.Lead) (*Recorded, error) {
	n, err := scanNotification(tx.QueryRowContext(ctx, `
		SELECT n.id, n.session_id, n.title, n.message, n.notification_type, n.is_read, n.delivered, n.created_at
		FROM admin_notifications n JOIN lead_sessions ls ON ls.id = n.session_id
		JOIN clients c ON c.id = ls.client_id
		WHERE ls.dialogue_key = ? AND n.delivered = 0 AND c.email = ? COLLATE NOCASE
		ORDER BY n.created_at DESC LIMIT 1`, lead.SessionKey, lead.Slots.ClientEmail))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up earlier record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM lead_messages WHERE session_id = ?", n.SessionID); err != nil {
		return nil, fmt.Errorf("clearing transcript: %w", err)
	}
	if err := s.insertMessages(ctx, tx, n.SessionID, lead.History); err != nil {
		return nil, err
	}

	ls, err := scanSession(tx.QueryRowContext(ctx, sessionQuery+" WHERE id = ?", n.SessionID))
	if err != nil {
		return nil, fmt.Errorf("loading lead session: %w", err)
	}
	c, err := scanClient(tx.QueryRowContext(ctx, clientQuery+" WHERE id = ?", ls.ClientID))
	if err != nil {
		return nil, fmt.Errorf("loading client: %w", err)
	}
	return &Recorded{Client: c, Session: ls, Notification: n}, nil
}

// Delivered reports whether the same appointment request from this
// dialogue has already been delivered.
func (s *Store) Delivered(ctx context.Context, lead conversation.Lead) (bool, error) {
	if lead.SessionKey == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM admin_notifications n JOIN lead_sessions ls ON ls.id = n.session_id
		JOIN clients c ON c.id = ls.client_id
		WHERE ls.dialogue_key = ? AND n.delivered = 1 AND c.email = ? COLLATE NOCASE
			AND IFNULL(ls.device_info, '') = ? AND IFNULL(ls.appointment_time, '') = ?`,
		lead.SessionKey, lead.Slots.ClientEmail, lead.Slots.Device, lead.Slots.PreferredTime).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking delivered lead: %w", err)
	}
	return count > 0, nil
}

// ListNotifications returns admin notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, filter ListFilter) ([]AdminNotification, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		clauses = append(clauses, "notification_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.UnreadOnly {
		clauses = append(clauses, "is_read = 0")
	}
	if filter.Delivered != nil {
		clauses = append(clauses, "delivered = ?")
		args = append(args, boolInt(*filter.Delivered))
	}

	query := "SELECT id, session_id, title, message, notification_type, is_read, delivered, created_at FROM admin_notifications"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var result []AdminNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// PendingNotifications returns undelivered appointment requests, oldest first.
func (s *Store) PendingNotifications(ctx context.Context) ([]AdminNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, title, message, notification_type, is_read, delivered, created_at
		FROM admin_notifications
		WHERE delivered = 0 AND notification_type = ?
		ORDER BY created_at ASC, rowid ASC`, string(TypeAppointmentRequest))
	if err != nil {
		return nil, fmt.Errorf("querying pending notifications: %w", err)
	}
	defer rows.Close()

	var result []AdminNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// MarkRead flags a notification as read.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	return s.setFlag(ctx, "is_read", id)
}

// MarkDelivered flags a notification as delivered.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	return s.setFlag(ctx, "delivered", id)
}

func (s *Store) setFlag(ctx context.Context, column, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE admin_notifications SET "+column+" = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("updating notification %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

const (
	sessionQuery = `SELECT id, client_id, dialogue_key, device_info, service_type, appointment_time, appointment_scheduled, created_at FROM lead_sessions`
	clientQuery  = `SELECT id, email, name, phone_number, is_new, status, created_at FROM clients`
)

// GetSession returns a lead session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*LeadSession, error) {
	ls, err := scanSession(s.db.QueryRowContext(ctx, sessionQuery+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying lead session: %w", err)
	}
	return ls, nil
}

// GetClient returns a client by id.
func (s *Store) GetClient(ctx context.Context, id string) (*Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, clientQuery+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}
	return c, nil
}

// GetMessages returns the stored transcript of a session in order.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]LeadMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, sender_type, message_text, created_at
		FROM lead_messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var result []LeadMessage
	for rows.Next() {
		var (
			m       LeadMessage
			sender  string
			created string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &sender, &m.Text, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Sender = Sender(sender)
		m.CreatedAt = parseStamp(created)
		result = append(result, m)
	}
	return result, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClient(sc scanner) (*Client, error) {
	var (
		c       Client
		phone   sql.NullString
		isNew   int
		created string
	)
	if err := sc.Scan(&c.ID, &c.Email, &c.Name, &phone, &isNew, &c.Status, &created); err != nil {
		return nil, err
	}
	c.Phone = phone.String
	c.IsNew = isNew != 0
	c.CreatedAt = parseStamp(created)
	return &c, nil
}

func scanSession(sc scanner) (*LeadSession, error) {
	var (
		ls                   LeadSession
		device, svc, apptime sql.NullString
		scheduled            int
		created              string
	)
	err := sc.Scan(&ls.ID, &ls.ClientID, &ls.DialogueKey, &device, &svc, &apptime, &scheduled, &created)
	if err != nil {
		return nil, err
	}
	ls.DeviceInfo = device.String
	ls.ServiceType = svc.String
	ls.AppointmentTime = apptime.String
	ls.AppointmentScheduled = scheduled != 0
	ls.CreatedAt = parseStamp(created)
	return &ls, nil
}

func scanNotification(sc scanner) (*AdminNotification, error) {
	var (
		n             AdminNotification
		sessionID     sql.NullString
		ntype         string
		isRead, deliv int
		created       string
	)
	if err := sc.Scan(&n.ID, &sessionID, &n.Title, &n.Message, &ntype, &isRead, &deliv, &created); err != nil {
		return nil, err
	}
	n.SessionID = sessionID.String
	n.Type = NotificationType(ntype)
	n.IsRead = isRead != 0
	n.Delivered = deliv != 0
	n.CreatedAt = parseStamp(created)
	return &n, nil
}

func senderFor(r conversation.Role) Sender {
	if r == conversation.RoleUser {
		return SenderClient
	}
	return SenderRob
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

func parseStamp(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
