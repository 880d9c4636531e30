package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry kinds
const (
	KindSend  = "send"
	KindReply = "reply"
)

// Entry is one submitted message
type Entry struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	To        []string  `json:"to"`
	Cc        []string  `json:"cc,omitempty"`
	Bcc       []string  `json:"bcc,omitempty"`
	Accepted  []string  `json:"accepted"`
	Rejected  []string  `json:"rejected,omitempty"`
	SentAt    time.Time `json:"sent_at"`

	// Set for replies: the message that was answered
	ReplyMailbox   string `json:"reply_mailbox,omitempty"`
	ReplyID        uint32 `json:"reply_id,omitempty"`
	ReplyMessageID string `json:"reply_message_id,omitempty"`

	// SavedTo is the mailbox holding the sent copy, empty when none was stored
	SavedTo string `json:"saved_to,omitempty"`
}

type recipients struct {
	To  []string `json:"to"`
	Cc  []string `json:"cc,omitempty"`
	Bcc []string `json:"bcc,omitempty"`
}

// Record stores e and sets its ID
func (l *Ledger) Record(e *Entry) error {
	if e.MessageID == "" {
		return fmt.Errorf("entry has no message id")
	}
	if e.Kind == "" {
		e.Kind = KindSend
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}

	recipientsJSON, err := json.Marshal(recipients{To: e.To, Cc: e.Cc, Bcc: e.Bcc})
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}
	acceptedJSON, err := json.Marshal(nonNil(e.Accepted))
	if err != nil {
		return fmt.Errorf("failed to marshal accepted recipients: %w", err)
	}
	rejectedJSON, err := json.Marshal(nonNil(e.Rejected))
	if err != nil {
		return fmt.Errorf("failed to marshal rejected recipients: %w", err)
	}

	var replyUID sql.NullInt64
	if e.Kind == KindReply {
		replyUID = sql.NullInt64{Int64: int64(e.ReplyID), Valid: true}
	}

	query := `
		INSERT INTO sent_messages (message_id, kind, subject, recipients, accepted, rejected, reply_mailbox, reply_uid, reply_message_id, saved_to, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := l.db.Exec(query,
		e.MessageID,
		e.Kind,
		e.Subject,
		string(recipientsJSON),
		string(acceptedJSON),
		string(rejectedJSON),
		e.ReplyMailbox,
		replyUID,
		e.ReplyMessageID,
		e.SavedTo,
		e.SentAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record sent message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get entry ID: %w", err)
	}
	e.ID = id

	l.logger.WithFields(logrus.Fields{
		"message_id": e.MessageID,
		"kind":       e.Kind,
	}).Debug("Recorded sent message")
	return nil
}

// HasReplyTo reports whether a reply to mailbox/id was sent through this server
func (l *Ledger) HasReplyTo(mailbox string, id uint32) (bool, error) {
	var exists bool
	err := l.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM sent_messages WHERE kind = ? AND reply_mailbox = ? AND reply_uid = ?)",
		KindReply, mailbox, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up reply: %w", err)
	}
	return exists, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
