package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecentOptions filters the send history
type RecentOptions struct {
	// Query is matched as a phrase against subject and recipients
	Query string
	Kind  string
	Since time.Time
	Limit int
}

// Recent lists recorded messages, newest first
func (l *Ledger) Recent(opts RecentOptions) ([]*Entry, error) {
	var conditions []string
	var args []interface{}

	if q := strings.TrimSpace(opts.Query); q != "" {
		conditions = append(conditions, "s.id IN (SELECT rowid FROM sent_messages_fts WHERE sent_messages_fts MATCH ?)")
		args = append(args, ftsPhrase(q))
	}
	if opts.Kind != "" {
		conditions = append(conditions, "s.kind = ?")
		args = append(args, opts.Kind)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "s.sent_at >= ?")
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.message_id, s.kind, s.subject, s.recipients, s.accepted, s.rejected,
			s.reply_mailbox, s.reply_uid, s.reply_message_id, s.saved_to, s.sent_at
		FROM sent_messages s
		%s
		ORDER BY s.sent_at DESC, s.id DESC
		LIMIT ?
	`, whereClause)
	args = append(args, limit)

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query send history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		var e Entry
		var subject, replyMailbox, replyMessageID, savedTo *string
		var replyUID *int64
		var recipientsJSON, acceptedJSON, rejectedJSON, sentAt string

		err := rows.Scan(
			&e.ID,
			&e.MessageID,
			&e.Kind,
			&subject,
			&recipientsJSON,
			&acceptedJSON,
			&rejectedJSON,
			&replyMailbox,
			&replyUID,
			&replyMessageID,
			&savedTo,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		e.Subject = deref(subject)
		e.ReplyMailbox = deref(replyMailbox)
		e.ReplyMessageID = deref(replyMessageID)
		e.SavedTo = deref(savedTo)
		if replyUID != nil {
			e.ReplyID = uint32(*replyUID)
		}

		var rcpt recipients
		if err := json.Unmarshal([]byte(recipientsJSON), &rcpt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
		}
		e.To, e.Cc, e.Bcc = rcpt.To, rcpt.Cc, rcpt.Bcc
		if err := json.Unmarshal([]byte(acceptedJSON), &e.Accepted); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accepted recipients: %w", err)
		}
		if err := json.Unmarshal([]byte(rejectedJSON), &e.Rejected); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rejected recipients: %w", err)
		}

		e.SentAt, err = time.Parse(timeLayout, sentAt)
		if err != nil {
			e.SentAt, err = time.Parse(time.RFC3339, sentAt)
			if err != nil {
				e.SentAt = time.Time{}
			}
		}

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read send history: %w", err)
	}

	return entries, nil
}

// ftsPhrase quotes q so FTS5 operators in user input are taken literally
func ftsPhrase(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
