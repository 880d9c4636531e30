package types

import "time"

// Message represents one mail item as fetched from a mailbox.
// ID is only unique within Mailbox.
type Message struct {
	ID          uint32           `json:"id"`
	Mailbox     string           `json:"mailbox"`
	MessageID   string           `json:"message_id,omitempty"`
	InReplyTo   string           `json:"in_reply_to,omitempty"`
	Subject     string           `json:"subject"`
	SenderName  string           `json:"sender_name,omitempty"`
	From        string           `json:"from"`
	To          []string         `json:"to"`
	Cc          []string         `json:"cc,omitempty"`
	Bcc         []string         `json:"bcc,omitempty"`
	Date        time.Time        `json:"date"`
	Flags       []string         `json:"flags,omitempty"`
	Size        uint32           `json:"size,omitempty"`
	BodyText    string           `json:"body_text,omitempty"`
	BodyHTML    string           `json:"body_html,omitempty"`
	Attachments []AttachmentInfo `json:"attachments,omitempty"`
	ParseError  string           `json:"parse_error,omitempty"`
}

// HasDate reports whether the message carries a usable timestamp.
func (m *Message) HasDate() bool {
	return !m.Date.IsZero()
}

// AttachmentInfo describes an attachment without its content
type AttachmentInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// MailboxOutcome is the per-mailbox entry of a federated search
type MailboxOutcome struct {
	Mailbox     string   `json:"mailbox"`
	MatchingIDs []uint32 `json:"matching_ids"`
	Count       int      `json:"count"`
	Error       string   `json:"error,omitempty"`
}

// SearchResult is the merged output of a search across several mailboxes
type SearchResult struct {
	MailboxesSearched []MailboxOutcome `json:"mailboxes_searched"`
	Messages          []*Message       `json:"messages"`
	TotalMatches      int              `json:"total_matches"`
	SentMailbox       string           `json:"sent_mailbox,omitempty"`
	Note              string           `json:"note"`
	Warning           string           `json:"warning,omitempty"`
}

// ReplyAnalysis is the reply verdict for a single received message
type ReplyAnalysis struct {
	OriginalID     uint32    `json:"original_id"`
	Mailbox        string    `json:"mailbox"`
	Subject        string    `json:"subject"`
	Date           time.Time `json:"date"`
	Replied        bool      `json:"replied"`
	MatchedReplyID *uint32   `json:"matched_reply_id,omitempty"`
	MatchedMailbox string    `json:"matched_mailbox,omitempty"`
	Strategy       string    `json:"strategy,omitempty"`
}

// Folder represents an email folder/mailbox in the mailbox tree
type Folder struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Delimiter  string    `json:"delimiter,omitempty"`
	Attributes []string  `json:"attributes,omitempty"`
	Children   []*Folder `json:"children,omitempty"`
}

// MailboxInfo is the state of a mailbox after it has been opened
type MailboxInfo struct {
	Name        string   `json:"name"`
	ReadOnly    bool     `json:"read_only"`
	Messages    uint32   `json:"messages"`
	Recent      uint32   `json:"recent"`
	Unseen      uint32   `json:"unseen"`
	UIDNext     uint32   `json:"uid_next,omitempty"`
	UIDValidity uint32   `json:"uid_validity,omitempty"`
	Flags       []string `json:"flags,omitempty"`
}

// SendResult is returned after an SMTP submission
type SendResult struct {
	MessageID string   `json:"message_id"`
	Accepted  []string `json:"accepted"`
	Rejected  []string `json:"rejected"`
}
