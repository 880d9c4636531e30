package email

import (
	"context"
	"time"

	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// Receiver is a mailbox protocol session (IMAP or POP3).
//
// A session has at most one open mailbox. Search, Fetch and Delete act on
// the mailbox opened last, and calls must not overlap.
type Receiver interface {
	Protocol() string
	Connect(ctx context.Context) error
	Close() error
	Status() ConnectionStatus

	ListMailboxes(ctx context.Context) ([]*types.Folder, error)
	OpenMailbox(ctx context.Context, name string, readOnly bool) (*types.MailboxInfo, error)
	Search(ctx context.Context, c criteria.Criteria) ([]uint32, error)
	Fetch(ctx context.Context, ids []uint32) ([]*types.Message, error)
	Delete(ctx context.Context, id uint32) error
	Append(ctx context.Context, mailbox string, flags []string, raw []byte) error
}

// ConnectionStatus describes one protocol session
type ConnectionStatus struct {
	Protocol       string    `json:"protocol"`
	Address        string    `json:"address"`
	Connected      bool      `json:"connected"`
	ConnectedSince time.Time `json:"connected_since,omitempty"`
	Mailbox        string    `json:"mailbox,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}
