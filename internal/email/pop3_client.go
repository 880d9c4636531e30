package email

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knadh/go-pop3"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/internal/normalize"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// POP3Client serves a single INBOX over POP3. The protocol has no server-side
// search and no flags, so Search downloads messages and filters locally.
// Downloaded messages are kept only until the next OpenMailbox.
type POP3Client struct {
	server   config.ServerConfig
	username string
	password string
	inbox    string
	retries  int
	logger   *logrus.Logger

	pop   *pop3.Client
	guard connectGuard

	mu             sync.Mutex
	conn           *pop3.Conn
	opened         bool
	scratch        map[uint32]*types.Message
	connectedSince time.Time
	lastErr        string
}

// NewPOP3Client creates a new POP3 client (does not connect immediately)
func NewPOP3Client(cfg *config.Config, logger *logrus.Logger) *POP3Client {
	return &POP3Client{
		server:   cfg.Receive,
		username: cfg.Username,
		password: cfg.Password,
		inbox:    cfg.InboxMailbox,
		retries:  cfg.ConnectRetries,
		logger:   logger,
		pop: pop3.New(pop3.Opt{
			Host:        cfg.Receive.Host,
			Port:        cfg.Receive.Port,
			TLSEnabled:  cfg.Receive.Secure,
			DialTimeout: cfg.DialTimeout,
		}),
	}
}

// Protocol returns "pop3"
func (c *POP3Client) Protocol() string {
	return config.ProtocolPOP3
}

// Connect opens and authenticates a POP3 session if there is none
func (c *POP3Client) Connect(ctx context.Context) error {
	if c.session() != nil {
		return nil
	}
	return c.guard.do(ctx, c.connect)
}

func (c *POP3Client) connect() error {
	if c.session() != nil {
		return nil
	}

	addr := c.server.Address()
	var conn *pop3.Conn
	err := dialWithRetry(c.logger, "pop3", addr, c.retries, func() error {
		var err error
		conn, err = c.pop.NewConn()
		return err
	})
	if err != nil {
		connErr := &ConnectionError{Protocol: "pop3", Addr: addr, Err: err}
		c.setErr(connErr)
		return connErr
	}

	if err := conn.Auth(c.username, c.password); err != nil {
		conn.Quit() //nolint:errcheck
		authErr := &AuthError{Protocol: "pop3", Username: c.username, Err: err}
		c.setErr(authErr)
		return authErr
	}

	c.mu.Lock()
	c.conn = conn
	c.opened = false
	c.scratch = nil
	c.connectedSince = time.Now()
	c.lastErr = ""
	c.mu.Unlock()

	c.logger.WithField("addr", addr).Info("Connected to POP3 server")
	return nil
}

func (c *POP3Client) session() *pop3.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *POP3Client) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

func (c *POP3Client) ready(ctx context.Context) (*pop3.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	conn := c.session()
	if conn == nil {
		return nil, &ConnectionError{Protocol: "pop3", Addr: c.server.Address(), Err: fmt.Errorf("connection closed")}
	}
	return conn, nil
}

// drop forgets the session after a protocol error; POP3 cannot recover mid-session
func (c *POP3Client) drop(op string, err error) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.opened = false
	c.scratch = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Quit() //nolint:errcheck
	}
	connErr := &ConnectionError{Protocol: "pop3", Addr: c.server.Address(), Err: fmt.Errorf("%s: %w", op, err)}
	c.setErr(connErr)
	return connErr
}

// Close ends the session; deletions are committed by QUIT
func (c *POP3Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.opened = false
	c.scratch = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Quit(); err != nil {
		return err
	}
	c.logger.Info("Disconnected from POP3 server")
	return nil
}

// Status reports the session state
func (c *POP3Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := ConnectionStatus{
		Protocol:  "pop3",
		Address:   c.server.Address(),
		Connected: c.conn != nil,
		LastError: c.lastErr,
	}
	if c.conn != nil {
		status.ConnectedSince = c.connectedSince
		if c.opened {
			status.Mailbox = c.inbox
		}
	}
	return status
}

// ListMailboxes returns the only mailbox POP3 knows
func (c *POP3Client) ListMailboxes(ctx context.Context) ([]*types.Folder, error) {
	if _, err := c.ready(ctx); err != nil {
		return nil, err
	}
	return []*types.Folder{{Name: c.inbox, Path: c.inbox}}, nil
}

func (c *POP3Client) isInbox(name string) bool {
	return strings.EqualFold(name, c.inbox) || strings.EqualFold(name, "INBOX")
}

// OpenMailbox accepts only the inbox; any other name fails like a missing folder
func (c *POP3Client) OpenMailbox(ctx context.Context, name string, readOnly bool) (*types.MailboxInfo, error) {
	conn, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	if !c.isInbox(name) {
		return nil, fmt.Errorf("failed to select folder %q: POP3 only provides %s", name, c.inbox)
	}

	count, _, err := conn.Stat()
	if err != nil {
		return nil, c.drop("stat", err)
	}

	c.mu.Lock()
	c.opened = true
	c.scratch = make(map[uint32]*types.Message)
	c.mu.Unlock()

	return &types.MailboxInfo{
		Name:     c.inbox,
		ReadOnly: readOnly,
		Messages: uint32(count),
	}, nil
}

func (c *POP3Client) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Search lists every message and evaluates the criteria locally
func (c *POP3Client) Search(ctx context.Context, crit criteria.Criteria) ([]uint32, error) {
	conn, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	if !c.isOpen() {
		return nil, fmt.Errorf("no mailbox is open")
	}

	list, err := conn.List(0)
	if err != nil {
		return nil, c.drop("list", err)
	}

	var ids []uint32
	for _, item := range list {
		id := uint32(item.ID)
		if len(crit) == 0 {
			ids = append(ids, id)
			continue
		}
		msg, err := c.retrieve(conn, id)
		if err != nil {
			return nil, err
		}
		if crit.Match(msg) {
			ids = append(ids, id)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"criteria": crit.String(),
		"scanned":  len(list),
		"matches":  len(ids),
	}).Debug("POP3 search done")
	return ids, nil
}

// Fetch retrieves full messages by message number
func (c *POP3Client) Fetch(ctx context.Context, ids []uint32) ([]*types.Message, error) {
	conn, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	if !c.isOpen() {
		return nil, fmt.Errorf("no mailbox is open")
	}

	emails := make([]*types.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := c.retrieve(conn, id)
		if err != nil {
			return nil, err
		}
		emails = append(emails, msg)
	}
	return emails, nil
}

func (c *POP3Client) retrieve(conn *pop3.Conn, id uint32) (*types.Message, error) {
	c.mu.Lock()
	cached := c.scratch[id]
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	buf, err := conn.RetrRaw(int(id))
	if err != nil {
		return nil, c.drop(fmt.Sprintf("retrieve message %d", id), err)
	}
	msg := normalize.FromRaw(normalize.Raw{
		ID:      id,
		Mailbox: c.inbox,
		Body:    buf.Bytes(),
	})

	c.mu.Lock()
	if c.scratch != nil {
		c.scratch[id] = msg
	}
	c.mu.Unlock()
	return msg, nil
}

// Delete marks the message for deletion and ends the session so the server commits it
func (c *POP3Client) Delete(ctx context.Context, id uint32) error {
	conn, err := c.ready(ctx)
	if err != nil {
		return err
	}
	if err := conn.Dele(int(id)); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", id, err)
	}
	return c.Close()
}

// Append is not part of POP3
func (c *POP3Client) Append(_ context.Context, mailbox string, _ []string, _ []byte) error {
	return fmt.Errorf("append to %q: %w", mailbox, ErrNotSupported)
}
