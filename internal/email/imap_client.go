package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/internal/normalize"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// IMAPClient wraps an IMAP client connection
type IMAPClient struct {
	server      config.ServerConfig
	username    string
	password    string
	retries     int
	dialTimeout time.Duration
	logger      *logrus.Logger

	guard connectGuard

	mu             sync.Mutex
	client         *client.Client
	mailbox        string
	connectedSince time.Time
	lastErr        string
}

// NewIMAPClient creates a new IMAP client (does not connect immediately)
func NewIMAPClient(cfg *config.Config, logger *logrus.Logger) *IMAPClient {
	return &IMAPClient{
		server:      cfg.Receive,
		username:    cfg.Username,
		password:    cfg.Password,
		retries:     cfg.ConnectRetries,
		dialTimeout: cfg.DialTimeout,
		logger:      logger,
	}
}

// Protocol returns "imap"
func (c *IMAPClient) Protocol() string {
	return config.ProtocolIMAP
}

// Connect establishes a connection to the IMAP server if there is none.
// Concurrent callers wait for the same attempt.
func (c *IMAPClient) Connect(ctx context.Context) error {
	if c.session() != nil {
		return nil
	}
	return c.guard.do(ctx, c.connect)
}

func (c *IMAPClient) connect() error {
	if c.session() != nil {
		return nil
	}

	addr := c.server.Address()
	tlsConfig := &tls.Config{
		ServerName: c.server.Host,
		MinVersion: tls.VersionTLS12,
	}
	dialer := &net.Dialer{Timeout: c.dialTimeout}

	var cl *client.Client
	err := dialWithRetry(c.logger, "imap", addr, c.retries, func() error {
		var err error
		if c.server.Secure {
			cl, err = client.DialWithDialerTLS(dialer, addr, tlsConfig)
			return err
		}
		cl, err = client.DialWithDialer(dialer, addr)
		if err != nil {
			return err
		}
		if ok, _ := cl.SupportStartTLS(); ok {
			if err := cl.StartTLS(tlsConfig); err != nil {
				cl.Logout() //nolint:errcheck
				return err
			}
		}
		return nil
	})
	if err != nil {
		connErr := &ConnectionError{Protocol: "imap", Addr: addr, Err: err}
		c.setErr(connErr)
		return connErr
	}
	cl.Timeout = c.dialTimeout

	if err := cl.Login(c.username, c.password); err != nil {
		c.logger.WithError(err).Error("Failed to login to IMAP server")
		cl.Logout() //nolint:errcheck
		authErr := &AuthError{Protocol: "imap", Username: c.username, Err: err}
		c.setErr(authErr)
		return authErr
	}

	c.mu.Lock()
	c.client = cl
	c.mailbox = ""
	c.connectedSince = time.Now()
	c.lastErr = ""
	c.mu.Unlock()

	c.logger.WithField("addr", addr).Info("Connected to IMAP server")
	return nil
}

// session returns the live client, or nil when disconnected
func (c *IMAPClient) session() *client.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	select {
	case <-c.client.LoggedOut():
		c.client = nil
		c.mailbox = ""
		return nil
	default:
		return c.client
	}
}

func (c *IMAPClient) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

// ready connects when needed and returns the live client
func (c *IMAPClient) ready(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	cl := c.session()
	if cl == nil {
		return nil, &ConnectionError{Protocol: "imap", Addr: c.server.Address(), Err: fmt.Errorf("connection closed")}
	}
	return cl, nil
}

// commandErr turns a failed command into a ConnectionError when the session is gone
func (c *IMAPClient) commandErr(cl *client.Client, op string, err error) error {
	if cl.State() == imap.LogoutState {
		c.mu.Lock()
		c.client = nil
		c.mailbox = ""
		c.mu.Unlock()
		connErr := &ConnectionError{Protocol: "imap", Addr: c.server.Address(), Err: fmt.Errorf("%s: %w", op, err)}
		c.setErr(connErr)
		return connErr
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// Close closes the IMAP connection
func (c *IMAPClient) Close() error {
	c.mu.Lock()
	cl := c.client
	c.client = nil
	c.mailbox = ""
	c.mu.Unlock()

	if cl == nil {
		return nil
	}
	if err := cl.Logout(); err != nil && err != client.ErrAlreadyLoggedOut {
		return err
	}
	c.logger.Info("Disconnected from IMAP server")
	return nil
}

// Status reports the session state
func (c *IMAPClient) Status() ConnectionStatus {
	connected := c.session() != nil

	c.mu.Lock()
	defer c.mu.Unlock()
	status := ConnectionStatus{
		Protocol:  "imap",
		Address:   c.server.Address(),
		Connected: connected,
		Mailbox:   c.mailbox,
		LastError: c.lastErr,
	}
	if connected {
		status.ConnectedSince = c.connectedSince
	}
	return status
}

// ListMailboxes lists all mailboxes/folders as a tree
func (c *IMAPClient) ListMailboxes(ctx context.Context) ([]*types.Folder, error) {
	cl, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- cl.List("", "*", mailboxes)
	}()

	var entries []MailboxEntry
	for m := range mailboxes {
		entries = append(entries, MailboxEntry{
			Name:       m.Name,
			Delimiter:  m.Delimiter,
			Attributes: m.Attributes,
		})
	}

	if err := <-done; err != nil {
		return nil, c.commandErr(cl, "list folders", err)
	}

	return BuildTree(entries), nil
}

// OpenMailbox selects a mailbox; following Search/Fetch/Delete calls act on it
func (c *IMAPClient) OpenMailbox(ctx context.Context, name string, readOnly bool) (*types.MailboxInfo, error) {
	cl, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}

	mbox, err := cl.Select(name, readOnly)
	if err != nil {
		c.mu.Lock()
		c.mailbox = ""
		c.mu.Unlock()
		return nil, c.commandErr(cl, fmt.Sprintf("select folder %q", name), err)
	}

	c.mu.Lock()
	c.mailbox = mbox.Name
	c.mu.Unlock()

	return &types.MailboxInfo{
		Name:        mbox.Name,
		ReadOnly:    mbox.ReadOnly,
		Messages:    mbox.Messages,
		Recent:      mbox.Recent,
		Unseen:      mbox.Unseen,
		UIDNext:     mbox.UidNext,
		UIDValidity: mbox.UidValidity,
		Flags:       mbox.Flags,
	}, nil
}

func (c *IMAPClient) selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mailbox
}

// Search runs UID SEARCH on the open mailbox
func (c *IMAPClient) Search(ctx context.Context, crit criteria.Criteria) ([]uint32, error) {
	cl, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	if c.selected() == "" {
		return nil, fmt.Errorf("no mailbox is open")
	}

	uids, err := cl.UidSearch(crit.ToIMAP())
	if err != nil {
		return nil, c.commandErr(cl, "search emails", err)
	}

	c.logger.WithFields(logrus.Fields{
		"mailbox":  c.selected(),
		"criteria": crit.String(),
		"matches":  len(uids),
	}).Debug("IMAP search done")
	return uids, nil
}

// Fetch retrieves full messages by UID from the open mailbox without setting \Seen
func (c *IMAPClient) Fetch(ctx context.Context, ids []uint32) ([]*types.Message, error) {
	cl, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	mailbox := c.selected()
	if mailbox == "" {
		return nil, fmt.Errorf("no mailbox is open")
	}
	if len(ids) == 0 {
		return []*types.Message{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		imap.FetchRFC822Size,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- cl.UidFetch(seqSet, items, messages)
	}()

	var emails []*types.Message
	for msg := range messages {
		emails = append(emails, normalize.FromRaw(c.rawMessage(msg, section, mailbox)))
	}

	if err := <-done; err != nil {
		return nil, c.commandErr(cl, "fetch messages", err)
	}

	return emails, nil
}

// rawMessage copies what the server returned into a normalizer input
func (c *IMAPClient) rawMessage(msg *imap.Message, section *imap.BodySectionName, mailbox string) normalize.Raw {
	raw := normalize.Raw{
		ID:           msg.Uid,
		Mailbox:      mailbox,
		Flags:        msg.Flags,
		InternalDate: msg.InternalDate,
		Size:         msg.Size,
	}

	if env := msg.Envelope; env != nil {
		raw.Subject = env.Subject
		raw.Date = env.Date
		raw.MessageID = env.MessageId
		raw.InReplyTo = env.InReplyTo
		raw.From = formatAddresses(env.From)
		raw.To = formatAddresses(env.To)
		raw.Cc = formatAddresses(env.Cc)
		raw.Bcc = formatAddresses(env.Bcc)
	}

	if literal := msg.GetBody(section); literal != nil {
		body, err := io.ReadAll(literal)
		if err != nil {
			c.logger.WithError(err).WithField("uid", msg.Uid).Warn("Error reading literal")
		}
		raw.Body = body
	} else {
		c.logger.WithField("uid", msg.Uid).Debug("No body section in fetch response")
	}

	return raw
}

func formatAddresses(list []*imap.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a == nil {
			continue
		}
		addr := a.Address()
		if a.PersonalName != "" {
			out = append(out, fmt.Sprintf("%q <%s>", a.PersonalName, addr))
		} else {
			out = append(out, addr)
		}
	}
	return out
}

// Delete marks a message \Deleted in the open mailbox and expunges it
func (c *IMAPClient) Delete(ctx context.Context, id uint32) error {
	cl, err := c.ready(ctx)
	if err != nil {
		return err
	}
	if c.selected() == "" {
		return fmt.Errorf("no mailbox is open")
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(id)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := cl.UidStore(seqSet, item, flags, nil); err != nil {
		return c.commandErr(cl, fmt.Sprintf("flag message %d deleted", id), err)
	}
	if err := cl.Expunge(nil); err != nil {
		return c.commandErr(cl, "expunge", err)
	}
	return nil
}

// Append stores a raw message in a mailbox, used to keep copies of sent mail
func (c *IMAPClient) Append(ctx context.Context, mailbox string, flags []string, raw []byte) error {
	cl, err := c.ready(ctx)
	if err != nil {
		return err
	}
	if err := cl.Append(mailbox, flags, time.Now(), bytes.NewBuffer(raw)); err != nil {
		return c.commandErr(cl, fmt.Sprintf("append to %q", mailbox), err)
	}
	return nil
}
