package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// SMTPClient submits messages. Each Send opens its own session.
type SMTPClient struct {
	server      config.ServerConfig
	username    string
	password    string
	retries     int
	dialTimeout time.Duration
	logger      *logrus.Logger

	mu           sync.Mutex
	lastVerified time.Time
	lastErr      string
}

// NewSMTPClient creates a new SMTP client
func NewSMTPClient(cfg *config.Config, logger *logrus.Logger) *SMTPClient {
	return &SMTPClient{
		server:      cfg.SMTP,
		username:    cfg.Username,
		password:    cfg.Password,
		retries:     cfg.ConnectRetries,
		dialTimeout: cfg.DialTimeout,
		logger:      logger,
	}
}

// From is the envelope sender and From header of outgoing mail
func (c *SMTPClient) From() string {
	return c.username
}

// dial opens an authenticated session: implicit TLS when the server is marked
// secure, STARTTLS when the server offers it otherwise.
func (c *SMTPClient) dial(ctx context.Context) (*smtp.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := c.server.Address()
	tlsConfig := &tls.Config{
		ServerName: c.server.Host,
		MinVersion: tls.VersionTLS12,
	}
	dialer := &net.Dialer{Timeout: c.dialTimeout}

	var conn net.Conn
	err := dialWithRetry(c.logger, "smtp", addr, c.retries, func() error {
		var err error
		if c.server.Secure {
			conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		} else {
			conn, err = dialer.DialContext(ctx, "tcp", addr)
		}
		return err
	})
	if err != nil {
		return nil, c.fail(&ConnectionError{Protocol: "smtp", Addr: addr, Err: err})
	}

	client, err := smtp.NewClient(conn, c.server.Host)
	if err != nil {
		conn.Close()
		return nil, c.fail(&ConnectionError{Protocol: "smtp", Addr: addr, Err: err})
	}

	if !c.server.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, c.fail(&ConnectionError{Protocol: "smtp", Addr: addr, Err: fmt.Errorf("start TLS: %w", err)})
			}
		}
	}

	if ok, _ := client.Extension("AUTH"); ok && c.password != "" {
		auth := smtp.PlainAuth("", c.username, c.password, c.server.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, c.fail(&AuthError{Protocol: "smtp", Username: c.username, Err: err})
		}
	}

	return client, nil
}

func (c *SMTPClient) fail(err error) error {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	return err
}

func (c *SMTPClient) succeed() {
	c.mu.Lock()
	c.lastVerified = time.Now()
	c.lastErr = ""
	c.mu.Unlock()
}

// Verify opens and closes an authenticated session
func (c *SMTPClient) Verify(ctx context.Context) error {
	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Noop(); err != nil {
		return c.fail(fmt.Errorf("smtp noop: %w", err))
	}
	if err := client.Quit(); err != nil {
		c.logger.WithError(err).Debug("SMTP quit failed")
	}
	c.succeed()
	return nil
}

// Send builds and submits msg. It returns the submission result and the raw
// bytes that were sent, so a copy can be stored in a sent folder.
func (c *SMTPClient) Send(ctx context.Context, msg *OutgoingMessage) (*types.SendResult, []byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, nil, err
	}

	messageID, raw, err := BuildMessage(msg, c.From(), time.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create message: %w", err)
	}

	client, err := c.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer client.Close()

	if err := client.Mail(c.From()); err != nil {
		return nil, nil, fmt.Errorf("failed to set sender: %w", err)
	}

	result := &types.SendResult{
		MessageID: messageID,
		Accepted:  []string{},
		Rejected:  []string{},
	}
	for _, rcpt := range msg.Recipients() {
		if err := client.Rcpt(rcpt); err != nil {
			c.logger.WithError(err).WithField("recipient", rcpt).Warn("Recipient rejected")
			result.Rejected = append(result.Rejected, rcpt)
			continue
		}
		result.Accepted = append(result.Accepted, rcpt)
	}
	if len(result.Accepted) == 0 {
		return nil, nil, fmt.Errorf("all recipients were rejected: %v", result.Rejected)
	}

	w, err := client.Data()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send data command: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, nil, fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := client.Quit(); err != nil {
		c.logger.WithError(err).Debug("SMTP quit failed after successful submission")
	}
	c.succeed()

	c.logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"accepted":   len(result.Accepted),
		"rejected":   len(result.Rejected),
	}).Info("Email sent")
	return result, raw, nil
}

// Status reports when the server last accepted a session
func (c *SMTPClient) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionStatus{
		Protocol:       "smtp",
		Address:        c.server.Address(),
		Connected:      !c.lastVerified.IsZero() && c.lastErr == "",
		ConnectedSince: c.lastVerified,
		LastError:      c.lastErr,
	}
}
