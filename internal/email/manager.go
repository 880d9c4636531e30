package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Manager owns the account sessions and their lifecycle
type Manager struct {
	account *Account
	logger  *logrus.Logger
}

// NewManager creates a new email manager
func NewManager(account *Account, logger *logrus.Logger) *Manager {
	return &Manager{
		account: account,
		logger:  logger,
	}
}

// Account returns the managed account
func (m *Manager) Account() *Account {
	return m.account
}

// Status is the state of both protocol sessions
type Status struct {
	Account string           `json:"account"`
	Receive ConnectionStatus `json:"receive"`
	Send    ConnectionStatus `json:"send"`
}

// Status returns the receive and send session state
func (m *Manager) Status() Status {
	return Status{
		Account: m.account.Address(),
		Receive: m.account.Receiver.Status(),
		Send:    m.account.SMTP.Status(),
	}
}

// ConnectAll connects the receiver and verifies the SMTP server.
// Both are attempted even if the first fails.
func (m *Manager) ConnectAll(ctx context.Context) error {
	var errs []error

	if err := m.account.Receiver.Connect(ctx); err != nil {
		m.logger.WithError(err).Error("Failed to connect receiver")
		errs = append(errs, err)
	}
	if err := m.account.SMTP.Verify(ctx); err != nil {
		m.logger.WithError(err).Error("Failed to verify SMTP server")
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("connect: %w", errors.Join(errs...))
	}
	m.logger.Info("All connections established")
	return nil
}

// DisconnectAll closes the receive session. SMTP sessions are per send and need no teardown.
func (m *Manager) DisconnectAll() error {
	if err := m.account.Receiver.Close(); err != nil {
		return fmt.Errorf("failed to close %s session: %w", m.account.Receiver.Protocol(), err)
	}
	return nil
}

// Close closes all connections
func (m *Manager) Close() error {
	return m.DisconnectAll()
}
