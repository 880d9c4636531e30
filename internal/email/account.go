package email

import (
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/config"
)

// Account represents the configured mailbox with its receive and send clients
type Account struct {
	Config   *config.Config
	Receiver Receiver
	SMTP     *SMTPClient
}

// NewAccount builds the receiver for the configured protocol and the SMTP client.
// Nothing connects until first use.
func NewAccount(cfg *config.Config, logger *logrus.Logger) *Account {
	var receiver Receiver
	switch cfg.Protocol {
	case config.ProtocolPOP3:
		receiver = NewPOP3Client(cfg, logger)
	default:
		receiver = NewIMAPClient(cfg, logger)
	}

	return &Account{
		Config:   cfg,
		Receiver: receiver,
		SMTP:     NewSMTPClient(cfg, logger),
	}
}

// Address is the account's own email address
func (a *Account) Address() string {
	return a.Config.Username
}
