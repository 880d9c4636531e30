package tools

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/email"
)

type sessionView struct {
	email.ConnectionStatus
	Since string `json:"since,omitempty"`
}

func viewSession(s email.ConnectionStatus) sessionView {
	v := sessionView{ConnectionStatus: s}
	if !s.ConnectedSince.IsZero() {
		v.Since = humanize.RelTime(s.ConnectedSince, time.Now(), "ago", "from now")
	}
	return v
}

// ConnectionStatusTool reports the state of the receive and send sessions
type ConnectionStatusTool struct {
	manager *email.Manager
	logger  *logrus.Logger
}

// NewConnectionStatusTool creates a new connection status tool
func NewConnectionStatusTool(manager *email.Manager, logger *logrus.Logger) *ConnectionStatusTool {
	return &ConnectionStatusTool{
		manager: manager,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *ConnectionStatusTool) Name() string {
	return "get_connection_status"
}

// Description returns the tool description
func (t *ConnectionStatusTool) Description() string {
	return "Show whether the mailbox and SMTP connections are up"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ConnectionStatusTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute executes the tool
func (t *ConnectionStatusTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	status := t.manager.Status()
	return map[string]interface{}{
		"account": status.Account,
		"receive": viewSession(status.Receive),
		"send":    viewSession(status.Send),
	}, nil
}

// ConnectAllTool opens the receive session and verifies SMTP
type ConnectAllTool struct {
	manager *email.Manager
	logger  *logrus.Logger
}

// NewConnectAllTool creates a new connect tool
func NewConnectAllTool(manager *email.Manager, logger *logrus.Logger) *ConnectAllTool {
	return &ConnectAllTool{
		manager: manager,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *ConnectAllTool) Name() string {
	return "connect_all"
}

// Description returns the tool description
func (t *ConnectAllTool) Description() string {
	return "Connect to the mailbox server and verify the SMTP server"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ConnectAllTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute executes the tool
func (t *ConnectAllTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := t.manager.ConnectAll(ctx); err != nil {
		return nil, err
	}
	status := t.manager.Status()
	return map[string]interface{}{
		"connected": true,
		"receive":   viewSession(status.Receive),
		"send":      viewSession(status.Send),
	}, nil
}

// DisconnectAllTool closes the receive session
type DisconnectAllTool struct {
	manager *email.Manager
	logger  *logrus.Logger
}

// NewDisconnectAllTool creates a new disconnect tool
func NewDisconnectAllTool(manager *email.Manager, logger *logrus.Logger) *DisconnectAllTool {
	return &DisconnectAllTool{
		manager: manager,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *DisconnectAllTool) Name() string {
	return "disconnect_all"
}

// Description returns the tool description
func (t *DisconnectAllTool) Description() string {
	return "Close all open connections"
}

// InputSchema returns the JSON schema for tool inputs
func (t *DisconnectAllTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute executes the tool
func (t *DisconnectAllTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := t.manager.DisconnectAll(); err != nil {
		return nil, err
	}
	t.logger.Info("All connections closed")
	return map[string]interface{}{
		"disconnected": true,
	}, nil
}
