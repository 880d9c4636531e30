package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/email"
)

// ListMailboxesTool lists the account's mailboxes as a tree
type ListMailboxesTool struct {
	manager *email.Manager
	logger  *logrus.Logger
}

// NewListMailboxesTool creates a new list mailboxes tool
func NewListMailboxesTool(manager *email.Manager, logger *logrus.Logger) *ListMailboxesTool {
	return &ListMailboxesTool{
		manager: manager,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *ListMailboxesTool) Name() string {
	return "list_mailboxes"
}

// Description returns the tool description
func (t *ListMailboxesTool) Description() string {
	return "List all mailboxes (folders) of the account as a tree"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ListMailboxesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute executes the tool
func (t *ListMailboxesTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	folders, err := t.manager.Account().Receiver.ListMailboxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	return map[string]interface{}{
		"account":   t.manager.Account().Address(),
		"mailboxes": folders,
	}, nil
}

// OpenMailboxTool selects a mailbox and reports its state
type OpenMailboxTool struct {
	manager *email.Manager
	logger  *logrus.Logger
}

// NewOpenMailboxTool creates a new open mailbox tool
func NewOpenMailboxTool(manager *email.Manager, logger *logrus.Logger) *OpenMailboxTool {
	return &OpenMailboxTool{
		manager: manager,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *OpenMailboxTool) Name() string {
	return "open_mailbox"
}

// Description returns the tool description
func (t *OpenMailboxTool) Description() string {
	return "Open a mailbox and return its message counts and flags"
}

// InputSchema returns the JSON schema for tool inputs
func (t *OpenMailboxTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":      stringProp("Mailbox name, e.g. INBOX"),
			"read_only": boolProp("Optional: open without write access (default: false)"),
		},
		"required": []string{"name"},
	}
}

// Execute executes the tool
func (t *OpenMailboxTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	readOnly, err := optionalBool(params, "read_only", false)
	if err != nil {
		return nil, err
	}

	info, err := t.manager.Account().Receiver.OpenMailbox(ctx, name, readOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return info, nil
}
