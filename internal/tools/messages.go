package tools

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// messageView adds display fields to a fetched message
type messageView struct {
	*types.Message
	SizeHuman string `json:"size_human,omitempty"`
}

func viewOf(msgs []*types.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		v := messageView{Message: m}
		if m.Size > 0 {
			v.SizeHuman = humanize.Bytes(uint64(m.Size))
		}
		out = append(out, v)
	}
	return out
}

// fetchFrom opens mailbox read-only and fetches ids from it
func fetchFrom(ctx context.Context, receiver email.Receiver, mailbox string, ids []uint32) ([]*types.Message, error) {
	if _, err := receiver.OpenMailbox(ctx, mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", mailbox, err)
	}
	msgs, err := receiver.Fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", mailbox, err)
	}
	for _, m := range msgs {
		m.Mailbox = mailbox
	}
	return msgs, nil
}

func mailboxProp() map[string]interface{} {
	return stringProp("Optional: mailbox holding the message (default: the inbox)")
}

// GetMessageTool fetches one message by id
type GetMessageTool struct {
	manager *email.Manager
	config  *config.Config
	logger  *logrus.Logger
}

// NewGetMessageTool creates a new get message tool
func NewGetMessageTool(manager *email.Manager, cfg *config.Config, logger *logrus.Logger) *GetMessageTool {
	return &GetMessageTool{
		manager: manager,
		config:  cfg,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *GetMessageTool) Name() string {
	return "get_message"
}

// Description returns the tool description
func (t *GetMessageTool) Description() string {
	return "Get the full content of a message by id"
}

// InputSchema returns the JSON schema for tool inputs
func (t *GetMessageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":      idProp("Message id (UID within the mailbox)"),
			"mailbox": mailboxProp(),
		},
		"required": []string{"id"},
	}
}

// Execute executes the tool
func (t *GetMessageTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requireID(params, "id")
	if err != nil {
		return nil, err
	}
	mailbox := optionalString(params, "mailbox")
	if mailbox == "" {
		mailbox = t.config.InboxMailbox
	}

	msgs, err := fetchFrom(ctx, t.manager.Account().Receiver, mailbox, []uint32{id})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %d not found in %s", id, mailbox)
	}
	return viewOf(msgs)[0], nil
}

// GetMessagesTool fetches several messages from one mailbox
type GetMessagesTool struct {
	manager *email.Manager
	config  *config.Config
	logger  *logrus.Logger
}

// NewGetMessagesTool creates a new get messages tool
func NewGetMessagesTool(manager *email.Manager, cfg *config.Config, logger *logrus.Logger) *GetMessagesTool {
	return &GetMessagesTool{
		manager: manager,
		config:  cfg,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *GetMessagesTool) Name() string {
	return "get_messages"
}

// Description returns the tool description
func (t *GetMessagesTool) Description() string {
	return "Get the full content of several messages from one mailbox"
}

// InputSchema returns the JSON schema for tool inputs
func (t *GetMessagesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ids": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "integer"},
				"description": "Message ids (UIDs within the mailbox)",
			},
			"mailbox": mailboxProp(),
		},
		"required": []string{"ids"},
	}
}

// Execute executes the tool
func (t *GetMessagesTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	ids, err := requireIDs(params, "ids")
	if err != nil {
		return nil, err
	}
	mailbox := optionalString(params, "mailbox")
	if mailbox == "" {
		mailbox = t.config.InboxMailbox
	}

	msgs, err := fetchFrom(ctx, t.manager.Account().Receiver, mailbox, ids)
	if err != nil {
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"mailbox":   mailbox,
		"requested": len(ids),
		"found":     len(msgs),
	}).Debug("Fetched messages")

	return map[string]interface{}{
		"mailbox":  mailbox,
		"messages": viewOf(msgs),
		"count":    len(msgs),
	}, nil
}

// DeleteMessageTool removes a message
type DeleteMessageTool struct {
	manager *email.Manager
	config  *config.Config
	logger  *logrus.Logger
}

// NewDeleteMessageTool creates a new delete message tool
func NewDeleteMessageTool(manager *email.Manager, cfg *config.Config, logger *logrus.Logger) *DeleteMessageTool {
	return &DeleteMessageTool{
		manager: manager,
		config:  cfg,
		logger:  logger,
	}
}

// Name returns the tool name
func (t *DeleteMessageTool) Name() string {
	return "delete_message"
}

// Description returns the tool description
func (t *DeleteMessageTool) Description() string {
	return "Permanently delete a message by id"
}

// InputSchema returns the JSON schema for tool inputs
func (t *DeleteMessageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":      idProp("Message id (UID within the mailbox)"),
			"mailbox": mailboxProp(),
		},
		"required": []string{"id"},
	}
}

// Execute executes the tool
func (t *DeleteMessageTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requireID(params, "id")
	if err != nil {
		return nil, err
	}
	mailbox := optionalString(params, "mailbox")
	if mailbox == "" {
		mailbox = t.config.InboxMailbox
	}

	receiver := t.manager.Account().Receiver
	if _, err := receiver.OpenMailbox(ctx, mailbox, false); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", mailbox, err)
	}
	if err := receiver.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete message %d: %w", id, err)
	}

	t.logger.WithFields(logrus.Fields{
		"mailbox": mailbox,
		"id":      id,
	}).Info("Message deleted")

	return map[string]interface{}{
		"deleted": true,
		"id":      id,
		"mailbox": mailbox,
	}, nil
}
