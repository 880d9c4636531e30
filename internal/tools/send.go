package tools

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/compose"
	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/internal/ledger"
	"github.com/brandon/mcp-mailbox/internal/search"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// sender submits outgoing mail; *email.SMTPClient in production
type sender interface {
	From() string
	Send(ctx context.Context, msg *email.OutgoingMessage) (*types.SendResult, []byte, error)
}

// sentRecorder stores a copy of submitted mail. Every step is best effort:
// failures are logged and never fail the send itself.
type sentRecorder struct {
	receiver email.Receiver
	search   *search.Orchestrator
	ledger   *ledger.Ledger
	logger   *logrus.Logger
}

// save appends raw to the sent folder and returns its name, or "" when no
// copy could be stored
func (r *sentRecorder) save(ctx context.Context, raw []byte) string {
	mailbox, err := r.search.DiscoverSentMailbox(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Could not look up sent folder; no copy saved")
		return ""
	}
	if mailbox == "" {
		r.logger.Warn("No sent folder found; no copy saved")
		return ""
	}
	if err := r.receiver.Append(ctx, mailbox, []string{imap.SeenFlag}, raw); err != nil {
		r.logger.WithError(err).WithField("mailbox", mailbox).Warn("Failed to save sent copy")
		return ""
	}
	return mailbox
}

func (r *sentRecorder) record(e *ledger.Entry) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Record(e); err != nil {
		r.logger.WithError(err).WithField("message_id", e.MessageID).Warn("Failed to record sent message")
	}
}

// SendEmailTool sends a new email
type SendEmailTool struct {
	sender   sender
	recorder *sentRecorder
	logger   *logrus.Logger
}

// NewSendEmailTool creates a new send email tool
func NewSendEmailTool(manager *email.Manager, orch *search.Orchestrator, sendLedger *ledger.Ledger, logger *logrus.Logger) *SendEmailTool {
	return &SendEmailTool{
		sender: manager.Account().SMTP,
		recorder: &sentRecorder{
			receiver: manager.Account().Receiver,
			search:   orch,
			ledger:   sendLedger,
			logger:   logger,
		},
		logger: logger,
	}
}

// Name returns the tool name
func (t *SendEmailTool) Name() string {
	return "send_email"
}

// Description returns the tool description
func (t *SendEmailTool) Description() string {
	return "Send a new email with a text and/or HTML body, CC and BCC"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SendEmailTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"to":       stringProp("Recipient email address(es) (comma-separated)"),
			"cc":       stringProp("Optional: CC recipients (comma-separated)"),
			"bcc":      stringProp("Optional: BCC recipients (comma-separated)"),
			"subject":  stringProp("Email subject"),
			"text":     stringProp("Optional: plain text body"),
			"html":     stringProp("Optional: HTML body"),
			"reply_to": stringProp("Optional: Reply-To address"),
		},
		"required": []string{"to", "subject"},
	}
}

// Execute executes the tool
func (t *SendEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	to := addressList(params, "to")
	if len(to) == 0 {
		return nil, missing("to")
	}
	subject, err := requireString(params, "subject")
	if err != nil {
		return nil, err
	}

	msg := &email.OutgoingMessage{
		To:       to,
		Cc:       addressList(params, "cc"),
		Bcc:      addressList(params, "bcc"),
		Subject:  subject,
		BodyText: optionalString(params, "text"),
		BodyHTML: optionalString(params, "html"),
		ReplyTo:  optionalString(params, "reply_to"),
	}
	if err := msg.Validate(); err != nil {
		return nil, &ValidationError{Param: "message", Reason: err.Error()}
	}

	result, raw, err := t.sender.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	savedTo := t.recorder.save(ctx, raw)
	t.recorder.record(&ledger.Entry{
		MessageID: result.MessageID,
		Kind:      ledger.KindSend,
		Subject:   msg.Subject,
		To:        msg.To,
		Cc:        msg.Cc,
		Bcc:       msg.Bcc,
		Accepted:  result.Accepted,
		Rejected:  result.Rejected,
		SavedTo:   savedTo,
	})

	return map[string]interface{}{
		"message_id": result.MessageID,
		"accepted":   result.Accepted,
		"rejected":   result.Rejected,
		"saved_to":   savedTo,
	}, nil
}

// ReplyToEmailTool answers a fetched message
type ReplyToEmailTool struct {
	receiver email.Receiver
	sender   sender
	recorder *sentRecorder
	config   *config.Config
	logger   *logrus.Logger
}

// NewReplyToEmailTool creates a new reply tool
func NewReplyToEmailTool(manager *email.Manager, orch *search.Orchestrator, sendLedger *ledger.Ledger, cfg *config.Config, logger *logrus.Logger) *ReplyToEmailTool {
	return &ReplyToEmailTool{
		receiver: manager.Account().Receiver,
		sender:   manager.Account().SMTP,
		recorder: &sentRecorder{
			receiver: manager.Account().Receiver,
			search:   orch,
			ledger:   sendLedger,
			logger:   logger,
		},
		config: cfg,
		logger: logger,
	}
}

// Name returns the tool name
func (t *ReplyToEmailTool) Name() string {
	return "reply_to_email"
}

// Description returns the tool description
func (t *ReplyToEmailTool) Description() string {
	return "Reply to a message by id, optionally to all recipients and quoting the original"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ReplyToEmailTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"original_id":      idProp("Id of the message being answered"),
			"mailbox":          mailboxProp(),
			"text":             stringProp("Reply text"),
			"html":             stringProp("Optional: HTML version of the reply"),
			"reply_to_all":     boolProp("Optional: also copy the original To and Cc recipients (default: false)"),
			"include_original": boolProp("Optional: quote the original message below the reply (default: true)"),
		},
		"required": []string{"original_id"},
	}
}

// Execute executes the tool
func (t *ReplyToEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requireID(params, "original_id")
	if err != nil {
		return nil, err
	}
	text := optionalString(params, "text")
	html := optionalString(params, "html")
	if text == "" && html == "" {
		return nil, missing("text")
	}
	replyToAll, err := optionalBool(params, "reply_to_all", false)
	if err != nil {
		return nil, err
	}
	includeOriginal, err := optionalBool(params, "include_original", true)
	if err != nil {
		return nil, err
	}
	mailbox := optionalString(params, "mailbox")
	if mailbox == "" {
		mailbox = t.config.InboxMailbox
	}

	msgs, err := fetchFrom(ctx, t.receiver, mailbox, []uint32{id})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %d not found in %s", id, mailbox)
	}
	original := msgs[0]

	reply := compose.Reply(original, text, compose.Options{
		ReplyToAll:      replyToAll,
		IncludeOriginal: includeOriginal,
		HTML:            html,
		Self:            t.sender.From(),
	})

	result, raw, err := t.sender.Send(ctx, reply)
	if err != nil {
		return nil, fmt.Errorf("failed to send reply: %w", err)
	}

	savedTo := t.recorder.save(ctx, raw)
	t.recorder.record(&ledger.Entry{
		MessageID:      result.MessageID,
		Kind:           ledger.KindReply,
		Subject:        reply.Subject,
		To:             reply.To,
		Cc:             reply.Cc,
		Accepted:       result.Accepted,
		Rejected:       result.Rejected,
		ReplyMailbox:   mailbox,
		ReplyID:        id,
		ReplyMessageID: original.MessageID,
		SavedTo:        savedTo,
	})

	t.logger.WithFields(logrus.Fields{
		"original_id": id,
		"mailbox":     mailbox,
		"message_id":  result.MessageID,
	}).Info("Reply sent")

	return map[string]interface{}{
		"message_id": result.MessageID,
		"accepted":   result.Accepted,
		"rejected":   result.Rejected,
		"saved_to":   savedTo,
		"reply_info": map[string]interface{}{
			"original_id":      id,
			"mailbox":          mailbox,
			"original_subject": original.Subject,
			"subject":          reply.Subject,
			"to":               reply.To,
			"cc":               reply.Cc,
			"in_reply_to":      reply.InReplyTo,
		},
	}, nil
}
