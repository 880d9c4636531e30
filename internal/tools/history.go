package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/ledger"
	"github.com/brandon/mcp-mailbox/internal/search"
)

// SentHistoryTool lists mail sent through this server
type SentHistoryTool struct {
	ledger *ledger.Ledger
	logger *logrus.Logger
}

// NewSentHistoryTool creates a new sent history tool
func NewSentHistoryTool(sendLedger *ledger.Ledger, logger *logrus.Logger) *SentHistoryTool {
	return &SentHistoryTool{
		ledger: sendLedger,
		logger: logger,
	}
}

// Name returns the tool name
func (t *SentHistoryTool) Name() string {
	return "list_sent_history"
}

// Description returns the tool description
func (t *SentHistoryTool) Description() string {
	return "List emails and replies sent through this server, newest first"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SentHistoryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":      stringProp("Optional: text to find in subject or recipients"),
			"kind":       stringProp("Optional: send or reply"),
			"start_date": stringProp("Optional: only entries sent on or after this date"),
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Optional: Result limit (default: 50, max: 500)",
				"minimum":     1,
				"maximum":     500,
			},
		},
	}
}

// Execute executes the tool
func (t *SentHistoryTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	kind := optionalString(params, "kind")
	if kind != "" && kind != ledger.KindSend && kind != ledger.KindReply {
		return nil, &ValidationError{Param: "kind", Reason: fmt.Sprintf("%q is not send or reply", kind)}
	}
	limit, err := optionalInt(params, "limit", 0)
	if err != nil {
		return nil, err
	}

	opts := ledger.RecentOptions{
		Query: optionalString(params, "query"),
		Kind:  kind,
		Limit: limit,
	}
	r := search.ParseDateRange(optionalString(params, "start_date"), "", t.logger)
	opts.Since = r.Start

	entries, err := t.ledger.Recent(opts)
	if err != nil {
		return nil, err
	}
	result := map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	}
	if len(r.Warnings) > 0 {
		result["warning"] = strings.Join(r.Warnings, "; ")
	}
	return result, nil
}
