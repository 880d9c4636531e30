package tools

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/internal/search"
	"github.com/brandon/mcp-mailbox/internal/thread"
)

var dateProps = map[string]interface{}{
	"start_date": stringProp("Optional: earliest date, inclusive (e.g. 2025-01-01, 2025-01-01T09:00, 01-Jan-2025, \"3 days ago\")"),
	"end_date":   stringProp("Optional: latest date, inclusive; a date without time covers the whole day"),
}

// SearchTool runs a federated search over the inbox and the sent folder
type SearchTool struct {
	name        string
	description string
	param       string
	paramDesc   string
	build       func(value string) criteria.Criteria

	search *search.Orchestrator
	logger *logrus.Logger
}

// NewSearchBySenderTool creates the search_by_sender tool
func NewSearchBySenderTool(orch *search.Orchestrator, logger *logrus.Logger) *SearchTool {
	return &SearchTool{
		name:        "search_by_sender",
		description: "Search the inbox and sent folder for messages from a sender, optionally within a date range",
		param:       "sender",
		paramDesc:   "Sender email address or name",
		build:       criteria.From,
		search:      orch,
		logger:      logger,
	}
}

// NewSearchBySubjectTool creates the search_by_subject tool
func NewSearchBySubjectTool(orch *search.Orchestrator, logger *logrus.Logger) *SearchTool {
	return &SearchTool{
		name:        "search_by_subject",
		description: "Search the inbox and sent folder for messages whose subject contains the given text",
		param:       "subject",
		paramDesc:   "Text the subject must contain",
		build:       criteria.Subject,
		search:      orch,
		logger:      logger,
	}
}

// NewSearchByRecipientTool creates the search_by_recipient tool
func NewSearchByRecipientTool(orch *search.Orchestrator, logger *logrus.Logger) *SearchTool {
	return &SearchTool{
		name:        "search_by_recipient",
		description: "Search the inbox and sent folder for messages addressed to a recipient",
		param:       "recipient",
		paramDesc:   "Recipient email address",
		build:       criteria.To,
		search:      orch,
		logger:      logger,
	}
}

// NewSearchUnreadFromSenderTool creates the search_unread_from_sender tool
func NewSearchUnreadFromSenderTool(orch *search.Orchestrator, logger *logrus.Logger) *SearchTool {
	return &SearchTool{
		name:        "search_unread_from_sender",
		description: "Search for unread messages from a sender",
		param:       "sender",
		paramDesc:   "Sender email address or name",
		build: func(sender string) criteria.Criteria {
			return criteria.And(criteria.Unseen(), criteria.From(sender))
		},
		search: orch,
		logger: logger,
	}
}

// Name returns the tool name
func (t *SearchTool) Name() string {
	return t.name
}

// Description returns the tool description
func (t *SearchTool) Description() string {
	return t.description
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchTool) InputSchema() map[string]interface{} {
	props := map[string]interface{}{
		t.param: stringProp(t.paramDesc),
	}
	for k, v := range dateProps {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{t.param},
	}
}

// Execute executes the tool
func (t *SearchTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	value, err := requireString(params, t.param)
	if err != nil {
		return nil, err
	}

	r := search.ParseDateRange(optionalString(params, "start_date"), optionalString(params, "end_date"), t.logger)
	return t.search.Search(ctx, t.build(value), r)
}

// SearchUnrepliedTool lists messages from a sender that have not been answered
type SearchUnrepliedTool struct {
	detector *thread.Detector
	logger   *logrus.Logger
}

// NewSearchUnrepliedTool creates a new search_unreplied_from_sender tool
func NewSearchUnrepliedTool(detector *thread.Detector, logger *logrus.Logger) *SearchUnrepliedTool {
	return &SearchUnrepliedTool{
		detector: detector,
		logger:   logger,
	}
}

// Name returns the tool name
func (t *SearchUnrepliedTool) Name() string {
	return "search_unreplied_from_sender"
}

// Description returns the tool description
func (t *SearchUnrepliedTool) Description() string {
	return "Find messages from a sender that have no reply in the sent folder. " +
		"Replies are matched by subject heuristics and a time window, so results are best effort."
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchUnrepliedTool) InputSchema() map[string]interface{} {
	props := map[string]interface{}{
		"sender": stringProp("Sender email address"),
	}
	for k, v := range dateProps {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"sender"},
	}
}

// Execute executes the tool
func (t *SearchUnrepliedTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	sender, err := requireString(params, "sender")
	if err != nil {
		return nil, err
	}

	r := search.ParseDateRange(optionalString(params, "start_date"), optionalString(params, "end_date"), t.logger)
	return t.detector.DetectUnreplied(ctx, sender, r)
}
