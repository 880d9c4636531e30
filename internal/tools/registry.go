package tools

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/internal/ledger"
	"github.com/brandon/mcp-mailbox/internal/search"
	"github.com/brandon/mcp-mailbox/internal/thread"
)

// Registry manages MCP tools
type Registry struct {
	config   *config.Config
	logger   *logrus.Logger
	manager  *email.Manager
	search   *search.Orchestrator
	detector *thread.Detector
	ledger   *ledger.Ledger
	tools    map[string]Tool
	order    []string
}

// Tool represents an MCP tool
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// NewRegistry creates a new tool registry. sendLedger may be nil, in which
// case sends are not recorded and list_sent_history is not offered.
func NewRegistry(cfg *config.Config, manager *email.Manager, orch *search.Orchestrator, detector *thread.Detector, sendLedger *ledger.Ledger, logger *logrus.Logger) (*Registry, error) {
	reg := &Registry{
		config:   cfg,
		logger:   logger,
		manager:  manager,
		search:   orch,
		detector: detector,
		ledger:   sendLedger,
		tools:    make(map[string]Tool),
	}

	reg.registerTools()

	return reg, nil
}

// registerTools registers all available tools
func (r *Registry) registerTools() {
	toolList := []Tool{
		NewSearchBySenderTool(r.search, r.logger),
		NewSearchBySubjectTool(r.search, r.logger),
		NewSearchByRecipientTool(r.search, r.logger),
		NewSearchUnreadFromSenderTool(r.search, r.logger),
		NewSearchUnrepliedTool(r.detector, r.logger),
		NewGetMessageTool(r.manager, r.config, r.logger),
		NewGetMessagesTool(r.manager, r.config, r.logger),
		NewDeleteMessageTool(r.manager, r.config, r.logger),
		NewSendEmailTool(r.manager, r.search, r.ledger, r.logger),
		NewReplyToEmailTool(r.manager, r.search, r.ledger, r.config, r.logger),
		NewListMailboxesTool(r.manager, r.logger),
		NewOpenMailboxTool(r.manager, r.logger),
		NewConnectionStatusTool(r.manager, r.logger),
		NewConnectAllTool(r.manager, r.logger),
		NewDisconnectAllTool(r.manager, r.logger),
	}
	if r.ledger != nil {
		toolList = append(toolList, NewSentHistoryTool(r.ledger, r.logger))
	}

	for _, tool := range toolList {
		r.tools[tool.Name()] = tool
		r.order = append(r.order, tool.Name())
		r.logger.WithField("tool", tool.Name()).Debug("Registered tool")
	}

	r.logger.WithField("count", len(r.tools)).Info("Registered tools")
}

// GetTool returns a tool by name
func (r *Registry) GetTool(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// ListTools returns all registered tools in registration order
func (r *Registry) ListTools() []Tool {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// GetToolDefinitions returns tool definitions for MCP
func (r *Registry) GetToolDefinitions() []map[string]interface{} {
	definitions := make([]map[string]interface{}, 0, len(r.order))
	for _, tool := range r.ListTools() {
		definitions = append(definitions, map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"inputSchema": tool.InputSchema(),
		})
	}
	return definitions
}
