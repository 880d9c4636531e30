package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/internal/search"
	"github.com/brandon/mcp-mailbox/internal/thread"
	"github.com/brandon/mcp-mailbox/internal/tools"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Protocol:     config.ProtocolIMAP,
		Receive:      config.ServerConfig{Host: "imap.invalid", Port: 993, Secure: true},
		SMTP:         config.ServerConfig{Host: "smtp.invalid", Port: 465, Secure: true},
		Username:     "me@x.com",
		Password:     "secret",
		InboxMailbox: "INBOX",
	}
	account := email.NewAccount(cfg, logger)
	manager := email.NewManager(account, logger)
	orch := search.NewOrchestrator(account.Receiver, cfg.InboxMailbox, cfg.SentMailbox, logger)
	detector := thread.NewDetector(orch, thread.DefaultOptions(), logger)

	registry, err := tools.NewRegistry(cfg, manager, orch, detector, nil, logger)
	require.NoError(t, err)
	return NewServer(registry, "test", logger)
}

func run(t *testing.T, s *Server, requests ...string) []map[string]interface{} {
	t.Helper()
	var out strings.Builder
	require.NoError(t, s.Run(context.Background(), strings.NewReader(strings.Join(requests, "\n")), &out))

	var responses []map[string]interface{}
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestInitializeAndList(t *testing.T) {
	s := newTestServer(t)

	responses := run(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)
	require.Len(t, responses, 2, "notifications get no response")

	info := responses[0]["result"].(map[string]interface{})["serverInfo"].(map[string]interface{})
	assert.Equal(t, "mcp-mailbox", info["name"])
	assert.Equal(t, "test", info["version"])

	list := responses[1]["result"].(map[string]interface{})["tools"].([]interface{})
	// list_sent_history is only offered with a ledger
	assert.Len(t, list, 15)
	assert.Equal(t, float64(2), responses[1]["id"])
}

func TestToolCallErrors(t *testing.T) {
	s := newTestServer(t)

	responses := run(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search_by_sender","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"no_such_tool"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
	)
	require.Len(t, responses, 3)

	codeOf := func(resp map[string]interface{}) float64 {
		return resp["error"].(map[string]interface{})["code"].(float64)
	}
	assert.Equal(t, float64(codeInvalidParams), codeOf(responses[0]))
	assert.Contains(t, responses[0]["error"].(map[string]interface{})["message"], "sender")
	assert.Equal(t, float64(codeMethodNotFound), codeOf(responses[1]))
	assert.Equal(t, float64(codeMethodNotFound), codeOf(responses[2]))
}

func TestRunStopsOnMalformedInput(t *testing.T) {
	s := newTestServer(t)
	err := s.Run(context.Background(), strings.NewReader(`{"jsonrpc": `), io.Discard)
	assert.Error(t, err)
}
