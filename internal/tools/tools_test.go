package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/internal/ledger"
	"github.com/brandon/mcp-mailbox/internal/search"
	"github.com/brandon/mcp-mailbox/internal/thread"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

type fakeReceiver struct {
	boxes     map[string][]*types.Message
	selected  string
	calls     int
	appended  []string
	appendErr error
	deleted   []uint32
}

func (f *fakeReceiver) Protocol() string { return "imap" }

func (f *fakeReceiver) Connect(ctx context.Context) error {
	f.calls++
	return nil
}

func (f *fakeReceiver) Close() error { return nil }

func (f *fakeReceiver) Status() email.ConnectionStatus {
	return email.ConnectionStatus{Protocol: "imap"}
}

func (f *fakeReceiver) ListMailboxes(ctx context.Context) ([]*types.Folder, error) {
	f.calls++
	var entries []email.MailboxEntry
	for name := range f.boxes {
		entries = append(entries, email.MailboxEntry{Name: name, Delimiter: "/"})
	}
	return email.BuildTree(entries), nil
}

func (f *fakeReceiver) OpenMailbox(ctx context.Context, name string, readOnly bool) (*types.MailboxInfo, error) {
	f.calls++
	msgs, ok := f.boxes[name]
	if !ok {
		return nil, fmt.Errorf("mailbox %q does not exist", name)
	}
	f.selected = name
	return &types.MailboxInfo{Name: name, ReadOnly: readOnly, Messages: uint32(len(msgs))}, nil
}

func (f *fakeReceiver) Search(ctx context.Context, c criteria.Criteria) ([]uint32, error) {
	f.calls++
	var ids []uint32
	for _, m := range f.boxes[f.selected] {
		if c.Match(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (f *fakeReceiver) Fetch(ctx context.Context, ids []uint32) ([]*types.Message, error) {
	f.calls++
	var out []*types.Message
	for _, id := range ids {
		for _, m := range f.boxes[f.selected] {
			if m.ID == id {
				cp := *m
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (f *fakeReceiver) Delete(ctx context.Context, id uint32) error {
	f.calls++
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReceiver) Append(ctx context.Context, mailbox string, flags []string, raw []byte) error {
	f.calls++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, mailbox)
	return nil
}

type fakeSender struct {
	sent []*email.OutgoingMessage
	err  error
}

func (f *fakeSender) From() string { return "me@x.com" }

func (f *fakeSender) Send(ctx context.Context, msg *email.OutgoingMessage) (*types.SendResult, []byte, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.sent = append(f.sent, msg)
	id, raw, err := email.BuildMessage(msg, f.From(), time.Now())
	if err != nil {
		return nil, nil, err
	}
	return &types.SendResult{MessageID: id, Accepted: msg.Recipients(), Rejected: []string{}}, raw, nil
}

func at(month time.Month, d int) time.Time {
	return time.Date(2025, month, d, 12, 0, 0, 0, time.Local)
}

func fixture() *fakeReceiver {
	return &fakeReceiver{boxes: map[string][]*types.Message{
		"INBOX": {
			{ID: 1, From: "boss@co.com", Subject: "Kickoff", To: []string{"me@x.com"}, Date: at(time.January, 10), MessageID: "<k@co.com>", BodyText: "see you"},
			{ID: 2, From: "boss@co.com", Subject: "Budget", To: []string{"me@x.com"}, Cc: []string{"cfo@co.com"}, Date: at(time.January, 20), Size: 2048},
			{ID: 3, From: "boss@co.com", Subject: "Offsite", To: []string{"me@x.com"}, Date: at(time.February, 3)},
		},
		"Sent": {},
	}}
}

type testEnv struct {
	receiver *fakeReceiver
	sender   *fakeSender
	ledger   *ledger.Ledger
	registry *Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Username:     "me@x.com",
		InboxMailbox: "INBOX",
		SMTP:         config.ServerConfig{Host: "smtp.x.com", Port: 465, Secure: true},
	}
	receiver := fixture()
	account := &email.Account{Config: cfg, Receiver: receiver, SMTP: email.NewSMTPClient(cfg, logger)}
	manager := email.NewManager(account, logger)

	sendLedger, err := ledger.NewLedger(filepath.Join(t.TempDir(), "ledger.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sendLedger.Close() })

	orch := search.NewOrchestrator(receiver, cfg.InboxMailbox, "", logger)
	opts := thread.DefaultOptions()
	opts.Ledger = sendLedger
	detector := thread.NewDetector(orch, opts, logger)

	reg, err := NewRegistry(cfg, manager, orch, detector, sendLedger, logger)
	require.NoError(t, err)

	snd := &fakeSender{}
	reg.tools["send_email"].(*SendEmailTool).sender = snd
	reg.tools["reply_to_email"].(*ReplyToEmailTool).sender = snd

	return &testEnv{receiver: receiver, sender: snd, ledger: sendLedger, registry: reg}
}

func (e *testEnv) call(t *testing.T, name string, params map[string]interface{}) (interface{}, error) {
	t.Helper()
	tool, ok := e.registry.GetTool(name)
	require.True(t, ok, "tool %s not registered", name)
	return tool.Execute(context.Background(), params)
}

func TestRegistryListsAllTools(t *testing.T) {
	env := newTestEnv(t)

	var names []string
	for _, def := range env.registry.GetToolDefinitions() {
		names = append(names, def["name"].(string))
		assert.NotNil(t, def["inputSchema"])
	}
	assert.Equal(t, []string{
		"search_by_sender",
		"search_by_subject",
		"search_by_recipient",
		"search_unread_from_sender",
		"search_unreplied_from_sender",
		"get_message",
		"get_messages",
		"delete_message",
		"send_email",
		"reply_to_email",
		"list_mailboxes",
		"open_mailbox",
		"get_connection_status",
		"connect_all",
		"disconnect_all",
		"list_sent_history",
	}, names)
}

func TestSearchBySenderDateRange(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "search_by_sender", map[string]interface{}{
		"sender":     "boss@co.com",
		"start_date": "2025-01-01",
		"end_date":   "2025-01-31",
	})
	require.NoError(t, err)

	res := out.(*types.SearchResult)
	assert.Equal(t, 2, res.TotalMatches)
	assert.Equal(t, 3, res.MailboxesSearched[0].Count)
	assert.Equal(t, "Sent", res.SentMailbox)
	assert.Equal(t, uint32(2), res.Messages[0].ID)
}

func TestSearchRequiresArgument(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"search_by_sender", "search_by_subject", "search_by_recipient", "search_unread_from_sender", "search_unreplied_from_sender"} {
		t.Run(name, func(t *testing.T) {
			_, err := env.call(t, name, map[string]interface{}{"start_date": "2025-01-01"})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
	assert.Zero(t, env.receiver.calls, "no protocol work on invalid calls")
}

func TestSearchBadDateIsAWarning(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "search_by_subject", map[string]interface{}{
		"subject":    "budget",
		"start_date": "whenever",
	})
	require.NoError(t, err)
	res := out.(*types.SearchResult)
	assert.Equal(t, 1, res.TotalMatches)
	assert.Contains(t, res.Warning, "whenever")
}

func TestGetMessages(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "get_message", map[string]interface{}{"id": float64(2)})
	require.NoError(t, err)
	view := out.(messageView)
	assert.Equal(t, "Budget", view.Subject)
	assert.Equal(t, "INBOX", view.Mailbox)
	assert.Equal(t, "2.0 kB", view.SizeHuman)

	out, err = env.call(t, "get_messages", map[string]interface{}{"ids": "1, 3"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.(map[string]interface{})["count"])

	_, err = env.call(t, "get_message", map[string]interface{}{"id": float64(99)})
	assert.Error(t, err)

	_, err = env.call(t, "get_message", map[string]interface{}{"id": "abc"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDeleteMessage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(t, "delete_message", map[string]interface{}{"id": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, env.receiver.deleted)
}

func TestReplyToEmail(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "reply_to_email", map[string]interface{}{
		"original_id":  float64(2),
		"text":         "Approved",
		"reply_to_all": true,
	})
	require.NoError(t, err)

	require.Len(t, env.sender.sent, 1)
	sent := env.sender.sent[0]
	assert.Equal(t, []string{"boss@co.com"}, sent.To)
	assert.Equal(t, []string{"cfo@co.com"}, sent.Cc)
	assert.Equal(t, "Re: Budget", sent.Subject)
	assert.Contains(t, sent.BodyText, "Approved")

	result := out.(map[string]interface{})
	assert.Equal(t, "Sent", result["saved_to"])
	assert.Equal(t, []string{"Sent"}, env.receiver.appended)

	replied, err := env.ledger.HasReplyTo("INBOX", 2)
	require.NoError(t, err)
	assert.True(t, replied)

	// the ledger entry makes the message count as answered
	out, err = env.call(t, "search_unreplied_from_sender", map[string]interface{}{"sender": "boss@co.com"})
	require.NoError(t, err)
	report := out.(*thread.Report)
	for _, a := range report.Unreplied {
		assert.NotEqual(t, uint32(2), a.OriginalID)
	}
	assert.Len(t, report.Unreplied, 2)
}

func TestReplySurvivesFailedSentCopy(t *testing.T) {
	env := newTestEnv(t)
	env.receiver.appendErr = errors.New("APPEND failed: over quota")

	out, err := env.call(t, "reply_to_email", map[string]interface{}{
		"original_id": "1",
		"text":        "Thanks",
	})
	require.NoError(t, err)
	assert.Equal(t, "", out.(map[string]interface{})["saved_to"])

	entries, err := env.ledger.Recent(ledger.RecentOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.KindReply, entries[0].Kind)
	assert.Equal(t, "<k@co.com>", entries[0].ReplyMessageID)
}

func TestReplyFailsWhenSendFails(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = &email.ConnectionError{Protocol: "smtp", Addr: "smtp.x.com:465", Err: errors.New("refused")}

	_, err := env.call(t, "reply_to_email", map[string]interface{}{"original_id": float64(1), "text": "Thanks"})
	assert.ErrorAs(t, err, new(*email.ConnectionError))
	assert.Empty(t, env.receiver.appended)
}

func TestSendEmail(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "send_email", map[string]interface{}{
		"to":      `"Bob" <bob@y.com>, carol@z.com`,
		"subject": "Hello",
		"text":    "Hi",
	})
	require.NoError(t, err)
	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, []string{"bob@y.com", "carol@z.com"}, env.sender.sent[0].To)
	assert.Equal(t, []string{"bob@y.com", "carol@z.com"}, out.(map[string]interface{})["accepted"])

	out, err = env.call(t, "list_sent_history", map[string]interface{}{"query": "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.(map[string]interface{})["count"])

	_, err = env.call(t, "send_email", map[string]interface{}{"to": "bob@y.com", "subject": "No body"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestOpenAndListMailboxes(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "open_mailbox", map[string]interface{}{"name": "Sent", "read_only": "true"})
	require.NoError(t, err)
	info := out.(*types.MailboxInfo)
	assert.Equal(t, "Sent", info.Name)
	assert.True(t, info.ReadOnly)

	out, err = env.call(t, "list_mailboxes", map[string]interface{}{})
	require.NoError(t, err)
	assert.Len(t, out.(map[string]interface{})["mailboxes"], 2)
}

func TestConnectionStatus(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "get_connection_status", map[string]interface{}{})
	require.NoError(t, err)
	status := out.(map[string]interface{})
	assert.Equal(t, "me@x.com", status["account"])
	assert.False(t, status["send"].(sessionView).Connected)
}
