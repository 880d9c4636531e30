package ledger

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	l, err := NewLedger(filepath.Join(t.TempDir(), "nested", "ledger.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	first := &Entry{
		MessageID: "<a@x.com>",
		Subject:   "Quarterly numbers",
		To:        []string{"bob@y.com"},
		Accepted:  []string{"bob@y.com"},
		SentAt:    base,
	}
	second := &Entry{
		MessageID:    "<b@x.com>",
		Kind:         KindReply,
		Subject:      "Re: Lunch",
		To:           []string{"carol@z.com"},
		Cc:           []string{"dave@z.com"},
		Accepted:     []string{"carol@z.com"},
		Rejected:     []string{"dave@z.com"},
		ReplyMailbox: "INBOX",
		ReplyID:      17,
		SavedTo:      "Sent",
		SentAt:       base.Add(time.Hour),
	}
	require.NoError(t, l.Record(first))
	require.NoError(t, l.Record(second))
	assert.NotZero(t, first.ID)
	assert.Equal(t, KindSend, first.Kind)

	entries, err := l.Recent(RecentOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got := entries[0]
	assert.Equal(t, "<b@x.com>", got.MessageID)
	assert.Equal(t, KindReply, got.Kind)
	assert.Equal(t, []string{"dave@z.com"}, got.Cc)
	assert.Equal(t, []string{"dave@z.com"}, got.Rejected)
	assert.Equal(t, uint32(17), got.ReplyID)
	assert.Equal(t, "Sent", got.SavedTo)
	assert.True(t, got.SentAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, uint32(0), entries[1].ReplyID)
}

func TestRecentFilters(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	for i, subject := range []string{"Quarterly numbers", "Lunch plans", "Numbers, again"} {
		require.NoError(t, l.Record(&Entry{
			MessageID: subject,
			Subject:   subject,
			To:        []string{"bob@y.com"},
			SentAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := l.Recent(RecentOptions{Query: "numbers"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Numbers, again", entries[0].Subject)

	entries, err = l.Recent(RecentOptions{Query: "bob@y.com", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = l.Recent(RecentOptions{Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Numbers, again", entries[0].Subject)

	// FTS operators in user input are literal
	entries, err = l.Recent(RecentOptions{Query: `lunch" OR "numbers`})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHasReplyTo(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Record(&Entry{MessageID: "<s@x.com>", To: []string{"bob@y.com"}}))
	require.NoError(t, l.Record(&Entry{
		MessageID:    "<r@x.com>",
		Kind:         KindReply,
		To:           []string{"bob@y.com"},
		ReplyMailbox: "INBOX",
		ReplyID:      5,
	}))

	ok, err := l.HasReplyTo("INBOX", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.HasReplyTo("INBOX", 6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.HasReplyTo("Archive", 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordRequiresMessageID(t *testing.T) {
	l := newTestLedger(t)
	assert.Error(t, l.Record(&Entry{To: []string{"bob@y.com"}}))
}
