package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// fakeMailbox serves canned messages per mailbox and evaluates criteria locally
type fakeMailbox struct {
	boxes      map[string][]*types.Message
	connectErr error
	openErr    map[string]error
	searchErr  map[string]error
	fetchErr   map[string]error

	selected string
	opened   []string
}

func (f *fakeMailbox) Connect(ctx context.Context) error {
	return f.connectErr
}

func (f *fakeMailbox) OpenMailbox(ctx context.Context, name string, readOnly bool) (*types.MailboxInfo, error) {
	f.opened = append(f.opened, name)
	if err := f.openErr[name]; err != nil {
		return nil, err
	}
	msgs, ok := f.boxes[name]
	if !ok {
		return nil, fmt.Errorf("mailbox %q does not exist", name)
	}
	f.selected = name
	return &types.MailboxInfo{Name: name, ReadOnly: readOnly, Messages: uint32(len(msgs))}, nil
}

func (f *fakeMailbox) Search(ctx context.Context, c criteria.Criteria) ([]uint32, error) {
	if err := f.searchErr[f.selected]; err != nil {
		return nil, err
	}
	var ids []uint32
	for _, m := range f.boxes[f.selected] {
		if c.Match(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (f *fakeMailbox) Fetch(ctx context.Context, ids []uint32) ([]*types.Message, error) {
	if err := f.fetchErr[f.selected]; err != nil {
		return nil, err
	}
	want := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.Message
	for _, m := range f.boxes[f.selected] {
		if want[m.ID] {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestSearchJanuaryRange(t *testing.T) {
	mb := &fakeMailbox{boxes: map[string][]*types.Message{
		"INBOX": {
			{ID: 1, From: "alice@x.com", Subject: "kickoff", Date: day(2024, 12, 20)},
			{ID: 2, From: "alice@x.com", Subject: "follow up", Date: day(2025, 1, 10)},
			{ID: 3, From: "bob@y.com", Subject: "unrelated", Date: day(2025, 1, 11)},
		},
		"Sent": {
			{ID: 7, From: "alice@x.com", Subject: "note to self", Date: day(2025, 1, 20)},
		},
	}}

	o := NewOrchestrator(mb, "INBOX", "", quietLogger())
	r := DateRange{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   endOfDay(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)),
	}

	res, err := o.Search(context.Background(), criteria.From("alice@x.com"), r)
	require.NoError(t, err)

	assert.Equal(t, "Sent", res.SentMailbox)
	require.Len(t, res.MailboxesSearched, 2)
	assert.Equal(t, []uint32{1, 2}, res.MailboxesSearched[0].MatchingIDs)
	assert.Equal(t, 1, res.MailboxesSearched[1].Count)

	// three matched before date filtering, two remain
	require.Equal(t, 2, res.TotalMatches)
	assert.Equal(t, uint32(7), res.Messages[0].ID)
	assert.Equal(t, "Sent", res.Messages[0].Mailbox)
	assert.Equal(t, uint32(2), res.Messages[1].ID)
	assert.Equal(t, "INBOX", res.Messages[1].Mailbox)
	assert.Contains(t, res.Note, "2 message(s)")
	assert.Empty(t, res.Warning)
}

func TestSearchWithoutSentFolderWarns(t *testing.T) {
	mb := &fakeMailbox{boxes: map[string][]*types.Message{
		"INBOX": {{ID: 1, From: "alice@x.com", Date: day(2025, 1, 10)}},
	}}

	o := NewOrchestrator(mb, "INBOX", "", quietLogger())
	res, err := o.Search(context.Background(), criteria.From("alice@x.com"), DateRange{})
	require.NoError(t, err)

	assert.Empty(t, res.SentMailbox)
	assert.Len(t, res.MailboxesSearched, 1)
	assert.Equal(t, 1, res.TotalMatches)
	assert.Contains(t, res.Warning, "no sent folder")
}

func TestSentOverrideIsProbedFirst(t *testing.T) {
	mb := &fakeMailbox{boxes: map[string][]*types.Message{
		"INBOX":    {},
		"Sent":     {},
		"Outgoing": {},
	}}

	o := NewOrchestrator(mb, "INBOX", "Outgoing", quietLogger())
	sent, err := o.DiscoverSentMailbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Outgoing", sent)
	assert.Equal(t, []string{"Outgoing"}, mb.opened)
}

func TestSearchIsolatesMailboxFailure(t *testing.T) {
	mb := &fakeMailbox{
		boxes: map[string][]*types.Message{
			"INBOX":      {{ID: 1, From: "alice@x.com", Date: day(2025, 1, 10)}},
			"Sent Items": {{ID: 9, From: "alice@x.com", Date: day(2025, 1, 12)}},
		},
		searchErr: map[string]error{"INBOX": errors.New("SEARCH failed: BAD")},
	}

	o := NewOrchestrator(mb, "INBOX", "", quietLogger())
	res, err := o.Search(context.Background(), criteria.From("alice@x.com"), DateRange{})
	require.NoError(t, err)

	require.Len(t, res.MailboxesSearched, 2)
	assert.Contains(t, res.MailboxesSearched[0].Error, "SEARCH failed")
	assert.Empty(t, res.MailboxesSearched[0].MatchingIDs)
	assert.Empty(t, res.MailboxesSearched[1].Error)

	require.Len(t, res.Messages, 1)
	assert.Equal(t, uint32(9), res.Messages[0].ID)
}

func TestSearchKeepsIDsWhenFetchFails(t *testing.T) {
	mb := &fakeMailbox{
		boxes: map[string][]*types.Message{
			"INBOX": {{ID: 4, From: "alice@x.com"}},
		},
		fetchErr: map[string]error{"INBOX": errors.New("FETCH timed out")},
	}

	o := NewOrchestrator(mb, "INBOX", "", quietLogger())
	res, err := o.Search(context.Background(), criteria.From("alice@x.com"), DateRange{})
	require.NoError(t, err)

	assert.Equal(t, []uint32{4}, res.MailboxesSearched[0].MatchingIDs)
	assert.NotEmpty(t, res.MailboxesSearched[0].Error)
	assert.Equal(t, 0, res.TotalMatches)
	assert.Contains(t, res.Note, "No messages found")
}

func TestSearchAbortsOnConnectionError(t *testing.T) {
	connErr := &email.ConnectionError{Protocol: "imap", Addr: "mail.x.com:993", Err: errors.New("connection reset")}

	t.Run("connect", func(t *testing.T) {
		mb := &fakeMailbox{connectErr: connErr}
		o := NewOrchestrator(mb, "INBOX", "", quietLogger())
		_, err := o.Search(context.Background(), criteria.From("alice@x.com"), DateRange{})
		assert.ErrorAs(t, err, new(*email.ConnectionError))
	})

	t.Run("during search", func(t *testing.T) {
		mb := &fakeMailbox{
			boxes:     map[string][]*types.Message{"INBOX": {}, "Sent": {}},
			searchErr: map[string]error{"Sent": connErr},
		}
		o := NewOrchestrator(mb, "INBOX", "", quietLogger())
		_, err := o.Search(context.Background(), criteria.From("alice@x.com"), DateRange{})
		assert.ErrorAs(t, err, new(*email.ConnectionError))
	})
}

func TestSearchRejectsInvalidCriteria(t *testing.T) {
	mb := &fakeMailbox{}
	o := NewOrchestrator(mb, "INBOX", "", quietLogger())
	_, err := o.Search(context.Background(), criteria.From("  "), DateRange{})
	assert.Error(t, err)
	assert.Empty(t, mb.opened)
}

func TestMerge(t *testing.T) {
	inbox := []*types.Message{
		{ID: 1, Mailbox: "INBOX", Date: day(2025, 1, 5)},
		{ID: 2, Mailbox: "INBOX"},
		{ID: 1, Mailbox: "INBOX", Date: day(2025, 1, 5)},
	}
	sent := []*types.Message{
		{ID: 1, Mailbox: "Sent", Date: day(2025, 1, 9)},
	}

	got := Merge([][]*types.Message{inbox, sent}, DateRange{})
	require.Len(t, got, 3)
	assert.Equal(t, "Sent", got[0].Mailbox)
	assert.Equal(t, uint32(1), got[1].ID)
	assert.False(t, got[2].HasDate(), "undated messages sort last")
}
