package criteria

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mcp-mailbox/pkg/types"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Criteria{}.Validate())
	assert.NoError(t, And(Unseen(), From("boss@co.com")).Validate())

	assert.Error(t, From("  ").Validate())
	assert.Error(t, Criteria{{Field: FieldFrom, Op: OpSet, Value: "x"}}.Validate())
	assert.Error(t, Criteria{{Field: FieldFlag, Op: OpContains, Value: imap.SeenFlag}}.Validate())
	assert.Error(t, Criteria{{Field: FieldSince}}.Validate())
	assert.Error(t, Criteria{{Field: "size", Op: OpEquals, Value: "1"}}.Validate())
}

func TestString(t *testing.T) {
	assert.Equal(t, "ALL", Criteria{}.String())
	assert.Equal(t, `flag unset "\\Seen" AND from contains "boss@co.com"`, And(Unseen(), From("boss@co.com")).String())
}

func TestToIMAP(t *testing.T) {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sc := And(From("boss@co.com"), Subject("budget"), Unseen(), flagged(imap.FlaggedFlag), since(day), body("numbers")).ToIMAP()

	assert.Equal(t, "boss@co.com", sc.Header.Get("From"))
	assert.Equal(t, "budget", sc.Header.Get("Subject"))
	assert.Equal(t, []string{imap.SeenFlag}, sc.WithoutFlags)
	assert.Equal(t, []string{imap.FlaggedFlag}, sc.WithFlags)
	assert.Equal(t, []string{"numbers"}, sc.Body)
	assert.True(t, sc.Since.Equal(day))
}

func TestToIMAPReducesAddresses(t *testing.T) {
	tests := []struct {
		name  string
		c     Criteria
		field string
	}{
		{"from", From(`Jane Doe <jane@x.com>`), "From"},
		{"quoted from", From(`"Jane Doe" <jane@x.com>`), "From"},
		{"to", To(`Jane Doe <jane@x.com>`), "To"},
		{"cc", cc(`Jane Doe <jane@x.com>`), "Cc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "jane@x.com", tt.c.ToIMAP().Header.Get(tt.field))
		})
	}

	// local matching and server search agree on the same needle
	msg := &types.Message{From: "jane@x.com"}
	c := From(`Jane Doe <jane@x.com>`)
	assert.True(t, c.Match(msg))
	assert.Equal(t, msg.From, c.ToIMAP().Header.Get("From"))
}

func TestMatch(t *testing.T) {
	msg := &types.Message{
		From:       "boss@co.com",
		SenderName: "The Boss",
		To:         []string{"me@x.com"},
		Subject:    "Quarterly Budget",
		Flags:      []string{imap.FlaggedFlag},
		Date:       time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC),
		BodyText:   "numbers attached",
	}

	tests := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"empty matches all", Criteria{}, true},
		{"from address", From("BOSS@co.com"), true},
		{"from display form", From(`"Boss" <boss@co.com>`), true},
		{"from name", From("the boss"), true},
		{"from other", From("alice@co.com"), false},
		{"to", To("me@x.com"), true},
		{"subject substring", Subject("budget"), true},
		{"body", body("attached"), true},
		{"unseen", Unseen(), true},
		{"flagged", flagged(imap.FlaggedFlag), true},
		{"answered", flagged(imap.AnsweredFlag), false},
		{"since same day", since(time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC)), true},
		{"before same day", before(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)), false},
		{"and", And(Unseen(), From("boss@co.com"), Subject("lunch")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.c.Validate())
			assert.Equal(t, tt.want, tt.c.Match(msg))
		})
	}
}

func TestMatchUndatedMessage(t *testing.T) {
	msg := &types.Message{From: "boss@co.com"}
	assert.True(t, since(time.Now()).Match(msg))
	assert.True(t, before(time.Now()).Match(msg))
}
