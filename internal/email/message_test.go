package email

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := &OutgoingMessage{
		To:         []string{"bob@y.com"},
		Cc:         []string{"carol@z.com"},
		Bcc:        []string{"hidden@z.com"},
		Subject:    "Re: Project X",
		BodyText:   "Sounds good",
		BodyHTML:   "<p>Sounds good</p>",
		InReplyTo:  "<orig@x.com>",
		References: []string{"<orig@x.com>"},
	}

	id, raw, err := BuildMessage(msg, "me@x.com", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@x.com>"))
	assert.NotContains(t, string(raw), "hidden@z.com")

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer mr.Close()

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Project X", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "bob@y.com", to[0].Address)
	assert.Equal(t, "<orig@x.com>", mr.Header.Get("In-Reply-To"))

	var bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(part.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"Sounds good", "<p>Sounds good</p>"}, bodies)
}

func TestOutgoingMessageValidate(t *testing.T) {
	assert.Error(t, (&OutgoingMessage{BodyText: "x"}).Validate())
	assert.Error(t, (&OutgoingMessage{To: []string{"bob@y.com"}}).Validate())
	assert.Error(t, (&OutgoingMessage{To: []string{"not an address"}, BodyText: "x"}).Validate())
	assert.NoError(t, (&OutgoingMessage{To: []string{"bob@y.com"}, BodyHTML: "<p>x</p>"}).Validate())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&ConnectionError{Protocol: "imap", Addr: "x:993", Err: io.EOF}))
	assert.True(t, IsFatal(&AuthError{Protocol: "imap", Username: "me", Err: io.EOF}))
	assert.False(t, IsFatal(io.EOF))
	assert.False(t, IsFatal(ErrNotSupported))
}
