package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/xid"
)

// OutgoingMessage represents an email to be sent
type OutgoingMessage struct {
	To         []string
	Cc         []string
	Bcc        []string
	Subject    string
	BodyText   string
	BodyHTML   string
	ReplyTo    string
	InReplyTo  string
	References []string
}

// Recipients returns every envelope recipient (To, Cc and Bcc)
func (m *OutgoingMessage) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// Validate checks the minimum needed for submission
func (m *OutgoingMessage) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, addr := range m.Recipients() {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
	}
	if m.BodyText == "" && m.BodyHTML == "" {
		return fmt.Errorf("either a text or an html body is required")
	}
	return nil
}

// BuildMessage renders msg as RFC 5322 bytes. It returns the generated
// Message-ID with angle brackets. Bcc recipients are not written to the header.
func BuildMessage(msg *OutgoingMessage, from string, now time.Time) (string, []byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", addressList(msg.To))
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", addressList(msg.Cc))
	}
	if msg.ReplyTo != "" {
		h.SetAddressList("Reply-To", addressList([]string{msg.ReplyTo}))
	}
	h.SetSubject(msg.Subject)

	id := xid.New().String() + "@" + domainOf(from)
	h.SetMessageID(id)

	if msg.InReplyTo != "" {
		h.Set("In-Reply-To", msg.InReplyTo)
	}
	if len(msg.References) > 0 {
		h.Set("References", strings.Join(msg.References, " "))
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return "", nil, fmt.Errorf("failed to create inline writer: %w", err)
	}

	if msg.BodyText != "" || msg.BodyHTML == "" {
		if err := writePart(tw, "text/plain", msg.BodyText); err != nil {
			return "", nil, err
		}
	}
	if msg.BodyHTML != "" {
		if err := writePart(tw, "text/html", msg.BodyHTML); err != nil {
			return "", nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close message writer: %w", err)
	}

	return "<" + id + ">", buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var th mail.InlineHeader
	th.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

func addressList(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		if parsed, err := mail.ParseAddress(a); err == nil {
			out = append(out, parsed)
			continue
		}
		out = append(out, &mail.Address{Address: a})
	}
	return out
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
