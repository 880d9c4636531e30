// Package normalize turns protocol-level message data into types.Message.
//
// Normalization never fails. When the RFC 822 body cannot be parsed the
// header-derived fields are still returned and ParseError records why.
package normalize

import (
	"bytes"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jhillyerd/enmime"

	"github.com/brandon/mcp-mailbox/pkg/types"
)

// NoSubject is used when a message has no Subject header
const NoSubject = "(no subject)"

var (
	angleAddrRe = regexp.MustCompile(`<\s*([^<>\s]+@[^<>\s]+)\s*>`)
	bareAddrRe  = regexp.MustCompile(`[A-Za-z0-9._%+\-']+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// ExtractAddress reduces `"Name" <addr@domain>` or `addr@domain` to the bare address.
// Input that holds no address is returned trimmed but otherwise unchanged.
func ExtractAddress(s string) string {
	s = strings.TrimSpace(s)
	if m := angleAddrRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := bareAddrRe.FindString(s); m != "" {
		return m
	}
	return s
}

// ExtractAddresses applies ExtractAddress to every non-empty entry
func ExtractAddresses(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, ExtractAddress(s))
	}
	return out
}

// SplitAddressList splits a header value such as `a@x.com, "B" <b@y.com>`.
// Falls back to comma splitting when the list does not parse.
func SplitAddressList(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if list, err := mail.ParseAddressList(header); err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.Address)
		}
		return out
	}
	return ExtractAddresses(strings.Split(header, ","))
}

// Raw is everything a protocol client knows about one message before normalization
type Raw struct {
	ID           uint32
	Mailbox      string
	Flags        []string
	InternalDate time.Time
	Size         uint32

	// Header fields as delivered by the protocol (IMAP ENVELOPE); may be empty
	Subject   string
	From      []string
	To        []string
	Cc        []string
	Bcc       []string
	Date      time.Time
	MessageID string
	InReplyTo string

	// Full RFC 822 message; may be empty when only headers were fetched
	Body []byte
}

// FromRaw builds a canonical message. Envelope data wins over data parsed from the body.
func FromRaw(raw Raw) *types.Message {
	msg := &types.Message{
		ID:        raw.ID,
		Mailbox:   raw.Mailbox,
		Flags:     append([]string(nil), raw.Flags...),
		Size:      raw.Size,
		Subject:   strings.TrimSpace(raw.Subject),
		To:        ExtractAddresses(raw.To),
		Cc:        ExtractAddresses(raw.Cc),
		Bcc:       ExtractAddresses(raw.Bcc),
		Date:      raw.Date,
		MessageID: raw.MessageID,
		InReplyTo: raw.InReplyTo,
	}
	if len(raw.From) > 0 {
		msg.From = ExtractAddress(raw.From[0])
		msg.SenderName = displayName(raw.From[0])
	}
	if msg.Size == 0 && len(raw.Body) > 0 {
		msg.Size = uint32(len(raw.Body))
	}

	if len(raw.Body) > 0 {
		applyBody(msg, raw.Body)
	}

	if msg.Date.IsZero() {
		msg.Date = raw.InternalDate
	}
	if msg.Subject == "" {
		msg.Subject = NoSubject
	}
	if msg.To == nil {
		msg.To = []string{}
	}
	return msg
}

// applyBody parses the RFC 822 bytes with enmime and fills whatever the envelope lacked
func applyBody(msg *types.Message, body []byte) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(body))
	if err != nil {
		msg.ParseError = err.Error()
		if msg.BodyText == "" {
			msg.BodyText = rawText(body)
		}
		return
	}

	msg.BodyText = env.Text
	msg.BodyHTML = env.HTML

	if msg.Subject == "" {
		msg.Subject = strings.TrimSpace(env.GetHeader("Subject"))
	}
	if msg.From == "" {
		if list, err := env.AddressList("From"); err == nil && len(list) > 0 {
			msg.From = list[0].Address
			msg.SenderName = list[0].Name
		} else if from := env.GetHeader("From"); from != "" {
			msg.From = ExtractAddress(from)
			msg.SenderName = displayName(from)
		}
	}
	if len(msg.To) == 0 {
		msg.To = addressHeader(env, "To")
	}
	if len(msg.Cc) == 0 {
		msg.Cc = addressHeader(env, "Cc")
	}
	if len(msg.Bcc) == 0 {
		msg.Bcc = addressHeader(env, "Bcc")
	}
	if msg.MessageID == "" {
		msg.MessageID = strings.TrimSpace(env.GetHeader("Message-Id"))
	}
	if msg.InReplyTo == "" {
		msg.InReplyTo = strings.TrimSpace(env.GetHeader("In-Reply-To"))
	}
	if msg.Date.IsZero() {
		msg.Date = ParseHeaderDate(env.GetHeader("Date"))
	}

	for _, part := range env.Attachments {
		msg.Attachments = append(msg.Attachments, types.AttachmentInfo{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
		})
	}

	if len(env.Errors) > 0 && msg.BodyText == "" && msg.BodyHTML == "" {
		msg.ParseError = env.Errors[0].Error()
	}
}

func addressHeader(env *enmime.Envelope, key string) []string {
	list, err := env.AddressList(key)
	if err != nil {
		return SplitAddressList(env.GetHeader(key))
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

// ParseHeaderDate parses an RFC 5322 Date header, tolerating common deviations.
// The zero time is returned when nothing sensible can be read.
func ParseHeaderDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t
	}
	// Strip trailing comments such as "(UTC)" that break the strict parser
	if i := strings.Index(value, "("); i > 0 {
		if t, err := mail.ParseDate(strings.TrimSpace(value[:i])); err == nil {
			return t
		}
	}
	if t, err := dateparse.ParseAny(value); err == nil {
		return t
	}
	return time.Time{}
}

func displayName(s string) string {
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Name
	}
	if i := strings.Index(s, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(s[:i]), `"`)
	}
	return ""
}

// rawText returns the part after the header block, or everything if there is none
func rawText(body []byte) string {
	s := string(body)
	if i := strings.Index(s, "\r\n\r\n"); i >= 0 {
		return s[i+4:]
	}
	if i := strings.Index(s, "\n\n"); i >= 0 {
		return s[i+2:]
	}
	return s
}
