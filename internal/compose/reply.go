// Package compose builds outgoing replies from fetched messages.
package compose

import (
	"fmt"
	"html"
	"strings"

	"jaytaylor.com/html2text"

	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/internal/normalize"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

const (
	replyPrefix     = "Re: "
	attributionDate = "Mon, Jan 2, 2006 at 15:04"
	quoteStyle      = "margin:0 0 0 .8ex;border-left:2px solid #ccc;padding-left:1ex;color:#666"
)

// Options controls how a reply is put together
type Options struct {
	ReplyToAll      bool
	IncludeOriginal bool
	// HTML is an optional html rendition of the reply text
	HTML string
	// Self is the replying account's address, never copied into the recipients
	Self string
}

// Reply composes a reply to original. Sending it and storing a sent copy are
// left to the caller.
func Reply(original *types.Message, text string, opts Options) *email.OutgoingMessage {
	to := normalize.ExtractAddress(original.From)

	msg := &email.OutgoingMessage{
		To:      []string{to},
		Subject: Subject(original.Subject),
	}
	if opts.ReplyToAll {
		msg.Cc = ccRecipients(original, to, opts.Self)
	}

	if original.MessageID != "" {
		msg.InReplyTo = original.MessageID
		msg.References = []string{original.MessageID}
	}

	msg.BodyText, msg.BodyHTML = bodies(original, text, opts)
	return msg
}

// Subject prefixes "Re: " unless the subject already starts with it
func Subject(subject string) string {
	if strings.HasPrefix(subject, replyPrefix) {
		return subject
	}
	return replyPrefix + subject
}

// ccRecipients merges the original To and Cc lists, dropping the primary
// recipient, the replying account and duplicates.
func ccRecipients(original *types.Message, primary, self string) []string {
	skip := map[string]bool{
		strings.ToLower(primary): true,
	}
	if self != "" {
		skip[strings.ToLower(normalize.ExtractAddress(self))] = true
	}

	var cc []string
	for _, raw := range append(append([]string{}, original.To...), original.Cc...) {
		addr := normalize.ExtractAddress(raw)
		key := strings.ToLower(addr)
		if addr == "" || skip[key] {
			continue
		}
		skip[key] = true
		cc = append(cc, addr)
	}
	return cc
}

func bodies(original *types.Message, text string, opts Options) (string, string) {
	replyHTML := opts.HTML
	if text == "" && replyHTML != "" {
		if converted, err := html2text.FromString(replyHTML, html2text.Options{OmitLinks: true}); err == nil {
			text = converted
		}
	}
	if replyHTML == "" && original.BodyHTML != "" {
		replyHTML = textToHTML(text)
	}

	if opts.IncludeOriginal {
		attribution := Attribution(original)
		text = text + "\n\n" + attribution + "\n" + QuoteText(originalText(original))
		if replyHTML != "" {
			replyHTML = replyHTML + "<br>\n" + QuoteHTML(attribution, originalHTML(original))
		}
	}
	return text, replyHTML
}

// Attribution is the line introducing quoted content
func Attribution(original *types.Message) string {
	from := original.From
	if original.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", original.SenderName, original.From)
	}
	if !original.HasDate() {
		return fmt.Sprintf("%s wrote:", from)
	}
	return fmt.Sprintf("On %s, %s wrote:", original.Date.Format(attributionDate), from)
}

// QuoteText prefixes every line with "> "
func QuoteText(body string) string {
	body = strings.TrimRight(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// QuoteHTML wraps content in an offset blockquote under the attribution
func QuoteHTML(attribution, content string) string {
	return fmt.Sprintf("<div>%s</div>\n<blockquote style=\"%s\">%s</blockquote>",
		html.EscapeString(attribution), quoteStyle, content)
}

func originalText(m *types.Message) string {
	if m.BodyText != "" {
		return m.BodyText
	}
	if m.BodyHTML == "" {
		return ""
	}
	text, err := html2text.FromString(m.BodyHTML, html2text.Options{OmitLinks: true})
	if err != nil {
		return m.BodyHTML
	}
	return text
}

func originalHTML(m *types.Message) string {
	if m.BodyHTML != "" {
		return m.BodyHTML
	}
	return textToHTML(m.BodyText)
}

// textToHTML renders plain text as minimal escaped html
func textToHTML(text string) string {
	escaped := html.EscapeString(strings.ReplaceAll(text, "\r\n", "\n"))
	return "<div>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</div>"
}
