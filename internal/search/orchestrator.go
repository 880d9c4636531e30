// Package search runs one logical search across the inbox and the sent folder.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// DefaultSentMailboxes are probed in order; the first that opens is used
var DefaultSentMailboxes = []string{
	"Sent",
	"Sent Items",
	"Sent Messages",
	"Sent Mail",
	"[Gmail]/Sent Mail",
	"[Google Mail]/Sent Mail",
	"INBOX.Sent",
	"INBOX/Sent",
	"已发送",
	"已发送邮件",
	"Gesendet",
	"Gesendete Elemente",
	"Envoyés",
	"Elementos enviados",
	"Posta inviata",
}

// Mailbox is the part of a protocol session the orchestrator needs.
// email.Receiver satisfies it.
type Mailbox interface {
	Connect(ctx context.Context) error
	OpenMailbox(ctx context.Context, name string, readOnly bool) (*types.MailboxInfo, error)
	Search(ctx context.Context, c criteria.Criteria) ([]uint32, error)
	Fetch(ctx context.Context, ids []uint32) ([]*types.Message, error)
}

// Orchestrator executes federated searches over a single session.
// Mailboxes are visited one after another since a session has one selected mailbox.
type Orchestrator struct {
	mailbox        Mailbox
	inbox          string
	sentCandidates []string
	logger         *logrus.Logger
}

// NewOrchestrator creates an orchestrator. A non-empty sentOverride is probed
// before the default sent folder names.
func NewOrchestrator(mailbox Mailbox, inbox, sentOverride string, logger *logrus.Logger) *Orchestrator {
	candidates := make([]string, 0, len(DefaultSentMailboxes)+1)
	if sentOverride != "" {
		candidates = append(candidates, sentOverride)
	}
	for _, name := range DefaultSentMailboxes {
		if name != sentOverride {
			candidates = append(candidates, name)
		}
	}

	return &Orchestrator{
		mailbox:        mailbox,
		inbox:          inbox,
		sentCandidates: candidates,
		logger:         logger,
	}
}

// Inbox returns the primary mailbox name
func (o *Orchestrator) Inbox() string {
	return o.inbox
}

// DiscoverSentMailbox returns the first sent folder candidate that opens, or ""
// when none does. Only connection-level failures are returned as errors.
func (o *Orchestrator) DiscoverSentMailbox(ctx context.Context) (string, error) {
	for _, name := range o.sentCandidates {
		if strings.EqualFold(name, o.inbox) {
			continue
		}
		if _, err := o.mailbox.OpenMailbox(ctx, name, true); err != nil {
			if email.IsFatal(err) {
				return "", err
			}
			o.logger.WithError(err).WithField("mailbox", name).Debug("Sent folder candidate did not open")
			continue
		}
		o.logger.WithField("mailbox", name).Debug("Found sent folder")
		return name, nil
	}
	return "", nil
}

// Search runs crit in the inbox and the discovered sent folder, then merges,
// date-filters and sorts the results newest first.
func (o *Orchestrator) Search(ctx context.Context, crit criteria.Criteria, r DateRange) (*types.SearchResult, error) {
	if err := crit.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search criteria: %w", err)
	}
	if err := o.mailbox.Connect(ctx); err != nil {
		return nil, err
	}

	sent, err := o.DiscoverSentMailbox(ctx)
	if err != nil {
		return nil, err
	}

	mailboxes := []string{o.inbox}
	if sent != "" {
		mailboxes = append(mailboxes, sent)
	}

	result, err := o.SearchMailboxes(ctx, mailboxes, crit, r)
	if err != nil {
		return nil, err
	}

	result.SentMailbox = sent
	if sent == "" {
		result.Warning = joinWarnings(fmt.Sprintf("no sent folder found; only %s was searched", o.inbox), result.Warning)
	}
	return result, nil
}

// SearchMailboxes runs crit in each named mailbox in order. A failure in one
// mailbox is recorded in its outcome and the others still run; connection
// failures abort the call.
func (o *Orchestrator) SearchMailboxes(ctx context.Context, mailboxes []string, crit criteria.Criteria, r DateRange) (*types.SearchResult, error) {
	result := &types.SearchResult{
		MailboxesSearched: make([]types.MailboxOutcome, 0, len(mailboxes)),
	}

	var lists [][]*types.Message
	for _, name := range mailboxes {
		outcome := types.MailboxOutcome{Mailbox: name, MatchingIDs: []uint32{}}

		ids, msgs, err := o.searchOne(ctx, name, crit)
		if ids != nil {
			outcome.MatchingIDs = ids
			outcome.Count = len(ids)
		}
		if err != nil {
			if email.IsFatal(err) {
				return nil, err
			}
			outcome.Error = err.Error()
			o.logger.WithError(err).WithField("mailbox", name).Warn("Mailbox search failed")
		}

		lists = append(lists, msgs)
		result.MailboxesSearched = append(result.MailboxesSearched, outcome)
	}

	result.Messages = Merge(lists, r)
	result.TotalMatches = len(result.Messages)
	result.Note = note(result.TotalMatches, len(mailboxes))
	result.Warning = joinWarnings(r.Warnings...)

	o.logger.WithFields(logrus.Fields{
		"criteria":  crit.String(),
		"mailboxes": len(mailboxes),
		"matches":   result.TotalMatches,
	}).Info("Federated search done")
	return result, nil
}

func (o *Orchestrator) searchOne(ctx context.Context, name string, crit criteria.Criteria) ([]uint32, []*types.Message, error) {
	if _, err := o.mailbox.OpenMailbox(ctx, name, true); err != nil {
		return nil, nil, err
	}

	ids, err := o.mailbox.Search(ctx, crit)
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return []uint32{}, nil, nil
	}

	msgs, err := o.mailbox.Fetch(ctx, ids)
	if err != nil {
		return ids, nil, err
	}
	for _, m := range msgs {
		m.Mailbox = name
	}
	return ids, msgs, nil
}

// Merge concatenates per-mailbox lists, drops duplicates of the same
// mailbox/id pair, applies the date range and sorts newest first.
// Messages without a date sort last.
func Merge(lists [][]*types.Message, r DateRange) []*types.Message {
	type key struct {
		mailbox string
		id      uint32
	}
	seen := make(map[key]bool)

	merged := make([]*types.Message, 0)
	for _, list := range lists {
		for _, m := range list {
			k := key{m.Mailbox, m.ID}
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, m)
		}
	}

	merged = r.Filter(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})
	return merged
}

func note(total, mailboxes int) string {
	if total == 0 {
		return fmt.Sprintf("No messages found in %d mailbox(es)", mailboxes)
	}
	return fmt.Sprintf("Found %d message(s) across %d mailbox(es)", total, mailboxes)
}

func joinWarnings(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}
