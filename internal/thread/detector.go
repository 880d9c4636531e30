// Package thread decides whether received messages have been answered.
//
// Without reliable threading headers the decision is a layered subject
// heuristic and is best effort: a reply with a rewritten subject sent more
// than a week later is reported as unreplied, and an unrelated message with a
// similar subject can count as a reply.
package thread

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/criteria"
	"github.com/brandon/mcp-mailbox/internal/search"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// Strategy names reported in types.ReplyAnalysis
const (
	StrategyLedger       = "ledger"
	StrategyInReplyTo    = "in_reply_to"
	StrategyExactSubject = "exact_subject"
	StrategyThreadPrefix = "thread_prefix"
	StrategyTimeWindow   = "time_window"
)

// Ledger knows about replies this server sent itself
type Ledger interface {
	HasReplyTo(mailbox string, id uint32) (bool, error)
}

// Options tunes the heuristics
type Options struct {
	// Window bounds the time-window strategy
	Window time.Duration
	// MinPrefixLen is the subject length the thread-prefix strategy needs to exceed
	MinPrefixLen int
	// MinContainsLen is the subject length containment needs to exceed in the window
	MinContainsLen int
	// MinWordLen is the length a word needs to exceed to count for overlap
	MinWordLen int

	Ledger Ledger
}

// DefaultOptions returns the stock heuristic constants
func DefaultOptions() Options {
	return Options{
		Window:         7 * 24 * time.Hour,
		MinPrefixLen:   3,
		MinContainsLen: 5,
		MinWordLen:     3,
	}
}

type sentCandidate struct {
	msg  *types.Message
	key  string
	date time.Time
}

type strategy func(m *types.Message, mKey string, s sentCandidate) bool

// Analyze gives a verdict for every received message. Only sent messages
// dated strictly after a received message can answer it, and the first
// strategy that finds a match wins. Subjects are compared in their
// normalized form, case included; only word overlap ignores case.
// A message counts as undated only when it had no envelope, Date header
// or internal date; such a message can be answered by any dated sent message.
func Analyze(received, sent []*types.Message, opts Options) []types.ReplyAnalysis {
	recv := make([]*types.Message, len(received))
	copy(recv, received)
	sort.SliceStable(recv, func(i, j int) bool { return recv[i].Date.Before(recv[j].Date) })

	candidates := make([]sentCandidate, 0, len(sent))
	for _, s := range sent {
		candidates = append(candidates, sentCandidate{msg: s, key: NormalizeSubject(s.Subject), date: s.Date})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].date.Before(candidates[j].date) })

	strategies := []struct {
		name  string
		match strategy
	}{
		{StrategyInReplyTo, matchInReplyTo},
		{StrategyExactSubject, matchExact},
		{StrategyThreadPrefix, opts.matchThreadPrefix},
		{StrategyTimeWindow, opts.matchTimeWindow},
	}

	out := make([]types.ReplyAnalysis, 0, len(recv))
	for _, m := range recv {
		a := types.ReplyAnalysis{
			OriginalID: m.ID,
			Mailbox:    m.Mailbox,
			Subject:    m.Subject,
			Date:       m.Date,
		}

		if opts.repliedInLedger(m) {
			a.Replied = true
			a.Strategy = StrategyLedger
			out = append(out, a)
			continue
		}

		mKey := NormalizeSubject(m.Subject)
		later := laterThan(candidates, m.Date)
	check:
		for _, st := range strategies {
			for _, s := range later {
				if st.match(m, mKey, s) {
					id := s.msg.ID
					a.Replied = true
					a.MatchedReplyID = &id
					a.MatchedMailbox = s.msg.Mailbox
					a.Strategy = st.name
					break check
				}
			}
		}
		out = append(out, a)
	}
	return out
}

// Unreplied keeps the analyses without a reply
func Unreplied(analyses []types.ReplyAnalysis) []types.ReplyAnalysis {
	out := make([]types.ReplyAnalysis, 0)
	for _, a := range analyses {
		if !a.Replied {
			out = append(out, a)
		}
	}
	return out
}

// laterThan returns the suffix of the ascending candidates dated after t.
// An undated received message can only be answered by dated sent messages.
func laterThan(candidates []sentCandidate, t time.Time) []sentCandidate {
	i := sort.Search(len(candidates), func(i int) bool { return candidates[i].date.After(t) })
	return candidates[i:]
}

func (o Options) repliedInLedger(m *types.Message) bool {
	if o.Ledger == nil {
		return false
	}
	ok, err := o.Ledger.HasReplyTo(m.Mailbox, m.ID)
	return err == nil && ok
}

func matchInReplyTo(m *types.Message, _ string, s sentCandidate) bool {
	return m.MessageID != "" && s.msg.InReplyTo == m.MessageID
}

func matchExact(_ *types.Message, mKey string, s sentCandidate) bool {
	return mKey != "" && mKey == s.key
}

func (o Options) matchThreadPrefix(_ *types.Message, mKey string, s sentCandidate) bool {
	if utf8.RuneCountInString(mKey) <= o.MinPrefixLen || mKey == s.key {
		return false
	}
	return strings.Contains(s.key, mKey)
}

func (o Options) matchTimeWindow(m *types.Message, mKey string, s sentCandidate) bool {
	if s.date.Sub(m.Date) > o.Window {
		return false
	}
	if mKey == "" || s.key == "" {
		return false
	}
	if mKey == s.key {
		return true
	}

	shorter, longer := mKey, s.key
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if utf8.RuneCountInString(shorter) > o.MinContainsLen && strings.Contains(longer, shorter) {
		return true
	}

	return o.wordOverlap(mKey, s.key)
}

// wordOverlap needs min(2, ceil(n/2)) shared words, n being the qualifying
// words of the original subject. A subject without qualifying words never matches.
func (o Options) wordOverlap(original, reply string) bool {
	orig := words(original, o.MinWordLen)
	if len(orig) == 0 {
		return false
	}
	need := int(math.Min(2, math.Ceil(float64(len(orig))/2)))

	have := make(map[string]bool)
	for _, w := range words(reply, o.MinWordLen) {
		have[w] = true
	}
	shared := 0
	for _, w := range orig {
		if have[w] {
			shared++
		}
	}
	return shared >= need
}

// Report is the outcome of an unreplied-message scan for one correspondent
type Report struct {
	Sender        string                `json:"sender"`
	ReceivedCount int                   `json:"received_count"`
	SentCount     int                   `json:"sent_count"`
	RepliedCount  int                   `json:"replied_count"`
	Unreplied     []types.ReplyAnalysis `json:"unreplied"`
	SentMailbox   string                `json:"sent_mailbox,omitempty"`
	Warning       string                `json:"warning,omitempty"`
}

// Detector runs the searches the analysis needs
type Detector struct {
	search *search.Orchestrator
	opts   Options
	logger *logrus.Logger
}

// NewDetector creates a detector over the given orchestrator
func NewDetector(orch *search.Orchestrator, opts Options, logger *logrus.Logger) *Detector {
	return &Detector{
		search: orch,
		opts:   opts,
		logger: logger,
	}
}

// DetectUnreplied finds messages from sender in r that have no reply
func (d *Detector) DetectUnreplied(ctx context.Context, sender string, r search.DateRange) (*Report, error) {
	received, err := d.search.Search(ctx, criteria.From(sender), r)
	if err != nil {
		return nil, err
	}
	sent, err := d.search.Search(ctx, criteria.To(sender), r)
	if err != nil {
		return nil, err
	}

	replies := sent.Messages
	if sent.SentMailbox != "" {
		replies = inMailbox(sent.Messages, sent.SentMailbox)
	}

	analyses := Analyze(received.Messages, replies, d.opts)
	unreplied := Unreplied(analyses)

	report := &Report{
		Sender:        sender,
		ReceivedCount: len(received.Messages),
		SentCount:     len(replies),
		RepliedCount:  len(analyses) - len(unreplied),
		Unreplied:     unreplied,
		SentMailbox:   sent.SentMailbox,
		Warning:       received.Warning,
	}

	d.logger.WithFields(logrus.Fields{
		"sender":    sender,
		"received":  report.ReceivedCount,
		"sent":      report.SentCount,
		"unreplied": len(unreplied),
	}).Info("Reply analysis done")
	return report, nil
}

func inMailbox(msgs []*types.Message, mailbox string) []*types.Message {
	out := make([]*types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Mailbox == mailbox {
			out = append(out, m)
		}
	}
	return out
}
