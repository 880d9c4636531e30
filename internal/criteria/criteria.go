// Package criteria describes mailbox search predicates as typed atoms.
//
// A Criteria is an AND-list of atoms. It is lowered to an IMAP SEARCH for
// servers that can search, and evaluated locally for POP3 where the server
// offers no search at all.
package criteria

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"

	"github.com/brandon/mcp-mailbox/internal/normalize"
	"github.com/brandon/mcp-mailbox/pkg/types"
)

// Field names a message attribute a search can test
type Field string

const (
	FieldFrom    Field = "from"
	FieldTo      Field = "to"
	FieldCc      Field = "cc"
	FieldSubject Field = "subject"
	FieldBody    Field = "body"
	FieldText    Field = "text"
	FieldFlag    Field = "flag"
	FieldSince   Field = "since"
	FieldBefore  Field = "before"
)

// Op is the comparison applied to a field
type Op string

const (
	OpContains Op = "contains"
	OpEquals   Op = "equals"
	OpSet      Op = "set"
	OpUnset    Op = "unset"
)

// Atom is a single condition
type Atom struct {
	Field Field     `json:"field"`
	Op    Op        `json:"op"`
	Value string    `json:"value,omitempty"`
	Time  time.Time `json:"time,omitempty"`
}

// Criteria is an AND-composition of atoms. The empty Criteria matches everything.
type Criteria []Atom

// And returns a new Criteria holding the atoms of all arguments
func And(parts ...Criteria) Criteria {
	var out Criteria
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func From(addr string) Criteria {
	return Criteria{{Field: FieldFrom, Op: OpContains, Value: addr}}
}

func To(addr string) Criteria {
	return Criteria{{Field: FieldTo, Op: OpContains, Value: addr}}
}

func cc(addr string) Criteria {
	return Criteria{{Field: FieldCc, Op: OpContains, Value: addr}}
}

func Subject(s string) Criteria {
	return Criteria{{Field: FieldSubject, Op: OpContains, Value: s}}
}

func body(s string) Criteria {
	return Criteria{{Field: FieldBody, Op: OpContains, Value: s}}
}

// Unseen matches messages without the \Seen flag
func Unseen() Criteria {
	return Criteria{{Field: FieldFlag, Op: OpUnset, Value: imap.SeenFlag}}
}

func flagged(flag string) Criteria {
	return Criteria{{Field: FieldFlag, Op: OpSet, Value: flag}}
}

// since matches messages on or after the given day
func since(t time.Time) Criteria {
	return Criteria{{Field: FieldSince, Time: t}}
}

// before matches messages strictly before the given day
func before(t time.Time) Criteria {
	return Criteria{{Field: FieldBefore, Time: t}}
}

// Validate checks that every atom is well formed
func (c Criteria) Validate() error {
	for i, a := range c {
		switch a.Field {
		case FieldFrom, FieldTo, FieldCc, FieldSubject, FieldBody, FieldText:
			if a.Op != OpContains && a.Op != OpEquals {
				return fmt.Errorf("atom %d: op %q not valid for %s", i, a.Op, a.Field)
			}
			if strings.TrimSpace(a.Value) == "" {
				return fmt.Errorf("atom %d: %s needs a value", i, a.Field)
			}
		case FieldFlag:
			if a.Op != OpSet && a.Op != OpUnset {
				return fmt.Errorf("atom %d: op %q not valid for flag", i, a.Op)
			}
			if a.Value == "" {
				return fmt.Errorf("atom %d: flag needs a value", i)
			}
		case FieldSince, FieldBefore:
			if a.Time.IsZero() {
				return fmt.Errorf("atom %d: %s needs a time", i, a.Field)
			}
		default:
			return fmt.Errorf("atom %d: unknown field %q", i, a.Field)
		}
	}
	return nil
}

// String renders the criteria for logs
func (c Criteria) String() string {
	if len(c) == 0 {
		return "ALL"
	}
	parts := make([]string, 0, len(c))
	for _, a := range c {
		switch a.Field {
		case FieldSince, FieldBefore:
			parts = append(parts, fmt.Sprintf("%s %s", a.Field, a.Time.Format("2006-01-02")))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %q", a.Field, a.Op, a.Value))
		}
	}
	return strings.Join(parts, " AND ")
}

// ToIMAP lowers the criteria to a go-imap search. IMAP header and text
// searches are substring matches, so equals is sent as contains and
// narrowed by the caller when it matters.
func (c Criteria) ToIMAP() *imap.SearchCriteria {
	sc := imap.NewSearchCriteria()
	for _, a := range c {
		switch a.Field {
		case FieldFrom:
			sc.Header.Add("From", a.needle())
		case FieldTo:
			sc.Header.Add("To", a.needle())
		case FieldCc:
			sc.Header.Add("Cc", a.needle())
		case FieldSubject:
			sc.Header.Add("Subject", a.Value)
		case FieldBody:
			sc.Body = append(sc.Body, a.Value)
		case FieldText:
			sc.Text = append(sc.Text, a.Value)
		case FieldFlag:
			if a.Op == OpSet {
				sc.WithFlags = append(sc.WithFlags, a.Value)
			} else {
				sc.WithoutFlags = append(sc.WithoutFlags, a.Value)
			}
		case FieldSince:
			sc.Since = a.Time
		case FieldBefore:
			sc.Before = a.Time
		}
	}
	return sc
}

// Match evaluates the criteria against an already fetched message
func (c Criteria) Match(m *types.Message) bool {
	for _, a := range c {
		if !a.match(m) {
			return false
		}
	}
	return true
}

func (a Atom) match(m *types.Message) bool {
	switch a.Field {
	case FieldFrom:
		return a.matchText(m.From) || a.matchText(m.SenderName)
	case FieldTo:
		return a.matchAny(m.To)
	case FieldCc:
		return a.matchAny(m.Cc)
	case FieldSubject:
		return a.matchText(m.Subject)
	case FieldBody:
		return a.matchText(m.BodyText) || a.matchText(m.BodyHTML)
	case FieldText:
		return a.matchText(m.Subject) || a.matchText(m.From) || a.matchAny(m.To) ||
			a.matchText(m.BodyText) || a.matchText(m.BodyHTML)
	case FieldFlag:
		has := hasFlag(m.Flags, a.Value)
		if a.Op == OpSet {
			return has
		}
		return !has
	case FieldSince:
		// IMAP compares on the date only and a message without date is not excluded here
		return !m.HasDate() || !dayOf(m.Date).Before(dayOf(a.Time))
	case FieldBefore:
		return !m.HasDate() || dayOf(m.Date).Before(dayOf(a.Time))
	}
	return false
}

func (a Atom) matchText(s string) bool {
	if s == "" {
		return false
	}
	want := a.needle()
	if a.Op == OpEquals {
		return strings.EqualFold(s, want)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(want))
}

// needle is the value actually searched for. Address fields are reduced to
// the bare address so "Jane <jane@x.com>" finds headers in any display form.
func (a Atom) needle() string {
	if a.Field == FieldFrom || a.Field == FieldTo || a.Field == FieldCc {
		return normalize.ExtractAddress(a.Value)
	}
	return a.Value
}

func (a Atom) matchAny(values []string) bool {
	for _, v := range values {
		if a.matchText(v) {
			return true
		}
	}
	return false
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
