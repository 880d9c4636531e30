package thread

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/brandon/mcp-mailbox/internal/normalize"
)

// replyPrefixes are compared after NFKC, so full-width colons are already ASCII
var replyPrefixes = []string{"re:", "回复:", "答复:", "回覆:"}

// NormalizeSubject strips any run of leading reply markers and surrounding
// whitespace. The placeholder subject of messages without one normalizes to "".
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(norm.NFKC.String(subject))
	if s == normalize.NoSubject {
		return ""
	}

	for {
		stripped := false
		lower := strings.ToLower(s)
		for _, p := range replyPrefixes {
			if strings.HasPrefix(lower, p) {
				s = strings.TrimSpace(s[len(p):])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// words returns the distinct case-folded tokens of s longer than minLen runes
func words(s string, minLen int) []string {
	fold := cases.Fold()
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.FieldsFunc(s, isSeparator) {
		w = fold.String(w)
		if utf8.RuneCountInString(w) <= minLen || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', ',', '.', ';', ':', '!', '?', '(', ')', '[', ']', '"', '\'', '/', '-', '_':
		return true
	}
	return false
}
