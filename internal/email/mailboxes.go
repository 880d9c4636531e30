package email

import (
	"sort"
	"strings"

	"github.com/brandon/mcp-mailbox/pkg/types"
)

// MailboxEntry is one line of a LIST response
type MailboxEntry struct {
	Name       string
	Delimiter  string
	Attributes []string
}

// BuildTree nests flat mailbox names by their hierarchy delimiter.
// Parents missing from the listing are synthesized with the \Noselect attribute.
func BuildTree(entries []MailboxEntry) []*types.Folder {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	byPath := make(map[string]*types.Folder)
	var roots []*types.Folder

	var ensure func(path, delim string) *types.Folder
	ensure = func(path, delim string) *types.Folder {
		if f, ok := byPath[path]; ok {
			return f
		}
		name := path
		parentPath := ""
		if delim != "" {
			if i := strings.LastIndex(path, delim); i > 0 {
				parentPath = path[:i]
				name = path[i+len(delim):]
			}
		}
		f := &types.Folder{
			Name:       name,
			Path:       path,
			Delimiter:  delim,
			Attributes: []string{`\Noselect`},
		}
		byPath[path] = f
		if parentPath == "" {
			roots = append(roots, f)
		} else {
			parent := ensure(parentPath, delim)
			parent.Children = append(parent.Children, f)
		}
		return f
	}

	for _, e := range entries {
		f := ensure(e.Name, e.Delimiter)
		f.Attributes = append([]string(nil), e.Attributes...)
	}

	return roots
}
