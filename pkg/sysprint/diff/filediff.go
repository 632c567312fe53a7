package diff

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
)

// DefaultContext is the number of unchanged lines shown around each hunk.
const DefaultContext = 3

// Type tags a file-level diff.
type Type string

const (
	TypeAdded    Type = "added"
	TypeDeleted  Type = "deleted"
	TypeModified Type = "modified"
	TypeNotFound Type = "not_found"
)

// NotFoundMessage is the error text of a not-found file diff.
const NotFoundMessage = "File not found in either project"

// Source yields archived content by original path. It returns an error
// matching archive.ErrNoContent when the path was not archived.
type Source interface {
	Content(path string) (*archive.Content, error)
}

// FileResult is the rendered difference of one path between two archives.
type FileResult struct {
	FilePath     string `json:"file_path"`
	DiffType     Type   `json:"diff_type"`
	Unified      string `json:"unified,omitempty"`
	DiffHTML     string `json:"diff_html,omitempty"`
	Content1Size int    `json:"content1_size"`
	Content2Size int    `json:"content2_size"`
	Binary       bool   `json:"binary,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NotFound reports whether neither archive held the path.
func (r *FileResult) NotFound() bool {
	return r.DiffType == TypeNotFound
}

// FileDiff renders the line diff of path between before and after. A path
// absent from both yields a TypeNotFound result, not an error. An absent
// side is diffed as empty. Binary content is never line-diffed.
func FileDiff(before, after Source, path string, context int) (*FileResult, error) {
	if context <= 0 {
		context = DefaultContext
	}

	a, err := lookup(before, path)
	if err != nil {
		return nil, err
	}
	b, err := lookup(after, path)
	if err != nil {
		return nil, err
	}

	res := &FileResult{FilePath: path}
	switch {
	case a == nil && b == nil:
		res.DiffType = TypeNotFound
		res.Error = NotFoundMessage
		return res, nil
	case a == nil:
		res.DiffType = TypeAdded
	case b == nil:
		res.DiffType = TypeDeleted
	default:
		res.DiffType = TypeModified
	}

	if a != nil {
		res.Content1Size = a.Size
	}
	if b != nil {
		res.Content2Size = b.Size
	}

	if (a != nil && a.Binary()) || (b != nil && b.Binary()) {
		res.Binary = true
		res.Unified = fmt.Sprintf("Binary files %s differ (%d -> %d bytes)\n", path, res.Content1Size, res.Content2Size)
		res.DiffHTML = binaryHTML(path, a, b)
		return res, nil
	}

	aText, bText := text(a), text(b)
	res.Unified, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(aText),
		B:        splitLines(bText),
		FromFile: "Before: " + path,
		ToFile:   "After: " + path,
		Context:  context,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering diff for %s: %w", path, err)
	}
	res.DiffHTML = renderHTML(path, lines(aText), lines(bText), context)
	return res, nil
}

// lookup returns nil content when src has no member for path.
func lookup(src Source, path string) (*archive.Content, error) {
	if src == nil {
		return nil, nil
	}
	c, err := src.Content(path)
	if errors.Is(err, archive.ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func text(c *archive.Content) string {
	if c == nil {
		return ""
	}
	return c.Text
}

// splitLines splits s keeping line terminators, as unified output expects.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	out := strings.SplitAfter(s, "\n")
	if out[len(out)-1] == "" {
		out = out[:len(out)-1]
	} else {
		out[len(out)-1] += "\n"
	}
	return out
}

// lines splits s into lines without terminators.
func lines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// renderHTML produces a side-by-side table of the grouped opcodes, showing
// context lines around each change. Content is HTML-escaped.
func renderHTML(path string, a, b []string, context int) string {
	var sb strings.Builder
	sb.WriteString(`<table class="diff">` + "\n")
	fmt.Fprintf(&sb, `<thead><tr><th colspan="2">Before: %s</th><th colspan="2">After: %s</th></tr></thead>`+"\n",
		html.EscapeString(path), html.EscapeString(path))
	sb.WriteString("<tbody>\n")

	groups := difflib.NewMatcher(a, b).GetGroupedOpCodes(context)
	if len(groups) == 0 {
		sb.WriteString(`<tr><td colspan="4">No differences found</td></tr>` + "\n")
	}
	for gi, group := range groups {
		if gi > 0 {
			sb.WriteString(`<tr class="diff_sep"><td colspan="4">...</td></tr>` + "\n")
		}
		for _, op := range group {
			writeOp(&sb, op, a, b)
		}
	}

	sb.WriteString("</tbody>\n</table>\n")
	return sb.String()
}

var rowClass = map[byte]string{
	'e': "diff_equal",
	'r': "diff_chg",
	'd': "diff_sub",
	'i': "diff_add",
}

func writeOp(sb *strings.Builder, op difflib.OpCode, a, b []string) {
	n := max(op.I2-op.I1, op.J2-op.J1)
	for k := 0; k < n; k++ {
		left, right := "", ""
		leftNo, rightNo := "", ""
		if i := op.I1 + k; i < op.I2 {
			left, leftNo = a[i], fmt.Sprint(i+1)
		}
		if j := op.J1 + k; j < op.J2 {
			right, rightNo = b[j], fmt.Sprint(j+1)
		}

		fmt.Fprintf(sb, `<tr class="%s"><td class="diff_lineno">%s</td><td>%s</td><td class="diff_lineno">%s</td><td>%s</td></tr>`+"\n",
			rowClass[op.Tag], leftNo, html.EscapeString(left), rightNo, html.EscapeString(right))
	}
}

func binaryHTML(path string, a, b *archive.Content) string {
	cell := func(c *archive.Content) string {
		if c == nil {
			return ""
		}
		return html.EscapeString(archive.Placeholder(c.Size))
	}
	return fmt.Sprintf(`<table class="diff">`+"\n"+
		`<thead><tr><th>Before: %s</th><th>After: %s</th></tr></thead>`+"\n"+
		`<tbody><tr class="diff_chg"><td>%s</td><td>%s</td></tr></tbody>`+"\n</table>\n",
		html.EscapeString(path), html.EscapeString(path), cell(a), cell(b))
}
