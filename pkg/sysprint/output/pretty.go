package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
)

// DefaultPrettyLimit caps the rows shown per change class.
const DefaultPrettyLimit = 50

// PrettyFormatter renders a styled summary for terminal display.
type PrettyFormatter struct {
	// Limit caps rows per change class. Zero or less shows every row.
	Limit int
}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *diff.Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if !r.HasChanges() {
		w.WriteString(MutedStyle.Render("  No changes between the two projects"))
		w.WriteString("\n")
	}

	added := make([]string, len(r.Changes.NewFiles))
	for i, c := range r.Changes.NewFiles {
		added[i] = row(c.Path, humanize.IBytes(c.File.Metadata.Size))
	}
	f.section(w, AddedStyle, "+", "Added", added)

	deleted := make([]string, len(r.Changes.DeletedFiles))
	for i, c := range r.Changes.DeletedFiles {
		deleted[i] = row(c.Path, humanize.IBytes(c.File.Metadata.Size))
	}
	f.section(w, DeletedStyle, "-", "Deleted", deleted)

	modified := make([]string, len(r.Changes.ModifiedFiles))
	for i, m := range r.Changes.ModifiedFiles {
		modified[i] = row(m.Path, fmt.Sprintf("%s -> %s",
			humanize.IBytes(m.Before.Metadata.Size), humanize.IBytes(m.After.Metadata.Size)))
	}
	f.section(w, ModifiedStyle, "~", "Modified", modified)

	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) formatHeader(r *diff.Result) string {
	lines := []string{
		TitleStyle.Render("Comparison"),
		fmt.Sprintf("%s %s", LabelStyle.Render("Before:"), ValueStyle.Render(r.Project1)),
		fmt.Sprintf("%s %s", LabelStyle.Render("After: "), ValueStyle.Render(r.Project2)),
	}
	if !r.ComparisonDate.IsZero() {
		lines = append(lines, fmt.Sprintf("%s %s",
			LabelStyle.Render("Date:  "), MutedStyle.Render(r.ComparisonDate.Format("2006-01-02 15:04:05 MST"))))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// section writes one change class. Empty classes are skipped.
func (f *PrettyFormatter) section(w *bytes.Buffer, style lipgloss.Style, marker, title string, rows []string) {
	if len(rows) == 0 {
		return
	}

	fmt.Fprintf(w, "%s %s\n", style.Render(title), MutedStyle.Render(fmt.Sprintf("(%d)", len(rows))))

	shown := rows
	if f.Limit > 0 && len(rows) > f.Limit {
		shown = rows[:f.Limit]
	}
	for _, r := range shown {
		fmt.Fprintf(w, "  %s %s\n", style.Render(marker), r)
	}
	if hidden := len(rows) - len(shown); hidden > 0 {
		fmt.Fprintf(w, "  %s\n", MutedStyle.Render(fmt.Sprintf("... and %d more", hidden)))
	}
	w.WriteString("\n")
}

func row(path, detail string) string {
	return fmt.Sprintf("%s  %s", PathStyle.Render(path), SizeStyle.Render(detail))
}

func (f *PrettyFormatter) formatFooter(r *diff.Result) string {
	s := r.Statistics
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Files:"),
			ValueStyle.Render(fmt.Sprintf("%s -> %s", humanize.Comma(int64(s.TotalFilesBefore)), humanize.Comma(int64(s.TotalFilesAfter))))),
		AddedStyle.Render(fmt.Sprintf("+%d", s.NewFiles)),
		DeletedStyle.Render(fmt.Sprintf("-%d", s.DeletedFiles)),
		ModifiedStyle.Render(fmt.Sprintf("~%d", s.ModifiedFiles)),
		MutedStyle.Render(fmt.Sprintf("%d unchanged", s.UnchangedFiles)),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{Limit: DefaultPrettyLimit}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
