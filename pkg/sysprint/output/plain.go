package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
)

// PlainFormatter writes one tab-aligned line per changed path, prefixed
// with A, D or M. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *diff.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("CHANGE\tPATH\n")); err != nil {
		return err
	}
	for _, c := range r.Changes.NewFiles {
		if _, err := fmt.Fprintf(tw, "A\t%s\n", c.Path); err != nil {
			return err
		}
	}
	for _, c := range r.Changes.DeletedFiles {
		if _, err := fmt.Fprintf(tw, "D\t%s\n", c.Path); err != nil {
			return err
		}
	}
	for _, m := range r.Changes.ModifiedFiles {
		if _, err := fmt.Fprintf(tw, "M\t%s\n", m.Path); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
