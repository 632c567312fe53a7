package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
)

// csvHeader is the first row of a CSV export.
var csvHeader = []string{"Change Type", "File Path", "Size Before", "Size After", "Hash Before", "Hash After"}

// CSVFormatter writes one row per changed file: added rows carry only the
// after side, deleted rows only the before side and modified rows both.
// Unchanged files are omitted.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *diff.Result) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, c := range r.Changes.NewFiles {
		if err := cw.Write([]string{"Added", c.Path, "", size(c.File), "", c.File.Hash}); err != nil {
			return err
		}
	}
	for _, c := range r.Changes.DeletedFiles {
		if err := cw.Write([]string{"Deleted", c.Path, size(c.File), "", c.File.Hash, ""}); err != nil {
			return err
		}
	}
	for _, m := range r.Changes.ModifiedFiles {
		row := []string{"Modified", m.Path, size(m.Before), size(m.After), m.Before.Hash, m.After.Hash}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func size(e manifest.FileEntry) string {
	return strconv.FormatUint(e.Metadata.Size, 10)
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

// Ensure CSVFormatter implements Formatter.
var _ Formatter = (*CSVFormatter)(nil)
