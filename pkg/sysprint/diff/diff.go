// Package diff classifies every file path across two manifests and renders
// line diffs of archived file content.
package diff

import (
	"sort"
	"time"

	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
)

// Change is a path present on one side only, or unchanged on both.
type Change struct {
	Path string             `json:"path" yaml:"path"`
	File manifest.FileEntry `json:"file" yaml:"file"`
}

// Modification is a path present on both sides with differing hashes.
type Modification struct {
	Path   string             `json:"path" yaml:"path"`
	Before manifest.FileEntry `json:"before" yaml:"before"`
	After  manifest.FileEntry `json:"after" yaml:"after"`
}

// Changes holds the four disjoint path classes, each sorted by path.
type Changes struct {
	NewFiles       []Change       `json:"new_files" yaml:"new_files"`
	DeletedFiles   []Change       `json:"deleted_files" yaml:"deleted_files"`
	ModifiedFiles  []Modification `json:"modified_files" yaml:"modified_files"`
	UnchangedFiles []Change       `json:"unchanged_files" yaml:"unchanged_files"`
}

// Statistics are the summary counts of a comparison.
type Statistics struct {
	TotalFilesBefore int `json:"total_files_before" yaml:"total_files_before"`
	TotalFilesAfter  int `json:"total_files_after" yaml:"total_files_after"`
	NewFiles         int `json:"new_files" yaml:"new_files"`
	DeletedFiles     int `json:"deleted_files" yaml:"deleted_files"`
	ModifiedFiles    int `json:"modified_files" yaml:"modified_files"`
	UnchangedFiles   int `json:"unchanged_files" yaml:"unchanged_files"`
}

// Result is the comparison of project1 (before) with project2 (after).
type Result struct {
	Project1       string     `json:"project1" yaml:"project1"`
	Project2       string     `json:"project2" yaml:"project2"`
	ComparisonDate time.Time  `json:"comparison_date" yaml:"comparison_date"`
	Statistics     Statistics `json:"statistics" yaml:"statistics"`
	Changes        Changes    `json:"changes" yaml:"changes"`
}

// Compare classifies every path in the union of both file maps exactly
// once: equal hashes are unchanged, differing hashes modified, paths only
// in before are deleted and paths only in after are new. Directories are
// not compared.
func Compare(beforeID string, before *manifest.Manifest, afterID string, after *manifest.Manifest) *Result {
	res := &Result{
		Project1:       beforeID,
		Project2:       afterID,
		ComparisonDate: time.Now().UTC(),
		Changes: Changes{
			NewFiles:       []Change{},
			DeletedFiles:   []Change{},
			ModifiedFiles:  []Modification{},
			UnchangedFiles: []Change{},
		},
	}

	for path, b := range before.Files {
		a, ok := after.Files[path]
		switch {
		case !ok:
			res.Changes.DeletedFiles = append(res.Changes.DeletedFiles, Change{Path: path, File: b})
		case a.Hash != b.Hash:
			res.Changes.ModifiedFiles = append(res.Changes.ModifiedFiles, Modification{Path: path, Before: b, After: a})
		default:
			res.Changes.UnchangedFiles = append(res.Changes.UnchangedFiles, Change{Path: path, File: b})
		}
	}
	for path, a := range after.Files {
		if _, ok := before.Files[path]; !ok {
			res.Changes.NewFiles = append(res.Changes.NewFiles, Change{Path: path, File: a})
		}
	}

	sortChanges(res.Changes.NewFiles)
	sortChanges(res.Changes.DeletedFiles)
	sortChanges(res.Changes.UnchangedFiles)
	sort.Slice(res.Changes.ModifiedFiles, func(i, j int) bool {
		return res.Changes.ModifiedFiles[i].Path < res.Changes.ModifiedFiles[j].Path
	})

	res.Statistics = Statistics{
		TotalFilesBefore: len(before.Files),
		TotalFilesAfter:  len(after.Files),
		NewFiles:         len(res.Changes.NewFiles),
		DeletedFiles:     len(res.Changes.DeletedFiles),
		ModifiedFiles:    len(res.Changes.ModifiedFiles),
		UnchangedFiles:   len(res.Changes.UnchangedFiles),
	}
	return res
}

func sortChanges(c []Change) {
	sort.Slice(c, func(i, j int) bool { return c[i].Path < c[j].Path })
}

// ChangedPaths returns new, deleted and modified paths, sorted.
func (r *Result) ChangedPaths() []string {
	c := r.Changes
	out := make([]string, 0, len(c.NewFiles)+len(c.DeletedFiles)+len(c.ModifiedFiles))
	for _, ch := range c.NewFiles {
		out = append(out, ch.Path)
	}
	for _, ch := range c.DeletedFiles {
		out = append(out, ch.Path)
	}
	for _, m := range c.ModifiedFiles {
		out = append(out, m.Path)
	}
	sort.Strings(out)
	return out
}

// HasChanges reports whether anything other than unchanged files exists.
func (r *Result) HasChanges() bool {
	s := r.Statistics
	return s.NewFiles+s.DeletedFiles+s.ModifiedFiles > 0
}
