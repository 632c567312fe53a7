package diff

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/manifest"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

func manifestOf(hashes map[string]string) *manifest.Manifest {
	m := manifest.New("", types.ModeBroad)
	for p, h := range hashes {
		m.Files[p] = manifest.FileEntry{Path: p, Hash: h}
	}
	return m
}

func TestCompareScenario(t *testing.T) {
	a := manifestOf(map[string]string{"/x/a.txt": "h1"})
	b := manifestOf(map[string]string{"/x/a.txt": "h2", "/x/b.txt": "h3"})

	res := Compare("p1", a, "p2", b)

	assert.Equal(t, "p1", res.Project1)
	assert.Equal(t, "p2", res.Project2)
	require.Len(t, res.Changes.ModifiedFiles, 1)
	assert.Equal(t, "/x/a.txt", res.Changes.ModifiedFiles[0].Path)
	assert.Equal(t, "h1", res.Changes.ModifiedFiles[0].Before.Hash)
	assert.Equal(t, "h2", res.Changes.ModifiedFiles[0].After.Hash)
	require.Len(t, res.Changes.NewFiles, 1)
	assert.Equal(t, "/x/b.txt", res.Changes.NewFiles[0].Path)
	assert.Empty(t, res.Changes.DeletedFiles)
	assert.Empty(t, res.Changes.UnchangedFiles)

	assert.Equal(t, Statistics{
		TotalFilesBefore: 1,
		TotalFilesAfter:  2,
		NewFiles:         1,
		ModifiedFiles:    1,
	}, res.Statistics)
	assert.Equal(t, []string{"/x/a.txt", "/x/b.txt"}, res.ChangedPaths())
	assert.True(t, res.HasChanges())
}

func TestCompareSelf(t *testing.T) {
	m := manifestOf(map[string]string{"/a": "1", "/b": "2", "/c": ""})

	res := Compare("p", m, "p", m)
	assert.Empty(t, res.Changes.NewFiles)
	assert.Empty(t, res.Changes.DeletedFiles)
	assert.Empty(t, res.Changes.ModifiedFiles)
	assert.Len(t, res.Changes.UnchangedFiles, len(m.Files))
	assert.False(t, res.HasChanges())
}

func TestComparePartition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		a, b := map[string]string{}, map[string]string{}
		for i := 0; i < 40; i++ {
			p := fmt.Sprintf("/f/%d", rng.Intn(60))
			switch rng.Intn(3) {
			case 0:
				a[p] = fmt.Sprint(rng.Intn(3))
			case 1:
				b[p] = fmt.Sprint(rng.Intn(3))
			default:
				a[p] = fmt.Sprint(rng.Intn(3))
				b[p] = fmt.Sprint(rng.Intn(3))
			}
		}

		res := Compare("a", manifestOf(a), "b", manifestOf(b))

		seen := map[string]int{}
		for _, c := range res.Changes.NewFiles {
			seen[c.Path]++
		}
		for _, c := range res.Changes.DeletedFiles {
			seen[c.Path]++
		}
		for _, c := range res.Changes.UnchangedFiles {
			seen[c.Path]++
		}
		for _, m := range res.Changes.ModifiedFiles {
			seen[m.Path]++
		}

		union := map[string]bool{}
		for p := range a {
			union[p] = true
		}
		for p := range b {
			union[p] = true
		}

		require.Len(t, seen, len(union), "round %d", round)
		for p, n := range seen {
			assert.True(t, union[p], "round %d: %s not in union", round, p)
			assert.Equal(t, 1, n, "round %d: %s classified %d times", round, p, n)
		}
	}
}

func TestCompareIgnoresDirectories(t *testing.T) {
	a := manifestOf(nil)
	a.Directories["/etc"] = manifest.DirectoryEntry{Path: "/etc"}
	b := manifestOf(nil)

	res := Compare("a", a, "b", b)
	assert.Equal(t, 0, res.Statistics.DeletedFiles)
}

// memSource is an in-memory Source.
type memSource map[string][]byte

func (m memSource) Content(path string) (*archive.Content, error) {
	data, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", archive.ErrNoContent, path)
	}
	return archive.Decode(data), nil
}

type failingSource struct{}

func (failingSource) Content(string) (*archive.Content, error) {
	return nil, fmt.Errorf("disk on fire")
}

func TestFileDiffNotFound(t *testing.T) {
	res, err := FileDiff(memSource{}, memSource{}, "/etc/none", 0)
	require.NoError(t, err)
	assert.True(t, res.NotFound())
	assert.Equal(t, TypeNotFound, res.DiffType)
	assert.Equal(t, NotFoundMessage, res.Error)
}

func TestFileDiffTypes(t *testing.T) {
	before := memSource{
		"/etc/app.conf": []byte("a=1\nb=2\nc=3\n"),
		"/etc/old.conf": []byte("gone\n"),
	}
	after := memSource{
		"/etc/app.conf": []byte("a=1\nb=20\nc=3\n"),
		"/etc/new.conf": []byte("fresh\n"),
	}

	res, err := FileDiff(before, after, "/etc/app.conf", 0)
	require.NoError(t, err)
	assert.Equal(t, TypeModified, res.DiffType)
	assert.Contains(t, res.Unified, "--- Before: /etc/app.conf")
	assert.Contains(t, res.Unified, "+++ After: /etc/app.conf")
	assert.Contains(t, res.Unified, "-b=2\n")
	assert.Contains(t, res.Unified, "+b=20\n")
	assert.Contains(t, res.DiffHTML, `class="diff_chg"`)
	assert.Equal(t, 12, res.Content1Size)
	assert.Equal(t, 13, res.Content2Size)

	res, err = FileDiff(before, after, "/etc/new.conf", 0)
	require.NoError(t, err)
	assert.Equal(t, TypeAdded, res.DiffType)
	assert.Contains(t, res.Unified, "+fresh")
	assert.Equal(t, 0, res.Content1Size)

	res, err = FileDiff(before, after, "/etc/old.conf", 0)
	require.NoError(t, err)
	assert.Equal(t, TypeDeleted, res.DiffType)
	assert.Contains(t, res.Unified, "-gone")
	assert.Equal(t, 0, res.Content2Size)
}

func TestFileDiffContextWindow(t *testing.T) {
	var a, b []string
	for i := 0; i < 30; i++ {
		a = append(a, fmt.Sprintf("line %d", i))
	}
	b = append(b, a...)
	b[15] = "changed"

	res, err := FileDiff(
		memSource{"/f": []byte(strings.Join(a, "\n"))},
		memSource{"/f": []byte(strings.Join(b, "\n"))},
		"/f", 3)
	require.NoError(t, err)

	assert.Contains(t, res.Unified, "@@ -13,7 +13,7 @@")
	assert.NotContains(t, res.Unified, "line 5\n")
}

func TestFileDiffEscapesHTML(t *testing.T) {
	res, err := FileDiff(memSource{"/x": []byte("<b>\n")}, memSource{"/x": []byte("<i>\n")}, "/x", 0)
	require.NoError(t, err)
	assert.Contains(t, res.DiffHTML, "&lt;b&gt;")
	assert.NotContains(t, res.DiffHTML, "<b>")
}

func TestFileDiffBinaryNotLineDiffed(t *testing.T) {
	res, err := FileDiff(
		memSource{"/bin/x": {0x00, 0xff}},
		memSource{"/bin/x": {0x00, 0xfe, 0x03}},
		"/bin/x", 0)
	require.NoError(t, err)
	assert.True(t, res.Binary)
	assert.Equal(t, TypeModified, res.DiffType)
	assert.NotContains(t, res.Unified, "@@")
	assert.Contains(t, res.DiffHTML, "&lt;Binary file - 2 bytes&gt;")
	assert.Equal(t, 3, res.Content2Size)
}

func TestFileDiffSourceError(t *testing.T) {
	_, err := FileDiff(failingSource{}, memSource{}, "/x", 0)
	assert.Error(t, err)
}
