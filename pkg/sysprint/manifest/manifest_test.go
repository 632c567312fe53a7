package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

func sampleManifest() *Manifest {
	m := New("/etc/sysprint.yaml", types.ModeTargeted)
	m.Files["/x/a.txt"] = FileEntry{
		Path: "/x/a.txt",
		Metadata: FileMetadata{
			Size:   12,
			Mode:   0o100644,
			UID:    1000,
			GID:    1000,
			Mtime:  1712345678.123456,
			Ctime:  1712345678.5,
			Atime:  1712345679,
			IsFile: true,
		},
		Hash:     "h1",
		Archived: true,
	}
	m.Directories["/x"] = DirectoryEntry{
		Path:     "/x",
		Metadata: FileMetadata{Mode: 0o40755, IsDirectory: true},
	}
	m.Errors = append(m.Errors, "Hash calculation failed for /x/b: permission denied")
	return m
}

func TestFileModeJSON(t *testing.T) {
	data, err := json.Marshal(FileMode(0o100644))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"0o100644"` {
		t.Errorf("Marshal() = %s, want \"0o100644\"", data)
	}

	tests := []struct {
		input   string
		want    FileMode
		wantErr bool
	}{
		{`"0o100644"`, 0o100644, false},
		{`"0100755"`, 0o100755, false},
		{`33188`, 0o100644, false},
		{`"0o9"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		var m FileMode
		err := json.Unmarshal([]byte(tt.input), &m)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && m != tt.want {
			t.Errorf("Unmarshal(%s) = %o, want %o", tt.input, m, tt.want)
		}
	}

	if got := FileMode(0o100640).Perm(); got != 0o640 {
		t.Errorf("Perm() = %o, want 640", got)
	}
}

func TestEncodeDecodeStable(t *testing.T) {
	m := sampleManifest()

	first, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(first)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	second, err := Encode(decoded)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("re-encoded manifest differs:\nfirst:  %s\nsecond: %s", first, second)
	}
	if decoded.Files["/x/a.txt"].Metadata.Mtime != 1712345678.123456 {
		t.Errorf("Mtime = %v, want 1712345678.123456", decoded.Files["/x/a.txt"].Metadata.Mtime)
	}
}

func TestDecodeLegacyManifest(t *testing.T) {
	// Shape written by the original recorder: zone-less timestamp, no mode,
	// empty errors list.
	data := []byte(`{
  "metadata": {
    "version": "1.0",
    "created": "2024-03-01T10:15:30.123456",
    "hostname": "web01",
    "platform": "Linux",
    "config_file": "config.yaml"
  },
  "files": {
    "/etc/hosts": {
      "path": "/etc/hosts",
      "metadata": {"size": 220, "mode": "0o100644", "uid": 0, "gid": 0,
        "mtime": 1709287000.5, "ctime": 1709287000.5, "atime": 1709287001.25,
        "is_symlink": false, "is_directory": false, "is_file": true},
      "hash": "abc",
      "archived": true
    }
  },
  "directories": {},
  "errors": []
}`)

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.Metadata.Created.Year() != 2024 {
		t.Errorf("Created = %v, want year 2024", m.Metadata.Created)
	}
	if m.Metadata.Mode != 0 {
		t.Errorf("Mode = %d, want 0", m.Metadata.Mode)
	}
	f := m.Files["/etc/hosts"]
	if f.Metadata.Mode != 0o100644 || !f.Archived {
		t.Errorf("unexpected entry %+v", f)
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `nope`},
		{name: "missing version", data: `{"metadata":{},"files":{}}`},
		{name: "missing files", data: `{"metadata":{"version":"1.0"}}`},
		{name: "bad mode", data: `{"metadata":{"version":"1.0","mode":7},"files":{}}`},
		{name: "key mismatch", data: `{"metadata":{"version":"1.0"},"files":{"/a":{"path":"/b"}}}`},
		{name: "wrong type", data: `{"metadata":{"version":"1.0"},"files":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, types.ErrArchive) {
				t.Errorf("Decode() error = %v, want ErrArchive", err)
			}
		})
	}
}

func TestDecodeFillsDefaults(t *testing.T) {
	m, err := Decode([]byte(`{"metadata":{"version":"1.0"},"files":{"/a":{"hash":"x"}}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.Files["/a"].Path != "/a" {
		t.Errorf("Path = %q, want /a", m.Files["/a"].Path)
	}
	if m.Directories == nil || m.Errors == nil {
		t.Error("Directories and Errors should be non-nil after decode")
	}
}

func TestStats(t *testing.T) {
	m := sampleManifest()
	m.Files["/x/b"] = FileEntry{Path: "/x/b"}

	got := m.Stats()
	want := Stats{TotalFiles: 2, TotalDirectories: 1, ArchivedFiles: 1, Errors: 1}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	if archived := m.Archived(); len(archived) != 1 || archived[0] != "/x/a.txt" {
		t.Errorf("Archived() = %v", archived)
	}
	if paths := m.Paths(); len(paths) != 2 || paths[0] != "/x/a.txt" {
		t.Errorf("Paths() = %v", paths)
	}
}

func TestBuilderConcurrent(t *testing.T) {
	b := NewBuilder(New("", types.ModeBroad))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("/f/%d", i)
			b.AddFile(FileEntry{Path: p})
			b.AddDirectory(DirectoryEntry{Path: p + ".d"})
			b.AddError("failed %s", p)
		}(i)
	}
	wg.Wait()

	if b.FileCount() != 50 {
		t.Errorf("FileCount() = %d, want 50", b.FileCount())
	}
	m := b.Manifest()
	if len(m.Directories) != 50 || len(m.Errors) != 50 {
		t.Errorf("got %d dirs, %d errors", len(m.Directories), len(m.Errors))
	}
}

func TestEpochRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 250_000_000, time.UTC)
	sec := Epoch(ts)
	if sec != float64(ts.Unix())+0.25 {
		t.Errorf("Epoch() = %v", sec)
	}
	if back := FromEpoch(sec); !back.Equal(ts) {
		t.Errorf("FromEpoch() = %v, want %v", back, ts)
	}
}
