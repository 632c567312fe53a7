package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero bytes", input: "0", want: 0},
		{name: "bytes with B suffix", input: "512B", want: 512},
		{name: "kilobytes", input: "100K", want: 100 * 1024},
		{name: "kilobytes with iB", input: "100KiB", want: 100 * 1024},
		{name: "megabytes lowercase", input: "50m", want: 50 * 1024 * 1024},
		{name: "megabytes with B", input: "10MB", want: 10 * 1024 * 1024},
		{name: "gigabytes", input: "2G", want: 2 * 1024 * 1024 * 1024},
		{name: "terabytes with iB", input: "1TiB", want: 1024 * 1024 * 1024 * 1024},
		{name: "surrounding whitespace", input: "  100M  ", want: 100 * 1024 * 1024},
		{name: "decimal values truncated", input: "1.5G", want: 1610612736},

		{name: "empty string", input: "", wantErr: true},
		{name: "only whitespace", input: "   ", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-100M", wantErr: true},
		{name: "suffix only", input: "M", wantErr: true},
		{name: "invalid format", input: "100M100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSizeNegativeError(t *testing.T) {
	_, err := ParseSize("-1")
	if !errors.Is(err, ErrNegativeSize) {
		t.Errorf("expected ErrNegativeSize, got %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{-5, "0 B"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"1", ModeBroad, false},
		{"broad", ModeBroad, false},
		{"2", ModeTargeted, false},
		{" Targeted ", ModeTargeted, false},
		{"3", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	if !errors.Is(ErrHash, ErrScan) {
		t.Error("ErrHash should match ErrScan")
	}
	if !errors.Is(ErrMissingManifest, ErrArchive) {
		t.Error("ErrMissingManifest should match ErrArchive")
	}

	wrapped := fmt.Errorf("project %q: %w", "p1", ErrNotFound)
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{wrapped, "NOT_FOUND"},
		{fmt.Errorf("x: %w", ErrValidation), "VALIDATION"},
		{fmt.Errorf("x: %w", ErrInvalidArchive), "ARCHIVE"},
		{fmt.Errorf("x: %w", ErrConfig), "CONFIG"},
		{ErrStat, "SCAN"},
		{errors.New("boom"), "INTERNAL"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
