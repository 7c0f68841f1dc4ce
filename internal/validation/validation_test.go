// internal/validation/validation_test.go
package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := make([]byte, size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func TestCleanPath(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain path", filepath.Join(dir, "a.mp4"), filepath.Join(dir, "a.mp4")},
		{"surrounding spaces", "  " + filepath.Join(dir, "a.mp4") + "  ", filepath.Join(dir, "a.mp4")},
		{"double quotes from drag and drop", `"` + filepath.Join(dir, "a.mp4") + `"`, filepath.Join(dir, "a.mp4")},
		{"single quotes from drag and drop", "'" + filepath.Join(dir, "a.mp4") + "'", filepath.Join(dir, "a.mp4")},
		{"empty after cleaning", "  ''  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanPath(tt.input); got != tt.want {
				t.Errorf("CleanPath(%q) = %q, expected %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateInputPath(t *testing.T) {
	dir := t.TempDir()
	good := writeTempFile(t, dir, "movie.mp4", 1024)
	empty := writeTempFile(t, dir, "empty.mkv", 0)
	wrongExt := writeTempFile(t, dir, "notes.txt", 10)

	tests := []struct {
		name        string
		description string
		input       string
		wantErr     string
	}{
		{
			name:        "valid file",
			description: "a readable non-empty video passes",
			input:       good,
		},
		{
			name:        "quoted path",
			description: "quotes added by a file manager are stripped before checking",
			input:       `"` + good + `"`,
		},
		{
			name:        "empty path",
			description: "blank input is rejected with a clear message",
			input:       "   ",
			wantErr:     "cannot be empty",
		},
		{
			name:        "traversal",
			description: "parent directory references are refused",
			input:       filepath.Join(dir, "..", "movie.mp4"),
			wantErr:     "..",
		},
		{
			name:        "missing file",
			description: "the message names the path that was not found",
			input:       filepath.Join(dir, "missing.mp4"),
			wantErr:     "does not exist",
		},
		{
			name:        "directory instead of file",
			description: "directories are not inputs",
			input:       dir,
			wantErr:     "directory",
		},
		{
			name:        "unsupported extension",
			description: "the message lists the supported formats",
			input:       wrongExt,
			wantErr:     "Supported formats",
		},
		{
			name:        "empty file",
			description: "zero byte files cannot be processed",
			input:       empty,
			wantErr:     "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputPath(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateScriptPath(t *testing.T) {
	dir := t.TempDir()
	script := writeTempFile(t, dir, "upscale.vpy", 100)
	plain := writeTempFile(t, dir, "upscale.sh", 100)

	if err := ValidateScriptPath(script); err != nil {
		t.Errorf("expected .vpy script to pass, got %v", err)
	}
	if err := ValidateScriptPath(plain); err == nil {
		t.Error("expected non-script extension to fail")
	}
	if err := ValidateScriptPath(filepath.Join(dir, "none.vpy")); err == nil {
		t.Error("expected missing script to fail")
	}
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	existing := writeTempFile(t, dir, "old.mp4", 10)

	tests := []struct {
		name        string
		description string
		input       string
		wantErr     string
	}{
		{
			name:        "new file in writable directory",
			description: "the normal case passes",
			input:       filepath.Join(dir, "out.mp4"),
		},
		{
			name:        "existing file is overwritable",
			description: "overwriting is allowed, the caller confirms separately",
			input:       existing,
		},
		{
			name:        "empty path",
			description: "blank input is rejected",
			input:       "",
			wantErr:     "cannot be empty",
		},
		{
			name:        "missing parent directory",
			description: "the message names the directory that must exist",
			input:       filepath.Join(dir, "nope", "out.mp4"),
			wantErr:     "does not exist",
		},
		{
			name:        "directory as destination",
			description: "the encoder needs a filename, not a directory",
			input:       dir,
			wantErr:     "directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPath(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
