// internal/validation/validation.go
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxInputSizeBytes caps input files at 20 GB. Anything larger than that is
// almost certainly a mistyped path or a disk image.
const MaxInputSizeBytes = 20 << 30

// SupportedInputFormats lists the container extensions the pipeline accepts
// as original sources.
var SupportedInputFormats = []string{".mp4", ".mkv", ".mov", ".avi", ".webm"}

// SupportedScriptFormats lists the generator script extensions.
var SupportedScriptFormats = []string{".vpy", ".py"}

// CleanPath trims whitespace, strips the surrounding quotes file managers
// add on drag and drop, and resolves the result to an absolute path.
func CleanPath(input string) string {
	cleaned := strings.TrimSpace(input)
	if len(cleaned) >= 2 {
		if (cleaned[0] == '\'' && cleaned[len(cleaned)-1] == '\'') ||
			(cleaned[0] == '"' && cleaned[len(cleaned)-1] == '"') {
			cleaned = cleaned[1 : len(cleaned)-1]
		}
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}
	if abs, err := filepath.Abs(cleaned); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(cleaned)
}

// ValidateInputPath checks that input names a readable video file in a
// supported container.
func ValidateInputPath(input string) error {
	path, err := checkFile(input, "input file")
	if err != nil {
		return err
	}
	if err := checkExtension(path, SupportedInputFormats); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access input file: %v", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("input file is empty: %s", path)
	}
	if info.Size() > MaxInputSizeBytes {
		return fmt.Errorf("input file size (%.1f GB) exceeds the %d GB limit",
			float64(info.Size())/(1<<30), MaxInputSizeBytes>>30)
	}
	return nil
}

// ValidateScriptPath checks that input names a readable generator script.
func ValidateScriptPath(input string) error {
	path, err := checkFile(input, "script")
	if err != nil {
		return err
	}
	return checkExtension(path, SupportedScriptFormats)
}

// ValidateOutputPath checks that input names a writable destination. An
// existing file is acceptable and will be overwritten; an existing
// directory is not, because the encoder needs a concrete filename.
func ValidateOutputPath(input string) error {
	path := CleanPath(input)
	if path == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if strings.Contains(input, "..") {
		return fmt.Errorf("path cannot contain '..'")
	}

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return fmt.Errorf("output path points to a directory, not a file: %s", path)
		}
		return checkWritePermission(filepath.Dir(path))
	}

	parent := filepath.Dir(path)
	info, err := os.Stat(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", parent)
		}
		return fmt.Errorf("cannot access output directory: %v", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output parent path is not a directory: %s", parent)
	}
	return checkWritePermission(parent)
}

// checkFile runs the validations shared by every readable input: non-empty
// path, no traversal, exists, and is a regular file we can open.
func checkFile(input, what string) (string, error) {
	path := CleanPath(input)
	if path == "" {
		return "", fmt.Errorf("%s path cannot be empty", what)
	}
	if strings.Contains(input, "..") {
		return "", fmt.Errorf("path cannot contain '..'")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%s does not exist: %s", what, path)
	}
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %v", what, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s path points to a directory, not a file: %s", what, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s (permission denied): %v", what, err)
	}
	f.Close()
	return path, nil
}

func checkExtension(path string, supported []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range supported {
		if ext == s {
			return nil
		}
	}
	return fmt.Errorf("unsupported file format: %s. Supported formats: %s",
		ext, strings.Join(supported, ", "))
}

// checkWritePermission creates and removes a probe file. Permission bits
// alone do not prove a directory accepts new files.
func checkWritePermission(dir string) error {
	probe := filepath.Join(dir, ".upscalepipe_write_test")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("no write permission for %s: %v", dir, err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}
