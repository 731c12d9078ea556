// Package security guards the file paths pulsesim writes to: artifact names
// built from axis names and export destinations given on the command line.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxNameLen bounds names produced by SanitizeFilename.
const maxNameLen = 128

// ErrOutsideDirectory is returned when a path resolves outside every allowed
// directory.
var ErrOutsideDirectory = errors.New("path outside allowed directory")

// canonical returns the absolute form of path with symlinks resolved. When
// path does not exist yet, the nearest existing ancestor is resolved and the
// remainder appended, so a symlinked parent cannot smuggle a new file out.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	rest := ""
	dir := abs
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// ValidateWithin reports whether path stays inside dir once both are
// resolved.
func ValidateWithin(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	d, err := canonical(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s escapes %s", ErrOutsideDirectory, path, dir)
	}
	return nil
}

// ValidateExportPath accepts paths inside the temp directory, the working
// directory or any of extra.
func ValidateExportPath(path string, extra ...string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	dirs := append([]string{os.TempDir(), cwd}, extra...)
	for _, dir := range dirs {
		if ValidateWithin(path, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be within one of %v", ErrOutsideDirectory, path, dirs)
}

// SanitizeFilename turns an axis or run name into a single path element.
// Runs of characters outside [A-Za-z0-9._-] become one underscore; leading
// and trailing dots and underscores are dropped.
func SanitizeFilename(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
			underscore = r == '_'
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
