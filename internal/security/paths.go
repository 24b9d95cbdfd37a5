// Package security guards file names and paths derived from user input,
// such as footage labels used to name exported plots.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a path resolves outside its base directory.
var ErrPathTraversal = errors.New("path escapes base directory")

// maxFilenameLen bounds names produced by SanitizeFilename.
const maxFilenameLen = 96

// ValidatePathWithinDirectory checks that filePath resolves inside baseDir.
// Symlinks are resolved for the longest existing prefix of filePath, so a
// not-yet-created file below a symlinked directory is still caught.
func ValidatePathWithinDirectory(filePath, baseDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolve base directory: %w", err)
	}
	canonicalBase, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return fmt.Errorf("resolve base directory: %w", err)
	}

	canonicalPath := resolveExisting(absPath)
	rel, err := filepath.Rel(canonicalBase, canonicalPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPathTraversal, filePath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathTraversal, filePath, baseDir)
	}
	return nil
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// path and re-appends the remainder.
func resolveExisting(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir := path
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, path)
			return filepath.Join(resolved, rest)
		}
		dir = parent
	}
}

// SanitizeFilename turns an arbitrary label into a file name made of ASCII
// letters, digits, dot, underscore and dash. Runs of other characters become
// a single underscore. An empty result yields "footage".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "footage"
	}
	return out
}

// ExportPath joins dir with a sanitised name and ext and checks the result
// stays inside dir. ext includes the leading dot.
func ExportPath(dir, name, ext string) (string, error) {
	path := filepath.Join(dir, SanitizeFilename(name)+ext)
	if err := ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}
	return path, nil
}
