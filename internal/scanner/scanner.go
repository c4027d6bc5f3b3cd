package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the message file extension, matched case-insensitively
const Extension = ".eml"

// Scanner finds .eml files in a directory
type Scanner struct {
	rootPath  string
	recursive bool
}

// NewScanner creates a new scanner for the given root path
func NewScanner(rootPath string) *Scanner {
	return &Scanner{
		rootPath: rootPath,
	}
}

// WithRecursive makes Scan descend into subdirectories
func (s *Scanner) WithRecursive(recursive bool) *Scanner {
	s.recursive = recursive
	return s
}

// Path resolves a path returned by Scan against the root
func (s *Scanner) Path(rel string) string {
	return filepath.Join(s.rootPath, filepath.FromSlash(rel))
}

// IsMessageFile reports whether name carries the message extension
func IsMessageFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), Extension)
}

// Scan returns the .eml files under the root as slash-separated paths
// relative to it, in lexical order. Only the root directory is read unless
// the scanner is recursive.
func (s *Scanner) Scan() ([]string, error) {
	if !s.recursive {
		entries, err := os.ReadDir(s.rootPath)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory: %w", err)
		}
		var emlFiles []string
		for _, entry := range entries {
			if IsMessageFile(entry.Name()) && isFile(filepath.Join(s.rootPath, entry.Name()), entry) {
				emlFiles = append(emlFiles, entry.Name())
			}
		}
		return emlFiles, nil
	}

	var emlFiles []string
	err := filepath.WalkDir(s.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if d.IsDir() || !IsMessageFile(d.Name()) || !isFile(path, d) {
			return nil
		}

		relPath, err := filepath.Rel(s.rootPath, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		// Normalize to forward slashes for cross-platform compatibility
		emlFiles = append(emlFiles, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	return emlFiles, nil
}

// isFile reports whether the entry is a regular file or a symlink to one.
// A dangling link still counts so that reading it fails and the batch
// reports it as skipped.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.Mode().IsRegular()
}

// CountEMLFiles counts the .eml files Scan would return
func (s *Scanner) CountEMLFiles() (int, error) {
	files, err := s.Scan()
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return len(files), nil
}
