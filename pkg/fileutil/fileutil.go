// Package fileutil holds the path and directory helpers used to lay out bundles.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var log = logger.New("fileutil:fileutil")

// ValidateAbsolutePath returns path cleaned, or an error when it is empty or
// relative.
func ValidateAbsolutePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		return "", fmt.Errorf("path must be absolute, got: %s", path)
	}
	return clean, nil
}

// DirExists reports whether path names a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsWithin reports whether path is root or below it. Both must be clean.
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// FindFiles returns the files below root whose name ends with ext, in lexical
// order. Directories named in skip are not descended into. Unreadable
// subdirectories are skipped.
func FindFiles(root, ext string, skip []string) ([]string, error) {
	log.Printf("Finding files: root=%s ext=%s", root, ext)
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Printf("Skipping unreadable path: %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != root && slices.Contains(skip, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ext) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Found files: root=%s ext=%s count=%d", root, ext, len(out))
	return out, nil
}
