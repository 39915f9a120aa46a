// Package classpath gives read access to the classes and resources of a plugin bundle.
//
// An ArchiveSet is an ordered list of jar archives and directories, searched the way a
// class loader searches its classpath: the first archive containing an entry wins.
// Class signatures are cached per set, so a cache can never outlive the archives it was
// built from.
package classpath

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/logger"
	"github.com/klauspost/compress/zip"
)

var archiveLog = logger.New("classpath:archive")

// DefaultMaxEntrySize bounds how much of a single entry is read into memory.
const DefaultMaxEntrySize int64 = 16 << 20

var (
	// ErrClassNotFound is returned when no archive in the set contains a class.
	ErrClassNotFound = errors.New("class not found")

	// ErrEntryNotFound is returned when no archive in the set contains an entry.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrEntryTooLarge is returned for entries above the configured size limit.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")
)

// Archive is one classpath element.
type Archive interface {
	// Name identifies the archive in messages, e.g. "plugin.jar" or "target/classes".
	Name() string
	// Open opens a slash separated entry.
	Open(entry string) (io.ReadCloser, int64, error)
	// Entries lists entry names under a slash separated directory prefix.
	Entries(prefix string) []string
	Close() error
}

// JarArchive is a zip based archive.
type JarArchive struct {
	name  string
	rc    *zip.ReadCloser
	index map[string]*zip.File
}

// OpenJar opens the jar at path.
func OpenJar(path string) (*JarArchive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open jar %s: %w", path, err)
	}
	index := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		// Keep the first duplicate like java.util.zip does.
		if _, dup := index[f.Name]; !dup {
			index[f.Name] = f
		}
	}
	archiveLog.Printf("Opened jar: path=%s entries=%d", path, len(index))
	return &JarArchive{name: filepath.Base(path), rc: rc, index: index}, nil
}

func (j *JarArchive) Name() string { return j.name }

func (j *JarArchive) Open(entry string) (io.ReadCloser, int64, error) {
	f, ok := j.index[entry]
	if !ok {
		return nil, 0, fs.ErrNotExist
	}
	r, err := f.Open()
	if err != nil {
		return nil, 0, err
	}
	return r, int64(f.UncompressedSize64), nil
}

func (j *JarArchive) Entries(prefix string) []string {
	var out []string
	for name := range j.index {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (j *JarArchive) Close() error {
	return j.rc.Close()
}

// DirArchive exposes an extracted directory, such as target/classes.
type DirArchive struct {
	name string
	root string
}

// NewDirArchive returns an archive rooted at dir. label is used in messages.
func NewDirArchive(dir, label string) *DirArchive {
	if label == "" {
		label = filepath.Base(dir)
	}
	return &DirArchive{name: label, root: dir}
}

func (d *DirArchive) Name() string { return d.name }

func (d *DirArchive) Open(entry string) (io.ReadCloser, int64, error) {
	clean := path.Clean("/" + entry)[1:]
	if clean == "" || clean != entry {
		return nil, 0, fs.ErrNotExist
	}
	full := filepath.Join(d.root, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fs.ErrNotExist
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (d *DirArchive) Entries(prefix string) []string {
	dir := filepath.Join(d.root, filepath.FromSlash(strings.TrimSuffix(prefix, "/")))
	var out []string
	_ = filepath.WalkDir(dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

func (d *DirArchive) Close() error { return nil }

// readAll reads an entry subject to limit.
func readAll(a Archive, entry string, limit int64) ([]byte, error) {
	r, size, err := a.Open(entry)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: %s!/%s is %d bytes, limit %d", ErrEntryTooLarge, a.Name(), entry, size, limit)
	}
	lr := io.Reader(r)
	if limit > 0 {
		// The declared size of a zip entry is not trusted.
		lr = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("read %s!/%s: %w", a.Name(), entry, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s!/%s", ErrEntryTooLarge, a.Name(), entry)
	}
	return data, nil
}
