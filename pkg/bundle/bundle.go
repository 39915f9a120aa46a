// Package bundle opens an extracted plugin bundle directory and runs the full
// inspection pipeline over it: discovery, process and resource loading, and
// validation.
package bundle

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/classpath"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/fileutil"
	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var bundleLog = logger.New("bundle:bundle")

// ErrUnreadableBundle is returned when the bundle directory cannot be used.
var ErrUnreadableBundle = errors.New("unreadable bundle directory")

// Options configures how a bundle is opened and inspected.
type Options struct {
	// ClassRoots and ResourceRoots are directories relative to the bundle searched
	// before any jar. Nil means the defaults.
	ClassRoots    []string
	ResourceRoots []string
	// CacheSize bounds the class signature cache.
	CacheSize int
	// MaxEntrySize bounds single class and resource reads.
	MaxEntrySize int64
	// ExtraFieldInjections extends the allowed field injection keys.
	ExtraFieldInjections []string
}

func (o Options) classRoots() []string {
	if o.ClassRoots == nil {
		return constants.DefaultClassRoots
	}
	return o.ClassRoots
}

func (o Options) resourceRoots() []string {
	if o.ResourceRoots == nil {
		return constants.DefaultResourceRoots
	}
	return o.ResourceRoots
}

// Bundle is an opened bundle directory.
type Bundle struct {
	Dir string
	// Broken lists jars that could not be opened and were left out.
	Broken  []BrokenArchive
	classes *classpath.ArchiveSet
}

// BrokenArchive is a jar left out of the classpath.
type BrokenArchive struct {
	// Path is relative to the bundle directory, slash separated.
	Path string
	Err  error
}

// Open collects the root directories and jars of dir into one classpath. Root
// directories come first in the order configured, then the bundle directory itself,
// then every jar below it in lexical order.
func Open(dir string, opts Options) (*Bundle, error) {
	abs, err := filepath.Abs(dir)
	if err == nil {
		abs, err = fileutil.ValidateAbsolutePath(abs)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableBundle, dir, err)
	}
	if !fileutil.DirExists(abs) {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnreadableBundle, dir)
	}
	bundleLog.Printf("Opening bundle: dir=%s", abs)

	var archives []classpath.Archive
	closeAll := func() {
		for _, a := range archives {
			_ = a.Close()
		}
	}

	seen := map[string]bool{}
	for _, root := range append(append([]string{}, opts.classRoots()...), opts.resourceRoots()...) {
		p := filepath.Clean(filepath.Join(abs, root))
		if seen[p] || p == abs || !fileutil.IsWithin(abs, p) || !fileutil.DirExists(p) {
			continue
		}
		seen[p] = true
		archives = append(archives, classpath.NewDirArchive(p, filepath.ToSlash(root)))
	}
	archives = append(archives, classpath.NewDirArchive(abs, filepath.Base(abs)))

	jars, err := fileutil.FindFiles(abs, ".jar", constants.SkippedDirs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableBundle, dir, err)
	}
	var broken []BrokenArchive
	for _, path := range jars {
		jar, err := classpath.OpenJar(path)
		if err != nil {
			rel, rerr := filepath.Rel(abs, path)
			if rerr != nil {
				rel = path
			}
			bundleLog.Printf("Skipping unreadable jar: %s: %v", path, err)
			broken = append(broken, BrokenArchive{Path: filepath.ToSlash(rel), Err: err})
			continue
		}
		archives = append(archives, jar)
	}

	set, err := classpath.NewArchiveSet(archives, classpath.Options{CacheSize: opts.CacheSize, MaxEntrySize: opts.MaxEntrySize})
	if err != nil {
		closeAll()
		return nil, err
	}
	bundleLog.Printf("Opened bundle: dir=%s archives=%d jars=%d", abs, len(archives), len(jars))
	return &Bundle{Dir: abs, Broken: broken, classes: set}, nil
}

// Classes returns the bundle's classpath.
func (b *Bundle) Classes() *classpath.ArchiveSet {
	return b.classes
}

// ReadResource returns the bytes of a resource path declared by a descriptor,
// e.g. "bpe/ping.bpmn", and the origin it was read from.
func (b *Bundle) ReadResource(path string) ([]byte, string, error) {
	entry := strings.TrimPrefix(filepath.ToSlash(path), "/")
	return b.classes.ReadEntry(entry)
}

// Close releases every archive of the bundle.
func (b *Bundle) Close() error {
	return b.classes.Close()
}
