package classpath

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/classfile"
	"github.com/bpe-tools/pluginlint/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
)

var setLog = logger.New("classpath:set")

// DefaultCacheSize is the number of class signatures kept per set.
const DefaultCacheSize = 4096

// Options configures an ArchiveSet.
type Options struct {
	// CacheSize bounds the signature cache; zero means DefaultCacheSize.
	CacheSize int
	// MaxEntrySize bounds single entry reads; zero means DefaultMaxEntrySize.
	MaxEntrySize int64
}

type cachedSignature struct {
	sig *classfile.Signature
	err error
}

// ArchiveSet is an ordered classpath. It is safe for concurrent reads.
type ArchiveSet struct {
	archives []Archive
	maxEntry int64
	cache    *lru.Cache[string, cachedSignature]
}

// NewArchiveSet returns a set searching archives in order.
func NewArchiveSet(archives []Archive, opts Options) (*ArchiveSet, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	maxEntry := opts.MaxEntrySize
	if maxEntry <= 0 {
		maxEntry = DefaultMaxEntrySize
	}
	cache, err := lru.New[string, cachedSignature](size)
	if err != nil {
		return nil, fmt.Errorf("create signature cache: %w", err)
	}
	setLog.Printf("Created archive set: archives=%d cache_size=%d", len(archives), size)
	return &ArchiveSet{archives: archives, maxEntry: maxEntry, cache: cache}, nil
}

// Archives returns the archives in search order.
func (s *ArchiveSet) Archives() []Archive {
	return s.archives
}

// ReadSignature returns the header of a class, reading it at most once per set.
// Failures are cached as well, so an absent class is looked up only once.
func (s *ArchiveSet) ReadSignature(className string) (*classfile.Signature, error) {
	if c, ok := s.cache.Get(className); ok {
		return c.sig, c.err
	}
	sig, err := s.readSignature(className)
	s.cache.Add(className, cachedSignature{sig: sig, err: err})
	return sig, err
}

func (s *ArchiveSet) readSignature(className string) (*classfile.Signature, error) {
	data, origin, err := s.classBytes(className)
	if err != nil {
		return nil, err
	}
	sig, err := classfile.ParseSignature(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", origin, err)
	}
	if sig.Name != className {
		return nil, fmt.Errorf("%w: %s declares class %s, want %s", classfile.ErrMalformedClass, origin, sig.Name, className)
	}
	return sig, nil
}

// ReadClass fully parses a class including its method tables. Results are not cached.
func (s *ArchiveSet) ReadClass(className string) (*classfile.Class, error) {
	data, origin, err := s.classBytes(className)
	if err != nil {
		return nil, err
	}
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", origin, err)
	}
	return c, nil
}

func (s *ArchiveSet) classBytes(className string) ([]byte, string, error) {
	entry := classfile.EntryName(className)
	data, origin, err := s.ReadEntry(entry)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrClassNotFound, className)
	}
	return data, origin, err
}

// ReadEntry returns the bytes of the first archive entry with the given name
// together with an origin label such as "plugin.jar!/a/B.class".
func (s *ArchiveSet) ReadEntry(entry string) ([]byte, string, error) {
	for _, a := range s.archives {
		data, err := readAll(a, entry, s.maxEntry)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		origin := a.Name() + "!/" + entry
		if err != nil {
			return nil, origin, err
		}
		return data, origin, nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
}

// ServiceEntry is a file under META-INF/services.
type ServiceEntry struct {
	// Service is the file name, i.e. the service interface name.
	Service string
	Archive string
	Data    []byte
}

// ServiceEntries returns the service registration files whose service name
// starts with prefix. Each archive contributes its own copy of a file, in
// classpath order.
func (s *ArchiveSet) ServiceEntries(prefix string) ([]ServiceEntry, error) {
	const dir = "META-INF/services/"
	var out []ServiceEntry
	for _, a := range s.archives {
		for _, name := range a.Entries(dir) {
			service := strings.TrimPrefix(name, dir)
			if strings.Contains(service, "/") || !strings.HasPrefix(service, prefix) {
				continue
			}
			data, err := readAll(a, name, s.maxEntry)
			if err != nil {
				return out, err
			}
			out = append(out, ServiceEntry{Service: service, Archive: a.Name(), Data: data})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	setLog.Printf("Found service entries: prefix=%s count=%d", prefix, len(out))
	return out, nil
}

// Close closes every archive.
func (s *ArchiveSet) Close() error {
	var errs []error
	for _, a := range s.archives {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.cache.Purge()
	return errors.Join(errs...)
}
