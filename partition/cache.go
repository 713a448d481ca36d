package partition

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"k8s.io/klog/v2"
)

// CacheKind selects where a cached partition keeps its elements.
type CacheKind int

const (
	// CacheMemory keeps the elements in memory after the first complete traversal.
	CacheMemory CacheKind = iota
	// CacheNone disables caching.
	CacheNone
	// CacheFile writes the elements to an xz compressed file after the first
	// complete traversal, and reads them back on later traversals.
	CacheFile
)

// CachePolicy configures the Cache stage. The zero value is an in-memory cache.
type CachePolicy struct {
	Kind CacheKind

	// Dir holds the cache files of CacheFile, one per partition name.
	Dir string
}

var (
	MemoryCache = CachePolicy{Kind: CacheMemory}
	NoCache     = CachePolicy{Kind: CacheNone}
)

// FileCache returns a policy caching partitions under dir.
func FileCache(dir string) CachePolicy {
	return CachePolicy{Kind: CacheFile, Dir: dir}
}

// String implements fmt.Stringer.
func (c CachePolicy) String() string {
	switch c.Kind {
	case CacheMemory:
		return "memory"
	case CacheNone:
		return "none"
	case CacheFile:
		return fmt.Sprintf("file(%s)", c.Dir)
	}
	return fmt.Sprintf("CacheKind(%d)", int(c.Kind))
}

// CachePath is the file used by a CacheFile policy for the partition name.
func (c CachePolicy) CachePath(name string) string {
	return filepath.Join(c.Dir, name+".gob.xz")
}

// Cache stores the elements of p the first time it is traversed to its end,
// and replays them on later traversals. Partial traversals don't fill the cache.
//
// The cached elements are the ones of epoch 0: stages placed before Cache are
// only evaluated once.
func (p *Partition) Cache(policy CachePolicy) (*Partition, error) {
	switch policy.Kind {
	case CacheNone:
		return p, nil
	case CacheMemory:
		c := p.derive()
		mc := &memoryCache{src: p}
		c.open = func(int) Iterator { return mc.open() }
		return c, nil
	case CacheFile:
		if policy.Dir == "" {
			return nil, errors.New("file cache needs a directory")
		}
		if err := os.MkdirAll(policy.Dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating cache directory %s", policy.Dir)
		}
		c := p.derive()
		fc := &fileCache{src: p, path: policy.CachePath(p.name)}
		c.open = func(int) Iterator { return fc.open() }
		return c, nil
	}
	return nil, errors.Errorf("unknown cache policy %s", policy)
}

type memoryCache struct {
	src *Partition

	mu       sync.Mutex
	complete bool
	elements []Element
}

func (mc *memoryCache) open() Iterator {
	mc.mu.Lock()
	complete, elements := mc.complete, mc.elements
	mc.mu.Unlock()
	if complete {
		pos := 0
		return &FuncIterator{NextFn: func() (Element, error) {
			if pos >= len(elements) {
				return Element{}, io.EOF
			}
			pos++
			return elements[pos-1], nil
		}}
	}

	src := mc.src.open(0)
	var recorded []Element
	return &FuncIterator{
		NextFn: func() (Element, error) {
			el, err := src.Next()
			switch {
			case err == io.EOF:
				mc.mu.Lock()
				if !mc.complete {
					mc.complete, mc.elements = true, recorded
				}
				mc.mu.Unlock()
			case err == nil:
				recorded = append(recorded, el)
			}
			return el, err
		},
		CloseFn: src.Close,
	}
}

type fileCache struct {
	src  *Partition
	path string

	mu sync.Mutex
}

func (fc *fileCache) open() Iterator {
	fc.mu.Lock()
	_, err := os.Stat(fc.path)
	fc.mu.Unlock()
	if err == nil {
		return fc.openReader()
	}
	return fc.openWriter()
}

// openReader replays a complete cache file.
func (fc *fileCache) openReader() Iterator {
	f, err := os.Open(fc.path)
	if err != nil {
		return errIterator(errors.Wrapf(err, "opening cache file %s", fc.path))
	}
	zr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return errIterator(errors.Wrapf(err, "reading cache file %s", fc.path))
	}
	dec := gob.NewDecoder(zr)
	return &FuncIterator{
		NextFn: func() (Element, error) {
			var el Element
			if err := dec.Decode(&el); err != nil {
				if err == io.EOF {
					return Element{}, io.EOF
				}
				return Element{}, errors.Wrapf(err, "decoding cache file %s", fc.path)
			}
			return el, nil
		},
		CloseFn: func() { _ = f.Close() },
	}
}

// openWriter traverses the source, writing every element to a temporary file
// that is moved into place once the traversal completes.
func (fc *fileCache) openWriter() Iterator {
	src := fc.src.open(0)
	tmpPath := fmt.Sprintf("%s.%s.tmp", fc.path, uuid.NewString())
	f, err := os.Create(tmpPath)
	if err != nil {
		src.Close()
		return errIterator(errors.Wrapf(err, "creating cache file %s", tmpPath))
	}
	zw, err := xz.NewWriter(f)
	if err != nil {
		src.Close()
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return errIterator(errors.Wrapf(err, "creating cache file %s", tmpPath))
	}
	enc := gob.NewEncoder(zw)
	finished := false
	abort := func() {
		if finished {
			return
		}
		finished = true
		_ = zw.Close()
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}
	return &FuncIterator{
		NextFn: func() (Element, error) {
			el, err := src.Next()
			if finished {
				return el, err
			}
			switch {
			case err == io.EOF:
				finished = true
				if err := zw.Close(); err != nil {
					_ = f.Close()
					_ = os.Remove(tmpPath)
					return Element{}, errors.Wrapf(err, "writing cache file %s", tmpPath)
				}
				if err := f.Close(); err != nil {
					_ = os.Remove(tmpPath)
					return Element{}, errors.Wrapf(err, "writing cache file %s", tmpPath)
				}
				fc.mu.Lock()
				err := os.Rename(tmpPath, fc.path)
				fc.mu.Unlock()
				if err != nil {
					return Element{}, errors.Wrapf(err, "moving cache file into %s", fc.path)
				}
				klog.V(1).Infof("cached partition %q into %s", fc.src.name, fc.path)
				return Element{}, io.EOF
			case err != nil:
				abort()
				return el, err
			}
			if err := enc.Encode(&el); err != nil {
				abort()
				return Element{}, errors.Wrapf(err, "encoding cache file %s", tmpPath)
			}
			return el, nil
		},
		CloseFn: func() {
			abort()
			src.Close()
		},
	}
}

func errIterator(err error) Iterator {
	return &FuncIterator{NextFn: func() (Element, error) { return Element{}, err }}
}
