package typeindex

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/naming"
)

// source is one classpath entry.
type source interface {
	// open returns the class file bytes for an unprefixed internal name, or
	// ok=false when the entry does not contain it.
	open(name string) (rc io.ReadCloser, ok bool, err error)
	names() ([]string, error)
}

// ClassPath resolves types from directories, jars and jmods, searched in
// order. Parsed types are cached; the index is safe for concurrent use.
type ClassPath struct {
	rewriter *naming.Rewriter
	sources  []source

	mu    sync.Mutex
	cache map[string]*Type
}

// NewClassPath creates an index over the given entries. Entries ending in
// ".jmod" are read from their classes/ directory; ".jar" and ".zip" entries
// are read as archives; anything else is a directory. Names handed to Resolve
// are unprefixed with rewriter before lookup, and every core library name in a
// resolved Type carries the run prefix.
func NewClassPath(entries []string, rewriter *naming.Rewriter) (*ClassPath, error) {
	cp := &ClassPath{
		rewriter: rewriter,
		cache:    make(map[string]*Type),
	}
	for _, entry := range entries {
		switch strings.ToLower(filepath.Ext(entry)) {
		case ".jmod":
			cp.sources = append(cp.sources, &archiveSource{path: entry, dir: "classes/", header: 4})
		case ".jar", ".zip":
			cp.sources = append(cp.sources, &archiveSource{path: entry})
		default:
			info, err := os.Stat(entry)
			if err != nil {
				return nil, fmt.Errorf("classpath: %w", err)
			}
			if !info.IsDir() {
				return nil, fmt.Errorf("classpath: %s is neither a directory nor an archive", entry)
			}
			cp.sources = append(cp.sources, &dirSource{root: entry})
		}
	}
	return cp, nil
}

// Resolve implements Index.
func (cp *ClassPath) Resolve(name string) (*Type, error) {
	unprefixed := cp.rewriter.Unprefix(name)

	cp.mu.Lock()
	if t, ok := cp.cache[unprefixed]; ok {
		cp.mu.Unlock()
		return t, nil
	}
	cp.mu.Unlock()

	for _, src := range cp.sources {
		rc, ok, err := src.open(unprefixed)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cf, err := classfile.Parse(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("classpath: parsing %s: %w", unprefixed, err)
		}
		t, err := FromClassFile(cf, cp.rewriter.Prefixed)
		if err != nil {
			return nil, fmt.Errorf("classpath: reading %s: %w", unprefixed, err)
		}

		cp.mu.Lock()
		defer cp.mu.Unlock()
		// Another goroutine may have won the race; keep a single instance
		if existing, ok := cp.cache[unprefixed]; ok {
			return existing, nil
		}
		cp.cache[unprefixed] = t
		return t, nil
	}
	return nil, notFound(name)
}

// Names implements Lister: every class in every entry, prefixed, sorted and
// de-duplicated. module-info and package-info are skipped.
func (cp *ClassPath) Names() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, src := range cp.sources {
		names, err := src.names()
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if strings.HasSuffix(n, "module-info") || strings.HasSuffix(n, "package-info") {
				continue
			}
			n = cp.rewriter.Prefixed(n)
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// dirSource loads classes from a directory tree.
type dirSource struct {
	root string
}

func (d *dirSource) open(name string) (io.ReadCloser, bool, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(name)+".class"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("classpath: opening %s: %w", name, err)
	}
	return f, true, nil
}

func (d *dirSource) names() ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSuffix(filepath.ToSlash(rel), ".class"))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("classpath: walking %s: %w", d.root, err)
	}
	return names, nil
}

// archiveSource loads classes from a zip-format archive. jmod files carry a
// 4-byte "JM\x01\x00" header before the zip data and keep classes under
// classes/.
type archiveSource struct {
	path   string
	dir    string
	header int

	once  sync.Once
	err   error
	files map[string]*zip.File
}

func (a *archiveSource) ensureOpen() error {
	a.once.Do(func() {
		data, err := os.ReadFile(a.path)
		if err != nil {
			a.err = fmt.Errorf("classpath: reading %s: %w", a.path, err)
			return
		}
		if len(data) < a.header {
			a.err = fmt.Errorf("classpath: %s is truncated", a.path)
			return
		}
		data = data[a.header:]
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			a.err = fmt.Errorf("classpath: opening zip %s: %w", a.path, err)
			return
		}
		a.files = make(map[string]*zip.File, len(zr.File))
		for _, f := range zr.File {
			if !strings.HasPrefix(f.Name, a.dir) || !strings.HasSuffix(f.Name, ".class") {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(f.Name, a.dir), ".class")
			a.files[name] = f
		}
	})
	return a.err
}

func (a *archiveSource) open(name string) (io.ReadCloser, bool, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, false, err
	}
	f, ok := a.files[name]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false, fmt.Errorf("classpath: opening %s in %s: %w", name, a.path, err)
	}
	return rc, true, nil
}

func (a *archiveSource) names() ([]string, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(a.files))
	for n := range a.files {
		names = append(names, n)
	}
	return names, nil
}
