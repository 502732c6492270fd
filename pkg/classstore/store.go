// Package classstore collects classes generated during a run and writes them
// out at the end.
package classstore

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/daimatz/jdesugar/pkg/bytecode"
	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/errors"
)

// Store is the class-store sink: one ClassBuilder per generated class name.
type Store struct {
	mu      sync.Mutex
	classes map[string]*ClassBuilder
}

// New creates an empty store.
func New() *Store {
	return &Store{classes: make(map[string]*ClassBuilder)}
}

// Add registers a new class. Adding the same name twice is an error.
func (s *Store) Add(name string) (*ClassBuilder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.classes[name]; exists {
		return nil, errors.Newf(errors.ErrDuplicateClass, "class %s already generated", name)
	}
	cb := &ClassBuilder{Name: name, methods: make(map[string]*bytecode.MethodBuilder)}
	s.classes[name] = cb
	return cb, nil
}

// Get returns a previously added class.
func (s *Store) Get(name string) (*ClassBuilder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.classes[name]
	return cb, ok
}

// Names returns the generated class names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.classes))
	for n := range s.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of generated classes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.classes)
}

// WriteDir writes every class as <dir>/<name>.class.
func (s *Store) WriteDir(dir string) error {
	for _, name := range s.Names() {
		cb, _ := s.Get(name)
		data, err := cb.Bytes()
		if err != nil {
			return err
		}
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrapf(err, errors.ErrClassWrite, "creating directory for %s", name)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, errors.ErrClassWrite, "writing %s", name)
		}
	}
	return nil
}

// WriteJar writes every class into a new jar at path.
func (s *Store) WriteJar(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrClassWrite, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, errors.ErrClassWrite, "closing %s", path)
		}
	}()

	zw := zip.NewWriter(f)
	for _, name := range s.Names() {
		cb, _ := s.Get(name)
		data, err := cb.Bytes()
		if err != nil {
			return err
		}
		w, err := zw.Create(name + ".class")
		if err != nil {
			return errors.Wrapf(err, errors.ErrClassWrite, "adding %s to %s", name, path)
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, errors.ErrClassWrite, "writing %s to %s", name, path)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrClassWrite, "finishing %s", path)
	}
	return nil
}

// ClassBuilder accumulates one generated class. Methods may be added from
// several goroutines.
type ClassBuilder struct {
	Name string

	mu         sync.Mutex
	visited    bool
	version    uint16
	access     uint16
	superName  string
	interfaces []string
	methods    map[string]*bytecode.MethodBuilder
	order      []string
}

// Visit sets the class header.
func (c *ClassBuilder) Visit(version, access uint16, superName string, interfaces []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visited = true
	c.version = version
	c.access = access
	c.superName = superName
	c.interfaces = append([]string(nil), interfaces...)
}

// Access returns the class access flags set by Visit.
func (c *ClassBuilder) Access() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// SuperName returns the superclass set by Visit.
func (c *ClassBuilder) SuperName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.superName
}

// Interfaces returns the interfaces set by Visit.
func (c *ClassBuilder) Interfaces() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.interfaces...)
}

// AddMethod returns a new method builder, or created=false and the existing
// builder when a method with the same name and descriptor was already added.
func (c *ClassBuilder) AddMethod(access uint16, name, descriptor string, exceptions []string) (m *bytecode.MethodBuilder, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := name + descriptor
	if existing, ok := c.methods[key]; ok {
		return existing, false
	}
	m = bytecode.NewMethodBuilder(access, name, descriptor, exceptions)
	c.methods[key] = m
	c.order = append(c.order, key)
	return m, true
}

// Method looks up a method by name and descriptor.
func (c *ClassBuilder) Method(name, descriptor string) *bytecode.MethodBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.methods[name+descriptor]
}

// Methods returns the methods in insertion order.
func (c *ClassBuilder) Methods() []*bytecode.MethodBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*bytecode.MethodBuilder, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.methods[key])
	}
	return out
}

// Bytes assembles the class file.
func (c *ClassBuilder) Bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.visited {
		return nil, errors.Newf(errors.ErrClassWrite, "class %s has no header", c.Name)
	}

	pool := classfile.NewConstantPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: c.version,
		AccessFlags:  c.access,
		ThisClass:    pool.Class(c.Name),
	}
	if c.superName != "" {
		cf.SuperClass = pool.Class(c.superName)
	}
	for _, itf := range c.interfaces {
		cf.Interfaces = append(cf.Interfaces, pool.Class(itf))
	}

	for _, key := range c.order {
		m := c.methods[key]
		if !m.Ended() {
			return nil, errors.Newf(errors.ErrClassWrite, "method %s.%s%s was never ended", c.Name, m.Name, m.Descriptor)
		}
		pool.Utf8(m.Name)
		pool.Utf8(m.Descriptor)
		mi := classfile.MethodInfo{
			AccessFlags: m.Access,
			Name:        m.Name,
			Descriptor:  m.Descriptor,
		}
		if m.Access&(classfile.AccAbstract|classfile.AccNative) == 0 {
			pool.Utf8("Code")
			code, err := bytecode.Assemble(m, pool)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrClassWrite, "assembling %s", c.Name)
			}
			mi.Code = code
		}
		if len(m.Exceptions) > 0 {
			pool.Utf8("Exceptions")
			mi.Attributes = append(mi.Attributes, classfile.AttributeInfo{
				Name: "Exceptions",
				Data: exceptionsAttribute(pool, m.Exceptions),
			})
		}
		cf.Methods = append(cf.Methods, mi)
	}
	cf.ConstantPool = pool.Entries()

	var buf bytes.Buffer
	if err := classfile.Write(&buf, cf); err != nil {
		return nil, errors.Wrapf(err, errors.ErrClassWrite, "writing %s", c.Name)
	}
	return buf.Bytes(), nil
}

func exceptionsAttribute(pool *classfile.ConstantPoolBuilder, exceptions []string) []byte {
	data := make([]byte, 0, 2+2*len(exceptions))
	data = append(data, byte(len(exceptions)>>8), byte(len(exceptions)))
	for _, e := range exceptions {
		idx := pool.Class(e)
		data = append(data, byte(idx>>8), byte(idx))
	}
	return data
}

func (c *ClassBuilder) String() string {
	return fmt.Sprintf("%s (%d methods)", c.Name, len(c.Methods()))
}
