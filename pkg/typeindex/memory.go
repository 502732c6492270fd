package typeindex

import (
	"sync"

	"github.com/daimatz/jdesugar/pkg/classfile"
)

// Memory is an in-memory index, typically fabricated by tests or assembled
// from already-parsed classes.
type Memory struct {
	mu    sync.RWMutex
	types map[string]*Type
	order []string
}

// NewMemory creates an empty index.
func NewMemory() *Memory {
	return &Memory{types: make(map[string]*Type)}
}

// Add registers t, replacing any type of the same name, and returns it.
func (m *Memory) Add(t *Type) *Type {
	for _, method := range t.Methods {
		method.Owner = t
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.types[t.Name]; !exists {
		m.order = append(m.order, t.Name)
	}
	m.types[t.Name] = t
	return t
}

// Resolve implements Index.
func (m *Memory) Resolve(name string) (*Type, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.types[name]; ok {
		return t, nil
	}
	return nil, notFound(name)
}

// Names implements Lister, in registration order.
func (m *Memory) Names() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

// Interface starts a public interface type extending supers.
func Interface(name string, supers ...string) *Type {
	return &Type{
		Name:           name,
		Access:         classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract,
		SuperName:      "java/lang/Object",
		InterfaceNames: supers,
	}
}

// Class starts a public class type.
func Class(name, super string, interfaces ...string) *Type {
	return &Type{
		Name:           name,
		Access:         classfile.AccPublic | classfile.AccSuper,
		SuperName:      super,
		InterfaceNames: interfaces,
	}
}

// WithMethod appends a declared method and returns t.
func (t *Type) WithMethod(access uint16, name, descriptor string) *Type {
	t.Methods = append(t.Methods, &Method{
		Access:     access,
		Name:       name,
		Descriptor: descriptor,
		Owner:      t,
	})
	return t
}

// WithDefault appends a public default method (interfaces) or a public
// concrete method (classes).
func (t *Type) WithDefault(name, descriptor string) *Type {
	return t.WithMethod(classfile.AccPublic, name, descriptor)
}

// WithAbstract appends a public abstract method.
func (t *Type) WithAbstract(name, descriptor string) *Type {
	return t.WithMethod(classfile.AccPublic|classfile.AccAbstract, name, descriptor)
}

// WithThrows sets the checked exceptions of the most recently appended method.
func (t *Type) WithThrows(exceptions ...string) *Type {
	if n := len(t.Methods); n > 0 {
		t.Methods[n-1].Exceptions = exceptions
	}
	return t
}
