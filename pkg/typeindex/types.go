// Package typeindex resolves internal type names of the target runtime to
// type descriptors: supertype, interfaces and declared methods with their
// modifiers. It replaces live class loading with a pure lookup service.
package typeindex

import (
	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/errors"
)

// Index resolves internal names such as "java/util/Map". Implementations must
// be safe for concurrent use and must return ErrTypeNotFound (as an
// errors.ErrTypeNotFound coded error) for unknown names.
type Index interface {
	Resolve(name string) (*Type, error)
}

// Lister is implemented by indexes that can enumerate their types.
type Lister interface {
	Names() ([]string, error)
}

// Type describes one class or interface.
type Type struct {
	Name           string
	Access         uint16
	SuperName      string // "" for java/lang/Object and for interfaces built without one
	InterfaceNames []string
	Methods        []*Method
}

// Method is a declared method.
type Method struct {
	Access     uint16
	Name       string
	Descriptor string
	Exceptions []string // checked exceptions from the throws clause
	Owner      *Type
}

// IsInterface reports whether t is an interface.
func (t *Type) IsInterface() bool {
	return t.Access&classfile.AccInterface != 0
}

// DeclaredMethod finds a method declared directly on t.
func (t *Type) DeclaredMethod(name, descriptor string) *Method {
	for _, m := range t.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

func (t *Type) String() string { return t.Name }

// IsStatic reports whether ACC_STATIC is set.
func (m *Method) IsStatic() bool { return m.Access&classfile.AccStatic != 0 }

// IsAbstract reports whether ACC_ABSTRACT is set.
func (m *Method) IsAbstract() bool { return m.Access&classfile.AccAbstract != 0 }

// IsPrivate reports whether ACC_PRIVATE is set.
func (m *Method) IsPrivate() bool { return m.Access&classfile.AccPrivate != 0 }

// IsDefault reports whether m is an interface default method: a public,
// non-abstract, non-static instance method declared by an interface.
func (m *Method) IsDefault() bool {
	return m.Owner != nil && m.Owner.IsInterface() &&
		m.Access&(classfile.AccAbstract|classfile.AccStatic|classfile.AccPrivate) == 0
}

func (m *Method) String() string {
	owner := "?"
	if m.Owner != nil {
		owner = m.Owner.Name
	}
	return owner + "." + m.Name + m.Descriptor
}

// notFound builds the fatal lookup error.
func notFound(name string) error {
	return errors.Newf(errors.ErrTypeNotFound, "type %s not found in target runtime", name).
		WithDetail("type", name)
}

// FromClassFile converts a parsed class file into a Type. rename is applied to
// every referenced type name (use nil for identity).
func FromClassFile(cf *classfile.ClassFile, rename func(string) string) (*Type, error) {
	if rename == nil {
		rename = func(s string) string { return s }
	}
	name, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	itfs, err := cf.InterfaceNames()
	if err != nil {
		return nil, err
	}

	t := &Type{
		Name:   rename(name),
		Access: cf.AccessFlags,
	}
	if super := cf.SuperClassName(); super != "" {
		t.SuperName = rename(super)
	}
	for _, itf := range itfs {
		t.InterfaceNames = append(t.InterfaceNames, rename(itf))
	}
	for i := range cf.Methods {
		mi := &cf.Methods[i]
		throws, err := mi.ExceptionNames(cf.ConstantPool)
		if err != nil {
			return nil, err
		}
		for j, exc := range throws {
			throws[j] = rename(exc)
		}
		t.Methods = append(t.Methods, &Method{
			Access:     mi.AccessFlags,
			Name:       mi.Name,
			Descriptor: mi.Descriptor,
			Exceptions: throws,
			Owner:      t,
		})
	}
	return t, nil
}
