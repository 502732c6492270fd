package corelib

import (
	"strings"

	"github.com/daimatz/jdesugar/pkg/errors"
	"github.com/daimatz/jdesugar/pkg/typeindex"
)

// IsRenamed reports whether a core library type moves to the private
// namespace: either it matches a configured prefix, or it is a class
// desugaring generates under java/. Nothing is renamed when no prefix is
// configured.
func (s *Support) IsRenamed(name string) bool {
	unprefixed := s.rewriter.Unprefix(name)
	if !strings.HasPrefix(unprefixed, LibraryRoot) || len(s.renamedPrefixes) == 0 {
		return false
	}
	if LooksSynthetic(unprefixed) {
		return true
	}
	for _, prefix := range s.renamedPrefixes {
		if strings.HasPrefix(unprefixed, prefix) {
			return true
		}
	}
	return false
}

// Rename maps java/X to j$/X. Other names are returned unprefixed but
// otherwise unchanged.
func (s *Support) Rename(name string) string {
	name = s.rewriter.Unprefix(name)
	if strings.HasPrefix(name, LibraryRoot) {
		return PrivateRoot + name[len(LibraryRoot):]
	}
	return name
}

// MoveTarget returns the renamed owner a static member was moved to. Only
// owner and name are matched; overloads share a target.
func (s *Support) MoveTarget(owner, name string) (string, bool) {
	target, ok := s.memberMoves[s.rewriter.Unprefix(owner)+"#"+name]
	return target, ok
}

// IsExcluded reports whether owner#name is exempt from emulation.
func (s *Support) IsExcluded(owner, name string) bool {
	return s.excluded[s.rewriter.Unprefix(owner)+"#"+name]
}

// EmulatedCoreClassOrInterface returns the resolved type when name is a
// java/util/ class or interface, not renamed, that is a subtype of an emulated
// interface. It returns nil for every other name, including user types. A
// candidate missing from the target runtime is an error.
func (s *Support) EmulatedCoreClassOrInterface(name string) (*typeindex.Type, error) {
	if LooksSynthetic(name) {
		return nil, nil
	}
	unprefixed := s.rewriter.Unprefix(name)
	if !strings.HasPrefix(unprefixed, UtilityRoot) || s.IsRenamed(unprefixed) {
		return nil, nil
	}

	t, err := s.index.Resolve(name)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeNotFound, "loading %s", name)
	}
	ok, err := s.assignableToEmulated(t)
	if err != nil || !ok {
		return nil, err
	}
	return t, nil
}

// IsEmulatedCoreClassOrInterface is the boolean form of
// EmulatedCoreClassOrInterface.
func (s *Support) IsEmulatedCoreClassOrInterface(name string) (bool, error) {
	t, err := s.EmulatedCoreClassOrInterface(name)
	return t != nil, err
}

func (s *Support) assignableToEmulated(t *typeindex.Type) (bool, error) {
	for _, itf := range s.emulatedInterfaces {
		ok, err := typeindex.IsAssignable(s.index, itf, t)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
