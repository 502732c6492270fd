package corelib

import (
	"sort"
	"sync"

	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/classstore"
)

// DispatchSuffix names the generated dispatch class of an interface.
const DispatchSuffix = "$$Dispatch"

// ShimRegistry maps an interface owner to its generated dispatch class. It
// only grows; every owner gets at most one class per run.
type ShimRegistry struct {
	store *classstore.Store

	mu      sync.Mutex
	classes map[string]*classstore.ClassBuilder
}

// NewShimRegistry creates a registry that emits dispatch classes into store.
func NewShimRegistry(store *classstore.Store) *ShimRegistry {
	return &ShimRegistry{
		store:   store,
		classes: make(map[string]*classstore.ClassBuilder),
	}
}

// DispatchClass returns owner's dispatch class, creating it on first use.
func (r *ShimRegistry) DispatchClass(owner string) (cb *classstore.ClassBuilder, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.classes[owner]; ok {
		return cb, false, nil
	}

	name := owner + DispatchSuffix
	cb, err = r.store.Add(name)
	if err != nil {
		return nil, false, err
	}
	// Public so dispatch methods can be called from anywhere
	cb.Visit(classfile.Version7, classfile.AccPublic|classfile.AccSynthetic, "java/lang/Object", nil)
	r.classes[owner] = cb
	return cb, true, nil
}

// Lookup returns owner's dispatch class if one was created.
func (r *ShimRegistry) Lookup(owner string) (*classstore.ClassBuilder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.classes[owner]
	return cb, ok
}

// Owners returns the interfaces that have a dispatch class, sorted.
func (r *ShimRegistry) Owners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make([]string, 0, len(r.classes))
	for o := range r.classes {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners
}

// Store returns the sink dispatch classes are written to.
func (r *ShimRegistry) Store() *classstore.Store {
	return r.store
}
