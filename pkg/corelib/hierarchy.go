package corelib

import (
	"sort"

	"github.com/daimatz/jdesugar/pkg/typeindex"
)

// CollectInterfaces returns every interface t implements, directly or through
// superclasses and superinterfaces, in discovery order. An interface t is
// included itself.
func CollectInterfaces(idx typeindex.Index, t *typeindex.Type) ([]*typeindex.Type, error) {
	var out []*typeindex.Type
	visited := make(map[string]bool)
	if err := collectInterfaces(idx, t, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectInterfaces(idx typeindex.Index, t *typeindex.Type, visited map[string]bool, out *[]*typeindex.Type) error {
	if t.IsInterface() {
		if visited[t.Name] {
			return nil
		}
		visited[t.Name] = true
		*out = append(*out, t)
	} else {
		super, err := typeindex.Superclass(idx, t)
		if err != nil {
			return err
		}
		if super != nil {
			if err := collectInterfaces(idx, super, visited, out); err != nil {
				return err
			}
		}
	}

	itfs, err := typeindex.Interfaces(idx, t)
	if err != nil {
		return err
	}
	for _, itf := range itfs {
		if err := collectInterfaces(idx, itf, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// SortMostSpecificFirst orders interfaces so that every interface precedes
// all of its superinterfaces: deeper interfaces first, ties kept in the given
// order.
func SortMostSpecificFirst(idx typeindex.Index, itfs []*typeindex.Type) error {
	depths := make(map[string]int, len(itfs))
	for _, itf := range itfs {
		if _, err := interfaceDepth(idx, itf, depths); err != nil {
			return err
		}
	}
	sort.SliceStable(itfs, func(i, j int) bool {
		return depths[itfs[i].Name] > depths[itfs[j].Name]
	})
	return nil
}

// interfaceDepth is 0 for an interface without superinterfaces, otherwise one
// more than its deepest superinterface.
func interfaceDepth(idx typeindex.Index, itf *typeindex.Type, memo map[string]int) (int, error) {
	if d, ok := memo[itf.Name]; ok {
		return d, nil
	}
	supers, err := typeindex.Interfaces(idx, itf)
	if err != nil {
		return 0, err
	}
	depth := 0
	for _, super := range supers {
		d, err := interfaceDepth(idx, super, memo)
		if err != nil {
			return 0, err
		}
		if d+1 > depth {
			depth = d + 1
		}
	}
	memo[itf.Name] = depth
	return depth, nil
}

// FindInterfaceMethod returns the interface method a call to name+desc on t
// binds to: the first inheritable declaration found searching t's interfaces
// most specific first. The result may be abstract, in which case it hides any
// default further up. nil means no interface declares the method.
func FindInterfaceMethod(idx typeindex.Index, t *typeindex.Type, name, desc string) (*typeindex.Method, error) {
	itfs, err := CollectInterfaces(idx, t)
	if err != nil {
		return nil, err
	}
	if err := SortMostSpecificFirst(idx, itfs); err != nil {
		return nil, err
	}
	for _, itf := range itfs {
		m := itf.DeclaredMethod(name, desc)
		if m != nil && !m.IsStatic() && !m.IsPrivate() {
			return m, nil
		}
	}
	return nil, nil
}
