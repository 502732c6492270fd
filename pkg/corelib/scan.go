package corelib

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/logging"
	"github.com/daimatz/jdesugar/pkg/typeindex"
)

// RegisterEmulatedDefaults resolves every named type and registers a
// dispatch method for each default method of the emulated core interfaces
// among them. Names are processed by up to workers goroutines. It returns
// the number of dispatch methods added by this call; methods registered
// earlier are not counted again.
func (s *Support) RegisterEmulatedDefaults(ctx context.Context, names []string, workers int) (int, error) {
	done := logging.LogOperationStart(s.logger, "register emulated defaults")
	defer done()

	if workers < 1 {
		workers = 1
	}
	var registered atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range names {
		if gctx.Err() != nil {
			break
		}
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := s.registerDefaults(name)
			registered.Add(int64(n))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return int(registered.Load()), err
	}
	return int(registered.Load()), ctx.Err()
}

func (s *Support) registerDefaults(name string) (int, error) {
	t, err := s.EmulatedCoreClassOrInterface(name)
	if err != nil || t == nil || !t.IsInterface() {
		return 0, err
	}
	n := 0
	for _, m := range t.Methods {
		if !isDefaultDeclaration(m) {
			continue
		}
		added, err := s.registerDispatch(m.Access, t.Name, m.Name, m.Descriptor, m.Exceptions)
		if err != nil {
			return n, err
		}
		if added {
			n++
		}
	}
	return n, nil
}

// isDefaultDeclaration excludes private interface methods, which have bodies
// but are never inherited, and the class initializer.
func isDefaultDeclaration(m *typeindex.Method) bool {
	return m.Access&(nonDefault|classfile.AccPrivate) == 0 && m.Name != "<clinit>"
}
