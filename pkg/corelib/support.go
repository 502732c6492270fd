// Package corelib decides how core library types and members are desugared:
// which types are renamed into a private namespace, which static members move
// to a different owner, which interfaces get their default methods emulated,
// and where an individual call site must be redirected. It also emits the
// dispatch methods that pick between a receiver's own override and the bundled
// default implementation at runtime.
package corelib

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/daimatz/jdesugar/pkg/errors"
	"github.com/daimatz/jdesugar/pkg/logging"
	"github.com/daimatz/jdesugar/pkg/naming"
	"github.com/daimatz/jdesugar/pkg/typeindex"
)

const (
	// LibraryRoot is the namespace of the bundled standard library.
	LibraryRoot = "java/"
	// PrivateRoot replaces LibraryRoot in renamed types.
	PrivateRoot = "j$/"
	// UtilityRoot is the only namespace eligible for default method emulation.
	UtilityRoot = "java/util/"

	// CompanionSuffix names the class holding an interface's default method
	// bodies as static methods.
	CompanionSuffix = "$$CC"
	lambdaMarker    = "$$Lambda$"
)

// Options is the declarative configuration of a run.
type Options struct {
	// RenamedPrefixes are internal name prefixes under java/ moved to j$/.
	RenamedPrefixes []string
	// EmulatedInterfaces are interfaces under java/util/ whose default
	// methods are dispatched through generated shims.
	EmulatedInterfaces []string
	// MemberMoves are "owner#name->target" rules.
	MemberMoves []string
	// ExcludeFromEmulation are "owner#name" members never emulated.
	ExcludeFromEmulation []string
}

// Support is the decision authority consulted while rewriting classes. It is
// immutable after New apart from its ShimRegistry, and safe for concurrent
// use.
type Support struct {
	rewriter *naming.Rewriter
	index    typeindex.Index
	shims    *ShimRegistry
	logger   zerolog.Logger

	renamedPrefixes    []string
	excluded           map[string]bool
	emulatedInterfaces []*typeindex.Type
	memberMoves        map[string]string
}

// New validates opts against the target runtime index and builds a Support.
// Every validation failure is an ErrConfigInvalid error, except for emulated
// interfaces missing from the index, which fail with ErrTypeNotFound.
func New(rewriter *naming.Rewriter, index typeindex.Index, shims *ShimRegistry, opts Options) (*Support, error) {
	s := &Support{
		rewriter:    rewriter,
		index:       index,
		shims:       shims,
		logger:      logging.GetLogger("corelib"),
		excluded:    make(map[string]bool, len(opts.ExcludeFromEmulation)),
		memberMoves: make(map[string]string, len(opts.MemberMoves)),
	}

	for _, prefix := range opts.RenamedPrefixes {
		if !strings.HasPrefix(prefix, LibraryRoot) {
			return nil, errors.Newf(errors.ErrConfigInvalid, "renamed prefix %q is not under %s", prefix, LibraryRoot)
		}
	}
	s.renamedPrefixes = dedupe(opts.RenamedPrefixes)

	for _, member := range opts.ExcludeFromEmulation {
		s.excluded[member] = true
	}

	for _, itf := range dedupe(opts.EmulatedInterfaces) {
		if !strings.HasPrefix(itf, UtilityRoot) {
			return nil, errors.Newf(errors.ErrConfigInvalid, "emulated interface %s is not under %s", itf, UtilityRoot)
		}
		t, err := index.Resolve(rewriter.Prefix() + itf)
		if err != nil {
			return nil, err
		}
		if !t.IsInterface() {
			return nil, errors.Newf(errors.ErrConfigInvalid, "emulated interface %s is not an interface", itf)
		}
		s.emulatedInterfaces = append(s.emulatedInterfaces, t)
	}

	// IsRenamed and Rename only need the fields set above
	for _, move := range opts.MemberMoves {
		source, target, err := s.parseMove(move)
		if err != nil {
			return nil, err
		}
		if _, dup := s.memberMoves[source]; dup {
			return nil, errors.Newf(errors.ErrConfigInvalid, "duplicate member move %q", move)
		}
		s.memberMoves[source] = s.Rename(target)
	}

	s.logger.Debug().
		Int("renamed_prefixes", len(s.renamedPrefixes)).
		Int("emulated_interfaces", len(s.emulatedInterfaces)).
		Int("member_moves", len(s.memberMoves)).
		Int("excluded", len(s.excluded)).
		Msg("Core library support configured")
	return s, nil
}

func (s *Support) parseMove(move string) (source, target string, err error) {
	var parts []string
	for _, p := range strings.Split(move, "->") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 2 {
		return "", "", errors.Newf(errors.ErrConfigInvalid, "member move %q does not split into source and target", move)
	}
	source, target = parts[0], parts[1]

	if !strings.HasPrefix(source, LibraryRoot) {
		return "", "", errors.Newf(errors.ErrConfigInvalid, "unexpected member in move %q", move)
	}
	sep := strings.IndexByte(source, '#')
	if sep <= 0 || sep != strings.LastIndexByte(source, '#') {
		return "", "", errors.Newf(errors.ErrConfigInvalid, "invalid member in move %q", move)
	}
	if s.IsRenamed(source[:sep]) {
		return "", "", errors.Newf(errors.ErrConfigInvalid, "owner already renamed, no need to move it: %q", move)
	}
	if !s.IsRenamed(target) {
		return "", "", errors.Newf(errors.ErrConfigInvalid, "move target not renamed: %q", move)
	}
	if s.excluded[source] {
		return "", "", errors.Newf(errors.ErrConfigInvalid, "moved member %q overlaps with excluded members", move)
	}
	return source, target, nil
}

// Shims returns the registry dispatch classes are recorded in.
func (s *Support) Shims() *ShimRegistry {
	return s.shims
}

// EmulatedInterfaces returns the configured emulated interfaces as resolved
// from the target runtime.
func (s *Support) EmulatedInterfaces() []*typeindex.Type {
	return append([]*typeindex.Type(nil), s.emulatedInterfaces...)
}

// LooksSynthetic reports whether name belongs to a class desugaring itself
// generates: lambda classes, companion classes and dispatch classes.
func LooksSynthetic(name string) bool {
	return strings.Contains(name, lambdaMarker) ||
		strings.HasSuffix(name, CompanionSuffix) ||
		strings.HasSuffix(name, DispatchSuffix)
}

// CompanionClass returns the class holding owner's default method bodies.
func CompanionClass(owner string) string {
	return owner + CompanionSuffix
}

// CompanionDescriptor prepends an owner-typed receiver parameter to desc.
func CompanionDescriptor(owner, desc string) string {
	return "(L" + owner + ";" + desc[1:]
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
