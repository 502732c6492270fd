package corelib

import (
	"github.com/daimatz/jdesugar/pkg/bytecode"
	"github.com/daimatz/jdesugar/pkg/errors"
	"github.com/daimatz/jdesugar/pkg/typeindex"
)

// CoreInterfaceRewritingTarget decides whether a call site must go through
// the companion class of an emulated or renamed core interface, and returns
// that interface. op is one of the four invoke opcodes and itf is the call
// site's interface flag. A nil type with a nil error means the call is left
// alone. The result is only ever non-nil for core library owners.
func (s *Support) CoreInterfaceRewritingTarget(op byte, owner, name, desc string, itf bool) (*typeindex.Type, error) {
	switch op {
	case bytecode.OpInvokestatic, bytecode.OpInvokespecial, bytecode.OpInvokevirtual, bytecode.OpInvokeinterface:
	default:
		return nil, errors.Newf(errors.ErrInvalidArg, "not an invoke opcode: 0x%02x", op)
	}
	isStatic := op == bytecode.OpInvokestatic
	isSpecial := op == bytecode.OpInvokespecial

	if LooksSynthetic(owner) {
		// Regular desugaring handles generated classes
		return nil, nil
	}
	if !itf && (isStatic || isSpecial) {
		// Statically dispatched calls on classes never need rewriting
		return nil, nil
	}

	var t *typeindex.Type
	if s.IsRenamed(owner) {
		// Only static and super calls on renamed interfaces go to a companion
		if !itf || !(isStatic || isSpecial) {
			return nil, nil
		}
		resolved, err := s.index.Resolve(owner)
		if err != nil {
			return nil, err
		}
		t = resolved
	} else {
		resolved, err := s.EmulatedCoreClassOrInterface(owner)
		if err != nil || resolved == nil {
			return nil, err
		}
		t = resolved
	}

	if t.IsInterface() != itf {
		return nil, errors.Newf(errors.ErrFlagMismatch, "%s expected to be interface: %t", owner, itf).
			WithDetail("owner", owner)
	}

	if isStatic {
		s.logger.Trace().Str("owner", owner).Str("method", name+desc).Str("target", t.Name).Msg("Static interface call redirected")
		return t, nil
	}

	callee, err := FindInterfaceMethod(s.index, t, name, desc)
	if err != nil {
		return nil, err
	}
	if callee == nil || callee.IsAbstract() {
		if isSpecial {
			return nil, errors.Newf(errors.ErrUnsupportedSuperCall,
				"couldn't resolve interface super call %s.super.%s : %s", owner, name, desc)
		}
		return nil, nil
	}
	if s.IsExcluded(callee.Owner.Name, callee.Name) {
		return nil, nil
	}

	declaring := callee.Owner
	if s.IsRenamed(declaring.Name) {
		return s.redirect(owner, name, desc, declaring), nil
	}
	ok, err := s.assignableToEmulated(declaring)
	if err != nil {
		return nil, err
	}
	if ok {
		return s.redirect(owner, name, desc, declaring), nil
	}

	// The default lives in a supertype of an emulated interface, which is not
	// desugared itself. Use the emulated interface between owner and the
	// declaring type instead, and insist on a single one.
	var roots []*typeindex.Type
	for _, emulated := range s.emulatedInterfaces {
		below, err := typeindex.IsAssignable(s.index, emulated, t)
		if err != nil {
			return nil, err
		}
		if !below {
			continue
		}
		above, err := typeindex.IsAssignable(s.index, declaring, emulated)
		if err != nil {
			return nil, err
		}
		if above {
			roots = append(roots, emulated)
		}
	}
	switch len(roots) {
	case 0:
		return nil, errors.Newf(errors.ErrSearchInvariant,
			"no emulated interface between %s and %s for %s", owner, declaring.Name, callee)
	case 1:
		return s.redirect(owner, name, desc, roots[0]), nil
	default:
		return nil, errors.Newf(errors.ErrAmbiguousSubstitute,
			"ambiguous emulation substitute for %s: %s and %s", callee, roots[0].Name, roots[1].Name).
			WithDetail("candidates", typeNames(roots))
	}
}

func (s *Support) redirect(owner, name, desc string, target *typeindex.Type) *typeindex.Type {
	s.logger.Trace().
		Str("owner", owner).
		Str("method", name+desc).
		Str("target", target.Name).
		Msg("Default method call redirected")
	return target
}

func typeNames(types []*typeindex.Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name
	}
	return names
}
