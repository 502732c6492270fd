package corelib

import (
	"github.com/daimatz/jdesugar/pkg/bytecode"
	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/descriptor"
	"github.com/daimatz/jdesugar/pkg/errors"
)

// nonDefault are the access flags that rule out a default method.
const nonDefault = classfile.AccAbstract | classfile.AccNative | classfile.AccStatic | classfile.AccBridge

// RegisterIfEmulatedCoreInterface adds a dispatch method for the given
// method declaration if owner is an emulated core interface. The dispatch
// method is static, takes the receiver as an extra first argument, and calls
// the receiver's own implementation when the receiver implements the renamed
// interface, or the default implementation in owner's companion class
// otherwise. Registering the same method twice is a no-op.
func (s *Support) RegisterIfEmulatedCoreInterface(access uint16, owner, name, desc string, exceptions []string) error {
	_, err := s.registerDispatch(access, owner, name, desc, exceptions)
	return err
}

// registerDispatch reports whether a dispatch method was added.
func (s *Support) registerDispatch(access uint16, owner, name, desc string, exceptions []string) (bool, error) {
	emulated, err := s.EmulatedCoreClassOrInterface(owner)
	if err != nil || emulated == nil {
		return false, err
	}
	if !emulated.IsInterface() {
		return false, errors.Newf(errors.ErrInvalidArg, "shouldn't be called for a class: %s.%s", owner, name)
	}
	if access&nonDefault != 0 {
		return false, errors.Newf(errors.ErrInvalidArg, "should only be called for default methods: %s.%s", owner, name)
	}

	method, err := descriptor.ParseMethod(desc)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrInvalidArg, "method %s.%s", owner, name)
	}
	companionDesc := CompanionDescriptor(owner, desc)
	companion, err := descriptor.ParseMethod(companionDesc)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrInvalidArg, "method %s.%s", owner, name)
	}

	helper, created, err := s.shims.DispatchClass(owner)
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Debug().Str("owner", owner).Str("class", helper.Name).Msg("Dispatch class created")
	}
	mb, fresh := helper.AddMethod(access|classfile.AccStatic, name, companionDesc, exceptions)
	if !fresh {
		return false, nil
	}

	// Prefer the receiver's own implementation, found through the interface
	// the emulated interface is renamed to
	callCompanion := mb.NewLabel()
	emulationInterface := s.Rename(owner)
	mb.VarInsn(bytecode.OpAload, 0)
	mb.TypeInsn(bytecode.OpInstanceof, emulationInterface)
	mb.JumpInsn(bytecode.OpIfeq, callCompanion)
	mb.VarInsn(bytecode.OpAload, 0)
	mb.TypeInsn(bytecode.OpCheckcast, emulationInterface)
	loadArgs(mb, method, 1)
	mb.MethodInsn(bytecode.OpInvokeinterface, emulationInterface, name, desc, true)
	mb.Insn(bytecode.ReturnOpcode(method.Return))

	mb.Mark(callCompanion)
	mb.Frame(bytecode.FrameSame)

	// Fall back to the static type's default implementation
	loadArgs(mb, companion, 0)
	mb.MethodInsn(bytecode.OpInvokestatic, CompanionClass(owner), name, companionDesc, false)
	mb.Insn(bytecode.ReturnOpcode(companion.Return))
	mb.End()

	s.logger.Trace().Str("owner", owner).Str("method", name+desc).Msg("Dispatch method generated")
	return true, nil
}

// loadArgs loads m's arguments from consecutive local slots starting at slot.
func loadArgs(mb *bytecode.MethodBuilder, m *descriptor.Method, slot int) {
	for _, arg := range m.Args {
		mb.VarInsn(bytecode.LoadOpcode(arg), slot)
		slot += arg.Size()
	}
}
