package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/descriptor"
)

// unreachable marks the operand stack depth after an unconditional transfer.
const unreachable = -1

// Assemble encodes m into a Code attribute, interning every referenced
// constant into pool. Max stack and max locals are computed from the
// instruction stream; frames are written as a StackMapTable.
func Assemble(m *MethodBuilder, pool *classfile.ConstantPoolBuilder) (*classfile.CodeAttribute, error) {
	desc, err := descriptor.ParseMethod(m.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", m.Name, err)
	}

	// Pass 1: offsets
	offsets := make([]int, len(m.insns))
	labelOffsets := make(map[*Label]int)
	pc := 0
	for i, insn := range m.insns {
		offsets[i] = pc
		if insn.Kind == KindLabel {
			if _, dup := labelOffsets[insn.Label]; dup {
				return nil, fmt.Errorf("assemble %s: label L%d placed twice", m.Name, insn.Label.id)
			}
			labelOffsets[insn.Label] = pc
		}
		pc += insnSize(insn)
	}
	if pc > math.MaxUint16 {
		return nil, fmt.Errorf("assemble %s: code too large (%d bytes)", m.Name, pc)
	}

	// Pass 2: bytes, stack depth, frames
	var code bytes.Buffer
	maxLocals := desc.ArgSlots()
	if m.Access&classfile.AccStatic == 0 {
		maxLocals++
	}
	depth, maxStack := 0, 0
	labelDepth := make(map[*Label]int)
	var frameOffsets []int

	for i, insn := range m.insns {
		switch insn.Kind {
		case KindLabel:
			if d, ok := labelDepth[insn.Label]; ok {
				depth = d
			} else if depth == unreachable {
				depth = 0
			}
			continue
		case KindFrame:
			if insn.Frame != FrameSame {
				return nil, fmt.Errorf("assemble %s: unsupported frame kind %d", m.Name, insn.Frame)
			}
			frameOffsets = append(frameOffsets, offsets[i])
			continue
		}

		if depth == unreachable {
			return nil, fmt.Errorf("assemble %s: unreachable %s at offset %d", m.Name, OpcodeName(insn.Opcode), offsets[i])
		}

		delta, err := stackDelta(insn)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", m.Name, err)
		}
		depth += delta
		if depth < 0 {
			return nil, fmt.Errorf("assemble %s: operand stack underflow at offset %d", m.Name, offsets[i])
		}
		if depth > maxStack {
			maxStack = depth
		}

		switch insn.Kind {
		case KindInsn:
			code.WriteByte(insn.Opcode)
			switch insn.Opcode {
			case OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn, OpReturn, OpAthrow:
				depth = unreachable
			}

		case KindVar:
			writeVar(&code, insn.Opcode, insn.Var)
			if top := insn.Var + varSize(insn.Opcode); top > maxLocals {
				maxLocals = top
			}

		case KindType:
			code.WriteByte(insn.Opcode)
			putU2(&code, pool.Class(insn.Type))

		case KindJump:
			target, ok := labelOffsets[insn.Label]
			if !ok {
				return nil, fmt.Errorf("assemble %s: jump to unplaced label L%d", m.Name, insn.Label.id)
			}
			rel := target - offsets[i]
			if rel < math.MinInt16 || rel > math.MaxInt16 {
				return nil, fmt.Errorf("assemble %s: branch offset %d out of range", m.Name, rel)
			}
			code.WriteByte(insn.Opcode)
			putU2(&code, uint16(int16(rel)))
			labelDepth[insn.Label] = depth
			if insn.Opcode == OpGoto {
				depth = unreachable
			}

		case KindMethod:
			code.WriteByte(insn.Opcode)
			var idx uint16
			if insn.Interface {
				idx = pool.InterfaceMethodref(insn.Owner, insn.Name, insn.Descriptor)
			} else {
				idx = pool.Methodref(insn.Owner, insn.Name, insn.Descriptor)
			}
			putU2(&code, idx)
			if insn.Opcode == OpInvokeinterface {
				callee, _ := descriptor.ParseMethod(insn.Descriptor)
				code.WriteByte(byte(callee.ArgSlots() + 1))
				code.WriteByte(0)
			}
		}
	}

	attr := &classfile.CodeAttribute{
		MaxStack:  uint16(maxStack),
		MaxLocals: uint16(maxLocals),
		Code:      code.Bytes(),
	}
	if len(frameOffsets) > 0 {
		pool.Utf8("StackMapTable")
		attr.Attributes = append(attr.Attributes, classfile.AttributeInfo{
			Name: "StackMapTable",
			Data: encodeSameFrames(frameOffsets),
		})
	}
	return attr, nil
}

func insnSize(insn Instruction) int {
	switch insn.Kind {
	case KindInsn:
		return 1
	case KindVar:
		switch {
		case insn.Var <= 3:
			return 1
		case insn.Var <= math.MaxUint8:
			return 2
		default:
			return 4 // wide
		}
	case KindType, KindJump:
		return 3
	case KindMethod:
		if insn.Opcode == OpInvokeinterface {
			return 5
		}
		return 3
	default:
		return 0
	}
}

func putU2(code *bytes.Buffer, v uint16) {
	code.Write(binary.BigEndian.AppendUint16(nil, v))
}

func writeVar(code *bytes.Buffer, op byte, slot int) {
	switch {
	case slot <= 3:
		code.WriteByte(shortVarBase(op) + byte(slot))
	case slot <= math.MaxUint8:
		code.WriteByte(op)
		code.WriteByte(byte(slot))
	default:
		code.WriteByte(OpWide)
		code.WriteByte(op)
		putU2(code, uint16(slot))
	}
}

// stackDelta returns the net operand stack change of one instruction.
func stackDelta(insn Instruction) (int, error) {
	switch insn.Kind {
	case KindVar:
		switch {
		case isLoad(insn.Opcode):
			return varSize(insn.Opcode), nil
		case isStore(insn.Opcode):
			return -varSize(insn.Opcode), nil
		}
	case KindType:
		switch insn.Opcode {
		case OpCheckcast, OpInstanceof, OpAnewarray:
			return 0, nil
		case OpNew:
			return 1, nil
		}
	case KindJump:
		switch {
		case insn.Opcode == OpGoto:
			return 0, nil
		case insn.Opcode >= OpIfIcmpeq && insn.Opcode <= OpIfAcmpne:
			return -2, nil
		case isConditionalJump(insn.Opcode):
			return -1, nil
		}
	case KindMethod:
		callee, err := descriptor.ParseMethod(insn.Descriptor)
		if err != nil {
			return 0, err
		}
		delta := callee.Return.Size() - callee.ArgSlots()
		if insn.Opcode != OpInvokestatic {
			delta-- // receiver
		}
		return delta, nil
	case KindInsn:
		switch insn.Opcode {
		case OpNop:
			return 0, nil
		case OpAconstNull, OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5, OpDup:
			return 1, nil
		case OpPop, OpIreturn, OpFreturn, OpAreturn, OpAthrow:
			return -1, nil
		case OpLreturn, OpDreturn:
			return -2, nil
		case OpReturn:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("unsupported instruction %s", OpcodeName(insn.Opcode))
}

// encodeSameFrames writes a StackMapTable of same_frame entries.
func encodeSameFrames(offsets []int) []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(len(offsets)))
	prev := -1
	for _, off := range offsets {
		delta := off - prev - 1
		prev = off
		if delta <= 63 {
			out = append(out, byte(delta)) // same_frame
		} else {
			out = append(out, 251) // same_frame_extended
			out = binary.BigEndian.AppendUint16(out, uint16(delta))
		}
	}
	return out
}
