// Package bytecode builds JVM method bodies as ordered instruction lists and
// assembles them into Code attributes.
package bytecode

import (
	"fmt"

	"github.com/daimatz/jdesugar/pkg/descriptor"
)

// Opcodes
const (
	OpNop         = 0x00
	OpAconstNull  = 0x01
	OpIconstM1    = 0x02
	OpIconst0     = 0x03
	OpIconst1     = 0x04
	OpIconst2     = 0x05
	OpIconst3     = 0x06
	OpIconst4     = 0x07
	OpIconst5     = 0x08
	OpIload       = 0x15
	OpLload       = 0x16
	OpFload       = 0x17
	OpDload       = 0x18
	OpAload       = 0x19
	OpIload0      = 0x1A
	OpLload0      = 0x1E
	OpFload0      = 0x22
	OpDload0      = 0x26
	OpAload0      = 0x2A
	OpIstore      = 0x36
	OpLstore      = 0x37
	OpFstore      = 0x38
	OpDstore      = 0x39
	OpAstore      = 0x3A
	OpIstore0     = 0x3B
	OpLstore0     = 0x3F
	OpFstore0     = 0x43
	OpDstore0     = 0x47
	OpAstore0     = 0x4B
	OpPop         = 0x57
	OpDup         = 0x59
	OpIfeq        = 0x99
	OpIfne        = 0x9A
	OpIflt        = 0x9B
	OpIfge        = 0x9C
	OpIfgt        = 0x9D
	OpIfle        = 0x9E
	OpIfIcmpeq    = 0x9F
	OpIfIcmpne    = 0xA0
	OpIfIcmplt    = 0xA1
	OpIfIcmpge    = 0xA2
	OpIfIcmpgt    = 0xA3
	OpIfIcmple    = 0xA4
	OpIfAcmpeq    = 0xA5
	OpIfAcmpne    = 0xA6
	OpGoto        = 0xA7
	OpIreturn     = 0xAC
	OpLreturn     = 0xAD
	OpFreturn     = 0xAE
	OpDreturn     = 0xAF
	OpAreturn     = 0xB0
	OpReturn      = 0xB1
	OpInvokevirtual   = 0xB6
	OpInvokespecial   = 0xB7
	OpInvokestatic    = 0xB8
	OpInvokeinterface = 0xB9
	OpNew         = 0xBB
	OpAnewarray   = 0xBD
	OpAthrow      = 0xBF
	OpCheckcast   = 0xC0
	OpInstanceof  = 0xC1
	OpWide        = 0xC4
	OpIfnull      = 0xC6
	OpIfnonnull   = 0xC7
)

var opcodeNames = map[byte]string{
	OpNop:             "NOP",
	OpAconstNull:      "ACONST_NULL",
	OpIconstM1:        "ICONST_M1",
	OpIconst0:         "ICONST_0",
	OpIconst1:         "ICONST_1",
	OpIconst2:         "ICONST_2",
	OpIconst3:         "ICONST_3",
	OpIconst4:         "ICONST_4",
	OpIconst5:         "ICONST_5",
	OpIload:           "ILOAD",
	OpLload:           "LLOAD",
	OpFload:           "FLOAD",
	OpDload:           "DLOAD",
	OpAload:           "ALOAD",
	OpIstore:          "ISTORE",
	OpLstore:          "LSTORE",
	OpFstore:          "FSTORE",
	OpDstore:          "DSTORE",
	OpAstore:          "ASTORE",
	OpPop:             "POP",
	OpDup:             "DUP",
	OpIfeq:            "IFEQ",
	OpIfne:            "IFNE",
	OpIflt:            "IFLT",
	OpIfge:            "IFGE",
	OpIfgt:            "IFGT",
	OpIfle:            "IFLE",
	OpIfIcmpeq:        "IF_ICMPEQ",
	OpIfIcmpne:        "IF_ICMPNE",
	OpIfIcmplt:        "IF_ICMPLT",
	OpIfIcmpge:        "IF_ICMPGE",
	OpIfIcmpgt:        "IF_ICMPGT",
	OpIfIcmple:        "IF_ICMPLE",
	OpIfAcmpeq:        "IF_ACMPEQ",
	OpIfAcmpne:        "IF_ACMPNE",
	OpGoto:            "GOTO",
	OpIreturn:         "IRETURN",
	OpLreturn:         "LRETURN",
	OpFreturn:         "FRETURN",
	OpDreturn:         "DRETURN",
	OpAreturn:         "ARETURN",
	OpReturn:          "RETURN",
	OpInvokevirtual:   "INVOKEVIRTUAL",
	OpInvokespecial:   "INVOKESPECIAL",
	OpInvokestatic:    "INVOKESTATIC",
	OpInvokeinterface: "INVOKEINTERFACE",
	OpNew:             "NEW",
	OpAnewarray:       "ANEWARRAY",
	OpAthrow:          "ATHROW",
	OpCheckcast:       "CHECKCAST",
	OpInstanceof:      "INSTANCEOF",
	OpIfnull:          "IFNULL",
	OpIfnonnull:       "IFNONNULL",
}

// OpcodeName returns the mnemonic for op.
func OpcodeName(op byte) string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_0x%02X", op)
}

// LoadOpcode returns the typed local-variable load instruction for t.
func LoadOpcode(t descriptor.Type) byte {
	switch t.Sort {
	case descriptor.Boolean, descriptor.Char, descriptor.Byte, descriptor.Short, descriptor.Int:
		return OpIload
	case descriptor.Long:
		return OpLload
	case descriptor.Float:
		return OpFload
	case descriptor.Double:
		return OpDload
	default:
		return OpAload
	}
}

// ReturnOpcode returns the typed return instruction for t.
func ReturnOpcode(t descriptor.Type) byte {
	switch t.Sort {
	case descriptor.Void:
		return OpReturn
	case descriptor.Boolean, descriptor.Char, descriptor.Byte, descriptor.Short, descriptor.Int:
		return OpIreturn
	case descriptor.Long:
		return OpLreturn
	case descriptor.Float:
		return OpFreturn
	case descriptor.Double:
		return OpDreturn
	default:
		return OpAreturn
	}
}

func isLoad(op byte) bool  { return op >= OpIload && op <= OpAload }
func isStore(op byte) bool { return op >= OpIstore && op <= OpAstore }

// shortVarBase returns the *_0 form of a load/store opcode.
func shortVarBase(op byte) byte {
	switch {
	case isLoad(op):
		return OpIload0 + (op-OpIload)*4
	default:
		return OpIstore0 + (op-OpIstore)*4
	}
}

// varSize returns the slots moved by a load or store.
func varSize(op byte) int {
	switch op {
	case OpLload, OpDload, OpLstore, OpDstore:
		return 2
	default:
		return 1
	}
}

func isConditionalJump(op byte) bool {
	return (op >= OpIfeq && op <= OpIfAcmpne) || op == OpIfnull || op == OpIfnonnull
}
