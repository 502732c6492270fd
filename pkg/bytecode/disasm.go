package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the method body.
func (m *MethodBuilder) Disassemble() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; %s%s (access 0x%04X)\n", m.Name, m.Descriptor, m.Access))
	for _, insn := range m.insns {
		sb.WriteString(insn.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (insn Instruction) String() string {
	switch insn.Kind {
	case KindLabel:
		return fmt.Sprintf("L%d:", insn.Label.id)
	case KindFrame:
		return "    FRAME SAME"
	case KindVar:
		return fmt.Sprintf("    %s %d", OpcodeName(insn.Opcode), insn.Var)
	case KindType:
		return fmt.Sprintf("    %s %s", OpcodeName(insn.Opcode), insn.Type)
	case KindJump:
		return fmt.Sprintf("    %s L%d", OpcodeName(insn.Opcode), insn.Label.id)
	case KindMethod:
		s := fmt.Sprintf("    %s %s.%s %s", OpcodeName(insn.Opcode), insn.Owner, insn.Name, insn.Descriptor)
		if insn.Interface {
			s += " (itf)"
		}
		return s
	default:
		return "    " + OpcodeName(insn.Opcode)
	}
}
