package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdesugar/pkg/classfile"
)

// dispatchLike builds the instanceof/cast/invoke/fallback shape used by
// dispatch helpers, for a (receiver, long) -> int method.
func dispatchLike() *MethodBuilder {
	m := NewMethodBuilder(classfile.AccPublic|classfile.AccStatic, "f", "(Ljava/util/A;J)I", nil)
	fallback := m.NewLabel()
	m.VarInsn(OpAload, 0)
	m.TypeInsn(OpInstanceof, "j$/util/A")
	m.JumpInsn(OpIfeq, fallback)
	m.VarInsn(OpAload, 0)
	m.TypeInsn(OpCheckcast, "j$/util/A")
	m.VarInsn(OpLload, 1)
	m.MethodInsn(OpInvokeinterface, "j$/util/A", "f", "(J)I", true)
	m.Insn(OpIreturn)
	m.Mark(fallback)
	m.Frame(FrameSame)
	m.VarInsn(OpAload, 0)
	m.VarInsn(OpLload, 1)
	m.MethodInsn(OpInvokestatic, "java/util/A$$CC", "f", "(Ljava/util/A;J)I", false)
	m.Insn(OpIreturn)
	m.End()
	return m
}

func TestAssemble(t *testing.T) {
	pool := classfile.NewConstantPoolBuilder()
	code, err := Assemble(dispatchLike(), pool)
	require.NoError(t, err)

	// receiver + long on the stack before the interface call
	assert.Equal(t, uint16(3), code.MaxStack)
	assert.Equal(t, uint16(3), code.MaxLocals)

	c := code.Code
	require.Len(t, c, 24)
	assert.Equal(t, byte(OpAload0), c[0])
	assert.Equal(t, byte(OpInstanceof), c[1])
	assert.Equal(t, byte(OpIfeq), c[4])
	// ifeq at offset 4 jumps to the fallback at offset 18
	assert.Equal(t, []byte{0x00, 0x0E}, c[5:7])
	assert.Equal(t, byte(OpAload0), c[7])
	assert.Equal(t, byte(OpCheckcast), c[8])
	assert.Equal(t, byte(OpLload0+1), c[11])
	assert.Equal(t, byte(OpInvokeinterface), c[12])
	// count operand: receiver + long, then the zero byte
	assert.Equal(t, []byte{3, 0}, c[15:17])
	assert.Equal(t, byte(OpIreturn), c[17])
	assert.Equal(t, byte(OpAload0), c[18])
	assert.Equal(t, byte(OpLload0+1), c[19])
	assert.Equal(t, byte(OpInvokestatic), c[20])
	assert.Equal(t, byte(OpIreturn), c[23])

	require.Len(t, code.Attributes, 1)
	assert.Equal(t, "StackMapTable", code.Attributes[0].Name)
	// one same_frame at offset 18
	assert.Equal(t, []byte{0x00, 0x01, 18}, code.Attributes[0].Data)
}

func TestAssembleErrors(t *testing.T) {
	t.Run("jump to unplaced label", func(t *testing.T) {
		m := NewMethodBuilder(classfile.AccStatic, "g", "(I)V", nil)
		m.VarInsn(OpIload, 0)
		m.JumpInsn(OpIfeq, m.NewLabel())
		m.Insn(OpReturn)
		_, err := Assemble(m, classfile.NewConstantPoolBuilder())
		assert.ErrorContains(t, err, "unplaced label")
	})

	t.Run("stack underflow", func(t *testing.T) {
		m := NewMethodBuilder(classfile.AccStatic, "g", "()I", nil)
		m.Insn(OpIreturn)
		_, err := Assemble(m, classfile.NewConstantPoolBuilder())
		assert.ErrorContains(t, err, "underflow")
	})

	t.Run("unreachable code", func(t *testing.T) {
		m := NewMethodBuilder(classfile.AccStatic, "g", "()V", nil)
		m.Insn(OpReturn)
		m.Insn(OpReturn)
		_, err := Assemble(m, classfile.NewConstantPoolBuilder())
		assert.ErrorContains(t, err, "unreachable")
	})
}

func TestEncodeSameFrames(t *testing.T) {
	// 18 fits a same_frame; 100 is 81 past it and needs same_frame_extended
	assert.Equal(t, []byte{0x00, 0x02, 18, 251, 0x00, 81}, encodeSameFrames([]int{18, 100}))
	assert.Equal(t, []byte{0x00, 0x00}, encodeSameFrames(nil))
}

func TestWideVarInsn(t *testing.T) {
	m := NewMethodBuilder(classfile.AccStatic, "h", "()V", nil)
	m.VarInsn(OpAload, 300)
	m.Insn(OpPop)
	m.Insn(OpReturn)

	code, err := Assemble(m, classfile.NewConstantPoolBuilder())
	require.NoError(t, err)
	assert.Equal(t, []byte{OpWide, OpAload, 0x01, 0x2C, OpPop, OpReturn}, code.Code)
	assert.Equal(t, uint16(301), code.MaxLocals)
}

func TestDisassemble(t *testing.T) {
	listing := dispatchLike().Disassemble()
	assert.Contains(t, listing, "    INSTANCEOF j$/util/A\n")
	assert.Contains(t, listing, "    IFEQ L0\n")
	assert.Contains(t, listing, "L0:\n    FRAME SAME\n")
	assert.Contains(t, listing, "    INVOKEINTERFACE j$/util/A.f (J)I (itf)\n")
}
