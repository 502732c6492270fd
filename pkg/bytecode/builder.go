package bytecode

// Kind identifies the shape of an Instruction.
type Kind int

const (
	KindInsn Kind = iota
	KindVar
	KindType
	KindJump
	KindMethod
	KindLabel
	KindFrame
)

// FrameKind selects a StackMapTable frame shape.
type FrameKind int

const (
	// FrameSame: same locals as the previous frame, empty operand stack.
	FrameSame FrameKind = iota
)

// Label is a branch target inside one method.
type Label struct {
	id int
}

// ID returns the label's position in creation order.
func (l *Label) ID() int { return l.id }

// Instruction is one emitted element: an opcode with operands, or a
// pseudo-instruction (label placement, stack map frame).
type Instruction struct {
	Kind   Kind
	Opcode byte

	Var   int    // KindVar
	Type  string // KindType: internal name
	Label *Label // KindJump, KindLabel

	Owner      string // KindMethod
	Name       string
	Descriptor string
	Interface  bool

	Frame FrameKind // KindFrame
}

// MethodBuilder records a method's instructions in emission order.
type MethodBuilder struct {
	Access     uint16
	Name       string
	Descriptor string
	Exceptions []string

	insns  []Instruction
	labels int
	ended  bool
}

// NewMethodBuilder starts an empty method body.
func NewMethodBuilder(access uint16, name, descriptor string, exceptions []string) *MethodBuilder {
	return &MethodBuilder{
		Access:     access,
		Name:       name,
		Descriptor: descriptor,
		Exceptions: exceptions,
	}
}

// NewLabel creates an unplaced label.
func (m *MethodBuilder) NewLabel() *Label {
	l := &Label{id: m.labels}
	m.labels++
	return l
}

func (m *MethodBuilder) emit(insn Instruction) {
	if m.ended {
		panic("bytecode: emit after End on " + m.Name + m.Descriptor)
	}
	m.insns = append(m.insns, insn)
}

// Insn emits a zero-operand instruction.
func (m *MethodBuilder) Insn(op byte) {
	m.emit(Instruction{Kind: KindInsn, Opcode: op})
}

// VarInsn emits a typed local-variable load or store.
func (m *MethodBuilder) VarInsn(op byte, slot int) {
	m.emit(Instruction{Kind: KindVar, Opcode: op, Var: slot})
}

// TypeInsn emits an instruction taking a class operand (instanceof,
// checkcast, new, anewarray).
func (m *MethodBuilder) TypeInsn(op byte, internalName string) {
	m.emit(Instruction{Kind: KindType, Opcode: op, Type: internalName})
}

// JumpInsn emits a branch to l.
func (m *MethodBuilder) JumpInsn(op byte, l *Label) {
	m.emit(Instruction{Kind: KindJump, Opcode: op, Label: l})
}

// MethodInsn emits an invocation.
func (m *MethodBuilder) MethodInsn(op byte, owner, name, descriptor string, itf bool) {
	m.emit(Instruction{
		Kind:       KindMethod,
		Opcode:     op,
		Owner:      owner,
		Name:       name,
		Descriptor: descriptor,
		Interface:  itf,
	})
}

// Mark places l at the current position.
func (m *MethodBuilder) Mark(l *Label) {
	m.emit(Instruction{Kind: KindLabel, Label: l})
}

// Frame records a stack map frame at the current position.
func (m *MethodBuilder) Frame(kind FrameKind) {
	m.emit(Instruction{Kind: KindFrame, Frame: kind})
}

// End closes the body; further emission panics.
func (m *MethodBuilder) End() {
	m.ended = true
}

// Ended reports whether End was called.
func (m *MethodBuilder) Ended() bool { return m.ended }

// Instructions returns the emitted sequence.
func (m *MethodBuilder) Instructions() []Instruction {
	return m.insns
}
