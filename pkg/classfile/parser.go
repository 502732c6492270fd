package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const classMagic = 0xCAFEBABE

// classReader reads big-endian class file items. The first error sticks and
// every later read returns zero.
type classReader struct {
	r   io.Reader
	err error
}

func (cr *classReader) read(v any) {
	if cr.err == nil {
		cr.err = binary.Read(cr.r, binary.BigEndian, v)
	}
}

func (cr *classReader) u2() uint16 {
	var v uint16
	cr.read(&v)
	return v
}

func (cr *classReader) u4() uint32 {
	var v uint32
	cr.read(&v)
	return v
}

func (cr *classReader) bytes(n uint32) []byte {
	if cr.err != nil {
		return nil
	}
	buf := make([]byte, n)
	_, cr.err = io.ReadFull(cr.r, buf)
	return buf
}

// check wraps the sticky error, if any, with what was being read.
func (cr *classReader) check(format string, args ...any) error {
	if cr.err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, cr.err)...)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
// Class-level and member attributes are kept raw; a method's Code attribute
// is additionally decoded into MethodInfo.Code.
func Parse(r io.Reader) (*ClassFile, error) {
	cr := &classReader{r: r}
	cf := &ClassFile{}

	magic := cr.u4()
	if err := cr.check("reading magic number"); err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf.MinorVersion = cr.u2()
	cf.MajorVersion = cr.u2()
	cpCount := cr.u2()
	if err := cr.check("reading class header"); err != nil {
		return nil, err
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = cr.u2()
	cf.ThisClass = cr.u2()
	cf.SuperClass = cr.u2()
	cf.Interfaces = make([]uint16, cr.u2())
	for i := range cf.Interfaces {
		cf.Interfaces[i] = cr.u2()
	}
	if err := cr.check("reading class declaration"); err != nil {
		return nil, err
	}

	fieldCount := cr.u2()
	for i := uint16(0); i < fieldCount; i++ {
		access, name, desc, attrs, err := cr.member(pool)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d: %w", i, err)
		}
		cf.Fields = append(cf.Fields, FieldInfo{AccessFlags: access, Name: name, Descriptor: desc, Attributes: attrs})
	}

	methodCount := cr.u2()
	for i := uint16(0); i < methodCount; i++ {
		access, name, desc, attrs, err := cr.member(pool)
		if err != nil {
			return nil, fmt.Errorf("parsing method %d: %w", i, err)
		}
		m := MethodInfo{AccessFlags: access, Name: name, Descriptor: desc, Attributes: attrs}
		if raw := findAttribute(attrs, "Code"); raw != nil {
			if m.Code, err = parseCodeAttribute(raw.Data, pool); err != nil {
				return nil, fmt.Errorf("parsing Code of %s%s: %w", name, desc, err)
			}
		}
		cf.Methods = append(cf.Methods, m)
	}

	if cf.Attributes, err = cr.attributes(pool); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	return cf, nil
}

// member reads one field_info or method_info.
func (cr *classReader) member(pool []ConstantPoolEntry) (access uint16, name, desc string, attrs []AttributeInfo, err error) {
	access = cr.u2()
	nameIndex := cr.u2()
	descIndex := cr.u2()
	if err = cr.check("reading member header"); err != nil {
		return
	}
	if name, err = GetUtf8(pool, nameIndex); err != nil {
		return
	}
	if desc, err = GetUtf8(pool, descIndex); err != nil {
		return
	}
	attrs, err = cr.attributes(pool)
	return
}

// attributes reads an attributes_count followed by that many attribute_info.
func (cr *classReader) attributes(pool []ConstantPoolEntry) ([]AttributeInfo, error) {
	count := cr.u2()
	if err := cr.check("reading attributes count"); err != nil {
		return nil, err
	}
	var attrs []AttributeInfo
	for i := uint16(0); i < count; i++ {
		nameIndex := cr.u2()
		data := cr.bytes(cr.u4())
		if err := cr.check("reading attribute %d", i); err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs = append(attrs, AttributeInfo{Name: name, Data: data})
	}
	return attrs, nil
}

func findAttribute(attrs []AttributeInfo, name string) *AttributeInfo {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}

func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	cr := &classReader{r: bytes.NewReader(data)}
	code := &CodeAttribute{
		MaxStack:  cr.u2(),
		MaxLocals: cr.u2(),
	}
	code.Code = cr.bytes(cr.u4())
	if err := cr.check("reading code"); err != nil {
		return nil, err
	}

	handlers := cr.u2()
	for i := uint16(0); i < handlers; i++ {
		h := ExceptionHandler{StartPC: cr.u2(), EndPC: cr.u2(), HandlerPC: cr.u2(), CatchType: cr.u2()}
		if err := cr.check("reading exception handler %d", i); err != nil {
			return nil, err
		}
		code.ExceptionHandlers = append(code.ExceptionHandlers, h)
	}

	// StackMapTable, LineNumberTable and the rest stay raw
	attrs, err := cr.attributes(pool)
	if err != nil {
		return nil, fmt.Errorf("parsing Code attributes: %w", err)
	}
	code.Attributes = attrs
	return code, nil
}

// ExceptionNames resolves the classes listed in m's Exceptions attribute, in
// declaration order. A method without the attribute throws nothing.
func (m *MethodInfo) ExceptionNames(pool []ConstantPoolEntry) ([]string, error) {
	raw := findAttribute(m.Attributes, "Exceptions")
	if raw == nil {
		return nil, nil
	}
	cr := &classReader{r: bytes.NewReader(raw.Data)}
	count := cr.u2()
	if err := cr.check("reading exceptions of %s", m.Name); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := uint16(0); i < count; i++ {
		idx := cr.u2()
		if err := cr.check("reading exception %d of %s", i, m.Name); err != nil {
			return nil, err
		}
		name, err := GetClassName(pool, idx)
		if err != nil {
			return nil, fmt.Errorf("resolving exception %d of %s: %w", i, m.Name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}
