package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write serializes cf in class file format. Every attribute name must already
// be present in the constant pool as a Utf8 entry. Methods with a non-nil Code
// are written with a Code attribute encoded from it; raw "Code" attributes
// are dropped in that case.
func Write(w io.Writer, cf *ClassFile) error {
	var buf bytes.Buffer
	cw := &classWriter{buf: &buf, pool: cf.ConstantPool}

	cw.u4(classMagic)
	cw.u2(cf.MinorVersion)
	cw.u2(cf.MajorVersion)

	if err := cw.constantPool(); err != nil {
		return fmt.Errorf("writing constant pool: %w", err)
	}

	cw.u2(cf.AccessFlags)
	cw.u2(cf.ThisClass)
	cw.u2(cf.SuperClass)
	cw.u2(uint16(len(cf.Interfaces)))
	for _, itf := range cf.Interfaces {
		cw.u2(itf)
	}

	cw.u2(uint16(len(cf.Fields)))
	for i, f := range cf.Fields {
		if err := cw.member(f.AccessFlags, f.Name, f.Descriptor, f.Attributes, nil); err != nil {
			return fmt.Errorf("writing field %d: %w", i, err)
		}
	}

	cw.u2(uint16(len(cf.Methods)))
	for i, m := range cf.Methods {
		if err := cw.member(m.AccessFlags, m.Name, m.Descriptor, m.Attributes, m.Code); err != nil {
			return fmt.Errorf("writing method %d (%s%s): %w", i, m.Name, m.Descriptor, err)
		}
	}

	if err := cw.attributes(cw.buf, cf.Attributes); err != nil {
		return fmt.Errorf("writing class attributes: %w", err)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

type classWriter struct {
	buf  *bytes.Buffer
	pool []ConstantPoolEntry
}

func (cw *classWriter) u1(v uint8)  { cw.buf.WriteByte(v) }
func (cw *classWriter) u2(v uint16) { _ = binary.Write(cw.buf, binary.BigEndian, v) }
func (cw *classWriter) u4(v uint32) { _ = binary.Write(cw.buf, binary.BigEndian, v) }

func (cw *classWriter) constantPool() error {
	cw.u2(uint16(len(cw.pool)))
	for i := 1; i < len(cw.pool); i++ {
		entry := cw.pool[i]
		if entry == nil {
			return fmt.Errorf("nil entry at index %d", i)
		}
		cw.u1(entry.Tag())
		switch c := entry.(type) {
		case *ConstantUtf8:
			if len(c.Value) > math.MaxUint16 {
				return fmt.Errorf("Utf8 at index %d too long", i)
			}
			cw.u2(uint16(len(c.Value)))
			cw.buf.WriteString(c.Value)
		case *ConstantNumber:
			if c.Wide() {
				cw.u4(uint32(c.Bits >> 32))
				i++ // 8-byte constants take 2 slots
			}
			cw.u4(uint32(c.Bits))
		case *ConstantClass:
			cw.u2(c.NameIndex)
		case *ConstantString:
			cw.u2(c.StringIndex)
		case *ConstantRef:
			cw.u2(c.ClassIndex)
			cw.u2(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			cw.u2(c.NameIndex)
			cw.u2(c.DescriptorIndex)
		default:
			return fmt.Errorf("cannot write constant pool tag %d at index %d", entry.Tag(), i)
		}
	}
	return nil
}

// utf8Index finds an existing Utf8 entry.
func (cw *classWriter) utf8Index(s string) (uint16, error) {
	for i, entry := range cw.pool {
		if u, ok := entry.(*ConstantUtf8); ok && u.Value == s {
			return uint16(i), nil
		}
	}
	return 0, fmt.Errorf("Utf8 %q not in constant pool", s)
}

func (cw *classWriter) member(access uint16, name, descriptor string, attrs []AttributeInfo, code *CodeAttribute) error {
	nameIdx, err := cw.utf8Index(name)
	if err != nil {
		return err
	}
	descIdx, err := cw.utf8Index(descriptor)
	if err != nil {
		return err
	}
	cw.u2(access)
	cw.u2(nameIdx)
	cw.u2(descIdx)

	if code != nil {
		kept := make([]AttributeInfo, 0, len(attrs)+1)
		for _, a := range attrs {
			if a.Name != "Code" {
				kept = append(kept, a)
			}
		}
		data, err := cw.encodeCode(code)
		if err != nil {
			return err
		}
		attrs = append([]AttributeInfo{{Name: "Code", Data: data}}, kept...)
	}
	return cw.attributes(cw.buf, attrs)
}

func (cw *classWriter) attributes(out *bytes.Buffer, attrs []AttributeInfo) error {
	_ = binary.Write(out, binary.BigEndian, uint16(len(attrs)))
	for _, a := range attrs {
		idx, err := cw.utf8Index(a.Name)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		_ = binary.Write(out, binary.BigEndian, idx)
		_ = binary.Write(out, binary.BigEndian, uint32(len(a.Data)))
		out.Write(a.Data)
	}
	return nil
}

func (cw *classWriter) encodeCode(code *CodeAttribute) ([]byte, error) {
	var out bytes.Buffer
	_ = binary.Write(&out, binary.BigEndian, code.MaxStack)
	_ = binary.Write(&out, binary.BigEndian, code.MaxLocals)
	_ = binary.Write(&out, binary.BigEndian, uint32(len(code.Code)))
	out.Write(code.Code)
	_ = binary.Write(&out, binary.BigEndian, uint16(len(code.ExceptionHandlers)))
	for _, h := range code.ExceptionHandlers {
		_ = binary.Write(&out, binary.BigEndian, h.StartPC)
		_ = binary.Write(&out, binary.BigEndian, h.EndPC)
		_ = binary.Write(&out, binary.BigEndian, h.HandlerPC)
		_ = binary.Write(&out, binary.BigEndian, h.CatchType)
	}
	if err := cw.attributes(&out, code.Attributes); err != nil {
		return nil, fmt.Errorf("Code: %w", err)
	}
	return out.Bytes(), nil
}
