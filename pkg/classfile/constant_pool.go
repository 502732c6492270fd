package classfile

import (
	"fmt"
	"io"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// placeholderSizes are the operand sizes of entries read but not interpreted.
var placeholderSizes = map[uint8]uint32{
	TagMethodHandle:  3, // reference_kind u1 + reference_index u2
	TagMethodType:    2, // descriptor_index u2
	TagDynamic:       4, // bootstrap_method_attr_index u2 + name_and_type_index u2
	TagInvokeDynamic: 4,
}

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	cr := &classReader{r: r}
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		cr.read(&tag)
		if err := cr.check("reading tag at index %d", i); err != nil {
			return nil, err
		}

		switch tag {
		case TagUtf8:
			pool[i] = &ConstantUtf8{Value: string(cr.bytes(uint32(cr.u2())))}
		case TagInteger, TagFloat:
			pool[i] = &ConstantNumber{NumTag: tag, Bits: uint64(cr.u4())}
		case TagLong, TagDouble:
			hi := uint64(cr.u4())
			pool[i] = &ConstantNumber{NumTag: tag, Bits: hi<<32 | uint64(cr.u4())}
			i++ // 8-byte constants take 2 slots
		case TagClass:
			pool[i] = &ConstantClass{NameIndex: cr.u2()}
		case TagString:
			pool[i] = &ConstantString{StringIndex: cr.u2()}
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			pool[i] = &ConstantRef{RefTag: tag, ClassIndex: cr.u2(), NameAndTypeIndex: cr.u2()}
		case TagNameAndType:
			pool[i] = &ConstantNameAndType{NameIndex: cr.u2(), DescriptorIndex: cr.u2()}
		case TagMethodHandle, TagMethodType, TagDynamic, TagInvokeDynamic:
			cr.bytes(placeholderSizes[tag])
			pool[i] = &constantPlaceholder{tag: tag}
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		if err := cr.check("reading tag %d at index %d", tag, i); err != nil {
			return nil, err
		}
	}

	return pool, nil
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

func entryAt(pool []ConstantPoolEntry, index uint16) (ConstantPoolEntry, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	return pool[index], nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	entry, err := entryAt(pool, index)
	if err != nil {
		return "", err
	}
	utf8, ok := entry.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, entry.Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	entry, err := entryAt(pool, classIndex)
	if err != nil {
		return "", err
	}
	class, ok := entry.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// ConstantPoolBuilder interns constant pool entries for a class being written.
// Like a parsed pool, the built slice is 1-indexed: index 0 is nil.
type ConstantPoolBuilder struct {
	entries []ConstantPoolEntry
	index   map[string]uint16
}

// NewConstantPoolBuilder creates an empty pool.
func NewConstantPoolBuilder() *ConstantPoolBuilder {
	return &ConstantPoolBuilder{
		entries: []ConstantPoolEntry{nil},
		index:   make(map[string]uint16),
	}
}

func (b *ConstantPoolBuilder) intern(key string, entry ConstantPoolEntry) uint16 {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := uint16(len(b.entries))
	b.entries = append(b.entries, entry)
	b.index[key] = idx
	return idx
}

// Utf8 returns the index of a CONSTANT_Utf8 entry for s.
func (b *ConstantPoolBuilder) Utf8(s string) uint16 {
	return b.intern("utf8:"+s, &ConstantUtf8{Value: s})
}

// Class returns the index of a CONSTANT_Class entry for an internal name.
func (b *ConstantPoolBuilder) Class(name string) uint16 {
	nameIdx := b.Utf8(name)
	return b.intern("class:"+name, &ConstantClass{NameIndex: nameIdx})
}

// NameAndType returns the index of a CONSTANT_NameAndType entry.
func (b *ConstantPoolBuilder) NameAndType(name, descriptor string) uint16 {
	nameIdx := b.Utf8(name)
	descIdx := b.Utf8(descriptor)
	return b.intern("nat:"+name+":"+descriptor, &ConstantNameAndType{NameIndex: nameIdx, DescriptorIndex: descIdx})
}

// Methodref returns the index of a CONSTANT_Methodref entry.
func (b *ConstantPoolBuilder) Methodref(owner, name, descriptor string) uint16 {
	classIdx := b.Class(owner)
	natIdx := b.NameAndType(name, descriptor)
	return b.intern("mref:"+owner+"."+name+":"+descriptor,
		&ConstantRef{RefTag: TagMethodref, ClassIndex: classIdx, NameAndTypeIndex: natIdx})
}

// InterfaceMethodref returns the index of a CONSTANT_InterfaceMethodref entry.
func (b *ConstantPoolBuilder) InterfaceMethodref(owner, name, descriptor string) uint16 {
	classIdx := b.Class(owner)
	natIdx := b.NameAndType(name, descriptor)
	return b.intern("imref:"+owner+"."+name+":"+descriptor,
		&ConstantRef{RefTag: TagInterfaceMethodref, ClassIndex: classIdx, NameAndTypeIndex: natIdx})
}

// Entries returns the pool built so far.
func (b *ConstantPoolBuilder) Entries() []ConstantPoolEntry {
	return b.entries
}
