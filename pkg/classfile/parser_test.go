package classfile

import (
	"bytes"
	"testing"
)

// buildInterface assembles a small interface class with one default method
// and one abstract method.
func buildInterface(t *testing.T) []byte {
	t.Helper()

	pool := NewConstantPoolBuilder()
	this := pool.Class("java/util/Collection")
	super := pool.Class("java/lang/Object")
	iterable := pool.Class("java/lang/Iterable")
	pool.Utf8("Code")
	pool.Utf8("isEmpty")
	pool.Utf8("()Z")
	pool.Utf8("size")
	pool.Utf8("()I")

	cf := &ClassFile{
		MajorVersion: Version8,
		AccessFlags:  AccPublic | AccInterface | AccAbstract,
		ThisClass:    this,
		SuperClass:   super,
		Interfaces:   []uint16{iterable},
		Methods: []MethodInfo{
			{
				AccessFlags: AccPublic,
				Name:        "isEmpty",
				Descriptor:  "()Z",
				Code: &CodeAttribute{
					MaxStack:  1,
					MaxLocals: 1,
					Code:      []byte{0x03, 0xAC}, // iconst_0; ireturn
				},
			},
			{
				AccessFlags: AccPublic | AccAbstract,
				Name:        "size",
				Descriptor:  "()I",
			},
		},
	}
	cf.ConstantPool = pool.Entries()

	var buf bytes.Buffer
	if err := Write(&buf, cf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.Bytes()
}

func TestParseWrittenClassFile(t *testing.T) {
	cf, err := Parse(bytes.NewReader(buildInterface(t)))
	if err != nil {
		t.Fatalf("failed to parse written class: %v", err)
	}

	if cf.MajorVersion != Version8 {
		t.Errorf("major version: got %d, want %d", cf.MajorVersion, Version8)
	}

	className, err := cf.ClassName()
	if err != nil {
		t.Fatalf("resolving this_class: %v", err)
	}
	if className != "java/util/Collection" {
		t.Errorf("this_class: got %q, want %q", className, "java/util/Collection")
	}
	if !cf.IsInterface() {
		t.Error("expected ACC_INTERFACE to be set")
	}
	if got := cf.SuperClassName(); got != "java/lang/Object" {
		t.Errorf("super class: got %q, want %q", got, "java/lang/Object")
	}

	itfs, err := cf.InterfaceNames()
	if err != nil {
		t.Fatalf("resolving interfaces: %v", err)
	}
	if len(itfs) != 1 || itfs[0] != "java/lang/Iterable" {
		t.Errorf("interfaces: got %v, want [java/lang/Iterable]", itfs)
	}

	isEmpty := cf.FindMethod("isEmpty", "()Z")
	if isEmpty == nil {
		t.Fatal("isEmpty method not found")
	}
	if isEmpty.Code == nil {
		t.Fatal("isEmpty has no Code attribute")
	}
	if !bytes.Equal(isEmpty.Code.Code, []byte{0x03, 0xAC}) {
		t.Errorf("isEmpty code: got % x", isEmpty.Code.Code)
	}

	size := cf.FindMethod("size", "()I")
	if size == nil {
		t.Fatal("size method not found")
	}
	if size.AccessFlags&AccAbstract == 0 {
		t.Error("size should be abstract")
	}
	if size.Code != nil {
		t.Error("abstract method should have no Code attribute")
	}
}

func TestWriteMissingAttributeName(t *testing.T) {
	pool := NewConstantPoolBuilder()
	this := pool.Class("Foo")
	pool.Utf8("run")
	pool.Utf8("()V")
	// "Code" deliberately missing

	cf := &ClassFile{
		MajorVersion: Version7,
		ThisClass:    this,
		ConstantPool: pool.Entries(),
		Methods: []MethodInfo{{
			Name:       "run",
			Descriptor: "()V",
			Code:       &CodeAttribute{Code: []byte{0xB1}},
		}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, cf); err == nil {
		t.Error("expected error for missing Code attribute name, got nil")
	}
}

func TestConstantPoolBuilderInterns(t *testing.T) {
	pool := NewConstantPoolBuilder()
	a := pool.Methodref("java/util/List", "size", "()I")
	b := pool.Methodref("java/util/List", "size", "()I")
	if a != b {
		t.Errorf("Methodref not interned: %d != %d", a, b)
	}
	c := pool.InterfaceMethodref("java/util/List", "size", "()I")
	if c == a {
		t.Error("InterfaceMethodref must not share an entry with Methodref")
	}

	entries := pool.Entries()
	if ref, ok := entries[c].(*ConstantRef); !ok || ref.Tag() != TagInterfaceMethodref {
		t.Errorf("entry %d: got %+v, want an InterfaceMethodref", c, entries[c])
	}
	ref, ok := entries[a].(*ConstantRef)
	if !ok || ref.Tag() != TagMethodref {
		t.Fatalf("entry %d: got %+v, want a Methodref", a, entries[a])
	}
	owner, err := GetClassName(entries, ref.ClassIndex)
	if err != nil || owner != "java/util/List" {
		t.Errorf("owner: got %q, %v", owner, err)
	}
	if _, err := GetClassName(entries, pool.Utf8("size")); err == nil {
		t.Error("expected error resolving a Utf8 entry as a class")
	}
}

func TestParseInvalidMagic(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	if err == nil {
		t.Error("expected error for invalid magic number, got nil")
	}
}

func TestClassAttributesRoundTrip(t *testing.T) {
	pool := NewConstantPoolBuilder()
	this := pool.Class("java/util/A$$Dispatch")
	pool.Utf8("SourceFile")
	src := pool.Utf8("A.java")

	cf := &ClassFile{
		MajorVersion: Version7,
		AccessFlags:  AccPublic | AccSynthetic,
		ThisClass:    this,
		ConstantPool: pool.Entries(),
		Attributes:   []AttributeInfo{{Name: "SourceFile", Data: []byte{byte(src >> 8), byte(src)}}},
	}
	var buf bytes.Buffer
	if err := Write(&buf, cf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, err := Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Attributes) != 1 || parsed.Attributes[0].Name != "SourceFile" {
		t.Fatalf("class attributes: got %+v", parsed.Attributes)
	}
	if got, _ := GetUtf8(parsed.ConstantPool, src); got != "A.java" {
		t.Errorf("source file: got %q", got)
	}
}

func TestParseTruncated(t *testing.T) {
	data := buildInterface(t)
	if _, err := Parse(bytes.NewReader(data[:len(data)-3])); err == nil {
		t.Error("expected error for truncated class file, got nil")
	}
}

func TestNumericConstantsRoundTrip(t *testing.T) {
	cf := &ClassFile{
		MajorVersion: Version7,
		ThisClass:    5,
		ConstantPool: []ConstantPoolEntry{
			nil,
			&ConstantNumber{NumTag: TagInteger, Bits: 0xFFFFFFFF},
			&ConstantNumber{NumTag: TagLong, Bits: 0x0102030405060708},
			nil, // second slot of the long
			&ConstantUtf8{Value: "Foo"},
			&ConstantClass{NameIndex: 4},
		},
	}
	var buf bytes.Buffer
	if err := Write(&buf, cf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, err := Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	long, ok := parsed.ConstantPool[2].(*ConstantNumber)
	if !ok || !long.Wide() || long.Bits != 0x0102030405060708 {
		t.Errorf("long constant: got %+v", parsed.ConstantPool[2])
	}
	if parsed.ConstantPool[3] != nil {
		t.Error("second slot of a long must stay empty")
	}
	if name, _ := parsed.ClassName(); name != "Foo" {
		t.Errorf("this_class after long: got %q", name)
	}
}
