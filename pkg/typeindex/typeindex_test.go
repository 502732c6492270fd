package typeindex

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/errors"
	"github.com/daimatz/jdesugar/pkg/naming"
)

func sampleIndex() *Memory {
	idx := NewMemory()
	idx.Add(Class("java/lang/Object", ""))
	idx.Add(Interface("java/lang/Iterable").WithDefault("forEach", "(Ljava/util/function/Consumer;)V"))
	idx.Add(Interface("java/util/Collection", "java/lang/Iterable").WithAbstract("size", "()I"))
	idx.Add(Interface("java/util/List", "java/util/Collection"))
	idx.Add(Class("java/util/AbstractList", "java/lang/Object", "java/util/List"))
	idx.Add(Class("java/util/ArrayList", "java/util/AbstractList"))
	return idx
}

func TestMemoryResolve(t *testing.T) {
	idx := sampleIndex()

	list, err := idx.Resolve("java/util/List")
	require.NoError(t, err)
	assert.True(t, list.IsInterface())
	assert.Equal(t, []string{"java/util/Collection"}, list.InterfaceNames)

	coll, err := idx.Resolve("java/util/Collection")
	require.NoError(t, err)
	size := coll.DeclaredMethod("size", "()I")
	require.NotNil(t, size)
	assert.True(t, size.IsAbstract())
	assert.False(t, size.IsDefault())
	assert.Same(t, coll, size.Owner)

	iterable, err := idx.Resolve("java/lang/Iterable")
	require.NoError(t, err)
	assert.True(t, iterable.DeclaredMethod("forEach", "(Ljava/util/function/Consumer;)V").IsDefault())

	_, err = idx.Resolve("java/util/Missing")
	assert.True(t, errors.IsErrorCode(err, errors.ErrTypeNotFound))

	names, err := idx.Names()
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", names[0])
	assert.Len(t, names, 6)
}

func TestSuperclassAndInterfaces(t *testing.T) {
	idx := sampleIndex()
	list, err := idx.Resolve("java/util/AbstractList")
	require.NoError(t, err)

	super, err := Superclass(idx, list)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", super.Name)

	itfs, err := Interfaces(idx, list)
	require.NoError(t, err)
	require.Len(t, itfs, 1)
	assert.Equal(t, "java/util/List", itfs[0].Name)

	object, err := idx.Resolve("java/lang/Object")
	require.NoError(t, err)
	super, err = Superclass(idx, object)
	require.NoError(t, err)
	assert.Nil(t, super)

	broken := Class("java/util/Broken", "java/util/Missing", "java/util/Gone")
	_, err = Superclass(idx, broken)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTypeNotFound))
	_, err = Interfaces(idx, broken)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTypeNotFound))
}

func TestIsAssignable(t *testing.T) {
	idx := sampleIndex()
	get := func(name string) *Type {
		typ, err := idx.Resolve(name)
		require.NoError(t, err)
		return typ
	}

	cases := []struct {
		to, from string
		want     bool
	}{
		{"java/util/List", "java/util/List", true},
		{"java/lang/Iterable", "java/util/List", true},
		{"java/lang/Iterable", "java/util/ArrayList", true},
		{"java/util/AbstractList", "java/util/ArrayList", true},
		{"java/util/List", "java/lang/Iterable", false},
		{"java/util/ArrayList", "java/util/List", false},
		{"java/lang/Object", "java/util/List", true},
	}
	for _, tc := range cases {
		got, err := IsAssignable(idx, get(tc.to), get(tc.from))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s <- %s", tc.to, tc.from)
	}
}

func TestIsAssignableMissingSupertype(t *testing.T) {
	idx := NewMemory()
	idx.Add(Class("java/lang/Object", ""))
	idx.Add(Interface("java/util/A"))
	b := idx.Add(Interface("java/util/B", "java/util/Gone"))
	a, _ := idx.Resolve("java/util/A")

	_, err := IsAssignable(idx, a, b)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTypeNotFound))
}

// writeClass serializes a minimal class file.
func writeClass(t *testing.T, name, super string, access uint16, interfaces ...string) []byte {
	t.Helper()
	pool := classfile.NewConstantPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: classfile.Version8,
		AccessFlags:  access,
		ThisClass:    pool.Class(name),
		SuperClass:   pool.Class(super),
	}
	for _, itf := range interfaces {
		cf.Interfaces = append(cf.Interfaces, pool.Class(itf))
	}
	pool.Utf8("stream")
	pool.Utf8("()Ljava/util/stream/Stream;")
	cf.Methods = []classfile.MethodInfo{{
		AccessFlags: classfile.AccPublic | classfile.AccAbstract,
		Name:        "stream",
		Descriptor:  "()Ljava/util/stream/Stream;",
	}}
	cf.ConstantPool = pool.Entries()

	var buf bytes.Buffer
	require.NoError(t, classfile.Write(&buf, cf))
	return buf.Bytes()
}

func TestClassPathDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "java", "util"), 0o755))
	data := writeClass(t, "java/util/Collection", "java/lang/Object",
		classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract, "java/lang/Iterable")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "java", "util", "Collection.class"), data, 0o644))

	cp, err := NewClassPath([]string{dir}, naming.NewRewriter("__desugar__/"))
	require.NoError(t, err)

	typ, err := cp.Resolve("__desugar__/java/util/Collection")
	require.NoError(t, err)
	assert.Equal(t, "__desugar__/java/util/Collection", typ.Name)
	assert.Equal(t, "__desugar__/java/lang/Object", typ.SuperName)
	assert.Equal(t, []string{"__desugar__/java/lang/Iterable"}, typ.InterfaceNames)
	assert.True(t, typ.IsInterface())
	require.Len(t, typ.Methods, 1)
	assert.Same(t, typ, typ.Methods[0].Owner)

	again, err := cp.Resolve("java/util/Collection")
	require.NoError(t, err)
	assert.Same(t, typ, again, "cached instance expected")

	_, err = cp.Resolve("java/util/Nope")
	assert.True(t, errors.IsErrorCode(err, errors.ErrTypeNotFound))

	names, err := cp.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"__desugar__/java/util/Collection"}, names)
}

func TestClassPathArchives(t *testing.T) {
	dir := t.TempDir()
	data := writeClass(t, "java/util/Map", "java/lang/Object",
		classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract)

	build := func(entryName string, header []byte) []byte {
		var buf bytes.Buffer
		buf.Write(header)
		zw := zip.NewWriter(&buf)
		w, err := zw.Create(entryName)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}

	jar := filepath.Join(dir, "rt.jar")
	require.NoError(t, os.WriteFile(jar, build("java/util/Map.class", nil), 0o644))
	jmod := filepath.Join(dir, "java.base.jmod")
	require.NoError(t, os.WriteFile(jmod, build("classes/java/util/Map.class", []byte("JM\x01\x00")), 0o644))

	for _, entry := range []string{jar, jmod} {
		cp, err := NewClassPath([]string{entry}, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]*Type, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				typ, err := cp.Resolve("java/util/Map")
				assert.NoError(t, err)
				results[i] = typ
			}(i)
		}
		wg.Wait()
		for _, typ := range results {
			assert.Same(t, results[0], typ, entry)
		}
		assert.Equal(t, "java/util/Map", results[0].Name)
	}
}

func TestClassPathRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	_, err := NewClassPath([]string{f}, nil)
	assert.Error(t, err)
}

func TestFromClassFileReadsThrowsClause(t *testing.T) {
	pool := classfile.NewConstantPoolBuilder()
	this := pool.Class("java/util/Closer")
	ioe := pool.Class("java/io/IOException")
	pool.Utf8("Exceptions")
	pool.Utf8("close")
	pool.Utf8("()V")
	cf := &classfile.ClassFile{
		MajorVersion: classfile.Version8,
		AccessFlags:  classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract,
		ThisClass:    this,
		Methods: []classfile.MethodInfo{{
			AccessFlags: classfile.AccPublic | classfile.AccAbstract,
			Name:        "close",
			Descriptor:  "()V",
			Attributes:  []classfile.AttributeInfo{{Name: "Exceptions", Data: []byte{0, 1, byte(ioe >> 8), byte(ioe)}}},
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, classfile.Write(&buf, cf))
	parsed, err := classfile.Parse(&buf)
	require.NoError(t, err)

	typ, err := FromClassFile(parsed, naming.NewRewriter("__desugar__/").Prefixed)
	require.NoError(t, err)
	closeMethod := typ.DeclaredMethod("close", "()V")
	require.NotNil(t, closeMethod)
	assert.Equal(t, []string{"__desugar__/java/io/IOException"}, closeMethod.Exceptions)

	parsed.Methods[0].Attributes[0].Data = []byte{0, 1}
	_, err = FromClassFile(parsed, nil)
	assert.Error(t, err, "truncated Exceptions attribute")
}
