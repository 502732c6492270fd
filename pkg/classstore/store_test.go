package classstore

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdesugar/pkg/bytecode"
	"github.com/daimatz/jdesugar/pkg/classfile"
	"github.com/daimatz/jdesugar/pkg/errors"
)

func addIdentity(t *testing.T, s *Store, name string) *ClassBuilder {
	t.Helper()
	cb, err := s.Add(name)
	require.NoError(t, err)
	cb.Visit(classfile.Version7, classfile.AccPublic|classfile.AccSynthetic, "java/lang/Object", nil)
	m, created := cb.AddMethod(classfile.AccPublic|classfile.AccStatic, "id", "(Ljava/lang/Object;)Ljava/lang/Object;", []string{"java/io/IOException"})
	require.True(t, created)
	m.VarInsn(bytecode.OpAload, 0)
	m.Insn(bytecode.OpAreturn)
	m.End()
	return cb
}

func TestAddRejectsDuplicates(t *testing.T) {
	s := New()
	_, err := s.Add("java/util/A$$Dispatch")
	require.NoError(t, err)
	_, err = s.Add("java/util/A$$Dispatch")
	assert.True(t, errors.IsErrorCode(err, errors.ErrDuplicateClass))
	assert.Equal(t, 1, s.Len())
}

func TestAddMethodIsIdempotent(t *testing.T) {
	s := New()
	cb := addIdentity(t, s, "p/C")
	again, created := cb.AddMethod(classfile.AccPublic, "id", "(Ljava/lang/Object;)Ljava/lang/Object;", nil)
	assert.False(t, created)
	assert.Same(t, cb.Method("id", "(Ljava/lang/Object;)Ljava/lang/Object;"), again)
	assert.Len(t, cb.Methods(), 1)
}

func TestBytesRoundTrip(t *testing.T) {
	s := New()
	cb := addIdentity(t, s, "p/C")
	data, err := cb.Bytes()
	require.NoError(t, err)

	cf, err := classfile.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	name, err := cf.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "p/C", name)
	assert.Equal(t, "java/lang/Object", cf.SuperClassName())
	assert.Equal(t, uint16(classfile.AccPublic|classfile.AccSynthetic), cf.AccessFlags)

	m := cf.FindMethod("id", "(Ljava/lang/Object;)Ljava/lang/Object;")
	require.NotNil(t, m)
	require.NotNil(t, m.Code)
	assert.Equal(t, []byte{bytecode.OpAload0, bytecode.OpAreturn}, m.Code.Code)
	require.Len(t, m.Attributes, 2)
	assert.Equal(t, "Code", m.Attributes[0].Name)
	assert.Equal(t, "Exceptions", m.Attributes[1].Name)
	// one exception class index
	assert.Equal(t, []byte{0, 1}, m.Attributes[1].Data[:2])
}

func TestBytesRequiresHeaderAndEnd(t *testing.T) {
	s := New()
	cb, err := s.Add("p/NoHeader")
	require.NoError(t, err)
	_, err = cb.Bytes()
	assert.True(t, errors.IsErrorCode(err, errors.ErrClassWrite))

	cb.Visit(classfile.Version7, classfile.AccPublic, "java/lang/Object", nil)
	m, _ := cb.AddMethod(classfile.AccStatic, "open", "()V", nil)
	m.Insn(bytecode.OpReturn)
	_, err = cb.Bytes()
	assert.True(t, errors.IsErrorCode(err, errors.ErrClassWrite))
}

func TestWriteDirAndJar(t *testing.T) {
	s := New()
	addIdentity(t, s, "java/util/A$$Dispatch")
	addIdentity(t, s, "java/util/B$$Dispatch")

	dir := t.TempDir()
	require.NoError(t, s.WriteDir(dir))
	for _, name := range []string{"A$$Dispatch.class", "B$$Dispatch.class"} {
		_, err := os.Stat(filepath.Join(dir, "java", "util", name))
		assert.NoError(t, err, name)
	}

	jar := filepath.Join(t.TempDir(), "out.jar")
	require.NoError(t, s.WriteJar(jar))
	zr, err := zip.OpenReader(jar)
	require.NoError(t, err)
	defer zr.Close()
	var entries []string
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}
	assert.Equal(t, []string{"java/util/A$$Dispatch.class", "java/util/B$$Dispatch.class"}, entries)
}
