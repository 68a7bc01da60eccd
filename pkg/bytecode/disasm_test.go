package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wisp-lang/wisp/lib/runtime"
)

func TestDisassembleRendersOperands(t *testing.T) {
	b := NewBuilder("fact")
	b.EmitU16(OpConst, b.Intern(runtime.Int(5)))
	b.EmitU16U8(OpCallStd, b.Intern(runtime.String("len")), 1)
	b.Emit(OpRet)
	page := b.Finish()

	out := Disassemble(page)
	require.Contains(t, out, `page "fact"`)
	require.Contains(t, out, "CONST")
	require.Contains(t, out, "CALL_STD")
	require.True(t, strings.Contains(out, "argc=1"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	b := NewBuilder("fact")
	b.EmitU16(OpConst, b.Intern(runtime.Int(5)))
	b.EmitU16(OpConst, b.Intern(runtime.String("x")))
	b.EmitU16(OpConst, b.Intern(runtime.Bool(true)))
	b.Emit(OpRet)
	page := b.Finish()
	page.Hash = [32]byte{1, 2, 3}

	data, err := EncodeSnapshot(page)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, page.Name, decoded.Name)
	require.Equal(t, page.Code, decoded.Code)
	require.Equal(t, page.Hash, decoded.Hash)
	require.Len(t, decoded.Constants, 3)
	require.Equal(t, runtime.Int(5), decoded.Constants[0])
	require.Equal(t, runtime.String("x"), decoded.Constants[1])
	require.Equal(t, runtime.Bool(true), decoded.Constants[2])
}

func TestSnapshotRejectsUnsupportedConstant(t *testing.T) {
	page := &Page{Name: "bad", Constants: []runtime.Value{runtime.List(nil)}}
	_, err := EncodeSnapshot(page)
	require.Error(t, err)
}
