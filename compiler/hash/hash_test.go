package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wisp-lang/wisp/lib/runtime"
	"github.com/wisp-lang/wisp/pkg/bytecode"
)

func buildPage(t *testing.T, body func(b *bytecode.Builder)) *bytecode.Page {
	t.Helper()
	b := bytecode.NewBuilder("test")
	body(b)
	return b.Finish()
}

func TestPageHashDeterministic(t *testing.T) {
	mk := func() *bytecode.Page {
		return buildPage(t, func(b *bytecode.Builder) {
			b.EmitU16(bytecode.OpConst, b.Intern(runtime.Int(1)))
			b.EmitU16(bytecode.OpConst, b.Intern(runtime.Int(2)))
			b.Emit(bytecode.OpAdd)
			b.Emit(bytecode.OpRet)
		})
	}
	h1 := PageHash(mk())
	h2 := PageHash(mk())
	require.Equal(t, h1, h2)
}

func TestPageHashDistinguishesBodies(t *testing.T) {
	p1 := buildPage(t, func(b *bytecode.Builder) {
		b.EmitU16(bytecode.OpConst, b.Intern(runtime.Int(1)))
		b.Emit(bytecode.OpRet)
	})
	p2 := buildPage(t, func(b *bytecode.Builder) {
		b.EmitU16(bytecode.OpConst, b.Intern(runtime.Int(2)))
		b.Emit(bytecode.OpRet)
	})
	require.NotEqual(t, PageHash(p1), PageHash(p2))
}

func TestPageHashLocalsCountShiftsHash(t *testing.T) {
	// NumLocals participates in the hash: two pages with identical code
	// but different local-slot counts are different compiled artefacts.
	p1 := buildPage(t, func(b *bytecode.Builder) {
		b.AllocLocal()
		b.Emit(bytecode.OpRet)
	})
	p2 := buildPage(t, func(b *bytecode.Builder) {
		b.AllocLocal()
		b.AllocLocal()
		b.Emit(bytecode.OpRet)
	})
	require.NotEqual(t, PageHash(p1), PageHash(p2))
}

func TestSerializeStable(t *testing.T) {
	page := buildPage(t, func(b *bytecode.Builder) {
		b.EmitU16(bytecode.OpConst, b.Intern(runtime.String("hi")))
		b.Emit(bytecode.OpRet)
	})
	s1 := Serialize(page)
	s2 := Serialize(page)
	require.Equal(t, s1, s2)
	require.Equal(t, HashVersion, s1[0])
}
