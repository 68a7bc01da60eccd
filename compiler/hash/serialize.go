package hash

import (
	"encoding/binary"
	"math"

	"github.com/wisp-lang/wisp/lib/runtime"
	"github.com/wisp-lang/wisp/pkg/bytecode"
)

// Serialize produces a deterministic byte encoding of page's opcode
// stream and constant pool: two pages that would execute identically
// serialize identically, regardless of the Go slice/map layout that
// produced them. Reference-typed constants serialize by their stable
// identity (a type's name; a function reference's program flag and
// name), and any other constant kind by its tag alone, rather than by
// deep value, matching spec §3's page
// identity being about the compiled artefact, not an arbitrary captured
// runtime graph.
func Serialize(page *bytecode.Page) []byte {
	var out []byte
	out = append(out, HashVersion)

	out = appendUvarint(out, uint64(len(page.Code)))
	out = append(out, page.Code...)

	out = appendUvarint(out, uint64(len(page.Constants)))
	for _, c := range page.Constants {
		out = appendConstant(out, c)
	}

	out = appendUvarint(out, uint64(page.NumLocals))
	return out
}

func appendUvarint(out []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(out, buf[:n]...)
}

func appendString(out []byte, s string) []byte {
	out = appendUvarint(out, uint64(len(s)))
	return append(out, s...)
}

func appendConstant(out []byte, v runtime.Value) []byte {
	switch v.Tag {
	case runtime.TagNil:
		return append(out, TagNil)
	case runtime.TagInt:
		out = append(out, TagInt)
		return appendUvarint(out, uint64(v.Int))
	case runtime.TagFloat:
		out = append(out, TagFloat)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v.Float))
		return append(out, buf[:]...)
	case runtime.TagString:
		out = append(out, TagString)
		return appendString(out, v.Str)
	case runtime.TagBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return append(append(out, TagBool), b)
	case runtime.TagType:
		out = append(out, TagType)
		if v.Type != nil {
			return appendString(out, v.Type.Name)
		}
		return appendString(out, "")
	case runtime.TagFuncRef:
		out = append(out, TagFuncRef)
		if v.Func == nil {
			return appendString(out, "")
		}
		flag := byte(0)
		if v.Func.IsProgram {
			flag = 1
		}
		out = append(out, flag)
		name := v.Func.Name
		if v.Func.IsProgram {
			name = v.Func.ProgName
		}
		return appendString(out, name)
	default:
		// Structural literal constants (list/dict/etc. do not currently
		// appear in a page's constant pool — Builder.Intern is only ever
		// called with scalar/type/funcref/program values — but a new
		// literal kind added later still serializes deterministically by
		// tag alone rather than panicking.
		return append(out, TagOpaque, byte(v.Tag))
	}
}
