package bytecode

import (
	"encoding/binary"

	"github.com/wisp-lang/wisp/lib/runtime"
)

// Page is the immutable bytecode artefact for one callable (spec §3/§4.4):
// an ordered byte sequence plus a constant pool and a debug identity
// hash. Pages are built by Builder and never mutated after Finish.
type Page struct {
	Name      string
	Code      []byte
	Constants []runtime.Value
	NumLocals int
	Hash      [32]byte // filled in by compiler/hash.PageHash
}

// Builder assembles one Page: it appends instructions, interns
// constants, and resolves forward jumps via backpatching (spec §4.4
// "Control-flow instructions use forward branches with deferred
// backpatching").
type Builder struct {
	name      string
	code      []byte
	constants []runtime.Value
	numLocals int

	// pending forward jumps: byte offset of the 2-byte operand to patch,
	// resolved once the jump target is known.
	pendingLabels map[int]*int // offset -> *target (nil until resolved)
}

func NewBuilder(name string) *Builder {
	return &Builder{name: name, pendingLabels: map[int]*int{}}
}

// Emit appends an opcode with no operand.
func (b *Builder) Emit(op Opcode) int {
	pos := len(b.code)
	b.code = append(b.code, byte(op))
	return pos
}

// EmitU8 appends an opcode with a one-byte operand.
func (b *Builder) EmitU8(op Opcode, operand byte) int {
	pos := len(b.code)
	b.code = append(b.code, byte(op), operand)
	return pos
}

// EmitU16 appends an opcode with a two-byte big-endian operand (used for
// constant-pool indices and slot numbers beyond 255).
func (b *Builder) EmitU16(op Opcode, operand uint16) int {
	pos := len(b.code)
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], operand)
	b.code = append(b.code, byte(op), buf[0], buf[1])
	return pos
}

// EmitU32 appends an opcode with a four-byte big-endian operand (used for
// OpBuildListBig's count, see spec §9).
func (b *Builder) EmitU32(op Opcode, operand uint32) int {
	pos := len(b.code)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], operand)
	b.code = append(b.code, byte(op), buf[0], buf[1], buf[2], buf[3])
	return pos
}

// EmitU8U8 appends an opcode with two one-byte operands (e.g. call
// opcodes encoding a constant index and an argument count).
func (b *Builder) EmitU8U8(op Opcode, a, c byte) int {
	pos := len(b.code)
	b.code = append(b.code, byte(op), a, c)
	return pos
}

// EmitU16U8 appends an opcode with a u16 operand followed by a u8
// operand (constant-pool index + argc, the common call-site shape).
func (b *Builder) EmitU16U8(op Opcode, idx uint16, argc byte) int {
	pos := len(b.code)
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], idx)
	b.code = append(b.code, byte(op), buf[0], buf[1], argc)
	return pos
}

// EmitProgramCall appends a program-call opcode: a u16 constant-pool
// index (the program name), a u8 argument count, and a flag byte marking
// whether a piped-in value sits beneath the arguments on the stack.
func (b *Builder) EmitProgramCall(op Opcode, idx uint16, argc byte, hasPiped bool) int {
	pos := len(b.code)
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], idx)
	flag := byte(0)
	if hasPiped {
		flag = 1
	}
	b.code = append(b.code, byte(op), buf[0], buf[1], argc, flag)
	return pos
}

// EmitJump appends a forward-jump opcode with a placeholder i16 operand
// and returns a patch site to resolve later with PatchJump.
func (b *Builder) EmitJump(op Opcode) int {
	pos := len(b.code)
	b.code = append(b.code, byte(op), 0, 0)
	return pos
}

// PatchJump backpatches the placeholder at patchSite (the position
// returned by EmitJump) with the relative offset from the end of that
// instruction to the current end of the code buffer.
func (b *Builder) PatchJump(patchSite int) {
	offset := len(b.code) - (patchSite + 3)
	binary.BigEndian.PutUint16(b.code[patchSite+1:patchSite+3], uint16(int16(offset)))
}

// EmitBackwardJump appends OpJumpBackward targeting a previously-recorded
// loop-head position (spec §4.4 "explicit backward-jump opcode for
// loops").
func (b *Builder) EmitBackwardJump(loopHead int) {
	pos := len(b.code)
	offset := (pos + 3) - loopHead
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(int16(offset)))
	b.code = append(b.code, byte(OpJumpBackward), buf[0], buf[1])
}

// Here returns the current write position, used as a loop head or an
// ExitBlock watermark.
func (b *Builder) Here() int { return len(b.code) }

// Intern adds v to the constant pool (or reuses an existing equal entry
// for primitive tags) and returns its index.
func (b *Builder) Intern(v runtime.Value) uint16 {
	for i, existing := range b.constants {
		if constEq(existing, v) {
			return uint16(i)
		}
	}
	b.constants = append(b.constants, v)
	return uint16(len(b.constants) - 1)
}

func constEq(a, b runtime.Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case runtime.TagInt, runtime.TagFloat, runtime.TagString, runtime.TagBool, runtime.TagNil:
		return runtime.Equal(a, b)
	default:
		return false // reference types are never deduplicated
	}
}

// AllocLocal reserves the next local slot and returns its index.
func (b *Builder) AllocLocal() int {
	idx := b.numLocals
	b.numLocals++
	return idx
}

// Finish produces the immutable Page. The hash is left zero; callers use
// compiler/hash.PageHash to fill Page.Hash.
func (b *Builder) Finish() *Page {
	return &Page{
		Name:      b.name,
		Code:      b.code,
		Constants: b.constants,
		NumLocals: b.numLocals,
	}
}
