// Package hash computes a content hash for a compiled bytecode Page
// (SPEC_FULL.md §4 "Page debug identity hash"). The teacher's
// compiler/hash package hashes de-Bruijn-normalized AST method bodies;
// this core has no method cache, so the same frozen-tag, deterministic
// serialization approach is re-targeted at the compiled artefact itself
// — a page's opcode stream plus its interned constant pool — rather
// than at source-level AST shape.
package hash

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates every previously computed page hash.
const HashVersion byte = 1

// Frozen tag bytes for the constant-pool serialization. IMPORTANT:
// these are FROZEN — once assigned, a tag byte must never change
// meaning. Adding new tags is fine; changing existing ones breaks every
// hash computed before the change.
const (
	TagReservedZero byte = 0x00

	TagNil    byte = 0x01
	TagInt    byte = 0x02
	TagFloat  byte = 0x03
	TagString byte = 0x04
	TagBool   byte = 0x05

	TagType     byte = 0x10
	TagFuncRef  byte = 0x11
	TagProgRef  byte = 0x12
	TagOpaque   byte = 0x1F // any other reference-typed constant (list/dict/etc literals)
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagNil, TagInt, TagFloat, TagString, TagBool,
	TagType, TagFuncRef, TagProgRef, TagOpaque,
}
