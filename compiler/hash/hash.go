package hash

import (
	"crypto/sha256"

	"github.com/wisp-lang/wisp/pkg/bytecode"
)

// PageHash computes the SHA-256 page identity hash (spec §3 "Page ...
// plus debug identity (hash)"): the deterministic serialization of
// page's opcode stream and constant pool. Two pages compiled from
// syntactically different but semantically identical sources that
// happen to emit byte-identical instruction streams hash equal.
func PageHash(page *bytecode.Page) [32]byte {
	return sha256.Sum256(Serialize(page))
}
