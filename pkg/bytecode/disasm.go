package bytecode

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/wisp-lang/wisp/lib/runtime"
)

// operandWidth returns the number of operand bytes following op's opcode
// byte, matching the exact layout the VM's step() decodes. The
// OpCallProgram family is 4 wide: constant index, argc, and the
// piped-argument flag byte.
func operandWidth(op Opcode) int {
	switch op {
	case OpNop, OpNegate, OpNot, OpRet, OpGetIter, OpEndFor,
		OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEqual, OpNotEqual, OpGreater,
		OpGreaterEqual, OpLess, OpLessEqual, OpAnd, OpOr, OpContains,
		OpPop, OpGlob, OpDynamicCall, OpPushClosureToRef, OpLoadArgCount:
		return 0
	case OpPopArgs, OpUnpack, OpExitBlock, OpLoadLocal, OpStoreLocal, OpLoadUpper, OpStoreUpper,
		OpBuildTuple, OpBuildList, OpBuildSet, OpBuildDict, OpBuildRange, OpBuildString,
		OpResolveArgumentsDynamically, OpPushArgsToRef, OpExecCall:
		return 1
	case OpConst:
		return 2
	case OpJump, OpJumpBackward, OpJumpIf, OpJumpIfNot, OpPopJumpIf, OpPopJumpIfNot, OpForIter:
		return 2
	case OpBuildListBig:
		return 4
	case OpCall, OpRootCall, OpMaybeRootCall, OpCallStd, OpStructConst, OpNew:
		return 3
	case OpCallProgram, OpRootCallProgram, OpMaybeRootCallProgram:
		return 4
	default:
		return 0
	}
}

// Disassemble renders page's opcode stream as human-readable text, one
// instruction per line, used by the debug CLI (SPEC_FULL.md §4
// "diagnostic report renderer" sibling for bytecode, not just errors).
func Disassemble(page *Page) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "page %q (%d locals, hash %x)\n", page.Name, page.NumLocals, page.Hash[:4])
	ip := 0
	for ip < len(page.Code) {
		op := Opcode(page.Code[ip])
		width := operandWidth(op)
		fmt.Fprintf(&sb, "%04d  %-24s", ip, op.String())
		switch width {
		case 1:
			fmt.Fprintf(&sb, " %d", page.Code[ip+1])
		case 2:
			if isJump(op) {
				off := int16(uint16(page.Code[ip+1])<<8 | uint16(page.Code[ip+2]))
				fmt.Fprintf(&sb, " %+d", off)
			} else {
				idx := uint16(page.Code[ip+1])<<8 | uint16(page.Code[ip+2])
				fmt.Fprintf(&sb, " #%d", idx)
				if int(idx) < len(page.Constants) {
					fmt.Fprintf(&sb, " (%s)", page.Constants[idx].Display())
				}
			}
		case 3:
			idx := uint16(page.Code[ip+1])<<8 | uint16(page.Code[ip+2])
			argc := page.Code[ip+3]
			fmt.Fprintf(&sb, " #%d argc=%d", idx, argc)
		case 4:
			idx := uint16(page.Code[ip+1])<<8 | uint16(page.Code[ip+2])
			argc := page.Code[ip+3]
			flag := page.Code[ip+4]
			fmt.Fprintf(&sb, " #%d argc=%d piped=%d", idx, argc, flag)
		}
		sb.WriteByte('\n')
		ip += 1 + width
	}
	return sb.String()
}

func isJump(op Opcode) bool {
	switch op {
	case OpJump, OpJumpBackward, OpJumpIf, OpJumpIfNot, OpPopJumpIf, OpPopJumpIfNot, OpForIter:
		return true
	default:
		return false
	}
}

// Snapshot is the compact binary debug artefact a page serializes to:
// a golden-test/inspection format, in the spirit of the teacher's
// content-hash golden tests but over the compiled page rather than an
// AST (SPEC_FULL.md §2 "wired — Page golden-snapshot serialization").
type Snapshot struct {
	Name      string          `cbor:"name"`
	Code      []byte          `cbor:"code"`
	NumLocals int             `cbor:"num_locals"`
	Hash      [32]byte        `cbor:"hash"`
	Constants []ConstantEntry `cbor:"constants"`
}

// ConstantEntry is the snapshot DTO for one constant-pool slot. Only the
// scalar and reference-handle tags Builder.Intern ever receives are
// representable; any other tag fails to encode rather than silently
// dropping data.
type ConstantEntry struct {
	Tag   string `cbor:"tag"`
	Int   int64  `cbor:"int,omitempty"`
	Float float64 `cbor:"float,omitempty"`
	Str   string `cbor:"str,omitempty"`
	Bool  bool   `cbor:"bool,omitempty"`
}

func toConstantEntry(v runtime.Value) (ConstantEntry, error) {
	switch v.Tag {
	case runtime.TagNil:
		return ConstantEntry{Tag: "nil"}, nil
	case runtime.TagInt:
		return ConstantEntry{Tag: "int", Int: v.Int}, nil
	case runtime.TagFloat:
		return ConstantEntry{Tag: "float", Float: v.Float}, nil
	case runtime.TagString:
		return ConstantEntry{Tag: "string", Str: v.Str}, nil
	case runtime.TagBool:
		return ConstantEntry{Tag: "bool", Bool: v.Bool}, nil
	case runtime.TagType:
		name := ""
		if v.Type != nil {
			name = v.Type.Name
		}
		return ConstantEntry{Tag: "type", Str: name}, nil
	case runtime.TagFuncRef:
		if v.Func != nil && v.Func.IsProgram {
			return ConstantEntry{Tag: "program_ref", Str: v.Func.ProgName}, nil
		}
		name := ""
		if v.Func != nil {
			name = v.Func.Name
		}
		return ConstantEntry{Tag: "func_ref", Str: name}, nil
	default:
		return ConstantEntry{}, runtime.NewRuntimeErrorf("snapshot: unsupported constant tag %s", v.Tag)
	}
}

func fromConstantEntry(e ConstantEntry) (runtime.Value, error) {
	switch e.Tag {
	case "nil":
		return runtime.Nil(), nil
	case "int":
		return runtime.Int(e.Int), nil
	case "float":
		return runtime.Float(e.Float), nil
	case "string":
		return runtime.String(e.Str), nil
	case "bool":
		return runtime.Bool(e.Bool), nil
	case "type":
		return runtime.Type(&runtime.TypeDescriptor{Name: e.Str}), nil
	case "func_ref":
		return runtime.NewFuncRefValue(e.Str, nil), nil
	case "program_ref":
		return runtime.NewProgramRefValue(e.Str), nil
	default:
		return runtime.Value{}, runtime.NewRuntimeErrorf("snapshot: unknown constant tag %q", e.Tag)
	}
}

// EncodeSnapshot serializes page to its cbor debug artefact.
func EncodeSnapshot(page *Page) ([]byte, error) {
	snap := Snapshot{Name: page.Name, Code: page.Code, NumLocals: page.NumLocals, Hash: page.Hash}
	for _, c := range page.Constants {
		entry, err := toConstantEntry(c)
		if err != nil {
			return nil, err
		}
		snap.Constants = append(snap.Constants, entry)
	}
	return cbor.Marshal(snap)
}

// DecodeSnapshot reconstructs a Page from its cbor debug artefact. The
// reconstructed page's function-reference constants carry a nil Page
// handle (the snapshot is a debug/inspection artefact, not a
// recompilation source — spec §3 "no persisted state ... produced by
// the core").
func DecodeSnapshot(data []byte) (*Page, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	page := &Page{Name: snap.Name, Code: snap.Code, NumLocals: snap.NumLocals, Hash: snap.Hash}
	for _, e := range snap.Constants {
		v, err := fromConstantEntry(e)
		if err != nil {
			return nil, err
		}
		page.Constants = append(page.Constants, v)
	}
	return page, nil
}
