// Package bytecode implements the Page bytecode model and the
// stack-based Virtual Machine / Executor described in spec §4.4/§4.5.
// It depends on lib/runtime for the tagged Value domain and Process
// Context, but never on the compiler package, so compiler can freely
// depend on bytecode without an import cycle.
package bytecode

// Opcode is the closed instruction enumeration from spec §4.4.
type Opcode byte

const (
	OpNop Opcode = iota
	OpPop
	OpPopArgs // PopArgs <n:u8> — drop n stack slots (call-site cleanup)
	OpUnpack  // Unpack <n:u8> — destructure top tuple/list into n slots
	OpExitBlock

	// Local / closed-over access. The "Upper" variants read/write a slot
	// of the current frame's captured-variable snapshot (Frame.Captured),
	// used by closures.
	OpLoadLocal
	OpStoreLocal
	OpLoadUpper
	OpStoreUpper

	// OpLoadArgCount pushes the current frame's caller-supplied argument
	// count, used only by a function's default-value prologue to decide
	// whether a trailing optional parameter's slot still needs filling
	// (spec §4.3 "Parameters" default-value semantics).
	OpLoadArgCount

	// Calls.
	OpCall            // Call <constIdx:u16> <argc:u8>
	OpRootCall        // result may be redirected to the root pipeline
	OpMaybeRootCall   // result may be redirected, depending on runtime context
	OpCallStd
	OpCallProgram
	OpRootCallProgram
	OpMaybeRootCallProgram
	OpResolveArgumentsDynamically
	OpDynamicCall
	OpPushArgsToRef
	OpPushClosureToRef
	OpExecCall // ExecCall <argc:u8> — argv[0] on the stack is the program name

	// Structural builders.
	OpBuildTuple
	OpBuildList    // BuildList <count:u8>
	OpBuildListBig // BuildListBig <count:u32> — see spec §9 open question
	OpBuildSet
	OpBuildDict
	OpBuildRange
	OpBuildString // string interpolation join
	OpNew
	OpStructConst
	OpGlob

	OpConst // Const <constIdx:u16>

	// Arithmetic / logic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpNot
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAnd
	OpOr
	OpContains

	// Control flow. Forward branches use deferred backpatching; loops use
	// the explicit backward-jump opcode. Offsets are relative to the
	// instruction immediately following the operand.
	OpJump
	OpJumpBackward
	OpJumpIf
	OpJumpIfNot
	OpPopJumpIf
	OpPopJumpIfNot
	OpRet

	// Iteration.
	OpGetIter
	OpForIter
	OpEndFor
)

// listBigThreshold resolves spec §9's open question: literal lists with
// at most this many elements use the u8-length BuildList opcode; longer
// literals use BuildListBig with a u32 length.
const listBigThreshold = 255

var opcodeNames = map[Opcode]string{
	OpNop: "NOP", OpPop: "POP", OpPopArgs: "POP_ARGS", OpUnpack: "UNPACK", OpExitBlock: "EXIT_BLOCK",
	OpLoadLocal: "LOAD_LOCAL", OpStoreLocal: "STORE_LOCAL", OpLoadUpper: "LOAD_UPPER", OpStoreUpper: "STORE_UPPER",
	OpLoadArgCount: "LOAD_ARG_COUNT",
	OpCall: "CALL", OpRootCall: "ROOT_CALL", OpMaybeRootCall: "MAYBE_ROOT_CALL",
	OpCallStd: "CALL_STD", OpCallProgram: "CALL_PROGRAM", OpRootCallProgram: "ROOT_CALL_PROGRAM",
	OpMaybeRootCallProgram: "MAYBE_ROOT_CALL_PROGRAM",
	OpResolveArgumentsDynamically: "RESOLVE_ARGS_DYNAMICALLY", OpDynamicCall: "DYNAMIC_CALL",
	OpPushArgsToRef: "PUSH_ARGS_TO_REF", OpPushClosureToRef: "PUSH_CLOSURE_TO_REF", OpExecCall: "EXEC_CALL",
	OpBuildTuple: "BUILD_TUPLE", OpBuildList: "BUILD_LIST", OpBuildListBig: "BUILD_LIST_BIG",
	OpBuildSet: "BUILD_SET", OpBuildDict: "BUILD_DICT", OpBuildRange: "BUILD_RANGE",
	OpBuildString: "BUILD_STRING", OpNew: "NEW", OpStructConst: "STRUCT_CONST", OpGlob: "GLOB",
	OpConst: "CONST",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpNegate: "NEGATE", OpNot: "NOT",
	OpEqual: "EQUAL", OpNotEqual: "NOT_EQUAL", OpGreater: "GREATER", OpGreaterEqual: "GREATER_EQUAL",
	OpLess: "LESS", OpLessEqual: "LESS_EQUAL", OpAnd: "AND", OpOr: "OR", OpContains: "CONTAINS",
	OpJump: "JUMP", OpJumpBackward: "JUMP_BACKWARD", OpJumpIf: "JUMP_IF", OpJumpIfNot: "JUMP_IF_NOT",
	OpPopJumpIf: "POP_JUMP_IF", OpPopJumpIfNot: "POP_JUMP_IF_NOT", OpRet: "RET",
	OpGetIter: "GET_ITER", OpForIter: "FOR_ITER", OpEndFor: "END_FOR",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
