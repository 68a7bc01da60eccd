// Package runtime implements the tagged runtime value domain and the
// lexical scope tree used by the analyser, generator, and VM. It is the
// leaf component of the language: it imports nothing from compiler or
// pkg/bytecode, so those packages can depend on it freely.
package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Tag discriminates the runtime value domain described in spec §3.
type Tag uint8

const (
	TagNil Tag = iota
	TagInt
	TagFloat
	TagString
	TagBool
	TagList
	TagTuple
	TagDict
	TagSet
	TagRange
	TagStruct
	TagFuncRef
	TagType
	TagPipe
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagBool:
		return "bool"
	case TagList:
		return "list"
	case TagTuple:
		return "tuple"
	case TagDict:
		return "dict"
	case TagSet:
		return "set"
	case TagRange:
		return "range"
	case TagStruct:
		return "struct"
	case TagFuncRef:
		return "function"
	case TagType:
		return "type"
	case TagPipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// RangeVal is the payload for TagRange.
type RangeVal struct {
	From, To int64
	Step     int64
}

// StructInstance is the payload for TagStruct.
type StructInstance struct {
	TypeName string
	Fields   map[string]Value
	Order    []string // declaration order, for deterministic printing
}

// FuncRef is the payload for TagFuncRef: a first-class reference to a
// callable. Page is an opaque handle (a *bytecode.Page) filled in by the
// instruction generator; it is typed `any` here so this package never
// imports pkg/bytecode. Captured holds the closure's frame snapshot, nil
// for plain function references.
type FuncRef struct {
	Name      string
	Page      any
	Captured  []Value
	IsProgram bool   // Program fallback reference (resolved at call time by name)
	ProgName  string // executable name when IsProgram
}

// TypeDescriptor is the payload for TagType: a first-class struct type.
type TypeDescriptor struct {
	Name       string
	FieldNames []string
	MinArgs    int
	MaxArgs    int // -1 means variadic/unbounded
}

// Value is the tagged runtime value. Only the field matching Tag is
// meaningful; the others are zero.
type Value struct {
	Tag    Tag
	Int    int64
	Float  float64
	Str    string
	Bool   bool
	List   *ListVal
	Tuple  []Value
	Dict   *DictVal
	Set    *SetVal
	Range  RangeVal
	Struct *StructInstance
	Func   *FuncRef
	Type   *TypeDescriptor
	Pipe   *PipeValue
}

// ListVal backs TagList: mutable, identity-preserving.
type ListVal struct{ Items []Value }

// DictVal backs TagDict: mutable, identity-preserving, insertion-ordered.
type DictVal struct {
	keys   []string
	values map[string]Value
}

func NewDict() *DictVal { return &DictVal{values: map[string]Value{}} }

func (d *DictVal) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *DictVal) Set(key string, v Value) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *DictVal) Delete(key string) {
	if _, exists := d.values[key]; !exists {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

func (d *DictVal) Keys() []string { return append([]string(nil), d.keys...) }
func (d *DictVal) Len() int       { return len(d.keys) }

// SetVal backs TagSet: mutable, insertion-ordered membership set keyed by
// the values' canonical string form.
type SetVal struct {
	order []string
	items map[string]Value
}

func NewSet() *SetVal { return &SetVal{items: map[string]Value{}} }

func (s *SetVal) Add(v Value) {
	k := canonicalKey(v)
	if _, exists := s.items[k]; !exists {
		s.order = append(s.order, k)
	}
	s.items[k] = v
}

func (s *SetVal) Contains(v Value) bool {
	_, ok := s.items[canonicalKey(v)]
	return ok
}

func (s *SetVal) Len() int { return len(s.order) }

func (s *SetVal) Items() []Value {
	out := make([]Value, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

func canonicalKey(v Value) string {
	switch v.Tag {
	case TagNil:
		return "n:"
	case TagInt:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case TagFloat:
		return "f:" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TagString:
		return "s:" + v.Str
	case TagBool:
		return "b:" + strconv.FormatBool(v.Bool)
	default:
		return "r:" + v.Display()
	}
}

// --- constructors ---

func Nil() Value              { return Value{Tag: TagNil} }
func Int(n int64) Value       { return Value{Tag: TagInt, Int: n} }
func Float(f float64) Value   { return Value{Tag: TagFloat, Float: f} }
func String(s string) Value   { return Value{Tag: TagString, Str: s} }
func Bool(b bool) Value       { return Value{Tag: TagBool, Bool: b} }
func List(items []Value) Value {
	return Value{Tag: TagList, List: &ListVal{Items: items}}
}
func Tuple(items []Value) Value { return Value{Tag: TagTuple, Tuple: items} }
func Dict(d *DictVal) Value     { return Value{Tag: TagDict, Dict: d} }
func Set(s *SetVal) Value       { return Value{Tag: TagSet, Set: s} }
func Range(from, to, step int64) Value {
	return Value{Tag: TagRange, Range: RangeVal{From: from, To: to, Step: step}}
}
func Struct(s *StructInstance) Value  { return Value{Tag: TagStruct, Struct: s} }
func Func(f *FuncRef) Value           { return Value{Tag: TagFuncRef, Func: f} }
func Type(t *TypeDescriptor) Value    { return Value{Tag: TagType, Type: t} }
func Pipe(p *PipeValue) Value         { return Value{Tag: TagPipe, Pipe: p} }

// NewFuncRefValue wraps an opaque page handle (a *bytecode.Page, passed
// as `any` by the caller) into a function-reference value.
func NewFuncRefValue(name string, page any) Value {
	return Func(&FuncRef{Name: name, Page: page})
}

// NewClosureValue wraps a page handle together with a captured-variable
// frame snapshot.
func NewClosureValue(name string, page any, captured []Value) Value {
	return Func(&FuncRef{Name: name, Page: page, Captured: captured})
}

// NewProgramRefValue builds a reference to an external program resolved
// by name at call time (spec §4.3 FunctionReference Program fallback).
func NewProgramRefValue(name string) Value {
	return Func(&FuncRef{Name: name, IsProgram: true, ProgName: name})
}

// --- predicates / conversions ---

func (v Value) IsNil() bool { return v.Tag == TagNil }

// Truthy implements the language's notion of truthiness used by If/While
// conditions and the And/Or operators (both operands are evaluated).
func (v Value) Truthy() bool {
	switch v.Tag {
	case TagNil:
		return false
	case TagBool:
		return v.Bool
	case TagInt:
		return v.Int != 0
	case TagFloat:
		return v.Float != 0
	case TagString:
		return v.Str != ""
	case TagList:
		return len(v.List.Items) != 0
	case TagTuple:
		return len(v.Tuple) != 0
	case TagDict:
		return v.Dict.Len() != 0
	case TagSet:
		return v.Set.Len() != 0
	default:
		return true
	}
}

// Display renders a value the way string interpolation and `print` do.
func (v Value) Display() string {
	switch v.Tag {
	case TagNil:
		return "nil"
	case TagInt:
		return strconv.FormatInt(v.Int, 10)
	case TagFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TagString:
		return v.Str
	case TagBool:
		return strconv.FormatBool(v.Bool)
	case TagList:
		parts := make([]string, len(v.List.Items))
		for i, it := range v.List.Items {
			parts[i] = it.Display()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TagTuple:
		parts := make([]string, len(v.Tuple))
		for i, it := range v.Tuple {
			parts[i] = it.Display()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case TagDict:
		keys := v.Dict.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			val, _ := v.Dict.Get(k)
			parts[i] = fmt.Sprintf("%s: %s", k, val.Display())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TagSet:
		items := v.Set.Items()
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.Display()
		}
		sort.Strings(parts)
		return "{" + strings.Join(parts, ", ") + "}"
	case TagRange:
		return fmt.Sprintf("%d..%d", v.Range.From, v.Range.To)
	case TagStruct:
		parts := make([]string, 0, len(v.Struct.Order))
		for _, name := range v.Struct.Order {
			parts = append(parts, fmt.Sprintf("%s: %s", name, v.Struct.Fields[name].Display()))
		}
		return fmt.Sprintf("%s{%s}", v.Struct.TypeName, strings.Join(parts, ", "))
	case TagFuncRef:
		return fmt.Sprintf("<function %s>", v.Func.Name)
	case TagType:
		return fmt.Sprintf("<type %s>", v.Type.Name)
	case TagPipe:
		return "<pipe>"
	default:
		return "<?>"
	}
}

// Invalid-cast, invalid-operation and not-found errors are constructed
// through the typed helpers in errors.go; this file only converts values.

// Cast converts v to the named type tag, per spec §4.1. Fails with
// *invalid cast* when the conversion has no defined semantics.
func Cast(v Value, target string) (Value, error) {
	switch target {
	case "int":
		switch v.Tag {
		case TagInt:
			return v, nil
		case TagFloat:
			return Int(int64(v.Float)), nil
		case TagBool:
			if v.Bool {
				return Int(1), nil
			}
			return Int(0), nil
		case TagString:
			n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
			if err != nil {
				return Value{}, NewInvalidNumberLiteralError(v.Str)
			}
			return Int(n), nil
		}
	case "float":
		switch v.Tag {
		case TagFloat:
			return v, nil
		case TagInt:
			return Float(float64(v.Int)), nil
		case TagString:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
			if err != nil {
				return Value{}, NewInvalidNumberLiteralError(v.Str)
			}
			return Float(f), nil
		}
	case "string":
		return String(v.Display()), nil
	case "bool":
		return Bool(v.Truthy()), nil
	case "list":
		switch v.Tag {
		case TagList:
			return v, nil
		case TagTuple:
			return List(append([]Value(nil), v.Tuple...)), nil
		case TagSet:
			return List(v.Set.Items()), nil
		case TagRange:
			return List(rangeToList(v.Range)), nil
		}
	}
	return Value{}, NewInvalidCastError(v.Tag.String(), target)
}

func rangeToList(r RangeVal) []Value {
	var out []Value
	step := r.Step
	if step == 0 {
		step = 1
	}
	if step > 0 {
		for i := r.From; i < r.To; i += step {
			out = append(out, Int(i))
		}
	} else {
		for i := r.From; i > r.To; i += step {
			out = append(out, Int(i))
		}
	}
	return out
}

// OperatorKind enumerates the binary operators the generator lowers to
// arithmetic/logic opcodes and that BinaryOp dispatches on.
type OperatorKind uint8

const (
	OpAdd OperatorKind = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAnd
	OpOr
	OpContains
)

// BinaryOp applies a binary operation tagged by operator kind, per spec
// §4.1. Fails with *invalid operation* when undefined for the tag pair.
func BinaryOp(op OperatorKind, a, b Value) (Value, error) {
	switch op {
	case OpAdd:
		return arith(op, a, b)
	case OpSub, OpMul, OpDiv, OpMod:
		return arith(op, a, b)
	case OpEqual:
		return Bool(Equal(a, b)), nil
	case OpNotEqual:
		return Bool(!Equal(a, b)), nil
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		return compare(op, a, b)
	case OpAnd:
		return Bool(a.Truthy() && b.Truthy()), nil
	case OpOr:
		return Bool(a.Truthy() || b.Truthy()), nil
	case OpContains:
		return contains(a, b)
	}
	return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
}

func arith(op OperatorKind, a, b Value) (Value, error) {
	if a.Tag == TagString && b.Tag == TagString && op == OpAdd {
		return String(a.Str + b.Str), nil
	}
	if a.Tag == TagList && b.Tag == TagList && op == OpAdd {
		items := append(append([]Value(nil), a.List.Items...), b.List.Items...)
		return List(items), nil
	}
	if isNumeric(a) && isNumeric(b) {
		if a.Tag == TagFloat || b.Tag == TagFloat {
			x, y := asFloat(a), asFloat(b)
			switch op {
			case OpAdd:
				return Float(x + y), nil
			case OpSub:
				return Float(x - y), nil
			case OpMul:
				return Float(x * y), nil
			case OpDiv:
				if y == 0 {
					return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
				}
				return Float(x / y), nil
			case OpMod:
				if y == 0 {
					return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
				}
				return Float(float64(int64(x) % int64(y))), nil
			}
		}
		x, y := a.Int, b.Int
		switch op {
		case OpAdd:
			return Int(x + y), nil
		case OpSub:
			return Int(x - y), nil
		case OpMul:
			return Int(x * y), nil
		case OpDiv:
			if y == 0 {
				return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
			}
			return Int(x / y), nil
		case OpMod:
			if y == 0 {
				return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
			}
			return Int(x % y), nil
		}
	}
	return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
}

func compare(op OperatorKind, a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		if a.Tag == TagString && b.Tag == TagString {
			switch op {
			case OpGreater:
				return Bool(a.Str > b.Str), nil
			case OpGreaterEqual:
				return Bool(a.Str >= b.Str), nil
			case OpLess:
				return Bool(a.Str < b.Str), nil
			case OpLessEqual:
				return Bool(a.Str <= b.Str), nil
			}
		}
		return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
	}
	x, y := asFloat(a), asFloat(b)
	switch op {
	case OpGreater:
		return Bool(x > y), nil
	case OpGreaterEqual:
		return Bool(x >= y), nil
	case OpLess:
		return Bool(x < y), nil
	case OpLessEqual:
		return Bool(x <= y), nil
	}
	return Value{}, NewInvalidOperationError(op, a.Tag, b.Tag)
}

func contains(a, b Value) (Value, error) {
	switch a.Tag {
	case TagList:
		for _, it := range a.List.Items {
			if Equal(it, b) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case TagSet:
		return Bool(a.Set.Contains(b)), nil
	case TagDict:
		if b.Tag != TagString {
			return Value{}, NewInvalidOperationError(OpContains, a.Tag, b.Tag)
		}
		_, ok := a.Dict.Get(b.Str)
		return Bool(ok), nil
	case TagString:
		if b.Tag != TagString {
			return Value{}, NewInvalidOperationError(OpContains, a.Tag, b.Tag)
		}
		return Bool(strings.Contains(a.Str, b.Str)), nil
	case TagRange:
		if b.Tag != TagInt {
			return Value{}, NewInvalidOperationError(OpContains, a.Tag, b.Tag)
		}
		return Bool(inRange(a.Range, b.Int)), nil
	}
	return Value{}, NewInvalidOperationError(OpContains, a.Tag, b.Tag)
}

func inRange(r RangeVal, n int64) bool {
	step := r.Step
	if step == 0 {
		step = 1
	}
	if step > 0 {
		return n >= r.From && n < r.To && (n-r.From)%step == 0
	}
	return n <= r.From && n > r.To && (r.From-n)%(-step) == 0
}

func isNumeric(v Value) bool { return v.Tag == TagInt || v.Tag == TagFloat }
func asFloat(v Value) float64 {
	if v.Tag == TagFloat {
		return v.Float
	}
	return float64(v.Int)
}

// Equal implements value equality used by ==, !=, and set/dict keys.
func Equal(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return asFloat(a) == asFloat(b)
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagNil:
		return true
	case TagString:
		return a.Str == b.Str
	case TagBool:
		return a.Bool == b.Bool
	case TagList:
		if len(a.List.Items) != len(b.List.Items) {
			return false
		}
		for i := range a.List.Items {
			if !Equal(a.List.Items[i], b.List.Items[i]) {
				return false
			}
		}
		return true
	case TagTuple:
		if len(a.Tuple) != len(b.Tuple) {
			return false
		}
		for i := range a.Tuple {
			if !Equal(a.Tuple[i], b.Tuple[i]) {
				return false
			}
		}
		return true
	case TagRange:
		return a.Range == b.Range
	default:
		return a.Display() == b.Display()
	}
}

// Iterator is the protocol behind GetIter/ForIter/EndFor (spec §4.5).
type Iterator interface {
	Next() (Value, bool, error)
}

// GetIterator converts a value into its iterator, or fails with
// *invalid operation* if the tag is not iterable.
func GetIterator(v Value) (Iterator, error) {
	switch v.Tag {
	case TagList:
		return &listIterator{items: v.List.Items}, nil
	case TagTuple:
		return &listIterator{items: v.Tuple}, nil
	case TagRange:
		return &rangeIterator{cur: v.Range.From, r: v.Range}, nil
	case TagString:
		return &stringIterator{runes: []rune(v.Str)}, nil
	case TagSet:
		return &listIterator{items: v.Set.Items()}, nil
	case TagDict:
		return &listIterator{items: dictEntries(v.Dict)}, nil
	case TagPipe:
		return v.Pipe, nil
	default:
		return nil, NewInvalidOperationErrorSimple("iterate", v.Tag)
	}
}

func dictEntries(d *DictVal) []Value {
	out := make([]Value, 0, d.Len())
	for _, k := range d.Keys() {
		val, _ := d.Get(k)
		out = append(out, Tuple([]Value{String(k), val}))
	}
	return out
}

type listIterator struct {
	items []Value
	pos   int
}

func (it *listIterator) Next() (Value, bool, error) {
	if it.pos >= len(it.items) {
		return Value{}, false, nil
	}
	v := it.items[it.pos]
	it.pos++
	return v, true, nil
}

type rangeIterator struct {
	cur int64
	r   RangeVal
}

func (it *rangeIterator) Next() (Value, bool, error) {
	step := it.r.Step
	if step == 0 {
		step = 1
	}
	if step > 0 && it.cur >= it.r.To {
		return Value{}, false, nil
	}
	if step < 0 && it.cur <= it.r.To {
		return Value{}, false, nil
	}
	v := Int(it.cur)
	it.cur += step
	return v, true, nil
}

type stringIterator struct {
	runes []rune
	pos   int
}

func (it *stringIterator) Next() (Value, bool, error) {
	if it.pos >= len(it.runes) {
		return Value{}, false, nil
	}
	v := String(string(it.runes[it.pos]))
	it.pos++
	return v, true, nil
}

// Index implements list/dict/tuple/string indexed read access (e.g.
// `xs[1]`), surfacing *not found* with the offending index in the
// message per spec §8 scenario 2.
func Index(recv, idx Value) (Value, error) {
	switch recv.Tag {
	case TagList:
		i, err := indexOf(idx, len(recv.List.Items))
		if err != nil {
			return Value{}, err
		}
		return recv.List.Items[i], nil
	case TagTuple:
		i, err := indexOf(idx, len(recv.Tuple))
		if err != nil {
			return Value{}, err
		}
		return recv.Tuple[i], nil
	case TagString:
		runes := []rune(recv.Str)
		i, err := indexOf(idx, len(runes))
		if err != nil {
			return Value{}, err
		}
		return String(string(runes[i])), nil
	case TagDict:
		if idx.Tag != TagString {
			return Value{}, NewInvalidOperationError(OpContains, recv.Tag, idx.Tag)
		}
		v, ok := recv.Dict.Get(idx.Str)
		if !ok {
			return Value{}, NewNotFoundError(fmt.Sprintf("key %q", idx.Str))
		}
		return v, nil
	}
	return Value{}, NewInvalidOperationErrorSimple("index", recv.Tag)
}

func indexOf(idx Value, length int) (int, error) {
	if idx.Tag != TagInt {
		return 0, NewInvalidOperationErrorSimple("index", idx.Tag)
	}
	i := int(idx.Int)
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, NewNotFoundError(fmt.Sprintf("index %d", idx.Int))
	}
	return i, nil
}

// IndexAssign implements list/dict indexed assignment (`xs[1] = v`).
func IndexAssign(recv, idx, val Value) error {
	switch recv.Tag {
	case TagList:
		i, err := indexOf(idx, len(recv.List.Items))
		if err != nil {
			return err
		}
		recv.List.Items[i] = val
		return nil
	case TagDict:
		if idx.Tag != TagString {
			return errors.Wrap(NewInvalidOperationError(OpContains, recv.Tag, idx.Tag), "index assignment")
		}
		recv.Dict.Set(idx.Str, val)
		return nil
	}
	return NewInvalidOperationErrorSimple("index assignment", recv.Tag)
}
