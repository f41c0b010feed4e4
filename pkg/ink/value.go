package ink

import (
	"fmt"
	"math"
)

// ValueType tags the variant held by a Value cell. Values are a single
// struct with an explicit kind tag rather than an interface hierarchy: the
// executioner's arithmetic, comparison, and rendering code switches on Type
// once instead of dispatching through per-kind methods, which keeps the
// hot step loop free of interface-call overhead and keeps every kind's
// storage representation uniform for the snapshot codec.
type ValueType uint8

const (
	TypeNone ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeUint32
	TypeString
	TypeList
	TypeDivertTarget
	TypeDivertValue
	TypeVariablePointer
	TypeNewline
	TypeGlue
	TypeFunctionStart
	TypeFunctionEnd
	TypeThreadStart
	TypeTagStart
	TypeTagEnd
)

func (t ValueType) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeUint32:
		return "uint32"
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeDivertTarget:
		return "divert-target"
	case TypeDivertValue:
		return "divert-value"
	case TypeVariablePointer:
		return "variable-pointer"
	case TypeNewline:
		return "newline"
	case TypeGlue:
		return "glue"
	case TypeFunctionStart:
		return "function-start"
	case TypeFunctionEnd:
		return "function-end"
	case TypeThreadStart:
		return "thread-start"
	case TypeTagStart:
		return "tag-start"
	case TypeTagEnd:
		return "tag-end"
	default:
		return "unknown"
	}
}

// isMarker reports whether a value type is a control marker rather than a
// printable or storable datum. Markers never contribute characters when the
// output stream is rendered.
func (t ValueType) isMarker() bool {
	switch t {
	case TypeNewline, TypeGlue, TypeFunctionStart, TypeFunctionEnd, TypeThreadStart, TypeTagStart, TypeTagEnd:
		return true
	default:
		return false
	}
}

// VarScopeHint narrows where a variable-pointer value should be resolved.
type VarScopeHint uint8

const (
	ScopeUnknown VarScopeHint = iota
	ScopeGlobal
	ScopeLocalStack
)

// Value is the tagged value cell described in spec.md §3/§4.1. It is a
// value type: copying a Value copies the cell; strings and lists are
// referred to by table index so copies stay cheap.
type Value struct {
	Type ValueType

	i      int32
	f      float64
	b      bool
	u      uint32
	str    stringRef
	list   listRef
	target divertTarget
	// varName is the name-hash for a TypeVariablePointer; varScope is the
	// hint carried alongside it. varIndex is used when the pointer names a
	// stack-relative slot instead of a name (scope == ScopeLocalStack).
	varName  uint32
	varScope VarScopeHint
	varIndex int32
}

func NewInt(v int32) Value              { return Value{Type: TypeInt, i: v} }
func NewFloat(v float64) Value          { return Value{Type: TypeFloat, f: v} }
func NewBool(v bool) Value              { return Value{Type: TypeBool, b: v} }
func NewUint32(v uint32) Value          { return Value{Type: TypeUint32, u: v} }
func NewStringValue(ref stringRef) Value { return Value{Type: TypeString, str: ref} }
func NewListValue(ref listRef) Value     { return Value{Type: TypeList, list: ref} }
func NewNone() Value                    { return Value{Type: TypeNone} }

func NewDivertTarget(t divertTarget) Value {
	return Value{Type: TypeDivertTarget, target: t}
}

func NewDivertValue(t divertTarget, recordVisits bool) Value {
	return Value{Type: TypeDivertValue, target: t, b: recordVisits}
}

func NewVariablePointerByName(nameHash uint32, scope VarScopeHint) Value {
	return Value{Type: TypeVariablePointer, varName: nameHash, varScope: scope}
}

func NewVariablePointerByIndex(stackIndex int32) Value {
	return Value{Type: TypeVariablePointer, varScope: ScopeLocalStack, varIndex: stackIndex}
}

func newlineValue() Value      { return Value{Type: TypeNewline} }
func glueValue() Value         { return Value{Type: TypeGlue} }
func functionStartValue() Value { return Value{Type: TypeFunctionStart} }
func functionEndValue() Value  { return Value{Type: TypeFunctionEnd} }
func threadStartValue() Value  { return Value{Type: TypeThreadStart} }
func tagStartValue() Value     { return Value{Type: TypeTagStart} }
func tagEndValue() Value       { return Value{Type: TypeTagEnd} }

// String renders a debug form of the value; it does not have access to
// the string/list tables, so String() and List() payloads show only
// their table reference.
func (v Value) String() string {
	switch v.Type {
	case TypeInt:
		return formatInt(v.i)
	case TypeFloat:
		return formatFloat(v.f)
	case TypeBool:
		return formatBool(v.b)
	case TypeUint32:
		return formatUint32(v.u)
	case TypeString:
		return fmt.Sprintf("str#%d", v.str)
	case TypeList:
		return fmt.Sprintf("list#%d", v.list)
	case TypeNone:
		return "none"
	default:
		return v.Type.String()
	}
}

// AsInt returns the payload of an int-typed value; callers must check Type.
func (v Value) AsInt() int32              { return v.i }
func (v Value) AsFloat() float64          { return v.f }
func (v Value) AsBool() bool              { return v.b }
func (v Value) AsUint32() uint32          { return v.u }
func (v Value) AsStringRef() stringRef    { return v.str }
func (v Value) AsListRef() listRef        { return v.list }
func (v Value) AsDivertTarget() divertTarget { return v.target }
func (v Value) RecordVisits() bool        { return v.b }

// IsTruthy applies ink's boolean-context coercion: booleans and numbers
// coerce by their usual zero test and None is false. Every other kind,
// strings included, is true whatever its content; no string-table lookup
// is made, so an empty string is true.
func (v Value) IsTruthy() (bool, error) {
	switch v.Type {
	case TypeBool:
		return v.b, nil
	case TypeInt:
		return v.i != 0, nil
	case TypeFloat:
		return v.f != 0, nil
	case TypeNone:
		return false, nil
	default:
		return true, nil
	}
}

// numeric reports whether a value participates in arithmetic directly.
func (v Value) numeric() bool {
	return v.Type == TypeInt || v.Type == TypeFloat
}

func (v Value) floatOf() float64 {
	if v.Type == TypeFloat {
		return v.f
	}
	return float64(v.i)
}

// BinaryOp is the set of arithmetic/logic/comparison opcodes the
// executioner's binary-op instruction can carry.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
	OpAnd
	OpOr
	OpMin
	OpMax
	OpPow
)

func (op BinaryOp) String() string {
	names := [...]string{"+", "-", "*", "/", "%", "==", "!=", "<", ">", "<=", ">=", "&&", "||", "min", "max", "pow"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// Arith evaluates a binary operator over two values, promoting int to
// float whenever either operand is float, per spec §4.1. Division and
// modulo by a zero integer or float divisor are fatal per spec §4.5.
func Arith(op BinaryOp, a, b Value) (Value, error) {
	switch op {
	case OpEq:
		return NewBool(valuesEqual(a, b)), nil
	case OpNeq:
		return NewBool(!valuesEqual(a, b)), nil
	}

	if op == OpAnd || op == OpOr {
		at, err := a.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		bt, err := b.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		if op == OpAnd {
			return NewBool(at && bt), nil
		}
		return NewBool(at || bt), nil
	}

	if !a.numeric() || !b.numeric() {
		return Value{}, &FatalError{Msg: fmt.Sprintf("arithmetic on non-numeric value: %s %s %s", a.Type, op, b.Type)}
	}

	useFloat := a.Type == TypeFloat || b.Type == TypeFloat
	if useFloat {
		af, bf := a.floatOf(), b.floatOf()
		switch op {
		case OpAdd:
			return NewFloat(af + bf), nil
		case OpSub:
			return NewFloat(af - bf), nil
		case OpMul:
			return NewFloat(af * bf), nil
		case OpDiv:
			if bf == 0 {
				return Value{}, &FatalError{Msg: "division by zero"}
			}
			return NewFloat(af / bf), nil
		case OpMod:
			if bf == 0 {
				return Value{}, &FatalError{Msg: "modulo by zero"}
			}
			return NewFloat(math.Mod(af, bf)), nil
		case OpLess:
			return NewBool(af < bf), nil
		case OpGreater:
			return NewBool(af > bf), nil
		case OpLessEq:
			return NewBool(af <= bf), nil
		case OpGreaterEq:
			return NewBool(af >= bf), nil
		case OpMin:
			return NewFloat(math.Min(af, bf)), nil
		case OpMax:
			return NewFloat(math.Max(af, bf)), nil
		case OpPow:
			return NewFloat(math.Pow(af, bf)), nil
		}
	} else {
		ai, bi := a.i, b.i
		switch op {
		case OpAdd:
			return NewInt(ai + bi), nil
		case OpSub:
			return NewInt(ai - bi), nil
		case OpMul:
			return NewInt(ai * bi), nil
		case OpDiv:
			if bi == 0 {
				return Value{}, &FatalError{Msg: "division by zero"}
			}
			return NewInt(ai / bi), nil
		case OpMod:
			if bi == 0 {
				return Value{}, &FatalError{Msg: "modulo by zero"}
			}
			return NewInt(ai % bi), nil
		case OpLess:
			return NewBool(ai < bi), nil
		case OpGreater:
			return NewBool(ai > bi), nil
		case OpLessEq:
			return NewBool(ai <= bi), nil
		case OpGreaterEq:
			return NewBool(ai >= bi), nil
		case OpMin:
			return NewInt(min32(ai, bi)), nil
		case OpMax:
			return NewInt(max32(ai, bi)), nil
		case OpPow:
			return NewFloat(math.Pow(float64(ai), float64(bi))), nil
		}
	}

	return Value{}, &FatalError{Msg: fmt.Sprintf("unsupported binary op %v", op)}
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// valuesEqual compares by value for numeric/bool/uint32 kinds and by table
// reference identity for strings and lists; callers needing content
// equality for strings go through the string table instead.
func valuesEqual(a, b Value) bool {
	if a.Type == TypeNone || b.Type == TypeNone {
		return a.Type == b.Type
	}
	if a.numeric() && b.numeric() {
		if a.Type == TypeFloat || b.Type == TypeFloat {
			return a.floatOf() == b.floatOf()
		}
		return a.i == b.i
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeBool:
		return a.b == b.b
	case TypeUint32:
		return a.u == b.u
	case TypeString:
		return a.str == b.str
	case TypeList:
		return a.list == b.list
	case TypeDivertTarget, TypeDivertValue:
		return a.target == b.target
	default:
		return true
	}
}

// UnaryOp is the set of unary operators the executioner supports.
type UnaryOp uint8

const (
	OpNegate UnaryOp = iota
	OpNot
	OpFloor
	OpCeiling
	OpToInt
	OpToFloat
)

// Unary evaluates a unary operator.
func Unary(op UnaryOp, v Value) (Value, error) {
	switch op {
	case OpNot:
		t, err := v.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		return NewBool(!t), nil
	case OpNegate:
		if v.Type == TypeFloat {
			return NewFloat(-v.f), nil
		}
		if v.Type == TypeInt {
			return NewInt(-v.i), nil
		}
		return Value{}, &FatalError{Msg: "negate of non-numeric value"}
	case OpFloor:
		if v.Type == TypeInt {
			return v, nil
		}
		if v.Type != TypeFloat {
			return Value{}, &FatalError{Msg: "floor of non-numeric value"}
		}
		return NewFloat(math.Floor(v.f)), nil
	case OpCeiling:
		if v.Type == TypeInt {
			return v, nil
		}
		if v.Type != TypeFloat {
			return Value{}, &FatalError{Msg: "ceiling of non-numeric value"}
		}
		return NewFloat(math.Ceil(v.f)), nil
	case OpToInt:
		if v.Type == TypeInt {
			return v, nil
		}
		if v.Type != TypeFloat {
			return Value{}, &FatalError{Msg: "int() of non-numeric value"}
		}
		return NewInt(int32(v.f)), nil
	case OpToFloat:
		if v.Type == TypeFloat {
			return v, nil
		}
		if v.Type != TypeInt {
			return Value{}, &FatalError{Msg: "float() of non-numeric value"}
		}
		return NewFloat(float64(v.i)), nil
	}
	return Value{}, &FatalError{Msg: "unsupported unary op"}
}
