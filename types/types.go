// Package types implements the static type lattice checked by the checker
// package and carried on resolved AST nodes: void, int, bool, string, array
// and function, compared by structural equality.
package types

import "strings"

// Kind tags the variant held by a Type value.
type Kind int

const (
	Void Kind = iota
	Int
	Bool
	String
	Array
	Function
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Array:
		return "array"
	case Function:
		return "function"
	default:
		return "unknown"
	}
}

// Type is a structural type value. Array and Function carry nested Types;
// all other kinds are leaves.
type Type struct {
	Kind   Kind
	Elem   *Type  // Array element type
	Params []Type // Function parameter types, in order
	Ret    *Type  // Function return type
}

var (
	VoidType   = Type{Kind: Void}
	IntType    = Type{Kind: Int}
	BoolType   = Type{Kind: Bool}
	StringType = Type{Kind: String}
)

// NewArray builds an array(element: elem) type.
func NewArray(elem Type) Type {
	e := elem
	return Type{Kind: Array, Elem: &e}
}

// NewFunction builds a function(params, ret) type.
func NewFunction(params []Type, ret Type) Type {
	r := ret
	return Type{Kind: Function, Params: params, Ret: &r}
}

// Equals reports structural equality: tags must match and, recursively,
// element types / parameter sequences / return types must be equal.
func (t Type) Equals(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Array:
		return t.Elem.Equals(*other.Elem)
	case Function:
		if len(t.Params) != len(other.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equals(other.Params[i]) {
				return false
			}
		}
		return t.Ret.Equals(*other.Ret)
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case Array:
		return "[" + t.Elem.String() + "]"
	case Function:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return "fn(" + strings.Join(parts, ", ") + ") -> " + t.Ret.String()
	default:
		return t.Kind.String()
	}
}

// Builtin looks up one of the four built-in type names used in type
// expressions: int, bool, string, void.
func Builtin(name string) (Type, bool) {
	switch name {
	case "int":
		return IntType, true
	case "bool":
		return BoolType, true
	case "string":
		return StringType, true
	case "void":
		return VoidType, true
	default:
		return Type{}, false
	}
}
