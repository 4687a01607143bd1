// Package value implements the VM's tagged word type and its heap object
// payloads, shared by the code generator (the constant pool holds Values)
// and the virtual machine (the evaluation stack holds Values).
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags which field of a Value is meaningful.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindFunc
	KindObject
)

// Value is the VM word: a tagged union of int64, bool, function-table
// index, or a pointer to a heap Object (string or array payload).
type Value struct {
	Kind Kind
	Int  int64
	Bool bool
	Func int
	Obj  *Object
}

func Int(i int64) Value  { return Value{Kind: KindInt, Int: i} }
func Bool(b bool) Value  { return Value{Kind: KindBool, Bool: b} }
func Func(idx int) Value { return Value{Kind: KindFunc, Func: idx} }
func Object_(o *Object) Value {
	return Value{Kind: KindObject, Obj: o}
}

// ObjKind tags the payload variant of a heap Object.
type ObjKind int

const (
	ObjString ObjKind = iota
	ObjArray
)

// Object is a GC-managed heap payload. Next threads every live object into
// one singly-linked list rooted at the VM's heap so a sweep can walk it.
type Object struct {
	Kind    ObjKind
	Str     string
	Arr     []Value
	Marked  bool
	Next    *Object
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindFunc:
		return fmt.Sprintf("<function %d>", v.Func)
	case KindObject:
		if v.Obj == nil {
			return "<nil>"
		}
		switch v.Obj.Kind {
		case ObjString:
			return v.Obj.Str
		case ObjArray:
			parts := make([]string, len(v.Obj.Arr))
			for i, e := range v.Obj.Arr {
				parts[i] = e.String()
			}
			return "[" + strings.Join(parts, ", ") + "]"
		}
	}
	return "<invalid>"
}

// Equal compares two values of the same static type for the VM's EQUAL
// opcode. Arrays compare by reference identity (the language has no
// structural array equality operator).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.Int == b.Int
	case KindBool:
		return a.Bool == b.Bool
	case KindFunc:
		return a.Func == b.Func
	case KindObject:
		if a.Obj.Kind != b.Obj.Kind {
			return false
		}
		if a.Obj.Kind == ObjString {
			return a.Obj.Str == b.Obj.Str
		}
		return a.Obj == b.Obj
	}
	return false
}
