// Package builtin is the single source of truth for the six reserved
// builtin functions, shared by the parser (name recognition), the checker
// (signatures), the code generator (CALL_BUILTIN operand), and the VM
// (dispatch) so the four passes can never disagree about an index.
package builtin

// Fixed indices, honored identically by codegen and the VM.
const (
	Print = iota
	ToString
	Length
	Clone
	Append
	Random
	Count
)

// Names maps a reserved identifier to its fixed index. A bare identifier
// matching one of these is parsed as a builtin call rather than a
// variable read.
var Names = map[string]int{
	"print":     Print,
	"to_string": ToString,
	"length":    Length,
	"clone":     Clone,
	"append":    Append,
	"random":    Random,
}

// NameOf is the inverse of Names, used by the disassembler.
var NameOf = []string{"print", "to_string", "length", "clone", "append", "random"}
