package jumptarget

import "fmt"

// Type describes why a jump target was discovered. It also defines the
// decoding priority of the target.
type Type uint8

// Jump target types. The numeric values are identifiers only, the decoding
// priority is defined by the order of the priorities list.
const (
	Unknown Type = iota // default type, lowest priority

	// targets discovered by control flow changing instructions
	BranchNotTaken // fallthrough side of a conditional branch
	BranchTaken    // taken side of a conditional or unconditional branch
	SwitchCase     // entry of a jump table
	CallTarget     // destination of a call
	ReturnTarget   // instruction following a call

	// targets from other sources
	EntryPoint // externally supplied entry point
	Leftover   // guessed start of an undecoded gap
)

// priorities lists all types from highest to lowest decoding priority.
var priorities = []Type{
	BranchNotTaken,
	BranchTaken,
	SwitchCase,
	CallTarget,
	ReturnTarget,
	EntryPoint,
	Leftover,
	Unknown,
}

var typeRanks = func() map[Type]int {
	ranks := make(map[Type]int, len(priorities))
	for i, typ := range priorities {
		ranks[typ] = i
	}
	return ranks
}()

var typeNames = map[Type]string{
	BranchNotTaken: "BranchNotTaken",
	BranchTaken:    "BranchTaken",
	SwitchCase:     "SwitchCase",
	CallTarget:     "CallTarget",
	ReturnTarget:   "ReturnTarget",
	EntryPoint:     "EntryPoint",
	Leftover:       "Leftover",
	Unknown:        "Unknown",
}

// Types returns all jump target types ordered by descending priority.
func Types() []Type {
	types := make([]Type, len(priorities))
	copy(types, priorities)
	return types
}

// Priority returns the rank of the type, a lower rank is decoded first.
// Values outside of the known types rank below Unknown.
func (t Type) Priority() int {
	if rank, ok := typeRanks[t]; ok {
		return rank
	}
	return len(priorities)
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}
