// Package isa describes the closed, static z/Architecture instruction
// vocabulary that the rest of zrecon is built against: instruction
// categories, confidence levels, and the tagged union of operand shapes.
// Nothing in this package touches bytes; decode/ does that.
package isa

// Category classifies a decoded instruction for control-flow purposes.
type Category int

const (
	// CategoryUnknown marks an instruction the decoder could not assign
	// a category to. Decoded instructions should never carry this; it
	// exists as the zero value so a forgotten assignment is loud.
	CategoryUnknown Category = iota
	CategorySequential
	CategoryConditionalBranch
	CategoryUnconditionalBranch
	CategoryCall
	CategoryReturn
	CategoryIndirect
)

func (c Category) String() string {
	switch c {
	case CategorySequential:
		return "sequential"
	case CategoryConditionalBranch:
		return "conditional-branch"
	case CategoryUnconditionalBranch:
		return "unconditional-branch"
	case CategoryCall:
		return "call"
	case CategoryReturn:
		return "return"
	case CategoryIndirect:
		return "indirect"
	default:
		return "unknown"
	}
}

// Confidence is a three-valued ordered enum. It is never a probability:
// comparisons use the Less/AtLeast ordering below, never arithmetic.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	default:
		return "LOW"
	}
}

// Less reports whether c is strictly below other in the LOW < MEDIUM <
// HIGH ordering.
func (c Confidence) Less(other Confidence) bool { return c < other }

// AtLeast reports whether c meets or exceeds other in the ordering.
func (c Confidence) AtLeast(other Confidence) bool { return c >= other }

// OperandKind is the closed tag of the Operand union.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandImmediate
	OperandBaseDisp
	OperandBaseIndexDisp
	OperandPCRelative
	OperandOpaque
)

// Operand is a closed tagged union over the operand shapes a
// z/Architecture instruction can carry. Exactly the fields relevant to
// Kind are meaningful; callers must switch exhaustively on Kind.
type Operand struct {
	Kind OperandKind

	// OperandRegister
	Reg uint8

	// OperandImmediate
	Imm int64

	// OperandBaseDisp / OperandBaseIndexDisp
	Base  uint8
	Index uint8 // only meaningful for OperandBaseIndexDisp
	Disp  int32

	// OperandPCRelative
	Target uint64

	// OperandOpaque: raw bits the decoder could not interpret further,
	// kept only so evidence/comments can show the original encoding.
	Raw uint32
}
