// Package cfgbuild builds basic blocks and control-flow edges from
// decoded instructions within CODE regions, per spec.md §4.4. Blocks
// and edges are kept in ordered, address-keyed containers rather than
// live references to each other — the arena-by-address model spec.md
// §9 calls for — so there is no owning-cycle problem between blocks.
// Grounded on the worklist (addrQueue: push/pop/seen) in
// Urethramancer-m68k's disassembler/disassemble.go, generalized from a
// flat reachability set into per-block leader/edge construction.
package cfgbuild

import (
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/isa"
)

// TerminatorKind is the closed set of ways a basic block can end.
type TerminatorKind int

const (
	TermFallthrough TerminatorKind = iota
	TermConditional
	TermUnconditional
	TermCallWithFallthrough
	TermReturn
	TermIndirect
)

// BasicBlock is a maximal straight-line instruction sequence within a
// CODE region.
type BasicBlock struct {
	Leader      uint64
	Terminator  uint64
	Instrs      []uint64 // instruction addresses, ascending
	TermKind    TerminatorKind
	External    bool // synthetic block created for a cross-region target
}

// EdgeType is the closed set of CFG edge kinds.
type EdgeType int

const (
	EdgeFallthrough EdgeType = iota
	EdgeBranchTaken
	EdgeBranchNotTaken
	EdgeUnconditional
	EdgeCall
	EdgeReturn
	EdgeUnresolved
)

func (e EdgeType) String() string {
	switch e {
	case EdgeFallthrough:
		return "FALLTHROUGH"
	case EdgeBranchTaken:
		return "BRANCH_TAKEN"
	case EdgeBranchNotTaken:
		return "BRANCH_NOT_TAKEN"
	case EdgeUnconditional:
		return "UNCONDITIONAL"
	case EdgeCall:
		return "CALL"
	case EdgeReturn:
		return "RETURN"
	default:
		return "UNRESOLVED"
	}
}

// Edge is a directed relation between two blocks, keyed by leader
// address. To is zero/ignored whenever HasTo is false — always the
// case for EdgeUnresolved, and also true for an EdgeCall whose target
// could not be resolved statically.
type Edge struct {
	From   uint64
	To     uint64
	Type   EdgeType
	HasTo  bool
}

// RegionSpan records which address range of the CFG's blocks came from
// which CODE region, for renderers that want to report per-region
// structure without re-deriving it from addresses.
type RegionSpan struct {
	Start, End uint64
}

// CFG is the control-flow graph over every CODE region of an artifact.
// Blocks and edges are keyed by leader address and kept in ascending
// order; an edge may legally point at a block belonging to a different
// region than its source (a direct branch or call crossing between two
// separate CODE regions), which is why blocks live in one shared,
// address-keyed arena rather than per-region containers.
type CFG struct {
	Regions    []RegionSpan
	Blocks     []BasicBlock
	BlockIndex map[uint64]int
	Edges      map[uint64][]Edge // from leader address, in the fixed emission order
}

// BlockAt looks up the block owning leader address addr.
func (c *CFG) BlockAt(addr uint64) (*BasicBlock, bool) {
	i, ok := c.BlockIndex[addr]
	if !ok {
		return nil, false
	}
	return &c.Blocks[i], true
}

// terminatorFor maps an instruction's category to the TerminatorKind a
// block ending on it gets. Sequential and unknown categories map to
// TermFallthrough.
func terminatorFor(inst decode.Instruction) TerminatorKind {
	switch inst.Category {
	case isa.CategoryCall:
		return TermCallWithFallthrough
	case isa.CategoryReturn:
		return TermReturn
	case isa.CategoryConditionalBranch:
		return TermConditional
	case isa.CategoryUnconditionalBranch:
		return TermUnconditional
	case isa.CategoryIndirect:
		return TermIndirect
	default:
		return TermFallthrough
	}
}
