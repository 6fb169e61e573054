package cfgbuild

import (
	"sort"

	"github.com/go-zarch/zrecon/classify"
	"github.com/go-zarch/zrecon/decode"
)

// Unresolved records a branch/call site whose target could not be
// determined statically.
type Unresolved struct {
	From uint64
	Kind EdgeType // EdgeBranchTaken/EdgeUnconditional for a branch, EdgeCall for a call
}

// Build constructs the CFG over every CODE region. instrs indexes every
// decoded instruction across the whole artifact by address, so a
// resolved branch target landing in a different CODE region (or
// outside any CODE region entirely) can still be resolved or, failing
// that, turned into a synthetic external-ref block per spec.md §4.4.
func Build(regions []classify.Region, instrs map[uint64]*decode.Instruction) (*CFG, []Unresolved) {
	cfg := &CFG{BlockIndex: make(map[uint64]int), Edges: make(map[uint64][]Edge)}

	var codeRegions []classify.Region
	for _, r := range regions {
		if r.Kind == classify.Code {
			codeRegions = append(codeRegions, r)
		}
	}
	sort.Slice(codeRegions, func(i, j int) bool { return codeRegions[i].Start < codeRegions[j].Start })

	targetLeaders := globalTargetLeaders(instrs)

	for _, r := range codeRegions {
		cfg.Regions = append(cfg.Regions, RegionSpan{Start: r.Start, End: r.End})
		buildRegionInto(cfg, r, instrs, targetLeaders)
	}

	var unresolved []Unresolved
	for _, b := range cfg.Blocks {
		if b.External {
			continue
		}
		unresolved = append(unresolved, connectEdges(cfg, cfg.Blocks[cfg.BlockIndex[b.Leader]].Leader, instrs)...)
	}

	materializeExternalTargets(cfg)

	return cfg, unresolved
}

func buildRegionInto(cfg *CFG, r classify.Region, instrs map[uint64]*decode.Instruction, targetLeaders map[uint64]bool) {
	ordered := orderedAddresses(instrs, r.Start, r.End)
	leaders := findLeaders(ordered, instrs, targetLeaders)
	splitBlocks(cfg, ordered, leaders, instrs)
}

func orderedAddresses(instrs map[uint64]*decode.Instruction, start, end uint64) []uint64 {
	var out []uint64
	for addr := range instrs {
		if addr >= start && addr < end {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// globalTargetLeaders marks the resolved target of every branch or call
// in the whole artifact as a leader, per spec.md §4.4's rule that ANY
// resolved direct branch or call target is a leader — not just one
// originating from the region currently being split. A branch in one
// CODE region can legally land mid-block in another region entirely;
// without this global pass that target would never become a block
// boundary there, and materializeExternalTargets would wrongly treat
// it as lying outside every CODE region.
func globalTargetLeaders(instrs map[uint64]*decode.Instruction) map[uint64]bool {
	leaders := make(map[uint64]bool)
	for _, inst := range instrs {
		if inst.HasTarget && isTerminatorCategory(inst) {
			leaders[inst.ResolvedTarget] = true
		}
	}
	return leaders
}

// findLeaders applies spec.md §4.4's leader rule: the region's first
// instruction, every resolved direct branch/call target anywhere in the
// artifact (targetLeaders), and every instruction immediately following
// a branch/call/return within this region.
func findLeaders(ordered []uint64, instrs map[uint64]*decode.Instruction, targetLeaders map[uint64]bool) map[uint64]bool {
	leaders := make(map[uint64]bool)
	if len(ordered) == 0 {
		return leaders
	}
	leaders[ordered[0]] = true

	for addr := range targetLeaders {
		leaders[addr] = true
	}

	for i, addr := range ordered {
		inst := instrs[addr]
		if isTerminatorCategory(inst) && i+1 < len(ordered) {
			leaders[ordered[i+1]] = true
		}
	}
	return leaders
}

func splitBlocks(cfg *CFG, ordered []uint64, leaders map[uint64]bool, instrs map[uint64]*decode.Instruction) {
	if len(ordered) == 0 {
		return
	}
	var cur *BasicBlock
	for i, addr := range ordered {
		// A decode gap (an interspersed UnknownSpan the region classifier
		// didn't reclassify away) breaks block contiguity just as surely
		// as an explicit leader does: the bytes in between were never
		// decoded, so nothing links this instruction to the one before it.
		gap := i > 0 && addr != instrs[ordered[i-1]].Address+uint64(instrs[ordered[i-1]].Len())
		if leaders[addr] || gap || cur == nil {
			if cur != nil {
				finishBlock(cfg, cur, instrs)
			}
			cfg.Blocks = append(cfg.Blocks, BasicBlock{Leader: addr})
			cur = &cfg.Blocks[len(cfg.Blocks)-1]
		}
		cur.Instrs = append(cur.Instrs, addr)
		cur.Terminator = addr

		inst := instrs[addr]
		terminal := isTerminatorCategory(inst)
		nextIsGap := i+1 < len(ordered) && ordered[i+1] != addr+uint64(inst.Len())
		last := i+1 >= len(ordered) || leaders[ordered[i+1]] || nextIsGap
		if terminal || last {
			finishBlock(cfg, cur, instrs)
			cur = nil
		}
	}
	if cur != nil {
		finishBlock(cfg, cur, instrs)
	}
}

func finishBlock(cfg *CFG, b *BasicBlock, instrs map[uint64]*decode.Instruction) {
	last := instrs[b.Terminator]
	b.TermKind = terminatorFor(*last)
	cfg.BlockIndex[b.Leader] = len(cfg.Blocks) - 1
}

func isTerminatorCategory(inst *decode.Instruction) bool {
	return terminatorFor(*inst) != TermFallthrough
}

// connectEdges builds the out-edges for the block at leader, in the
// fixed order spec.md §4.4 mandates: TAKEN, NOT_TAKEN, FALLTHROUGH,
// UNCONDITIONAL, CALL, UNRESOLVED, RETURN.
func connectEdges(cfg *CFG, leader uint64, instrs map[uint64]*decode.Instruction) []Unresolved {
	b, _ := cfg.BlockAt(leader)
	last := instrs[b.Terminator]
	var unresolved []Unresolved
	nextAddr, hasNext := nextLeaderAfter(cfg, leader, last.Address+uint64(last.Len()))

	switch b.TermKind {
	case TermFallthrough:
		if hasNext {
			addEdge(cfg, leader, Edge{From: leader, To: nextAddr, Type: EdgeFallthrough, HasTo: true})
		}
	case TermConditional:
		if last.HasTarget {
			addEdge(cfg, leader, Edge{From: leader, To: last.ResolvedTarget, Type: EdgeBranchTaken, HasTo: true})
			if hasNext {
				addEdge(cfg, leader, Edge{From: leader, To: nextAddr, Type: EdgeBranchNotTaken, HasTo: true})
			}
		} else {
			unresolved = append(unresolved, Unresolved{From: leader, Kind: EdgeBranchTaken})
			if hasNext {
				addEdge(cfg, leader, Edge{From: leader, To: nextAddr, Type: EdgeBranchNotTaken, HasTo: true})
			}
			addEdge(cfg, leader, Edge{From: leader, Type: EdgeUnresolved})
		}
	case TermUnconditional:
		if last.HasTarget {
			addEdge(cfg, leader, Edge{From: leader, To: last.ResolvedTarget, Type: EdgeUnconditional, HasTo: true})
		} else {
			unresolved = append(unresolved, Unresolved{From: leader, Kind: EdgeUnconditional})
			addEdge(cfg, leader, Edge{From: leader, Type: EdgeUnresolved})
		}
	case TermCallWithFallthrough:
		if hasNext {
			addEdge(cfg, leader, Edge{From: leader, To: nextAddr, Type: EdgeFallthrough, HasTo: true})
		}
		if last.HasTarget {
			addEdge(cfg, leader, Edge{From: leader, To: last.ResolvedTarget, Type: EdgeCall, HasTo: true})
		} else {
			unresolved = append(unresolved, Unresolved{From: leader, Kind: EdgeCall})
			addEdge(cfg, leader, Edge{From: leader, Type: EdgeCall})
		}
	case TermIndirect:
		unresolved = append(unresolved, Unresolved{From: leader, Kind: EdgeBranchTaken})
		addEdge(cfg, leader, Edge{From: leader, Type: EdgeUnresolved})
	case TermReturn:
		addEdge(cfg, leader, Edge{From: leader, Type: EdgeReturn})
	}
	return unresolved
}

func addEdge(cfg *CFG, from uint64, e Edge) {
	cfg.Edges[from] = append(cfg.Edges[from], e)
}

// nextLeaderAfter reports the block immediately following leader, but
// only when its leader address is truly the next byte after the
// terminator (byteAfterTerminator) — a region's last block can be
// forced to end on a non-branching instruction merely because the
// region itself ends there, and the next block in cfg.Blocks is then
// the first block of a different, non-adjacent CODE region. Falling
// through across that gap would invent control flow the bytes never
// express.
func nextLeaderAfter(cfg *CFG, leader uint64, byteAfterTerminator uint64) (uint64, bool) {
	i, ok := cfg.BlockIndex[leader]
	if !ok || i+1 >= len(cfg.Blocks) {
		return 0, false
	}
	next := cfg.Blocks[i+1]
	if next.External || next.Leader != byteAfterTerminator {
		return 0, false
	}
	return next.Leader, true
}

// materializeExternalTargets implements spec.md §4.4's cross-region-
// target rule: any edge whose resolved target is not an existing block
// leader gets a synthetic external-ref block created for it, with no
// decoding attempted there.
func materializeExternalTargets(cfg *CFG) {
	var newTargets []uint64
	seen := make(map[uint64]bool)
	for _, edges := range cfg.Edges {
		for _, e := range edges {
			if !e.HasTo {
				continue
			}
			if _, ok := cfg.BlockIndex[e.To]; ok {
				continue
			}
			if !seen[e.To] {
				seen[e.To] = true
				newTargets = append(newTargets, e.To)
			}
		}
	}
	sort.Slice(newTargets, func(i, j int) bool { return newTargets[i] < newTargets[j] })
	for _, addr := range newTargets {
		cfg.Blocks = append(cfg.Blocks, BasicBlock{Leader: addr, Terminator: addr, External: true})
		cfg.BlockIndex[addr] = len(cfg.Blocks) - 1
	}
}
