// Package pseudo renders structured pseudocode per spec.md §4.7:
// per-procedure IF/ELSE and LOOP recovery from CFG shape, CALL/RETURN
// statements, and a goto fallback for anything the pattern matcher
// can't recover. No teacher analog exists for CFG-shape recovery — the
// m68k teacher never builds a CFG — so the structural matching is
// implemented directly from the spec prose; the line-building style
// (strings.Builder, one append per statement) follows the rendering
// idiom in Urethramancer-m68k's disassembler/disassemble.go.
package pseudo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-zarch/zrecon/cfgbuild"
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/isa"
	"github.com/go-zarch/zrecon/procedure"
)

// Style selects the surface syntax of emitted statements; the
// structural recovery underneath is identical either way.
type Style int

const (
	StyleCLike Style = iota
	StylePythonLike
)

const unresolvedCallTarget = "UNRESOLVED_TARGET"

// Input bundles what the pseudocode renderer needs per artifact.
type Input struct {
	Instructions map[uint64]*decode.Instruction
	CFG          *cfgbuild.CFG
	Procedures   []procedure.Procedure
	Style        Style
}

// Render emits one structured listing per procedure, concatenated in
// entry-address order.
func Render(in Input) string {
	procs := append([]procedure.Procedure(nil), in.Procedures...)
	sort.Slice(procs, func(i, j int) bool { return procs[i].Entry < procs[j].Entry })

	var b strings.Builder
	for _, p := range procs {
		renderProcedure(&b, in, p)
	}
	return b.String()
}

func renderProcedure(b *strings.Builder, in Input, p procedure.Procedure) {
	end := procedureEnd(in, p)
	fmt.Fprintf(b, "// %s: 0x%08X-0x%08X confidence=%s linkage=%s\n",
		p.ID, p.Entry, end, p.Confidence.String(), p.Linkage)
	fmt.Fprintf(b, openFunc(in.Style), p.ID)

	r := newRenderer(in, p)
	visited := make(map[uint64]bool)
	r.renderSequence(b, p.Entry, 0, visited, 1)

	b.WriteString(closeFunc(in.Style))
}

func procedureEnd(in Input, p procedure.Procedure) uint64 {
	var last uint64
	for _, leader := range p.Blocks {
		blk, ok := in.CFG.BlockAt(leader)
		if !ok {
			continue
		}
		if blk.Terminator > last {
			last = blk.Terminator
		}
	}
	if last == 0 {
		return p.Entry
	}
	if inst, ok := in.Instructions[last]; ok {
		return last + uint64(inst.Len())
	}
	return last
}

type renderer struct {
	in       Input
	blockSet map[uint64]bool
}

func newRenderer(in Input, p procedure.Procedure) *renderer {
	set := make(map[uint64]bool, len(p.Blocks))
	for _, b := range p.Blocks {
		set[b] = true
	}
	return &renderer{in: in, blockSet: set}
}

// renderSequence walks the CFG from addr, rendering straight-line
// blocks and recursing into IF/LOOP shapes, until it reaches a RETURN,
// a block outside the procedure, stopAt (the post-dominator an
// enclosing IF/ELSE will render itself once both branches rejoin), or
// a block already rendered on this path (a back-edge, handled by the
// loop detector one level up). stopAt is zero when there is none.
func (r *renderer) renderSequence(b *strings.Builder, addr, stopAt uint64, visited map[uint64]bool, depth int) {
	for {
		if stopAt != 0 && addr == stopAt {
			return
		}
		blk, ok := r.in.CFG.BlockAt(addr)
		if !ok || !r.blockSet[addr] {
			return
		}
		if visited[addr] {
			r.emitGoto(b, addr, depth, "back-edge already rendered")
			return
		}
		visited[addr] = true

		if loopBody, headerAtTop, cond, ok := r.detectLoop(addr); ok {
			r.renderLoop(b, addr, loopBody, headerAtTop, cond, visited, depth)
			return
		}

		r.renderBlockStatements(b, blk, depth)

		edges := r.in.CFG.Edges[addr]
		switch blk.TermKind {
		case cfgbuild.TermReturn:
			return
		case cfgbuild.TermConditional:
			taken, notTaken, ok := condTargets(edges)
			if !ok {
				r.emitGoto(b, addr, depth, "unresolved conditional")
				return
			}
			if post, ok := r.reconvergence(taken, notTaken); ok {
				r.renderIfElse(b, blk, taken, notTaken, post, visited, depth)
				addr = post
				continue
			}
			r.emitGoto(b, addr, depth, "no reconvergence found")
			return
		case cfgbuild.TermUnconditional:
			target, ok := uncondTarget(edges)
			if !ok {
				r.emitGoto(b, addr, depth, "unresolved branch")
				return
			}
			addr = target
			continue
		case cfgbuild.TermCallWithFallthrough, cfgbuild.TermFallthrough:
			next, ok := fallthroughTarget(edges)
			if !ok {
				return
			}
			addr = next
			continue
		case cfgbuild.TermIndirect:
			r.emitGoto(b, addr, depth, "indirect branch")
			return
		}
	}
}

func (r *renderer) renderBlockStatements(b *strings.Builder, blk *cfgbuild.BasicBlock, depth int) {
	for _, addr := range blk.Instrs {
		inst := r.in.Instructions[addr]
		if inst == nil {
			continue
		}
		switch inst.Category {
		case isa.CategoryCall:
			writeLine(b, depth, "%s; // @0x%08X: %s", callText(inst), inst.Address, hexBytes(inst.Raw))
		case isa.CategoryReturn:
			writeLine(b, depth, "return; // @0x%08X: %s", inst.Address, hexBytes(inst.Raw))
		case isa.CategoryConditionalBranch, isa.CategoryUnconditionalBranch, isa.CategoryIndirect:
			// control-flow instructions are represented structurally by
			// the caller, not as statements; skip.
		default:
			writeLine(b, depth, "%s; // @0x%08X: %s", strings.ToLower(inst.Mnemonic), inst.Address, hexBytes(inst.Raw))
		}
	}
}

func callText(inst *decode.Instruction) string {
	if !inst.HasTarget {
		return fmt.Sprintf("call %s()", unresolvedCallTarget)
	}
	return fmt.Sprintf("call PROC_%08X()", inst.ResolvedTarget)
}

// detectLoop recognizes a back-edge into addr: some block inside the
// procedure, reachable from addr, has an edge back to addr. When found,
// the loop body is every block on that forward path, headerAtTop
// reports whether addr's own terminator is the conditional (while) as
// opposed to the tail block's (do/while).
func (r *renderer) detectLoop(addr uint64) (body []uint64, headerAtTop bool, cond uint64, ok bool) {
	blk, found := r.in.CFG.BlockAt(addr)
	if !found {
		return nil, false, 0, false
	}

	// forward reachability within the procedure, stopping if we leave it
	reach := map[uint64]bool{addr: true}
	queue := []uint64{addr}
	var tail uint64
	hasBackEdge := false
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range r.in.CFG.Edges[cur] {
			if !e.HasTo || !r.blockSet[e.To] {
				continue
			}
			if e.To == addr && cur != addr {
				hasBackEdge = true
				tail = cur
				continue
			}
			if !reach[e.To] && reachableWithoutLeaving(r, e.To, addr) {
				reach[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	if !hasBackEdge {
		return nil, false, 0, false
	}

	for a := range reach {
		body = append(body, a)
	}
	sort.Slice(body, func(i, j int) bool { return body[i] < body[j] })

	if blk.TermKind == cfgbuild.TermConditional {
		return body, true, addr, true
	}
	if tailBlk, ok := r.in.CFG.BlockAt(tail); ok && tailBlk.TermKind == cfgbuild.TermConditional {
		return body, false, tail, true
	}
	// neither the header nor the tail ends in a conditional: render the
	// header-at-top (while) form.
	return body, true, addr, true
}

func reachableWithoutLeaving(r *renderer, from, stopAt uint64) bool {
	return r.blockSet[from] && from != stopAt
}

func (r *renderer) renderLoop(b *strings.Builder, header uint64, body []uint64, headerAtTop bool, condAddr uint64, visited map[uint64]bool, depth int) {
	condBlk, _ := r.in.CFG.BlockAt(condAddr)
	condText := conditionText(r.in, condBlk)

	if headerAtTop {
		writeLine(b, depth, openWhile(r.in.Style, condText))
	} else {
		writeLine(b, depth, openDo(r.in.Style))
	}

	for _, a := range body {
		visited[a] = true
	}
	for _, a := range body {
		blk, ok := r.in.CFG.BlockAt(a)
		if !ok {
			continue
		}
		r.renderBlockStatements(b, blk, depth+1)
	}

	if headerAtTop {
		writeLine(b, depth, closeWhile(r.in.Style))
	} else {
		writeLine(b, depth, closeDoWhile(r.in.Style, condText))
	}
}

// reconvergence finds the first address, in taken's chain order, that
// both taken and notTaken can reach by following a chain of up to 64
// single fallthrough/unconditional hops each — the common
// post-dominator spec.md §4.7 requires for IF/ELSE shapes.
func (r *renderer) reconvergence(taken, notTaken uint64) (uint64, bool) {
	var order []uint64
	reach := func(start uint64) map[uint64]bool {
		seen := map[uint64]bool{start: true}
		order = []uint64{start}
		cur := start
		for i := 0; i < 64; i++ {
			if _, ok := r.in.CFG.BlockAt(cur); !ok {
				break
			}
			next, ok := singleSuccessor(r.in.CFG.Edges[cur])
			if !ok || !r.blockSet[next] {
				break
			}
			seen[next] = true
			order = append(order, next)
			cur = next
		}
		return seen
	}
	aReach := reach(taken)
	aOrder := order
	bReach := reach(notTaken)
	if bReach[taken] {
		return taken, true
	}
	if aReach[notTaken] {
		return notTaken, true
	}
	for _, addr := range aOrder {
		if bReach[addr] {
			return addr, true
		}
	}
	return 0, false
}

func singleSuccessor(edges []cfgbuild.Edge) (uint64, bool) {
	for _, e := range edges {
		if e.HasTo && (e.Type == cfgbuild.EdgeFallthrough || e.Type == cfgbuild.EdgeUnconditional) {
			return e.To, true
		}
	}
	return 0, false
}

func (r *renderer) renderIfElse(b *strings.Builder, blk *cfgbuild.BasicBlock, taken, notTaken, post uint64, visited map[uint64]bool, depth int) {
	condText := conditionText(r.in, blk)
	writeLine(b, depth, openIf(r.in.Style, condText))
	if taken != post {
		r.renderSequence(b, taken, post, visited, depth+1)
	}
	if notTaken != post {
		writeLine(b, depth, elseLine(r.in.Style))
		r.renderSequence(b, notTaken, post, visited, depth+1)
	}
	writeLine(b, depth, closeIf(r.in.Style))
}

func (r *renderer) emitGoto(b *strings.Builder, addr uint64, depth int, reason string) {
	writeLine(b, depth, "goto L_%08X; // %s", addr, reason)
}

func conditionText(in Input, blk *cfgbuild.BasicBlock) string {
	if blk == nil || len(blk.Instrs) == 0 {
		return "cond"
	}
	last := in.Instructions[blk.Instrs[len(blk.Instrs)-1]]
	if last == nil {
		return "cond"
	}
	return fmt.Sprintf("mask(%d)", last.Mask)
}

func condTargets(edges []cfgbuild.Edge) (taken, notTaken uint64, ok bool) {
	var hasTaken, hasNotTaken bool
	for _, e := range edges {
		switch e.Type {
		case cfgbuild.EdgeBranchTaken:
			if e.HasTo {
				taken, hasTaken = e.To, true
			}
		case cfgbuild.EdgeBranchNotTaken:
			if e.HasTo {
				notTaken, hasNotTaken = e.To, true
			}
		}
	}
	return taken, notTaken, hasTaken && hasNotTaken
}

func uncondTarget(edges []cfgbuild.Edge) (uint64, bool) {
	for _, e := range edges {
		if e.Type == cfgbuild.EdgeUnconditional && e.HasTo {
			return e.To, true
		}
	}
	return 0, false
}

func fallthroughTarget(edges []cfgbuild.Edge) (uint64, bool) {
	for _, e := range edges {
		if e.Type == cfgbuild.EdgeFallthrough && e.HasTo {
			return e.To, true
		}
	}
	return 0, false
}

func writeLine(b *strings.Builder, depth int, format string, args ...interface{}) {
	indent := strings.Repeat("    ", depth)
	line := fmt.Sprintf(format, args...)
	b.WriteString(indent)
	b.WriteString(strings.TrimRight(line, " "))
	b.WriteString("\n")
}

func hexBytes(raw []byte) string {
	var b strings.Builder
	for i, by := range raw {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", by)
	}
	return b.String()
}

func openFunc(s Style) string {
	if s == StylePythonLike {
		return "def %s():\n"
	}
	return "void %s() {\n"
}

func closeFunc(s Style) string {
	if s == StylePythonLike {
		return "\n"
	}
	return "}\n\n"
}

func openIf(s Style, cond string) string {
	if s == StylePythonLike {
		return fmt.Sprintf("if %s:", cond)
	}
	return fmt.Sprintf("if (%s) {", cond)
}

func elseLine(s Style) string {
	if s == StylePythonLike {
		return "else:"
	}
	return "} else {"
}

func closeIf(s Style) string {
	if s == StylePythonLike {
		return ""
	}
	return "}"
}

func openWhile(s Style, cond string) string {
	if s == StylePythonLike {
		return fmt.Sprintf("while %s:", cond)
	}
	return fmt.Sprintf("while (%s) {", cond)
}

func closeWhile(s Style) string {
	if s == StylePythonLike {
		return ""
	}
	return "}"
}

func openDo(s Style) string {
	if s == StylePythonLike {
		return "while True:"
	}
	return "do {"
}

func closeDoWhile(s Style, cond string) string {
	if s == StylePythonLike {
		return fmt.Sprintf("if not (%s): break", cond)
	}
	return fmt.Sprintf("} while (%s);", cond)
}
