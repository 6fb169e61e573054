// Package asmrender renders a decoded artifact as an HLASM-style text
// listing per spec.md §4.6. Grounded on the render loop of
// Urethramancer-m68k's disassembler/disassemble.go — iterate addresses
// in order, emit a label line, then the mnemonic/operand columns — but
// reorganized around procedures/labels instead of ad hoc "loc_" tags
// and extended to print evidence comments and hex-dump unknown spans.
package asmrender

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-zarch/zrecon/cfgbuild"
	"github.com/go-zarch/zrecon/classify"
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/isa"
	"github.com/go-zarch/zrecon/procedure"
)

// unresolvedTargetLiteral replaces any operand whose target could not
// be resolved, per spec.md §4.6.
const unresolvedTargetLiteral = "UNRESOLVED_TARGET"

// Input bundles everything the assembler listing needs.
type Input struct {
	Instructions map[uint64]*decode.Instruction
	Unknown      []decode.UnknownSpan
	Regions      []classify.Region
	CFG          *cfgbuild.CFG
	Procedures   []procedure.Procedure
}

// Render produces the complete listing, one line (or block of lines)
// per ascending address, as required by spec.md §4.6's "ascending
// address order" rule.
func Render(in Input) string {
	labels := buildLabels(in)

	type item struct {
		addr uint64
		text string
	}
	var items []item

	for addr, inst := range in.Instructions {
		items = append(items, item{addr: addr, text: renderInstruction(*inst, labels)})
	}
	for _, span := range in.Unknown {
		items = append(items, item{addr: span.Start, text: renderUnknownSpan(span)})
	}
	for _, r := range in.Regions {
		if r.Kind == classify.Data {
			items = append(items, item{addr: r.Start, text: renderDataRegionHeader(r, labels)})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].addr < items[j].addr })

	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.text)
	}
	return b.String()
}

// buildLabels assigns the synthetic label vocabulary of spec.md §4.6:
// PROC_<hex> for procedure entries, LOC_<hex> for in-procedure branch
// targets, DATA_<hex> for data region starts.
func buildLabels(in Input) map[uint64]string {
	labels := make(map[uint64]string)
	for _, p := range in.Procedures {
		labels[p.Entry] = fmt.Sprintf("PROC_%08X", p.Entry)
	}
	if in.CFG != nil {
		for _, b := range in.CFG.Blocks {
			if b.External {
				continue
			}
			if _, taken := labels[b.Leader]; !taken {
				labels[b.Leader] = fmt.Sprintf("LOC_%08X", b.Leader)
			}
		}
	}
	for _, r := range in.Regions {
		if r.Kind == classify.Data {
			labels[r.Start] = fmt.Sprintf("DATA_%08X", r.Start)
		}
	}
	return labels
}

// renderInstruction formats one instruction line per spec.md §4.6's
// contract: `<addr8> <hexbytes> <label> <mnemonic> <operands>   * <comment>`.
func renderInstruction(inst decode.Instruction, labels map[uint64]string) string {
	label := labels[inst.Address]
	operandText, comment := formatOperands(inst, labels)

	line := fmt.Sprintf("%08X %-12s %-10s %-6s %-20s * %s\n",
		inst.Address,
		hexBytes(inst.Raw),
		label,
		strings.ToLower(inst.Mnemonic),
		operandText,
		comment,
	)
	return line
}

func formatOperands(inst decode.Instruction, labels map[uint64]string) (string, string) {
	var parts []string
	comment := fmt.Sprintf("@0x%08X: %s", inst.Address, hexBytes(inst.Raw))

	for _, op := range inst.Operands {
		switch op.Kind {
		case isa.OperandRegister:
			parts = append(parts, fmt.Sprintf("R%d", op.Reg))
		case isa.OperandImmediate:
			parts = append(parts, fmt.Sprintf("#%d", op.Imm))
		case isa.OperandBaseDisp:
			parts = append(parts, fmt.Sprintf("%d(R%d)", op.Disp, op.Base))
		case isa.OperandBaseIndexDisp:
			parts = append(parts, fmt.Sprintf("%d(R%d,R%d)", op.Disp, op.Index, op.Base))
		case isa.OperandPCRelative:
			parts = append(parts, branchOperandText(inst, labels))
		default:
			parts = append(parts, fmt.Sprintf("0x%X", op.Raw))
		}
	}

	// A branch or call with no resolved target names it through its last
	// operand (a register, or a storage operand for BXH/BXLE): print the
	// literal there and keep the original operand text in the comment.
	switch inst.Category {
	case isa.CategoryIndirect, isa.CategoryCall, isa.CategoryConditionalBranch, isa.CategoryUnconditionalBranch:
		if !inst.HasTarget && len(parts) > 0 && parts[len(parts)-1] != unresolvedTargetLiteral {
			comment += " operand=" + parts[len(parts)-1]
			parts[len(parts)-1] = unresolvedTargetLiteral
		}
	}

	return strings.Join(parts, ","), comment
}

// branchOperandText prints the label a resolved branch target maps to,
// or the UNRESOLVED_TARGET literal with the raw encoding preserved in
// the trailing comment, per spec.md §4.6.
func branchOperandText(inst decode.Instruction, labels map[uint64]string) string {
	if !inst.HasTarget {
		return unresolvedTargetLiteral
	}
	if l, ok := labels[inst.ResolvedTarget]; ok {
		return l
	}
	return fmt.Sprintf("0x%08X", inst.ResolvedTarget)
}

func renderUnknownSpan(span decode.UnknownSpan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "* Unknown/Undecodable Region: 0x%08X-0x%08X (%d bytes)\n",
		span.Start, span.Start+span.Length, span.Length)
	b.WriteString(hexDump(span.Raw, span.Start))
	return b.String()
}

func renderDataRegionHeader(r classify.Region, labels map[uint64]string) string {
	return fmt.Sprintf("%08X %-12s %-10s %-6s %-20s * region confidence=%s rationale=%s\n",
		r.Start, "", labels[r.Start], "DC", "", r.Confidence.String(), r.Rationale)
}

// hexDump chunks raw bytes into 16-byte lines, per spec.md §4.6.
func hexDump(raw []byte, base uint64) string {
	var b strings.Builder
	for off := 0; off < len(raw); off += 16 {
		end := off + 16
		if end > len(raw) {
			end = len(raw)
		}
		fmt.Fprintf(&b, "%08X  %s\n", base+uint64(off), hexBytes(raw[off:end]))
	}
	return b.String()
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
