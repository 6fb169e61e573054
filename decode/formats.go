package decode

import "github.com/go-zarch/zrecon/isa"

// decodeRR extracts the two 4-bit register fields of an RR-format
// instruction. BALR/BASR/BCR store the link/mask register in R1 and the
// branch-target register in R2; every other RR mnemonic is a plain
// two-register operation.
func decodeRR(inst *Instruction, raw []byte) {
	r1 := raw[1] >> 4
	r2 := raw[1] & 0x0F

	switch inst.Mnemonic {
	case "BCR":
		inst.Mask = r1
		inst.Operands = []isa.Operand{regOperand(r2)}
	case "BALR", "BASR":
		inst.Operands = []isa.Operand{regOperand(r1), regOperand(r2)}
	default:
		inst.Operands = []isa.Operand{regOperand(r1), regOperand(r2)}
	}
}

// decodeRX extracts R1/X2/B2/D2. BC stores its condition mask in the R1
// position, matching the RX encoding it shares with ordinary
// register+memory instructions.
func decodeRX(inst *Instruction, raw []byte) {
	r1 := raw[1] >> 4
	x2 := raw[1] & 0x0F
	b2 := raw[2] >> 4
	d2 := (uint16(raw[2]&0x0F) << 8) | uint16(raw[3])

	mem := isa.Operand{Kind: isa.OperandBaseIndexDisp, Base: b2, Index: x2, Disp: int32(d2)}

	if inst.Mnemonic == "BC" {
		inst.Mask = r1
		inst.Operands = []isa.Operand{mem}
		return
	}
	inst.Operands = []isa.Operand{regOperand(r1), mem}
}

// decodeRS extracts R1/R3/B2/D2 (STM/LM/BXH/BXLE all share this shape;
// the third field is a register range end, not an index register).
func decodeRS(inst *Instruction, raw []byte) {
	r1 := raw[1] >> 4
	r3 := raw[1] & 0x0F
	b2 := raw[2] >> 4
	d2 := (uint16(raw[2]&0x0F) << 8) | uint16(raw[3])

	mem := isa.Operand{Kind: isa.OperandBaseDisp, Base: b2, Disp: int32(d2)}
	inst.Operands = []isa.Operand{regOperand(r1), regOperand(r3), mem}
}

// decodeSI extracts I2/B1/D1 (immediate-to-storage instructions).
func decodeSI(inst *Instruction, raw []byte) {
	i2 := raw[1]
	b1 := raw[2] >> 4
	d1 := (uint16(raw[2]&0x0F) << 8) | uint16(raw[3])

	mem := isa.Operand{Kind: isa.OperandBaseDisp, Base: b1, Disp: int32(d1)}
	inst.Operands = []isa.Operand{mem, {Kind: isa.OperandImmediate, Imm: int64(i2)}}
}

// decodeSS extracts L/B1/D1/B2/D2 (storage-to-storage instructions).
func decodeSS(inst *Instruction, raw []byte) {
	length := raw[1]
	b1 := raw[2] >> 4
	d1 := (uint16(raw[2]&0x0F) << 8) | uint16(raw[3])
	b2 := raw[4] >> 4
	d2 := (uint16(raw[4]&0x0F) << 8) | uint16(raw[5])

	mem1 := isa.Operand{Kind: isa.OperandBaseDisp, Base: b1, Disp: int32(d1)}
	mem2 := isa.Operand{Kind: isa.OperandBaseDisp, Base: b2, Disp: int32(d2)}
	inst.Operands = []isa.Operand{mem1, mem2, {Kind: isa.OperandImmediate, Imm: int64(length)}}
}

// decodeRI extracts R1 and a 16-bit immediate/relative field. BRC stores
// its condition mask in the R1 position like BC does; BRAS/LHI/AHI/CHI
// use R1 as an ordinary register.
func decodeRI(inst *Instruction, raw []byte) {
	r1 := raw[1] >> 4
	i2 := be16(raw[2:4])

	switch inst.Mnemonic {
	case "BRC":
		inst.Mask = r1
		target := inst.Address + uint64(int64(signExtend16(i2))*2)
		inst.Operands = []isa.Operand{{Kind: isa.OperandPCRelative, Target: target}}
		inst.ResolvedTarget = target
		inst.HasTarget = true
	case "BRAS":
		target := inst.Address + uint64(int64(signExtend16(i2))*2)
		inst.Operands = []isa.Operand{regOperand(r1), {Kind: isa.OperandPCRelative, Target: target}}
		inst.ResolvedTarget = target
		inst.HasTarget = true
	default: // LHI, AHI, CHI
		inst.Operands = []isa.Operand{regOperand(r1), {Kind: isa.OperandImmediate, Imm: int64(signExtend16(i2))}}
	}
}

// decodeRIL extracts R1 and a 32-bit immediate/relative field.
func decodeRIL(inst *Instruction, raw []byte) {
	r1 := raw[1] >> 4 // R1 lives in the high nibble of byte 1 for RIL
	i2 := be32(raw[2:6])

	switch inst.Mnemonic {
	case "BRASL":
		target := inst.Address + uint64(signExtend32(i2)*2)
		inst.Operands = []isa.Operand{regOperand(r1), {Kind: isa.OperandPCRelative, Target: target}}
		inst.ResolvedTarget = target
		inst.HasTarget = true
	default: // LARL
		target := inst.Address + uint64(signExtend32(i2)*2)
		inst.Operands = []isa.Operand{regOperand(r1), {Kind: isa.OperandPCRelative, Target: target}}
		inst.ResolvedTarget = target
		inst.HasTarget = true
	}
}

func regOperand(r uint8) isa.Operand {
	return isa.Operand{Kind: isa.OperandRegister, Reg: r}
}

// bcTarget resolves a BC instruction's target per the Open Question
// decision recorded in DESIGN.md: current address + raw displacement
// value, not real base-register addressing.
func bcTarget(addr uint64, mem isa.Operand) uint64 {
	return addr + uint64(uint32(mem.Disp))
}

// assignCategory fills in inst.Category from the condition mask for
// BC/BCR/BRC and from the static table otherwise. Only BC has its target
// resolved here (from its memory operand); BCR targets a register and is
// never resolved, and BRC/BRAS/BRASL already resolved their target in
// decodeRI/decodeRIL.
func assignCategory(inst *Instruction) {
	switch inst.Mnemonic {
	case "BC":
		assignConditional(inst, inst.Operands[0])
	case "BCR":
		assignConditionalRegister(inst)
	case "BRC":
		assignConditionalResolved(inst)
	default:
		if c, ok := isa.DefaultCategory(inst.Mnemonic); ok {
			inst.Category = c
			return
		}
		inst.Category = isa.CategoryUnknown
	}
}

// assignConditional handles BC: target is resolved via bcTarget (an RX
// memory operand), mask 0 is a no-op, mask 15 is unconditional.
func assignConditional(inst *Instruction, mem isa.Operand) {
	switch inst.Mask {
	case 0:
		inst.Category = isa.CategorySequential
	case 15:
		inst.Category = isa.CategoryUnconditionalBranch
		inst.ResolvedTarget = bcTarget(inst.Address, mem)
		inst.HasTarget = true
	default:
		inst.Category = isa.CategoryConditionalBranch
		inst.ResolvedTarget = bcTarget(inst.Address, mem)
		inst.HasTarget = true
	}
}

// assignConditionalRegister handles BCR: the target is always a
// register, so it is marked indirect regardless of mask value except
// for the two special cases spec.md §4.2 calls out by name: mask 0 is
// a no-op (sequential) and mask 15 with R2==14 is a return.
func assignConditionalRegister(inst *Instruction) {
	reg := inst.Operands[0].Reg
	switch {
	case inst.Mask == 0:
		inst.Category = isa.CategorySequential
	case inst.Mask == 15 && reg == 14:
		inst.Category = isa.CategoryReturn
	case inst.Mask == 15:
		inst.Category = isa.CategoryIndirect
	default:
		inst.Category = isa.CategoryIndirect
	}
}

// assignConditionalResolved handles BRC, whose target decodeRI already
// resolved as a PC-relative displacement.
func assignConditionalResolved(inst *Instruction) {
	switch inst.Mask {
	case 0:
		inst.Category = isa.CategorySequential
		inst.HasTarget = false
	case 15:
		inst.Category = isa.CategoryUnconditionalBranch
	default:
		inst.Category = isa.CategoryConditionalBranch
	}
}
