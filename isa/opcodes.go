package isa

// Format names an instruction encoding shape. Operand extraction is
// mechanical given the format: every field it names has a fixed bit
// position, per the z/Architecture Principles of Operation.
type Format int

const (
	FormatRR Format = iota
	FormatRX
	FormatRS
	FormatSI
	FormatSS
	FormatRI
	FormatRIL
)

func (f Format) String() string {
	switch f {
	case FormatRR:
		return "RR"
	case FormatRX:
		return "RX"
	case FormatRS:
		return "RS"
	case FormatSI:
		return "SI"
	case FormatSS:
		return "SS"
	case FormatRI:
		return "RI"
	case FormatRIL:
		return "RIL"
	default:
		return "?"
	}
}

// Length reports the instruction length in bytes implied by a format.
// This mirrors the real encoding rule spec.md §4.2 describes: the top
// two bits of the opcode byte determine length (00->2, 01/10->4, 11->6).
func (f Format) Length() int {
	switch f {
	case FormatRR:
		return 2
	case FormatRX, FormatRS, FormatSI, FormatRI:
		return 4
	case FormatSS, FormatRIL:
		return 6
	default:
		return 0
	}
}

// LengthClass maps the top two bits of an opcode's first byte to the
// instruction length they declare, independent of whether the opcode
// itself is recognized.
func LengthClass(firstByte byte) int {
	switch firstByte >> 6 {
	case 0:
		return 2
	case 1, 2:
		return 4
	default:
		return 6
	}
}

// OpcodeDef is one entry of the closed, static opcode table.
type OpcodeDef struct {
	Mnemonic string
	Format   Format
}

func (d OpcodeDef) Length() int { return d.Format.Length() }

// rrTable covers the 2-byte RR-format opcodes used by this recovery
// pipeline. Keyed by the full opcode byte.
var rrTable = map[byte]OpcodeDef{
	0x05: {"BALR", FormatRR},
	0x07: {"BCR", FormatRR},
	0x0D: {"BASR", FormatRR},
	0x12: {"LTR", FormatRR},
	0x14: {"NR", FormatRR},
	0x15: {"CLR", FormatRR},
	0x16: {"OR", FormatRR},
	0x17: {"XR", FormatRR},
	0x18: {"LR", FormatRR},
	0x19: {"CR", FormatRR},
	0x1A: {"AR", FormatRR},
	0x1B: {"SR", FormatRR},
}

// rxTable covers the 4-byte RX-format opcodes.
var rxTable = map[byte]OpcodeDef{
	0x40: {"STH", FormatRX},
	0x41: {"LA", FormatRX},
	0x45: {"BAL", FormatRX},
	0x47: {"BC", FormatRX},
	0x48: {"LH", FormatRX},
	0x4D: {"BAS", FormatRX},
	0x50: {"ST", FormatRX},
	0x54: {"N", FormatRX},
	0x55: {"CL", FormatRX},
	0x56: {"O", FormatRX},
	0x57: {"X", FormatRX},
	0x58: {"L", FormatRX},
	0x59: {"C", FormatRX},
	0x5A: {"A", FormatRX},
	0x5B: {"S", FormatRX},
}

// rsTable covers the 4-byte RS-format opcodes.
var rsTable = map[byte]OpcodeDef{
	0x86: {"BXH", FormatRS},
	0x87: {"BXLE", FormatRS},
	0x90: {"STM", FormatRS},
	0x98: {"LM", FormatRS},
}

// siTable covers the 4-byte SI-format opcodes.
var siTable = map[byte]OpcodeDef{
	0x91: {"TM", FormatSI},
	0x92: {"MVI", FormatSI},
	0x94: {"NI", FormatSI},
	0x95: {"CLI", FormatSI},
	0x96: {"OI", FormatSI},
	0x97: {"XI", FormatSI},
}

// ssTable covers the 6-byte SS-format opcodes.
var ssTable = map[byte]OpcodeDef{
	0xD2: {"MVC", FormatSS},
	0xD4: {"NC", FormatSS},
	0xD5: {"CLC", FormatSS},
	0xD6: {"OC", FormatSS},
	0xD7: {"XC", FormatSS},
}

// ri0xA7Table covers the 4-byte RI-format opcodes grouped under the
// primary byte 0xA7; the variant is selected by the low nibble of the
// second byte (the real IBM encoding: A74=BRC, A75=BRAS, A78=LHI,
// A7A=AHI, A7E=CHI).
var ri0xA7Table = map[byte]OpcodeDef{
	0x4: {"BRC", FormatRI},
	0x5: {"BRAS", FormatRI},
	0x8: {"LHI", FormatRI},
	0xA: {"AHI", FormatRI},
	0xE: {"CHI", FormatRI},
}

// ril0xC0Table covers the 6-byte RIL-format opcodes grouped under the
// primary byte 0xC0 (real IBM encoding: C00=LARL, C05=BRASL).
var ril0xC0Table = map[byte]OpcodeDef{
	0x0: {"LARL", FormatRIL},
	0x5: {"BRASL", FormatRIL},
}

// Lookup resolves an opcode from its raw leading bytes. ok is false when
// the opcode is outside the closed table this pipeline recognizes, in
// which case the caller must treat the byte as undecodable — never
// invent a mnemonic for it.
func Lookup(b0, b1 byte) (OpcodeDef, bool) {
	if d, ok := rrTable[b0]; ok {
		return d, true
	}
	if d, ok := rxTable[b0]; ok {
		return d, true
	}
	if d, ok := rsTable[b0]; ok {
		return d, true
	}
	if d, ok := siTable[b0]; ok {
		return d, true
	}
	if d, ok := ssTable[b0]; ok {
		return d, true
	}
	if b0 == 0xA7 {
		if d, ok := ri0xA7Table[b1&0x0F]; ok {
			return d, true
		}
		return OpcodeDef{}, false
	}
	if b0 == 0xC0 {
		if d, ok := ril0xC0Table[b1&0x0F]; ok {
			return d, true
		}
		return OpcodeDef{}, false
	}
	return OpcodeDef{}, false
}

// categoryTable maps a recognized mnemonic to its default category.
// BC/BCR/BRC are resolved dynamically from their condition mask instead
// (see decode.assignConditional, assignConditionalRegister and
// assignConditionalResolved); they have no entry here.
var categoryTable = map[string]Category{
	"BALR": CategoryCall,
	"BASR": CategoryCall,
	"BAL":  CategoryCall,
	"BAS":  CategoryCall,
	"BRAS": CategoryCall,
	"BRASL": CategoryCall,

	"LTR": CategorySequential, "NR": CategorySequential,
	"CLR": CategorySequential, "OR": CategorySequential,
	"XR": CategorySequential, "LR": CategorySequential,
	"CR": CategorySequential, "AR": CategorySequential,
	"SR": CategorySequential, "STH": CategorySequential,
	"LA": CategorySequential, "LH": CategorySequential,
	"ST": CategorySequential, "N": CategorySequential,
	"CL": CategorySequential, "O": CategorySequential,
	"X": CategorySequential, "L": CategorySequential,
	"C": CategorySequential, "A": CategorySequential,
	"S": CategorySequential, "STM": CategorySequential,
	"LM": CategorySequential, "TM": CategorySequential,
	"MVI": CategorySequential, "NI": CategorySequential,
	"CLI": CategorySequential, "OI": CategorySequential,
	"XI": CategorySequential, "MVC": CategorySequential,
	"NC": CategorySequential, "CLC": CategorySequential,
	"OC": CategorySequential, "XC": CategorySequential,
	"LHI": CategorySequential, "AHI": CategorySequential,
	"CHI": CategorySequential, "LARL": CategorySequential,

	// BXH/BXLE are conditional-on-register-comparison branches; this
	// pipeline does not attempt to resolve their targets (they depend
	// on runtime register contents, not an immediate or displacement
	// alone) and treats them as indirect.
	"BXH":  CategoryIndirect,
	"BXLE": CategoryIndirect,
}

// DefaultCategory returns the category for mnemonics whose category
// does not depend on a condition mask. ok is false for BC/BCR/BRC,
// whose category the decoder derives from the mask field instead.
func DefaultCategory(mnemonic string) (Category, bool) {
	c, ok := categoryTable[mnemonic]
	return c, ok
}
