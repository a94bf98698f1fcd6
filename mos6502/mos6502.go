// Package mos6502 implements the MOS Technologies 6502 processor,
// specifically the Ricoh 2A03 variant used by the NES (no decimal
// mode, an extra two-channel APU bolted onto the same die).
// https://en.wikipedia.org/wiki/MOS_Technology_6502
package mos6502

import (
	"fmt"
	"math"
	"strings"
)

// How much addressable memory the CPU can see through its 16-bit bus.
const MEM_SIZE = math.MaxUint16 + 1

// 6502 Interrupt Vectors
// https://en.wikipedia.org/wiki/Interrupts_in_65xx_processors
const (
	INT_IRQ   = 0xFFFE
	INT_BRK   = INT_IRQ
	INT_RESET = 0xFFFC
	INT_NMI   = 0xFFFA
)

// 6502 Processor Status Flags
// https://www.nesdev.org/obelisk-6502-guide/registers.html
const (
	STATUS_FLAG_CARRY             = 1 << 0 // C
	STATUS_FLAG_ZERO              = 1 << 1 // Z
	STATUS_FLAG_INTERRUPT_DISABLE = 1 << 2 // I
	STATUS_FLAG_DECIMAL           = 1 << 3 // D - present but never consulted; the 2A03 ignores it
	STATUS_FLAG_BREAK             = 1 << 4 // B
	UNUSED_STATUS_FLAG            = 1 << 5 // always reads back as 1
	STATUS_FLAG_OVERFLOW          = 1 << 6 // V
	STATUS_FLAG_NEGATIVE          = 1 << 7 // N
)

// 6502 Addressing Modes
// https://www.nesdev.org/obelisk-6502-guide/addressing.html
const (
	IMPLICIT = iota
	ACCUMULATOR
	IMMEDIATE
	ZERO_PAGE
	ZERO_PAGE_X
	ZERO_PAGE_Y
	RELATIVE
	ABSOLUTE
	ABSOLUTE_X
	ABSOLUTE_Y
	INDIRECT
	INDIRECT_X // Indexed Indirect
	INDIRECT_Y // Indirect Indexed
)

const STACK_PAGE = 0x0100

var modenames = map[uint8]string{IMPLICIT: "IMPLICIT", ACCUMULATOR: "ACCUMULATOR", IMMEDIATE: "IMMEDIATE", ZERO_PAGE: "ZERO_PAGE", ZERO_PAGE_X: "ZERO_PAGE_X", ZERO_PAGE_Y: "ZERO_PAGE_Y", RELATIVE: "RELATIVE", ABSOLUTE: "ABSOLUTE", ABSOLUTE_X: "ABSOLUTE_X", ABSOLUTE_Y: "ABSOLUTE_Y", INDIRECT: "INDIRECT", INDIRECT_X: "INDIRECT_X", INDIRECT_Y: "INDIRECT_Y"}

// 6502 Instructions
// https://www.nesdev.org/obelisk-6502-guide/instructions.html
// https://www.nesdev.org/obelisk-6502-guide/reference.html
const (
	ADC = iota // ADD with Carry
	AND        // Logical AND
	ASL        // Arithmetic Shift Left
	BCC        // Branch if Carry Clear
	BCS        // Branch if Carry Set
	BEQ        // Branch if Equal
	BIT        // Bit Test
	BMI        // Branch if Minus
	BNE        // Branch if Not Equal
	BPL        // Branch if Positive
	BRK        // Force Interrupt
	BVC        // Branch if Overflow Clear
	BVS        // Branch if Overflow Set
	CLC        // Clear Carry Flag
	CLD        // Clear Decimal Mode
	CLI        // Clear Interrupt Disable
	CLV        // Clear Overflow Flag
	CMP        // Compare
	CPX        // Compare X Register
	CPY        // Compare Y Register
	DEC        // Decrement Memory
	DEX        // Decrement X Register
	DEY        // Decrement Y Register
	EOR        // Exclusive OR
	INC        // Increment Memory
	INX        // Increment X Register
	INY        // Increment Y Register
	JMP        // Jump
	JSR        // Jump to Subroutine
	LDA        // Load Accumulator
	LDX        // Load X Register
	LDY        // Load Y Register
	LSR        // Logical Shift Right
	NOP        // No Operation
	ORA        // Logical Inclusive OR
	PHA        // Push Accumulator
	PHP        // Push Processor Status
	PLA        // Pull Accumulator
	PLP        // Pull Processor Status
	ROL        // Rotate Left
	ROR        // Rotate Right
	RTI        // Return from Interrupt
	RTS        // Return from Subroutine
	SBC        // Subtract With Carry
	SEC        // Set Carry Flag
	SED        // Set Decimal Flag
	SEI        // Set Interrupt Disable
	STA        // Store Accumulator
	STX        // Store X Register
	STY        // Store Y Register
	TAX        // Transfer Accumulator to X
	TAY        // Transfer Accumulator to Y
	TSX        // Transfer Stack Pointer to X
	TXA        // Transfer X to Accumulator
	TXS        // Transfer X to Stack Pointer
	TYA        // Transfer Y to Accumulator
)

type opcode struct {
	inst   uint8 // The instruction id
	name   string
	mode   uint8 // The memory addressing mode to use
	bytes  uint8 // The number of bytes consumed by operands
	cycles uint8 // The number of cycles consumed by the instruction
}

func (o opcode) String() string {
	return fmt.Sprintf("{%s, %s}", o.name, modenames[o.mode])
}

var opcodes = map[uint8]opcode{
	// ADC
	0x69: {ADC, "ADC", IMMEDIATE, 2, 2},
	0x65: {ADC, "ADC", ZERO_PAGE, 2, 3},
	0x75: {ADC, "ADC", ZERO_PAGE_X, 2, 4},
	0x6D: {ADC, "ADC", ABSOLUTE, 3, 4},
	0x7D: {ADC, "ADC", ABSOLUTE_X, 3, 4 /* +1 if page crossed */},
	0x79: {ADC, "ADC", ABSOLUTE_Y, 3, 4 /* +1 if page crossed*/},
	0x61: {ADC, "ADC", INDIRECT_X, 2, 6},
	0x71: {ADC, "ADC", INDIRECT_Y, 2, 5 /* +1 if page crossed*/},
	0x29: {AND, "AND", IMMEDIATE, 2, 2},
	0x25: {AND, "AND", ZERO_PAGE, 2, 3},
	0x35: {AND, "AND", ZERO_PAGE_X, 2, 4},
	0x2D: {AND, "AND", ABSOLUTE, 3, 4},
	0x3D: {AND, "AND", ABSOLUTE_X, 3, 4 /* + 1 if page crossed*/},
	0x39: {AND, "AND", ABSOLUTE_Y, 3, 4 /* +1 if page crossed*/},
	0x21: {AND, "AND", INDIRECT_X, 2, 6},
	0x31: {AND, "AND", INDIRECT_Y, 2, 5 /* +1 if page crossed*/},
	0x0A: {ASL, "ASL", ACCUMULATOR, 1, 2},
	0x06: {ASL, "ASL", ZERO_PAGE, 2, 5},
	0x16: {ASL, "ASL", ZERO_PAGE_X, 2, 6},
	0x0E: {ASL, "ASL", ABSOLUTE, 3, 6},
	0x1E: {ASL, "ASL", ABSOLUTE_X, 3, 7},
	0x90: {BCC, "BCC", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0xB0: {BCS, "BCS", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0xF0: {BEQ, "BEQ", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0x24: {BIT, "BIT", ZERO_PAGE, 2, 3},
	0x2C: {BIT, "BIT", ABSOLUTE, 3, 4},
	0x30: {BMI, "BMI", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0xD0: {BNE, "BNE", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0x10: {BPL, "BPL", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0x00: {BRK, "BRK", IMPLICIT, 2, 7},
	0x50: {BVC, "BVC", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0x70: {BVS, "BVS", RELATIVE, 2, 2 /* +1 if branch succeeds +2 if to a new page */},
	0x18: {CLC, "CLC", IMPLICIT, 1, 2},
	0xD8: {CLD, "CLD", IMPLICIT, 1, 2},
	0x58: {CLI, "CLI", IMPLICIT, 1, 2},
	0xB8: {CLV, "CLV", IMPLICIT, 1, 2},
	0xC9: {CMP, "CMP", IMMEDIATE, 2, 2},
	0xC5: {CMP, "CMP", ZERO_PAGE, 2, 3},
	0xD5: {CMP, "CMP", ZERO_PAGE_X, 2, 4},
	0xCD: {CMP, "CMP", ABSOLUTE, 3, 4},
	0xDD: {CMP, "CMP", ABSOLUTE_X, 3, 4 /* +1 if page crossed */},
	0xD9: {CMP, "CMP", ABSOLUTE_Y, 3, 4 /* +1 if page crossed */},
	0xC1: {CMP, "CMP", INDIRECT_X, 2, 6},
	0xD1: {CMP, "CMP", INDIRECT_Y, 2, 5 /* +1 if page crossed */},
	0xE0: {CPX, "CPX", IMMEDIATE, 2, 2},
	0xE4: {CPX, "CPX", ZERO_PAGE, 2, 3},
	0xEC: {CPX, "CPX", ABSOLUTE, 3, 4},
	0xC0: {CPY, "CPY", IMMEDIATE, 2, 2},
	0xC4: {CPY, "CPY", ZERO_PAGE, 2, 3},
	0xCC: {CPY, "CPY", ABSOLUTE, 3, 4},
	0xC6: {DEC, "DEC", ZERO_PAGE, 2, 5},
	0xD6: {DEC, "DEC", ZERO_PAGE_X, 2, 6},
	0xCE: {DEC, "DEC", ABSOLUTE, 3, 6},
	0xDE: {DEC, "DEC", ABSOLUTE_X, 3, 7},
	0xCA: {DEX, "DEX", IMPLICIT, 1, 2},
	0x88: {DEY, "DEY", IMPLICIT, 1, 2},
	0x49: {EOR, "EOR", IMMEDIATE, 2, 2},
	0x45: {EOR, "EOR", ZERO_PAGE, 2, 3},
	0x55: {EOR, "EOR", ZERO_PAGE_X, 2, 4},
	0x4D: {EOR, "EOR", ABSOLUTE, 3, 4},
	0x5D: {EOR, "EOR", ABSOLUTE_X, 3, 4 /* +1 if page crossed */},
	0x59: {EOR, "EOR", ABSOLUTE_Y, 3, 4 /* +1 if page crossed */},
	0x41: {EOR, "EOR", INDIRECT_X, 2, 6},
	0x51: {EOR, "EOR", INDIRECT_Y, 2, 5 /* +1 if page crossed */},
	0xE6: {INC, "INC", ZERO_PAGE, 2, 5},
	0xF6: {INC, "INC", ZERO_PAGE_X, 2, 6},
	0xEE: {INC, "INC", ABSOLUTE, 3, 6},
	0xFE: {INC, "INC", ABSOLUTE_X, 3, 7},
	0xE8: {INX, "INX", IMPLICIT, 1, 2},
	0xC8: {INY, "INY", IMPLICIT, 1, 2},
	0x4C: {JMP, "JMP", ABSOLUTE, 3, 3},
	0x6C: {JMP, "JMP", INDIRECT, 3, 5},
	0x20: {JSR, "JSR", ABSOLUTE, 3, 6},
	0xA9: {LDA, "LDA", IMMEDIATE, 2, 2},
	0xA5: {LDA, "LDA", ZERO_PAGE, 2, 3},
	0xB5: {LDA, "LDA", ZERO_PAGE_X, 2, 4},
	0xAD: {LDA, "LDA", ABSOLUTE, 3, 4},
	0xBD: {LDA, "LDA", ABSOLUTE_X, 3, 4 /* +1 if page crossed */},
	0xB9: {LDA, "LDA", ABSOLUTE_Y, 3, 4 /* +1 if page crossed */},
	0xA1: {LDA, "LDA", INDIRECT_X, 2, 6},
	0xB1: {LDA, "LDA", INDIRECT_Y, 2, 5 /* +1 if page crossed */},
	0xA2: {LDX, "LDX", IMMEDIATE, 2, 2},
	0xA6: {LDX, "LDX", ZERO_PAGE, 2, 3},
	0xB6: {LDX, "LDX", ZERO_PAGE_Y, 2, 4},
	0xAE: {LDX, "LDX", ABSOLUTE, 3, 4},
	0xBE: {LDX, "LDX", ABSOLUTE_Y, 3, 4 /* +1 if page crossed */},
	0xA0: {LDY, "LDY", IMMEDIATE, 2, 2},
	0xA4: {LDY, "LDY", ZERO_PAGE, 2, 3},
	0xB4: {LDY, "LDY", ZERO_PAGE_X, 2, 4},
	0xAC: {LDY, "LDY", ABSOLUTE, 3, 4},
	0xBC: {LDY, "LDY", ABSOLUTE_X, 3, 4 /* +1 if page crossed */},
	0x4A: {LSR, "LSR", ACCUMULATOR, 1, 2},
	0x46: {LSR, "LSR", ZERO_PAGE, 2, 5},
	0x56: {LSR, "LSR", ZERO_PAGE_X, 2, 6},
	0x4E: {LSR, "LSR", ABSOLUTE, 3, 6},
	0x5E: {LSR, "LSR", ABSOLUTE_X, 3, 7},
	0xEA: {NOP, "NOP", IMPLICIT, 1, 2},
	0x09: {ORA, "ORA", IMMEDIATE, 2, 2},
	0x05: {ORA, "ORA", ZERO_PAGE, 2, 3},
	0x15: {ORA, "ORA", ZERO_PAGE_X, 2, 4},
	0x0D: {ORA, "ORA", ABSOLUTE, 3, 4},
	0x1D: {ORA, "ORA", ABSOLUTE_X, 3, 4 /* +1 if page crossed */},
	0x19: {ORA, "ORA", ABSOLUTE_Y, 3, 4 /* +1 if page crossed */},
	0x01: {ORA, "ORA", INDIRECT_X, 2, 6},
	0x11: {ORA, "ORA", INDIRECT_Y, 2, 5 /* +1 if page crossed */},
	0x48: {PHA, "PHA", IMPLICIT, 1, 3},
	0x08: {PHP, "PHP", IMPLICIT, 1, 3},
	0x68: {PLA, "PLA", IMPLICIT, 1, 4},
	0x28: {PLP, "PLP", IMPLICIT, 1, 4},
	0x2A: {ROL, "ROL", ACCUMULATOR, 1, 2},
	0x26: {ROL, "ROL", ZERO_PAGE, 2, 5},
	0x36: {ROL, "ROL", ZERO_PAGE_X, 2, 6},
	0x2E: {ROL, "ROL", ABSOLUTE, 3, 6},
	0x3E: {ROL, "ROL", ABSOLUTE_X, 3, 7},
	0x6A: {ROR, "ROR", ACCUMULATOR, 1, 2},
	0x66: {ROR, "ROR", ZERO_PAGE, 2, 5},
	0x76: {ROR, "ROR", ZERO_PAGE_X, 2, 6},
	0x6E: {ROR, "ROR", ABSOLUTE, 3, 6},
	0x7E: {ROR, "ROR", ABSOLUTE_X, 3, 7},
	0x40: {RTI, "RTI", IMPLICIT, 1, 6},
	0x60: {RTS, "RTS", IMPLICIT, 1, 6},
	0xE9: {SBC, "SBC", IMMEDIATE, 2, 2},
	0xE5: {SBC, "SBC", ZERO_PAGE, 2, 3},
	0xF5: {SBC, "SBC", ZERO_PAGE_X, 2, 4},
	0xED: {SBC, "SBC", ABSOLUTE, 3, 4},
	0xFD: {SBC, "SBC", ABSOLUTE_X, 3, 4 /* +1 if page crossed */},
	0xF9: {SBC, "SBC", ABSOLUTE_Y, 3, 4 /* +1 if page crossed */},
	0xE1: {SBC, "SBC", INDIRECT_X, 2, 6},
	0xF1: {SBC, "SBC", INDIRECT_Y, 2, 5 /* +1 if page crossed */},
	0x38: {SEC, "SEC", IMPLICIT, 1, 2},
	0xF8: {SED, "SED", IMPLICIT, 1, 2},
	0x78: {SEI, "SEI", IMPLICIT, 1, 2},
	0x85: {STA, "STA", ZERO_PAGE, 2, 3},
	0x95: {STA, "STA", ZERO_PAGE_X, 2, 4},
	0x8D: {STA, "STA", ABSOLUTE, 3, 4},
	0x9D: {STA, "STA", ABSOLUTE_X, 3, 5},
	0x99: {STA, "STA", ABSOLUTE_Y, 3, 5},
	0x81: {STA, "STA", INDIRECT_X, 2, 6},
	0x91: {STA, "STA", INDIRECT_Y, 2, 6},
	0x86: {STX, "STX", ZERO_PAGE, 2, 3},
	0x96: {STX, "STX", ZERO_PAGE_Y, 2, 4},
	0x8E: {STX, "STX", ABSOLUTE, 3, 4},
	0x84: {STY, "STY", ZERO_PAGE, 2, 3},
	0x94: {STY, "STY", ZERO_PAGE_X, 2, 4},
	0x8C: {STY, "STY", ABSOLUTE, 3, 4},
	0xAA: {TAX, "TAX", IMPLICIT, 1, 2},
	0xA8: {TAY, "TAY", IMPLICIT, 1, 2},
	0xBA: {TSX, "TSX", IMPLICIT, 1, 2},
	0x8A: {TXA, "TXA", IMPLICIT, 1, 2},
	0x9A: {TXS, "TXS", IMPLICIT, 1, 2},
	0x98: {TYA, "TYA", IMPLICIT, 1, 2},
}

// instFuncs maps an instruction id to the method that implements
// it. Built once so Step() can dispatch with a plain table lookup
// rather than reflection.
var instFuncs = map[uint8]func(*CPU, uint8){
	ADC: (*CPU).ADC, AND: (*CPU).AND, ASL: (*CPU).ASL, BCC: (*CPU).BCC, BCS: (*CPU).BCS,
	BEQ: (*CPU).BEQ, BIT: (*CPU).BIT, BMI: (*CPU).BMI, BNE: (*CPU).BNE, BPL: (*CPU).BPL,
	BRK: (*CPU).BRK, BVC: (*CPU).BVC, BVS: (*CPU).BVS, CLC: (*CPU).CLC, CLD: (*CPU).CLD,
	CLI: (*CPU).CLI, CLV: (*CPU).CLV, CMP: (*CPU).CMP, CPX: (*CPU).CPX, CPY: (*CPU).CPY,
	DEC: (*CPU).DEC, DEX: (*CPU).DEX, DEY: (*CPU).DEY, EOR: (*CPU).EOR, INC: (*CPU).INC,
	INX: (*CPU).INX, INY: (*CPU).INY, JMP: (*CPU).JMP, JSR: (*CPU).JSR, LDA: (*CPU).LDA,
	LDX: (*CPU).LDX, LDY: (*CPU).LDY, LSR: (*CPU).LSR, NOP: (*CPU).NOP, ORA: (*CPU).ORA,
	PHA: (*CPU).PHA, PHP: (*CPU).PHP, PLA: (*CPU).PLA, PLP: (*CPU).PLP, ROL: (*CPU).ROL,
	ROR: (*CPU).ROR, RTI: (*CPU).RTI, RTS: (*CPU).RTS, SBC: (*CPU).SBC, SEC: (*CPU).SEC,
	SED: (*CPU).SED, SEI: (*CPU).SEI, STA: (*CPU).STA, STX: (*CPU).STX, STY: (*CPU).STY,
	TAX: (*CPU).TAX, TAY: (*CPU).TAY, TSX: (*CPU).TSX, TXA: (*CPU).TXA, TXS: (*CPU).TXS,
	TYA: (*CPU).TYA,
}

var dispatch [256]func(*CPU, uint8)

func init() {
	for code, op := range opcodes {
		dispatch[code] = instFuncs[op.inst]
	}
}

var flagMap = map[uint8]byte{
	STATUS_FLAG_CARRY:             'C',
	STATUS_FLAG_ZERO:              'Z',
	STATUS_FLAG_INTERRUPT_DISABLE: 'I',
	STATUS_FLAG_DECIMAL:           'D',
	STATUS_FLAG_BREAK:             'B',
	UNUSED_STATUS_FLAG:            '-',
	STATUS_FLAG_OVERFLOW:          'V',
	STATUS_FLAG_NEGATIVE:          'N',
}

func statusString(p uint8) string {
	var sb strings.Builder

	flags := []uint8{
		STATUS_FLAG_NEGATIVE,
		STATUS_FLAG_OVERFLOW,
		UNUSED_STATUS_FLAG,
		STATUS_FLAG_BREAK,
		STATUS_FLAG_DECIMAL,
		STATUS_FLAG_INTERRUPT_DISABLE,
		STATUS_FLAG_ZERO,
		STATUS_FLAG_CARRY,
	}

	for _, f := range flags {
		if p&f > 0 {
			sb.WriteByte(flagMap[f])
		} else {
			sb.WriteByte('.')
		}
	}

	return sb.String()
}

// Bus is the minimal interface the CPU needs from the rest of the
// machine: byte-addressable reads and writes over its 16-bit address
// space. The console package supplies the real implementation, wiring
// in RAM mirroring, PPU register mirroring and the mapper.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

// CPU implements all of the machine state for the 6502.
type CPU struct {
	acc    uint8  // main register
	x, y   uint8  // index registers
	status uint8  // a register for storing various status bits
	sp     uint8  // stack pointer - stack is 0x0100-0x01FF so only 8 bits needed
	pc     uint16 // the program counter
	bus    Bus
	cycles int // how many cycles remain until the next instruction fetch
}

func (c *CPU) String() string {
	return fmt.Sprintf("A,X,Y: %4d, %4d, %4d; PC: 0x%04x, SP: 0x%02x, P: %s; OP: %s", c.acc, c.x, c.y, c.pc, c.sp, statusString(c.status), opcodes[c.Read(c.pc)])
}

// New returns a CPU wired to bus, with registers in their documented
// power-on state, and the program counter loaded from the reset
// vector.
// https://nesdev-wiki.nes.science/wikipages/CPU_ALL.xhtml#Power_up_state
func New(bus Bus) *CPU {
	c := &CPU{
		sp:     0xFD,
		bus:    bus,
		status: UNUSED_STATUS_FLAG | STATUS_FLAG_BREAK | STATUS_FLAG_INTERRUPT_DISABLE,
	}
	c.pc = c.Read16(INT_RESET)
	return c
}

// Reset restores the program counter from the reset vector, as if the
// console's reset line had been pulsed. Unlike power-on, reset does
// not touch the accumulator or index registers.
func (c *CPU) Reset() {
	c.sp -= 3
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
	c.pc = c.Read16(INT_RESET)
	c.cycles = 7
}

// NMI services a non-maskable interrupt: push PC and status, disable
// further IRQs, and jump through the NMI vector. Unlike IRQ, this
// cannot be masked by the interrupt-disable flag.
func (c *CPU) NMI() {
	c.pushAddress(c.pc)
	c.pushStack(c.status&^STATUS_FLAG_BREAK | UNUSED_STATUS_FLAG)
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
	c.pc = c.Read16(INT_NMI)
	c.cycles += 7
}

// IRQ services a maskable interrupt request; a no-op while the
// interrupt-disable flag is set.
func (c *CPU) IRQ() {
	if c.status&STATUS_FLAG_INTERRUPT_DISABLE != 0 {
		return
	}
	c.pushAddress(c.pc)
	c.pushStack(c.status&^STATUS_FLAG_BREAK | UNUSED_STATUS_FLAG)
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
	c.pc = c.Read16(INT_IRQ)
	c.cycles += 7
}

// AddDMACycles accounts for the CPU stall caused by an OAM-DMA
// transfer: 513 cycles, or 514 if the transfer starts on an odd CPU
// cycle. The console's bus triggers this on a $4014 write.
func (c *CPU) AddDMACycles(oddCycle bool) {
	c.cycles += 513
	if oddCycle {
		c.cycles++
	}
}

var invalidInstruction = fmt.Errorf("invalid instruction")

// Read returns the byte from memory at addr.
func (c *CPU) Read(addr uint16) uint8 {
	return c.bus.Read(addr)
}

// Write writes val to memory at addr.
func (c *CPU) Write(addr uint16, val uint8) {
	c.bus.Write(addr, val)
}

// Read16 returns the two bytes from memory at addr (lower byte first).
func (c *CPU) Read16(addr uint16) uint16 {
	lsb := uint16(c.Read(addr))
	msb := uint16(c.Read(addr + 1))

	return (msb << 8) | lsb
}

func (c *CPU) Write16(addr, val uint16) {
	c.Write(addr, uint8(val&0x00FF))
	c.Write(addr+1, uint8(val>>8))
}

// read16ZeroPage reads a little-endian pointer out of the zero page,
// wrapping the high-byte fetch back to $00 instead of spilling into
// page 1. Real 6502 zero-page-indexed addressing modes never cross
// out of page zero.
func (c *CPU) read16ZeroPage(addr uint8) uint16 {
	lsb := uint16(c.Read(uint16(addr)))
	msb := uint16(c.Read(uint16(addr + 1)))
	return (msb << 8) | lsb
}

// read16Bug reproduces the 6502's JMP ($xxFF) indirect-jump bug: when
// the low byte of the pointer sits at the end of a page, the high byte
// is fetched from the start of the *same* page rather than the next
// one.
func (c *CPU) read16Bug(addr uint16) uint16 {
	lsb := uint16(c.Read(addr))
	hiAddr := (addr & 0xFF00) | uint16(uint8(addr)+1)
	msb := uint16(c.Read(hiAddr))
	return (msb << 8) | lsb
}

// LoadMem copies data into memory starting at addr. Intended for tests
// and the debug REPL, not for hot-path emulation.
func (c *CPU) LoadMem(addr uint16, data []uint8) {
	for i, b := range data {
		c.Write(addr+uint16(i), b)
	}
}

// SetPC forces the program counter, bypassing the reset vector. Used
// by tests that want to execute code placed at an arbitrary address.
func (c *CPU) SetPC(pc uint16) {
	c.pc = pc
}

// PC returns the current program counter.
func (c *CPU) PC() uint16 {
	return c.pc
}

// Cycles returns how many cycles remain before the next instruction is
// fetched.
func (c *CPU) Cycles() int {
	return c.cycles
}

// getOperandAddr takes a mode and returns an address for the operand
// referenced by the program counter. It assumes that the counter was
// incremented past the actual instruction itself.
func (c *CPU) getOperandAddr(mode uint8) uint16 {
	var addr uint16
	switch mode {
	case ACCUMULATOR:
		panic("ACCUMULATOR address mode should never use this method")
	case IMPLICIT:
		panic("IMPLICIT address mode should never use this method")
	case IMMEDIATE:
		addr = c.pc
	case ZERO_PAGE:
		addr = uint16(c.Read(c.pc))
	case ZERO_PAGE_X:
		return uint16(c.Read(c.pc) + c.x)
	case ZERO_PAGE_Y:
		return uint16(c.Read(c.pc) + c.y)
	case ABSOLUTE:
		return c.Read16(c.pc)
	case ABSOLUTE_X:
		a := c.Read16(c.pc)
		addr = a + uint16(c.x)
		c.cycles += int(extraCycles(a, addr))
	case ABSOLUTE_Y:
		a := c.Read16(c.pc)
		addr = a + uint16(c.y)
		c.cycles += int(extraCycles(a, addr))
	case INDIRECT:
		return c.read16Bug(c.Read16(c.pc))
	case INDIRECT_X:
		return c.read16ZeroPage(c.Read(c.pc) + c.x)
	case INDIRECT_Y:
		a := c.read16ZeroPage(c.Read(c.pc))
		addr = a + uint16(c.y)
		c.cycles += int(extraCycles(a, addr))
	case RELATIVE:
		// Relative from PC at time of instruction
		// execution. We advance pc as soon as we eat the byte
		// from memory to decode the instruction, so we need
		// to account for that here and step over the relative
		// argument while calculating the new target address.
		addr = (c.pc + 1) + uint16(int8(c.Read(c.pc)))
	default:
		panic("invalid addressing mode")
	}

	return addr
}

// Step executes a single 6502 cycle's worth of work: if an instruction
// is still "in flight" from a previous Step call, it just burns a
// cycle; otherwise it fetches, decodes and fully executes the next
// instruction and schedules the cycles it costs.
func (c *CPU) Step() {
	if c.cycles > 0 {
		c.cycles--
		return
	}

	opByte := c.Read(c.pc)
	op, ok := opcodes[opByte]
	if !ok {
		panic(fmt.Errorf("pc: 0x%04x, inst: 0x%02x - %w", c.pc, opByte, invalidInstruction))
	}

	c.cycles += int(op.cycles)
	c.pc++
	opc := c.pc

	dispatch[opByte](c, op.mode)

	// If we didn't branch or jump, move the PC beyond the full width
	// of the instruction. We consumed the first byte for the
	// instruction code, so only skip over the remaining argument
	// bytes.
	if c.pc == opc {
		c.pc += uint16(op.bytes) - 1
	}
}

// StackAddr returns the current absolute address of the top of the
// stack.
func (c *CPU) StackAddr() uint16 {
	return STACK_PAGE + uint16(c.sp)
}

// setNegativeAndZeroFlags sets the STATUS_FLAG_NEGATIVE and
// STATUS_FLAG_ZERO bits of the status register accordingly for the
// value specified in n.
func (c *CPU) setNegativeAndZeroFlags(n uint8) {
	if n == 0 {
		c.flagsOn(STATUS_FLAG_ZERO)
	} else {
		c.flagsOff(STATUS_FLAG_ZERO)
	}

	if n&0b1000_0000 != 0 {
		c.flagsOn(STATUS_FLAG_NEGATIVE)
	} else {
		c.flagsOff(STATUS_FLAG_NEGATIVE)
	}
}

func (c *CPU) pushStack(val uint8) {
	c.Write(c.StackAddr(), val)
	c.sp--
}

func (c *CPU) popStack() uint8 {
	c.sp++
	return c.Read(c.StackAddr())
}

func (c *CPU) pushAddress(addr uint16) {
	c.pushStack(uint8(addr >> 8))     // high
	c.pushStack(uint8(addr & 0x00FF)) // low
}

func (c *CPU) popAddress() uint16 {
	return uint16(c.popStack()) | (uint16(c.popStack()) << 8)
}

// flagsOn forces the flags in mask (STATUS_FLAG_XXX|STATUS_FLAG_YYY)
// on in the status register.
func (c *CPU) flagsOn(mask uint8) {
	c.status = c.status | mask
}

// flagsOff forces the flags in mask (STATUS_FLAG_XXX|STATUS_FLAG_YYY)
// off in the status register.
func (c *CPU) flagsOff(mask uint8) {
	c.status = c.status &^ mask
}

// extraCycles returns 0 if addr1 and addr2 are in the same page, 1
// otherwise. This is useful for instructions that take a variable
// number of cycles, depending on whether or not a page boundary is
// crossed.
func extraCycles(addr1, addr2 uint16) uint8 {
	if addr1&0xFF00 != addr2&0xFF00 {
		return 1
	}
	return 0
}

// branch will adjust the PC conditionally based on whether the mask
// bits are set and the resulting comparison is expected to be true or
// false. This allows you to check for STATUS_FLAG being set or cleared
// by: branch(STATUS_FLAG_OVERFLOW, false) -> branch when OVERFLOW not
// set.
func (c *CPU) branch(mask uint8, predicate bool) {
	if (c.status&mask > 0) == predicate {
		a := c.getOperandAddr(RELATIVE)
		// Branching instructions take an extra cycle if they cause
		// a page break. pc-1 because we increment it right after
		// reading the op, but that's where we branch from, so
		// that's where we compare for page break.
		c.cycles += int(extraCycles(a, c.pc-1))
		c.cycles++ // successful branches take an extra cycle
		c.pc = a
	}
}

// addWithOverflow adds b to c.acc handling overflow, carry and ZN flag
// setting as appropriate. Used by both ADC and SBC (SBC just feeds in
// the ones' complement of the operand).
func (c *CPU) addWithOverflow(b uint8) {
	res16 := uint16(c.acc) + uint16(b) + uint16(c.status&STATUS_FLAG_CARRY)
	res := uint8(res16)

	var mask uint8
	if (res16 & 0x100) != 0 {
		mask |= STATUS_FLAG_CARRY
	}
	if (c.acc^res)&(b^res)&0x80 != 0 {
		mask |= STATUS_FLAG_OVERFLOW
	}

	c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_OVERFLOW | STATUS_FLAG_NEGATIVE | STATUS_FLAG_ZERO)
	c.flagsOn(mask)

	c.acc = res
	c.setNegativeAndZeroFlags(c.acc)
}

// baseCMP does comparison operations on a and b, setting flags
// accordingly.
func (c *CPU) baseCMP(a, b uint8) {
	c.setNegativeAndZeroFlags(a - b)
	if a >= b {
		c.flagsOn(STATUS_FLAG_CARRY)
	} else {
		c.flagsOff(STATUS_FLAG_CARRY)
	}
}

// encodeBCD packs a decimal value 0-99 into its binary-coded-decimal
// byte representation. The 2A03 never exercises this during ADC/SBC
// (decimal mode is disabled in hardware), but it's kept around for
// tooling that wants to render values the way a BCD-capable 6502
// would.
func encodeBCD(decimal uint8) uint8 {
	return ((decimal / 10) << 4) | (decimal % 10)
}

// decodeBCD is the inverse of encodeBCD.
func decodeBCD(bcd uint8) uint8 {
	return (bcd>>4)*10 + (bcd & 0x0F)
}

func (c *CPU) ADC(mode uint8) {
	c.addWithOverflow(c.Read(c.getOperandAddr(mode)))
}

func (c *CPU) AND(mode uint8) {
	c.acc = c.acc & c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) ASL(mode uint8) {
	var ov, nv uint8 // old value, new value
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc = c.acc << 1
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = ov << 1
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_NEGATIVE | STATUS_FLAG_ZERO)
	c.setNegativeAndZeroFlags(nv)
	if ov&0x80 != 0 {
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) BCC(mode uint8) { c.branch(STATUS_FLAG_CARRY, false) }
func (c *CPU) BCS(mode uint8) { c.branch(STATUS_FLAG_CARRY, true) }
func (c *CPU) BEQ(mode uint8) { c.branch(STATUS_FLAG_ZERO, true) }

func (c *CPU) BIT(mode uint8) {
	o := c.Read(c.getOperandAddr(mode))

	c.flagsOff(STATUS_FLAG_NEGATIVE | STATUS_FLAG_OVERFLOW | STATUS_FLAG_ZERO)
	var flags uint8
	if (o & c.acc) == 0 {
		flags |= STATUS_FLAG_ZERO
	}
	flags |= o & (STATUS_FLAG_NEGATIVE | STATUS_FLAG_OVERFLOW)

	c.flagsOn(flags)
}

func (c *CPU) BMI(mode uint8) { c.branch(STATUS_FLAG_NEGATIVE, true) }
func (c *CPU) BNE(mode uint8) { c.branch(STATUS_FLAG_ZERO, false) }
func (c *CPU) BPL(mode uint8) { c.branch(STATUS_FLAG_NEGATIVE, false) }

func (c *CPU) BRK(mode uint8) {
	// BRK is 2 bytes; the second is a padding byte convention debuggers
	// use to identify which BRK was hit.
	c.pushAddress(c.pc + 1)
	c.pushStack(c.status | STATUS_FLAG_BREAK | UNUSED_STATUS_FLAG)
	c.pc = c.Read16(INT_BRK)
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
}

func (c *CPU) BVC(mode uint8) { c.branch(STATUS_FLAG_OVERFLOW, false) }
func (c *CPU) BVS(mode uint8) { c.branch(STATUS_FLAG_OVERFLOW, true) }
func (c *CPU) CLC(mode uint8) { c.flagsOff(STATUS_FLAG_CARRY) }
func (c *CPU) CLD(mode uint8) { c.flagsOff(STATUS_FLAG_DECIMAL) }
func (c *CPU) CLI(mode uint8) { c.flagsOff(STATUS_FLAG_INTERRUPT_DISABLE) }
func (c *CPU) CLV(mode uint8) { c.flagsOff(STATUS_FLAG_OVERFLOW) }

func (c *CPU) CMP(mode uint8) { c.baseCMP(c.acc, c.Read(c.getOperandAddr(mode))) }
func (c *CPU) CPX(mode uint8) { c.baseCMP(c.x, c.Read(c.getOperandAddr(mode))) }
func (c *CPU) CPY(mode uint8) { c.baseCMP(c.y, c.Read(c.getOperandAddr(mode))) }

func (c *CPU) DEC(mode uint8) {
	a := c.getOperandAddr(mode)
	c.Write(a, c.Read(a)-1)
	c.setNegativeAndZeroFlags(c.Read(a))
}

func (c *CPU) DEX(mode uint8) {
	c.x--
	c.setNegativeAndZeroFlags(c.x)
}

func (c *CPU) DEY(mode uint8) {
	c.y--
	c.setNegativeAndZeroFlags(c.y)
}

func (c *CPU) EOR(mode uint8) {
	c.acc = c.acc ^ c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) INC(mode uint8) {
	a := c.getOperandAddr(mode)
	c.Write(a, c.Read(a)+1)
	c.setNegativeAndZeroFlags(c.Read(a))
}

func (c *CPU) INX(mode uint8) {
	c.x++
	c.setNegativeAndZeroFlags(c.x)
}

func (c *CPU) INY(mode uint8) {
	c.y++
	c.setNegativeAndZeroFlags(c.y)
}

func (c *CPU) JMP(mode uint8) {
	c.pc = c.getOperandAddr(mode)
}

func (c *CPU) JSR(mode uint8) {
	c.pushAddress(c.pc + 1) // this is the second byte of the JSR argument
	c.pc = c.getOperandAddr(mode)
}

func (c *CPU) LDA(mode uint8) {
	c.acc = c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) LDX(mode uint8) {
	c.x = c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.x)
}

func (c *CPU) LDY(mode uint8) {
	c.y = c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.y)
}

func (c *CPU) LSR(mode uint8) {
	var ov, nv uint8
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc = c.acc >> 1
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = ov >> 1
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_NEGATIVE | STATUS_FLAG_ZERO)
	c.setNegativeAndZeroFlags(nv)
	if ov&STATUS_FLAG_CARRY != 0 {
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) NOP(mode uint8) {}

func (c *CPU) ORA(mode uint8) {
	c.acc = c.acc | c.Read(c.getOperandAddr(mode))
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) PHA(mode uint8) { c.pushStack(c.acc) }

func (c *CPU) PHP(mode uint8) {
	// The 6502 always sets BREAK (and the unused bit) when pushing the
	// status register to the stack via PHP.
	c.pushStack(c.status | STATUS_FLAG_BREAK | UNUSED_STATUS_FLAG)
}

func (c *CPU) PLA(mode uint8) {
	c.acc = c.popStack()
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) PLP(mode uint8) {
	c.status = (c.popStack() &^ STATUS_FLAG_BREAK) | UNUSED_STATUS_FLAG
}

func (c *CPU) ROL(mode uint8) {
	var ov, nv uint8 // old value, new value
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc = (ov << 1) | (c.status & STATUS_FLAG_CARRY)
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = (ov << 1) | (c.status & STATUS_FLAG_CARRY)
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_NEGATIVE | STATUS_FLAG_ZERO)
	c.setNegativeAndZeroFlags(nv)
	if ov&0x80 != 0 {
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) ROR(mode uint8) {
	var ov, nv uint8 // old value, new value
	switch mode {
	case ACCUMULATOR:
		ov = c.acc
		c.acc = (ov >> 1) | ((c.status & STATUS_FLAG_CARRY) << 7)
		nv = c.acc
	default:
		addr := c.getOperandAddr(mode)
		ov = c.Read(addr)
		nv = (ov >> 1) | ((c.status & STATUS_FLAG_CARRY) << 7)
		c.Write(addr, nv)
	}

	c.flagsOff(STATUS_FLAG_CARRY | STATUS_FLAG_NEGATIVE | STATUS_FLAG_ZERO)
	c.setNegativeAndZeroFlags(nv)
	if ov&STATUS_FLAG_CARRY != 0 { // was carry bit set in the old _value_?
		c.flagsOn(STATUS_FLAG_CARRY)
	}
}

func (c *CPU) RTI(mode uint8) {
	c.status = (c.popStack() &^ STATUS_FLAG_BREAK) | UNUSED_STATUS_FLAG
	c.pc = c.popAddress()
}

func (c *CPU) RTS(mode uint8) {
	c.pc = c.popAddress() + 1
}

func (c *CPU) SBC(mode uint8) {
	c.addWithOverflow(^c.Read(c.getOperandAddr(mode)))
}

func (c *CPU) SEC(mode uint8) { c.flagsOn(STATUS_FLAG_CARRY) }
func (c *CPU) SED(mode uint8) { c.flagsOn(STATUS_FLAG_DECIMAL) }
func (c *CPU) SEI(mode uint8) { c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE) }

func (c *CPU) STA(mode uint8) { c.Write(c.getOperandAddr(mode), c.acc) }
func (c *CPU) STX(mode uint8) { c.Write(c.getOperandAddr(mode), c.x) }
func (c *CPU) STY(mode uint8) { c.Write(c.getOperandAddr(mode), c.y) }

func (c *CPU) TAX(mode uint8) {
	c.x = c.acc
	c.setNegativeAndZeroFlags(c.x)
}

func (c *CPU) TAY(mode uint8) {
	c.y = c.acc
	c.setNegativeAndZeroFlags(c.y)
}

func (c *CPU) TSX(mode uint8) {
	c.x = c.sp
	c.setNegativeAndZeroFlags(c.x)
}

func (c *CPU) TXA(mode uint8) {
	c.acc = c.x
	c.setNegativeAndZeroFlags(c.acc)
}

func (c *CPU) TXS(mode uint8) {
	c.sp = c.x
}

func (c *CPU) TYA(mode uint8) {
	c.acc = c.y
	c.setNegativeAndZeroFlags(c.acc)
}
