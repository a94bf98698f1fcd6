package mos6502

import "testing"

type mem struct {
	data [MEM_SIZE]uint8
}

func (m *mem) Read(addr uint16) uint8     { return m.data[addr] }
func (m *mem) Write(addr uint16, v uint8) { m.data[addr] = v }

func newTestCPU() (*CPU, *mem) {
	m := &mem{}
	// Point the reset vector at $0400, a convenient spot for test programs.
	m.data[INT_RESET] = 0x00
	m.data[INT_RESET+1] = 0x04
	return New(m), m
}

func TestNewPowerOnState(t *testing.T) {
	c, _ := newTestCPU()
	if c.pc != 0x0400 {
		t.Errorf("pc = 0x%04x, want 0x0400", c.pc)
	}
	if c.sp != 0xFD {
		t.Errorf("sp = 0x%02x, want 0xFD", c.sp)
	}
	want := uint8(UNUSED_STATUS_FLAG | STATUS_FLAG_BREAK | STATUS_FLAG_INTERRUPT_DISABLE)
	if c.status != want {
		t.Errorf("status = %08b, want %08b", c.status, want)
	}
}

func TestReadWrite(t *testing.T) {
	c, _ := newTestCPU()
	c.Write(0x10, 0x42)
	if got := c.Read(0x10); got != 0x42 {
		t.Errorf("Read(0x10) = %#x, want 0x42", got)
	}
}

func TestReadWrite16(t *testing.T) {
	c, _ := newTestCPU()
	c.Write16(0x10, 0xBEEF)
	if got := c.Read16(0x10); got != 0xBEEF {
		t.Errorf("Read16(0x10) = %#x, want 0xBEEF", got)
	}
	if lo, hi := c.Read(0x10), c.Read(0x11); lo != 0xEF || hi != 0xBE {
		t.Errorf("little-endian bytes = %#x, %#x; want 0xef, 0xbe", lo, hi)
	}
}

func TestLoadMemAndSetPC(t *testing.T) {
	c, _ := newTestCPU()
	c.LoadMem(0x0400, []uint8{0xA9, 0x07}) // LDA #$07
	c.SetPC(0x0400)
	c.Step()
	if c.acc != 0x07 {
		t.Errorf("acc = %#x, want 0x07", c.acc)
	}
	if c.pc != 0x0402 {
		t.Errorf("pc = 0x%04x, want 0x0402", c.pc)
	}
}

func TestZeroPageIndexedWrap(t *testing.T) {
	c, _ := newTestCPU()
	c.x = 0x05
	c.Write(0x04, 0x99) // 0xFF + 0x05 wraps to 0x04
	c.LoadMem(0x0400, []uint8{0xB5, 0xFF}) // LDA $FF,X
	c.SetPC(0x0400)
	c.Step()
	if c.acc != 0x99 {
		t.Errorf("acc = %#x, want 0x99 (zero page wrap)", c.acc)
	}
}

func TestIndirectXZeroPageWrap(t *testing.T) {
	c, _ := newTestCPU()
	c.x = 0x01
	// pointer stored at 0xFF (low) wraps to 0x00 (high) within page zero.
	c.Write(0xFF, 0x00)
	c.Write(0x00, 0x12)
	c.Write(0x1200, 0x55)
	c.LoadMem(0x0400, []uint8{0xA1, 0xFE}) // LDA ($FE,X)
	c.SetPC(0x0400)
	c.Step()
	if c.acc != 0x55 {
		t.Errorf("acc = %#x, want 0x55", c.acc)
	}
}

func TestJMPIndirectPageWrapBug(t *testing.T) {
	c, _ := newTestCPU()
	c.Write(0x30FF, 0x40)
	c.Write(0x3000, 0x80) // real 6502 bug: high byte read from $3000, not $3100
	c.Write(0x3100, 0xFF)
	c.LoadMem(0x0400, []uint8{0x6C, 0xFF, 0x30}) // JMP ($30FF)
	c.SetPC(0x0400)
	c.Step()
	if c.pc != 0x8040 {
		t.Errorf("pc = 0x%04x, want 0x8040 (page-wrap bug)", c.pc)
	}
}

func TestADCCarryAndOverflow(t *testing.T) {
	c, _ := newTestCPU()
	c.acc = 0x7F // +1 should overflow into negative
	c.LoadMem(0x0400, []uint8{0x69, 0x01}) // ADC #$01
	c.SetPC(0x0400)
	c.Step()
	if c.acc != 0x80 {
		t.Errorf("acc = %#x, want 0x80", c.acc)
	}
	if c.status&STATUS_FLAG_OVERFLOW == 0 {
		t.Errorf("overflow flag not set")
	}
	if c.status&STATUS_FLAG_NEGATIVE == 0 {
		t.Errorf("negative flag not set")
	}
	if c.status&STATUS_FLAG_CARRY != 0 {
		t.Errorf("carry flag unexpectedly set")
	}
}

func TestSBCBorrow(t *testing.T) {
	c, _ := newTestCPU()
	c.acc = 0x05
	c.flagsOn(STATUS_FLAG_CARRY) // carry set means "no borrow" going in
	c.LoadMem(0x0400, []uint8{0xE9, 0x06}) // SBC #$06
	c.SetPC(0x0400)
	c.Step()
	if c.acc != 0xFF {
		t.Errorf("acc = %#x, want 0xff", c.acc)
	}
	if c.status&STATUS_FLAG_CARRY != 0 {
		t.Errorf("carry flag set, want clear (borrow occurred)")
	}
}

func TestBranchCycles(t *testing.T) {
	c, _ := newTestCPU()
	cases := []struct {
		name       string
		pc         uint16
		carry      bool
		rel        uint8
		wantPC     uint16
		wantCycles int
	}{
		{"taken, no page cross", 0x0400, false, 0x02, 0x0404, 3},
		{"taken, page cross", 0x04FE, false, 0x10, 0x0510, 4},
		{"not taken", 0x0400, true, 0x02, 0x0402, 2},
	}

	for _, tc := range cases {
		c.pc = tc.pc
		c.cycles = 0
		c.status &^= STATUS_FLAG_CARRY
		if tc.carry {
			c.flagsOn(STATUS_FLAG_CARRY)
		}
		c.Write(tc.pc, 0x90) // BCC
		c.Write(tc.pc+1, tc.rel)
		c.Step()
		if c.pc != tc.wantPC || c.cycles != tc.wantCycles {
			t.Errorf("%s: pc = 0x%04x, cycles = %d; want pc = 0x%04x, cycles = %d", tc.name, c.pc, c.cycles, tc.wantPC, tc.wantCycles)
		}
	}
}

func TestStackPushPull(t *testing.T) {
	c, _ := newTestCPU()
	startSP := c.sp
	c.acc = 0x42
	c.LoadMem(0x0400, []uint8{0x48}) // PHA
	c.SetPC(0x0400)
	c.Step()
	if c.sp != startSP-1 {
		t.Errorf("sp = %#x, want %#x", c.sp, startSP-1)
	}
	if got := c.Read(c.StackAddr() + 1); got != 0x42 {
		t.Errorf("stacked value = %#x, want 0x42", got)
	}

	c.acc = 0
	c.LoadMem(0x0402, []uint8{0x68}) // PLA
	c.SetPC(0x0402)
	c.cycles = 0 // skip PHA's remaining cycles so this Step fetches PLA
	c.Step()
	if c.acc != 0x42 {
		t.Errorf("acc after PLA = %#x, want 0x42", c.acc)
	}
	if c.sp != startSP {
		t.Errorf("sp after PLA = %#x, want %#x", c.sp, startSP)
	}
}

func TestPHPSetsBreakAndUnused(t *testing.T) {
	c, _ := newTestCPU()
	c.status = 0
	c.LoadMem(0x0400, []uint8{0x08}) // PHP
	c.SetPC(0x0400)
	c.Step()
	pushed := c.Read(c.StackAddr() + 1)
	if pushed&(STATUS_FLAG_BREAK|UNUSED_STATUS_FLAG) != STATUS_FLAG_BREAK|UNUSED_STATUS_FLAG {
		t.Errorf("pushed status = %08b, want BREAK and UNUSED set", pushed)
	}
}

func TestBRKAndRTI(t *testing.T) {
	c, m := newTestCPU()
	m.data[INT_BRK] = 0x00
	m.data[INT_BRK+1] = 0x08
	c.LoadMem(0x0400, []uint8{0x00, 0x00}) // BRK
	c.SetPC(0x0400)
	c.Step()
	if c.pc != 0x0800 {
		t.Errorf("pc after BRK = 0x%04x, want 0x0800", c.pc)
	}
	if c.status&STATUS_FLAG_INTERRUPT_DISABLE == 0 {
		t.Errorf("interrupt disable not set after BRK")
	}

	c.LoadMem(0x0800, []uint8{0x40}) // RTI
	c.cycles = 0 // skip BRK's remaining cycles so this Step fetches RTI
	c.Step()
	if c.pc != 0x0402 {
		t.Errorf("pc after RTI = 0x%04x, want 0x0402", c.pc)
	}
}

func TestNMI(t *testing.T) {
	c, m := newTestCPU()
	m.data[INT_NMI] = 0x00
	m.data[INT_NMI+1] = 0x09
	c.pc = 0x1234
	c.NMI()
	if c.pc != 0x0900 {
		t.Errorf("pc after NMI = 0x%04x, want 0x0900", c.pc)
	}
	c.popStackForTest() // discard the pushed status byte
	if got := c.popAddressForTest(); got != 0x1234 {
		t.Errorf("stacked return address = 0x%04x, want 0x1234", got)
	}
}

func (c *CPU) popAddressForTest() uint16 { return c.popAddress() }
func (c *CPU) popStackForTest() uint8    { return c.popStack() }

func TestIRQMaskedByInterruptDisable(t *testing.T) {
	c, _ := newTestCPU()
	c.flagsOn(STATUS_FLAG_INTERRUPT_DISABLE)
	c.pc = 0x1234
	c.IRQ()
	if c.pc != 0x1234 {
		t.Errorf("pc changed despite interrupt-disable set: pc = 0x%04x", c.pc)
	}
}

func TestResetPreservesRegisters(t *testing.T) {
	c, _ := newTestCPU()
	c.acc, c.x, c.y = 0x11, 0x22, 0x33
	c.Reset()
	if c.acc != 0x11 || c.x != 0x22 || c.y != 0x33 {
		t.Errorf("registers changed by Reset: A=%#x X=%#x Y=%#x", c.acc, c.x, c.y)
	}
	if c.pc != 0x0400 {
		t.Errorf("pc after Reset = 0x%04x, want 0x0400", c.pc)
	}
}

func TestAddDMACycles(t *testing.T) {
	c, _ := newTestCPU()
	c.AddDMACycles(false)
	if c.cycles != 513 {
		t.Errorf("cycles = %d, want 513", c.cycles)
	}
	c.cycles = 0
	c.AddDMACycles(true)
	if c.cycles != 514 {
		t.Errorf("cycles = %d, want 514", c.cycles)
	}
}

func TestEncodeBCD(t *testing.T) {
	cases := []struct{ decimal, bcd uint8 }{
		{99, 0x99}, {70, 0x70}, {85, 0x85}, {1, 0x01}, {0, 0x00},
	}
	for i, tc := range cases {
		if got := encodeBCD(tc.decimal); got != tc.bcd {
			t.Errorf("%d: encodeBCD(%d) = 0x%02x, want 0x%02x", i, tc.decimal, got, tc.bcd)
		}
	}
}

func TestDecodeBCD(t *testing.T) {
	cases := []struct{ bcd, decimal uint8 }{
		{0x99, 99}, {0x70, 70}, {0x85, 85}, {0x01, 1}, {0x00, 0},
	}
	for i, tc := range cases {
		if got := decodeBCD(tc.bcd); got != tc.decimal {
			t.Errorf("%d: decodeBCD(0x%02x) = %d, want %d", i, tc.bcd, got, tc.decimal)
		}
	}
}

func TestStepBusyWaitsRemainingCycles(t *testing.T) {
	c, _ := newTestCPU()
	c.LoadMem(0x0400, []uint8{0xEA}) // NOP, 2 cycles
	c.SetPC(0x0400)
	c.cycles = 0
	c.Step()
	if c.pc != 0x0401 || c.cycles != 2 {
		t.Errorf("after first Step: pc = 0x%04x, cycles = %d; want 0x0401, 2", c.pc, c.cycles)
	}
	c.Step() // busy-wait cycle, no new fetch
	if c.pc != 0x0401 || c.cycles != 1 {
		t.Errorf("after busy Step: pc = 0x%04x, cycles = %d; want 0x0401, 1", c.pc, c.cycles)
	}
}

func TestROLAccumulator(t *testing.T) {
	tcs := []struct {
		acc, carryIn, want, wantCarryOut uint8
	}{
		{0x01, 0, 0x02, 0}, // no carry in, bit 7 clear: shifts clean
		{0x80, 0, 0x00, 1}, // bit 7 set rotates into carry out
		{0x01, 1, 0x03, 0}, // carry in rotates into bit 0
		{0x80, 1, 0x01, 1}, // both carry in and carry out active
	}
	for i, tc := range tcs {
		c, _ := newTestCPU()
		c.acc = tc.acc
		if tc.carryIn != 0 {
			c.flagsOn(STATUS_FLAG_CARRY)
		} else {
			c.flagsOff(STATUS_FLAG_CARRY)
		}
		c.LoadMem(0x0400, []uint8{0x2A}) // ROL A
		c.SetPC(0x0400)
		c.Step()
		if c.acc != tc.want {
			t.Errorf("%d: ROL A acc = %#x, want %#x", i, c.acc, tc.want)
		}
		gotCarry := uint8(0)
		if c.status&STATUS_FLAG_CARRY != 0 {
			gotCarry = 1
		}
		if gotCarry != tc.wantCarryOut {
			t.Errorf("%d: ROL A carry out = %d, want %d", i, gotCarry, tc.wantCarryOut)
		}
	}
}

func TestRORAccumulator(t *testing.T) {
	tcs := []struct {
		acc, carryIn, want, wantCarryOut uint8
	}{
		{0x02, 0, 0x01, 0}, // no carry in, bit 0 clear: shifts clean
		{0x01, 0, 0x00, 1}, // bit 0 set rotates into carry out
		{0x02, 1, 0x81, 0}, // carry in rotates into bit 7
		{0x01, 1, 0x80, 1}, // both carry in and carry out active
	}
	for i, tc := range tcs {
		c, _ := newTestCPU()
		c.acc = tc.acc
		if tc.carryIn != 0 {
			c.flagsOn(STATUS_FLAG_CARRY)
		} else {
			c.flagsOff(STATUS_FLAG_CARRY)
		}
		c.LoadMem(0x0400, []uint8{0x6A}) // ROR A
		c.SetPC(0x0400)
		c.Step()
		if c.acc != tc.want {
			t.Errorf("%d: ROR A acc = %#x, want %#x", i, c.acc, tc.want)
		}
		gotCarry := uint8(0)
		if c.status&STATUS_FLAG_CARRY != 0 {
			gotCarry = 1
		}
		if gotCarry != tc.wantCarryOut {
			t.Errorf("%d: ROR A carry out = %d, want %d", i, gotCarry, tc.wantCarryOut)
		}
	}
}

func TestCMPFlags(t *testing.T) {
	tcs := []struct {
		acc, operand           uint8
		wantCarry, wantZero, wantNegative bool
	}{
		{0x10, 0x10, true, true, false},   // equal: carry set, zero set
		{0x20, 0x10, true, false, false},  // acc > operand: carry set, result positive
		{0x10, 0x20, false, false, true},  // acc < operand: carry clear, result negative (0xF0)
	}
	for i, tc := range tcs {
		c, _ := newTestCPU()
		c.acc = tc.acc
		c.LoadMem(0x0400, []uint8{0xC9, tc.operand}) // CMP #operand
		c.SetPC(0x0400)
		c.Step()
		if got := c.status&STATUS_FLAG_CARRY != 0; got != tc.wantCarry {
			t.Errorf("%d: CMP %#x,%#x carry = %v, want %v", i, tc.acc, tc.operand, got, tc.wantCarry)
		}
		if got := c.status&STATUS_FLAG_ZERO != 0; got != tc.wantZero {
			t.Errorf("%d: CMP %#x,%#x zero = %v, want %v", i, tc.acc, tc.operand, got, tc.wantZero)
		}
		if got := c.status&STATUS_FLAG_NEGATIVE != 0; got != tc.wantNegative {
			t.Errorf("%d: CMP %#x,%#x negative = %v, want %v", i, tc.acc, tc.operand, got, tc.wantNegative)
		}
	}
}
