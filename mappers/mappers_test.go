package mappers

import (
	"bytes"
	"testing"

	"github.com/bdwalton/nescore/nesrom"
)

func makeROM(t *testing.T, prgBlocks, chrBlocks uint8, flags6 uint8) *nesrom.ROM {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("NES\x1a")
	buf.Write([]byte{prgBlocks, chrBlocks, flags6, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	buf.Write(make([]byte, nesrom.PRG_BLOCK_SIZE*int(prgBlocks)))
	buf.Write(make([]byte, nesrom.CHR_BLOCK_SIZE*int(chrBlocks)))
	rom, err := nesrom.New(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("nesrom.New: %v", err)
	}
	return rom
}

func TestGetUnknownMapper(t *testing.T) {
	rom := makeROM(t, 1, 1, 0xF0) // mapper 15, unregistered
	if _, err := Get(rom); err == nil {
		t.Errorf("Get() with unknown mapper: got nil error, want one")
	}
}

func TestMapper0PrgMirror(t *testing.T) {
	rom := makeROM(t, 1, 1, 0)
	rom.PrgWrite(0, 0x42)
	m, err := Get(rom)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := m.PrgRead(0x8000); got != 0x42 {
		t.Errorf("PrgRead(0x8000) = %#x, want 0x42", got)
	}
	if got := m.PrgRead(0xC000); got != 0x42 {
		t.Errorf("PrgRead(0xC000) = %#x, want 0x42 (mirrored)", got)
	}
}

func TestMapper0ChrRAMFallback(t *testing.T) {
	rom := makeROM(t, 1, 0, 0)
	m, err := Get(rom)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	m.ChrWrite(0x10, 0x7)
	if got := m.ChrRead(0x10); got != 0x7 {
		t.Errorf("ChrRead(0x10) = %#x, want 0x7", got)
	}
}

func TestMapper3BankSelect(t *testing.T) {
	rom := makeROM(t, 1, 4, 0x30) // mapper 3, 4 CHR banks
	for b := 0; b < 4; b++ {
		rom.ChrWrite(uint16(b)*8192, uint8(0xA0+b))
	}

	m, err := Get(rom)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	for b := 0; b < 4; b++ {
		m.PrgWrite(0x8000, uint8(b))
		if got, want := m.ChrRead(0), uint8(0xA0+b); got != want {
			t.Errorf("bank %d: ChrRead(0) = %#x, want %#x", b, got, want)
		}
	}
}

func TestBaseRAM(t *testing.T) {
	m := newBaseMapper(99, "test")
	m.WriteBaseRAM(5, 0x33)
	if got := m.ReadBaseRAM(5); got != 0x33 {
		t.Errorf("ReadBaseRAM(5) = %#x, want 0x33", got)
	}
}
