package mappers

import "github.com/bdwalton/nescore/nesrom"

func init() {
	RegisterMapper(0, &mapper0{
		baseMapper: newBaseMapper(0, "NROM"),
	})
}

// mapper0 implements iNES mapper 0 (NROM): no bank switching, 16KB or
// 32KB of fixed PRG ROM and a single 8KB CHR ROM/RAM bank.
type mapper0 struct {
	*baseMapper
	chrRAM []uint8 // used in place of rom.ChrRead/Write when the cartridge has no CHR ROM
}

func (m *mapper0) Init(r *nesrom.ROM) {
	m.baseMapper.Init(r)
	m.chrRAM = nil
	if r.ChrIsRAM() {
		m.chrRAM = make([]uint8, 0x2000)
	}
}

const prgBankSize = 16384

func (m *mapper0) PrgRead(addr uint16) uint8 {
	addr -= 0x8000
	if m.rom.PrgSize() == prgBankSize {
		addr %= prgBankSize
	}
	return m.rom.PrgRead(addr)
}

// PrgWrite is a no-op: NROM exposes no writable PRG space or mapper
// registers.
func (m *mapper0) PrgWrite(addr uint16, val uint8) {}

func (m *mapper0) ChrRead(addr uint16) uint8 {
	if m.chrRAM != nil {
		return m.chrRAM[addr]
	}
	return m.rom.ChrRead(addr)
}

func (m *mapper0) ChrWrite(addr uint16, val uint8) {
	if m.chrRAM != nil {
		m.chrRAM[addr] = val
	}
	// CHR ROM writes are ignored.
}
