package mappers

import "github.com/bdwalton/nescore/nesrom"

func init() {
	RegisterMapper(3, &mapper3{
		baseMapper: newBaseMapper(3, "CNROM"),
	})
}

// mapper3 implements iNES mapper 3 (CNROM): fixed PRG ROM, up to four
// switchable 8KB CHR banks selected by writing anywhere in $8000-$FFFF.
type mapper3 struct {
	*baseMapper
	chrBanks uint8
	chrBank  uint8
}

func (m *mapper3) Init(r *nesrom.ROM) {
	m.baseMapper.Init(r)
	m.chrBanks = uint8(r.ChrSize() / chrBankSize)
}

const chrBankSize = 8192

func (m *mapper3) PrgRead(addr uint16) uint8 {
	addr -= 0x8000
	if m.rom.PrgSize() == prgBankSize {
		addr %= prgBankSize
	}
	return m.rom.PrgRead(addr)
}

// PrgWrite selects the active CHR bank. Only the bits needed to index
// the cartridge's actual bank count are honored.
func (m *mapper3) PrgWrite(addr uint16, val uint8) {
	if m.chrBanks > 0 {
		m.chrBank = val & (m.chrBanks - 1)
	}
}

func (m *mapper3) ChrRead(addr uint16) uint8 {
	return m.rom.ChrRead(uint16(m.chrBank)*chrBankSize + addr)
}

// ChrWrite is a no-op: CNROM's CHR banks are ROM, not RAM.
func (m *mapper3) ChrWrite(addr uint16, val uint8) {}
