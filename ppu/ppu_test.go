package ppu

import (
	"image/color"
	"testing"
)

type fakeBus struct {
	chr [0x2000]uint8
}

func (b *fakeBus) ChrRead(addr uint16) uint8 { return b.chr[addr] }

type plotted struct {
	x, y int
	c    color.RGBA
}

type fakeSink struct {
	bbg, bg, fg []plotted
	flips       int
}

func (s *fakeSink) PlotBBG(x, y int, c color.RGBA) { s.bbg = append(s.bbg, plotted{x, y, c}) }
func (s *fakeSink) PlotBG(x, y int, c color.RGBA)  { s.bg = append(s.bg, plotted{x, y, c}) }
func (s *fakeSink) PlotFG(x, y int, c color.RGBA)  { s.fg = append(s.fg, plotted{x, y, c}) }
func (s *fakeSink) FlipDisplay()                   { s.flips++ }

func newTestPPU() (*PPU, *fakeBus, *fakeSink) {
	b := &fakeBus{}
	s := &fakeSink{}
	p := New(b, s, MIRROR_HORIZONTAL)
	p.cpuCycles = readyCycles // skip the warm-up gate for register tests
	return p, b, s
}

func TestPPUCTRLDiscardedBeforeReady(t *testing.T) {
	p2 := New(&fakeBus{}, &fakeSink{}, MIRROR_HORIZONTAL)
	p2.WriteReg(PPUCTRL, 0x80)
	if p2.ctrl != 0 {
		t.Errorf("PPUCTRL written before ready, got %#x want 0", p2.ctrl)
	}
	p2.AddCPUCycles(readyCycles)
	p2.WriteReg(PPUCTRL, 0x80)
	if p2.ctrl != 0x80 {
		t.Errorf("PPUCTRL after ready = %#x, want 0x80", p2.ctrl)
	}
}

func TestPPUSTATUSResetsLatches(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUSCROLL, 0x11)
	p.WriteReg(PPUADDR, 0x20)
	if !p.scrollReceivedX || !p.addrReceivedHighByte {
		t.Fatalf("expected latches set mid-sequence")
	}
	p.ReadReg(PPUSTATUS)
	if p.scrollReceivedX || p.addrReceivedHighByte {
		t.Errorf("PPUSTATUS read did not reset both latches")
	}
}

func TestPPUSCROLLTwoWriteSequence(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUSCROLL, 0x42)
	p.WriteReg(PPUSCROLL, 0x24)
	if p.scrollX != 0x42 || p.scrollY != 0x24 {
		t.Errorf("scroll = (%#x,%#x), want (0x42,0x24)", p.scrollX, p.scrollY)
	}
}

func TestPPUADDRTwoWriteSequence(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUADDR, 0x23)
	p.WriteReg(PPUADDR, 0x45)
	if p.addr != 0x2345 {
		t.Errorf("addr = %#x, want 0x2345", p.addr)
	}
}

func TestPPUDATAWriteReadRoundtrip(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUADDR, 0x20)
	p.WriteReg(PPUADDR, 0x10)
	p.WriteReg(PPUDATA, 0x7A)

	p.WriteReg(PPUADDR, 0x20)
	p.WriteReg(PPUADDR, 0x10)
	first := p.ReadReg(PPUDATA)
	if first != 0 {
		t.Errorf("first PPUDATA read after latch reset = %#x, want 0 (buffered)", first)
	}
	second := p.ReadReg(PPUDATA)
	if second != 0x7A {
		t.Errorf("second PPUDATA read = %#x, want 0x7A", second)
	}
}

func TestPPUDATAIncrementStep(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUCTRL, CTRL_VRAM_ADD_INCREMENT)
	p.WriteReg(PPUADDR, 0x20)
	p.WriteReg(PPUADDR, 0x00)
	p.WriteReg(PPUDATA, 1)
	if p.addr != 0x2020 {
		t.Errorf("addr after down-increment = %#x, want 0x2020", p.addr)
	}
}

func TestPaletteMirroring(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUADDR, 0x3F)
	p.WriteReg(PPUADDR, 0x00)
	p.WriteReg(PPUDATA, 0x0F)

	if got := p.readVRAM(0x3F10); got != 0x0F {
		t.Errorf("expected $3F10 to mirror $3F00, got %#x", got)
	}
}

func TestNametableMirrorHorizontal(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUADDR, 0x20)
	p.WriteReg(PPUADDR, 0x00)
	p.WriteReg(PPUDATA, 0x55)

	if got := p.readVRAM(0x2400); got != 0x55 {
		t.Errorf("horizontal mirror: readVRAM(0x2400) = %#x, want 0x55", got)
	}
}

func TestOAMDMA(t *testing.T) {
	p, _, _ := newTestPPU()
	var page [256]uint8
	for i := range page {
		page[i] = uint8(i)
	}
	p.WriteOAMDMA(page)
	if p.oamData[10] != 10 {
		t.Errorf("oamData[10] = %d, want 10", p.oamData[10])
	}
}

func TestStepRaisesNMIOnceAtVBlank(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUCTRL, CTRL_GENERATE_NMI)

	nmiCount := 0
	for i := 0; i < SCANLINES; i++ {
		if p.Step() {
			nmiCount++
		}
	}
	if nmiCount != 1 {
		t.Errorf("NMI fired %d times per frame, want 1", nmiCount)
	}
}

func TestStepFlipsDisplayOncePerFrame(t *testing.T) {
	p, _, s := newTestPPU()
	for i := 0; i < SCANLINES; i++ {
		p.Step()
	}
	if s.flips != 1 {
		t.Errorf("FlipDisplay called %d times, want 1", s.flips)
	}
}

func TestSpriteZeroHit(t *testing.T) {
	p, b, _ := newTestPPU()
	p.WriteReg(PPUMASK, MASK_SHOW_BACKGROUND|MASK_SHOW_SPRITES)

	b.chr[0] = 0x80 // tile 0, row 0: one opaque pixel at x=0

	p.oamData[0] = 9 // y; sprite top appears at scanline 10
	p.oamData[1] = 0 // tileId
	p.oamData[2] = 0 // attributes
	p.oamData[3] = 0 // x

	p.scanline = 10
	p.renderSpriteScanline()

	if p.status&STATUS_SPRITE_0_HIT == 0 {
		t.Errorf("expected sprite-0-hit flag set")
	}
}

func TestSpriteZeroHitRequiresBackgroundEnabled(t *testing.T) {
	p, b, _ := newTestPPU()
	p.WriteReg(PPUMASK, MASK_SHOW_SPRITES) // background disabled

	b.chr[0] = 0x80

	p.oamData[0] = 9
	p.oamData[1] = 0
	p.oamData[2] = 0
	p.oamData[3] = 0

	p.scanline = 10
	p.renderSpriteScanline()

	if p.status&STATUS_SPRITE_0_HIT != 0 {
		t.Errorf("sprite-0-hit should not set without background rendering enabled")
	}
}

func TestSpriteOverflowFlag(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteReg(PPUMASK, MASK_SHOW_SPRITES)
	for i := 0; i < 9; i++ {
		base := i * 4
		p.oamData[base] = 9 // y, so visible at scanline 10
		p.oamData[base+1] = 0
		p.oamData[base+2] = 0
		p.oamData[base+3] = uint8(i * 8)
	}
	p.scanline = 10
	p.renderSpriteScanline()
	if p.status&STATUS_SPRITE_OVERFLOW == 0 {
		t.Errorf("expected sprite overflow flag with 9 sprites on one line")
	}
}
