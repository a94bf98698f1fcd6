// Package ppu implements the picture processing unit: registers, OAM,
// VRAM and the per-scanline background/sprite renderer.
package ppu

import "image/color"

const (
	VRAM_SIZE    = 2048
	OAM_SIZE     = 256
	PALETTE_SIZE = 32
)

// Display constants
const (
	NES_RES_WIDTH  = 256
	NES_RES_HEIGHT = 240
)

// Special Registers (CPU-side offsets 0..7, plus OAMDMA at $4014)
const (
	PPUCTRL   = 0
	PPUMASK   = 1
	PPUSTATUS = 2
	OAMADDR   = 3
	OAMDATA   = 4
	PPUSCROLL = 5
	PPUADDR   = 6
	PPUDATA   = 7
)

// PPUCTRL bit flags
const (
	CTRL_NAMETABLE1             = 1
	CTRL_NAMETABLE2             = 1 << 1
	CTRL_VRAM_ADD_INCREMENT     = 1 << 2
	CTRL_SPRITE_PATTERN_ADDR    = 1 << 3
	CTRL_BACKROUND_PATTERN_ADDR = 1 << 4
	CTRL_SPRITE_SIZE            = 1 << 5
	CTRL_MASTER_SLAVE_SELECT    = 1 << 6
	CTRL_GENERATE_NMI           = 1 << 7
)

const (
	CTRL_INCR_ACROSS = 1
	CTRL_INCR_DOWN   = 32
)

// PPUMASK bit flags
const (
	MASK_GREYSCALE         = 1
	MASK_SHOW_BG_LEFT      = 1 << 1
	MASK_SHOW_SPRITES_LEFT = 1 << 2
	MASK_SHOW_BACKGROUND   = 1 << 3
	MASK_SHOW_SPRITES      = 1 << 4
	MASK_EMPHASIZE_RED     = 1 << 5
	MASK_EMPHASIZE_GREEN   = 1 << 6
	MASK_EMPHASIZE_BLUE    = 1 << 7
)

// PPUSTATUS bit flags
const (
	STATUS_SPRITE_OVERFLOW = 1 << 5
	STATUS_SPRITE_0_HIT    = 1 << 6
	STATUS_VERTICAL_BLANK  = 1 << 7
)

// Mirroring mode, as reported by the cartridge mapper.
const (
	MIRROR_HORIZONTAL = iota
	MIRROR_VERTICAL
	MIRROR_FOUR_SCREEN
)

const (
	NAMETABLE_0    = 0x2000
	NAMETABLE_END  = 0x3EFF
	PALETTE_RAM    = 0x3F00
	SCANLINES      = 262
	VISIBLE_LINES  = 240
	VBLANK_LINE    = 241
	PRERENDER_LINE = -1

	readyCycles = 29658
)

// Bus is the cartridge-side interface the PPU needs: pattern table
// reads for background and sprite tiles.
type Bus interface {
	ChrRead(addr uint16) uint8
}

// Sink receives composited pixels. The three layers mirror real NES
// priority: bbg (behind-background sprites) first, then bg, then fg
// (front sprites), each later layer painting over the former.
type Sink interface {
	PlotBBG(x, y int, c color.RGBA)
	PlotBG(x, y int, c color.RGBA)
	PlotFG(x, y int, c color.RGBA)
	FlipDisplay()
}

type PPU struct {
	bus  Bus
	sink Sink

	vram       [VRAM_SIZE]uint8
	paletteRAM [PALETTE_SIZE]uint8
	oamData    [OAM_SIZE]uint8
	oamAddr    uint8

	ctrl, mask, status uint8

	scrollX, scrollY uint8
	scrollReceivedX  bool

	addr                 uint16
	addrHigh             uint8
	addrReceivedHighByte bool

	readBuffer uint8
	firstRead  bool
	ppuLatch   uint8
	mirrorMode uint8
	mirrorXor  uint16

	cpuCycles int64
	scanline  int

	spriteZeroHit bool
}

func New(b Bus, sink Sink, mirrorMode uint8) *PPU {
	p := &PPU{
		bus:        b,
		sink:       sink,
		scanline:   PRERENDER_LINE,
		firstRead:  true,
		mirrorMode: mirrorMode,
	}
	p.mirrorXor = mirrorXorFor(mirrorMode)
	return p
}

func mirrorXorFor(mode uint8) uint16 {
	if mode == MIRROR_VERTICAL {
		return 0x800
	}
	return 0x400
}

// AddCPUCycles tells the PPU how many CPU cycles have elapsed; once
// roughly 29,658 have passed, PPUCTRL/PPUMASK writes take effect. This
// models the ~1-frame warm-up real hardware requires after reset.
func (p *PPU) AddCPUCycles(n int) {
	p.cpuCycles += int64(n)
}

func (p *PPU) ready() bool {
	return p.cpuCycles >= readyCycles
}

// ReadReg services a CPU read of $2000-$2007.
func (p *PPU) ReadReg(r uint16) uint8 {
	var val uint8
	switch r {
	case PPUSTATUS:
		val = p.status
		p.status &^= STATUS_VERTICAL_BLANK
		p.scrollReceivedX = false
		p.addrReceivedHighByte = false
		p.addrHigh = 0
	case OAMDATA:
		val = p.oamData[p.oamAddr]
	case PPUDATA:
		if p.addr >= PALETTE_RAM {
			// Palette reads are not buffered; the buffer is
			// refilled from the underlying nametable mirror.
			val = p.readVRAM(p.addr)
			p.readBuffer = p.readVRAM(p.addr - 0x1000)
		} else if p.firstRead {
			val = 0
			p.readBuffer = p.readVRAM(p.addr)
			p.firstRead = false
		} else {
			val = p.readBuffer
			p.readBuffer = p.readVRAM(p.addr)
		}
		p.incrementAddr()
	default:
		val = p.ppuLatch
	}

	p.ppuLatch = val
	return val
}

// WriteReg services a CPU write to $2000-$2007.
func (p *PPU) WriteReg(r uint16, v uint8) {
	p.ppuLatch = v

	switch r {
	case PPUCTRL:
		if p.ready() {
			p.ctrl = v
		}
	case PPUMASK:
		if p.ready() {
			p.mask = v
		}
	case OAMADDR:
		p.oamAddr = v
	case OAMDATA:
		p.oamData[p.oamAddr] = v
		p.oamAddr++
	case PPUSCROLL:
		if !p.scrollReceivedX {
			p.scrollX = v
			p.scrollReceivedX = true
		} else {
			p.scrollY = v
			p.scrollReceivedX = false
		}
	case PPUADDR:
		if !p.addrReceivedHighByte {
			p.addrHigh = v & 0x3F
			p.addrReceivedHighByte = true
			p.firstRead = true
		} else {
			p.addr = (uint16(p.addrHigh) << 8) | uint16(v)
			p.addrReceivedHighByte = false
		}
	case PPUDATA:
		p.writeVRAM(p.addr, v)
		p.incrementAddr()
	}
}

// WriteOAMDMA copies 256 bytes from CPU page memory into OAM, as
// triggered by a $4014 write.
func (p *PPU) WriteOAMDMA(page [256]uint8) {
	for i := 0; i < 256; i++ {
		p.oamData[p.oamAddr] = page[i]
		p.oamAddr++
	}
}

func (p *PPU) incrementAddr() {
	step := uint16(CTRL_INCR_ACROSS)
	if p.ctrl&CTRL_VRAM_ADD_INCREMENT != 0 {
		step = CTRL_INCR_DOWN
	}
	p.addr += step
}

// normalize folds mirrored VRAM addresses down to the canonical
// range: $3000-$3EFF aliases $2000-$2EFF; $3F00-$3FFF aliases
// $3F00-$3F1F, with $3F10/14/18/1C further aliasing $3F00/04/08/0C.
func normalize(addr uint16) uint16 {
	a := addr & 0x3FFF
	if a >= 0x3000 && a < 0x3F00 {
		a -= 0x1000
	}
	if a >= 0x3F00 {
		a = PALETTE_RAM + (a-PALETTE_RAM)%0x20
		switch a {
		case 0x3F10, 0x3F14, 0x3F18, 0x3F1C:
			a -= 0x10
		}
	}
	return a
}

func (p *PPU) nametableIndex(addr uint16) uint16 {
	a := addr - NAMETABLE_0
	switch p.mirrorMode {
	case MIRROR_VERTICAL:
		return a % 0x800
	default: // horizontal (four-screen unsupported, falls back to horizontal)
		if a >= 0x800 {
			return 0x400 + (a-0x800)%0x400
		}
		return a % 0x400
	}
}

func (p *PPU) readVRAM(addr uint16) uint8 {
	a := normalize(addr)
	switch {
	case a < NAMETABLE_0:
		return p.bus.ChrRead(a)
	case a < PALETTE_RAM:
		return p.vram[p.nametableIndex(a)]
	default:
		return p.paletteRAM[a-PALETTE_RAM]
	}
}

func (p *PPU) writeVRAM(addr uint16, val uint8) {
	a := normalize(addr)
	switch {
	case a < NAMETABLE_0:
		// pattern tables live on the cartridge; CHR-RAM carts are
		// not addressed through this port.
		return
	case a < PALETTE_RAM:
		p.vram[p.nametableIndex(a)] = val
	default:
		p.paletteRAM[a-PALETTE_RAM] = val
	}

	if a < NAMETABLE_0 || a > NAMETABLE_END {
		m := a ^ p.mirrorXor
		if m >= NAMETABLE_0 && m < PALETTE_RAM {
			p.vram[p.nametableIndex(m)] = val
		}
	}
}

// Step advances the renderer by one scanline and reports whether the
// CPU's NMI line should be pulsed (edge-triggered: true exactly once
// per VBlank when NMI generation is enabled).
func (p *PPU) Step() bool {
	nmi := false

	switch {
	case p.scanline == PRERENDER_LINE:
		p.status &^= STATUS_SPRITE_0_HIT
		p.status &^= STATUS_SPRITE_OVERFLOW
		p.spriteZeroHit = false
	case p.scanline >= 0 && p.scanline < VISIBLE_LINES:
		if p.mask&MASK_SHOW_BACKGROUND != 0 {
			p.renderBackgroundScanline()
		}
		if p.mask&MASK_SHOW_SPRITES != 0 {
			p.renderSpriteScanline()
		}
	case p.scanline == VBLANK_LINE:
		p.status |= STATUS_VERTICAL_BLANK
		if p.ctrl&CTRL_GENERATE_NMI != 0 {
			nmi = true
		}
	}

	p.scanline++
	if p.scanline >= SCANLINES-1 {
		p.scanline = PRERENDER_LINE
		p.status &^= STATUS_VERTICAL_BLANK
		p.sink.FlipDisplay()
	}

	return nmi
}

var lHAdditionTable [256][256][8]uint8

func init() {
	for l := 0; l < 256; l++ {
		for h := 0; h < 256; h++ {
			for x := 0; x < 8; x++ {
				lHAdditionTable[l][h][x] = ((uint8(h)>>(7-x))&1)<<1 | ((uint8(l) >> (7 - x)) & 1)
			}
		}
	}
}

func (p *PPU) bgPatternBase() uint16 {
	if p.ctrl&CTRL_BACKROUND_PATTERN_ADDR != 0 {
		return 0x1000
	}
	return 0
}

func (p *PPU) nametableBase() uint16 {
	return NAMETABLE_0 + uint16(p.ctrl&0x03)*0x400
}

// renderBackgroundScanline draws the 32 background tile columns for
// the current scanline into the bg pixel buffer, along with their
// horizontally-mirrored copy so horizontal scrolling can pan across
// the seam without extra bookkeeping at the sink.
func (p *PPU) renderBackgroundScanline() {
	y := p.scanline
	row := y & 7
	tileRow := y / 8

	startCol := 0
	if p.mask&MASK_SHOW_BG_LEFT == 0 {
		startCol = 1
	}

	for mirror := 0; mirror < 2; mirror++ {
		nt := p.nametableBase()
		if mirror == 1 {
			nt = p.nametableBase() ^ 0x400
		}

		for col := startCol; col < 32; col++ {
			tileIdx := p.readVRAM(nt + uint16(tileRow)*32 + uint16(col))
			patAddr := p.bgPatternBase() + uint16(tileIdx)*16 + uint16(row)
			lo := p.readVRAM(patAddr)
			hi := p.readVRAM(patAddr + 8)

			attrAddr := nt + 0x3C0 + uint16(tileRow/4)*8 + uint16(col/4)
			attr := p.readVRAM(attrAddr)
			shift := uint(0)
			if col%4 >= 2 {
				shift += 2
			}
			if tileRow%4 >= 2 {
				shift += 4
			}
			paletteIdx := (attr >> shift) & 0x03

			for x := 0; x < 8; x++ {
				ci := lHAdditionTable[lo][hi][x]
				if ci == 0 {
					continue
				}
				paletteAddr := PALETTE_RAM + uint16(paletteIdx)<<2 + uint16(ci)
				c := SYSTEM_PALETTE[p.readVRAM(paletteAddr)&0x3F]

				px := col*8 + x - int(p.scrollX)
				if mirror == 1 {
					px += NES_RES_WIDTH
				}
				p.sink.PlotBG(px, y, c)
			}
		}
	}
}

func (p *PPU) spriteHeight() int {
	if p.ctrl&CTRL_SPRITE_SIZE != 0 {
		return 16
	}
	return 8
}

// renderSpriteScanline evaluates all 64 OAM entries against the
// current scanline, drawing up to 8 into the fg/bbg buffers and
// flagging sprite overflow and sprite-0 hit.
func (p *PPU) renderSpriteScanline() {
	y := p.scanline
	height := p.spriteHeight()
	onLine := 0

	for i := 0; i < 64; i++ {
		base := i * 4
		o := OAMFromBytes(p.oamData[base : base+4])
		spriteY := int(o.y) + 1
		if y < spriteY || y >= spriteY+height {
			continue
		}

		onLine++
		if onLine > 8 {
			p.status |= STATUS_SPRITE_OVERFLOW
			continue
		}

		row := y - spriteY
		if o.flipV {
			row = height - 1 - row
		}

		tileId := o.tileId
		patBase := uint16(0)
		if p.ctrl&CTRL_SPRITE_PATTERN_ADDR != 0 {
			patBase = 0x1000
		}
		if height == 16 {
			patBase = uint16(tileId&1) * 0x1000
			tileId &^= 1
			if row >= 8 {
				tileId++
				row -= 8
			}
		}

		patAddr := patBase + uint16(tileId)*16 + uint16(row)
		lo := p.bus.ChrRead(patAddr)
		hi := p.bus.ChrRead(patAddr + 8)

		for x := 0; x < 8; x++ {
			sx := x
			if o.flipH {
				sx = 7 - x
			}
			ci := lHAdditionTable[lo][hi][sx]
			if ci == 0 {
				continue
			}

			paletteAddr := PALETTE_RAM + 0x10 + uint16(o.palette)<<2 + uint16(ci)
			c := SYSTEM_PALETTE[p.readVRAM(paletteAddr)&0x3F]

			px := int(o.x) + x

			if i == 0 && p.mask&MASK_SHOW_BACKGROUND != 0 && !p.spriteZeroHit {
				p.status |= STATUS_SPRITE_0_HIT
				p.spriteZeroHit = true
			}

			if o.renderP == BACK {
				p.sink.PlotBBG(px, y, c)
			} else {
				p.sink.PlotFG(px, y, c)
			}
		}
	}
}

func newColor(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

var SYSTEM_PALETTE [64]color.RGBA = [64]color.RGBA{
	newColor(0x80, 0x80, 0x80), newColor(0x00, 0x3D, 0xA6), newColor(0x00, 0x12, 0xB0), newColor(0x44, 0x00, 0x96), newColor(0xA1, 0x00, 0x5E),
	newColor(0xC7, 0x00, 0x28), newColor(0xBA, 0x06, 0x00), newColor(0x8C, 0x17, 0x00), newColor(0x5C, 0x2F, 0x00), newColor(0x10, 0x45, 0x00),
	newColor(0x05, 0x4A, 0x00), newColor(0x00, 0x47, 0x2E), newColor(0x00, 0x41, 0x66), newColor(0x00, 0x00, 0x00), newColor(0x05, 0x05, 0x05),
	newColor(0x05, 0x05, 0x05), newColor(0xC7, 0xC7, 0xC7), newColor(0x00, 0x77, 0xFF), newColor(0x21, 0x55, 0xFF), newColor(0x82, 0x37, 0xFA),
	newColor(0xEB, 0x2F, 0xB5), newColor(0xFF, 0x29, 0x50), newColor(0xFF, 0x22, 0x00), newColor(0xD6, 0x32, 0x00), newColor(0xC4, 0x62, 0x00),
	newColor(0x35, 0x80, 0x00), newColor(0x05, 0x8F, 0x00), newColor(0x00, 0x8A, 0x55), newColor(0x00, 0x99, 0xCC), newColor(0x21, 0x21, 0x21),
	newColor(0x09, 0x09, 0x09), newColor(0x09, 0x09, 0x09), newColor(0xFF, 0xFF, 0xFF), newColor(0x0F, 0xD7, 0xFF), newColor(0x69, 0xA2, 0xFF),
	newColor(0xD4, 0x80, 0xFF), newColor(0xFF, 0x45, 0xF3), newColor(0xFF, 0x61, 0x8B), newColor(0xFF, 0x88, 0x33), newColor(0xFF, 0x9C, 0x12),
	newColor(0xFA, 0xBC, 0x20), newColor(0x9F, 0xE3, 0x0E), newColor(0x2B, 0xF0, 0x35), newColor(0x0C, 0xF0, 0xA4), newColor(0x05, 0xFB, 0xFF),
	newColor(0x5E, 0x5E, 0x5E), newColor(0x0D, 0x0D, 0x0D), newColor(0x0D, 0x0D, 0x0D), newColor(0xFF, 0xFF, 0xFF), newColor(0xA6, 0xFC, 0xFF),
	newColor(0xB3, 0xEC, 0xFF), newColor(0xDA, 0xAB, 0xEB), newColor(0xFF, 0xA8, 0xF9), newColor(0xFF, 0xAB, 0xB3), newColor(0xFF, 0xD2, 0xB0),
	newColor(0xFF, 0xEF, 0xA6), newColor(0xFF, 0xF7, 0x9C), newColor(0xD7, 0xE8, 0x95), newColor(0xA6, 0xED, 0xAF), newColor(0xA2, 0xF2, 0xDA),
	newColor(0x99, 0xFF, 0xFC), newColor(0xDD, 0xDD, 0xDD), newColor(0x11, 0x11, 0x11), newColor(0x11, 0x11, 0x11),
}
