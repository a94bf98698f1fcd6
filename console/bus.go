// Package console wires the CPU, PPU, mapper, compositor and input
// together into a runnable machine and drives the cooperative
// scheduler that keeps them in lock-step.
package console

import (
	"fmt"
	"math"

	"github.com/bdwalton/nescore/compositor"
	"github.com/bdwalton/nescore/input"
	"github.com/bdwalton/nescore/mappers"
	"github.com/bdwalton/nescore/mos6502"
	"github.com/bdwalton/nescore/ppu"
	"github.com/hajimehoshi/ebiten/v2"
)

const (
	MAX_ADDRESS          = math.MaxUint16
	MAX_NES_BASE_RAM     = 0x1FFF
	MAX_PPU_REG_MIRRORED = 0x3FFF
	MAX_IO_REG           = 0x4020
	MAX_SRAM             = 0x8000
	SRAM_SIZE            = 0x2000 // $6000-$7FFF cartridge save RAM window

	OAMDMA_REG  = 0x4014
	CONTROLLER1 = 0x4016
	CONTROLLER2 = 0x4017

	// CPU_PER_SCANLINE approximates the real NES's ~113.67 CPU
	// cycles per scanline; the scheduler runs this many CPU cycles,
	// then asks the PPU to advance one scanline.
	CPU_PER_SCANLINE = 113
)

// chrBus adapts a cartridge mapper to the PPU's narrower Bus
// interface, so the PPU never needs to know about mappers directly.
type chrBus struct {
	mapper mappers.Mapper
}

func (c chrBus) ChrRead(addr uint16) uint8 { return c.mapper.ChrRead(addr) }

// Machine is the wired-together NES: CPU, PPU, mapper, compositor and
// controller, implementing ebiten.Game so the host loop can drive it.
type Machine struct {
	cpu    *mos6502.CPU
	ppu    *ppu.PPU
	mapper mappers.Mapper
	sram   [SRAM_SIZE]uint8 // cartridge save RAM at $6000-$7FFF

	keyboard    *input.KeyboardSource
	controller1 *input.Controller

	compositor *compositor.Compositor

	cycles uint64
}

// New builds a Machine around the given mapper (already Init'd with
// its ROM) and framebuffer sink.
func New(m mappers.Mapper, sink compositor.FramebufferSink) *Machine {
	mach := &Machine{
		mapper:   m,
		keyboard: input.NewKeyboardSource(),
	}
	mach.controller1 = input.NewController(mach.keyboard)
	mach.compositor = compositor.New(sink)
	mach.cpu = mos6502.New(mach)
	mach.ppu = ppu.New(chrBus{mapper: m}, mach.compositor, m.MirroringMode())

	return mach
}

// PushScancode forwards a host key event to the keyboard source.
func (m *Machine) PushScancode(s input.Scancode) {
	m.keyboard.PushScancode(s)
}

// Reset pulses the CPU's reset line, as happens implicitly on
// successful ROM load.
func (m *Machine) Reset() {
	m.cpu.Reset()
}

// Read services the CPU's view of the address bus.
// https://www.nesdev.org/wiki/CPU_memory_map
func (m *Machine) Read(addr uint16) uint8 {
	switch {
	case addr <= MAX_NES_BASE_RAM:
		return m.mapper.ReadBaseRAM(addr & 0x07FF)
	case addr <= MAX_PPU_REG_MIRRORED:
		return m.ppu.ReadReg(addr & 0x0007)
	case addr == CONTROLLER1:
		return m.controller1.Read()
	case addr == CONTROLLER2:
		return 0 // second controller not implemented
	case addr < MAX_IO_REG:
		return 0 // APU and remaining I/O registers: silent
	case addr < MAX_SRAM:
		return m.sram[addr-0x6000]
	case addr <= MAX_ADDRESS:
		return m.mapper.PrgRead(addr)
	}
	panic("unreachable address in Read")
}

// Write services the CPU's view of the address bus.
func (m *Machine) Write(addr uint16, val uint8) {
	switch {
	case addr <= MAX_NES_BASE_RAM:
		m.mapper.WriteBaseRAM(addr&0x07FF, val)
	case addr <= MAX_PPU_REG_MIRRORED:
		m.ppu.WriteReg(addr&0x0007, val)
	case addr == OAMDMA_REG:
		m.doOAMDMA(val)
	case addr == CONTROLLER1:
		m.controller1.Write(val)
	case addr < MAX_IO_REG:
		// APU registers: out of scope.
	case addr < MAX_SRAM:
		m.sram[addr-0x6000] = val
	case addr <= MAX_ADDRESS:
		m.mapper.PrgWrite(addr, val)
	}
}

func (m *Machine) doOAMDMA(page uint8) {
	var buf [256]uint8
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		buf[i] = m.Read(base + uint16(i))
	}
	m.ppu.WriteOAMDMA(buf)
	m.cpu.AddDMACycles(m.cycles%2 == 1)
}

// Step runs exactly one NES frame: CPU_PER_SCANLINE CPU cycles
// followed by one PPU scanline, repeated for all 262 scanlines.
func (m *Machine) Step() {
	for i := 0; i < ppu.SCANLINES; i++ {
		for c := 0; c < CPU_PER_SCANLINE; c++ {
			m.cpu.Step()
			m.cycles++
		}
		m.ppu.AddCPUCycles(CPU_PER_SCANLINE)
		if m.ppu.Step() {
			m.cpu.NMI()
		}
	}
}

// Layout implements ebiten.Game; the NES resolution is fixed, so
// ebiten scales the window rather than us reflowing anything.
func (m *Machine) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ppu.NES_RES_WIDTH * 2, ppu.NES_RES_HEIGHT * 2
}

// Update implements ebiten.Game, advancing exactly one NES frame per
// host frame.
func (m *Machine) Update() error {
	m.pollKeys()
	m.Step()
	return nil
}

// Draw implements ebiten.Game. The actual pixels are pushed by the
// compositor's FlipDisplay via the FramebufferSink set at New; Draw
// itself is a no-op hook required by the interface.
func (m *Machine) Draw(screen *ebiten.Image) {}

var keyScancodes = map[ebiten.Key]input.Scancode{
	ebiten.KeyW: input.ScanW,
	ebiten.KeyA: input.ScanA,
	ebiten.KeyS: input.ScanS,
	ebiten.KeyD: input.ScanD,
	ebiten.KeyI: input.ScanI,
	ebiten.KeyJ: input.ScanJ,
	ebiten.KeyK: input.ScanK,
	ebiten.KeyU: input.ScanU,
}

func (m *Machine) pollKeys() {
	for key, sc := range keyScancodes {
		if ebiten.IsKeyPressed(key) {
			m.PushScancode(sc)
		}
	}
}

func (m *Machine) String() string {
	return fmt.Sprintf("Machine{cycles=%d, mapper=%s}", m.cycles, m.mapper.Name())
}
