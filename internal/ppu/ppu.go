// Package ppu implements the NES 2C02 Picture Processing Unit: its
// CPU-visible registers, the background shift-register pipeline, and
// sprite evaluation into a fixed-size secondary OAM.
package ppu

import (
	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/cartridge"
	"github.com/nesforge/gones-core/internal/interrupts"
)

// Cartridge is the subset of cartridge.Cartridge the PPU needs: CHR
// access, current mirroring (MMC1 can change this at runtime), and the
// PPU-address-bus notification mappers like MMC3 use to clock IRQs.
type Cartridge interface {
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	GetMirrorMode() cartridge.MirrorMode
	OnPPUA12(address uint16, renderingEnabled bool)
}

const (
	width  = 256
	height = 240
)

type spriteSlot struct {
	patternLo, patternHi uint8
	attributes           uint8
	x                     uint8
	isSprite0             bool
}

// PPU is the 2C02: register file, internal scroll latches, the
// background shift-register pipeline, and sprite evaluation/rendering.
type PPU struct {
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8

	v, t uint16
	x    uint8
	w    bool

	readBuffer uint8

	// ioBus is the PPU's internal I/O data latch: every register read or
	// write drives these eight bits, and the write-only registers
	// (PPUCTRL/PPUMASK/OAMADDR/PPUSCROLL/PPUADDR) read back whatever was
	// last on the bus instead of a defined value.
	ioBus uint8

	oam [256]uint8

	vram    [0x800]uint8
	palette [32]uint8

	cart Cartridge
	irq  *interrupts.Bus

	scanline int // 0-239 visible, 240 post-render, 241-260 vblank, 261 pre-render
	cycle    int // 0-340
	frame    uint64
	oddFrame bool

	frameBuffer [width * height]uint32

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	nextTileID, nextAttribute, nextPatternLo, nextPatternHi uint8

	bgShiftPatternLo, bgShiftPatternHi uint16
	bgShiftAttrLo, bgShiftAttrHi       uint16

	sprites     [8]spriteSlot
	spriteCount int

	sprite0HitThisFrame bool

	frameComplete func()
}

// New creates a PPU wired to the given cartridge and shared interrupt bus.
func New(cart Cartridge, irq *interrupts.Bus) *PPU {
	return &PPU{cart: cart, irq: irq, scanline: 261}
}

// SetFrameCompleteCallback registers a callback fired once per rendered
// frame, after the frame buffer for that frame is final.
func (p *PPU) SetFrameCompleteCallback(cb func()) {
	p.frameComplete = cb
}

// Reset returns the PPU to its post-power-on register state.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.readBuffer = 0
	p.ioBus = 0
	p.scanline = 261
	p.cycle = 0
	p.oddFrame = false
	p.updateRenderingFlags()
}

// ReadRegister services a CPU read of $2000-$2007 (mirrored every 8 bytes).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address & 7 {
	case 2:
		status := p.ppuStatus
		p.ppuStatus &^= 0x80
		p.w = false
		p.ioBus = status
		return status
	case 4:
		p.ioBus = p.oam[p.oamAddr]
		return p.ioBus
	case 7:
		p.ioBus = p.readPPUData()
		return p.ioBus
	default:
		// PPUCTRL/PPUMASK/OAMADDR/PPUSCROLL/PPUADDR are write-only: a
		// read returns whatever value last drove the PPU's I/O bus.
		return p.ioBus
	}
}

// WriteRegister services a CPU write to $2000-$2007 (mirrored every 8 bytes).
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.ioBus = value
	switch address & 7 {
	case 0:
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | (uint16(value&0x03) << 10)
	case 1:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 3:
		p.oamAddr = value
	case 4:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5:
		p.writeScroll(value)
	case 6:
		p.writeAddr(value)
	case 7:
		p.writeData(value)
	}
}

// WriteOAM writes directly into OAM at the given index without touching
// OAMADDR. The memory map's OAM DMA transfer writes through $2004 instead.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | uint16(value>>3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | (uint16(value&0x07) << 12)
		p.t = (p.t & 0xFC1F) | (uint16(value&0xF8) << 2)
		p.w = false
	}
}

func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x00FF) | (uint16(value&0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

func (p *PPU) readPPUData() uint8 {
	address := p.v & 0x3FFF
	var data uint8
	if address >= 0x3F00 {
		data = p.readVRAM(address)
		p.readBuffer = p.readVRAM(address & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.readVRAM(address)
	}
	p.incrementVRAMAddress()
	return data
}

func (p *PPU) writeData(value uint8) {
	p.writeVRAM(p.v&0x3FFF, value)
	p.incrementVRAMAddress()
}

func (p *PPU) incrementVRAMAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// readVRAM/writeVRAM dispatch the 14-bit PPU address space: pattern
// tables to the cartridge, nametables through mirroring, palette RAM
// with its background-color mirrors.
func (p *PPU) readVRAM(address uint16) uint8 {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		return p.cart.ReadCHR(address)
	case address < 0x3F00:
		return p.vram[p.nametableIndex(address)]
	default:
		return p.palette[paletteIndex(address)]
	}
}

func (p *PPU) writeVRAM(address uint16, value uint8) {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		p.cart.WriteCHR(address, value)
	case address < 0x3F00:
		p.vram[p.nametableIndex(address)] = value
	default:
		p.palette[paletteIndex(address)] = value
	}
}

func paletteIndex(address uint16) uint16 {
	index := (address - 0x3F00) & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	return index
}

func (p *PPU) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	table := (address >> 10) & 3
	offset := address & 0x3FF

	switch p.cart.GetMirrorMode() {
	case cartridge.MirrorVertical:
		if table == 1 || table == 3 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorSingleScreen0:
		return offset
	case cartridge.MirrorSingleScreen1:
		return 0x400 + offset
	case cartridge.MirrorFourScreen:
		return (table%2)*0x400 + offset // degrades to 2KB VRAM: no expansion RAM modeled
	default: // MirrorHorizontal
		if table >= 2 {
			return 0x400 + offset
		}
		return offset
	}
}

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = p.ppuMask&0x08 != 0
	p.spritesEnabled = p.ppuMask&0x10 != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

// Step advances the PPU by one dot (one PPU cycle, 1/3 of a CPU cycle).
func (p *PPU) Step() {
	preRender := p.scanline == 261
	visible := p.scanline < 240

	if (visible || preRender) && p.cycle >= 1 && p.cycle <= 337 {
		p.backgroundPipeline()
	}

	if visible && p.cycle >= 1 && p.cycle <= 256 {
		p.renderPixel()
	}

	if preRender && p.cycle == 1 {
		p.ppuStatus = 0
		p.sprite0HitThisFrame = false
	}

	if visible && p.cycle == 257 {
		p.evaluateSprites(p.scanline + 1)
	}
	if preRender && p.cycle == 257 {
		p.evaluateSprites(0)
	}

	if (visible || preRender) && p.cycle == 257 && p.renderingEnabled {
		p.copyX()
	}
	if preRender && p.cycle >= 280 && p.cycle <= 304 && p.renderingEnabled {
		p.copyY()
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		if p.ppuCtrl&0x80 != 0 {
			p.irq.RaiseNMI()
		}
		if p.frameComplete != nil {
			p.frameComplete()
		}
	}

	p.advanceDot()
}

func (p *PPU) advanceDot() {
	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 261 {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
			if p.oddFrame && p.renderingEnabled {
				// Odd-frame skip: the pre-render line's last dot is
				// cut short on NTSC when rendering is enabled.
				p.cycle = 1
			}
		}
	}
}

// backgroundPipeline performs the nametable/attribute/pattern fetches
// and shift-register reload/advance every dot from 1-337, per the
// standard 8-dot fetch cadence.
func (p *PPU) backgroundPipeline() {
	switch p.cycle % 8 {
	case 1:
		p.reloadShiftRegisters()
		p.nextTileID = p.readVRAM(0x2000 | (p.v & 0x0FFF))
	case 3:
		address := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		attr := p.readVRAM(address)
		shift := ((p.v >> 4) & 4) | (p.v & 2)
		p.nextAttribute = (attr >> shift) & 0x03
	case 5:
		base := p.patternTableBase(p.ppuCtrl & 0x10)
		fineY := (p.v >> 12) & 0x07
		addr := base + uint16(p.nextTileID)*16 + fineY
		p.nextPatternLo = p.readVRAM(addr)
		p.notifyA12(addr)
	case 7:
		base := p.patternTableBase(p.ppuCtrl & 0x10)
		fineY := (p.v >> 12) & 0x07
		addr := base + uint16(p.nextTileID)*16 + fineY + 8
		p.nextPatternHi = p.readVRAM(addr)
		p.notifyA12(addr)
	case 0:
		if p.renderingEnabled {
			p.incrementX()
		}
		if p.cycle == 256 {
			if p.renderingEnabled {
				p.incrementY()
			}
		}
	}
	p.shiftRegisters()
}

func (p *PPU) patternTableBase(ctrlBit uint8) uint16 {
	if ctrlBit != 0 {
		return 0x1000
	}
	return 0x0000
}

func (p *PPU) reloadShiftRegisters() {
	p.bgShiftPatternLo = (p.bgShiftPatternLo & 0xFF00) | uint16(p.nextPatternLo)
	p.bgShiftPatternHi = (p.bgShiftPatternHi & 0xFF00) | uint16(p.nextPatternHi)
	var lo, hi uint16
	if p.nextAttribute&1 != 0 {
		lo = 0xFF
	}
	if p.nextAttribute&2 != 0 {
		hi = 0xFF
	}
	p.bgShiftAttrLo = (p.bgShiftAttrLo & 0xFF00) | lo
	p.bgShiftAttrHi = (p.bgShiftAttrHi & 0xFF00) | hi
}

func (p *PPU) shiftRegisters() {
	if !p.renderingEnabled {
		return
	}
	p.bgShiftPatternLo <<= 1
	p.bgShiftPatternHi <<= 1
	p.bgShiftAttrLo <<= 1
	p.bgShiftAttrHi <<= 1
}

func (p *PPU) incrementX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyX() {
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

func (p *PPU) copyY() {
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

// renderPixel produces the final composited pixel for (cycle-1, scanline).
func (p *PPU) renderPixel() {
	px := p.cycle - 1
	py := p.scanline

	bgColor, bgOpaque := p.backgroundPixel()
	spColor, spOpaque, spPriority, spIsSprite0 := p.spritePixel(px)

	if spIsSprite0 && bgOpaque && spOpaque && !p.sprite0HitThisFrame && px != 255 &&
		p.backgroundEnabled && p.spritesEnabled {
		if px >= 8 || (p.ppuMask&0x06 == 0x06) {
			p.sprite0HitThisFrame = true
			p.ppuStatus |= 0x40
			glog.V(2).Infof("ppu: sprite 0 hit at (%d,%d) frame %d", px, py, p.frame)
		}
	}

	var final uint32
	switch {
	case !bgOpaque && !spOpaque:
		final = NESColorToRGB(p.palette[0] & 0x3F)
	case !bgOpaque:
		final = NESColorToRGB(spColor & 0x3F)
	case !spOpaque:
		final = NESColorToRGB(bgColor & 0x3F)
	case spPriority:
		final = NESColorToRGB(bgColor & 0x3F)
	default:
		final = NESColorToRGB(spColor & 0x3F)
	}

	p.frameBuffer[py*width+px] = final
}

func (p *PPU) backgroundPixel() (color uint8, opaque bool) {
	if !p.backgroundEnabled {
		return 0, false
	}
	bit := uint(15 - p.x)
	lo := (p.bgShiftPatternLo >> bit) & 1
	hi := (p.bgShiftPatternHi >> bit) & 1
	palLo := (p.bgShiftAttrLo >> bit) & 1
	palHi := (p.bgShiftAttrHi >> bit) & 1

	pixel := uint8(hi<<1 | lo)
	if pixel == 0 {
		return p.palette[0] & 0x3F, false
	}
	palette := uint8(palHi<<1 | palLo)
	return p.palette[uint16(palette)*4+uint16(pixel)] & 0x3F, true
}

func (p *PPU) spritePixel(px int) (color uint8, opaque bool, priority bool, isSprite0 bool) {
	if !p.spritesEnabled {
		return 0, false, false, false
	}
	for i := 0; i < p.spriteCount; i++ {
		s := &p.sprites[i]
		offset := int(px) - int(s.x)
		if offset < 0 || offset > 7 {
			continue
		}
		flipX := s.attributes&0x40 != 0
		bitPos := offset
		if !flipX {
			bitPos = 7 - offset
		}
		lo := (s.patternLo >> uint(bitPos)) & 1
		hi := (s.patternHi >> uint(bitPos)) & 1
		pixel := hi<<1 | lo
		if pixel == 0 {
			continue
		}
		palette := s.attributes & 0x03
		return p.palette[0x10+uint16(palette)*4+uint16(pixel)] & 0x3F, true, s.attributes&0x20 != 0, s.isSprite0
	}
	return 0, false, false, false
}

// evaluateSprites builds the fixed 8-entry secondary OAM and fetches
// pattern data for sprites visible on targetScanline. The overflow flag
// is set when a ninth in-range sprite is found; the hardware's buggy
// overflow scan (its diagonal OAM address advance) is not reproduced.
func (p *PPU) evaluateSprites(targetScanline int) {
	height := 8
	if p.ppuCtrl&0x20 != 0 {
		height = 16
	}

	p.spriteCount = 0

	for i := 0; i < 64; i++ {
		base := i * 4
		y := int(p.oam[base])
		if targetScanline < y+1 || targetScanline >= y+1+height {
			continue
		}
		if p.spriteCount >= 8 {
			p.ppuStatus |= 0x20
			glog.V(2).Infof("ppu: sprite overflow on scanline %d", targetScanline)
			break
		}
		tile := p.oam[base+1]
		attr := p.oam[base+2]
		x := p.oam[base+3]
		row := targetScanline - (y + 1)
		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		var patternAddr uint16
		if height == 16 {
			table := uint16(0x0000)
			if tile&1 != 0 {
				table = 0x1000
			}
			tileIndex := uint16(tile &^ 1)
			if row >= 8 {
				tileIndex++
				row -= 8
			}
			patternAddr = table + tileIndex*16 + uint16(row)
		} else {
			table := p.patternTableBase(p.ppuCtrl & 0x08)
			patternAddr = table + uint16(tile)*16 + uint16(row)
		}

		lo := p.readVRAM(patternAddr)
		hi := p.readVRAM(patternAddr + 8)
		p.notifyA12(patternAddr)

		p.sprites[p.spriteCount] = spriteSlot{
			patternLo: lo,
			patternHi: hi,
			attributes: attr,
			x:          x,
			isSprite0:  i == 0,
		}
		p.spriteCount++
	}
}

// GetFrameBuffer returns a copy of the current frame buffer.
func (p *PPU) GetFrameBuffer() [width * height]uint32 {
	return p.frameBuffer
}

// GetFrameCount returns the number of frames completed so far.
func (p *PPU) GetFrameCount() uint64 { return p.frame }

// GetScanline returns the current scanline (0-261, 261 is pre-render).
func (p *PPU) GetScanline() int { return p.scanline }

// GetCycle returns the current dot within the scanline (0-340).
func (p *PPU) GetCycle() int { return p.cycle }

// IsRenderingEnabled reports whether background or sprite rendering is on.
func (p *PPU) IsRenderingEnabled() bool { return p.renderingEnabled }

// notifyA12 forwards the PPU address bus's current value to the
// cartridge mapper, which MMC3 uses to clock its scanline IRQ counter.
func (p *PPU) notifyA12(address uint16) {
	p.cart.OnPPUA12(address, p.renderingEnabled)
}
