// Package cartridge implements ROM loading and the cartridge/mapper
// abstraction: PRG/CHR storage, nametable mirroring, and the bank
// switching and IRQ behavior specific to each supported mapper.
package cartridge

import (
	"os"

	"github.com/nesforge/gones-core/internal/nerr"
)

// Cartridge owns the ROM/RAM images read from a cartridge file and
// delegates addressing to the mapper its header selected.
type Cartridge struct {
	prgROM []uint8
	chrROM []uint8

	mapperID uint16
	mapper   Mapper

	mirror MirrorMode

	hasBattery bool
	sram       []uint8

	hasCHRRAM bool
}

// MirrorMode is the nametable mirroring mode in effect. Most mappers
// fix this from the header; MMC1 can switch it at runtime.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// Mapper is the contract every cartridge bank-switching scheme
// implements. NametableMirror lets mappers like MMC1 override the
// header's static mirroring; OnPPUA12/IRQPending/AcknowledgeIRQ exist
// for mappers (MMC3) that generate interrupts from PPU address bus
// activity rather than CPU cycles.
type Mapper interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	NametableMirror() MirrorMode
	OnPPUA12(address uint16, renderingEnabled bool)
	IRQPending() bool
	AcknowledgeIRQ()
}

// LoadFromFile opens and parses an iNES/NES 2.0 ROM image.
func LoadFromFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return LoadFromReader(file)
}

func (c *Cartridge) ReadPRG(address uint16) uint8          { return c.mapper.ReadPRG(address) }
func (c *Cartridge) WritePRG(address uint16, value uint8)   { c.mapper.WritePRG(address, value) }
func (c *Cartridge) ReadCHR(address uint16) uint8           { return c.mapper.ReadCHR(address) }
func (c *Cartridge) WriteCHR(address uint16, value uint8)   { c.mapper.WriteCHR(address, value) }
func (c *Cartridge) OnPPUA12(addr uint16, rendering bool)   { c.mapper.OnPPUA12(addr, rendering) }
func (c *Cartridge) IRQPending() bool                       { return c.mapper.IRQPending() }
func (c *Cartridge) AcknowledgeIRQ()                        { c.mapper.AcknowledgeIRQ() }

// cycleAwareMapper is implemented by mappers (MMC1) whose register
// writes depend on the CPU cycle they land on.
type cycleAwareMapper interface {
	SetCurrentCycle(cycle uint64)
}

// SetCurrentCycle reports the CPU's running cycle count to the mapper,
// if it cares. Most mappers don't; MMC1 uses this to ignore the second
// of two writes landing on the same CPU cycle.
func (c *Cartridge) SetCurrentCycle(cycle uint64) {
	if m, ok := c.mapper.(cycleAwareMapper); ok {
		m.SetCurrentCycle(cycle)
	}
}

// GetMirrorMode returns the cartridge's current nametable mirroring,
// deferring to the mapper since MMC1 changes this at runtime.
func (c *Cartridge) GetMirrorMode() MirrorMode {
	return c.mapper.NametableMirror()
}

// SaveRAM returns a copy of battery-backed PRG-RAM, or nil if the
// cartridge has no battery.
func (c *Cartridge) SaveRAM() []byte {
	if !c.hasBattery {
		return nil
	}
	out := make([]byte, len(c.sram))
	copy(out, c.sram)
	return out
}

// LoadRAM restores a previously saved battery-backed PRG-RAM blob.
func (c *Cartridge) LoadRAM(data []byte) {
	if !c.hasBattery {
		return
	}
	copy(c.sram, data)
}

func createMapper(id uint16, cart *Cartridge) (Mapper, error) {
	switch id {
	case 0:
		return newMapper0(cart), nil
	case 1:
		return newMapper1(cart), nil
	case 2:
		return newMapper2(cart), nil
	case 4:
		return newMapper4(cart), nil
	default:
		return nil, nerr.NewUnsupportedMapper(int(id))
	}
}
