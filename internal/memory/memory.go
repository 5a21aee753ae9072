// Package memory implements the NES CPU memory map: internal RAM,
// PPU/APU/controller register windows, and the cartridge's PRG space.
package memory

import (
	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/interrupts"
)

// Memory is the CPU's view of the NES address space.
type Memory struct {
	ram [0x800]uint8

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface
	irq          *interrupts.Bus

	cpuCycleParity func() bool
	cpuCycles      func() uint64

	openBusValue uint8
}

// PPUInterface defines the interface for PPU register access through
// the $2000-$3FFF mirrored window.
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access.
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface defines the interface for controller port access.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface defines the interface the cartridge's mapper
// exposes to the CPU bus.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	SetCurrentCycle(cycle uint64)
}

// New creates a Memory instance wired to the PPU, APU, cartridge, and
// shared interrupt bus. RAM starts zeroed; real hardware's semi-random
// power-up pattern is not reproduced since no program may rely on it.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface, irq *interrupts.Bus) *Memory {
	return &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
		irq:          irq,
	}
}

// SetInputSystem attaches the controller port handler.
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetCPUCycleParitySource lets the system runner report whether the
// CPU's current cycle count is odd, which the OAM DMA transfer uses to
// decide between a 513- and 514-cycle stall.
func (m *Memory) SetCPUCycleParitySource(parity func() bool) {
	m.cpuCycleParity = parity
}

// SetCPUCycleSource lets the system runner report the CPU's running
// cycle count, which mappers (MMC1) use to detect writes landing on
// consecutive CPU cycles.
func (m *Memory) SetCPUCycleSource(cycles func() uint64) {
	m.cpuCycles = cycles
}

// Read reads a byte from the given CPU address.
func (m *Memory) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch {
		case address == 0x4015:
			value = m.apuRegisters.ReadStatus()
		case address == 0x4016 || address == 0x4017:
			if m.inputSystem != nil {
				value = m.inputSystem.Read(address)
			}
		default:
			value = m.openBusValue
		}

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}

	case address < 0x8000:
		value = m.openBusValue

	default:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}
	}

	m.openBusValue = value
	return value
}

// Write writes a byte to the given CPU address.
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			m.performOAMDMA(value)
		case address == 0x4016:
			if m.inputSystem != nil {
				m.inputSystem.Write(address, value)
			}
		case address >= 0x4000 && address <= 0x4013:
			m.apuRegisters.WriteRegister(address, value)
		case address == 0x4015:
			m.apuRegisters.WriteRegister(address, value)
		case address == 0x4017:
			m.apuRegisters.WriteRegister(address, value)
		}
		// $4018-$401F (APU/IO test mode) are ignored.

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			m.stampCycle()
			m.cartridge.WritePRG(address, value)
		}

	case address < 0x8000:
		// $4020-$5FFF cartridge expansion area, unmapped on every
		// supported mapper.

	default:
		if m.cartridge != nil {
			m.stampCycle()
			m.cartridge.WritePRG(address, value)
		}
	}
}

// stampCycle reports the CPU's current cycle count to the cartridge
// before a PRG write reaches the mapper, so mappers that care about
// same-cycle consecutive writes (MMC1) can detect them.
func (m *Memory) stampCycle() {
	if m.cpuCycles != nil {
		m.cartridge.SetCurrentCycle(m.cpuCycles())
	}
}

// performOAMDMA copies 256 bytes starting at page*$100 into OAM through
// $2004, then posts the CPU stall through the shared interrupt bus.
func (m *Memory) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.ppuRegisters.WriteRegister(0x2004, m.Read(base+i))
	}

	odd := false
	if m.cpuCycleParity != nil {
		odd = m.cpuCycleParity()
	}
	m.irq.StallDMA(odd)
	glog.V(2).Infof("memory: OAM DMA from page $%02X, odd=%v", page, odd)
}
