package cartridge

import "github.com/golang/glog"

// mapper1 implements MMC1: a 5-bit serial shift register loaded one bit
// per write (LSB first), interpreted against the write address once the
// 5th bit lands. A write with bit 7 set resets the shift register and
// forces PRG mode 3 (fix last bank at $C000) rather than feeding the
// shift register.
//
// Real MMC1 ignores the second of two consecutive writes landing on the
// same CPU cycle, a quirk read-modify-write instructions (INC/DEC
// targeting a mapper register address) can trigger since they write
// their operand back on the same cycle they read it. lastWriteCycle
// tracks the cycle of the most recent accepted write so WritePRG can
// detect and drop the repeat.
type mapper1 struct {
	cart *Cartridge

	shiftReg uint8
	whichBit uint8
	control  uint8 // CPPMM
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	prgRAMDisabled bool

	currentCycle   uint64
	cycleKnown     bool
	lastWriteCycle uint64
	haveLastWrite  bool
}

func newMapper1(cart *Cartridge) *mapper1 {
	m := &mapper1{cart: cart, control: 0x0C}
	return m
}

// SetCurrentCycle records the CPU's running cycle count, reported once
// per memory write by the bus before it reaches WritePRG. cycleKnown is
// consumed by the following WritePRG call, so a write made without a
// preceding SetCurrentCycle (as in a unit test driving the mapper
// directly) is never mistaken for landing on the same cycle as the
// last one.
func (m *mapper1) SetCurrentCycle(cycle uint64) {
	m.currentCycle = cycle
	m.cycleKnown = true
}

func (m *mapper1) prgBankCount() int { return len(m.cart.prgROM) / 0x4000 }
func (m *mapper1) chrBankCount4K() int {
	if len(m.cart.chrROM) == 0 {
		return 1
	}
	return len(m.cart.chrROM) / 0x1000
}

func (m *mapper1) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x6000 && address < 0x8000:
		return m.cart.sram[address-0x6000]
	case address >= 0x8000:
		return m.cart.prgROM[m.prgOffset(address)]
	default:
		return 0
	}
}

func (m *mapper1) prgOffset(address uint16) int {
	banks := m.prgBankCount()
	if banks == 0 {
		return 0
	}
	mode := (m.control >> 2) & 0x03
	off := int(address - 0x8000)

	switch mode {
	case 0, 1:
		bank := int(m.prgBank>>1) % (banks / 2)
		return bank*0x8000 + off
	case 2:
		if address < 0xC000 {
			return off // fixed first bank
		}
		bank := int(m.prgBank) % banks
		return bank*0x4000 + (off - 0x4000)
	default: // 3
		if address < 0xC000 {
			bank := int(m.prgBank) % banks
			return bank * 0x4000 + off
		}
		return (banks-1)*0x4000 + (off - 0x4000) // fixed last bank
	}
}

func (m *mapper1) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		if !m.prgRAMDisabled {
			m.cart.sram[address-0x6000] = value
		}
		return
	}
	if address < 0x8000 {
		return
	}

	if m.cycleKnown {
		m.cycleKnown = false
		if m.haveLastWrite && m.currentCycle == m.lastWriteCycle {
			glog.V(2).Infof("mapper1: ignoring write to $%04X on repeated cycle %d", address, m.currentCycle)
			return
		}
		m.lastWriteCycle = m.currentCycle
		m.haveLastWrite = true
	}

	if value&0x80 != 0 {
		m.shiftReg = 0
		m.whichBit = 0
		m.control |= 0x0C
		return
	}

	m.shiftReg |= (value & 1) << m.whichBit
	m.whichBit++
	if m.whichBit < 5 {
		return
	}

	complete := m.shiftReg
	m.shiftReg = 0
	m.whichBit = 0

	switch {
	case address < 0xA000:
		m.control = complete
	case address < 0xC000:
		m.chrBank0 = complete
	case address < 0xE000:
		m.chrBank1 = complete
	default:
		m.prgBank = complete & 0x0F
		m.prgRAMDisabled = complete&0x10 != 0
	}
}

func (m *mapper1) ReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	return m.cart.chrROM[m.chrOffset(address)]
}

func (m *mapper1) WriteCHR(address uint16, value uint8) {
	if address >= 0x2000 {
		return
	}
	if m.cart.hasCHRRAM {
		m.cart.chrROM[m.chrOffset(address)] = value
	}
}

func (m *mapper1) chrOffset(address uint16) int {
	banks := m.chrBankCount4K()
	if m.control&0x10 == 0 {
		// 8KB mode: chrBank0's low bit is ignored.
		bank := int(m.chrBank0>>1) % max(1, banks/2)
		return bank*0x2000 + int(address)
	}
	if address < 0x1000 {
		bank := int(m.chrBank0) % max(1, banks)
		return bank*0x1000 + int(address)
	}
	bank := int(m.chrBank1) % max(1, banks)
	return bank*0x1000 + int(address-0x1000)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (m *mapper1) NametableMirror() MirrorMode {
	switch m.control & 0x03 {
	case 0:
		return MirrorSingleScreen0
	case 1:
		return MirrorSingleScreen1
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

func (m *mapper1) OnPPUA12(uint16, bool) {}
func (m *mapper1) IRQPending() bool      { return false }
func (m *mapper1) AcknowledgeIRQ()       {}
