// Package cpu implements the 2A03 (6502-derivative, no decimal mode)
// CPU core used by the NES.
package cpu

import (
	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/interrupts"
	"github.com/nesforge/gones-core/internal/nerr"
)

// Addressing modes
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// UndocumentedOpcodes selects which unofficial opcodes the instruction
// table recognizes.
type UndocumentedOpcodes int

const (
	// UndocOff means unofficial opcodes fall through as a 2-cycle NOP,
	// matching what a minimal reference core without unofficial-opcode
	// support would do.
	UndocOff UndocumentedOpcodes = iota
	// UndocCommon enables the subset test ROMs and commercial games
	// actually rely on (LAX, SAX, DCP, ISB, SLO, RLA, SRE, RRA, the
	// unofficial SBC/NOPs).
	UndocCommon
	// UndocAll is reserved for a future, more exhaustive opcode table;
	// currently behaves like UndocCommon since this core does not model
	// opcodes games never emit (e.g. ANE/LAS/SHA family stability is
	// explicitly out of scope, see spec Non-goals).
	UndocAll
)

// kilOpcodes halt the CPU on real hardware (no defined re-fetch path).
// These are recognized regardless of UndocumentedOpcodes since a halt is
// an error condition, not a feature toggle.
var kilOpcodes = map[uint8]bool{
	0x02: true, 0x12: true, 0x22: true, 0x32: true,
	0x42: true, 0x52: true, 0x62: true, 0x72: true,
	0x92: true, 0xB2: true, 0xD2: true, 0xF2: true,
}

// Instruction describes one entry of the opcode dispatch table.
type Instruction struct {
	Name   string
	Opcode uint8
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
}

// MemoryInterface is the CPU's view of the address space.
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Config holds the CPU's runtime-tunable knobs.
type Config struct {
	Undocumented UndocumentedOpcodes
	// StrictStack logs a warning when SP wraps past 0x00/0xFF (the stack
	// leaving $0100-$01FF). The wrap itself still happens, and Step does
	// not return an error for it.
	StrictStack bool
}

// CPU is a 2A03 core. It owns no peripherals; Step pulls bytes through
// MemoryInterface and samples interrupts.Bus once per instruction.
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C bool
	Z bool
	I bool
	D bool
	B bool
	V bool
	N bool

	memory MemoryInterface
	irq    *interrupts.Bus
	cfg    Config

	cycles uint64

	instructions [256]*Instruction
}

// New creates a CPU wired to the given memory map and interrupt bus.
func New(memory MemoryInterface, irq *interrupts.Bus, cfg Config) *CPU {
	cpu := &CPU{
		memory: memory,
		irq:    irq,
		cfg:    cfg,
		SP:     0xFD,
	}
	cpu.initInstructions()
	return cpu
}

// PowerOn sets registers to their documented power-up state and runs the
// 7-cycle reset sequence, reading PC from the reset vector.
func (cpu *CPU) PowerOn() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.C, cpu.Z, cpu.V, cpu.N, cpu.D = false, false, false, false, false
	cpu.I = true
	cpu.B = true
	cpu.runResetSequence()
}

// Reset performs a soft reset: the 7-cycle reset sequence only, no
// register reinitialization beyond what real hardware does (SP -= 3, I
// set). Memory contents are left untouched by the CPU itself.
func (cpu *CPU) Reset() {
	cpu.SP -= 3
	cpu.I = true
	cpu.runResetSequence()
}

func (cpu *CPU) runResetSequence() {
	for i := 0; i < 5; i++ {
		cpu.memory.Read(cpu.PC)
		cpu.cycles++
	}
	low := uint16(cpu.memory.Read(resetVector))
	high := uint16(cpu.memory.Read(resetVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 2
}

// Cycles returns the running cycle counter. Memory wires this in as the
// cycle source it stamps onto PRG writes, which MMC1 uses to detect
// writes on consecutive CPU cycles.
func (cpu *CPU) Cycles() uint64 {
	return cpu.cycles
}

// CycleParity reports whether the CPU is currently sitting on an odd
// cycle. Memory wires this in as the OAM DMA cycle-parity source: a DMA
// transfer started on an odd CPU cycle costs 514 cycles instead of 513.
func (cpu *CPU) CycleParity() bool {
	return cpu.cycles&1 == 1
}

// Step executes one instruction (including any pending interrupt
// service or DMA stall sampled beforehand) and returns the cycles it
// took. An error is only returned when the CPU halts on a KIL opcode;
// stack wraparound never produces one, with or without StrictStack.
func (cpu *CPU) Step() (uint64, error) {
	if stall := cpu.irq.TakeDMAStall(); stall > 0 {
		cpu.cycles += stall
		return stall, nil
	}

	if cpu.irq.NMIPending() {
		cpu.serviceInterrupt(nmiVector)
		return 7, nil
	}
	if cpu.irq.IRQAsserted() && !cpu.I {
		cpu.serviceInterrupt(irqVector)
		return 7, nil
	}

	currentPC := cpu.PC
	opcode := cpu.memory.Read(cpu.PC)

	if kilOpcodes[opcode] {
		glog.Warningf("cpu: halted on opcode 0x%02X at $%04X", opcode, currentPC)
		return 0, nerr.ErrCPUHalted
	}

	instruction := cpu.instructions[opcode]
	if instruction == nil {
		glog.V(2).Infof("cpu: unmapped opcode 0x%02X at $%04X, treated as 2-cycle NOP", opcode, currentPC)
		cpu.PC++
		cpu.cycles += 2
		return 2, nil
	}

	address, pageCrossed := cpu.getOperandAddress(instruction.Mode)
	extraCycles := cpu.executeInstruction(opcode, address, pageCrossed)

	if pageCrossed {
		switch opcode {
		case 0xBD, 0xB9, 0xB1, 0xBE, 0xBC, 0x7D, 0x79, 0x71, 0x3D, 0x39, 0x31, 0x1D, 0x19, 0x11, 0x5D, 0x59, 0x51, 0xDD, 0xD9, 0xD1:
			extraCycles++
		case 0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC:
			extraCycles++
		case 0xBF, 0xB3:
			// LAX: an unofficial read-only opcode, takes the page-cross
			// bonus like its documented LDA/LDX counterparts. The
			// unofficial read-modify-write opcodes (DCP/ISB/SLO/RLA/
			// SRE/RRA) always take their listed worst-case cycle count
			// and never get this bonus.
			extraCycles++
		}
	}

	totalCycles := uint64(instruction.Cycles + extraCycles)
	cpu.cycles += totalCycles
	return totalCycles, nil
}

func (cpu *CPU) serviceInterrupt(vector uint16) {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() &^ bFlagMask
	status |= unusedMask
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(vector))
	high := uint16(cpu.memory.Read(vector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 7
}

// getOperandAddress returns the effective address for the given addressing mode.
func (cpu *CPU) getOperandAddress(mode AddressingMode) (uint16, bool) {
	pageCrossed := false

	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		address := cpu.PC + 1
		cpu.PC += 2
		return address, false

	case ZeroPage:
		address := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return address, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		address := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return address, false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC
		pageCrossed = (oldPC & pageMask) != (newPC & pageMask)
		return newPC, pageCrossed

	case Absolute:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		address := (high << 8) | low
		cpu.PC += 3
		return address, false

	case AbsoluteX:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.X)
		cpu.PC += 3
		pageCrossed = (base & pageMask) != (address & pageMask)
		return address, pageCrossed

	case AbsoluteY:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 3
		pageCrossed = (base & pageMask) != (address & pageMask)
		return address, pageCrossed

	case Indirect:
		lowPtr := uint16(cpu.memory.Read(cpu.PC + 1))
		highPtr := uint16(cpu.memory.Read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr

		var address uint16
		if (ptr & zeroPageMask) == zeroPageMask {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr & pageMask)) // page-wrap bug
			address = (high << 8) | low
		} else {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr + 1))
			address = (high << 8) | low
		}
		cpu.PC += 3
		return address, false

	case IndexedIndirect:
		base := cpu.memory.Read(cpu.PC + 1)
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.memory.Read(uint16(ptr)))
		high := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		address := (high << 8) | low
		cpu.PC += 2
		return address, false

	case IndirectIndexed:
		ptr := uint16(cpu.memory.Read(cpu.PC + 1))
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		address := base + uint16(cpu.Y)
		cpu.PC += 2
		pageCrossed = (base & pageMask) != (address & pageMask)
		return address, pageCrossed

	default:
		return 0, false
	}
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), value)
	if cpu.cfg.StrictStack && cpu.SP == 0x00 {
		glog.Warningf("cpu: stack overflow pushing past $0100")
	}
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	if cpu.cfg.StrictStack && cpu.SP == 0xFF {
		glog.Warningf("cpu: stack underflow popping past $01FF")
	}
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value & 0xFF))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = (value & nFlagMask) != 0
}

// GetStatusByte returns the status register packed into a byte.
func (cpu *CPU) GetStatusByte() uint8 {
	var status uint8
	if cpu.N {
		status |= nFlagMask
	}
	if cpu.V {
		status |= vFlagMask
	}
	status |= unusedMask
	if cpu.B {
		status |= bFlagMask
	}
	if cpu.D {
		status |= dFlagMask
	}
	if cpu.I {
		status |= iFlagMask
	}
	if cpu.Z {
		status |= zFlagMask
	}
	if cpu.C {
		status |= cFlagMask
	}
	return status
}

// SetStatusByte unpacks a status byte into the processor flags.
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = (status & nFlagMask) != 0
	cpu.V = (status & vFlagMask) != 0
	cpu.B = (status & bFlagMask) != 0
	cpu.D = (status & dFlagMask) != 0
	cpu.I = (status & iFlagMask) != 0
	cpu.Z = (status & zFlagMask) != 0
	cpu.C = (status & cFlagMask) != 0
}

// Load operations
func (cpu *CPU) lda(address uint16) uint8 {
	cpu.A = cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ldx(address uint16) uint8 {
	cpu.X = cpu.memory.Read(address)
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) ldy(address uint16) uint8 {
	cpu.Y = cpu.memory.Read(address)
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) sta(address uint16) uint8 {
	cpu.memory.Write(address, cpu.A)
	return 0
}

func (cpu *CPU) stx(address uint16) uint8 {
	cpu.memory.Write(address, cpu.X)
	return 0
}

func (cpu *CPU) sty(address uint16) uint8 {
	cpu.memory.Write(address, cpu.Y)
	return 0
}

func (cpu *CPU) adc(address uint16) uint8 {
	value := cpu.memory.Read(address)
	carry := uint8(0)
	if cpu.C {
		carry = 1
	}

	result := uint16(cpu.A) + uint16(value) + uint16(carry)

	cpu.V = ((cpu.A^uint8(result))&0x80) != 0 && ((cpu.A^value)&0x80) == 0
	cpu.C = result > 0xFF
	cpu.A = uint8(result)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) sbc(address uint16) uint8 {
	value := cpu.memory.Read(address) ^ 0xFF
	carry := uint8(0)
	if cpu.C {
		carry = 1
	}

	result := uint16(cpu.A) + uint16(value) + uint16(carry)

	cpu.V = ((cpu.A^uint8(result))&0x80) != 0 && ((cpu.A^value)&0x80) == 0
	cpu.C = result > 0xFF
	cpu.A = uint8(result)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) and(address uint16) uint8 {
	cpu.A &= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) ora(address uint16) uint8 {
	cpu.A |= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) eor(address uint16) uint8 {
	cpu.A ^= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) asl(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x80) != 0
	value <<= 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) lsr(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x01) != 0
	value >>= 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) rol(address uint16) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x80) != 0
	value <<= 1
	if oldCarry {
		value |= 0x01
	}
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) ror(address uint16) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x01) != 0
	value >>= 1
	if oldCarry {
		value |= 0x80
	}
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) cmp(address uint16) uint8 {
	value := cpu.memory.Read(address)
	result := cpu.A - value
	cpu.C = cpu.A >= value
	cpu.setZN(result)
	return 0
}

func (cpu *CPU) cpx(address uint16) uint8 {
	value := cpu.memory.Read(address)
	result := cpu.X - value
	cpu.C = cpu.X >= value
	cpu.setZN(result)
	return 0
}

func (cpu *CPU) cpy(address uint16) uint8 {
	value := cpu.memory.Read(address)
	result := cpu.Y - value
	cpu.C = cpu.Y >= value
	cpu.setZN(result)
	return 0
}

func (cpu *CPU) inc(address uint16) uint8 {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) dec(address uint16) uint8 {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return 0
}

func (cpu *CPU) inx(uint16) uint8 {
	cpu.X++
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) dex(uint16) uint8 {
	cpu.X--
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) iny(uint16) uint8 {
	cpu.Y++
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) dey(uint16) uint8 {
	cpu.Y--
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) tax(uint16) uint8 {
	cpu.X = cpu.A
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) txa(uint16) uint8 {
	cpu.A = cpu.X
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) tay(uint16) uint8 {
	cpu.Y = cpu.A
	cpu.setZN(cpu.Y)
	return 0
}

func (cpu *CPU) tya(uint16) uint8 {
	cpu.A = cpu.Y
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) tsx(uint16) uint8 {
	cpu.X = cpu.SP
	cpu.setZN(cpu.X)
	return 0
}

func (cpu *CPU) txs(uint16) uint8 {
	cpu.SP = cpu.X
	return 0
}

func (cpu *CPU) pha(uint16) uint8 {
	cpu.push(cpu.A)
	return 0
}

func (cpu *CPU) pla(uint16) uint8 {
	cpu.A = cpu.pop()
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) php(uint16) uint8 {
	cpu.push(cpu.GetStatusByte() | bFlagMask)
	return 0
}

func (cpu *CPU) plp(uint16) uint8 {
	cpu.SetStatusByte(cpu.pop())
	return 0
}

func (cpu *CPU) clc(uint16) uint8 { cpu.C = false; return 0 }
func (cpu *CPU) sec(uint16) uint8 { cpu.C = true; return 0 }
func (cpu *CPU) cli(uint16) uint8 { cpu.I = false; return 0 }
func (cpu *CPU) sei(uint16) uint8 { cpu.I = true; return 0 }
func (cpu *CPU) clv(uint16) uint8 { cpu.V = false; return 0 }
func (cpu *CPU) cld(uint16) uint8 { cpu.D = false; return 0 }
func (cpu *CPU) sed(uint16) uint8 { cpu.D = true; return 0 }

func (cpu *CPU) jmp(address uint16) uint8 {
	cpu.PC = address
	return 0
}

func (cpu *CPU) jsr(address uint16) uint8 {
	cpu.pushWord(cpu.PC - 1)
	cpu.PC = address
	return 0
}

func (cpu *CPU) rts(uint16) uint8 {
	cpu.PC = cpu.popWord() + 1
	return 0
}

func (cpu *CPU) rti(uint16) uint8 {
	cpu.SetStatusByte(cpu.pop())
	cpu.PC = cpu.popWord()
	return 0
}

func branchCycles(taken, pageCrossed bool) uint8 {
	if !taken {
		return 0
	}
	if pageCrossed {
		return 2
	}
	return 1
}

func (cpu *CPU) bcc(address uint16, pageCrossed bool) uint8 {
	taken := !cpu.C
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) bcs(address uint16, pageCrossed bool) uint8 {
	taken := cpu.C
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) bne(address uint16, pageCrossed bool) uint8 {
	taken := !cpu.Z
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) beq(address uint16, pageCrossed bool) uint8 {
	taken := cpu.Z
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) bpl(address uint16, pageCrossed bool) uint8 {
	taken := !cpu.N
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) bmi(address uint16, pageCrossed bool) uint8 {
	taken := cpu.N
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) bvc(address uint16, pageCrossed bool) uint8 {
	taken := !cpu.V
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) bvs(address uint16, pageCrossed bool) uint8 {
	taken := cpu.V
	if taken {
		cpu.PC = address
	}
	return branchCycles(taken, pageCrossed)
}

func (cpu *CPU) bit(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.N = (value & nFlagMask) != 0
	cpu.V = (value & vFlagMask) != 0
	cpu.Z = (cpu.A & value) == 0
	return 0
}

func (cpu *CPU) nop(uint16) uint8 { return 0 }

func (cpu *CPU) brk(uint16) uint8 {
	cpu.PC++
	cpu.pushWord(cpu.PC)
	cpu.push(cpu.GetStatusByte() | bFlagMask)
	cpu.I = true
	low := uint16(cpu.memory.Read(irqVector))
	high := uint16(cpu.memory.Read(irqVector + 1))
	cpu.PC = (high << 8) | low
	return 0
}

// --- Unofficial opcodes ---

func (cpu *CPU) lax(address uint16) uint8 {
	cpu.A = cpu.memory.Read(address)
	cpu.X = cpu.A
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) sax(address uint16) uint8 {
	cpu.memory.Write(address, cpu.A&cpu.X)
	return 0
}

func (cpu *CPU) dcp(address uint16) uint8 {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	result := cpu.A - value
	cpu.C = cpu.A >= value
	cpu.setZN(result)
	return 0
}

func (cpu *CPU) isb(address uint16) uint8 {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.sbc(address)
	return 0
}

func (cpu *CPU) slo(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x80) != 0
	value <<= 1
	cpu.memory.Write(address, value)
	cpu.A |= value
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) rla(address uint16) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x80) != 0
	value <<= 1
	if oldCarry {
		value |= 0x01
	}
	cpu.memory.Write(address, value)
	cpu.A &= value
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) sre(address uint16) uint8 {
	value := cpu.memory.Read(address)
	cpu.C = (value & 0x01) != 0
	value >>= 1
	cpu.memory.Write(address, value)
	cpu.A ^= value
	cpu.setZN(cpu.A)
	return 0
}

func (cpu *CPU) rra(address uint16) uint8 {
	value := cpu.memory.Read(address)
	oldCarry := cpu.C
	cpu.C = (value & 0x01) != 0
	value >>= 1
	if oldCarry {
		value |= 0x80
	}
	cpu.memory.Write(address, value)
	cpu.adc(address)
	return 0
}

// executeInstruction dispatches the opcode and returns extra cycles
// beyond the instruction's base cost.
func (cpu *CPU) executeInstruction(opcode uint8, address uint16, pageCrossed bool) uint8 {
	switch opcode {
	case 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1:
		return cpu.lda(address)
	case 0xA2, 0xA6, 0xB6, 0xAE, 0xBE:
		return cpu.ldx(address)
	case 0xA0, 0xA4, 0xB4, 0xAC, 0xBC:
		return cpu.ldy(address)
	case 0x85, 0x95, 0x8D, 0x9D, 0x99, 0x81, 0x91:
		return cpu.sta(address)
	case 0x86, 0x96, 0x8E:
		return cpu.stx(address)
	case 0x84, 0x94, 0x8C:
		return cpu.sty(address)

	case 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71:
		return cpu.adc(address)
	case 0xE9, 0xEB, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1:
		return cpu.sbc(address)

	case 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31:
		return cpu.and(address)
	case 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11:
		return cpu.ora(address)
	case 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51:
		return cpu.eor(address)

	case 0x0A:
		cpu.C = (cpu.A & 0x80) != 0
		cpu.A <<= 1
		cpu.setZN(cpu.A)
		return 0
	case 0x06, 0x16, 0x0E, 0x1E:
		return cpu.asl(address)
	case 0x4A:
		cpu.C = (cpu.A & 0x01) != 0
		cpu.A >>= 1
		cpu.setZN(cpu.A)
		return 0
	case 0x46, 0x56, 0x4E, 0x5E:
		return cpu.lsr(address)
	case 0x2A:
		oldCarry := cpu.C
		cpu.C = (cpu.A & 0x80) != 0
		cpu.A <<= 1
		if oldCarry {
			cpu.A |= 0x01
		}
		cpu.setZN(cpu.A)
		return 0
	case 0x26, 0x36, 0x2E, 0x3E:
		return cpu.rol(address)
	case 0x6A:
		oldCarry := cpu.C
		cpu.C = (cpu.A & 0x01) != 0
		cpu.A >>= 1
		if oldCarry {
			cpu.A |= 0x80
		}
		cpu.setZN(cpu.A)
		return 0
	case 0x66, 0x76, 0x6E, 0x7E:
		return cpu.ror(address)

	case 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1:
		return cpu.cmp(address)
	case 0xE0, 0xE4, 0xEC:
		return cpu.cpx(address)
	case 0xC0, 0xC4, 0xCC:
		return cpu.cpy(address)

	case 0xE6, 0xF6, 0xEE, 0xFE:
		return cpu.inc(address)
	case 0xC6, 0xD6, 0xCE, 0xDE:
		return cpu.dec(address)
	case 0xE8:
		return cpu.inx(address)
	case 0xCA:
		return cpu.dex(address)
	case 0xC8:
		return cpu.iny(address)
	case 0x88:
		return cpu.dey(address)

	case 0xAA:
		return cpu.tax(address)
	case 0x8A:
		return cpu.txa(address)
	case 0xA8:
		return cpu.tay(address)
	case 0x98:
		return cpu.tya(address)
	case 0xBA:
		return cpu.tsx(address)
	case 0x9A:
		return cpu.txs(address)

	case 0x48:
		return cpu.pha(address)
	case 0x68:
		return cpu.pla(address)
	case 0x08:
		return cpu.php(address)
	case 0x28:
		return cpu.plp(address)

	case 0x18:
		return cpu.clc(address)
	case 0x38:
		return cpu.sec(address)
	case 0x58:
		return cpu.cli(address)
	case 0x78:
		return cpu.sei(address)
	case 0xB8:
		return cpu.clv(address)
	case 0xD8:
		return cpu.cld(address)
	case 0xF8:
		return cpu.sed(address)

	case 0x4C, 0x6C:
		return cpu.jmp(address)
	case 0x20:
		return cpu.jsr(address)
	case 0x60:
		return cpu.rts(address)
	case 0x40:
		return cpu.rti(address)

	case 0x90:
		return cpu.bcc(address, pageCrossed)
	case 0xB0:
		return cpu.bcs(address, pageCrossed)
	case 0xD0:
		return cpu.bne(address, pageCrossed)
	case 0xF0:
		return cpu.beq(address, pageCrossed)
	case 0x10:
		return cpu.bpl(address, pageCrossed)
	case 0x30:
		return cpu.bmi(address, pageCrossed)
	case 0x50:
		return cpu.bvc(address, pageCrossed)
	case 0x70:
		return cpu.bvs(address, pageCrossed)

	case 0x24, 0x2C:
		return cpu.bit(address)
	case 0x00:
		return cpu.brk(address)

	case 0xEA, 0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA, 0x80, 0x82, 0x89, 0xC2, 0xE2, 0x04, 0x44, 0x64, 0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4, 0x0C, 0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC:
		return cpu.nop(address)

	case 0xA3, 0xA7, 0xAF, 0xB3, 0xB7, 0xBF:
		return cpu.lax(address)
	case 0x83, 0x87, 0x8F, 0x97:
		return cpu.sax(address)
	case 0xC3, 0xC7, 0xCF, 0xD3, 0xD7, 0xDF, 0xDB:
		return cpu.dcp(address)
	case 0xE3, 0xE7, 0xEF, 0xF3, 0xF7, 0xFF, 0xFB:
		return cpu.isb(address)
	case 0x03, 0x07, 0x0F, 0x13, 0x17, 0x1F, 0x1B:
		return cpu.slo(address)
	case 0x23, 0x27, 0x2F, 0x33, 0x37, 0x3F, 0x3B:
		return cpu.rla(address)
	case 0x43, 0x47, 0x4F, 0x53, 0x57, 0x5F, 0x5B:
		return cpu.sre(address)
	case 0x63, 0x67, 0x6F, 0x73, 0x77, 0x7F, 0x7B:
		return cpu.rra(address)

	default:
		return 0
	}
}

// initInstructions populates the official opcode table unconditionally
// and the unofficial subset when cfg.Undocumented != UndocOff.
func (cpu *CPU) initInstructions() {
	t := &cpu.instructions

	t[0xA9] = &Instruction{"LDA", 0xA9, 2, 2, Immediate}
	t[0xA5] = &Instruction{"LDA", 0xA5, 2, 3, ZeroPage}
	t[0xB5] = &Instruction{"LDA", 0xB5, 2, 4, ZeroPageX}
	t[0xAD] = &Instruction{"LDA", 0xAD, 3, 4, Absolute}
	t[0xBD] = &Instruction{"LDA", 0xBD, 3, 4, AbsoluteX}
	t[0xB9] = &Instruction{"LDA", 0xB9, 3, 4, AbsoluteY}
	t[0xA1] = &Instruction{"LDA", 0xA1, 2, 6, IndexedIndirect}
	t[0xB1] = &Instruction{"LDA", 0xB1, 2, 5, IndirectIndexed}

	t[0xA2] = &Instruction{"LDX", 0xA2, 2, 2, Immediate}
	t[0xA6] = &Instruction{"LDX", 0xA6, 2, 3, ZeroPage}
	t[0xB6] = &Instruction{"LDX", 0xB6, 2, 4, ZeroPageY}
	t[0xAE] = &Instruction{"LDX", 0xAE, 3, 4, Absolute}
	t[0xBE] = &Instruction{"LDX", 0xBE, 3, 4, AbsoluteY}

	t[0xA0] = &Instruction{"LDY", 0xA0, 2, 2, Immediate}
	t[0xA4] = &Instruction{"LDY", 0xA4, 2, 3, ZeroPage}
	t[0xB4] = &Instruction{"LDY", 0xB4, 2, 4, ZeroPageX}
	t[0xAC] = &Instruction{"LDY", 0xAC, 3, 4, Absolute}
	t[0xBC] = &Instruction{"LDY", 0xBC, 3, 4, AbsoluteX}

	t[0x85] = &Instruction{"STA", 0x85, 2, 3, ZeroPage}
	t[0x95] = &Instruction{"STA", 0x95, 2, 4, ZeroPageX}
	t[0x8D] = &Instruction{"STA", 0x8D, 3, 4, Absolute}
	t[0x9D] = &Instruction{"STA", 0x9D, 3, 5, AbsoluteX}
	t[0x99] = &Instruction{"STA", 0x99, 3, 5, AbsoluteY}
	t[0x81] = &Instruction{"STA", 0x81, 2, 6, IndexedIndirect}
	t[0x91] = &Instruction{"STA", 0x91, 2, 6, IndirectIndexed}

	t[0x86] = &Instruction{"STX", 0x86, 2, 3, ZeroPage}
	t[0x96] = &Instruction{"STX", 0x96, 2, 4, ZeroPageY}
	t[0x8E] = &Instruction{"STX", 0x8E, 3, 4, Absolute}

	t[0x84] = &Instruction{"STY", 0x84, 2, 3, ZeroPage}
	t[0x94] = &Instruction{"STY", 0x94, 2, 4, ZeroPageX}
	t[0x8C] = &Instruction{"STY", 0x8C, 3, 4, Absolute}

	t[0x69] = &Instruction{"ADC", 0x69, 2, 2, Immediate}
	t[0x65] = &Instruction{"ADC", 0x65, 2, 3, ZeroPage}
	t[0x75] = &Instruction{"ADC", 0x75, 2, 4, ZeroPageX}
	t[0x6D] = &Instruction{"ADC", 0x6D, 3, 4, Absolute}
	t[0x7D] = &Instruction{"ADC", 0x7D, 3, 4, AbsoluteX}
	t[0x79] = &Instruction{"ADC", 0x79, 3, 4, AbsoluteY}
	t[0x61] = &Instruction{"ADC", 0x61, 2, 6, IndexedIndirect}
	t[0x71] = &Instruction{"ADC", 0x71, 2, 5, IndirectIndexed}

	t[0xE9] = &Instruction{"SBC", 0xE9, 2, 2, Immediate}
	t[0xE5] = &Instruction{"SBC", 0xE5, 2, 3, ZeroPage}
	t[0xF5] = &Instruction{"SBC", 0xF5, 2, 4, ZeroPageX}
	t[0xED] = &Instruction{"SBC", 0xED, 3, 4, Absolute}
	t[0xFD] = &Instruction{"SBC", 0xFD, 3, 4, AbsoluteX}
	t[0xF9] = &Instruction{"SBC", 0xF9, 3, 4, AbsoluteY}
	t[0xE1] = &Instruction{"SBC", 0xE1, 2, 6, IndexedIndirect}
	t[0xF1] = &Instruction{"SBC", 0xF1, 2, 5, IndirectIndexed}

	t[0x29] = &Instruction{"AND", 0x29, 2, 2, Immediate}
	t[0x25] = &Instruction{"AND", 0x25, 2, 3, ZeroPage}
	t[0x35] = &Instruction{"AND", 0x35, 2, 4, ZeroPageX}
	t[0x2D] = &Instruction{"AND", 0x2D, 3, 4, Absolute}
	t[0x3D] = &Instruction{"AND", 0x3D, 3, 4, AbsoluteX}
	t[0x39] = &Instruction{"AND", 0x39, 3, 4, AbsoluteY}
	t[0x21] = &Instruction{"AND", 0x21, 2, 6, IndexedIndirect}
	t[0x31] = &Instruction{"AND", 0x31, 2, 5, IndirectIndexed}

	t[0x09] = &Instruction{"ORA", 0x09, 2, 2, Immediate}
	t[0x05] = &Instruction{"ORA", 0x05, 2, 3, ZeroPage}
	t[0x15] = &Instruction{"ORA", 0x15, 2, 4, ZeroPageX}
	t[0x0D] = &Instruction{"ORA", 0x0D, 3, 4, Absolute}
	t[0x1D] = &Instruction{"ORA", 0x1D, 3, 4, AbsoluteX}
	t[0x19] = &Instruction{"ORA", 0x19, 3, 4, AbsoluteY}
	t[0x01] = &Instruction{"ORA", 0x01, 2, 6, IndexedIndirect}
	t[0x11] = &Instruction{"ORA", 0x11, 2, 5, IndirectIndexed}

	t[0x49] = &Instruction{"EOR", 0x49, 2, 2, Immediate}
	t[0x45] = &Instruction{"EOR", 0x45, 2, 3, ZeroPage}
	t[0x55] = &Instruction{"EOR", 0x55, 2, 4, ZeroPageX}
	t[0x4D] = &Instruction{"EOR", 0x4D, 3, 4, Absolute}
	t[0x5D] = &Instruction{"EOR", 0x5D, 3, 4, AbsoluteX}
	t[0x59] = &Instruction{"EOR", 0x59, 3, 4, AbsoluteY}
	t[0x41] = &Instruction{"EOR", 0x41, 2, 6, IndexedIndirect}
	t[0x51] = &Instruction{"EOR", 0x51, 2, 5, IndirectIndexed}

	t[0x0A] = &Instruction{"ASL", 0x0A, 1, 2, Accumulator}
	t[0x06] = &Instruction{"ASL", 0x06, 2, 5, ZeroPage}
	t[0x16] = &Instruction{"ASL", 0x16, 2, 6, ZeroPageX}
	t[0x0E] = &Instruction{"ASL", 0x0E, 3, 6, Absolute}
	t[0x1E] = &Instruction{"ASL", 0x1E, 3, 7, AbsoluteX}

	t[0x4A] = &Instruction{"LSR", 0x4A, 1, 2, Accumulator}
	t[0x46] = &Instruction{"LSR", 0x46, 2, 5, ZeroPage}
	t[0x56] = &Instruction{"LSR", 0x56, 2, 6, ZeroPageX}
	t[0x4E] = &Instruction{"LSR", 0x4E, 3, 6, Absolute}
	t[0x5E] = &Instruction{"LSR", 0x5E, 3, 7, AbsoluteX}

	t[0x2A] = &Instruction{"ROL", 0x2A, 1, 2, Accumulator}
	t[0x26] = &Instruction{"ROL", 0x26, 2, 5, ZeroPage}
	t[0x36] = &Instruction{"ROL", 0x36, 2, 6, ZeroPageX}
	t[0x2E] = &Instruction{"ROL", 0x2E, 3, 6, Absolute}
	t[0x3E] = &Instruction{"ROL", 0x3E, 3, 7, AbsoluteX}

	t[0x6A] = &Instruction{"ROR", 0x6A, 1, 2, Accumulator}
	t[0x66] = &Instruction{"ROR", 0x66, 2, 5, ZeroPage}
	t[0x76] = &Instruction{"ROR", 0x76, 2, 6, ZeroPageX}
	t[0x6E] = &Instruction{"ROR", 0x6E, 3, 6, Absolute}
	t[0x7E] = &Instruction{"ROR", 0x7E, 3, 7, AbsoluteX}

	t[0xC9] = &Instruction{"CMP", 0xC9, 2, 2, Immediate}
	t[0xC5] = &Instruction{"CMP", 0xC5, 2, 3, ZeroPage}
	t[0xD5] = &Instruction{"CMP", 0xD5, 2, 4, ZeroPageX}
	t[0xCD] = &Instruction{"CMP", 0xCD, 3, 4, Absolute}
	t[0xDD] = &Instruction{"CMP", 0xDD, 3, 4, AbsoluteX}
	t[0xD9] = &Instruction{"CMP", 0xD9, 3, 4, AbsoluteY}
	t[0xC1] = &Instruction{"CMP", 0xC1, 2, 6, IndexedIndirect}
	t[0xD1] = &Instruction{"CMP", 0xD1, 2, 5, IndirectIndexed}

	t[0xE0] = &Instruction{"CPX", 0xE0, 2, 2, Immediate}
	t[0xE4] = &Instruction{"CPX", 0xE4, 2, 3, ZeroPage}
	t[0xEC] = &Instruction{"CPX", 0xEC, 3, 4, Absolute}

	t[0xC0] = &Instruction{"CPY", 0xC0, 2, 2, Immediate}
	t[0xC4] = &Instruction{"CPY", 0xC4, 2, 3, ZeroPage}
	t[0xCC] = &Instruction{"CPY", 0xCC, 3, 4, Absolute}

	t[0xE6] = &Instruction{"INC", 0xE6, 2, 5, ZeroPage}
	t[0xF6] = &Instruction{"INC", 0xF6, 2, 6, ZeroPageX}
	t[0xEE] = &Instruction{"INC", 0xEE, 3, 6, Absolute}
	t[0xFE] = &Instruction{"INC", 0xFE, 3, 7, AbsoluteX}

	t[0xC6] = &Instruction{"DEC", 0xC6, 2, 5, ZeroPage}
	t[0xD6] = &Instruction{"DEC", 0xD6, 2, 6, ZeroPageX}
	t[0xCE] = &Instruction{"DEC", 0xCE, 3, 6, Absolute}
	t[0xDE] = &Instruction{"DEC", 0xDE, 3, 7, AbsoluteX}

	t[0xE8] = &Instruction{"INX", 0xE8, 1, 2, Implied}
	t[0xCA] = &Instruction{"DEX", 0xCA, 1, 2, Implied}
	t[0xC8] = &Instruction{"INY", 0xC8, 1, 2, Implied}
	t[0x88] = &Instruction{"DEY", 0x88, 1, 2, Implied}

	t[0xAA] = &Instruction{"TAX", 0xAA, 1, 2, Implied}
	t[0x8A] = &Instruction{"TXA", 0x8A, 1, 2, Implied}
	t[0xA8] = &Instruction{"TAY", 0xA8, 1, 2, Implied}
	t[0x98] = &Instruction{"TYA", 0x98, 1, 2, Implied}
	t[0xBA] = &Instruction{"TSX", 0xBA, 1, 2, Implied}
	t[0x9A] = &Instruction{"TXS", 0x9A, 1, 2, Implied}

	t[0x48] = &Instruction{"PHA", 0x48, 1, 3, Implied}
	t[0x68] = &Instruction{"PLA", 0x68, 1, 4, Implied}
	t[0x08] = &Instruction{"PHP", 0x08, 1, 3, Implied}
	t[0x28] = &Instruction{"PLP", 0x28, 1, 4, Implied}

	t[0x18] = &Instruction{"CLC", 0x18, 1, 2, Implied}
	t[0x38] = &Instruction{"SEC", 0x38, 1, 2, Implied}
	t[0x58] = &Instruction{"CLI", 0x58, 1, 2, Implied}
	t[0x78] = &Instruction{"SEI", 0x78, 1, 2, Implied}
	t[0xB8] = &Instruction{"CLV", 0xB8, 1, 2, Implied}
	t[0xD8] = &Instruction{"CLD", 0xD8, 1, 2, Implied}
	t[0xF8] = &Instruction{"SED", 0xF8, 1, 2, Implied}

	t[0x4C] = &Instruction{"JMP", 0x4C, 3, 3, Absolute}
	t[0x6C] = &Instruction{"JMP", 0x6C, 3, 5, Indirect}
	t[0x20] = &Instruction{"JSR", 0x20, 3, 6, Absolute}
	t[0x60] = &Instruction{"RTS", 0x60, 1, 6, Implied}
	t[0x40] = &Instruction{"RTI", 0x40, 1, 6, Implied}

	t[0x90] = &Instruction{"BCC", 0x90, 2, 2, Relative}
	t[0xB0] = &Instruction{"BCS", 0xB0, 2, 2, Relative}
	t[0xD0] = &Instruction{"BNE", 0xD0, 2, 2, Relative}
	t[0xF0] = &Instruction{"BEQ", 0xF0, 2, 2, Relative}
	t[0x10] = &Instruction{"BPL", 0x10, 2, 2, Relative}
	t[0x30] = &Instruction{"BMI", 0x30, 2, 2, Relative}
	t[0x50] = &Instruction{"BVC", 0x50, 2, 2, Relative}
	t[0x70] = &Instruction{"BVS", 0x70, 2, 2, Relative}

	t[0x24] = &Instruction{"BIT", 0x24, 2, 3, ZeroPage}
	t[0x2C] = &Instruction{"BIT", 0x2C, 3, 4, Absolute}
	t[0xEA] = &Instruction{"NOP", 0xEA, 1, 2, Implied}
	t[0x00] = &Instruction{"BRK", 0x00, 1, 7, Implied}

	if cpu.cfg.Undocumented == UndocOff {
		return
	}

	t[0x1A] = &Instruction{"NOP", 0x1A, 1, 2, Implied}
	t[0x3A] = &Instruction{"NOP", 0x3A, 1, 2, Implied}
	t[0x5A] = &Instruction{"NOP", 0x5A, 1, 2, Implied}
	t[0x7A] = &Instruction{"NOP", 0x7A, 1, 2, Implied}
	t[0xDA] = &Instruction{"NOP", 0xDA, 1, 2, Implied}
	t[0xFA] = &Instruction{"NOP", 0xFA, 1, 2, Implied}
	t[0x80] = &Instruction{"NOP", 0x80, 2, 2, Immediate}
	t[0x82] = &Instruction{"NOP", 0x82, 2, 2, Immediate}
	t[0x89] = &Instruction{"NOP", 0x89, 2, 2, Immediate}
	t[0xC2] = &Instruction{"NOP", 0xC2, 2, 2, Immediate}
	t[0xE2] = &Instruction{"NOP", 0xE2, 2, 2, Immediate}
	t[0x04] = &Instruction{"NOP", 0x04, 2, 3, ZeroPage}
	t[0x44] = &Instruction{"NOP", 0x44, 2, 3, ZeroPage}
	t[0x64] = &Instruction{"NOP", 0x64, 2, 3, ZeroPage}
	t[0x14] = &Instruction{"NOP", 0x14, 2, 4, ZeroPageX}
	t[0x34] = &Instruction{"NOP", 0x34, 2, 4, ZeroPageX}
	t[0x54] = &Instruction{"NOP", 0x54, 2, 4, ZeroPageX}
	t[0x74] = &Instruction{"NOP", 0x74, 2, 4, ZeroPageX}
	t[0xD4] = &Instruction{"NOP", 0xD4, 2, 4, ZeroPageX}
	t[0xF4] = &Instruction{"NOP", 0xF4, 2, 4, ZeroPageX}
	t[0x0C] = &Instruction{"NOP", 0x0C, 3, 4, Absolute}
	t[0x1C] = &Instruction{"NOP", 0x1C, 3, 4, AbsoluteX}
	t[0x3C] = &Instruction{"NOP", 0x3C, 3, 4, AbsoluteX}
	t[0x5C] = &Instruction{"NOP", 0x5C, 3, 4, AbsoluteX}
	t[0x7C] = &Instruction{"NOP", 0x7C, 3, 4, AbsoluteX}
	t[0xDC] = &Instruction{"NOP", 0xDC, 3, 4, AbsoluteX}
	t[0xFC] = &Instruction{"NOP", 0xFC, 3, 4, AbsoluteX}

	t[0xA7] = &Instruction{"LAX", 0xA7, 2, 3, ZeroPage}
	t[0xB7] = &Instruction{"LAX", 0xB7, 2, 4, ZeroPageY}
	t[0xAF] = &Instruction{"LAX", 0xAF, 3, 4, Absolute}
	t[0xBF] = &Instruction{"LAX", 0xBF, 3, 4, AbsoluteY}
	t[0xA3] = &Instruction{"LAX", 0xA3, 2, 6, IndexedIndirect}
	t[0xB3] = &Instruction{"LAX", 0xB3, 2, 5, IndirectIndexed}

	t[0x87] = &Instruction{"SAX", 0x87, 2, 3, ZeroPage}
	t[0x97] = &Instruction{"SAX", 0x97, 2, 4, ZeroPageY}
	t[0x8F] = &Instruction{"SAX", 0x8F, 3, 4, Absolute}
	t[0x83] = &Instruction{"SAX", 0x83, 2, 6, IndexedIndirect}

	t[0xEB] = &Instruction{"SBC", 0xEB, 2, 2, Immediate}

	t[0xC7] = &Instruction{"DCP", 0xC7, 2, 5, ZeroPage}
	t[0xD7] = &Instruction{"DCP", 0xD7, 2, 6, ZeroPageX}
	t[0xCF] = &Instruction{"DCP", 0xCF, 3, 6, Absolute}
	t[0xDF] = &Instruction{"DCP", 0xDF, 3, 7, AbsoluteX}
	t[0xDB] = &Instruction{"DCP", 0xDB, 3, 7, AbsoluteY}
	t[0xC3] = &Instruction{"DCP", 0xC3, 2, 8, IndexedIndirect}
	t[0xD3] = &Instruction{"DCP", 0xD3, 2, 8, IndirectIndexed}

	t[0xE7] = &Instruction{"ISB", 0xE7, 2, 5, ZeroPage}
	t[0xF7] = &Instruction{"ISB", 0xF7, 2, 6, ZeroPageX}
	t[0xEF] = &Instruction{"ISB", 0xEF, 3, 6, Absolute}
	t[0xFF] = &Instruction{"ISB", 0xFF, 3, 7, AbsoluteX}
	t[0xFB] = &Instruction{"ISB", 0xFB, 3, 7, AbsoluteY}
	t[0xE3] = &Instruction{"ISB", 0xE3, 2, 8, IndexedIndirect}
	t[0xF3] = &Instruction{"ISB", 0xF3, 2, 8, IndirectIndexed}

	t[0x07] = &Instruction{"SLO", 0x07, 2, 5, ZeroPage}
	t[0x17] = &Instruction{"SLO", 0x17, 2, 6, ZeroPageX}
	t[0x0F] = &Instruction{"SLO", 0x0F, 3, 6, Absolute}
	t[0x1F] = &Instruction{"SLO", 0x1F, 3, 7, AbsoluteX}
	t[0x1B] = &Instruction{"SLO", 0x1B, 3, 7, AbsoluteY}
	t[0x03] = &Instruction{"SLO", 0x03, 2, 8, IndexedIndirect}
	t[0x13] = &Instruction{"SLO", 0x13, 2, 8, IndirectIndexed}

	t[0x27] = &Instruction{"RLA", 0x27, 2, 5, ZeroPage}
	t[0x37] = &Instruction{"RLA", 0x37, 2, 6, ZeroPageX}
	t[0x2F] = &Instruction{"RLA", 0x2F, 3, 6, Absolute}
	t[0x3F] = &Instruction{"RLA", 0x3F, 3, 7, AbsoluteX}
	t[0x3B] = &Instruction{"RLA", 0x3B, 3, 7, AbsoluteY}
	t[0x23] = &Instruction{"RLA", 0x23, 2, 8, IndexedIndirect}
	t[0x33] = &Instruction{"RLA", 0x33, 2, 8, IndirectIndexed}

	t[0x47] = &Instruction{"SRE", 0x47, 2, 5, ZeroPage}
	t[0x57] = &Instruction{"SRE", 0x57, 2, 6, ZeroPageX}
	t[0x4F] = &Instruction{"SRE", 0x4F, 3, 6, Absolute}
	t[0x5F] = &Instruction{"SRE", 0x5F, 3, 7, AbsoluteX}
	t[0x5B] = &Instruction{"SRE", 0x5B, 3, 7, AbsoluteY}
	t[0x43] = &Instruction{"SRE", 0x43, 2, 8, IndexedIndirect}
	t[0x53] = &Instruction{"SRE", 0x53, 2, 8, IndirectIndexed}

	t[0x67] = &Instruction{"RRA", 0x67, 2, 5, ZeroPage}
	t[0x77] = &Instruction{"RRA", 0x77, 2, 6, ZeroPageX}
	t[0x6F] = &Instruction{"RRA", 0x6F, 3, 6, Absolute}
	t[0x7F] = &Instruction{"RRA", 0x7F, 3, 7, AbsoluteX}
	t[0x7B] = &Instruction{"RRA", 0x7B, 3, 7, AbsoluteY}
	t[0x63] = &Instruction{"RRA", 0x63, 2, 8, IndexedIndirect}
	t[0x73] = &Instruction{"RRA", 0x73, 2, 8, IndirectIndexed}
}
