// Package interrupts implements the small shared latch the PPU,
// cartridge mappers, and CPU memory map post to and the system runner
// samples once per CPU step: pending NMI, pending mapper IRQ, and an
// OAM DMA cycle stall. It has no behavior of its own beyond bookkeeping
// a handful of bits — a value object the runner owns alongside the CPU,
// PPU, and cartridge rather than a component with its own Step method.
package interrupts

// Bus is the interrupt/DMA-stall latch shared by the CPU, PPU, and
// cartridge mappers. It is not safe for concurrent use; the system
// runner drives it from a single goroutine per spec.
type Bus struct {
	nmi         bool
	irq         bool
	dmaStall    uint64
	dmaOddExtra bool
}

// RaiseNMI latches a pending non-maskable interrupt. The PPU calls this
// the instant it enters vertical blank with NMI output enabled in
// PPUCTRL; it is level-sensitive from the runner's point of view (it
// stays set until NMIPending takes it).
func (b *Bus) RaiseNMI() {
	b.nmi = true
}

// NMIPending reports whether an NMI is latched and clears it, mirroring
// the edge-triggered "take it once" semantics real 6502 hardware applies
// to NMI.
func (b *Bus) NMIPending() bool {
	if !b.nmi {
		return false
	}
	b.nmi = false
	return true
}

// SetIRQ sets or clears the mapper IRQ line. Unlike NMI this is level
// sensitive and stays asserted until the mapper (e.g. MMC3's IRQ
// acknowledge write) clears it, matching real cartridge IRQ wiring.
func (b *Bus) SetIRQ(asserted bool) {
	b.irq = asserted
}

// IRQAsserted reports whether the IRQ line is currently held low. Unlike
// NMIPending this does not clear the latch — IRQ stays asserted until
// the source clears it.
func (b *Bus) IRQAsserted() bool {
	return b.irq
}

// StallDMA schedules a CPU stall for an OAM DMA transfer, its length
// chosen by whether the CPU sits on an odd cycle.
// Per spec the transfer itself happens synchronously on the $4014
// write; this only accounts for the CPU cycles it costs (513, or 514 on
// an odd CPU cycle).
func (b *Bus) StallDMA(cpuCycleIsOdd bool) {
	b.dmaStall = 513
	b.dmaOddExtra = cpuCycleIsOdd
	if cpuCycleIsOdd {
		b.dmaStall = 514
	}
}

// TakeDMAStall returns the number of cycles the CPU should absorb for a
// pending OAM DMA and clears the latch. Zero means no DMA stall is
// pending.
func (b *Bus) TakeDMAStall() uint64 {
	n := b.dmaStall
	b.dmaStall = 0
	b.dmaOddExtra = false
	return n
}
