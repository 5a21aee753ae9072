// Package bus wires the CPU, PPU, APU, cartridge, and controller ports
// together into a runnable system and drives the interrupt/DMA latch
// they share.
package bus

import (
	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/apu"
	"github.com/nesforge/gones-core/internal/cartridge"
	"github.com/nesforge/gones-core/internal/cpu"
	"github.com/nesforge/gones-core/internal/input"
	"github.com/nesforge/gones-core/internal/interrupts"
	"github.com/nesforge/gones-core/internal/memory"
	"github.com/nesforge/gones-core/internal/ppu"
)

// cyclesPerFrame is the CPU side of NTSC's 89342-PPU-cycle frame (3
// PPU cycles per CPU cycle; the extra 2/3 cycle averages out over the
// odd-frame cycle skip the PPU itself performs).
const cyclesPerFrame = 29780

// Bus is the system runner: it owns every component, steps the CPU one
// instruction at a time, fans each instruction's cycles out to the PPU
// (3x) and APU (1x), and samples the shared interrupts.Bus for NMI,
// mapper IRQ, and OAM DMA stalls.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	cart *cartridge.Cartridge
	irq  *interrupts.Bus

	cpuCycles  uint64
	frameCount uint64

	cfg cpu.Config
}

// Config holds the runner's own knobs, layered on top of the CPU's.
type Config struct {
	CPU cpu.Config
}

// New creates a system bus with no cartridge loaded. LoadCartridge must
// be called before Run/Step will produce anything meaningful, since the
// reset vector lives in PRG ROM.
func New(cfg Config) *Bus {
	b := &Bus{irq: &interrupts.Bus{}, cfg: cfg.CPU}
	b.Input = input.NewInputState()
	b.APU = apu.New()
	return b
}

// LoadCartridge wires a parsed cartridge into the memory map and
// (re)builds the PPU and CPU against it, then runs power-on reset.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.cart = cart
	b.PPU = ppu.New(cart, b.irq)
	b.PPU.SetFrameCompleteCallback(b.onFrameComplete)

	b.Memory = memory.New(b.PPU, b.APU, cart, b.irq)
	b.Memory.SetInputSystem(b.Input)
	b.APU.SetMemoryReader(b.Memory.Read)

	b.CPU = cpu.New(b.Memory, b.irq, b.cfg)
	b.Memory.SetCPUCycleParitySource(b.CPU.CycleParity)
	b.Memory.SetCPUCycleSource(b.CPU.Cycles)

	b.PowerOn()
}

// PowerOn resets the CPU, PPU, APU, and controllers to their power-up
// state. It does not clear RAM; RAM starts zeroed because LoadCartridge
// builds a fresh memory map before calling it.
func (b *Bus) PowerOn() {
	b.CPU.PowerOn()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()
	b.cpuCycles = 0
	b.frameCount = 0
}

// Reset performs a soft reset (the NES reset button): unlike PowerOn
// this leaves RAM and APU channel state alone beyond what the CPU's own
// reset sequence touches.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
}

func (b *Bus) onFrameComplete() {
	b.frameCount++
}

// Step executes one CPU instruction (or DMA/interrupt service cycles,
// which the CPU folds into the same Step call) and advances the PPU and
// APU by the matching number of cycles.
func (b *Bus) Step() error {
	cycles, err := b.CPU.Step()
	if err != nil {
		return err
	}

	for i := uint64(0); i < cycles*3; i++ {
		b.PPU.Step()
	}
	for i := uint64(0); i < cycles; i++ {
		b.APU.Step()
	}

	// Mapper IRQ (MMC3's scanline counter) is level sensitive: it stays
	// asserted until the cartridge itself clears it on an $E000 write,
	// not something the runner acknowledges on its behalf.
	b.irq.SetIRQ(b.cart.IRQPending())

	b.cpuCycles += cycles
	return nil
}

// RunFrame advances the system until the PPU reports one more frame
// complete, returning early with an error if the CPU halts.
func (b *Bus) RunFrame() error {
	target := b.frameCount + 1
	for b.frameCount < target {
		if err := b.Step(); err != nil {
			glog.Errorf("bus: halted mid-frame at frame %d: %v", b.frameCount, err)
			return err
		}
	}
	return nil
}

// RunCycles advances the system by at least the given number of CPU
// cycles, stopping at the instruction boundary that reaches it.
func (b *Bus) RunCycles(cycles uint64) error {
	target := b.cpuCycles + cycles
	for b.cpuCycles < target {
		if err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// FrameBuffer returns the most recently rendered frame as packed
// 0xAARRGGBB pixels, row-major, 256x240.
func (b *Bus) FrameBuffer() []uint32 {
	buf := b.PPU.GetFrameBuffer()
	return buf[:]
}

// AudioSamples drains the APU's pending sample buffer.
func (b *Bus) AudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetAudioSampleRate sets the APU's target output sample rate.
func (b *Bus) SetAudioSampleRate(rate int) {
	b.APU.SetSampleRate(rate)
}

// SetControllerButtons sets all eight button states for controller 1 or 2.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// CycleCount returns the number of CPU cycles executed since power-on.
func (b *Bus) CycleCount() uint64 {
	return b.cpuCycles
}

// FrameCount returns the number of frames the PPU has completed.
func (b *Bus) FrameCount() uint64 {
	return b.frameCount
}

// SaveGame returns the cartridge's battery-backed save RAM, or nil if
// the cartridge has none.
func (b *Bus) SaveGame() []byte {
	return b.cart.SaveRAM()
}

// LoadGame restores previously saved battery-backed RAM into the
// cartridge. Call this after LoadCartridge and before running.
func (b *Bus) LoadGame(data []byte) {
	b.cart.LoadRAM(data)
}
