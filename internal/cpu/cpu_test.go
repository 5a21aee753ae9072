package cpu

import (
	"errors"
	"testing"

	"github.com/nesforge/gones-core/internal/interrupts"
	"github.com/nesforge/gones-core/internal/nerr"
)

// flatMemory is a minimal MemoryInterface backed by a flat 64K array,
// used the way the teacher's tests mock memory for CPU-only scenarios.
type flatMemory struct {
	ram [0x10000]uint8
}

func (m *flatMemory) Read(address uint16) uint8  { return m.ram[address] }
func (m *flatMemory) Write(address uint16, v uint8) { m.ram[address] = v }

func newTestCPU(mem *flatMemory) (*CPU, *interrupts.Bus) {
	bus := &interrupts.Bus{}
	c := New(mem, bus, Config{Undocumented: UndocCommon})
	return c, bus
}

func TestPowerOnReadsResetVector(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	c, _ := newTestCPU(mem)

	c.PowerOn()

	if c.PC != 0x8000 {
		t.Fatalf("PC = %#04x, want %#04x", c.PC, 0x8000)
	}
	if c.SP != 0xFD {
		t.Fatalf("SP = %#02x, want 0xFD", c.SP)
	}
	if !c.I {
		t.Fatal("I flag should be set after power-on")
	}
	if c.cycles != 7 {
		t.Fatalf("reset sequence took %d cycles, want 7", c.cycles)
	}
}

func TestResetDoesNotClearRAM(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x34
	mem.ram[resetVector+1] = 0x12
	mem.ram[0x0010] = 0xAB
	c, _ := newTestCPU(mem)
	c.PowerOn()
	c.SP = 0xF0

	c.Reset()

	if mem.ram[0x0010] != 0xAB {
		t.Fatalf("Reset must not clear RAM, got %#02x", mem.ram[0x0010])
	}
	if c.PC != 0x1234 {
		t.Fatalf("PC = %#04x, want 0x1234", c.PC)
	}
	if c.SP != 0xED {
		t.Fatalf("soft reset should leave SP -= 3, got %#02x", c.SP)
	}
}

// ADC must detect signed overflow (0x7F + 0x01 => 0x80, V set) even
// though the NES never uses decimal mode.
func TestADCBinaryOverflow(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	// LDA #$7F ; ADC #$01
	mem.ram[0x8000] = 0xA9
	mem.ram[0x8001] = 0x7F
	mem.ram[0x8002] = 0x69
	mem.ram[0x8003] = 0x01
	c, _ := newTestCPU(mem)
	c.PowerOn()

	if _, err := c.Step(); err != nil {
		t.Fatalf("LDA step: %v", err)
	}
	if _, err := c.Step(); err != nil {
		t.Fatalf("ADC step: %v", err)
	}

	if c.A != 0x80 {
		t.Fatalf("A = %#02x, want 0x80", c.A)
	}
	if !c.V {
		t.Fatal("overflow flag should be set for 0x7F + 0x01")
	}
	if c.C {
		t.Fatal("carry flag should be clear for 0x7F + 0x01")
	}
	if !c.N {
		t.Fatal("negative flag should be set, result is 0x80")
	}
}

func TestSBCBorrowClearsCarry(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	// SEC ; LDA #$00 ; SBC #$01 -> 0xFF, carry clear (borrow occurred)
	mem.ram[0x8000] = 0x38
	mem.ram[0x8001] = 0xA9
	mem.ram[0x8002] = 0x00
	mem.ram[0x8003] = 0xE9
	mem.ram[0x8004] = 0x01
	c, _ := newTestCPU(mem)
	c.PowerOn()

	for i := 0; i < 3; i++ {
		if _, err := c.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if c.A != 0xFF {
		t.Fatalf("A = %#02x, want 0xFF", c.A)
	}
	if c.C {
		t.Fatal("carry should be clear, a borrow occurred")
	}
}

func TestKILOpcodeHalts(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	mem.ram[0x8000] = 0x02 // KIL
	c, _ := newTestCPU(mem)
	c.PowerOn()

	_, err := c.Step()
	if !errors.Is(err, nerr.ErrCPUHalted) {
		t.Fatalf("err = %v, want ErrCPUHalted", err)
	}
}

func TestNMIPendingServicedBetweenInstructions(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	mem.ram[nmiVector] = 0x00
	mem.ram[nmiVector+1] = 0x90
	mem.ram[0x8000] = 0xEA // NOP
	c, irq := newTestCPU(mem)
	c.PowerOn()
	startSP := c.SP

	irq.RaiseNMI()
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if cycles != 7 {
		t.Fatalf("NMI service should take 7 cycles, got %d", cycles)
	}
	if c.PC != 0x9000 {
		t.Fatalf("PC = %#04x, want 0x9000 after NMI vector dispatch", c.PC)
	}
	if c.SP != startSP-3 {
		t.Fatalf("NMI should push 3 bytes (PC hi/lo + status), SP moved by %d", startSP-c.SP)
	}
	if irq.NMIPending() {
		t.Fatal("NMI should be a one-shot latch, consumed by the previous Step")
	}
}

func TestDMAStallAbsorbsCyclesWithoutExecutingInstructions(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	mem.ram[0x8000] = 0xEA
	c, irq := newTestCPU(mem)
	c.PowerOn()

	irq.StallDMA(false)
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if cycles != 513 {
		t.Fatalf("DMA stall = %d cycles, want 513", cycles)
	}
	if c.PC != 0x8000 {
		t.Fatal("DMA stall must not advance PC / execute an instruction")
	}

	irq.StallDMA(true)
	cycles, err = c.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if cycles != 514 {
		t.Fatalf("DMA stall on odd cycle = %d cycles, want 514", cycles)
	}
}

func TestUndocOffLeavesUnofficialOpcodesUnmapped(t *testing.T) {
	mem := &flatMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	mem.ram[0x8000] = 0xA7 // LAX zero page, unofficial
	bus := &interrupts.Bus{}
	c := New(mem, bus, Config{Undocumented: UndocOff})
	c.PowerOn()

	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if cycles != 2 {
		t.Fatalf("unmapped opcode should fall through as a 2-cycle NOP, got %d", cycles)
	}
}
