package ppu

import (
	"testing"

	"github.com/nesforge/gones-core/internal/cartridge"
	"github.com/nesforge/gones-core/internal/interrupts"
)

type fakeCart struct {
	chr    [0x2000]uint8
	mirror cartridge.MirrorMode
}

func (f *fakeCart) ReadCHR(address uint16) uint8          { return f.chr[address&0x1FFF] }
func (f *fakeCart) WriteCHR(address uint16, value uint8)  { f.chr[address&0x1FFF] = value }
func (f *fakeCart) GetMirrorMode() cartridge.MirrorMode   { return f.mirror }
func (f *fakeCart) OnPPUA12(uint16, bool)                 {}

func newTestPPU() (*PPU, *fakeCart, *interrupts.Bus) {
	cart := &fakeCart{mirror: cartridge.MirrorHorizontal}
	bus := &interrupts.Bus{}
	return New(cart, bus), cart, bus
}

// runTo steps the PPU until it has executed the given dot.
func runTo(p *PPU, scanline, cycle int) {
	for !(p.scanline == scanline && p.cycle == cycle) {
		p.Step()
	}
	p.Step()
}

func TestNMIRaisedAtVBlankStartWhenEnabled(t *testing.T) {
	p, _, bus := newTestPPU()
	p.WriteRegister(0x2000, 0x80) // enable NMI on VBlank

	runTo(p, 241, 1)

	if p.ppuStatus&0x80 == 0 {
		t.Error("expected VBL flag set at scanline 241 cycle 1")
	}
	if !bus.NMIPending() {
		t.Error("expected NMI raised on the interrupt bus")
	}
}

func TestNMINotRaisedWhenDisabled(t *testing.T) {
	p, _, bus := newTestPPU()

	runTo(p, 241, 1)

	if bus.NMIPending() {
		t.Error("expected no NMI when PPUCTRL bit 7 is clear")
	}
}

func TestPPUDataReadIsBufferedExceptPalette(t *testing.T) {
	p, cart, _ := newTestPPU()
	cart.chr[0x0010] = 0x42

	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2006, 0x10) // v = 0x0010, pattern table
	first := p.ReadRegister(0x2007)
	if first == 0x42 {
		t.Error("expected first PPUDATA read to return stale buffered value, not the fresh byte")
	}
	second := p.ReadRegister(0x2007)
	if second != 0x42 {
		t.Errorf("expected second read to return buffered byte 0x42, got 0x%02X", second)
	}

	p.writeVRAM(0x3F01, 0x21)
	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x01) // v = 0x3F01, palette RAM
	if got := p.ReadRegister(0x2007); got != 0x21 {
		t.Errorf("expected palette read to return 0x21 without buffering, got 0x%02X", got)
	}
}

func TestVRAMAddressIncrementsByStepFromCtrl(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x04) // increment by 32
	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00) // v = 0x2000
	p.ReadRegister(0x2007)
	if p.v != 0x2020 {
		t.Errorf("expected v=0x2020 after +32 increment, got 0x%04X", p.v)
	}
}

func TestHorizontalMirroringMapsTopNametablesTogether(t *testing.T) {
	p, _, _ := newTestPPU()
	p.writeVRAM(0x2000, 0xAA)
	if got := p.readVRAM(0x2400); got != 0xAA {
		t.Errorf("horizontal mirroring: $2000 and $2400 should share storage, got 0x%02X", got)
	}
	if got := p.readVRAM(0x2800); got == 0xAA {
		t.Error("horizontal mirroring: $2800 should not share storage with $2000")
	}
}

func TestSpriteOverflowFlagSetPastEighthSprite(t *testing.T) {
	p, _, _ := newTestPPU()
	for i := 0; i < 9; i++ {
		p.oam[i*4] = 10 // all visible on scanline 11
	}
	p.evaluateSprites(11)
	if p.ppuStatus&0x20 == 0 {
		t.Error("expected sprite overflow flag set with 9 sprites on one scanline")
	}
	if p.spriteCount != 8 {
		t.Errorf("expected secondary OAM capped at 8 sprites, got %d", p.spriteCount)
	}
}

func TestWriteOnlyRegisterReadReturnsIOBusLatch(t *testing.T) {
	p, _, _ := newTestPPU()

	p.WriteRegister(0x2000, 0x5A)
	if got := p.ReadRegister(0x2000); got != 0x5A {
		t.Errorf("expected PPUCTRL read to return last I/O bus value 0x5A, got 0x%02X", got)
	}

	p.WriteRegister(0x2006, 0x3F)
	if got := p.ReadRegister(0x2005); got != 0x3F {
		t.Errorf("expected PPUSCROLL read to return last I/O bus value 0x3F, got 0x%02X", got)
	}
}

func TestIOBusLatchUpdatedByDataPortReads(t *testing.T) {
	p, cart, _ := newTestPPU()
	cart.chr[0] = 0x77

	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2006, 0x00) // set v = 0, a CHR address
	p.ReadRegister(0x2007)        // primes the read buffer
	p.ReadRegister(0x2007)        // returns the buffered 0x77

	if got := p.ReadRegister(0x2000); got != 0x77 {
		t.Errorf("expected I/O bus latch updated by $2007 read, got 0x%02X", got)
	}
}
