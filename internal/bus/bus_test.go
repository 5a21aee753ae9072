package bus

import (
	"bytes"
	"testing"

	"github.com/nesforge/gones-core/internal/cartridge"
	"github.com/nesforge/gones-core/internal/cpu"
)

// buildNROM returns a minimal one-bank NROM image whose reset vector
// points at an infinite JMP-self loop, with the given battery flag.
func buildNROM(battery bool) []byte {
	prg := make([]byte, 0x4000)
	prg[0x0000] = 0x4C // JMP $8000
	prg[0x0001] = 0x00
	prg[0x0002] = 0x80
	prg[0x3FFC] = 0x00 // reset vector low -> $8000
	prg[0x3FFD] = 0x80 // reset vector high

	chr := make([]byte, 0x2000)

	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(1) // 1 16KB PRG bank
	buf.WriteByte(1) // 1 8KB CHR bank
	flags6 := byte(0)
	if battery {
		flags6 |= 0x02
	}
	buf.WriteByte(flags6)
	buf.WriteByte(0)
	buf.Write(make([]byte, 8))
	buf.Write(prg)
	buf.Write(chr)
	return buf.Bytes()
}

func newTestBus(t *testing.T, battery bool) (*Bus, *cartridge.Cartridge) {
	t.Helper()
	cart, err := cartridge.LoadFromReader(bytes.NewReader(buildNROM(battery)))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	b := New(Config{CPU: cpu.Config{}})
	b.LoadCartridge(cart)
	return b, cart
}

func TestLoadCartridgeRunsPowerOnReset(t *testing.T) {
	b, _ := newTestBus(t, false)
	if b.CPU == nil || b.PPU == nil || b.Memory == nil {
		t.Fatal("expected components wired after LoadCartridge")
	}
	if b.CycleCount() != 0 {
		t.Errorf("expected zero cycles at power-on, got %d", b.CycleCount())
	}
}

func TestStepAdvancesPPUThreeTimesPerCPUCycle(t *testing.T) {
	b, _ := newTestBus(t, false)
	dotBefore := b.PPU.GetCycle()
	if err := b.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if b.CycleCount() == 0 {
		t.Error("expected cycle count to advance after Step")
	}
	if got, want := uint64(b.PPU.GetCycle()-dotBefore), 3*b.CycleCount(); got != want {
		t.Errorf("expected PPU to advance %d dots for %d CPU cycles, got %d", want, b.CycleCount(), got)
	}
}

func TestRunFrameCompletesAndFillsFrameBuffer(t *testing.T) {
	b, _ := newTestBus(t, false)
	if err := b.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if b.FrameCount() != 1 {
		t.Errorf("expected frame count 1, got %d", b.FrameCount())
	}
	fb := b.FrameBuffer()
	if len(fb) != 256*240 {
		t.Errorf("expected 256x240 frame buffer, got %d pixels", len(fb))
	}
}

func TestSetControllerButtonsRoutesToCorrectPort(t *testing.T) {
	b, _ := newTestBus(t, false)
	pressed := [8]bool{true, false, false, false, false, false, false, false}

	b.SetControllerButtons(1, pressed)
	if !b.Input.Controller1.IsPressed(1) {
		t.Error("expected controller 1 button A pressed")
	}
	if b.Input.Controller2.IsPressed(1) {
		t.Error("expected controller 2 untouched")
	}

	b.SetControllerButtons(2, pressed)
	if !b.Input.Controller2.IsPressed(1) {
		t.Error("expected controller 2 button A pressed")
	}

	// Controller index 0 is not a valid port and must be ignored.
	b.SetControllerButtons(0, [8]bool{})
	if !b.Input.Controller1.IsPressed(1) {
		t.Error("expected controller index 0 to be a no-op")
	}
}

func TestSaveGameRoundTripsBatteryRAM(t *testing.T) {
	b, cart := newTestBus(t, true)

	data := b.SaveGame()
	if data == nil {
		t.Fatal("expected non-nil save data for battery-backed cartridge")
	}
	data[0] = 0x42
	b.LoadGame(data)

	if got := cart.SaveRAM()[0]; got != 0x42 {
		t.Errorf("expected restored save RAM byte 0x42, got 0x%02X", got)
	}
}

func TestSaveGameReturnsNilWithoutBattery(t *testing.T) {
	b, _ := newTestBus(t, false)
	if data := b.SaveGame(); data != nil {
		t.Errorf("expected nil save data for non-battery cartridge, got %d bytes", len(data))
	}
}

func TestResetPreservesCycleCountUnlikePowerOn(t *testing.T) {
	b, _ := newTestBus(t, false)
	if err := b.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	cyclesBeforeReset := b.CycleCount()

	b.Reset()
	if b.CycleCount() != cyclesBeforeReset {
		t.Error("expected soft reset to leave cycle count untouched")
	}

	b.PowerOn()
	if b.CycleCount() != 0 {
		t.Error("expected PowerOn to zero the cycle count")
	}
}
