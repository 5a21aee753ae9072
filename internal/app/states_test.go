package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nesforge/gones-core/internal/bus"
	"github.com/nesforge/gones-core/internal/cartridge"
	"github.com/nesforge/gones-core/internal/cpu"
)

func buildBatteryNROM() []byte {
	prg := make([]byte, 0x4000)
	prg[0x3FFC] = 0x00
	prg[0x3FFD] = 0x80

	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(1)
	buf.WriteByte(1)
	buf.WriteByte(0x02) // battery flag
	buf.WriteByte(0)
	buf.Write(make([]byte, 8))
	buf.Write(prg)
	buf.Write(make([]byte, 0x2000))
	return buf.Bytes()
}

func newTestBusWithBattery(t *testing.T) *bus.Bus {
	t.Helper()
	cart, err := cartridge.LoadFromReader(bytes.NewReader(buildBatteryNROM()))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	b := bus.New(bus.Config{CPU: cpu.Config{}})
	b.LoadCartridge(cart)
	return b
}

func TestStateManagerSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sm := NewStateManager(dir)

	b := newTestBusWithBattery(t)

	data := b.SaveGame()
	data[0] = 0x7E
	b.LoadGame(data)

	romPath := filepath.Join(dir, "game.nes")
	if err := sm.SaveState(b, romPath); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if !sm.HasSaveState(romPath) {
		t.Error("expected HasSaveState true after SaveState")
	}

	b2 := newTestBusWithBattery(t)
	if err := sm.LoadState(b2, romPath); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := b2.SaveGame()[0]; got != 0x7E {
		t.Errorf("expected restored save RAM byte 0x7E, got 0x%02X", got)
	}
}

func TestStateManagerLoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	sm := NewStateManager(dir)
	b := newTestBusWithBattery(t)

	if err := sm.LoadState(b, filepath.Join(dir, "nonexistent.nes")); err != nil {
		t.Errorf("expected no error for missing save file, got %v", err)
	}
}

func TestStateManagerSavePathsForSameNameDifferentDirsDontCollide(t *testing.T) {
	dir := t.TempDir()
	sm := NewStateManager(dir)

	pathA := sm.saveFilePath(filepath.Join("roms", "a", "game.nes"))
	pathB := sm.saveFilePath(filepath.Join("roms", "b", "game.nes"))

	if pathA == pathB {
		t.Error("expected distinct save paths for same-named ROMs in different directories")
	}
}

func TestStateManagerSetSaveDirectoryCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	sm := NewStateManager(filepath.Join(dir, "initial"))

	newDir := filepath.Join(dir, "changed")
	if err := sm.SetSaveDirectory(newDir); err != nil {
		t.Fatalf("SetSaveDirectory: %v", err)
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Errorf("expected new save directory to exist: %v", err)
	}
	if sm.GetSaveDirectory() != newDir {
		t.Errorf("expected GetSaveDirectory %q, got %q", newDir, sm.GetSaveDirectory())
	}
}
