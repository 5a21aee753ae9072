// Package app provides battery-backed save RAM persistence for the NES
// emulator. Full save-state snapshotting (CPU/PPU/APU/memory) is outside
// this emulator's scope; what a cartridge's own battery would have kept
// across power cycles is not.
package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/bus"
)

// StateManager persists cartridge save RAM to disk, one file per ROM.
type StateManager struct {
	saveDirectory string
	initialized   bool
}

// NewStateManager creates a save RAM manager rooted at saveDirectory.
func NewStateManager(saveDirectory string) *StateManager {
	manager := &StateManager{saveDirectory: saveDirectory}

	if err := manager.initialize(); err != nil {
		glog.Warningf("app: save data directory initialization failed: %v", err)
	}

	return manager
}

func (sm *StateManager) initialize() error {
	if err := os.MkdirAll(sm.saveDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %v", err)
	}
	sm.initialized = true
	return nil
}

// SaveState writes the cartridge's current battery RAM to disk, keyed by
// ROM path. It is a no-op if the cartridge has no battery RAM.
func (sm *StateManager) SaveState(b *bus.Bus, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	data := b.SaveGame()
	if len(data) == 0 {
		return nil
	}

	path := sm.saveFilePath(romPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write save data: %v", err)
	}
	return nil
}

// LoadState restores previously saved battery RAM for the given ROM, if
// a save file exists. Missing save data is not an error: a cartridge
// without prior saves starts with RAM zeroed by Bus.LoadCartridge.
func (sm *StateManager) LoadState(b *bus.Bus, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	path := sm.saveFilePath(romPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read save data: %v", err)
	}

	b.LoadGame(data)
	return nil
}

// HasSaveState reports whether save data exists for the given ROM.
func (sm *StateManager) HasSaveState(romPath string) bool {
	_, err := os.Stat(sm.saveFilePath(romPath))
	return err == nil
}

// GetSaveDirectory returns the save data directory path.
func (sm *StateManager) GetSaveDirectory() string {
	return sm.saveDirectory
}

// SetSaveDirectory changes the save data directory, creating it if needed.
func (sm *StateManager) SetSaveDirectory(directory string) error {
	sm.saveDirectory = directory
	return sm.initialize()
}

// Cleanup releases state manager resources.
func (sm *StateManager) Cleanup() error {
	sm.initialized = false
	return nil
}

// saveFilePath derives a save file name from the ROM path. Hashing the
// full path (rather than just the base name) keeps two same-named ROMs
// from different directories from colliding.
func (sm *StateManager) saveFilePath(romPath string) string {
	romName := filepath.Base(romPath)
	ext := filepath.Ext(romName)
	stem := romName[:len(romName)-len(ext)]

	sum := sha1.Sum([]byte(romPath))
	fileName := fmt.Sprintf("%s_%s.sav", stem, hex.EncodeToString(sum[:4]))
	return filepath.Join(sm.saveDirectory, fileName)
}
