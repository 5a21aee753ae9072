package cartridge

import (
	"encoding/binary"
	"io"

	"github.com/golang/glog"

	"github.com/nesforge/gones-core/internal/nerr"
)

// iNESHeader is the 16-byte header every iNES/NES 2.0 ROM image starts
// with. Byte 8 (MapperMSB) doubles as the NES 2.0 mapper-number high
// nibble; bytes 9-10 (ROMSizeMSB/PRGRAMShift) are NES 2.0-only
// extensions plain iNES images leave zeroed.
type iNESHeader struct {
	Magic       [4]uint8
	PRGROMSize  uint8 // 16KB units
	CHRROMSize  uint8 // 8KB units
	Flags6      uint8
	Flags7      uint8
	MapperMSB   uint8 // NES 2.0: mapper bits 8-11 (low nibble) + submapper (high nibble)
	ROMSizeMSB  uint8 // NES 2.0: PRG-ROM size MSB (low nibble), CHR-ROM size MSB (high nibble)
	PRGRAMShift uint8 // NES 2.0: PRG-RAM shift count (low nibble), PRG-NVRAM shift count (high nibble)
	Padding     [5]uint8
}

// isNES20 reports whether the header's byte 7 identification bits (2,3)
// read 2, the NES 2.0 marker.
func (h *iNESHeader) isNES20() bool {
	return h.Flags7&0x0C == 0x08
}

// mapperNumber assembles the 8-bit (iNES) or 12-bit (NES 2.0) mapper id
// from the header's nibbles.
func (h *iNESHeader) mapperNumber() uint16 {
	low := uint16(h.Flags6 >> 4)
	mid := uint16(h.Flags7 & 0xF0)
	number := low | mid
	if h.isNES20() {
		number |= uint16(h.MapperMSB&0x0F) << 8
	}
	return number
}

// prgNVRAMSize follows the NES 2.0 §5.4 convention for a ROM's
// persistent (battery-backed) PRG-RAM size: 64 << nibble bytes, 0
// meaning none. The shift count lives in the high nibble of byte 10;
// the low nibble is volatile PRG-RAM, which this emulator doesn't
// distinguish from battery RAM since both are modeled as one SRAM
// array.
func (h *iNESHeader) prgNVRAMSize() int {
	if !h.isNES20() {
		if h.Flags6&0x02 != 0 {
			return 0x2000
		}
		return 0
	}
	nibble := (h.PRGRAMShift >> 4) & 0x0F
	if nibble == 0 {
		return 0
	}
	return 64 << nibble
}

// romSize computes a PRG- or CHR-ROM size in bytes from its iNES
// single-byte count plus, for NES 2.0 images, the matching MSB nibble
// from byte 9. A 0xF MSB nibble selects NES 2.0's exponent-multiplier
// notation for ROMs that don't fit the linear encoding, which this
// emulator doesn't implement.
func romSize(lsb, msbNibble uint8, unit int, isNES20 bool) (int, error) {
	if !isNES20 || msbNibble == 0 {
		return int(lsb) * unit, nil
	}
	if msbNibble == 0x0F {
		return 0, nerr.ErrUnsupportedFormat
	}
	return (int(msbNibble)<<8 | int(lsb)) * unit, nil
}

func parseHeader(r io.Reader) (iNESHeader, error) {
	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return header, err
	}
	if string(header.Magic[:]) != "NES\x1A" {
		return header, nerr.ErrBadHeader
	}
	if header.PRGROMSize == 0 {
		return header, nerr.ErrUnsupportedFormat
	}
	return header, nil
}

// LoadFromReader parses an iNES or NES 2.0 ROM image and constructs a
// Cartridge with the mapper its header names.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	header, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	cart := &Cartridge{
		mapperID:   header.mapperNumber(),
		hasBattery: header.Flags6&0x02 != 0,
	}

	switch {
	case header.Flags6&0x08 != 0:
		cart.mirror = MirrorFourScreen
	case header.Flags6&0x01 != 0:
		cart.mirror = MirrorVertical
	default:
		cart.mirror = MirrorHorizontal
	}

	if header.Flags6&0x04 != 0 {
		trainer := make([]uint8, 512)
		if _, err := io.ReadFull(r, trainer); err != nil {
			return nil, err
		}
	}

	prgSize, err := romSize(header.PRGROMSize, header.ROMSizeMSB&0x0F, 16384, header.isNES20())
	if err != nil {
		return nil, err
	}
	cart.prgROM = make([]uint8, prgSize)
	if _, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, err
	}

	chrSize, err := romSize(header.CHRROMSize, (header.ROMSizeMSB>>4)&0x0F, 8192, header.isNES20())
	if err != nil {
		return nil, err
	}
	if chrSize > 0 {
		cart.chrROM = make([]uint8, chrSize)
		if _, err := io.ReadFull(r, cart.chrROM); err != nil {
			return nil, err
		}
	} else {
		cart.chrROM = make([]uint8, 8192)
		cart.hasCHRRAM = true
	}

	if nvram := header.prgNVRAMSize(); nvram > 0 {
		cart.sram = make([]uint8, nvram)
	} else {
		cart.sram = make([]uint8, 0x2000)
	}

	mapper, err := createMapper(cart.mapperID, cart)
	if err != nil {
		return nil, err
	}
	cart.mapper = mapper

	glog.V(1).Infof("cartridge: mapper %d, prg=%dKB, chr=%dKB, battery=%v, nes2.0=%v",
		cart.mapperID, len(cart.prgROM)/1024, len(cart.chrROM)/1024, cart.hasBattery, header.isNES20())

	return cart, nil
}
