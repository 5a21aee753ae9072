package cartridge

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildINES(mapperLow, mapperHigh uint8, prgBanks, chrBanks uint8, battery bool, mirrorVertical bool, prg []byte, chr []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(prgBanks)
	buf.WriteByte(chrBanks)

	flags6 := mapperLow << 4
	if battery {
		flags6 |= 0x02
	}
	if mirrorVertical {
		flags6 |= 0x01
	}
	buf.WriteByte(flags6)
	buf.WriteByte(mapperHigh << 4)
	buf.Write(make([]byte, 8)) // PRGRAMSize, TVSystem1/2, padding[5]

	buf.Write(prg)
	buf.Write(chr)
	return buf.Bytes()
}

func fillPattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = uint8(i)
	}
	return out
}

func TestLoadFromReaderRejectsBadMagic(t *testing.T) {
	data := []byte("BAD\x1A")
	data = append(data, make([]byte, 12)...)
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestMapper0NROMReadsAndMirrors16KB(t *testing.T) {
	prg := fillPattern(16384)
	chr := fillPattern(8192)
	data := buildINES(0, 0, 1, 1, false, false, prg, chr)

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cart.ReadPRG(0x8000) != cart.ReadPRG(0xC000) {
		t.Error("expected single 16KB PRG bank to mirror into $C000")
	}
	if cart.GetMirrorMode() != MirrorHorizontal {
		t.Errorf("expected horizontal mirroring, got %v", cart.GetMirrorMode())
	}
}

func TestMapper2UxROMBankSwitching(t *testing.T) {
	const banks = 4
	prg := make([]byte, 0x4000*banks)
	for b := 0; b < banks; b++ {
		for i := 0; i < 0x4000; i++ {
			prg[b*0x4000+i] = uint8(b)
		}
	}
	data := buildINES(2, 0, banks, 0, false, false, prg, nil)

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	cart.WritePRG(0x8000, 2)
	if got := cart.ReadPRG(0x8000); got != 2 {
		t.Errorf("switchable bank: got %d, want 2", got)
	}
	if got := cart.ReadPRG(0xC000); got != banks-1 {
		t.Errorf("fixed last bank: got %d, want %d", got, banks-1)
	}
}

func TestMapper1MMC1SerialLoadSelectsPRGBank(t *testing.T) {
	const banks = 4
	prg := make([]byte, 0x4000*banks)
	for b := 0; b < banks; b++ {
		for i := 0; i < 0x4000; i++ {
			prg[b*0x4000+i] = uint8(b)
		}
	}
	data := buildINES(1, 0, banks, 1, false, false, prg, fillPattern(0x2000))

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	writeSerial := func(address uint16, value uint8) {
		for i := 0; i < 5; i++ {
			cart.WritePRG(address, (value>>uint(i))&1)
		}
	}

	writeSerial(0x8000, 0x0E) // control: mode 3, vertical mirror
	writeSerial(0xE000, 0x01) // prgBank=1, PRG RAM enabled

	if cart.ReadPRG(0x8000) == 0 {
		t.Error("expected PRG bank 1 to be mapped at $8000 in mode 3")
	}
	last := prg[(banks-1)*0x4000]
	if got := cart.ReadPRG(0xC000); got != last {
		t.Errorf("fixed last bank at $C000: got %d, want %d", got, last)
	}
}

func TestMapper1ResetBitResetsShiftRegister(t *testing.T) {
	data := buildINES(1, 0, 2, 1, false, false, make([]byte, 0x8000), fillPattern(0x2000))
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	m := cart.mapper.(*mapper1)

	cart.WritePRG(0x8000, 1)
	cart.WritePRG(0x8000, 0x80) // bit 7 set: reset
	if m.whichBit != 0 || m.shiftReg != 0 {
		t.Error("expected shift register reset on bit-7-set write")
	}
	if m.control&0x0C != 0x0C {
		t.Error("expected control PRG mode forced to 3 on reset")
	}
}

func TestMapper1IgnoresSecondWriteOnSameCPUCycle(t *testing.T) {
	const banks = 2
	prg := make([]byte, 0x4000*banks)
	for b := 0; b < banks; b++ {
		for i := 0; i < 0x4000; i++ {
			prg[b*0x4000+i] = uint8(b)
		}
	}
	data := buildINES(1, 0, banks, 1, false, false, prg, fillPattern(0x2000))
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	m := cart.mapper.(*mapper1)

	cart.SetCurrentCycle(100)
	cart.WritePRG(0xE000, 1) // bit 0 of prgBank shift sequence

	cart.SetCurrentCycle(100) // same cycle: a read-modify-write's dummy write
	cart.WritePRG(0xE000, 1)  // must be ignored rather than counted as bit 1

	if m.whichBit != 1 {
		t.Errorf("expected repeated same-cycle write to be dropped, whichBit=%d want 1", m.whichBit)
	}

	cart.SetCurrentCycle(101)
	cart.WritePRG(0xE000, 0) // bit 1, distinct cycle: accepted

	if m.whichBit != 2 {
		t.Errorf("expected write on a new cycle to be accepted, whichBit=%d want 2", m.whichBit)
	}
}

func TestMapper4MMC3FixedBankAtE000(t *testing.T) {
	const banks8k = 8 // 8 8KB PRG banks = 64KB
	prg := make([]byte, 0x2000*banks8k)
	for b := 0; b < banks8k; b++ {
		for i := 0; i < 0x2000; i++ {
			prg[b*0x2000+i] = uint8(b)
		}
	}
	data := buildINES(4, 0, uint8(len(prg)/16384), 1, false, false, prg, fillPattern(0x2000))

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got := cart.ReadPRG(0xE000); got != uint8(banks8k-1) {
		t.Errorf("fixed last 8KB bank at $E000: got %d, want %d", got, banks8k-1)
	}
}

func TestMapper4MMC3IRQFiresAfterCounterReachesZero(t *testing.T) {
	prg := make([]byte, 0x2000*8)
	data := buildINES(4, 0, uint8(len(prg)/16384), 1, false, false, prg, fillPattern(0x2000))
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	cart.WritePRG(0xC000, 2) // irq latch = 2
	cart.WritePRG(0xC001, 0) // force reload
	cart.WritePRG(0xE001, 0) // enable IRQ

	for i := 0; i < 3; i++ {
		cart.OnPPUA12(0x0000, true)
		cart.OnPPUA12(0x1000, true) // rising edge
	}

	if !cart.IRQPending() {
		t.Error("expected IRQ pending after counter reload and decrements reach zero")
	}
	cart.AcknowledgeIRQ()
	if cart.IRQPending() {
		t.Error("expected IRQ cleared after AcknowledgeIRQ")
	}
}

func TestUnsupportedMapperReturnsError(t *testing.T) {
	data := buildINES(9, 15, 1, 1, false, false, fillPattern(16384), fillPattern(8192))
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for unsupported mapper")
	}
}

func TestNES20MapperNumberUsesHighNibble(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(1)
	buf.WriteByte(1)
	buf.WriteByte(0 << 4)        // flags6: mapper low nibble = 0
	buf.WriteByte(0x08 | (0x0 << 4)) // flags7: NES2.0 id bits set, mapper mid = 0
	buf.WriteByte(0x01) // byte 8: mapper bits 8-11 = 1
	binary.Write(&buf, binary.LittleEndian, make([]byte, 7))
	buf.Write(fillPattern(16384))
	buf.Write(fillPattern(8192))

	header, err := parseHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	if !header.isNES20() {
		t.Error("expected NES 2.0 identification")
	}
	if got := header.mapperNumber(); got != 0x100 {
		t.Errorf("expected mapper 0x100 from the NES 2.0 high nibble, got 0x%X", got)
	}
}
