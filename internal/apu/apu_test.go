package apu

import "testing"

func TestNewEnablesFrameIRQByDefault(t *testing.T) {
	a := New()
	if !a.frameIRQEnable {
		t.Error("expected frame IRQ enabled by default")
	}
	if a.noise.shiftRegister != 1 {
		t.Errorf("expected noise LFSR seeded to 1, got %d", a.noise.shiftRegister)
	}
}

func TestPulseChannelSilentWithoutLengthCounter(t *testing.T) {
	a := New()
	a.WriteRegister(0x4000, 0xFF) // 75% duty, constant volume 15
	a.WriteRegister(0x4002, 0x80) // timer in audible range
	a.WriteRegister(0x4003, 0x00) // loads the length counter
	a.WriteRegister(0x4015, 0x00) // pulse 1 disabled: length counter cleared

	if got := a.getPulseOutput(&a.pulse1); got != 0 {
		t.Errorf("expected silent pulse with zero length counter, got %d", got)
	}
}

func TestChannelEnableGatesLengthCounter(t *testing.T) {
	a := New()
	a.WriteRegister(0x4000, 0x30) // constant volume
	a.WriteRegister(0x4003, 0x08) // sets a nonzero length counter

	a.WriteRegister(0x4015, 0x01) // enable pulse 1
	if a.pulse1.lengthCounter == 0 {
		t.Error("expected nonzero length counter once channel enabled and timer-high written")
	}

	a.WriteRegister(0x4015, 0x00) // disable pulse 1
	if a.pulse1.lengthCounter != 0 {
		t.Error("expected length counter cleared when channel disabled")
	}
}

func TestStatusReadClearsFrameIRQFlag(t *testing.T) {
	a := New()
	a.frameIRQFlag = true

	status := a.ReadStatus()
	if status&0x40 == 0 {
		t.Error("expected frame IRQ bit set in status before read clears it")
	}
	if a.frameIRQFlag {
		t.Error("expected reading status to clear the frame IRQ flag")
	}
}

func TestWriteFrameCounterFiveStepClocksImmediately(t *testing.T) {
	a := New()
	a.WriteRegister(0x4000, 0x10) // constant volume, length counter not halted
	a.WriteRegister(0x4003, 0x08)
	a.WriteRegister(0x4015, 0x01)

	before := a.pulse1.lengthCounter
	a.WriteRegister(0x4017, 0x80) // 5-step mode triggers an immediate clock
	if a.pulse1.lengthCounter >= before {
		t.Error("expected immediate length-counter clock on 5-step frame counter write")
	}
}

func TestSetSampleRateResetsAccumulator(t *testing.T) {
	a := New()
	a.cycleAccumulator = 0.75
	a.SetSampleRate(48000)
	if a.cycleAccumulator != 0 {
		t.Error("expected cycle accumulator reset on sample rate change")
	}
	if a.GetSampleRate() != 48000 {
		t.Errorf("expected sample rate 48000, got %d", a.GetSampleRate())
	}
}

func TestStepProducesSamplesOverTime(t *testing.T) {
	a := New()
	a.SetSampleRate(44100)

	for i := 0; i < 100; i++ {
		a.Step()
	}

	samples := a.GetSamples()
	if len(samples) == 0 {
		t.Error("expected at least one sample after 100 CPU cycles at 44.1kHz")
	}

	if again := a.GetSamples(); len(again) != 0 {
		t.Error("expected GetSamples to drain the buffer")
	}
}

func TestDMCMemoryReaderUsedForSampleFetch(t *testing.T) {
	a := New()
	var readAddr uint16
	a.SetMemoryReader(func(addr uint16) uint8 {
		readAddr = addr
		return 0xAA
	})

	a.WriteRegister(0x4012, 0x00) // sample address $C000
	a.WriteRegister(0x4013, 0x00) // sample length 1
	a.WriteRegister(0x4015, 0x10) // enable DMC, starts playback

	for i := 0; i < 600; i++ {
		a.stepDMCTimer(&a.dmc)
	}

	if readAddr != 0xC000 {
		t.Errorf("expected DMC to fetch from $C000, got $%04X", readAddr)
	}
}

func TestResetClearsSampleBufferAndFlags(t *testing.T) {
	a := New()
	a.sampleBuffer = append(a.sampleBuffer, 0.5, -0.5)
	a.frameIRQFlag = true
	a.channelEnable[0] = true

	a.Reset()

	if len(a.sampleBuffer) != 0 {
		t.Error("expected Reset to clear the sample buffer")
	}
	if a.frameIRQFlag {
		t.Error("expected Reset to clear frame IRQ flag")
	}
	if a.channelEnable[0] {
		t.Error("expected Reset to clear channel enables")
	}
}
