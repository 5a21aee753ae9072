package interrupts

import "testing"

func TestNMIPendingClearsAfterRead(t *testing.T) {
	b := &Bus{}
	if b.NMIPending() {
		t.Fatal("expected no NMI pending initially")
	}

	b.RaiseNMI()
	if !b.NMIPending() {
		t.Error("expected NMI pending after RaiseNMI")
	}
	if b.NMIPending() {
		t.Error("expected NMI to clear after being taken once")
	}
}

func TestIRQRemainsAssertedUntilCleared(t *testing.T) {
	b := &Bus{}
	b.SetIRQ(true)

	if !b.IRQAsserted() {
		t.Fatal("expected IRQ asserted")
	}
	if !b.IRQAsserted() {
		t.Error("expected IRQAsserted to be level-sensitive (not cleared by reading)")
	}

	b.SetIRQ(false)
	if b.IRQAsserted() {
		t.Error("expected IRQ cleared after SetIRQ(false)")
	}
}

func TestDMAStallCyclesDependOnParity(t *testing.T) {
	b := &Bus{}
	b.StallDMA(false)
	if got := b.TakeDMAStall(); got != 513 {
		t.Errorf("expected 513 cycle stall on even CPU cycle, got %d", got)
	}

	b.StallDMA(true)
	if got := b.TakeDMAStall(); got != 514 {
		t.Errorf("expected 514 cycle stall on odd CPU cycle, got %d", got)
	}
}

func TestTakeDMAStallClearsLatch(t *testing.T) {
	b := &Bus{}
	b.StallDMA(false)
	b.TakeDMAStall()

	if got := b.TakeDMAStall(); got != 0 {
		t.Errorf("expected zero stall after it has already been taken, got %d", got)
	}
}
