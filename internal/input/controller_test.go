package input

import "testing"

func TestControllerSerializesButtonsLSBFirst(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, true, false, false, false, false, false})

	c.Write(1) // strobe high
	c.Write(0) // strobe low, latches buttons

	want := []uint8{1, 0, 1, 0, 0, 0, 0, 0}
	for i, w := range want {
		if got := c.Read() & 1; got != w {
			t.Fatalf("bit %d: got %d, want %d", i, got, w)
		}
	}
}

func TestControllerReturnsAllOnesAfterEighthRead(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, true, true, true, true, true, true, true})
	c.Write(1)
	c.Write(0)

	for i := 0; i < 8; i++ {
		c.Read()
	}
	for i := 0; i < 3; i++ {
		if got := c.Read() & 1; got != 1 {
			t.Errorf("read %d past end of register: got %d, want 1", i, got)
		}
	}
}

func TestControllerWhileStrobedAlwaysReturnsButtonA(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.Write(1) // strobe held high

	for i := 0; i < 5; i++ {
		if got := c.Read() & 1; got != 1 {
			t.Fatalf("read %d while strobed: got %d, want 1 (button A)", i, got)
		}
	}
}

func TestInputStateOpenBusBitsSetOnBothPorts(t *testing.T) {
	is := NewInputState()
	is.Write(0x4016, 1)
	is.Write(0x4016, 0)

	if got := is.Read(0x4016); got&openBusBits == 0 {
		t.Errorf("$4016 read 0x%02X missing open-bus bits", got)
	}
	if got := is.Read(0x4017); got&openBusBits == 0 {
		t.Errorf("$4017 read 0x%02X missing open-bus bits", got)
	}
}

func TestInputStateStrobeBroadcastsToBothControllers(t *testing.T) {
	is := NewInputState()
	is.Controller1.SetButton(ButtonA, true)
	is.Controller2.SetButton(ButtonB, true)

	is.Write(0x4016, 1)
	is.Write(0x4016, 0)

	if is.Read(0x4016)&1 != 1 {
		t.Error("controller 1 should report button A pressed")
	}
	is.Read(0x4017) // first bit out is button A
	if is.Read(0x4017)&1 != 1 {
		t.Error("controller 2 should report button B pressed")
	}
}
