// Package input implements the NES controller shift-register protocol.
package input

import "github.com/golang/glog"

// Button is a bitmask identifying one NES controller button.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// openBusBits is ORed onto every controller read: on real hardware the
// upper bits of $4016/$4017 float to whatever was last driven on the
// expansion/controller bus, which in practice reads back as 0x40.
const openBusBits = 0x40

// Controller models one NES controller port: a button-state latch and
// an 8-bit shift register that $4016/$4017 reads serialize out of, one
// bit per read, LSB first.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool
}

// New creates a Controller with no buttons pressed.
func New() *Controller {
	return &Controller{}
}

// SetButton sets or clears a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all eight buttons at once, in A/B/Select/Start/
// Up/Down/Left/Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	var b uint8
	order := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, pressed := range buttons {
		if pressed {
			b |= uint8(order[i])
		}
	}
	c.buttons = b
}

// IsPressed reports whether the given button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles a write to the controller's strobe line. While strobe
// is high the shift register continuously reloads from the live button
// state; the falling edge latches it for serial readout.
func (c *Controller) Write(value uint8) {
	strobe := value&1 != 0
	if strobe {
		c.shiftRegister = c.buttons
	} else if c.strobe && !strobe {
		c.shiftRegister = c.buttons
		glog.V(2).Infof("input: strobe deactivated, latched buttons=0x%02X", c.buttons)
	}
	c.strobe = strobe
}

// Read serializes the next bit out of the shift register. While strobe
// is held high, every read returns the A button's live state and the
// register never advances.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.shiftRegister = c.buttons
		return c.shiftRegister & 1
	}
	bit := c.shiftRegister & 1
	c.shiftRegister = c.shiftRegister>>1 | 0x80
	return bit
}

// Reset clears all button and shift-register state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}

// InputState owns both controller ports and dispatches $4016/$4017
// register access to them.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates an InputState with two fresh controllers.
func NewInputState() *InputState {
	return &InputState{Controller1: New(), Controller2: New()}
}

// Reset resets both controllers.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets controller 1's button state.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets controller 2's button state.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Read dispatches a read to $4016 (controller 1) or $4017 (controller 2).
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read() | openBusBits
	case 0x4017:
		return is.Controller2.Read() | openBusBits
	default:
		return openBusBits
	}
}

// Write broadcasts a $4016 strobe write to both controllers.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
