// Package joypad models the P1/JOYP button matrix: two button groups
// (d-pad and face/select/start) selected by writing bits 4-5, with an
// active-low 4-bit readback and a joypad interrupt fired on any bit's
// 1->0 transition in the currently selected group(s).
package joypad

// Button bitmasks for SetButtons. A set bit means the button is pressed.
const (
	Right     = 1 << 0
	Left      = 1 << 1
	Up        = 1 << 2
	Down      = 1 << 3
	A         = 1 << 4
	B         = 1 << 5
	SelectBtn = 1 << 6
	Start     = 1 << 7
)

type Joypad struct {
	selectBits byte // last value written to bits 5-4
	pressed    byte // Button* mask of currently held buttons
	lower4     byte // last computed active-low nibble, for edge detection

	requestIRQ func()
}

// New returns a Joypad that calls requestIRQ (raising IF bit 4) on any
// selected button's press edge.
func New(requestIRQ func()) *Joypad {
	return &Joypad{requestIRQ: requestIRQ, lower4: 0x0F}
}

// ReadJOYP returns the P1 register value: bits 7-6 fixed high, bits 5-4
// echo the selection, bits 3-0 reflect the selected group(s), active-low.
func (j *Joypad) ReadJOYP() byte {
	return 0xC0 | (j.selectBits & 0x30) | j.lower4
}

func (j *Joypad) WriteJOYP(v byte) {
	j.selectBits = v & 0x30
	j.recompute()
}

// SetButtons replaces the full set of currently-pressed buttons.
func (j *Joypad) SetButtons(mask byte) {
	j.pressed = mask
	j.recompute()
}

func (j *Joypad) recompute() {
	lower := byte(0x0F)
	if j.selectBits&0x10 == 0 { // P14 low selects d-pad
		if j.pressed&Right != 0 {
			lower &^= 0x01
		}
		if j.pressed&Left != 0 {
			lower &^= 0x02
		}
		if j.pressed&Up != 0 {
			lower &^= 0x04
		}
		if j.pressed&Down != 0 {
			lower &^= 0x08
		}
	}
	if j.selectBits&0x20 == 0 { // P15 low selects buttons
		if j.pressed&A != 0 {
			lower &^= 0x01
		}
		if j.pressed&B != 0 {
			lower &^= 0x02
		}
		if j.pressed&SelectBtn != 0 {
			lower &^= 0x04
		}
		if j.pressed&Start != 0 {
			lower &^= 0x08
		}
	}
	falling := j.lower4 &^ lower
	if falling != 0 && j.requestIRQ != nil {
		j.requestIRQ()
	}
	j.lower4 = lower
}
