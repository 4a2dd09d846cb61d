package joypad

import "testing"

func TestDPadSelectReadback(t *testing.T) {
	j := New(func() {})
	j.SetButtons(Right | Up)
	j.WriteJOYP(0x20) // select d-pad (P14=0), buttons deselected (P15=1)
	got := j.ReadJOYP()
	if got&0x01 != 0 {
		t.Fatalf("Right should read low (pressed), got %#02x", got)
	}
	if got&0x04 != 0 {
		t.Fatalf("Up should read low (pressed), got %#02x", got)
	}
	if got&0x02 == 0 || got&0x08 == 0 {
		t.Fatalf("Left/Down unpressed should read high, got %#02x", got)
	}
}

func TestButtonPressFiresIRQOnFallingEdge(t *testing.T) {
	irqs := 0
	j := New(func() { irqs++ })
	j.WriteJOYP(0x10) // select buttons (P15=0)
	j.SetButtons(A)
	if irqs != 1 {
		t.Fatalf("expected 1 IRQ on A press, got %d", irqs)
	}
	j.SetButtons(A) // no new edge
	if irqs != 1 {
		t.Fatalf("holding A should not refire IRQ, got %d", irqs)
	}
}

func TestNoGroupSelectedReadsAllHigh(t *testing.T) {
	j := New(func() {})
	j.SetButtons(A | Right)
	j.WriteJOYP(0x30)
	if got := j.ReadJOYP() & 0x0F; got != 0x0F {
		t.Fatalf("with neither group selected, lower nibble should be 0x0F, got %#02x", got)
	}
}
