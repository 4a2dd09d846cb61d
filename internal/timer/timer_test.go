package timer

import "testing"

func TestTIMAIncrementsOnFallingEdge(t *testing.T) {
	irqs := 0
	tm := New(func() { irqs++ })
	tm.WriteTAC(0x05) // enabled, rate select 01 -> bit 3
	// Bit 3 rises at tick 8 and falls again at tick 16; the first falling
	// edge (the one that increments TIMA) only happens at tick 16.
	tm.Tick(1 << 4)
	if tm.ReadTIMA() != 1 {
		t.Fatalf("TIMA got %d want 1 after one falling edge", tm.ReadTIMA())
	}
}

func TestOverflowReloadsAfterDelay(t *testing.T) {
	irqs := 0
	tm := New(func() { irqs++ })
	tm.WriteTAC(0x05)
	tm.WriteTMA(0x42)
	tm.WriteTIMA(0xFF)
	tm.Tick(16) // one falling edge -> overflow -> reloadDelay=4
	if tm.ReadTIMA() != 0x00 {
		t.Fatalf("TIMA should read 0 immediately after overflow, got %#02x", tm.ReadTIMA())
	}
	tm.Tick(4)
	if tm.ReadTIMA() != 0x42 {
		t.Fatalf("TIMA got %#02x want TMA=0x42 after reload delay", tm.ReadTIMA())
	}
	if irqs != 1 {
		t.Fatalf("expected exactly one timer IRQ, got %d", irqs)
	}
}

func TestWriteTIMADuringReloadCancelsIt(t *testing.T) {
	tm := New(func() {})
	tm.WriteTAC(0x05)
	tm.WriteTMA(0x42)
	tm.WriteTIMA(0xFF)
	tm.Tick(16) // triggers overflow, reloadDelay=4
	tm.WriteTIMA(0x10)
	tm.Tick(4)
	if tm.ReadTIMA() != 0x10 {
		t.Fatalf("TIMA got %#02x want 0x10 (reload should have been cancelled)", tm.ReadTIMA())
	}
}

func TestDIVWriteResets(t *testing.T) {
	tm := New(func() {})
	tm.Tick(300)
	if tm.ReadDIV() == 0 {
		t.Fatalf("DIV should have advanced")
	}
	tm.WriteDIV(0xFF)
	if tm.ReadDIV() != 0 {
		t.Fatalf("DIV write of any value should reset to 0, got %#02x", tm.ReadDIV())
	}
}
