// Package cpu implements the SM83 fetch/decode/execute pipeline: the
// unprefixed and CB-prefixed opcode tables, flag-exact arithmetic, and
// interrupt/halt servicing described in spec.md §4.2.
package cpu

import (
	"github.com/coelacanth/pocketdmg/internal/bus"
)

// Flag bits within F. The low nibble of F is always zero.
const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

// CPU holds SM83 register state and drives execution against a Bus.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME       bool
	halted    bool
	eiPending bool // set by EI; IME goes true at the end of the *following* Step
	haltBug   bool // one-shot: suppress PC++ on the next fetch8 (see cpu.go HALT)

	bus *bus.Bus

	Trace Tracer
}

// New creates a CPU wired to b, registers zeroed (PC=0, SP=0).
// Callers use ResetPostBoot or SetPC/SP to establish a starting state.
func New(b *bus.Bus) *CPU {
	return &CPU{bus: b}
}

func (c *CPU) SetPC(pc uint16) { c.PC = pc }
func (c *CPU) Bus() *bus.Bus   { return c.bus }
func (c *CPU) Halted() bool    { return c.halted }

// ResetPostBoot sets registers to the values commonly accepted for a DMG
// console immediately after the boot ROM hands off control (spec.md §3).
func (c *CPU) ResetPostBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.halted = false
	c.eiPending = false
	c.haltBug = false
}

func (c *CPU) zFlag() bool { return c.F&flagZ != 0 }
func (c *CPU) nFlag() bool { return c.F&flagN != 0 }
func (c *CPU) hFlag() bool { return c.F&flagH != 0 }
func (c *CPU) cFlag() bool { return c.F&flagC != 0 }

func (c *CPU) setFlags(z, n, h, cy bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if cy {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.PC++
	}
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | hi<<8
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | hi<<8
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

// r8 reads one of the eight 8-bit operand slots (index 6 is [HL]).
func (c *CPU) r8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setR8(idx byte, v byte) {
	switch idx & 7 {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

// r16 reads BC/DE/HL/SP selected by a 2-bit index (the "R16" operand kind).
func (c *CPU) r16(idx byte) uint16 {
	switch idx & 3 {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		return c.getHL()
	default:
		return c.SP
	}
}

func (c *CPU) setR16(idx byte, v uint16) {
	switch idx & 3 {
	case 0:
		c.setBC(v)
	case 1:
		c.setDE(v)
	case 2:
		c.setHL(v)
	default:
		c.SP = v
	}
}

// r16Stack reads/writes BC/DE/HL/AF, used by PUSH/POP (the "R16-stack" kind).
func (c *CPU) r16Stack(idx byte) uint16 {
	if idx&3 == 3 {
		return c.getAF()
	}
	return c.r16(idx)
}

func (c *CPU) setR16Stack(idx byte, v uint16) {
	if idx&3 == 3 {
		c.setAF(v)
		return
	}
	c.setR16(idx, v)
}

// r16MemAddr resolves [BC]/[DE]/[HL+]/[HL-] (the "R16-memory" kind), applying
// the HL post-increment/decrement as a side effect.
func (c *CPU) r16MemAddr(idx byte) uint16 {
	switch idx & 3 {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		hl := c.getHL()
		c.setHL(hl + 1)
		return hl
	default:
		hl := c.getHL()
		c.setHL(hl - 1)
		return hl
	}
}

func (c *CPU) cond(idx byte) bool {
	switch idx & 3 {
	case 0:
		return !c.zFlag()
	case 1:
		return c.zFlag()
	case 2:
		return !c.cFlag()
	default:
		return c.cFlag()
	}
}

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}
