package cart

import "time"

// nowUnix is the wall-clock source the real-time clock advances against;
// overridden in tests to avoid sleeping.
var nowUnix = func() int64 { return time.Now().Unix() }

// MBC3 implements ROM/RAM banking plus the real-time clock (present for
// every MBC3 cart type; the header's timer bit is not consulted): seconds, minutes, hours, and a 9-bit day counter with
// carry/halt, latched via the 0x00-then-0x01 write sequence to 0x6000-0x7FFF.
// Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank low 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank (00-03) or RTC register select (08-0C)
// - 6000-7FFF: latch clock data (write 0x00 then 0x01)
// - A000-BFFF: external RAM, or the latched RTC register when one is selected
// ROM: bank 0 fixed at 0000-3FFF; switchable 4000-7FFF uses bank (1..127)
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	regSel     byte // 0..3: RAM bank; 0x08..0x0C: RTC register select

	rtcSec, rtcMin, rtcHour int
	rtcDay                  int // 0..511
	rtcHalt, rtcCarry       bool
	lastRTCWallSec          int64

	latchPrev                       byte // last byte written to 6000-7FFF
	latchSec, latchMin, latchHour   int
	latchDay                        int
	latchHalt, latchCarry           bool
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// advanceRTC rolls the live RTC registers forward to the current wall
// clock, carrying seconds into minutes/hours/days and setting the day
// carry flag on 9-bit day-counter overflow. A no-op while halted.
func (m *MBC3) advanceRTC() {
	now := nowUnix()
	if m.rtcHalt {
		m.lastRTCWallSec = now
		return
	}
	delta := now - m.lastRTCWallSec
	if delta <= 0 {
		return
	}
	m.lastRTCWallSec = now

	total := m.rtcSec + m.rtcMin*60 + m.rtcHour*3600 + int(delta)
	m.rtcSec = total % 60
	totalMin := total / 60
	m.rtcMin = totalMin % 60
	totalHour := totalMin / 60
	m.rtcHour = totalHour % 24
	if dayInc := totalHour / 24; dayInc > 0 {
		m.rtcDay += dayInc
		if m.rtcDay > 0x1FF {
			m.rtcDay &= 0x1FF
			m.rtcCarry = true
		}
	}
}

func (m *MBC3) Read(addr uint16) byte {
	m.advanceRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.regSel >= 0x08 && m.regSel <= 0x0C {
			return m.readRTCReg()
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.regSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) readRTCReg() byte {
	switch m.regSel {
	case 0x08:
		return byte(m.latchSec)
	case 0x09:
		return byte(m.latchMin)
	case 0x0A:
		return byte(m.latchHour)
	case 0x0B:
		return byte(m.latchDay & 0xFF)
	case 0x0C:
		v := byte((m.latchDay >> 8) & 0x01)
		if m.latchHalt {
			v |= 0x40
		}
		if m.latchCarry {
			v |= 0x80
		}
		return v
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.advanceRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.regSel = value
	case addr < 0x8000:
		if m.latchPrev == 0x00 && value == 0x01 {
			m.latchSec, m.latchMin, m.latchHour = m.rtcSec, m.rtcMin, m.rtcHour
			m.latchDay = m.rtcDay
			m.latchHalt, m.latchCarry = m.rtcHalt, m.rtcCarry
		}
		m.latchPrev = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.regSel >= 0x08 && m.regSel <= 0x0C {
			m.writeRTCReg(value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.regSel & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) writeRTCReg(value byte) {
	switch m.regSel {
	case 0x08:
		m.rtcSec = int(value % 60)
	case 0x09:
		m.rtcMin = int(value % 60)
	case 0x0A:
		m.rtcHour = int(value % 24)
	case 0x0B:
		m.rtcDay = (m.rtcDay &^ 0xFF) | int(value)
	case 0x0C:
		m.rtcDay = (m.rtcDay & 0xFF) | (int(value&0x01) << 8)
		m.rtcHalt = value&0x40 != 0
		m.rtcCarry = value&0x80 != 0
	}
}

// rtcHeaderLen is the byte size of the RTC header SaveRAM prefixes onto
// external RAM: lastRTCWallSec(8) + sec,min,hour(3) + day-low,day-high(2) + flags(1).
const rtcHeaderLen = 14

// SaveRAM returns external RAM plus the RTC state, for battery persistence.
func (m *MBC3) SaveRAM() []byte {
	out := make([]byte, 0, rtcHeaderLen+len(m.ram))
	var w [8]byte
	putInt64(w[:], m.lastRTCWallSec)
	out = append(out, w[:]...)
	out = append(out, byte(m.rtcSec), byte(m.rtcMin), byte(m.rtcHour))
	out = append(out, byte(m.rtcDay&0xFF), byte((m.rtcDay>>8)&0x01))
	flags := byte(0)
	if m.rtcHalt {
		flags |= 0x01
	}
	if m.rtcCarry {
		flags |= 0x02
	}
	out = append(out, flags)
	out = append(out, m.ram...)
	return out
}

// LoadRAM restores external RAM and RTC state from a SaveRAM image.
func (m *MBC3) LoadRAM(data []byte) {
	if len(data) < rtcHeaderLen {
		copy(m.ram, data)
		return
	}
	m.lastRTCWallSec = getInt64(data[0:8])
	m.rtcSec = int(data[8])
	m.rtcMin = int(data[9])
	m.rtcHour = int(data[10])
	m.rtcDay = int(data[11]) | (int(data[12]&0x01) << 8)
	flags := data[13]
	m.rtcHalt = flags&0x01 != 0
	m.rtcCarry = flags&0x02 != 0
	copy(m.ram, data[rtcHeaderLen:])
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * uint(7-i)))
	}
}

func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u = (u << 8) | uint64(b[i])
	}
	return int64(u)
}
