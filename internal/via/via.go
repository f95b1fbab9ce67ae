// Package via implements the Synertek SY6522 Versatile Interface
// Adapter as wired into a compact Macintosh: register A carries the
// ROM overlay bit, sound volume/buffer select, and disk SEL line;
// register B carries the real-time-clock serial lines, mouse switch,
// HBlank, and sound enable. Grounded on original_source's
// core/src/mac/via.rs register layout and address decode.
package via

import "github.com/sirupsen/logrus"

// 6522 register indices, selected by (addr>>9)&0xF on a compact Mac,
// matching via.rs's address constants (0xE1FE == register 0, ORB; etc.)
const (
	regORB = iota
	regORA
	regDDRB
	regDDRA
	regT1CL
	regT1CH
	regT1LL
	regT1LH
	regT2CL
	regT2CH
	regSR
	regACR
	regPCR
	regIFR
	regIER
	regORANoHandshake
)

// Interrupt flag/enable bits (RegisterIRQ in via.rs).
const (
	IRQOnesec = 1 << iota
	IRQVBlank
	IRQKbdReady
	IRQKbdData
	IRQKbdClock
	IRQT2
	IRQT1
)

// Register A bits (overlay/sound/disk), via.rs RegisterA.
const (
	ARegSoundMask = 0x3
	ARegSndPg2    = 1 << 3
	ARegOverlay   = 1 << 4
	ARegSel       = 1 << 5
	ARegPage2     = 1 << 6
	ARegSCCWrReq  = 1 << 7
)

// Register B bits, via.rs RegisterB.
const (
	BRegRTCData = 1 << 0
	BRegRTCClk  = 1 << 1
	BRegRTCEnb  = 1 << 2
	BRegSW      = 1 << 3
	BRegX2      = 1 << 4
	BRegY2      = 1 << 5
	BRegH4      = 1 << 6
	BRegSndEnb  = 1 << 7
)

// OverlayObserver is notified whenever the overlay bit in register A
// changes, so the bus can flip its ROM/RAM mapping (spec.md section
// 4.6).
type OverlayObserver interface {
	SetOverlay(on bool)
}

// VIA is one Synertek SY6522. A Mac Plus has one instance (VIA1); a
// Mac II class machine adds a second (VIA2) wired to different
// interrupt sources but the same register semantics.
type VIA struct {
	Log *logrus.Entry

	aOut, aIn, ddrA uint8
	bOut, bIn, ddrB uint8

	ier, ifr uint8
	acr, pcr uint8

	t1c, t1l uint16
	t2c, t2l uint16
	t1Enable, t2Enable bool

	sr uint8

	overlay OverlayObserver
}

// New creates a VIA with both data-direction registers set to 0xFF
// (all-output) and both output and input registers high.
func New(log *logrus.Entry) *VIA {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &VIA{
		Log:  log.WithField("component", "via"),
		aOut: 0xFF, bOut: 0xFF,
		aIn: 0xFF, bIn: 0xFF,
		ddrA: 0xFF, ddrB: 0xFF,
	}
}

// SetOverlayObserver wires the bus (or other overlay consumer) so that
// writes to register A's overlay bit propagate.
func (v *VIA) SetOverlayObserver(o OverlayObserver) { v.overlay = o }

// SetInputBit lets external wiring (keyboard, mouse, HBlank) drive the
// input-latch half of register A/B independent of DDR.
func (v *VIA) SetInputBit(reg *uint8, bit uint8, on bool) {
	if on {
		*reg |= bit
	} else {
		*reg &^= bit
	}
}

func (v *VIA) regA() uint8 { return (v.aIn &^ v.ddrA) | (v.aOut & v.ddrA) }
func (v *VIA) regB() uint8 { return (v.bIn &^ v.ddrB) | (v.bOut & v.ddrB) }

func (v *VIA) raiseIFR(bit uint8) { v.ifr |= bit }
func (v *VIA) clearIFR(bit uint8) { v.ifr &^= bit }

// Reset implements the Peripheral contract.
func (v *VIA) Reset() {
	v.ier, v.ifr = 0, 0
	v.t1c, v.t1l, v.t2c, v.t2l = 0, 0, 0, 0
	v.t1Enable, v.t2Enable = false, false
}

// Tick decrements the free-running timers and raises their interrupt
// flags on underflow, per the 6522's one-shot/free-run ACR bit 6/5
// conventions.
func (v *VIA) Tick(cycles int) int {
	for i := 0; i < cycles; i++ {
		if v.t1Enable {
			if v.t1c == 0 {
				v.raiseIFR(IRQT1)
				if v.acr&0x40 != 0 { // free-run: reload from latch
					v.t1c = v.t1l
				} else {
					v.t1Enable = false
				}
			} else {
				v.t1c--
			}
		}
		if v.t2Enable {
			if v.t2c == 0 {
				v.raiseIFR(IRQT2)
				v.t2Enable = false
			} else {
				v.t2c--
			}
		}
	}
	return cycles
}

// IRQ implements bus.IRQSource: any enabled flag bit set asserts level
// 1, the VIA's fixed autovector priority on a Mac Plus.
func (v *VIA) IRQ() (uint8, bool) {
	if v.ifr&v.ier != 0 {
		return 1, true
	}
	return 0, false
}

// ReadByte/WriteByte implement bus.MappedDevice using the compact Mac's
// odd-byte, 512-byte-stride register decode ((addr>>9)&0xF selects the
// 6522 register).
func (v *VIA) ReadByte(addr uint32) (uint8, bool) {
	switch (addr >> 9) & 0xF {
	case regORB:
		v.clearIFR(IRQKbdData | IRQKbdClock)
		return v.regB(), true
	case regORA, regORANoHandshake:
		v.SetInputBit(&v.aIn, ARegSCCWrReq, true)
		v.clearIFR(IRQVBlank | IRQOnesec)
		return v.regA(), true
	case regDDRB:
		return v.ddrB, true
	case regDDRA:
		return v.ddrA, true
	case regT1CL:
		v.clearIFR(IRQT1)
		return uint8(v.t1c), true
	case regT1CH:
		return uint8(v.t1c >> 8), true
	case regT1LL:
		return uint8(v.t1l), true
	case regT1LH:
		return uint8(v.t1l >> 8), true
	case regT2CL:
		v.clearIFR(IRQT2)
		return uint8(v.t2c), true
	case regT2CH:
		return uint8(v.t2c >> 8), true
	case regSR:
		v.clearIFR(IRQKbdReady)
		return v.sr, true
	case regACR:
		return v.acr, true
	case regPCR:
		return v.pcr, true
	case regIFR:
		val := v.ifr & 0x7F
		if v.ifr&v.ier != 0 {
			val |= 0x80
		}
		return val, true
	case regIER:
		return v.ier | 0x80, true
	}
	return 0, false
}

func (v *VIA) WriteByte(addr uint32, val uint8) bool {
	switch (addr >> 9) & 0xF {
	case regORB:
		v.clearIFR(IRQKbdData | IRQKbdClock)
		v.bOut = val
	case regORA, regORANoHandshake:
		v.clearIFR(IRQVBlank | IRQOnesec)
		v.aOut = val
		if v.overlay != nil {
			v.overlay.SetOverlay(val&ARegOverlay != 0)
		}
	case regDDRB:
		v.ddrB = val
	case regDDRA:
		v.ddrA = val
	case regT1LL, regT1CL:
		v.t1l = v.t1l&0xFF00 | uint16(val)
	case regT1LH:
		v.t1l = v.t1l&0x00FF | uint16(val)<<8
	case regT1CH:
		v.t1l = v.t1l&0x00FF | uint16(val)<<8
		v.t1c = v.t1l
		v.t1Enable = true
		v.clearIFR(IRQT1)
	case regT2CL:
		v.t2l = v.t2l&0xFF00 | uint16(val)
	case regT2CH:
		v.t2l = v.t2l&0x00FF | uint16(val)<<8
		v.t2c = v.t2l
		v.t2Enable = true
		v.clearIFR(IRQT2)
	case regSR:
		v.clearIFR(IRQKbdReady)
		v.sr = val
	case regACR:
		v.acr = val
	case regPCR:
		v.pcr = val
	case regIFR:
		v.ifr &^= val & 0x7F
	case regIER:
		if val&0x80 != 0 {
			v.ier |= val & 0x7F
		} else {
			v.ier &^= val & 0x7F
		}
	default:
		return false
	}
	return true
}

// RaiseVBlank latches the VBlank interrupt flag; called by the video
// unit on entry to VBlank (spec.md section 4.10).
func (v *VIA) RaiseVBlank() { v.raiseIFR(IRQVBlank) }

// SetMouseSwitch and SetHBlank drive register B's mouse/video bits.
func (v *VIA) SetMouseSwitch(down bool) { v.SetInputBit(&v.bIn, BRegSW, !down) }
func (v *VIA) SetHBlank(on bool)        { v.SetInputBit(&v.bIn, BRegH4, on) }
func (v *VIA) SoundEnabled() bool       { return v.regB()&BRegSndEnb != 0 }
func (v *VIA) SoundVolume() uint8       { return v.regA() & ARegSoundMask }
func (v *VIA) SoundBufferMain() bool    { return v.regA()&ARegSndPg2 == 0 }
func (v *VIA) VideoPageMain() bool      { return v.regA()&ARegPage2 != 0 }
