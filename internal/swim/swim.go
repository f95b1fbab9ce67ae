// Package swim implements the dual-mode (IWM + ISM) floppy controller
// described in spec.md section 4.9, grounded on original_source's
// mac/swim.rs and mac/swim/ism.rs.
package swim

import "github.com/sirupsen/logrus"

type mode int

const (
	modeIWM mode = iota
	modeISM
)

const (
	// IWM register offsets within the SWIM address window, decoded on
	// the Mac Plus by (addr>>9)&0xF, mirroring the odd-byte stride VIA
	// uses on the same bus (spec.md section 4.9).
	regISMModeSwitch = 0x8
)

// Controller is the Mac Plus SWIM chip: it boots in IWM mode and can be
// switched into ISM mode by a write to its mode register.
type Controller struct {
	Log *logrus.Entry

	mode mode
	IWM  *IWM
	ISM  *ISM

	bitCellCycles int
}

func New(log *logrus.Entry) *Controller {
	return &Controller{
		Log:           log,
		mode:          modeIWM,
		IWM:           NewIWM(),
		ISM:           &ISM{},
		bitCellCycles: 16,
	}
}

func (c *Controller) Reset() {
	c.mode = modeIWM
	c.ISM.Reset()
}

// SetHeadSelect and SetDriveSelect mirror VIA port A bits IWM wires
// into CA2/SEL and the internal/external drive select (spec.md section
// 4.9: "CA-latches are externally driven from VIA port A").
func (c *Controller) SetHeadSelect(on bool)  { c.IWM.SEL = on }
func (c *Controller) SetDriveSelect(on bool) { c.IWM.IntDrive = on }

func (c *Controller) regOffset(addr uint32) int {
	return int((addr >> 9) & 0xF)
}

// ReadByte implements bus.MappedDevice.
func (c *Controller) ReadByte(addr uint32) (uint8, bool) {
	reg := c.regOffset(addr)

	switch c.mode {
	case modeISM:
		val, _, ok := c.ISM.PopRead()
		if ok {
			return val, true
		}
		return 0, true
	default:
		// Reading any of the eight CA-latch combinations also strobes
		// the latch on real hardware. Here every register except the
		// mode-switch offset reads the data register; no status
		// register is returned.
		if reg == regISMModeSwitch {
			return 0, true
		}
		if val, ok := c.IWM.ReadDataRegister(); ok {
			return val, true
		}
		return 0, true
	}
}

// WriteByte implements bus.MappedDevice.
func (c *Controller) WriteByte(addr uint32, val uint8) bool {
	reg := c.regOffset(addr)

	if reg == regISMModeSwitch {
		if val&0x40 != 0 {
			if c.mode != modeISM && c.Log != nil {
				c.Log.Debug("swim: switching to ISM mode")
			}
			c.mode = modeISM
		} else {
			if c.mode != modeIWM && c.Log != nil {
				c.Log.Debug("swim: switching to IWM mode")
			}
			c.mode = modeIWM
		}
		return true
	}

	switch c.mode {
	case modeISM:
		c.ISM.Mode = val
	default:
		c.IWM.SetCA(reg&3, val&1 != 0)
		if val&0x80 != 0 {
			c.IWM.Strobe()
		}
		c.IWM.WriteDataRegister(val)
	}
	return true
}

// Tick implements bus.Peripheral, advancing the active drive's shifter
// and feeding decoded bits into the ISM synchronizer when in ISM mode.
func (c *Controller) Tick(cycles int) int {
	if c.mode == modeIWM {
		return c.IWM.Tick(cycles, c.bitCellCycles)
	}

	d := c.IWM.activeDrive()
	if !d.Motor || !d.Inserted {
		return 0
	}
	n := cycles / c.bitCellCycles
	for i := 0; i < n; i++ {
		c.ISM.ShiftReadBit(d.nextBit())
	}
	return n * c.bitCellCycles
}

// PushPWM forwards a disk-motor PWM sample latched during HBlank
// (spec.md section 4.10) to the IWM sample queue.
func (c *Controller) PushPWM(sample uint8) {
	c.IWM.PushPWM(sample)
}

// InsertDisk attaches a flux-decoded track bitstream to a drive;
// decoding the on-disk image format is an external collaborator
// (spec.md section 6).
func (c *Controller) InsertDisk(drive int, data []byte) {
	if drive < 0 || drive >= DriveCount {
		return
	}
	c.IWM.Drives[drive].InsertImage(data)
}

func (c *Controller) EjectDisk(drive int) {
	if drive < 0 || drive >= DriveCount {
		return
	}
	c.IWM.Drives[drive].Eject()
}
