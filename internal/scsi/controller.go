// Package scsi implements an NCR 5380 SCSI initiator: register set,
// bus-phase state machine, and a minimal target command set backed by
// block-addressable storage. Grounded on original_source's
// core/src/mac/scsi/controller.rs and core/src/mac/scsi.rs.
package scsi

import "github.com/sirupsen/logrus"

// MaxTargets is the number of addressable SCSI IDs (spec.md section 3:
// "array of eight optional target backends"; the original source caps
// at 7 usable IDs since ID 7 is reserved for the initiator itself).
const MaxTargets = 7

// Phase is one of the eight NCR 5380 bus phases (spec.md section 4.8).
type Phase int

const (
	PhaseFree Phase = iota
	PhaseArbitration
	PhaseSelection
	PhaseCommand
	PhaseDataIn
	PhaseDataOut
	PhaseStatus
	PhaseMessageIn
)

func (p Phase) String() string {
	switch p {
	case PhaseFree:
		return "free"
	case PhaseArbitration:
		return "arbitration"
	case PhaseSelection:
		return "selection"
	case PhaseCommand:
		return "command"
	case PhaseDataIn:
		return "data-in"
	case PhaseDataOut:
		return "data-out"
	case PhaseStatus:
		return "status"
	case PhaseMessageIn:
		return "message-in"
	}
	return "?"
}

// NCR 5380 register offsets, one byte each (spec.md section 3).
const (
	RegCDR_ODR = iota // current data / output data
	RegICR
	RegMR
	RegTCR
	RegCSR
	RegBSR
	RegIDR
	RegReset
)

// Mode register bits.
const (
	MRArbitrate = 1 << 0
	MRDMAMode   = 1 << 1
)

// Initiator command register bits.
const (
	ICRAssertDataBus = 1 << 0
	ICRAssertATN     = 1 << 1
	ICRAssertSEL     = 1 << 2
	ICRAssertBSY     = 1 << 3
	ICRAssertACK     = 1 << 4
	ICRAIP           = 1 << 6
)

// Bus and status register bits.
const (
	BSRACK        = 1 << 0
	BSRBusyErr    = 1 << 2
	BSRPhaseMatch = 1 << 3
	BSRIRQ        = 1 << 4
	BSRDMAReq     = 1 << 6
	BSRDMAEnd     = 1 << 7
)

// Controller is the NCR 5380 state machine. It does not model true
// REQ/ACK bit-banging timing; instead register accesses and the
// host-facing helpers (WriteCommandByte, ReadStatusByte,
// ReadMessageByte) drive phase transitions directly, which is sufficient to reproduce the
// state table of spec.md section 4.8 and its observable registers.
type Controller struct {
	Log *logrus.Entry

	phase Phase
	mr    uint8
	icr   uint8
	csr   uint8
	bsr   uint8
	tcr   uint8
	cdr   uint8
	odr   uint8

	selID int

	cmdbuf []byte
	cmdLen int

	response []byte
	respPos  int

	dataOutLen int
	dataOutBuf []byte

	lastStatus uint8

	Targets [MaxTargets]Target

	deassertDelay int
}

// New creates a Controller in the Free phase with all registers
// cleared.
func New(log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{Log: log.WithField("component", "scsi")}
}

// Reset returns the controller to the Free phase (spec.md's phase
// table: "* -> reset -> Free").
func (c *Controller) Reset() {
	c.phase = PhaseFree
	c.mr, c.icr, c.csr, c.bsr, c.tcr = 0, 0, 0, 0, 0
	c.cmdbuf = nil
	c.response = nil
	c.dataOutLen = 0
}

// Phase reports the current bus phase.
func (c *Controller) Phase() Phase { return c.phase }

// IRQ implements bus.IRQSource.
func (c *Controller) IRQ() (uint8, bool) {
	if c.bsr&BSRIRQ != 0 {
		return 2, true // SCSI IRQ priority per spec.md section 4.7
	}
	return 0, false
}

// ReadRegister reads one of the eight NCR 5380 registers.
func (c *Controller) ReadRegister(reg int) uint8 {
	switch reg {
	case RegCDR_ODR:
		return c.cdr
	case RegICR:
		return c.icr
	case RegMR:
		return c.mr
	case RegTCR:
		return c.tcr
	case RegCSR:
		return c.csr
	case RegBSR:
		return c.bsr
	case RegIDR:
		if c.phase == PhaseDataIn && c.respPos < len(c.response) {
			v := c.response[c.respPos]
			c.respPos++
			c.pulseACKDataIn()
			return v
		}
		return 0
	case RegReset:
		c.bsr &^= BSRIRQ
		return 0
	}
	return 0
}

// WriteRegister writes one of the eight NCR 5380 registers, driving
// phase transitions per spec.md section 4.8's table.
func (c *Controller) WriteRegister(reg int, val uint8) {
	switch reg {
	case RegCDR_ODR:
		c.odr = val
		if c.phase == PhaseDataOut {
			c.dataOutBuf = append(c.dataOutBuf, val)
			c.pulseACKDataOut()
		}
	case RegICR:
		prevSel := c.icr&ICRAssertSEL != 0
		c.icr = val
		if val&ICRAssertSEL != 0 && !prevSel && c.phase == PhaseArbitration {
			c.beginSelection()
		}
	case RegMR:
		c.mr = val
		if val&MRArbitrate != 0 && c.phase == PhaseFree {
			c.phase = PhaseArbitration
		}
	case RegTCR:
		c.tcr = val
	case RegReset:
		c.bsr &^= BSRIRQ
	}
}

// SelectTarget is the host-visible equivalent of the data-bus ID mask
// during Selection phase; callers write the one-hot ID mask to the
// data register before toggling ICR.assert_sel.
func (c *Controller) SelectTarget(idMask uint8) {
	c.odr = idMask
}

func (c *Controller) beginSelection() {
	id := -1
	for i := 0; i < MaxTargets; i++ {
		if c.odr&(1<<uint(i)) != 0 {
			id = i
			break
		}
	}
	if id < 0 || c.Targets[id] == nil {
		c.phase = PhaseFree
		return
	}
	c.selID = id
	c.phase = PhaseCommand
	c.cmdbuf = nil
	c.cmdLen = 0
	c.csr |= 1 << 6 // busy asserted
}

// pulseACKDataIn/Out advance the command/data phases one byte at a
// time, mirroring the REQ/ACK handshake without modeling its exact
// cycle timing (spec.md section 4.8: "Each REQ/ACK pulse exchanges one
// byte").
func (c *Controller) pulseACKDataIn() {
	if c.respPos >= len(c.response) {
		c.phase = PhaseStatus
	}
}

func (c *Controller) pulseACKDataOut() {
	if len(c.dataOutBuf) >= c.dataOutLen {
		c.runCommand(c.dataOutBuf)
	}
}

// WriteCommandByte feeds one command byte during the Command phase. It
// is the host-facing equivalent of a CDR write while TCR selects the
// Command phase.
func (c *Controller) WriteCommandByte(b uint8) {
	if c.phase != PhaseCommand {
		return
	}
	c.cmdbuf = append(c.cmdbuf, b)
	if c.cmdLen == 0 {
		c.cmdLen = cmdLen(b)
	}
	if len(c.cmdbuf) >= c.cmdLen {
		c.runCommand(nil)
	}
}

func (c *Controller) runCommand(outData []byte) {
	target := c.Targets[c.selID]
	if target == nil {
		c.lastStatus = StatusCheckCondition
		c.phase = PhaseStatus
		return
	}
	result, err := target.HandleCommand(c.cmdbuf, outData)
	if err != nil {
		c.Log.WithError(err).Warn("scsi command failed")
		c.lastStatus = StatusCheckCondition
		c.phase = PhaseStatus
		return
	}
	switch result.Kind {
	case ResultStatus:
		c.lastStatus = result.Status
		c.phase = PhaseStatus
	case ResultDataIn:
		c.response = result.DataIn
		c.respPos = 0
		c.phase = PhaseDataIn
	case ResultDataOut:
		c.dataOutLen = result.OutLen
		c.dataOutBuf = make([]byte, 0, result.OutLen)
		c.phase = PhaseDataOut
	}
}

// ReadStatusByte returns the last command's status byte and advances
// to MessageIn (spec.md's phase table: "Status -> ACK -> MessageIn").
func (c *Controller) ReadStatusByte() uint8 {
	s := c.lastStatus
	if c.phase == PhaseStatus {
		c.phase = PhaseMessageIn
	}
	return s
}

// ReadMessageByte completes the command, returning to Free.
func (c *Controller) ReadMessageByte() uint8 {
	if c.phase == PhaseMessageIn {
		c.phase = PhaseFree
		c.csr &^= 1 << 6
	}
	return 0
}
