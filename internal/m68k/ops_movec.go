package m68k

// MOVEC (68010+) copies between a general register and one of the
// supervisor control registers (VBR, SFC, DFC, CACR). Only the control
// registers this core actually models are implemented; an unknown
// control-register selector raises an illegal-instruction exception,
// matching real silicon's behavior for a reserved selector.
func init() {
	registerMOVEC()
}

func registerMOVEC() {
	opcodeTable[0x4E7A] = opMOVECFrom // control register -> general register
	opcodeTable[0x4E7B] = opMOVECTo   // general register -> control register
}

const (
	movecSFC  = 0x000
	movecDFC  = 0x001
	movecUSP  = 0x800
	movecVBR  = 0x801
	movecCACR = 0x002
)

func (c *CPU) movecAccessible() bool {
	return c.model >= M68010
}

func opMOVECFrom(c *CPU) {
	if !c.supervisor() || !c.movecAccessible() {
		c.exception(vecPrivilegeViolation)
		return
	}
	ext := c.fetchPC()
	reg := (ext >> 12) & 0xF
	sel := ext & 0xFFF

	var val uint32
	switch sel {
	case movecSFC:
		val = c.sfc
	case movecDFC:
		val = c.dfc
	case movecVBR:
		val = c.vbr
	case movecUSP:
		val = c.reg.USP
	case movecCACR:
		if c.model < M68020 {
			c.exception(vecIllegalInstruction)
			return
		}
		val = c.cacr
	default:
		c.exception(vecIllegalInstruction)
		return
	}

	if ext&0x8000 != 0 {
		c.reg.A[reg&7] = val
	} else {
		c.reg.D[reg&7] = val
	}
	c.cycles += 10
}

func opMOVECTo(c *CPU) {
	if !c.supervisor() || !c.movecAccessible() {
		c.exception(vecPrivilegeViolation)
		return
	}
	ext := c.fetchPC()
	reg := (ext >> 12) & 0xF
	sel := ext & 0xFFF

	var val uint32
	if ext&0x8000 != 0 {
		val = c.reg.A[reg&7]
	} else {
		val = c.reg.D[reg&7]
	}

	switch sel {
	case movecSFC:
		c.sfc = val & 7
	case movecDFC:
		c.dfc = val & 7
	case movecVBR:
		c.vbr = val
	case movecUSP:
		c.reg.USP = val
	case movecCACR:
		if c.model < M68020 {
			c.exception(vecIllegalInstruction)
			return
		}
		c.cacr = val & 0x3 // only the enable/freeze bits this core models
	default:
		c.exception(vecIllegalInstruction)
		return
	}
	c.cycles += 12
}
