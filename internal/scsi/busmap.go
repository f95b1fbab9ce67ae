package scsi

// RegisterCount is the number of one-byte NCR 5380 registers exposed on
// the bus, addressed by the low 3 address bits on a Mac Plus.
const RegisterCount = 8

// ReadByte implements bus.MappedDevice, decoding the NCR 5380's eight
// registers off the low address bits the way the Mac Plus glue logic
// does.
func (c *Controller) ReadByte(addr uint32) (uint8, bool) {
	reg := int(addr) & (RegisterCount - 1)
	return c.ReadRegister(reg), true
}

// WriteByte implements bus.MappedDevice.
func (c *Controller) WriteByte(addr uint32, val uint8) bool {
	reg := int(addr) & (RegisterCount - 1)
	c.WriteRegister(reg, val)
	return true
}
