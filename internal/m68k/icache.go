package m68k

// icacheInvalidTag marks an empty line. Valid tags always have their
// low two bits clear (line-aligned), so an all-ones value can never
// collide with a real tag (spec.md section 3, "I-cache (68020)").
const icacheInvalidTag = 0xFFFFFFFF

const (
	icacheLines    = 64
	icacheLineSize = 4 // bytes per line
)

// iCache is the 68020's small on-chip instruction cache: 64 lines of
// 4 bytes each, direct-mapped by the low bits of the address.
type iCache struct {
	tag  [icacheLines]uint32
	data [icacheLines][icacheLineSize]byte
}

func (ic *iCache) reset() {
	for i := range ic.tag {
		ic.tag[i] = icacheInvalidTag
	}
}

func (ic *iCache) lineFor(addr uint32) uint32 {
	return addr &^ (icacheLineSize - 1)
}

func (ic *iCache) index(addr uint32) int {
	return int((addr / icacheLineSize) % icacheLines)
}

// fetch16FromLine extracts the big-endian 16-bit word at addr's offset
// within a cached line.
func (c *CPU) fetch16FromLine(line [icacheLineSize]byte, addr uint32) uint16 {
	off := addr & (icacheLineSize - 1)
	return uint16(line[off])<<8 | uint16(line[off+1])
}

// fetch returns the 16-bit instruction word at addr, filling or using
// the cache line as appropriate. On cache-freeze (CACR bit 1) a miss
// is serviced directly from memory without updating the cache.
func (ic *iCache) fetch(c *CPU, addr uint32) uint16 {
	idx := ic.index(addr)
	line := ic.lineFor(addr)

	if ic.tag[idx] == line {
		c.cycles++ // one idle cycle on hit
		return c.fetch16FromLine(ic.data[idx], addr)
	}

	// Miss. cacrFreeze (bit 1) leaves the cache untouched and falls
	// back to an ordinary program fetch.
	const cacrFreeze = 1 << 1
	if c.cacr&cacrFreeze != 0 {
		return uint16(c.readBus(Word, addr))
	}

	val := c.readBus(Long, line)
	ic.data[idx][0] = byte(val >> 24)
	ic.data[idx][1] = byte(val >> 16)
	ic.data[idx][2] = byte(val >> 8)
	ic.data[idx][3] = byte(val)
	ic.tag[idx] = line

	return c.fetch16FromLine(ic.data[idx], addr)
}
