package bus

import "github.com/twvd-go/snow68k/internal/m68k"

// Testbus is a flat, unmapped-safe memory for CPU core tests: every
// address reads as zero until written, writes always succeed, and
// there are no wait states or faults. Grounded on testbus.rs's sparse
// HashMap-backed test double.
type Testbus struct {
	mem  map[uint32]uint8
	mask uint32
}

// NewTestbus creates a Testbus that accepts addresses within mask.
func NewTestbus(mask uint32) *Testbus {
	return &Testbus{mem: make(map[uint32]uint8), mask: mask}
}

func (t *Testbus) Reset() {}

func (t *Testbus) Read(op m68k.Size, addr uint32) uint32 {
	v, _ := t.ReadResult(0, op, addr)
	return v
}

func (t *Testbus) Write(op m68k.Size, addr uint32, val uint32) {
	t.WriteResult(0, op, addr, val)
}

func (t *Testbus) ReadCycle(_ uint64, op m68k.Size, addr uint32) uint32 {
	return t.Read(op, addr)
}

func (t *Testbus) WriteCycle(_ uint64, op m68k.Size, addr uint32, val uint32) {
	t.Write(op, addr, val)
}

func (t *Testbus) ReadResult(_ uint64, op m68k.Size, addr uint32) (uint32, m68k.BusResult) {
	var val uint32
	for i := m68k.Size(0); i < op; i++ {
		val = val<<8 | uint32(t.mem[(addr+uint32(i))&t.mask])
	}
	return val, m68k.BusOK
}

func (t *Testbus) WriteResult(_ uint64, op m68k.Size, addr uint32, val uint32) m68k.BusResult {
	shift := 8 * (int(op) - 1)
	for i := 0; i < int(op); i++ {
		t.mem[(addr+uint32(i))&t.mask] = uint8(val >> shift)
		shift -= 8
	}
	return m68k.BusOK
}
