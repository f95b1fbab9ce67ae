package bus

import "github.com/twvd-go/snow68k/internal/m68k"

// Descriptor type field of a PMMU page-table entry (68851 short format).
const (
	descInvalid = 0
	descPage    = 1
	descTable   = 2
	descPageAlt = 3 // page descriptor, alternate encoding; treated as descPage
)

const pageShift = 12 // 4K pages; only short-format descriptors are modeled.

// pmmuLevels mirrors the short-format table walk of spec.md section
// 4.11: up to four levels, each indexed by successive groups of bits
// above the page offset. This implementation fixes three levels with
// index widths of 24, 16 and 8 bits, taken from the virtual page number
// from the top down; because the page number has only 20 bits, the
// first-level index is always 0. A configurable IS/TIA/TIB/TIC/TID split
// is not modeled.
var pmmuLevels = []uint{24, 16, 8}

// ATC is the address translation cache keyed by virtual page number,
// separate per root pointer (URP vs SRP) as described in spec.md
// section 3 ("PMMU address-translation cache").
type atcEntry struct {
	vpn   uint32
	phys  uint32
	valid bool
}

type ATC struct {
	entries map[uint32]atcEntry
}

func newATC() *ATC { return &ATC{entries: make(map[uint32]atcEntry)} }

func (a *ATC) lookup(vpn uint32) (uint32, bool) {
	e, ok := a.entries[vpn]
	if !ok || !e.valid {
		return 0, false
	}
	return e.phys, true
}

func (a *ATC) insert(vpn, phys uint32) {
	a.entries[vpn] = atcEntry{vpn: vpn, phys: phys, valid: true}
}

func (a *ATC) flush() {
	a.entries = make(map[uint32]atcEntry)
}

// PMMU implements the short-format page-table walker of spec.md
// section 4.11. It reads descriptors through a TableReader, which is
// normally the owning SystemBus.
type PMMU struct {
	URP uint32
	SRP uint32
	TC  uint32 // translation control register; bit 31 = enable

	urpCache *ATC
	srpCache *ATC
}

// NewPMMU creates a disabled PMMU (TC bit 31 clear).
func NewPMMU() *PMMU {
	return &PMMU{urpCache: newATC(), srpCache: newATC()}
}

// Enabled reports whether translation is active.
func (p *PMMU) Enabled() bool { return p.TC&(1<<31) != 0 }

// SetTC updates the translation control register, flushing both ATCs
// (spec.md section 3: "fully invalidated on TC register changes").
func (p *PMMU) SetTC(tc uint32) {
	p.TC = tc
	p.urpCache.flush()
	p.srpCache.flush()
}

// TableReader reads a 32-bit descriptor at a physical address.
type TableReader interface {
	ReadLong(addr uint32) uint32
}

// Translate walks the page table for virtual address (or ATC-hits it)
// selecting URP/SRP by function code, per spec.md section 4.11. fc
// supervisor function codes (5,6,7) select SRP; user codes select URP.
func (p *PMMU) Translate(r TableReader, virt uint32, fc m68k.FunctionCode, write bool) (uint32, bool) {
	cache := p.urpCache
	root := p.URP
	if fc == m68k.FCSupervisorData || fc == m68k.FCSupervisorProgram || fc == m68k.FCCPUSpace {
		cache = p.srpCache
		root = p.SRP
	}

	vpn := virt >> pageShift
	if phys, ok := cache.lookup(vpn); ok {
		return phys | (virt & (1<<pageShift - 1)), true
	}

	addr := root
	remaining := virt >> pageShift
	total := uint(0)
	for _, lvl := range pmmuLevels {
		total += lvl
	}
	shift := total
	for _, bits := range pmmuLevels {
		shift -= bits
		index := (remaining >> shift) & ((1 << bits) - 1)
		desc := r.ReadLong(addr + index*4)
		switch desc & 3 {
		case descInvalid:
			return 0, false
		case descTable:
			addr = desc &^ 0xF
		case descPage, descPageAlt:
			phys := desc &^ ((1 << pageShift) - 1)
			cache.insert(vpn, phys)
			return phys | (virt & (1<<pageShift - 1)), true
		}
	}
	return 0, false
}
