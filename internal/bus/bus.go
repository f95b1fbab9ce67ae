// Package bus implements the synchronous, tick-driven system bus that
// connects a Mac Plus-class 68000 to its memory map and peripherals.
package bus

import (
	"github.com/sirupsen/logrus"

	"github.com/twvd-go/snow68k/internal/m68k"
)

// Peripheral is tick-driven by the bus once per emulated cycle batch.
// It returns the number of ticks it actually consumed, which is always
// equal to the number requested; the return value exists so callers can
// compose peripherals uniformly with the CPU's own Tickable convention.
type Peripheral interface {
	Tick(cycles int) int
}

// IRQSource is optionally implemented by a Peripheral that can assert
// an interrupt. ok is false when the source has nothing pending.
type IRQSource interface {
	IRQ() (level uint8, ok bool)
}

// MappedDevice is optionally implemented by a Peripheral that decodes
// its own address range. ok is false for "not my address", matching
// the Option<byte> contract of spec.md section 6.
type MappedDevice interface {
	ReadByte(addr uint32) (val uint8, ok bool)
	WriteByte(addr uint32, val uint8) (ok bool)
}

// Mac Plus memory map constants.
const (
	RAMSize      = 4 * 1024 * 1024
	ROMBase      = 0x400000
	ROMWindow    = 0x100000
	OverlayLimit = 0x100000
	SCCBase      = 0x900000
	SCCEnd       = 0xA00000
	SCSIBase     = 0x580000
	SCSIEnd      = 0x600000
	ASCBase      = 0xC00000
	ASCEnd       = 0xC01000
	IWMBase      = 0xD00000
	IWMEnd       = 0xE00000
	VIABase      = 0xE80000
	VIAEnd       = 0x1000000
)

// SystemBus implements m68k.Bus, m68k.CycleBus, and m68k.FaultingBus.
// It owns RAM, the ROM image, the overlay flip, and a fixed slice of
// peripherals consulted in priority order for memory-mapped I/O.
type SystemBus struct {
	Log *logrus.Entry

	ram [RAMSize]byte
	rom []byte

	overlay bool

	devices []mappedRange
	irqs    []IRQSource

	video VideoContention
	vpa   VPASource

	pmmu *PMMU

	cycles uint64
}

type mappedRange struct {
	name   string
	lo, hi uint32
	dev    MappedDevice
}

// VideoContention reports whether the given bus cycle is blocked by
// shared video RAM access (spec.md section 4.6, "Video contention").
type VideoContention interface {
	Contends(cycle uint64) bool
}

// VPASource reports whether an address is mapped as a VPA (6800-family)
// peripheral requiring E-clock synchronization, and whether the E clock
// is currently at its low edge.
type VPASource interface {
	IsVPA(addr uint32) bool
	EClockReady(cycle uint64) bool
}

// NewSystemBus creates a bus with the given ROM image installed at the
// overlay and high-memory ROM windows. The overlay starts asserted,
// matching reset behavior (spec.md section 4.6: "overlay flip ... from
// reset until the overlay bit is cleared").
func NewSystemBus(rom []byte, log *logrus.Entry) *SystemBus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SystemBus{
		Log:     log.WithField("component", "bus"),
		rom:     rom,
		overlay: true,
	}
}

// RAMByteFromEnd reads a byte at a fixed offset from the end of RAM,
// the addressing convention used for the interleaved sound/PWM buffer
// and the two framebuffers (spec.md section 4.10).
func (b *SystemBus) RAMByteFromEnd(offsetFromEnd uint32, cursor int) uint8 {
	idx := int(RAMSize-offsetFromEnd) + cursor
	if idx < 0 || idx >= RAMSize {
		return 0
	}
	return b.ram[idx]
}

// AddDevice registers a memory-mapped peripheral over [lo, hi). Devices
// are consulted in registration order; the first device that claims the
// address (ok == true) wins.
func (b *SystemBus) AddDevice(name string, lo, hi uint32, dev MappedDevice) {
	b.devices = append(b.devices, mappedRange{name: name, lo: lo, hi: hi, dev: dev})
	if irq, ok := dev.(IRQSource); ok {
		b.irqs = append(b.irqs, irq)
	}
}

// SetVideoContention installs the wait-state source used during active
// scanlines (spec.md section 4.6).
func (b *SystemBus) SetVideoContention(v VideoContention) { b.video = v }

// SetVPASource installs the E-clock synchronization source for
// 6800-family peripherals (spec.md section 4.6).
func (b *SystemBus) SetVPASource(v VPASource) { b.vpa = v }

// SetOverlay sets the ROM-overlay state. Peripheral writes that clear
// the overlay bit (VIA register A, bit 4 on a Mac Plus) call this.
func (b *SystemBus) SetOverlay(on bool) {
	if b.overlay != on {
		b.Log.WithField("overlay", on).Debug("overlay changed")
	}
	b.overlay = on
}

// Overlay reports the current overlay state.
func (b *SystemBus) Overlay() bool { return b.overlay }

// SetPMMU installs the address-translation unit consulted by
// TranslateRead/TranslateWrite. A nil PMMU (the default) makes this bus
// behave exactly as if no PMMU were present.
func (b *SystemBus) SetPMMU(p *PMMU) { b.pmmu = p }

// PMMU returns the installed address-translation unit, or nil if none
// was set.
func (b *SystemBus) PMMU() *PMMU { return b.pmmu }

// Tick advances every registered peripheral by the given number of
// cycles and returns the aggregated IRQ level (0 if none is pending),
// following the priority order of spec.md section 4.7: devices
// registered earlier take precedence when levels tie, so VIA2-class
// sources should be registered before VIA1-class ones by callers that
// want that priority.
func (b *SystemBus) Tick(cycles int) uint8 {
	for _, r := range b.devices {
		if p, ok := r.dev.(Peripheral); ok {
			p.Tick(cycles)
		}
	}
	b.cycles += uint64(cycles)

	var level uint8
	for _, src := range b.irqs {
		if l, ok := src.IRQ(); ok && l > level {
			level = l
		}
	}
	return level
}

// Reset implements m68k.Bus.
func (b *SystemBus) Reset() {
	b.overlay = true
	for _, r := range b.devices {
		if p, ok := r.dev.(interface{ Reset() }); ok {
			p.Reset()
		}
	}
}

// Read implements m68k.Bus by discarding wait states; the CPU's own
// retry loop via ReadResult is the code path that actually honors them.
// Read exists for reset-vector fetches that happen before the CPU has
// installed itself as a FaultingBus consumer.
func (b *SystemBus) Read(op m68k.Size, addr uint32) uint32 {
	val, _ := b.ReadResult(b.cycles, op, addr)
	return val
}

// Write implements m68k.Bus, see Read.
func (b *SystemBus) Write(op m68k.Size, addr uint32, val uint32) {
	b.WriteResult(b.cycles, op, addr, val)
}

// ReadCycle implements m68k.CycleBus.
func (b *SystemBus) ReadCycle(cycle uint64, op m68k.Size, addr uint32) uint32 {
	val, _ := b.ReadResult(cycle, op, addr)
	return val
}

// WriteCycle implements m68k.CycleBus.
func (b *SystemBus) WriteCycle(cycle uint64, op m68k.Size, addr uint32, val uint32) {
	b.WriteResult(cycle, op, addr, val)
}

// ReadResult implements m68k.FaultingBus.
func (b *SystemBus) ReadResult(cycle uint64, op m68k.Size, addr uint32) (uint32, m68k.BusResult) {
	if b.vpa != nil && b.vpa.IsVPA(addr) && !b.vpa.EClockReady(cycle) {
		return 0, m68k.BusWaitState
	}
	if b.video != nil && addr < RAMSize && b.video.Contends(cycle) {
		return 0, m68k.BusWaitState
	}

	var val uint32
	for i := m68k.Size(0); i < op; i++ {
		b, res := b.readByte(addr + uint32(i))
		if res == m68k.BusFault {
			return 0, m68k.BusFault
		}
		val = val<<8 | uint32(b)
	}
	return val, m68k.BusOK
}

// WriteResult implements m68k.FaultingBus.
func (b *SystemBus) WriteResult(cycle uint64, op m68k.Size, addr uint32, val uint32) m68k.BusResult {
	if b.vpa != nil && b.vpa.IsVPA(addr) && !b.vpa.EClockReady(cycle) {
		return m68k.BusWaitState
	}
	if b.video != nil && addr < RAMSize && b.video.Contends(cycle) {
		return m68k.BusWaitState
	}

	shift := 8 * (int(op) - 1)
	for i := 0; i < int(op); i++ {
		bv := uint8(val >> shift)
		if res := b.writeByte(addr+uint32(i), bv); res == m68k.BusFault {
			return m68k.BusFault
		}
		shift -= 8
	}
	return m68k.BusOK
}

// TranslateRead implements m68k.TranslatingBus. With no PMMU installed
// or the PMMU disabled it behaves exactly like ReadResult; otherwise
// the virtual address is walked through the PMMU's page tables first
// and a miss is reported as a bus fault, the same outcome the CPU sees
// for an unmapped physical address.
func (b *SystemBus) TranslateRead(cycle uint64, op m68k.Size, addr uint32, fc m68k.FunctionCode) (uint32, m68k.BusResult) {
	if b.pmmu == nil || !b.pmmu.Enabled() {
		return b.ReadResult(cycle, op, addr)
	}
	phys, ok := b.pmmu.Translate(b, addr, fc, false)
	if !ok {
		return 0, m68k.BusFault
	}
	return b.ReadResult(cycle, op, phys)
}

// TranslateWrite implements m68k.TranslatingBus, see TranslateRead.
func (b *SystemBus) TranslateWrite(cycle uint64, op m68k.Size, addr uint32, val uint32, fc m68k.FunctionCode) m68k.BusResult {
	if b.pmmu == nil || !b.pmmu.Enabled() {
		return b.WriteResult(cycle, op, addr, val)
	}
	phys, ok := b.pmmu.Translate(b, addr, fc, true)
	if !ok {
		return m68k.BusFault
	}
	return b.WriteResult(cycle, op, phys, val)
}

// ReadLong implements PMMU's TableReader: page-table descriptor reads
// walk the physical bus directly and are never themselves translated.
func (b *SystemBus) ReadLong(addr uint32) uint32 {
	val, _ := b.ReadResult(b.cycles, m68k.Long, addr)
	return val
}

func (b *SystemBus) readByte(addr uint32) (uint8, m68k.BusResult) {
	if b.overlay && addr < OverlayLimit {
		return b.romByte(addr), m68k.BusOK
	}
	if addr < RAMSize {
		return b.ram[addr], m68k.BusOK
	}
	if addr >= ROMBase && addr < ROMBase+ROMWindow {
		return b.romByte(addr - ROMBase), m68k.BusOK
	}
	for _, r := range b.devices {
		if addr >= r.lo && addr < r.hi {
			if v, ok := r.dev.ReadByte(addr); ok {
				return v, m68k.BusOK
			}
		}
	}
	b.Log.WithField("addr", addr).Warn("read from unmapped address")
	return 0, m68k.BusFault
}

func (b *SystemBus) writeByte(addr uint32, val uint8) m68k.BusResult {
	if b.overlay && addr < OverlayLimit {
		// ROM is read-only even while overlaid.
		return m68k.BusOK
	}
	if addr < RAMSize {
		b.ram[addr] = val
		return m68k.BusOK
	}
	if addr >= ROMBase && addr < ROMBase+ROMWindow {
		return m68k.BusOK
	}
	for _, r := range b.devices {
		if addr >= r.lo && addr < r.hi {
			if r.dev.WriteByte(addr, val) {
				return m68k.BusOK
			}
		}
	}
	b.Log.WithField("addr", addr).Warn("write to unmapped address")
	return m68k.BusFault
}

func (b *SystemBus) romByte(addr uint32) uint8 {
	if int(addr) >= len(b.rom) {
		return 0
	}
	return b.rom[addr]
}
