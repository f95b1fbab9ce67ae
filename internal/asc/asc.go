// Package asc implements the Apple Sound Chip as used in the Mac Plus
// era: a FIFO-driven stereo DAC plus a four-channel wavetable
// synthesizer (spec.md section 4, grounded on original_source's
// mac/asc.rs).
package asc

import "github.com/sirupsen/logrus"

// Mode selects between the two sampling paths the chip supports.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeFifo
	ModeWavetable
)

func (m Mode) String() string {
	switch m {
	case ModeFifo:
		return "fifo"
	case ModeWavetable:
		return "wavetable"
	default:
		return "off"
	}
}

const (
	fifoSize         = 0x400
	wavetableSize    = 0x800
	audioBufferSize  = 2048
	channelCount     = 4
	channelTableSize = 0x200
)

// FifoStatus mirrors the chip's four-bit FIFO status register (spec.md
// section 3: "stereo FIFOs ... half/full status bits").
type FifoStatus struct {
	LHalf      bool
	LFullEmpty bool
	RHalf      bool
	RFullEmpty bool
}

func (s FifoStatus) Byte() uint8 {
	var b uint8
	if s.LHalf {
		b |= 1 << 0
	}
	if s.LFullEmpty {
		b |= 1 << 1
	}
	if s.RHalf {
		b |= 1 << 2
	}
	if s.RFullEmpty {
		b |= 1 << 3
	}
	return b
}

type channel struct {
	freq  uint32
	phase uint32
}

// AudioSink receives completed sample buffers; implementing audio
// output is an external collaborator (spec.md section 6).
type AudioSink interface {
	PushAudioBuffer(buf []uint8)
}

// ASC is the Apple Sound Chip.
type ASC struct {
	Log *logrus.Entry

	sink AudioSink

	mode       Mode
	channels   [channelCount]channel
	wavetables [wavetableSize]uint8

	fifoL, fifoR []uint8
	fifoStatus   FifoStatus
	irq          bool

	buffer []uint8
	silent bool
}

func New(log *logrus.Entry, sink AudioSink) *ASC {
	return &ASC{
		Log:    log,
		sink:   sink,
		mode:   ModeOff,
		silent: true,
		buffer: make([]uint8, 0, audioBufferSize),
	}
}

func (a *ASC) Reset() {
	a.mode = ModeOff
	a.fifoL = nil
	a.fifoR = nil
	a.fifoStatus = FifoStatus{}
	a.irq = false
	a.buffer = a.buffer[:0]
}

func (a *ASC) IsSilent() bool { return a.silent }

// IRQ implements bus.IRQSource.
func (a *ASC) IRQ() (uint8, bool) {
	if !a.irq {
		return 0, false
	}
	return 1, true
}

func (a *ASC) push(sample uint8) {
	if sample != 0 && sample != 0xFF {
		a.silent = false
	}
	a.buffer = append(a.buffer, sample)
	if len(a.buffer) >= audioBufferSize {
		buf := a.buffer
		a.buffer = make([]uint8, 0, audioBufferSize)
		a.silent = allSame(buf)
		if a.sink != nil {
			a.sink.PushAudioBuffer(buf)
		}
	}
}

func allSame(buf []uint8) bool {
	if len(buf) == 0 {
		return true
	}
	for _, b := range buf {
		if b != buf[0] {
			return false
		}
	}
	return true
}

func (a *ASC) sampleWavetable() uint8 {
	var sample uint16
	for i := range a.channels {
		c := &a.channels[i]
		c.phase += c.freq
		offset := (c.phase >> 15) & (channelTableSize - 1)
		sample += uint16(a.wavetables[i*channelTableSize+int(offset)])
	}
	return uint8(sample >> 2)
}

func (a *ASC) sampleFifo() uint8 {
	l := popFront(&a.fifoL)
	popFront(&a.fifoR)

	if len(a.fifoL) == fifoSize/2 {
		a.fifoStatus.LHalf = true
		a.irq = true
	}
	if len(a.fifoR) == fifoSize/2 {
		a.fifoStatus.RHalf = true
		a.irq = true
	}
	if len(a.fifoL) == 1 {
		a.fifoStatus.LFullEmpty = true
		a.irq = true
	}
	if len(a.fifoR) == 1 {
		a.fifoStatus.RFullEmpty = true
		a.irq = true
	}
	return l
}

func popFront(q *[]uint8) uint8 {
	if len(*q) == 0 {
		return 0
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}

// Tick samples the chip at its fixed sample rate (spec.md section
// 4.10: the video unit latches one stereo sample per HBlank).
// queueSample controls whether the sample is accumulated into the
// output buffer, matching the original's HBlank-gated call pattern.
func (a *ASC) Tick(queueSample bool) {
	var sample uint8
	switch a.mode {
	case ModeFifo:
		sample = a.sampleFifo()
	case ModeWavetable:
		sample = a.sampleWavetable()
	default:
		sample = 0
	}
	if queueSample {
		a.push(sample)
	}
}

const SampleRate = 22257

// ReadByte implements bus.MappedDevice over the ASC's register window.
// Only the low 12 bits of addr are decoded, so the bus may pass either
// the absolute address or the offset from the chip's base.
func (a *ASC) ReadByte(addr uint32) (uint8, bool) {
	addr &= 0xFFF
	switch {
	case addr <= 0x7FF && a.mode == ModeWavetable:
		return a.wavetables[addr], true
	case addr == 0x800:
		return 0, true // ASC v1
	case addr == 0x801:
		return uint8(a.mode), true
	case addr == 0x804:
		v := a.fifoStatus.Byte()
		a.irq = false
		a.fifoStatus = FifoStatus{}
		return v, true
	case addr == 0x807:
		return 0, true
	case addr >= 0x810 && addr <= 0x82F:
		ch := int((addr - 0x810) >> 3 & 3)
		byteIdx := uint(addr & 3)
		if addr&4 == 0 {
			return beByte(a.channels[ch].phase, byteIdx), true
		}
		return beByte(a.channels[ch].freq, byteIdx), true
	default:
		return 0, false
	}
}

// WriteByte implements bus.MappedDevice. As with ReadByte, only the low
// 12 bits of addr are decoded.
func (a *ASC) WriteByte(addr uint32, val uint8) bool {
	addr &= 0xFFF
	switch {
	case addr <= 0x3FF && a.mode == ModeFifo:
		if len(a.fifoL) < fifoSize {
			a.fifoL = append(a.fifoL, val)
		}
		if len(a.fifoL) == fifoSize {
			a.fifoStatus.LFullEmpty = true
		}
		return true
	case addr >= 0x400 && addr <= 0x7FF && a.mode == ModeFifo:
		if len(a.fifoR) < fifoSize {
			a.fifoR = append(a.fifoR, val)
		}
		if len(a.fifoR) == fifoSize {
			a.fifoStatus.RFullEmpty = true
		}
		return true
	case addr <= 0x7FF && a.mode == ModeWavetable:
		a.wavetables[addr] = val
		return true
	case addr <= 0x7FF:
		return true
	case addr == 0x801:
		switch val {
		case uint8(ModeFifo):
			a.mode = ModeFifo
		case uint8(ModeWavetable):
			a.mode = ModeWavetable
		default:
			a.mode = ModeOff
		}
		return true
	case addr == 0x803:
		if val&0x80 != 0 {
			a.fifoL = nil
			a.fifoR = nil
			a.fifoStatus.LFullEmpty = true
			a.fifoStatus.RFullEmpty = true
		}
		return true
	case addr == 0x804:
		a.fifoStatus = FifoStatus{
			LHalf:      val&1 != 0,
			LFullEmpty: val&2 != 0,
			RHalf:      val&4 != 0,
			RFullEmpty: val&8 != 0,
		}
		return true
	case addr == 0x807:
		if val != 0 && a.Log != nil {
			a.Log.Warnf("asc: unsupported clock rate %d", val)
		}
		return true
	case addr >= 0x810 && addr <= 0x82F:
		ch := int((addr - 0x810) >> 3 & 3)
		byteIdx := uint(addr & 3)
		if addr&4 == 0 {
			a.channels[ch].phase = setBEByte(a.channels[ch].phase, byteIdx, val)
		} else {
			a.channels[ch].freq = setBEByte(a.channels[ch].freq, byteIdx, val)
		}
		return true
	default:
		return false
	}
}

func beByte(v uint32, idx uint) uint8 {
	shift := (3 - idx) * 8
	return uint8(v >> shift)
}

func setBEByte(v uint32, idx uint, b uint8) uint32 {
	shift := (3 - idx) * 8
	mask := uint32(0xFF) << shift
	return (v &^ mask) | (uint32(b) << shift)
}
