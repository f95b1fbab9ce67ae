package swim

// ISM implements the MFM read/write synchronizer the SWIM chip adds on
// top of IWM's GCR path (spec.md section 4.9, grounded on
// original_source's ism.rs).
type ISM struct {
	Mode   uint8
	Status uint8
	Error  uint8

	FIFO FIFO

	crc    uint16
	synced bool

	shreg    uint16
	shregCnt int

	writeLastBit bool
}

// Reset reinitializes the synchronizer state (entering read mode resets
// sync/shifter per ism.rs).
func (i *ISM) Reset() {
	i.synced = false
	i.crc = CRCInit
	i.shreg = 0
	i.shregCnt = 0
	i.FIFO.Clear()
}

// ShiftReadBit feeds one bit read from the track into the MFM
// synchronizer. Once synchronized, every 16 bits decodes to a byte
// pushed into the FIFO tagged as data or marker depending on whether
// the window matches the sync pattern (spec.md section 4.9).
func (i *ISM) ShiftReadBit(bit bool) {
	i.shreg <<= 1
	if bit {
		i.shreg |= 1
	}
	i.shregCnt++

	if !i.synced && i.shreg == SyncMarker {
		i.synced = true
		i.crc = CRCInit
		i.shregCnt = 0
		decoded := MFMDecode(i.shreg)
		i.FIFO.Push(FIFOEntry{Kind: FIFOMarker, Value: decoded})
		return
	}

	if i.synced && i.shregCnt == 16 {
		i.shregCnt = 0
		if i.shreg == SyncMarker {
			i.crc = CRCInit
			decoded := MFMDecode(i.shreg)
			i.FIFO.Push(FIFOEntry{Kind: FIFOMarker, Value: decoded})
			return
		}
		decoded := MFMDecode(i.shreg)
		i.crc = CRCUpdateByte(i.crc, decoded)
		i.FIFO.Push(FIFOEntry{Kind: FIFOData, Value: decoded})
	}
}

// EncodeWriteByte MFM-encodes one byte for the write shifter, updating
// the running CRC and the clock-chaining state (spec.md section 4.9).
// Sync markers bypass the clock rule and always use the pre-encoded
// pattern.
func (i *ISM) EncodeWriteByte(e FIFOEntry) uint16 {
	switch e.Kind {
	case FIFOMarker:
		i.crc = CRCInit
		i.writeLastBit = e.Value&1 != 0
		return SyncMarker
	case FIFOCRCHigh:
		hi := uint8(i.crc >> 8)
		enc, last := MFMEncode(hi, i.writeLastBit)
		i.writeLastBit = last
		return enc
	case FIFOCRCLow:
		lo := uint8(i.crc)
		enc, last := MFMEncode(lo, i.writeLastBit)
		i.writeLastBit = last
		return enc
	default:
		i.crc = CRCUpdateByte(i.crc, e.Value)
		enc, last := MFMEncode(e.Value, i.writeLastBit)
		i.writeLastBit = last
		return enc
	}
}

// PopRead drains one decoded byte from the FIFO for the CPU to read.
// It reports whether the byte is a marker rather than data, and
// whether the FIFO had anything to pop at all.
func (i *ISM) PopRead() (value uint8, isMarker bool, ok bool) {
	e, ok := i.FIFO.Pop()
	if !ok {
		return 0, false, false
	}
	return e.Value, e.Kind == FIFOMarker, true
}
