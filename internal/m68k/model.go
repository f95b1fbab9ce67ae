package m68k

// CPUModel selects which member of the 680x0 family is emulated. The
// model governs the writable bits of SR, whether VBR/SFC/DFC/CACR exist,
// and the shape of exception stack frames.
type CPUModel int

const (
	M68000 CPUModel = iota
	M68010
	M68020
)

// String returns the conventional part-number name for the model.
func (m CPUModel) String() string {
	switch m {
	case M68000:
		return "68000"
	case M68010:
		return "68010"
	case M68020:
		return "68020"
	default:
		return "unknown"
	}
}

// hasVBR reports whether the model has a Vector Base Register. On the
// 68000 exception vectors are always read from address zero; 68010+
// adds VBR so vector tables can be relocated.
func (m CPUModel) hasVBR() bool {
	return m >= M68010
}

// hasFormatWord reports whether exception stack frames carry a
// format/vector-offset word above the saved PC (68010+).
func (m CPUModel) hasFormatWord() bool {
	return m >= M68010
}

// srWritableMask returns the bits of SR that a privileged write
// (MOVE to SR, RTE, exception entry) is allowed to modify. The 68000
// and 68010 share the same layout; the 68020 additionally exposes the
// master/interrupt stack bit (12) when supervisor mode is entered via
// an interrupt, which this core does not separately model, so the
// mask is conservatively identical across all three models.
func (m CPUModel) srWritableMask() uint16 {
	return 0xA71F
}

// addressMask returns the external address bus width mask. The 68000
// and 68010 expose 24 address pins; the 68020 exposes the full 32.
func (m CPUModel) addressMask() uint32 {
	if m >= M68020 {
		return 0xFFFFFFFF
	}
	return 0x00FFFFFF
}

// hasICache reports whether the model has the small on-chip
// instruction cache described in spec.md section 3 ("I-cache (68020)").
func (m CPUModel) hasICache() bool {
	return m >= M68020
}

// hasFullExtensionWords reports whether the addressing-mode evaluator
// should decode full (68020) extension words - base/index suppress,
// scale, and base-displacement size - instead of always treating an
// index extension word as the brief 68000/010 format (spec.md section
// 4.3).
func (m CPUModel) hasFullExtensionWords() bool {
	return m >= M68020
}

// Config bundles the compile-time-style choices that select a CPU
// variant. These are fixed for the lifetime of a CPU instance; the
// spec explicitly calls out that runtime dispatch over models should
// be avoided on hot paths, so Model is read once per exception/reset
// rather than on every bus access.
type Config struct {
	Model       CPUModel
	AddressMask uint32 // 0 selects the model's default mask
	EnablePMMU  bool
}
