// Package video implements the CRT beam timing of the compact Mac
// video circuitry (spec.md section 4.10, grounded on original_source's
// mac/compact/video.rs).
package video

import "github.com/sirupsen/logrus"

const (
	hVisibleDots = 512
	hBlankDots   = 192
	hDots        = hVisibleDots + hBlankDots

	vVisibleLines = 342
	vBlankLines   = 28
	vLines        = vVisibleLines + vBlankLines

	frameDots        = hDots * vLines
	frameVisibleDots = hVisibleDots * vVisibleLines
	frameVisibleOff  = vBlankLines * hDots

	// FramebufferSize is the size in bytes of one 1-bpp framebuffer.
	FramebufferSize = frameDots / 8

	// FramebufferMainOffset and FramebufferAltOffset are byte offsets
	// from the end of RAM where the two framebuffers live, mirrored by
	// VIA's page-select bit (spec.md section 4.8).
	FramebufferMainOffset = 0xD900
	FramebufferAltOffset  = 0x5900
)

// Renderer receives a fully decoded RGBA frame; producing pixels on
// screen is an external collaborator (spec.md section 6).
type Renderer interface {
	SetSize(w, h int)
	Pixels() []byte
	Update() error
}

// AudioSampler and PWMSampler are the HBlank-driven consumers, wired to
// ASC and SWIM respectively: the PWM sampler receives one byte per
// line, the audio sampler only a signal to queue a sample.
type AudioSampler interface {
	Tick(queueSample bool)
}

type PWMSampler interface {
	PushPWM(sample uint8)
}

// SoundSource supplies the interleaved sound/PWM buffer living at the
// RAM-end offset the video unit reads during HBlank.
type SoundSource interface {
	SoundByte(offset int) uint8
}

// IRQRaiser lets the video unit assert VIA's VBlank interrupt bit.
type IRQRaiser interface {
	RaiseVBlank()
}

type latch struct{ set bool }

func (l *latch) Set()            { l.set = true }
func (l *latch) GetClear() bool  { v := l.set; l.set = false; return v }

// Video is the CRT beam position tracker and framebuffer renderer.
type Video struct {
	Log *logrus.Entry

	renderer Renderer
	audio    AudioSampler
	pwm      PWMSampler
	sound    SoundSource
	via      IRQRaiser

	dots uint64

	eventVBlank latch
	eventHBlank latch

	framebuffers        [2][]byte
	FramebufferSelect   bool
	soundBufferCursor   int
}

func New(renderer Renderer, via IRQRaiser) *Video {
	v := &Video{
		renderer: renderer,
		via:      via,
		framebuffers: [2][]byte{
			make([]byte, FramebufferSize),
			make([]byte, FramebufferSize),
		},
	}
	for i := range v.framebuffers[0] {
		v.framebuffers[0][i] = 0xFF
		v.framebuffers[1][i] = 0xFF
	}
	return v
}

func (v *Video) SetAudioSampler(a AudioSampler)   { v.audio = a }
func (v *Video) SetPWMSampler(p PWMSampler)       { v.pwm = p }
func (v *Video) SetSoundSource(s SoundSource)     { v.sound = s }

func (v *Video) Framebuffer(page int) []byte { return v.framebuffers[page] }

func (v *Video) InVBlank() bool { return v.dots < frameVisibleOff }

func (v *Video) InHBlank() bool { return v.dots%hDots >= hVisibleDots }

func (v *Video) InBlankingPeriod() bool { return v.InHBlank() || v.InVBlank() }

func (v *Video) Scanline() int { return int(v.dots / hDots) }

// VisibleScanline returns the current scanline offset from the top of
// the visible frame, or -1 during VBlank.
func (v *Video) VisibleScanline() int {
	if v.InVBlank() {
		return -1
	}
	return v.Scanline() - vBlankLines
}

func (v *Video) GetClrVBlank() bool { return v.eventVBlank.GetClear() }
func (v *Video) GetClrHBlank() bool { return v.eventHBlank.GetClear() }

// Tick advances the beam by ticks dots, firing VBlank/HBlank edge
// effects exactly as the hardware would (spec.md section 4.10).
func (v *Video) Tick(ticks int) int {
	beforeVBlank := v.InVBlank()
	beforeHBlank := v.InHBlank()

	v.dots = (v.dots + uint64(ticks)) % frameDots

	if !beforeVBlank && v.InVBlank() {
		v.eventVBlank.Set()
		if v.via != nil {
			v.via.RaiseVBlank()
		}
		if err := v.render(); err != nil && v.Log != nil {
			v.Log.WithError(err).Warn("video: render failed")
		}
	}

	if !beforeHBlank && v.InHBlank() {
		v.eventHBlank.Set()
		v.latchHBlankSample()
	}

	return ticks
}

// latchHBlankSample steps one sound/PWM byte pair through the
// interleaved sound buffer at RAM-end: the low (PWM) byte goes to SWIM,
// and ASC is told to queue a sample. The high (sound) byte is not
// passed to ASC.
func (v *Video) latchHBlankSample() {
	if v.sound == nil {
		return
	}
	word := v.sound.SoundByte(2*v.soundBufferCursor + 1)
	v.soundBufferCursor++
	if v.audio != nil {
		v.audio.Tick(true)
	}
	if v.pwm != nil {
		v.pwm.PushPWM(word)
	}
}

func (v *Video) render() error {
	if v.renderer == nil {
		return nil
	}
	fb := v.framebuffers[0]
	if v.FramebufferSelect {
		fb = v.framebuffers[1]
	}

	v.renderer.SetSize(hVisibleDots, vVisibleLines)
	buf := v.renderer.Pixels()
	for idx := 0; idx < frameVisibleDots; idx++ {
		byteIdx := idx / 8
		bit := uint(idx % 8)
		off := idx * 4
		if off+3 >= len(buf) {
			break
		}
		if fb[byteIdx]&(1<<(7-bit)) == 0 {
			buf[off], buf[off+1], buf[off+2] = 0xEE, 0xEE, 0xEE
		} else {
			buf[off], buf[off+1], buf[off+2] = 0x22, 0x22, 0x22
		}
		buf[off+3] = 0xFF
	}
	return v.renderer.Update()
}

// Blank fills both framebuffers white and forces a render.
func (v *Video) Blank() error {
	for i := range v.framebuffers {
		for j := range v.framebuffers[i] {
			v.framebuffers[i][j] = 0xFF
		}
	}
	return v.render()
}
