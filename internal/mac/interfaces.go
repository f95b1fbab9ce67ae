package mac

// This file enumerates the external-collaborator boundary types this
// machine depends on but does not implement itself: GUI rendering,
// audio output, keyboard/mouse HID plumbing, floppy flux decoding, and
// snapshot transport are all out of scope for the emulator core and
// left to whatever embeds it.

// Renderer receives a decoded RGBA frame once per VBlank. Turning that
// into pixels on screen is a frontend concern.
type Renderer interface {
	SetSize(w, h int)
	Pixels() []byte
	Update() error
}

// AudioOutput receives completed PCM sample buffers from the sound
// chip. Actually playing them through a sound device is a frontend
// concern.
type AudioOutput interface {
	PushAudioBuffer(buf []uint8)
}

// InputSource delivers keyboard and mouse events into the machine.
// HID plumbing (reading an OS input device, a GUI toolkit's event
// loop) lives entirely outside this package.
type InputSource interface {
	MouseDown() bool
	MouseX() int
	MouseY() int
}

// FloppyImage is a flux-decoded track bitstream ready for the floppy
// controller to read bit-serially. Decoding an on-disk image format
// (.dsk, .img, MOOF) into this shape is left to the caller.
type FloppyImage interface {
	TrackData(track int) []byte
}

// Debuggable exposes free-form key/value state for an interactive
// inspector; rendering that into a UI is a frontend concern.
type Debuggable interface {
	DebugProperties() map[string]string
}
