// Package mac wires the CPU core and its peripherals into a concrete
// Mac Plus-class machine: bus memory map, VIA, SCSI, SWIM, ASC, and
// video, plus configuration loading (SPEC_FULL.md section 0).
package mac

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/twvd-go/snow68k/internal/asc"
	"github.com/twvd-go/snow68k/internal/bus"
	"github.com/twvd-go/snow68k/internal/m68k"
	"github.com/twvd-go/snow68k/internal/scsi"
	"github.com/twvd-go/snow68k/internal/swim"
	"github.com/twvd-go/snow68k/internal/via"
	"github.com/twvd-go/snow68k/internal/video"
)

// Machine is a fully wired Mac Plus: CPU, system bus, and peripherals.
type Machine struct {
	Log logrus.FieldLogger

	CPU   *m68k.CPU
	Bus   *bus.SystemBus
	VIA   *via.VIA
	SCSI  *scsi.Controller
	SWIM  *swim.Controller
	ASC   *asc.ASC
	Video *video.Video

	cfg *Config
}

// New builds a Machine from a validated Config and a ROM image.
func New(cfg *Config, rom []byte, log logrus.FieldLogger) (*Machine, error) {
	if log == nil {
		log = defaultLogger()
	}
	var entry *logrus.Entry
	switch l := log.(type) {
	case *logrus.Entry:
		entry = l
	case *logrus.Logger:
		entry = logrus.NewEntry(l)
	default:
		entry = logrus.NewEntry(logrus.StandardLogger())
	}

	m := &Machine{Log: log, cfg: cfg}

	m.Bus = bus.NewSystemBus(rom, entry.WithField("component", "bus"))
	m.VIA = via.New(entry.WithField("component", "via"))
	m.SCSI = scsi.New(entry.WithField("component", "scsi"))
	m.SWIM = swim.New(entry.WithField("component", "swim"))
	m.ASC = asc.New(entry.WithField("component", "asc"), nil)
	m.Video = video.New(nil, m.VIA)

	m.VIA.SetOverlayObserver(m.Bus)
	m.Video.SetAudioSampler(m.ASC)
	m.Video.SetPWMSampler(m.SWIM)
	m.Video.SetSoundSource(m)

	m.Bus.AddDevice("via", bus.VIABase, bus.VIAEnd, m.VIA)
	m.Bus.AddDevice("scsi", bus.SCSIBase, bus.SCSIEnd, m.SCSI)
	m.Bus.AddDevice("swim", bus.IWMBase, bus.IWMEnd, m.SWIM)
	m.Bus.AddDevice("asc", bus.ASCBase, bus.ASCEnd, m.ASC)

	model, err := cfg.cpuModel()
	if err != nil {
		return nil, err
	}
	if cfg.PMMU {
		m.Bus.SetPMMU(bus.NewPMMU())
	}
	m.CPU = m68k.NewModel(m.Bus, m68k.Config{Model: model, EnablePMMU: cfg.PMMU})

	for _, disk := range cfg.SCSI {
		if disk.Image == "" {
			continue
		}
		if err := m.attachSCSIDisk(disk); err != nil {
			return nil, fmt.Errorf("attaching scsi id %d: %w", disk.ID, err)
		}
	}

	for i, path := range cfg.Floppies {
		if path == "" || i >= swim.DriveCount {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading floppy image %q: %w", path, err)
		}
		m.SWIM.InsertDisk(i, data)
	}

	return m, nil
}

func (m *Machine) attachSCSIDisk(disk SCSIDiskConfig) error {
	if disk.ID < 0 || disk.ID >= scsi.MaxTargets {
		return fmt.Errorf("id %d out of range", disk.ID)
	}
	f, err := os.OpenFile(disk.Image, fileFlags(disk.ReadOnly), 0)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return err
	}
	var writable io.WriterAt
	if !disk.ReadOnly {
		writable = f
	}
	m.SCSI.Targets[disk.ID] = scsi.NewDiskTarget(disk.Image, f, writable, info.Size(), disk.CDROM)
	return nil
}

func fileFlags(readOnly bool) int {
	if readOnly {
		return os.O_RDONLY
	}
	return os.O_RDWR
}

// SoundByte implements video.SoundSource by reading from the sound
// buffer at RAM-end selected by VIA's page bit (spec.md section 4.10).
func (m *Machine) SoundByte(offset int) uint8 {
	base := uint32(video.FramebufferMainOffset)
	if !m.VIA.SoundBufferMain() {
		base = video.FramebufferAltOffset
	}
	return m.Bus.RAMByteFromEnd(base, offset)
}

// Run executes cycles instructions worth of bus time, ticking every
// peripheral and feeding aggregated IRQs back into the CPU.
func (m *Machine) Run(totalCycles int) {
	remaining := totalCycles
	for remaining > 0 {
		used := m.CPU.StepCycles(remaining)
		if used <= 0 {
			used = 1
		}
		level := m.Bus.Tick(used)
		m.Video.Tick(used)
		if level > 0 {
			m.CPU.RequestInterrupt(level, nil)
		}
		remaining -= used
	}
}

// Reset performs a full machine reset.
func (m *Machine) Reset() {
	m.Bus.Reset()
	m.CPU.Reset()
}
