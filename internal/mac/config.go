package mac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/twvd-go/snow68k/internal/m68k"
)

// Config is the decoded shape of a machine configuration file: CPU
// model, ROM path, RAM size, attached SCSI targets, and floppy images
// (SPEC_FULL.md section 1, "Configuration").
type Config struct {
	Model string `yaml:"model"`
	ROM   string `yaml:"rom"`

	RAMSize int `yaml:"ram_size"`

	SCSI [scsiTargetSlots]SCSIDiskConfig `yaml:"scsi"`

	Floppies []string `yaml:"floppies"`

	PMMU bool `yaml:"pmmu"`
}

const scsiTargetSlots = 7

// SCSIDiskConfig describes one attached SCSI disk backing store.
type SCSIDiskConfig struct {
	ID       int    `yaml:"id"`
	Image    string `yaml:"image"`
	ReadOnly bool   `yaml:"read_only"`
	CDROM    bool   `yaml:"cdrom"`
}

// LoadConfig reads and validates a machine configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	if cfg.ROM == "" {
		return nil, fmt.Errorf("config %q: rom path is required", path)
	}
	if cfg.RAMSize == 0 {
		cfg.RAMSize = 4 * 1024 * 1024
	}
	if _, err := cfg.cpuModel(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) cpuModel() (m68k.CPUModel, error) {
	switch c.Model {
	case "", "68000":
		return m68k.M68000, nil
	case "68010":
		return m68k.M68010, nil
	case "68020":
		return m68k.M68020, nil
	default:
		return 0, fmt.Errorf("unknown cpu model %q", c.Model)
	}
}
