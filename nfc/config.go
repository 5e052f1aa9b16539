package nfc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/*
 * Configuration knobs (spec §6). All optional; each technology is
 * independently enable-able. Loaded from YAML (gopkg.in/yaml.v3, as the
 * teacher's deviceid.go already does for its device table) and overridable
 * by cmd/ tool flags.
 */

// TechConfig holds the per-technology thresholds of spec §6.
type TechConfig struct {
	Enabled              bool    `yaml:"enabled"`
	MinModulationDeep    float32 `yaml:"min_modulation_deep"`
	MaxModulationDeep    float32 `yaml:"max_modulation_deep"`
	CorrelationThreshold float32 `yaml:"correlation_threshold"`
}

func defaultTechConfig() TechConfig {
	return TechConfig{
		Enabled:              true,
		MinModulationDeep:    0.08,
		MaxModulationDeep:    1.00,
		CorrelationThreshold: 0.50,
	}
}

// Config is the whole-session configuration (spec §6).
type Config struct {
	SampleRate           int     `yaml:"sample_rate"`
	PowerLevelThreshold  float32 `yaml:"power_level_threshold"`
	MaxFrameSizeOverride int     `yaml:"max_frame_size_override,omitempty"`
	DebugChannelsEnabled bool    `yaml:"debug_channels_enabled"`

	NfcA    TechConfig `yaml:"nfc_a"`
	NfcB    TechConfig `yaml:"nfc_b"`
	NfcF    TechConfig `yaml:"nfc_f"`
	NfcV    TechConfig `yaml:"nfc_v"`
	Iso7816 TechConfig `yaml:"iso7816"`
}

// DefaultConfig returns a Config with every technology enabled at sensible
// defaults, sampling at 10 Msps (a common SDR front-end rate for 13.56 MHz
// IF capture).
func DefaultConfig() Config {
	return Config{
		SampleRate:          10_000_000,
		PowerLevelThreshold: 0.02,
		NfcA:                defaultTechConfig(),
		NfcB:                defaultTechConfig(),
		NfcF:                defaultTechConfig(),
		NfcV:                defaultTechConfig(),
		Iso7816:              defaultTechConfig(),
	}
}

// LoadConfig reads and validates a YAML config file, filling any field the
// file omits from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("nfc: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("nfc: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg back out as YAML, e.g. after CLI flag overrides, so a
// session can be reproduced exactly (spec §8 idempotence).
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("nfc: marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports a ConfigurationError for anything the session can't
// start with (spec §7: pre-session, reported to the caller, never fatal
// mid-session).
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return &SessionError{Kind: ErrConfiguration, Message: "sample_rate must be positive"}
	}
	for _, tc := range []struct {
		name string
		TechConfig
	}{
		{"nfc_a", c.NfcA}, {"nfc_b", c.NfcB}, {"nfc_f", c.NfcF}, {"nfc_v", c.NfcV}, {"iso7816", c.Iso7816},
	} {
		if tc.MinModulationDeep < 0 || tc.MaxModulationDeep > 1 || tc.MinModulationDeep > tc.MaxModulationDeep {
			return &SessionError{Kind: ErrConfiguration, Message: fmt.Sprintf("%s: invalid modulation depth range [%v,%v]", tc.name, tc.MinModulationDeep, tc.MaxModulationDeep)}
		}
		if tc.CorrelationThreshold < 0 || tc.CorrelationThreshold > 1 {
			return &SessionError{Kind: ErrConfiguration, Message: fmt.Sprintf("%s: invalid correlation_threshold %v", tc.name, tc.CorrelationThreshold)}
		}
	}
	return nil
}

func (c Config) techConfig(t Tech) TechConfig {
	switch t {
	case NfcA:
		return c.NfcA
	case NfcB:
		return c.NfcB
	case NfcF:
		return c.NfcF
	case NfcV:
		return c.NfcV
	case Iso7816:
		return c.Iso7816
	default:
		return TechConfig{}
	}
}

func (c Config) techEnabled(t Tech) bool { return c.techConfig(t).Enabled }

// MaxFrameSize returns the effective max frame size for tech, honouring
// MaxFrameSizeOverride when set.
func (c Config) MaxFrameSize(t Tech) int {
	if c.MaxFrameSizeOverride > 0 {
		return c.MaxFrameSizeOverride
	}
	switch t {
	case NfcA, NfcB:
		return 256
	case NfcF:
		return 255
	case NfcV:
		return 256
	case Iso7816:
		return 261 // 5-byte header + up to 256 payload
	default:
		return 256
	}
}
