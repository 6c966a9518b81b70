// Package profile loads the device profile: serial timeouts, the
// retry cap, and the discovery candidate blacklist/name patterns
// (spec.md §6 "Discovery sink ... blacklist pattern configurable at
// build time"). Modeled on the teacher's config.Initialize: an
// embedded TOML default is written out on first run and then parsed.
package profile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed printerlink.toml
var defaultProfileData []byte

// Profile is the parsed on-disk configuration.
type Profile struct {
	// ShortTimeout is the default protocol read timeout (spec.md §4.2
	// "default short timeout").
	ShortTimeout time.Duration
	// BootTimeout is the long timeout used while waiting for the
	// firmware to boot during discovery (spec.md §4.5 step 3).
	BootTimeout time.Duration
	// ProbeTimeout is the very short timeout used for the initial
	// open, before reset (spec.md §4.5 step 1, "~10 ms").
	ProbeTimeout time.Duration
	// ResetSettle is the delay between DTR edges during reset
	// (spec.md §6 "Reset sequence", "~100 ms").
	ResetSettle time.Duration
	// MaxRetries is the link layer's retransmission cap (spec.md
	// §4.2, "default >= 10").
	MaxRetries int
	// Baud is the serial line rate (spec.md §6, "115200 baud").
	Baud int
	// Blacklist is a regular expression matched against candidate
	// device names; matches are excluded from discovery (spec.md §4.5
	// "exclude obvious non-candidates").
	Blacklist string
	// NamePattern, if non-empty, is a regular expression the device's
	// reported name must match (spec.md §4.5 "optional name pattern").
	NamePattern string
}

// fileFormat mirrors Profile but with TOML-friendly field types
// (durations as milliseconds).
type fileFormat struct {
	ShortTimeoutMS int    `toml:"short_timeout_ms"`
	BootTimeoutMS  int    `toml:"boot_timeout_ms"`
	ProbeTimeoutMS int    `toml:"probe_timeout_ms"`
	ResetSettleMS  int    `toml:"reset_settle_ms"`
	MaxRetries     int    `toml:"max_retries"`
	Baud           int    `toml:"baud"`
	Blacklist      string `toml:"blacklist"`
	NamePattern    string `toml:"name_pattern"`
}

func (f fileFormat) toProfile() Profile {
	return Profile{
		ShortTimeout: time.Duration(f.ShortTimeoutMS) * time.Millisecond,
		BootTimeout:  time.Duration(f.BootTimeoutMS) * time.Millisecond,
		ProbeTimeout: time.Duration(f.ProbeTimeoutMS) * time.Millisecond,
		ResetSettle:  time.Duration(f.ResetSettleMS) * time.Millisecond,
		MaxRetries:   f.MaxRetries,
		Baud:         f.Baud,
		Blacklist:    f.Blacklist,
		NamePattern:  f.NamePattern,
	}
}

// configPath determines the profile file location, following the
// teacher's config.configPath split between Windows AppData and the
// Unix home directory.
func configPath() (string, error) {
	var dir string
	var err error
	switch runtime.GOOS {
	case "windows":
		dir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("profile: cannot determine user config directory: %w", err)
		}
		dir = filepath.Join(dir, "printerlink")
	default:
		dir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("profile: cannot determine user home directory: %w", err)
		}
		dir = filepath.Join(dir, ".printerlink")
	}
	return filepath.Join(dir, "printerlink.toml"), nil
}

// Load reads the profile, creating it from the embedded default on
// first run.
func Load() (Profile, error) {
	path, err := configPath()
	if err != nil {
		return Profile{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Profile{}, fmt.Errorf("profile: create config directory %s: %w", dir, err)
		}
		if err := os.WriteFile(path, defaultProfileData, 0644); err != nil {
			return Profile{}, fmt.Errorf("profile: write default config to %s: %w", path, err)
		}
	}

	var f fileFormat
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Profile{}, fmt.Errorf("profile: parse %s: %w", path, err)
	}
	if f.Baud <= 0 {
		return Profile{}, fmt.Errorf("profile: %s: baud must be positive", path)
	}
	if f.MaxRetries <= 0 {
		return Profile{}, fmt.Errorf("profile: %s: max_retries must be positive", path)
	}
	return f.toProfile(), nil
}
