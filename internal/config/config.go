// Package config builds the lasertracker runtime configuration from
// defaults, an optional JSON file and command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ayusman/lasertracker/internal/detector"
)

// Source kinds
const (
	SourceCamera    = "camera"
	SourceSynthetic = "synthetic"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds runtime configuration. Width is always the horizontal size
// and Height the vertical one.
type Config struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	HueMin int `json:"hue_min"`
	HueMax int `json:"hue_max"`
	SatMin int `json:"sat_min"`
	SatMax int `json:"sat_max"`
	ValMin int `json:"val_min"`
	ValMax int `json:"val_max"`

	// IncludeSaturation ANDs the saturation mask into the laser mask.
	IncludeSaturation bool `json:"use_saturation"`

	// Device is kept as text so a bad value can fall back to 0 with a warning.
	// Config files may give it as a JSON number or string.
	Device string `json:"device"`
	Video  string `json:"video"`
	Source string `json:"source"`

	Headless bool   `json:"headless"`
	Tray     bool   `json:"tray"`
	Listen   string `json:"listen"`
	DBPath   string `json:"db"`
	LogLevel string `json:"log_level"`

	Profile     string `json:"-"`
	SaveProfile string `json:"-"`
	File        string `json:"-"`

	explicit map[string]bool
}

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		Width:    640,
		Height:   480,
		HueMin:   5,
		HueMax:   6,
		SatMin:   50,
		SatMax:   100,
		ValMin:   250,
		ValMax:   256,
		Device:   "0",
		Source:   SourceCamera,
		LogLevel: "info",
	}
}

// Load reads a JSON config file over the defaults. Fields missing from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.File = path
	return cfg, nil
}

// UnmarshalJSON accepts "device" as either a number or a string.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		Device json.RawMessage `json:"device"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Device) == 0 || string(aux.Device) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.Device, &s); err == nil {
		c.Device = s
		return nil
	}
	var n int
	if err := json.Unmarshal(aux.Device, &n); err == nil {
		c.Device = strconv.Itoa(n)
		return nil
	}
	return fmt.Errorf("device must be a number or a string, got %s", aux.Device)
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// aliases maps short flag names to their long form.
var aliases = map[string]string{
	"W": "width",
	"H": "height",
	"u": "huemin",
	"U": "huemax",
	"s": "satmin",
	"S": "satmax",
	"v": "valmin",
	"V": "valmax",
	"d": "device",
}

// newFlagSet binds every flag, long and short, to fields of c.
func newFlagSet(c *Config, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("lasertracker", flag.ContinueOnError)
	fs.SetOutput(out)

	intFlag := func(p *int, name, short, usage string) {
		fs.IntVar(p, name, *p, usage)
		if short != "" {
			fs.IntVar(p, short, *p, usage+" (shorthand)")
		}
	}

	intFlag(&c.Width, "width", "W", "Camera width")
	intFlag(&c.Height, "height", "H", "Camera height")
	intFlag(&c.HueMin, "huemin", "u", "Hue minimum threshold")
	intFlag(&c.HueMax, "huemax", "U", "Hue maximum threshold")
	intFlag(&c.SatMin, "satmin", "s", "Saturation minimum threshold")
	intFlag(&c.SatMax, "satmax", "S", "Saturation maximum threshold")
	intFlag(&c.ValMin, "valmin", "v", "Value minimum threshold")
	intFlag(&c.ValMax, "valmax", "V", "Value maximum threshold")

	fs.StringVar(&c.Device, "device", c.Device, "Camera device index")
	fs.StringVar(&c.Device, "d", c.Device, "Camera device index (shorthand)")
	fs.BoolVar(&c.IncludeSaturation, "use-saturation", c.IncludeSaturation, "Include the saturation mask in laser detection")
	fs.StringVar(&c.Video, "video", c.Video, "Read frames from a video file instead of a camera")
	fs.StringVar(&c.Source, "source", c.Source, "Frame source: camera or synthetic")
	fs.BoolVar(&c.Headless, "headless", c.Headless, "Do not open any windows")
	fs.BoolVar(&c.Tray, "tray", c.Tray, "Show status and a Quit item in the system tray (requires -headless)")
	fs.StringVar(&c.Listen, "listen", c.Listen, "Serve MJPEG streams and the API on this address, e.g. :8080")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "Profile database path (default ~/.lasertracker/lasertracker.db)")
	fs.StringVar(&c.Profile, "profile", c.Profile, "Load threshold ranges from a stored profile")
	fs.StringVar(&c.SaveProfile, "save-profile", c.SaveProfile, "Store the effective threshold ranges under this name")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.File, "config", c.File, "JSON config file; flags override it")

	return fs
}

// Parse builds a Config from command-line arguments. If -config names a
// file, its values replace the defaults and explicit flags still win.
func Parse(args []string, out io.Writer) (*Config, error) {
	cfg := Default()
	fs := newFlagSet(cfg, out)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if cfg.File != "" {
		base, err := Load(cfg.File)
		if err != nil {
			return nil, err
		}
		// Parse again on top of the file so only explicit flags override it.
		fs = newFlagSet(base, out)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		cfg = base
	}

	cfg.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := aliases[name]; ok {
			name = long
		}
		cfg.explicit[name] = true
	})

	return cfg, nil
}

// IsSet reports whether the named flag (long form) was given explicitly.
func (c *Config) IsSet(name string) bool {
	return c.explicit[name]
}

// Validate checks values that would make detection impossible.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: camera size %dx%d must be positive", ErrInvalid, c.Width, c.Height)
	}
	switch c.Source {
	case SourceCamera, SourceSynthetic:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalid, c.Source)
	}
	if c.Video != "" && c.Source == SourceSynthetic {
		return fmt.Errorf("%w: -video cannot be combined with -source synthetic", ErrInvalid)
	}
	// The tray and HighGUI windows both need the main thread.
	if c.Tray && !c.Headless {
		return fmt.Errorf("%w: -tray requires -headless", ErrInvalid)
	}
	return nil
}

// ParseDevice parses a camera device index. ok is false for anything that
// is not a non-negative integer, in which case device 0 is returned.
func ParseDevice(s string) (device int, ok bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Ranges returns the hue, saturation and value threshold ranges.
func (c *Config) Ranges() (hue, sat, val detector.Range) {
	return detector.Range{Min: c.HueMin, Max: c.HueMax},
		detector.Range{Min: c.SatMin, Max: c.SatMax},
		detector.Range{Min: c.ValMin, Max: c.ValMax}
}

// ApplyRanges sets the threshold ranges and saturation toggle, leaving any
// value that was given explicitly on the command line untouched.
func (c *Config) ApplyRanges(hue, sat, val detector.Range, includeSaturation bool) {
	set := func(name string, dst *int, v int) {
		if !c.IsSet(name) {
			*dst = v
		}
	}
	set("huemin", &c.HueMin, hue.Min)
	set("huemax", &c.HueMax, hue.Max)
	set("satmin", &c.SatMin, sat.Min)
	set("satmax", &c.SatMax, sat.Max)
	set("valmin", &c.ValMin, val.Min)
	set("valmax", &c.ValMax, val.Max)
	if !c.IsSet("use-saturation") {
		c.IncludeSaturation = includeSaturation
	}
}

// DetectorConfig returns the immutable detector configuration.
func (c *Config) DetectorConfig() detector.Config {
	hue, sat, val := c.Ranges()
	return detector.Config{
		Width:             c.Width,
		Height:            c.Height,
		Hue:               hue,
		Saturation:        sat,
		Value:             val,
		IncludeSaturation: c.IncludeSaturation,
	}
}
