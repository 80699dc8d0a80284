package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory.
const DefaultConfigFile = "formcrop.yaml"

type zoneYAML struct {
	Label    string   `yaml:"label"`
	Rect     []int    `yaml:"rect,flow"`
	Strategy Strategy `yaml:"strategy,omitempty"`
}

// UnmarshalYAML reads a zone written as {label, rect: [x1, y1, x2, y2], strategy}.
// An omitted strategy means direct crop.
func (z *Zone) UnmarshalYAML(value *yaml.Node) error {
	var raw zoneYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if len(raw.Rect) != 4 {
		return fmt.Errorf("%w: zone %q has %d values", ErrInvalidRect, raw.Label, len(raw.Rect))
	}
	z.Label = raw.Label
	z.Rect = image.Rectangle{
		Min: image.Point{X: raw.Rect[0], Y: raw.Rect[1]},
		Max: image.Point{X: raw.Rect[2], Y: raw.Rect[3]},
	}
	z.Strategy = raw.Strategy
	if z.Strategy == "" {
		z.Strategy = StrategyDirect
	}
	return nil
}

// MarshalYAML writes the zone in the same shape UnmarshalYAML reads.
func (z Zone) MarshalYAML() (interface{}, error) {
	return zoneYAML{
		Label:    z.Label,
		Rect:     []int{z.Rect.Min.X, z.Rect.Min.Y, z.Rect.Max.X, z.Rect.Max.Y},
		Strategy: z.Strategy,
	}, nil
}

// Load reads a YAML file on top of Default(). Keys absent from the file keep
// their default values; a zones list in the file replaces the default zones.
// The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // user supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, ErrConfigNotFound
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Write stores cfg as YAML, creating parent directories as needed.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FindConfigFile resolves the config path:
//  1. explicit, if it exists
//  2. ./formcrop.yaml
//  3. $XDG_CONFIG_HOME/formcrop/config.yaml
//
// It returns "" when nothing is found.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	p := UserConfigFile()
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// UserConfigFile is the per-user configuration path under the XDG config home.
func UserConfigFile() string {
	return filepath.Join(XDGConfigDir(), "config.yaml")
}
