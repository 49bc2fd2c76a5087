// Package config manages lazyimg configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultScriptSrc is the lazy-loading library injected by the bootstrap
// script.
const DefaultScriptSrc = "https://cdn.jsdelivr.net/npm/lazysizes@5/lazysizes.min.js"

// Config is the build-wide configuration. It is read once at startup and
// treated as read-only afterwards.
type Config struct {
	ImgSelector          string            `yaml:"img_selector"`
	ClassName            ClassNames        `yaml:"class_name"`
	CacheFile            string            `yaml:"cache_file"`
	AppendInitScript     bool              `yaml:"append_init_script"`
	ScriptSrc            string            `yaml:"script_src"`
	PreferNativeLazyLoad bool              `yaml:"prefer_native_lazy_load"`
	// RootDir is where root-relative references resolve. Empty means the
	// working directory, or the site directory for the build command.
	RootDir              string            `yaml:"root_dir"`
	FallbackDir          string            `yaml:"fallback_dir"`
	Placeholder          PlaceholderConfig `yaml:"placeholder"`
	Fetch                FetchConfig       `yaml:"fetch"`
	Workers              int               `yaml:"workers"`
	Log                  LogConfig         `yaml:"log"`
}

// PlaceholderConfig selects a placeholder profile and overrides parts of it.
// Zero values keep the profile's setting.
type PlaceholderConfig struct {
	Profile   string   `yaml:"profile"`
	MaxWidth  int      `yaml:"max_width"`
	MaxHeight int      `yaml:"max_height"`
	Quality   int      `yaml:"quality"`
	// Blur is the gaussian sigma. Unset keeps the profile's; 0 disables.
	Blur      *float64 `yaml:"blur,omitempty"`
}

// FetchConfig controls remote image references.
type FetchConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClassNames accepts either a single class name or a list in YAML.
type ClassNames []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ClassNames) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*c = ClassNames(strings.Fields(s))
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = ClassNames(list)
		return nil
	}
	return fmt.Errorf("class_name: expected string or list, got %v", node.Tag)
}

// Contains reports whether name is one of the class names.
func (c ClassNames) Contains(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ImgSelector:      "img",
		ClassName:        ClassNames{"lazyload"},
		CacheFile:        ".lazyimages.json",
		AppendInitScript: true,
		ScriptSrc:        DefaultScriptSrc,
		FallbackDir:      "src",
		Placeholder: PlaceholderConfig{
			Profile: "lqip",
		},
		Fetch: FetchConfig{
			Enabled:   true,
			MaxBytes:  32 << 20,
			UserAgent: "lazyimg",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate returns warnings for settings that are legal but probably not
// what the user meant, and an error for settings that cannot work.
func (c *Config) Validate() (warnings []string, err error) {
	if strings.TrimSpace(c.ImgSelector) == "" {
		return nil, fmt.Errorf("img_selector must not be empty")
	}
	if c.Placeholder.MaxWidth < 0 || c.Placeholder.MaxHeight < 0 {
		return nil, fmt.Errorf("placeholder size must not be negative")
	}
	if c.Placeholder.Blur != nil && *c.Placeholder.Blur < 0 {
		return nil, fmt.Errorf("placeholder blur must not be negative")
	}
	if c.Placeholder.Quality < 0 || c.Placeholder.Quality > 100 {
		return nil, fmt.Errorf("placeholder quality must be between 0 and 100")
	}
	if c.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative")
	}

	defaultScript := c.ScriptSrc == DefaultScriptSrc
	if !defaultScript && !c.AppendInitScript {
		warnings = append(warnings, "script_src will be ignored because append_init_script=false")
	}
	if defaultScript && c.AppendInitScript && !c.ClassName.Contains("lazyload") {
		warnings = append(warnings, `lazysizes with the default config requires "lazyload" be included in class_name`)
	}
	return warnings, nil
}
