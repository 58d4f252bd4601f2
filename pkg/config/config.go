package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

type Feature int

const (
	FeatComments Feature = iota
	FeatBinaryLiterals
	FeatNestedBlocks
	FeatCount
)

type Warning int

const (
	WarnUnparsedDecl Warning = iota
	WarnOverflow
	WarnTruncatedLiteral
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	Threads    int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Threads:    runtime.NumCPU(),
	}

	features := map[Feature]Info{
		FeatComments:       {"comments", true, "Keep comments as Comment tokens."},
		FeatBinaryLiterals: {"binary-literals", true, "Evaluate '0b' numeric constants as binary numbers."},
		FeatNestedBlocks:   {"nested-blocks", false, "Accept nested '{ }' blocks inside function bodies."},
	}

	warnings := map[Warning]Info{
		WarnUnparsedDecl:     {"unparsed-decl", true, "Warn when a top-level declaration stops the parsing of a file."},
		WarnOverflow:         {"overflow", true, "Warn when a numeric constant is out of range."},
		WarnTruncatedLiteral: {"truncated-literal", true, "Warn when a floating constant is truncated to an integer."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetAllWarnings implements -Wall and -Wno-all.
func (c *Config) SetAllWarnings(enabled bool) {
	for i := Warning(0); i < WarnCount; i++ {
		c.SetWarning(i, enabled)
	}
}

// ApplyFlag applies a single -W<name>, -Wno-<name>, -F<name> or -Fno-<name>
// flag. Unknown names are reported as an error.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
	default:
		return fmt.Errorf("invalid flag '%s': expected -W or -F prefix", flag)
	}
	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning {
		if name == "all" {
			c.SetAllWarnings(enable)
			return nil
		}
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// fileConfig is the on-disk YAML form:
//
//	threads: 8
//	features:
//	  comments: false
//	warnings:
//	  unparsed-decl: false
type fileConfig struct {
	Threads  int             `yaml:"threads"`
	Features map[string]bool `yaml:"features"`
	Warnings map[string]bool `yaml:"warnings"`
}

// LoadFile applies the settings of a YAML configuration file. Command line
// flags are applied afterwards and take precedence.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return c.Load(data)
}

func (c *Config) Load(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if fc.Threads < 0 {
		return fmt.Errorf("parsing config: threads must be positive, got %d", fc.Threads)
	}
	if fc.Threads > 0 {
		c.Threads = fc.Threads
	}
	for name, enabled := range fc.Features {
		f, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("parsing config: unknown feature '%s'", name)
		}
		c.SetFeature(f, enabled)
	}
	for name, enabled := range fc.Warnings {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("parsing config: unknown warning '%s'", name)
		}
		c.SetWarning(w, enabled)
	}
	return nil
}
