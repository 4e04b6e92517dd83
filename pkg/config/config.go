package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xplshn/cinterp/pkg/cli"
)

type Feature int

const (
	FeatDirectives Feature = iota
	FeatBinaryLiterals
	FeatNestedBlocks
	FeatAutoInfer
	FeatCount
)

type Warning int

const (
	WarnUnusedLabel Warning = iota
	WarnDuplicateCase
	WarnUnreachableCode
	WarnDirective
	WarnCount
)

const DefaultMaxCallDepth = 10000

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features     map[Feature]Info
	Warnings     map[Warning]Info
	FeatureMap   map[string]Feature
	WarningMap   map[string]Warning
	MaxCallDepth int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:     make(map[Feature]Info),
		Warnings:     make(map[Warning]Info),
		FeatureMap:   make(map[string]Feature),
		WarningMap:   make(map[string]Warning),
		MaxCallDepth: DefaultMaxCallDepth,
	}

	features := map[Feature]Info{
		FeatDirectives:     {"directives", true, "Accept '#' preprocessor lines as program items (they are never expanded)."},
		FeatBinaryLiterals: {"binary-literals", true, "Recognize '0b' binary integer literals."},
		FeatNestedBlocks:   {"nested-blocks", true, "Allow a bare '{ ... }' block as a statement."},
		FeatAutoInfer:      {"auto-infer", true, "Let 'auto x = e' take the type of its initializer."},
	}

	warnings := map[Warning]Info{
		WarnUnusedLabel:     {"unused-label", true, "Warn about labels that no goto refers to."},
		WarnDuplicateCase:   {"duplicate-case", true, "Warn about repeated constant case values in a switch."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements after return, break, continue or goto."},
		WarnDirective:       {"directive", false, "Warn when a preprocessor directive is ignored."},
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

// WarningName returns the flag name used in diagnostics, e.g. "unused-label".
func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

// SetFeatureByName and SetWarningByName back the project file and -F/-W flags.
func (c *Config) SetFeatureByName(name string, enabled bool) error {
	ft, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(ft, enabled)
	return nil
}

func (c *Config) SetWarningByName(name string, enabled bool) error {
	if name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enabled)
		}
		return nil
	}
	wt, ok := c.WarningMap[name]
	if !ok {
		return fmt.Errorf("unknown warning '%s'", name)
	}
	c.SetWarning(wt, enabled)
	return nil
}

// ApplyFlag handles a single -W<name>, -Wno-<name>, -F<name> or -Fno-<name> argument.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	if len(trimmed) < 2 {
		return fmt.Errorf("invalid flag '%s'", flag)
	}
	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	switch trimmed[0] {
	case 'W':
		return c.SetWarningByName(name, enable)
	case 'F':
		return c.SetFeatureByName(name, enable)
	}
	return fmt.Errorf("invalid flag '%s'", flag)
}

// FlagGroupEntries pairs each -W/-F flag with the switches the cli package fills in.
type FlagGroupEntries struct {
	Warnings []cli.FlagGroupEntry
	Features []cli.FlagGroupEntry
}

// SetupFlagGroups registers -W<warning> and -F<feature> groups on fs. Call Apply after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) *FlagGroupEntries {
	entries := &FlagGroupEntries{}
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		entries.Warnings = append(entries.Warnings, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		})
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		entries.Features = append(entries.Features, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		})
	}
	fs.AddFlagGroup("Warnings", "Diagnostics that never stop a phase.", "warning", "Available Warnings:", entries.Warnings)
	fs.AddFlagGroup("Features", "Language extensions.", "feature", "Available Features:", entries.Features)
	return entries
}

// Apply copies the parsed group switches into c. Explicit switches override the project file.
func (e *FlagGroupEntries) Apply(c *Config) {
	for i, entry := range e.Warnings {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range e.Features {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// Describe lists features and warnings with their state, sorted by name.
func (c *Config) Describe() []string {
	var lines []string
	for _, info := range c.Features {
		lines = append(lines, fmt.Sprintf("-F%-20s %v  %s", info.Name, info.Enabled, info.Description))
	}
	for _, info := range c.Warnings {
		lines = append(lines, fmt.Sprintf("-W%-20s %v  %s", info.Name, info.Enabled, info.Description))
	}
	sort.Strings(lines)
	return lines
}
