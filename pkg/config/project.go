package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

const ProjectFileName = "cinterp.toml"

// Project is the cinterp.toml file that sits next to (or above) the sources.
type Project struct {
	Features map[string]bool `toml:"features"`
	Warnings map[string]bool `toml:"warnings"`
	Run      RunConfig       `toml:"run"`

	// Path is the file the project was read from (set at load time).
	Path string `toml:"-"`
}

type RunConfig struct {
	MaxCallDepth int    `toml:"max-call-depth"`
	Phase        string `toml:"phase"`
}

// LoadProject parses a cinterp.toml file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	p.Path = path
	return &p, nil
}

// FindProject walks up from startDir looking for cinterp.toml. It returns nil, nil when
// there is none.
func FindProject(startDir string) (*Project, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}
	for {
		path := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(path); err == nil {
			return LoadProject(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Apply copies the project settings into c. Unknown names are reported, not ignored.
func (p *Project) Apply(c *Config) error {
	for _, name := range sortedKeys(p.Features) {
		if err := c.SetFeatureByName(name, p.Features[name]); err != nil {
			return fmt.Errorf("%s: [features]: %w", p.Path, err)
		}
	}
	for _, name := range sortedKeys(p.Warnings) {
		if err := c.SetWarningByName(name, p.Warnings[name]); err != nil {
			return fmt.Errorf("%s: [warnings]: %w", p.Path, err)
		}
	}
	if p.Run.MaxCallDepth < 0 {
		return fmt.Errorf("%s: [run]: max-call-depth must not be negative", p.Path)
	}
	if p.Run.MaxCallDepth > 0 {
		c.MaxCallDepth = p.Run.MaxCallDepth
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
