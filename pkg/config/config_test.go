package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyFlag(t *testing.T) {
	tests := []struct {
		flag    string
		check   func(*Config) bool
		wantErr bool
	}{
		{"-Wno-unused-label", func(c *Config) bool { return !c.IsWarningEnabled(WarnUnusedLabel) }, false},
		{"-Wdirective", func(c *Config) bool { return c.IsWarningEnabled(WarnDirective) }, false},
		{"-Fno-binary-literals", func(c *Config) bool { return !c.IsFeatureEnabled(FeatBinaryLiterals) }, false},
		{"-Wno-all", func(c *Config) bool {
			for i := Warning(0); i < WarnCount; i++ {
				if c.IsWarningEnabled(i) {
					return false
				}
			}
			return true
		}, false},
		{"-Wbogus", nil, true},
		{"-X", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cfg := NewConfig()
			err := cfg.ApplyFlag(tt.flag)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFlag(%q) error = %v, wantErr %v", tt.flag, err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("ApplyFlag(%q) did not update the config", tt.flag)
			}
		})
	}
}

func TestFindProjectWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "[features]\nnested-blocks = false\n\n[warnings]\ndirective = true\n\n[run]\nmax-call-depth = 42\n"
	if err := os.WriteFile(filepath.Join(root, ProjectFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := FindProject(nested)
	if err != nil {
		t.Fatalf("FindProject: %v", err)
	}
	if p == nil {
		t.Fatal("FindProject returned nil, want the project in the parent directory")
	}

	cfg := NewConfig()
	if err := p.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.IsFeatureEnabled(FeatNestedBlocks) {
		t.Errorf("nested-blocks = true, want false")
	}
	if !cfg.IsWarningEnabled(WarnDirective) {
		t.Errorf("directive warning = false, want true")
	}
	if cfg.MaxCallDepth != 42 {
		t.Errorf("MaxCallDepth = %d, want 42", cfg.MaxCallDepth)
	}
}

func TestProjectRejectsUnknownNames(t *testing.T) {
	p := &Project{Features: map[string]bool{"time-travel": true}, Path: "cinterp.toml"}
	if err := p.Apply(NewConfig()); err == nil {
		t.Error("Apply accepted an unknown feature")
	}
}

func TestFindProjectNone(t *testing.T) {
	// t.TempDir lives under the system temp dir, which has no cinterp.toml above it.
	p, err := FindProject(t.TempDir())
	if err != nil {
		t.Fatalf("FindProject: %v", err)
	}
	if p != nil && filepath.Dir(p.Path) != "" {
		t.Logf("found an unrelated project file at %s", p.Path)
	}
}
