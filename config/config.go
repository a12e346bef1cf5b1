// Package config carries pass configuration as a threaded record instead of
// package-level mutable state (the §9 design note about a global mutable
// source filename used in statistics applies equally to any similar
// ambient setting here: every entry point takes a *Config explicitly).
package config

import (
	"fmt"
	"io"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// MinIRVersion is the oldest ipgraph.Module.IRVersion this port accepts.
const MinIRVersion = "v0.1.0"

// Config is the threaded configuration record passed to every core entry
// point.
type Config struct {
	// TargetTriple and DataLayout override the ipgraph.Module's own values
	// when non-empty (a front end may leave them blank and let the pass
	// configuration supply a default).
	TargetTriple string `yaml:"targetTriple"`
	DataLayout   string `yaml:"dataLayout"`

	// DumpDigraphs enables writing the PTG digraph dump described in §6
	// after SteensgaardRun (done by the cmd/jlmgo driver; the location store
	// is not dumped).
	DumpDigraphs bool `yaml:"dumpDigraphs"`
	// DigraphDir names the directory digraph dumps are written to, when
	// DumpDigraphs is set.
	DigraphDir string `yaml:"digraphDir"`

	// MinIRVersion overrides the package default minimum accepted
	// ipgraph.Module.IRVersion, for callers pinning to an older contract.
	MinIRVersion string `yaml:"minIRVersion"`
}

// Default returns the zero-configuration default: no digraph dumps, the
// package's own MinIRVersion floor.
func Default() *Config {
	return &Config{MinIRVersion: MinIRVersion}
}

// Load parses a YAML configuration document, filling in MinIRVersion with
// the package default when the document does not set one.
func Load(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: %w", err)
	}
	if c.MinIRVersion == "" {
		c.MinIRVersion = MinIRVersion
	}
	return c, nil
}

// RequireMinIRVersion validates irVersion against c's configured floor using
// semantic-version comparison, giving the module's otherwise-unused
// golang.org/x/mod dependency a concrete home (§B domain stack).
func (c *Config) RequireMinIRVersion(irVersion string) error {
	if irVersion == "" {
		return fmt.Errorf("config: module has no IRVersion set")
	}
	floor := c.MinIRVersion
	if floor == "" {
		floor = MinIRVersion
	}
	if !semver.IsValid(irVersion) {
		return fmt.Errorf("config: module IRVersion %q is not a valid semver string", irVersion)
	}
	if !semver.IsValid(floor) {
		return fmt.Errorf("config: configured minIRVersion %q is not a valid semver string", floor)
	}
	if semver.Compare(irVersion, floor) < 0 {
		return fmt.Errorf("config: module IRVersion %s is older than the required minimum %s", irVersion, floor)
	}
	return nil
}
