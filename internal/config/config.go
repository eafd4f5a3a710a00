// Package config loads optional VM tuning knobs from a TOML file, grounded
// on manifest.Load's BurntSushi/toml usage: read the file, unmarshal into a
// struct with sane defaults applied to whatever the file left unset.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Limits caps the resources a single VM run may use, set via a TOML file
// passed on the command line with -config. Every field is optional; zero
// (the unmarshal default) means "use the built-in default" and is resolved
// in Load, never by the VM itself.
type Limits struct {
	// MaxValueStackDepth bounds value.Value entries on the VM's value
	// stack before a run is aborted with a stack-overflow error.
	MaxValueStackDepth int `toml:"max-value-stack-depth"`

	// MaxCallStackDepth bounds nested call frames before a run is
	// aborted, the interpreter-level analogue of a host stack overflow.
	MaxCallStackDepth int `toml:"max-call-stack-depth"`

	// MaxConstants overrides the compiler's constant pool cap. It can
	// only lower the built-in 256-entry ceiling (the pool index is a
	// single byte), never raise it.
	MaxConstants int `toml:"max-constants"`
}

const (
	defaultMaxValueStackDepth = 1 << 16
	defaultMaxCallStackDepth  = 1 << 14
	defaultMaxConstants       = 256
)

// Default returns the limits used when no -config file is given.
func Default() Limits {
	return Limits{
		MaxValueStackDepth: defaultMaxValueStackDepth,
		MaxCallStackDepth:  defaultMaxCallStackDepth,
		MaxConstants:       defaultMaxConstants,
	}
}

// Load parses a TOML file at path into Limits, filling in any field left
// zero (unset) with its default.
func Load(path string) (Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, errors.Wrapf(err, "reading config %s", path)
	}

	limits := Default()
	if err := toml.Unmarshal(data, &limits); err != nil {
		return Limits{}, errors.Wrapf(err, "parsing config %s", path)
	}

	if limits.MaxValueStackDepth <= 0 {
		limits.MaxValueStackDepth = defaultMaxValueStackDepth
	}
	if limits.MaxCallStackDepth <= 0 {
		limits.MaxCallStackDepth = defaultMaxCallStackDepth
	}
	if limits.MaxConstants <= 0 || limits.MaxConstants > defaultMaxConstants {
		limits.MaxConstants = defaultMaxConstants
	}
	return limits, nil
}
