// Package config implements the small immutable configuration record of
// §9's design notes: tolerance thresholds, the TODAY() override, worksheet
// naming policy, include search paths, and the logger, optionally overlaid
// from a forge.toml file the way the pack's untoldecay-BeadsLog repo
// overlays its own .toml config onto defaults.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/forgelang/forge/forgeerr"
)

// Config is passed by value into every engine operation; it is never
// mutated after construction (§5: "a small immutable Config value").
type Config struct {
	// AbsoluteTolerance and RelativeTolerance implement §4.7's comparison
	// rule: max(AbsoluteTolerance, RelativeTolerance*|computed|).
	AbsoluteTolerance float64
	RelativeTolerance float64

	// Now, when non-zero, pins TODAY()/NOW() for the whole run (§5:
	// "TODAY() samples wall-clock, once per run").
	Now time.Time

	// WorksheetPrefix is read from forge.toml's worksheet_prefix. The
	// bridge does not consult it: its sheet names come from document and
	// table names only.
	WorksheetPrefix string

	// IncludeSearchPaths is read from forge.toml's include_search_paths.
	// The loader does not consult it: a relative include is resolved
	// against the including document's directory only.
	IncludeSearchPaths []string

	Log *logrus.Entry
}

// Default returns the engine's built-in defaults before any forge.toml
// overlay.
func Default() Config {
	return Config{
		AbsoluteTolerance: 1e-9,
		RelativeTolerance: 1e-6,
		Log:               logrus.NewEntry(logrus.StandardLogger()),
	}
}

// fileConfig mirrors the subset of Config a forge.toml file may override;
// zero/absent fields leave the corresponding default untouched.
type fileConfig struct {
	AbsoluteTolerance  *float64 `toml:"absolute_tolerance"`
	RelativeTolerance  *float64 `toml:"relative_tolerance"`
	WorksheetPrefix    *string  `toml:"worksheet_prefix"`
	IncludeSearchPaths []string `toml:"include_search_paths"`
}

// LoadFile overlays path's forge.toml contents onto base, returning the
// merged Config. A missing optional field in the file leaves base's value
// in place.
func LoadFile(base Config, path string) (Config, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return base, forgeerr.IO(path, err)
	}
	merged := base
	if fc.AbsoluteTolerance != nil {
		merged.AbsoluteTolerance = *fc.AbsoluteTolerance
	}
	if fc.RelativeTolerance != nil {
		merged.RelativeTolerance = *fc.RelativeTolerance
	}
	if fc.WorksheetPrefix != nil {
		merged.WorksheetPrefix = *fc.WorksheetPrefix
	}
	if len(fc.IncludeSearchPaths) > 0 {
		merged.IncludeSearchPaths = fc.IncludeSearchPaths
	}
	return merged, nil
}

// Tolerance returns the absolute tolerance to use when comparing computed
// against stored for one scalar value, per §4.7.
func (c Config) Tolerance(computed float64) float64 {
	rel := c.RelativeTolerance * abs(computed)
	if rel > c.AbsoluteTolerance {
		return rel
	}
	return c.AbsoluteTolerance
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
