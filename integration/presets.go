// Package integration assembles a ready-to-use slot consensus engine from
// named presets. A preset bundles network rules with the engine's resource
// knobs (snapshot cache, detector shards, evidence journal, metrics) so that
// callers pick "fakenet", "testnet" or "mainnet" and override what they need.
package integration

import (
	"fmt"

	"github.com/rony4d/go-aura-asset/aura"
	"github.com/rony4d/go-aura-asset/consensus/engine"
	"github.com/rony4d/go-aura-asset/consensus/equivocation"
)

// PresetConfig is one named engine profile.
type PresetConfig struct {
	Name  string
	Rules aura.Rules

	SnapshotCache  int  // chain positions kept in the snapshot cache
	DetectorShards int  // lock shards of the equivocation detector
	Journal        bool // keep evidence in a journal that outlives the retention window
	EnableMetrics  bool
}

// MainNetPreset is the production profile.
func MainNetPreset() PresetConfig {
	return PresetConfig{
		Name:           "mainnet",
		Rules:          aura.MainNetRules(),
		SnapshotCache:  engine.DefaultSnapshotCacheSize,
		DetectorShards: equivocation.DefaultShards,
		Journal:        true,
		EnableMetrics:  true,
	}
}

// TestNetPreset matches mainnet on the test network rules.
func TestNetPreset() PresetConfig {
	cfg := MainNetPreset()
	cfg.Name = "testnet"
	cfg.Rules = aura.TestNetRules()
	return cfg
}

// FakeNetPreset is a small profile for local runs and tests.
func FakeNetPreset() PresetConfig {
	return PresetConfig{
		Name:           "fakenet",
		Rules:          aura.FakeNetRules(),
		SnapshotCache:  64,
		DetectorShards: 4,
		Journal:        false,
		EnableMetrics:  false,
	}
}

// GetPresetByName looks up a preset by name.
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "mainnet":
		return MainNetPreset(), nil
	case "testnet":
		return TestNetPreset(), nil
	case "fakenet":
		return FakeNetPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: fakenet, testnet, mainnet)", name)
	}
}

// Overrides adjust a preset. Zero values keep the preset's setting.
type Overrides struct {
	SnapshotCache  int
	DetectorShards int
	Journal        *bool
	// EnableMetrics turns metrics on. A preset that enables them keeps them.
	EnableMetrics bool
}

// ApplyOverrides applies o on top of target.
func ApplyOverrides(target *PresetConfig, o Overrides) {
	if o.SnapshotCache > 0 {
		target.SnapshotCache = o.SnapshotCache
	}
	if o.DetectorShards > 0 {
		target.DetectorShards = o.DetectorShards
	}
	if o.Journal != nil {
		target.Journal = *o.Journal
	}
	target.EnableMetrics = target.EnableMetrics || o.EnableMetrics
}
