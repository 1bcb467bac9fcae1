package launcher

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-aura-asset/aura"
	"github.com/rony4d/go-aura-asset/flags"
	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/integration"
)

// Config aggregates everything the launcher needs.
type Config struct {
	Node    NodeConfig
	Metrics MetricsConfig
	Aura    AuraConfig
	Engine  EngineConfig
}

type NodeConfig struct {
	Logging LoggingConfig
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string
}

type MetricsConfig struct {
	Enabled bool
}

// AuraConfig selects a preset and overrides its rules. Empty values keep
// the preset's. Durations are strings such as "6s".
type AuraConfig struct {
	Preset              string
	SlotDuration        string
	EpochZero           string // unix seconds
	MaxFutureDrift      string
	MinBlockGap         string
	RetentionWindow     uint64
	AcceptEquivocations bool
}

// EngineConfig overrides the preset's resource knobs. Zero keeps the preset's.
type EngineConfig struct {
	SnapshotCache  int
	DetectorShards int
	Journal        *bool `toml:",omitempty"`
}

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			Logging: LoggingConfig{
				Verbosity: d.Logging.Verbosity,
				Format:    d.Logging.Format,
				Color:     d.Logging.Color,
			},
		},
		Aura: AuraConfig{
			Preset: d.Preset,
		},
	}
}

// MakeAllConfigs merges defaults, the config file and CLI overrides, in
// that order.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if c := flagCtx(ctx, flags.ConfigFileFlag.Name); c != nil {
		file := resolvePath(c.String(flags.ConfigFileFlag.Name))
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	applyCLIOverrides(ctx, &cfg)

	if _, err := cfg.Preset(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = fmt.Errorf("%s, %w", path, err)
	}
	return err
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if c := flagCtx(ctx, flags.PresetFlag.Name); c != nil {
		cfg.Aura.Preset = c.String(flags.PresetFlag.Name)
	}

	if c := flagCtx(ctx, flags.LogVerbosityFlag.Name); c != nil {
		cfg.Node.Logging.Verbosity = c.Int(flags.LogVerbosityFlag.Name)
	}
	if c := flagCtx(ctx, flags.LogFormatFlag.Name); c != nil {
		cfg.Node.Logging.Format = c.String(flags.LogFormatFlag.Name)
	}
	if c := flagCtx(ctx, flags.LogColorFlag.Name); c != nil {
		cfg.Node.Logging.Color = c.Bool(flags.LogColorFlag.Name)
	}
	if c := flagCtx(ctx, flags.LogSentryFlag.Name); c != nil {
		cfg.Node.Logging.SentryDSN = c.String(flags.LogSentryFlag.Name)
	}
	if c := flagCtx(ctx, flags.MetricsEnabledFlag.Name); c != nil {
		cfg.Metrics.Enabled = c.Bool(flags.MetricsEnabledFlag.Name)
	}

	if c := flagCtx(ctx, flags.SlotDurationFlag.Name); c != nil {
		cfg.Aura.SlotDuration = c.Duration(flags.SlotDurationFlag.Name).String()
	}
	if c := flagCtx(ctx, flags.SlotEpochZeroFlag.Name); c != nil {
		cfg.Aura.EpochZero = strconv.FormatInt(c.Int64(flags.SlotEpochZeroFlag.Name), 10)
	}
	if c := flagCtx(ctx, flags.MaxDriftFlag.Name); c != nil {
		cfg.Aura.MaxFutureDrift = c.Duration(flags.MaxDriftFlag.Name).String()
	}
	if c := flagCtx(ctx, flags.MinBlockGapFlag.Name); c != nil {
		cfg.Aura.MinBlockGap = c.Duration(flags.MinBlockGapFlag.Name).String()
	}
	if c := flagCtx(ctx, flags.EquivocationWindowFlag.Name); c != nil {
		cfg.Aura.RetentionWindow = c.Uint64(flags.EquivocationWindowFlag.Name)
	}
	if c := flagCtx(ctx, flags.AcceptEquivocationsFlag.Name); c != nil {
		cfg.Aura.AcceptEquivocations = c.Bool(flags.AcceptEquivocationsFlag.Name)
	}
}

// Preset resolves the named preset and applies the overrides on top of it.
func (cfg Config) Preset() (integration.PresetConfig, error) {
	p, err := integration.GetPresetByName(cfg.Aura.Preset)
	if err != nil {
		return p, err
	}
	if p.Rules, err = cfg.applyRules(p.Rules); err != nil {
		return p, err
	}
	integration.ApplyOverrides(&p, integration.Overrides{
		SnapshotCache:  cfg.Engine.SnapshotCache,
		DetectorShards: cfg.Engine.DetectorShards,
		Journal:        cfg.Engine.Journal,
		EnableMetrics:  cfg.Metrics.Enabled,
	})
	return p, nil
}

// Rules returns the effective consensus rules.
func (cfg Config) Rules() (aura.Rules, error) {
	p, err := cfg.Preset()
	if err != nil {
		return aura.Rules{}, err
	}
	return p.Rules, nil
}

func (cfg Config) applyRules(r aura.Rules) (aura.Rules, error) {
	a := cfg.Aura
	var err error
	if a.SlotDuration != "" {
		if r.Slots.Duration, err = parseDuration("SlotDuration", a.SlotDuration); err != nil {
			return r, err
		}
	}
	if a.EpochZero != "" {
		sec, err := strconv.ParseInt(a.EpochZero, 10, 64)
		if err != nil || sec < 0 {
			return r, fmt.Errorf("invalid EpochZero %q: want unix seconds", a.EpochZero)
		}
		r.Slots.EpochZero = inter.FromUnix(sec)
	}
	if a.MaxFutureDrift != "" {
		if r.Slots.MaxFutureDrift, err = parseDuration("MaxFutureDrift", a.MaxFutureDrift); err != nil {
			return r, err
		}
	}
	if a.MinBlockGap != "" {
		if r.Slots.MinBlockGap, err = parseDuration("MinBlockGap", a.MinBlockGap); err != nil {
			return r, err
		}
	}
	if a.RetentionWindow != 0 {
		r.Equivocation.RetentionWindow = inter.Slot(a.RetentionWindow)
	}
	if a.AcceptEquivocations {
		r.Equivocation.RejectBlocks = false
	}
	return r, r.Validate()
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}

// flagCtx returns the innermost context in which the flag was set, or nil.
// Global flags may be given before or after the command name.
func flagCtx(ctx *cli.Context, name string) *cli.Context {
	for c := ctx; c != nil; c = c.Parent() {
		if c.IsSet(name) {
			return c
		}
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
