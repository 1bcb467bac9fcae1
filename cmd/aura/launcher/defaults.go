package launcher

import (
	"github.com/rony4d/go-aura-asset/integration"
)

// Defaults are the values used before the config file and flags are applied.
type Defaults struct {
	Logging LoggingDefaults
	Preset  string
}

type LoggingDefaults struct {
	Verbosity int    // 0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace
	Format    string // text or json
	Color     bool
}

func DefaultConfig() Defaults {
	return Defaults{
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     false,
		},
		Preset: integration.FakeNetPreset().Name,
	}
}
