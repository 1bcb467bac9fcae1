package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// Rule overrides. Defaults come from the selected preset, so none is set here.
var (
	SlotDurationFlag = cli.DurationFlag{
		Name:  "slot.duration",
		Usage: "Width of every slot",
	}
	SlotEpochZeroFlag = cli.Int64Flag{
		Name:  "slot.epochzero",
		Usage: "Unix time in seconds at which slot 0 starts",
	}
	MaxDriftFlag = cli.DurationFlag{
		Name:  "drift.max",
		Usage: "How far past the local clock a block timestamp may be",
	}
	MinBlockGapFlag = cli.DurationFlag{
		Name:  "block.mingap",
		Usage: "Minimum distance between a block timestamp and its parent's",
	}
	EquivocationWindowFlag = cli.Uint64Flag{
		Name:  "equivocation.window",
		Usage: "Number of slots of equivocation history kept",
	}
	AcceptEquivocationsFlag = cli.BoolFlag{
		Name:  "equivocation.accept",
		Usage: "Accept equivocating blocks and only record the evidence",
	}
)

// AuraFlags covers the consensus rules overrides.
func AuraFlags() []cli.Flag {
	return []cli.Flag{
		SlotDurationFlag,
		SlotEpochZeroFlag,
		MaxDriftFlag,
		MinBlockGapFlag,
		EquivocationWindowFlag,
		AcceptEquivocationsFlag,
	}
}
