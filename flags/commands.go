package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// Per-command flags.
var (
	AuthoritiesFlag = cli.StringFlag{
		Name:  "authorities",
		Usage: "Comma-separated validator IDs in schedule order",
	}
	FromSlotFlag = cli.Uint64Flag{
		Name:  "from",
		Usage: "First slot to print (defaults to the current slot)",
	}
	CountFlag = cli.IntFlag{
		Name:  "count",
		Usage: "Number of entries",
		Value: 10,
	}
	SlotFlag = cli.Uint64Flag{
		Name:  "slot",
		Usage: "Claimed slot",
	}
	TimeFlag = cli.StringFlag{
		Name:  "time",
		Usage: "Block timestamp (RFC3339 or unix milliseconds)",
	}
	AuthorFlag = cli.UintFlag{
		Name:  "author",
		Usage: "Claimed author validator ID",
	}
	BlockFlag = cli.StringFlag{
		Name:  "block",
		Usage: "Block identity as 0x-prefixed hex",
	}
	ParentTimeFlag = cli.StringFlag{
		Name:  "parent-time",
		Usage: "Parent block timestamp (RFC3339 or unix milliseconds)",
	}
	NowFlag = cli.StringFlag{
		Name:  "now",
		Usage: "Local clock reading (RFC3339 or unix milliseconds), defaults to the system clock",
	}
	FileFlag = cli.StringFlag{
		Name:  "file",
		Usage: "JSON file with the claims to replay",
	}
	ParallelFlag = cli.BoolFlag{
		Name:  "parallel",
		Usage: "Import forks concurrently",
	}
)
