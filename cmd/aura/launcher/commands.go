package launcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-aura-asset/aura/genesis"
	"github.com/rony4d/go-aura-asset/consensus/engine"
	"github.com/rony4d/go-aura-asset/consensus/slots"
	"github.com/rony4d/go-aura-asset/flags"
	"github.com/rony4d/go-aura-asset/integration"
	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/validatorpk"
)

var (
	scheduleCommand = cli.Command{
		Name:   "schedule",
		Usage:  "Print the slot schedule of an authority set",
		Flags:  commandFlags(flags.AuthoritiesFlag, flags.FromSlotFlag, flags.CountFlag),
		Action: withEnv(schedule),
		Description: `
    aura schedule --authorities 1,2,3 [--from N] [--count K]

Prints slot, slot start and expected author for K consecutive slots starting
at N, or at the current slot when --from is not given.`,
	}
	checkCommand = cli.Command{
		Name:  "check",
		Usage: "Evaluate one block claim",
		Flags: commandFlags(flags.AuthoritiesFlag, flags.SlotFlag, flags.TimeFlag, flags.AuthorFlag,
			flags.BlockFlag, flags.ParentTimeFlag, flags.NowFlag),
		Action: withEnv(check),
		Description: `
    aura check --authorities 1,2,3 --slot S --time T --author A --block H --parent-time P [--now N]

Runs the claim through a fresh engine and prints the verdict as JSON.
Times are RFC3339 or unix milliseconds.`,
	}
	replayCommand = cli.Command{
		Name:   "replay",
		Usage:  "Import a file of block claims through one engine",
		Flags:  commandFlags(flags.AuthoritiesFlag, flags.FileFlag, flags.ParallelFlag),
		Action: withEnv(replay),
		Description: `
    aura replay --authorities 1,2,3 --file claims.json [--parallel]

Prints every verdict and the collected equivocation reports as JSON.
With --parallel the forks of the file are imported concurrently.`,
	}
	fakeKeysCommand = cli.Command{
		Name:   "fakekeys",
		Usage:  "Print deterministic fake authority keys",
		Flags:  commandFlags(flags.CountFlag, flags.BlockFlag),
		Action: withEnv(fakeKeys),
		Description: `
    aura fakekeys --count N [--block H]

Prints the ids and public keys of a fake genesis with N authorities. With
--block every authority's signature over the block is printed as well.`,
	}
)

func commandFlags(own ...cli.Flag) []cli.Flag {
	return flags.Merge(own, flags.CommonFlags(), flags.AuraFlags())
}

// env is what every command gets after config and logging are set up.
type env struct {
	cfg    Config
	preset integration.PresetConfig
	log    *logrus.Logger
	out    io.Writer
}

func withEnv(fn func(*cli.Context, *env) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		cfg, err := MakeAllConfigs(ctx)
		if err != nil {
			return err
		}
		preset, err := cfg.Preset()
		if err != nil {
			return err
		}
		errOut := ctx.App.ErrWriter
		if errOut == nil {
			errOut = os.Stderr
		}
		log, err := newLogger(cfg.Node.Logging, errOut)
		if err != nil {
			return err
		}
		e := &env{
			cfg:    cfg,
			preset: preset,
			log:    log,
			out:    ctx.App.Writer,
		}
		log.WithFields(logrus.Fields{
			"preset": preset.Name,
			"rules":  preset.Rules.String(),
		}).Debug("Configuration loaded")

		if err := fn(ctx, e); err != nil {
			return err
		}
		if preset.EnableMetrics {
			dumpMetrics(errOut)
		}
		return nil
	}
}

func schedule(ctx *cli.Context, e *env) error {
	g, err := authorities(ctx, e)
	if err != nil {
		return err
	}
	snapshot, err := g.Snapshot()
	if err != nil {
		return err
	}
	rules := e.preset.Rules
	sched, err := slots.NewScheduler(rules.Slots.Duration, rules.Slots.EpochZero)
	if err != nil {
		return err
	}

	count := ctx.Int(flags.CountFlag.Name)
	if count <= 0 {
		return fmt.Errorf("--%s must be positive", flags.CountFlag.Name)
	}
	from := inter.Slot(ctx.Uint64(flags.FromSlotFlag.Name))
	if !ctx.IsSet(flags.FromSlotFlag.Name) {
		from, err = sched.SlotAt(engine.SystemClock{}.Now())
		if errors.Is(err, slots.ErrInvalidTiming) {
			from = 0
		} else if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(e.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tSTART\tAUTHOR")
	for i := 0; i < count; i++ {
		slot := from + inter.Slot(i)
		start, err := sched.SlotStart(slot)
		if err != nil {
			return err
		}
		author, err := sched.ExpectedAuthor(slot, snapshot)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", slot, start, author)
	}
	return w.Flush()
}

func check(ctx *cli.Context, e *env) error {
	g, err := authorities(ctx, e)
	if err != nil {
		return err
	}
	clock, err := clockFrom(ctx.String(flags.NowFlag.Name))
	if err != nil {
		return err
	}
	a, err := assemble(e, g, clock)
	if err != nil {
		return err
	}

	claim := inter.SlotClaim{
		Slot:   inter.Slot(ctx.Uint64(flags.SlotFlag.Name)),
		Author: idx.ValidatorID(ctx.Uint(flags.AuthorFlag.Name)),
	}
	if claim.Time, err = parseTimestamp(ctx.String(flags.TimeFlag.Name)); err != nil {
		return fmt.Errorf("--%s: %w", flags.TimeFlag.Name, err)
	}
	if claim.ParentTime, err = parseTimestamp(ctx.String(flags.ParentTimeFlag.Name)); err != nil {
		return fmt.Errorf("--%s: %w", flags.ParentTimeFlag.Name, err)
	}
	if claim.Block, err = parseBlock(ctx.String(flags.BlockFlag.Name)); err != nil {
		return fmt.Errorf("--%s: %w", flags.BlockFlag.Name, err)
	}

	v := a.Engine.Evaluate(claim, 1)
	return writeJSON(e.out, newVerdictJSON(0, 0, claim, v))
}

func fakeKeys(ctx *cli.Context, e *env) error {
	count := ctx.Int(flags.CountFlag.Name)
	if count <= 0 {
		return fmt.Errorf("--%s must be positive", flags.CountFlag.Name)
	}
	var block *hash.Hash
	if s := ctx.String(flags.BlockFlag.Name); s != "" {
		h, err := parseBlock(s)
		if err != nil {
			return fmt.Errorf("--%s: %w", flags.BlockFlag.Name, err)
		}
		block = &h
	}

	g := genesis.FakeGenesis(e.preset.Rules, count)
	w := tabwriter.NewWriter(e.out, 0, 8, 2, ' ', 0)
	for i, a := range g.Authorities {
		if block == nil {
			fmt.Fprintf(w, "%d\t%s\n", a.ID, a.PubKey)
			continue
		}
		sig, err := validatorpk.Sign(validatorpk.FakeKey(i+1), *block)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.PubKey, hexutil.Encode(sig))
	}
	return w.Flush()
}

// authorities builds a genesis from --authorities and the effective rules.
func authorities(ctx *cli.Context, e *env) (genesis.Genesis, error) {
	raw := splitCSV(ctx.String(flags.AuthoritiesFlag.Name))
	if len(raw) == 0 {
		return genesis.Genesis{}, fmt.Errorf("--%s is required", flags.AuthoritiesFlag.Name)
	}
	g := genesis.Genesis{
		Rules:       e.preset.Rules,
		Epoch:       1,
		Authorities: make([]genesis.Authority, len(raw)),
	}
	for i, s := range raw {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return g, fmt.Errorf("invalid authority %q: %w", s, err)
		}
		g.Authorities[i].ID = idx.ValidatorID(id)
	}
	return g, g.Validate()
}

func assemble(e *env, g genesis.Genesis, clock engine.Clock) (*integration.Assembly, error) {
	snapshot, err := g.Snapshot()
	if err != nil {
		return nil, err
	}
	return integration.MakeEngine(e.preset, engine.NewStaticRegistry(snapshot), snapshot, clock, e.log)
}

func clockFrom(now string) (engine.Clock, error) {
	if now == "" {
		return engine.SystemClock{}, nil
	}
	t, err := parseTimestamp(now)
	if err != nil {
		return nil, fmt.Errorf("invalid now: %w", err)
	}
	return engine.ClockFunc(func() inter.Timestamp { return t }), nil
}

// parseTimestamp accepts unix milliseconds or RFC3339.
func parseTimestamp(s string) (inter.Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing timestamp")
	}
	if ms, err := strconv.ParseUint(s, 10, 64); err == nil {
		return inter.FromMillis(ms), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: want unix milliseconds or RFC3339", s)
	}
	return inter.FromTime(t), nil
}

func parseBlock(s string) (hash.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("invalid block %q: %w", s, err)
	}
	if len(b) != len(hash.Hash{}) {
		return hash.Hash{}, fmt.Errorf("invalid block %q: want %d bytes, got %d", s, len(hash.Hash{}), len(b))
	}
	return hash.BytesToHash(b), nil
}

func blockHex(h hash.Hash) string {
	return hexutil.Encode(h.Bytes())
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type evidenceJSON struct {
	Slot   uint64   `json:"slot"`
	Author uint32   `json:"author"`
	Blocks []string `json:"blocks"`
}

func newEvidenceJSON(ev inter.Equivocation) evidenceJSON {
	out := evidenceJSON{
		Slot:   uint64(ev.Slot),
		Author: uint32(ev.Author),
		Blocks: make([]string, len(ev.Blocks)),
	}
	for i, b := range ev.Blocks {
		out.Blocks[i] = blockHex(b)
	}
	return out
}

type verdictJSON struct {
	Index    int           `json:"index"`
	Fork     int           `json:"fork"`
	Slot     uint64        `json:"slot"`
	Author   uint32        `json:"author"`
	Block    string        `json:"block"`
	Status   string        `json:"status"`
	Stage    string        `json:"stage"`
	Error    string        `json:"error,omitempty"`
	Evidence *evidenceJSON `json:"evidence,omitempty"`
}

func newVerdictJSON(index, fork int, claim inter.SlotClaim, v engine.Verdict) verdictJSON {
	out := verdictJSON{
		Index:  index,
		Fork:   fork,
		Slot:   uint64(claim.Slot),
		Author: uint32(claim.Author),
		Block:  blockHex(claim.Block),
		Status: v.Status.String(),
		Stage:  v.Stage.String(),
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	if v.Evidence != nil {
		ev := newEvidenceJSON(*v.Evidence)
		out.Evidence = &ev
	}
	return out
}
