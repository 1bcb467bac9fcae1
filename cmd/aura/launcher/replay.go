package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-aura-asset/consensus/engine"
	"github.com/rony4d/go-aura-asset/flags"
	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/validatorpk"
)

// replayFile is the input of the replay command.
type replayFile struct {
	// Now fixes the local clock. Empty uses the system clock.
	Now string `json:"now"`
	// Keys maps authority ids to public keys. Needed only when claims are signed.
	Keys   map[string]string `json:"keys,omitempty"`
	Claims []claimJSON       `json:"claims"`
}

type claimJSON struct {
	Fork       int    `json:"fork"`
	Position   uint64 `json:"position"`
	Slot       uint64 `json:"slot"`
	Time       string `json:"time"`
	Author     uint32 `json:"author"`
	Block      string `json:"block"`
	ParentTime string `json:"parentTime"`
	Sig        string `json:"sig,omitempty"`
}

type replayReport struct {
	Verdicts      []verdictJSON  `json:"verdicts"`
	Equivocations []evidenceJSON `json:"equivocations"`
	Severity      uint32         `json:"severity"`
	Culprits      []uint32       `json:"culprits"`
}

// replayItem is a decoded claim ready for import.
type replayItem struct {
	index    int
	fork     int
	position idx.Block
	claim    inter.SlotClaim
	sig      []byte
}

func replay(ctx *cli.Context, e *env) error {
	path := ctx.String(flags.FileFlag.Name)
	if path == "" {
		return fmt.Errorf("--%s is required", flags.FileFlag.Name)
	}
	input, err := readReplayFile(resolvePath(path))
	if err != nil {
		return err
	}

	g, err := authorities(ctx, e)
	if err != nil {
		return err
	}
	for i := range g.Authorities {
		raw, ok := input.Keys[strconv.FormatUint(uint64(g.Authorities[i].ID), 10)]
		if !ok {
			continue
		}
		if g.Authorities[i].PubKey, err = validatorpk.FromString(raw); err != nil {
			return fmt.Errorf("key of authority %d: %w", g.Authorities[i].ID, err)
		}
	}
	verifier, err := g.Verifier()
	if err != nil {
		return err
	}
	clock, err := clockFrom(input.Now)
	if err != nil {
		return err
	}
	a, err := assemble(e, g, clock)
	if err != nil {
		return err
	}

	items, err := decodeClaims(input.Claims)
	if err != nil {
		return err
	}
	results := make([]verdictJSON, len(items))
	importOne := func(it replayItem) {
		v := importClaim(a.Engine, verifier, it)
		results[it.index] = newVerdictJSON(it.index, it.fork, it.claim, v)
	}

	if ctx.Bool(flags.ParallelFlag.Name) {
		forks := groupByFork(items)
		e.log.WithFields(logrus.Fields{
			"claims": len(items),
			"forks":  len(forks),
		}).Info("Replaying forks concurrently")

		var group errgroup.Group
		for _, fork := range forks {
			fork := fork
			group.Go(func() error {
				for _, it := range fork {
					importOne(it)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
	} else {
		for _, it := range items {
			importOne(it)
		}
	}

	report := replayReport{
		Verdicts:      results,
		Equivocations: []evidenceJSON{},
		Severity:      a.Slashing.Severity(),
		Culprits:      []uint32{},
	}
	for _, ev := range a.Engine.EquivocationReports() {
		report.Equivocations = append(report.Equivocations, newEvidenceJSON(ev))
	}
	for _, id := range a.Slashing.Culprits() {
		report.Culprits = append(report.Culprits, uint32(id))
	}
	return writeJSON(e.out, report)
}

// importClaim authenticates a signed claim before the engine sees it.
func importClaim(e *engine.Engine, verifier engine.SignatureVerifier, it replayItem) engine.Verdict {
	if it.sig != nil {
		if err := verifier.Verify(it.claim.Author, it.claim.Block, it.sig); err != nil {
			return engine.Verdict{Status: engine.Rejected, Stage: engine.Received, Err: err}
		}
	}
	return e.Evaluate(it.claim, it.position)
}

func readReplayFile(path string) (replayFile, error) {
	var input replayFile
	data, err := os.ReadFile(path)
	if err != nil {
		return input, err
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("%s: %w", path, err)
	}
	return input, nil
}

func decodeClaims(raw []claimJSON) ([]replayItem, error) {
	items := make([]replayItem, len(raw))
	for i, c := range raw {
		it := replayItem{
			index:    i,
			fork:     c.Fork,
			position: idx.Block(c.Position),
			claim: inter.SlotClaim{
				Slot:   inter.Slot(c.Slot),
				Author: idx.ValidatorID(c.Author),
			},
		}
		var err error
		if it.claim.Time, err = parseTimestamp(c.Time); err != nil {
			return nil, fmt.Errorf("claim %d: %w", i, err)
		}
		if it.claim.ParentTime, err = parseTimestamp(c.ParentTime); err != nil {
			return nil, fmt.Errorf("claim %d: parent: %w", i, err)
		}
		if it.claim.Block, err = parseBlock(c.Block); err != nil {
			return nil, fmt.Errorf("claim %d: %w", i, err)
		}
		if c.Sig != "" {
			if it.sig, err = hexutil.Decode(c.Sig); err != nil {
				return nil, fmt.Errorf("claim %d: invalid sig: %w", i, err)
			}
		}
		items[i] = it
	}
	return items, nil
}

// groupByFork splits claims by fork, keeping file order inside every fork.
func groupByFork(items []replayItem) [][]replayItem {
	byFork := make(map[int][]replayItem)
	for _, it := range items {
		byFork[it.fork] = append(byFork[it.fork], it)
	}
	ids := make([]int, 0, len(byFork))
	for id := range byFork {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	forks := make([][]replayItem, len(ids))
	for i, id := range ids {
		forks[i] = byFork[id]
	}
	return forks
}
