package integration

import (
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-aura-asset/consensus/engine"
	"github.com/rony4d/go-aura-asset/consensus/equivocation"
	"github.com/rony4d/go-aura-asset/consensus/slashing"
	"github.com/rony4d/go-aura-asset/inter/iauth"
)

// Assembly is an engine together with the parts callers may want to reach.
type Assembly struct {
	Engine   *engine.Engine
	Detector *equivocation.Detector
	Journal  *equivocation.Journal // nil unless the preset enables it
	Slashing *slashing.Tracker
}

// MakeEngine wires an engine for cfg. genesis seeds the slashing tracker.
// A preset with EnableMetrics turns on process-wide metrics collection.
func MakeEngine(cfg PresetConfig, registry engine.AuthorityRegistry, genesis *iauth.Snapshot, clock engine.Clock, log logrus.FieldLogger) (*Assembly, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.EnableMetrics {
		// engine meters are looked up in engine.New
		metrics.Enabled = true
	}

	detectorOpts := []equivocation.Option{
		equivocation.WithLogger(log.WithField("module", "equivocation")),
		equivocation.WithShards(cfg.DetectorShards),
	}
	var journal *equivocation.Journal
	if cfg.Journal {
		journal = equivocation.NewJournal(memorydb.New())
		detectorOpts = append(detectorOpts, equivocation.WithJournal(journal))
	}
	detector := equivocation.New(cfg.Rules.Equivocation.RetentionWindow, detectorOpts...)
	tracker := slashing.NewTracker(genesis)

	e, err := engine.New(cfg.Rules, registry, clock,
		engine.WithDetector(detector),
		engine.WithSlashing(tracker),
		engine.WithSnapshotCache(cfg.SnapshotCache),
		engine.WithLogger(log.WithField("module", "engine")),
	)
	if err != nil {
		return nil, err
	}
	return &Assembly{
		Engine:   e,
		Detector: detector,
		Journal:  journal,
		Slashing: tracker,
	}, nil
}
