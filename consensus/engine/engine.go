// Package engine is the slot consensus core. It decides whether a block's
// slot claim is acceptable (Evaluate) and whether the local authority may
// produce a block now (ClaimSlot).
//
// Import evaluation walks a fixed pipeline:
//
//	Received → SnapshotResolved → SlotComputed → TimingVerified → EquivocationChecked
//
// and ends Accepted or Rejected. Nothing here panics on bad input; every
// failure comes back in the Verdict.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-aura-asset/aura"
	"github.com/rony4d/go-aura-asset/consensus/equivocation"
	"github.com/rony4d/go-aura-asset/consensus/inherent"
	"github.com/rony4d/go-aura-asset/consensus/slashing"
	"github.com/rony4d/go-aura-asset/consensus/slots"
	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/iauth"
)

// DefaultSnapshotCacheSize is the number of chain positions whose snapshot is cached.
const DefaultSnapshotCacheSize = 1024

// Engine is safe for concurrent use.
type Engine struct {
	rules    aura.Rules
	verifier *inherent.Verifier
	detector *equivocation.Detector
	slashing *slashing.Tracker

	registry  AuthorityRegistry
	clock     Clock
	snapshots *lru.Cache

	metrics *engineMetrics
	log     logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	detector  *equivocation.Detector
	slashing  *slashing.Tracker
	cacheSize int
	log       logrus.FieldLogger
}

// WithDetector replaces the default detector, e.g. with one that journals.
func WithDetector(d *equivocation.Detector) Option {
	return func(o *options) {
		o.detector = d
	}
}

// WithSlashing forwards equivocation evidence to t.
func WithSlashing(t *slashing.Tracker) Option {
	return func(o *options) {
		o.slashing = t
	}
}

// WithSnapshotCache sets the snapshot cache size.
func WithSnapshotCache(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// New returns an engine enforcing rules.
func New(rules aura.Rules, registry AuthorityRegistry, clock Clock, opts ...Option) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	o := options{
		cacheSize: DefaultSnapshotCacheSize,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	verifier, err := inherent.New(rules.Slots)
	if err != nil {
		return nil, err
	}
	if o.detector == nil {
		o.detector = equivocation.New(rules.Equivocation.RetentionWindow, equivocation.WithLogger(o.log))
	}
	cache, err := lru.New(o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		rules:     rules,
		verifier:  verifier,
		detector:  o.detector,
		slashing:  o.slashing,
		registry:  registry,
		clock:     clock,
		snapshots: cache,
		metrics:   newEngineMetrics(),
		log:       o.log,
	}, nil
}

func (e *Engine) Rules() aura.Rules {
	return e.rules.Copy()
}

// Scheduler returns the network's slot grid.
func (e *Engine) Scheduler() slots.Scheduler {
	return e.verifier.Scheduler
}

// Snapshot resolves the authority snapshot at position, through the cache.
func (e *Engine) Snapshot(position idx.Block) (*iauth.Snapshot, error) {
	if v, ok := e.snapshots.Get(position); ok {
		return v.(*iauth.Snapshot), nil
	}
	e.metrics.snapshotMiss.Inc(1)
	s, err := e.registry.Snapshot(position)
	if err != nil {
		if errors.Is(err, ErrNoSnapshotForPosition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoSnapshotForPosition, position)
	}
	e.snapshots.Add(position, s)
	return s, nil
}

// Evaluate decides whether claim, imported at chain position, is acceptable.
func (e *Engine) Evaluate(claim inter.SlotClaim, position idx.Block) Verdict {
	start := time.Now()
	v := e.evaluate(claim, position)
	e.metrics.evaluate.UpdateSince(start)

	if v.Evidence != nil {
		e.metrics.equivocations.Inc(1)
	}
	if v.Accepted() {
		e.metrics.accepted.Inc(1)
		return v
	}
	e.metrics.rejected.Inc(1)

	fields := logrus.Fields{
		"slot":     claim.Slot,
		"author":   claim.Author,
		"block":    claim.Block.String(),
		"position": position,
		"stage":    v.Stage.String(),
	}
	if IsFatal(v.Err) {
		fields["fatal"] = true
		e.log.WithFields(fields).WithError(v.Err).Error("Slot consensus cannot proceed")
	} else {
		e.log.WithFields(fields).WithError(v.Err).Debug("Block rejected")
	}
	return v
}

func (e *Engine) evaluate(claim inter.SlotClaim, position idx.Block) Verdict {
	reject := func(stage Stage, err error) Verdict {
		return Verdict{Status: Rejected, Stage: stage, Err: err}
	}

	snapshot, err := e.Snapshot(position)
	if err != nil {
		return reject(Received, err)
	}

	expected, err := slots.ExpectedAuthor(claim.Slot, snapshot)
	if err != nil {
		return reject(SnapshotResolved, err)
	}
	if claim.Author != expected {
		return reject(SnapshotResolved, fmt.Errorf("%w: slot %d belongs to %d, claimed by %d",
			ErrWrongAuthor, claim.Slot, expected, claim.Author))
	}

	if err := e.verifier.Verify(claim, e.clock.Now()); err != nil {
		return reject(SlotComputed, err)
	}

	out := e.detector.Observe(claim.Slot, claim.Author, claim.Block)
	switch out.Kind {
	case equivocation.Equivocated:
		e.reportSlash(snapshot, out.Evidence)
		if e.rules.Equivocation.RejectBlocks {
			v := reject(TimingVerified, fmt.Errorf("%w: author %d slot %d", ErrEquivocationDetected, claim.Author, claim.Slot))
			v.Evidence = out.Evidence
			return v
		}
		return Verdict{Status: Accepted, Stage: EquivocationChecked, Evidence: out.Evidence}
	case equivocation.Stale:
		e.log.WithFields(logrus.Fields{
			"slot":      claim.Slot,
			"watermark": e.detector.Watermark(),
		}).Debug("Slot below equivocation window, not tracked")
	}
	return Verdict{Status: Accepted, Stage: EquivocationChecked}
}

func (e *Engine) reportSlash(snapshot *iauth.Snapshot, evidence *inter.Equivocation) {
	if e.slashing == nil {
		return
	}
	g, err := e.slashing.Report(snapshot, *evidence)
	if errors.Is(err, slashing.ErrClosedEpoch) {
		e.metrics.lateEvidence.Inc(1)
		e.log.WithFields(logrus.Fields{
			"slot":   evidence.Slot,
			"author": evidence.Author,
			"epoch":  snapshot.Epoch(),
			"graded": g.Epoch,
		}).Warn("Equivocation from a closed slashing epoch, not graded")
		return
	}
	if g.Rotated {
		e.log.WithFields(logrus.Fields{
			"epoch":    g.Epoch,
			"severity": g.Closed,
		}).Info("Slashing epoch closed")
	}
}

// ClaimSlot tells the local authority self whether it owns the current slot.
// If it does, the returned claim carries the slot and the current time; the
// caller fills in the block identity and parent time after building the
// block. Otherwise ok is false and the node should stay idle, which includes
// the time before epoch zero.
func (e *Engine) ClaimSlot(self idx.ValidatorID, position idx.Block) (claim inter.SlotClaim, ok bool, err error) {
	snapshot, err := e.Snapshot(position)
	if err != nil {
		return claim, false, err
	}
	now := e.clock.Now()
	slot, err := e.verifier.SlotAt(now)
	if errors.Is(err, slots.ErrInvalidTiming) {
		// no slot has started yet
		return claim, false, nil
	}
	if err != nil {
		return claim, false, err
	}
	expected, err := slots.ExpectedAuthor(slot, snapshot)
	if err != nil {
		e.log.WithField("fatal", true).WithError(err).Error("Slot consensus cannot proceed")
		return claim, false, err
	}
	if expected != self {
		return claim, false, nil
	}
	return inter.SlotClaim{Slot: slot, Time: now, Author: self}, true, nil
}

// NextOwnSlot is the next slot, from now on, that self may author.
func (e *Engine) NextOwnSlot(self idx.ValidatorID, position idx.Block) (inter.Slot, inter.Timestamp, error) {
	snapshot, err := e.Snapshot(position)
	if err != nil {
		return 0, 0, err
	}
	return e.verifier.NextOwnSlot(e.clock.Now(), self, snapshot)
}

// EquivocationReports returns the retained evidence ordered by slot, then author.
func (e *Engine) EquivocationReports() []inter.Equivocation {
	return e.detector.Reports()
}

// SubscribeEquivocations streams evidence records as they change.
func (e *Engine) SubscribeEquivocations(ch chan<- inter.Equivocation) event.Subscription {
	return e.detector.Subscribe(ch)
}

// Detector exposes the equivocation detector, e.g. for explicit pruning.
func (e *Engine) Detector() *equivocation.Detector {
	return e.detector
}
