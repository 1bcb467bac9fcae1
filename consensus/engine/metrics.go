package engine

import (
	"github.com/ethereum/go-ethereum/metrics"
)

// engineMetrics are looked up when an engine is built, so a host that sets
// metrics.Enabled before calling New gets live meters. All engines of a
// process share them.
type engineMetrics struct {
	accepted      metrics.Counter
	rejected      metrics.Counter
	equivocations metrics.Counter
	evaluate      metrics.Timer
	snapshotMiss  metrics.Counter
	lateEvidence  metrics.Counter
}

func newEngineMetrics() *engineMetrics {
	return &engineMetrics{
		accepted:      metrics.GetOrRegisterCounter("aura/import/accepted", nil),
		rejected:      metrics.GetOrRegisterCounter("aura/import/rejected", nil),
		equivocations: metrics.GetOrRegisterCounter("aura/import/equivocations", nil),
		evaluate:      metrics.GetOrRegisterTimer("aura/import/time", nil),
		snapshotMiss:  metrics.GetOrRegisterCounter("aura/snapshot/miss", nil),
		lateEvidence:  metrics.GetOrRegisterCounter("aura/slashing/late", nil),
	}
}
