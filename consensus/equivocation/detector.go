// Package equivocation detects authorities that produce more than one
// distinct block for the same slot.
//
// The detector remembers the first block identity seen for every
// (slot, author) pair. A later, different identity for the same pair is an
// equivocation; the evidence record of the pair collects every distinct
// identity in the order it was first seen. Memory is bounded by a retention
// window: once slot h has been observed, pairs for slots below h-window are
// forgotten and observations for them are reported as Stale.
//
// Pairs are spread over shards by hash, each shard behind its own mutex, so
// a check-and-record on one pair is atomic while unrelated pairs rarely
// contend.
package equivocation

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-aura-asset/inter"
)

// DefaultShards is the shard count used unless WithShards says otherwise.
const DefaultShards = 64

// Kind classifies an observation.
type Kind uint8

const (
	// NoConflict: first block of the pair, or the first block seen again.
	NoConflict Kind = iota
	// Equivocated: the pair already has a different first block.
	Equivocated
	// Stale: the slot is below the retention window and was not recorded.
	Stale
)

func (k Kind) String() string {
	switch k {
	case NoConflict:
		return "no_conflict"
	case Equivocated:
		return "equivocated"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Outcome is the result of Observe. For Equivocated, Evidence holds the
// pair's first block followed by the observed one.
type Outcome struct {
	Kind     Kind
	Evidence *inter.Equivocation
}

type key struct {
	slot   inter.Slot
	author idx.ValidatorID
}

type entry struct {
	first  hash.Hash
	record *inter.Equivocation // nil until the first conflict
}

type shard struct {
	mu      sync.Mutex
	entries map[key]*entry
	pruned  inter.Slot // watermark this shard has been pruned to
}

// Detector is safe for concurrent use.
type Detector struct {
	window inter.Slot
	shards []*shard

	highest uint64 // highest observed slot, atomic
	floor   uint64 // explicit Prune bound, atomic

	journal *Journal
	feed    event.Feed
	sendMu  sync.Mutex
	log     logrus.FieldLogger
}

// Option configures a Detector.
type Option func(*Detector)

// WithShards sets the number of lock shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(d *Detector) {
		if n >= 1 {
			d.shards = make([]*shard, n)
		}
	}
}

// WithJournal persists every change of an evidence record.
func WithJournal(j *Journal) Option {
	return func(d *Detector) {
		d.journal = j
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Detector) {
		d.log = log
	}
}

// New returns a detector keeping window slots of history below the highest
// observed slot. A zero window keeps only the highest slot.
func New(window inter.Slot, opts ...Option) *Detector {
	d := &Detector{
		window: window,
		shards: make([]*shard, DefaultShards),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for i := range d.shards {
		d.shards[i] = &shard{entries: make(map[key]*entry)}
	}
	return d
}

// Window is the retention window in slots.
func (d *Detector) Window() inter.Slot {
	return d.window
}

func (d *Detector) shardOf(k key) *shard {
	// fnv-1a over the key
	h := uint64(14695981039346656037)
	mix := func(v uint64) {
		for i := 0; i < 8; i++ {
			h ^= v & 0xff
			h *= 1099511628211
			v >>= 8
		}
	}
	mix(uint64(k.slot))
	mix(uint64(k.author))
	return d.shards[h%uint64(len(d.shards))]
}

func (d *Detector) advance(slot inter.Slot) {
	for {
		cur := atomic.LoadUint64(&d.highest)
		if uint64(slot) <= cur || atomic.CompareAndSwapUint64(&d.highest, cur, uint64(slot)) {
			return
		}
	}
}

// Watermark is the lowest slot still tracked.
func (d *Detector) Watermark() inter.Slot {
	var wm uint64
	if h := atomic.LoadUint64(&d.highest); h > uint64(d.window) {
		wm = h - uint64(d.window)
	}
	if f := atomic.LoadUint64(&d.floor); f > wm {
		wm = f
	}
	return inter.Slot(wm)
}

func (s *shard) prune(wm inter.Slot) {
	if wm <= s.pruned {
		return
	}
	for k := range s.entries {
		if k.slot < wm {
			delete(s.entries, k)
		}
	}
	s.pruned = wm
}

// Observe records that author produced block for slot and classifies it.
func (d *Detector) Observe(slot inter.Slot, author idx.ValidatorID, block hash.Hash) Outcome {
	if slot < d.Watermark() {
		return Outcome{Kind: Stale}
	}
	d.advance(slot)
	wm := d.Watermark()
	if slot < wm {
		return Outcome{Kind: Stale}
	}

	k := key{slot, author}
	s := d.shardOf(k)

	s.mu.Lock()
	s.prune(wm)
	e, ok := s.entries[k]
	if !ok {
		s.entries[k] = &entry{first: block}
		s.mu.Unlock()
		return Outcome{Kind: NoConflict}
	}
	if e.first == block {
		s.mu.Unlock()
		return Outcome{Kind: NoConflict}
	}
	evidence := &inter.Equivocation{
		Slot:   slot,
		Author: author,
		Blocks: []hash.Hash{e.first, block},
	}
	if e.record != nil && e.record.Contains(block) {
		s.mu.Unlock()
		return Outcome{Kind: Equivocated, Evidence: evidence}
	}
	if e.record == nil {
		e.record = &inter.Equivocation{Slot: slot, Author: author, Blocks: []hash.Hash{e.first}}
	}
	e.record.Blocks = append(e.record.Blocks, block)
	changed := e.record.Copy()
	if d.journal != nil {
		if err := d.journal.Put(&changed); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"slot":   slot,
				"author": author,
			}).Error("Failed to journal equivocation")
		}
	}
	// take sendMu before releasing the shard so records of one pair reach
	// subscribers in the order they grew
	d.sendMu.Lock()
	s.mu.Unlock()

	d.log.WithFields(logrus.Fields{
		"slot":   slot,
		"author": author,
		"first":  e.first.String(),
		"block":  block.String(),
		"blocks": len(changed.Blocks),
	}).Warn("Equivocation detected")
	d.feed.Send(changed)
	d.sendMu.Unlock()

	return Outcome{Kind: Equivocated, Evidence: evidence}
}

// Prune drops every pair below slot and marks such slots Stale from now on.
func (d *Detector) Prune(below inter.Slot) {
	for {
		cur := atomic.LoadUint64(&d.floor)
		if uint64(below) <= cur || atomic.CompareAndSwapUint64(&d.floor, cur, uint64(below)) {
			break
		}
	}
	wm := d.Watermark()
	for _, s := range d.shards {
		s.mu.Lock()
		s.prune(wm)
		s.mu.Unlock()
	}
}

// Reports returns the retained evidence records ordered by slot, then author.
func (d *Detector) Reports() []inter.Equivocation {
	wm := d.Watermark()
	var out []inter.Equivocation
	for _, s := range d.shards {
		s.mu.Lock()
		s.prune(wm)
		for _, e := range s.entries {
			if e.record != nil {
				out = append(out, e.record.Copy())
			}
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].Author < out[j].Author
	})
	return out
}

// Tracked is the number of retained (slot, author) pairs.
func (d *Detector) Tracked() int {
	wm := d.Watermark()
	n := 0
	for _, s := range d.shards {
		s.mu.Lock()
		s.prune(wm)
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Subscribe delivers a copy of an evidence record on ch every time it gains
// a new conflicting block. Records of one (slot, author) arrive in the order
// they grew. Observe blocks until every subscriber has taken the record, so
// subscribers must keep draining ch and must not call back into the detector
// from the receiving goroutine while doing so.
func (d *Detector) Subscribe(ch chan<- inter.Equivocation) event.Subscription {
	return d.feed.Subscribe(ch)
}
