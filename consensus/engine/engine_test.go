package engine

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-aura-asset/aura"
	"github.com/rony4d/go-aura-asset/consensus/equivocation"
	"github.com/rony4d/go-aura-asset/consensus/slashing"
	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/iauth"
)

const (
	authA idx.ValidatorID = 1
	authB idx.ValidatorID = 2
	authC idx.ValidatorID = 3
)

func testRules() aura.Rules {
	r := aura.FakeNetRules()
	r.Slots.Duration = 6 * time.Second
	r.Slots.EpochZero = 0
	r.Slots.MaxFutureDrift = 2 * time.Second
	return r
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

type fixture struct {
	engine   *Engine
	registry *registryMock
	now      inter.Timestamp
}

func newFixture(t *testing.T, rules aura.Rules, opts ...Option) *fixture {
	f := &fixture{registry: new(registryMock)}
	f.registry.On("Snapshot", mock.Anything).Return(iauth.MustNewSnapshot(1, authA, authB, authC), nil).Maybe()

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e, err := New(rules, f.registry, ClockFunc(func() inter.Timestamp { return f.now }), opts...)
	require.NoError(t, err)
	f.engine = e
	return f
}

// claim for slot 7 ([42s, 48s)), produced at 43s.
func slot7Claim(author idx.ValidatorID, block int64) inter.SlotClaim {
	return inter.SlotClaim{
		Slot:       7,
		Time:       inter.FromUnix(43),
		Author:     author,
		Block:      fakeHash(block),
		ParentTime: inter.FromUnix(37),
	}
}

func TestEvaluateRoundRobin(t *testing.T) {
	f := newFixture(t, testRules())
	f.now = inter.FromUnix(43)

	v := f.engine.Evaluate(slot7Claim(authA, 1), 10)
	require.Equal(t, Rejected, v.Status)
	require.ErrorIs(t, v.Err, ErrWrongAuthor)
	require.Equal(t, SnapshotResolved, v.Stage)

	v = f.engine.Evaluate(slot7Claim(authB, 1), 10)
	require.True(t, v.Accepted(), "%v", v.Err)
	require.Equal(t, EquivocationChecked, v.Stage)
	require.NoError(t, v.Err)
	require.False(t, v.Equivocated())
}

func TestEvaluateTiming(t *testing.T) {
	tests := []struct {
		name  string
		now   inter.Timestamp
		claim inter.SlotClaim
		err   error
	}{
		{
			name:  "last instant of slot 0",
			now:   inter.FromMillis(5999),
			claim: inter.SlotClaim{Slot: 0, Time: inter.FromMillis(5999), Author: authA, ParentTime: 0},
		},
		{
			name:  "upper slot edge",
			now:   inter.FromMillis(6000),
			claim: inter.SlotClaim{Slot: 0, Time: inter.FromMillis(6000), Author: authA, ParentTime: 0},
			err:   ErrTimestampOutsideSlot,
		},
		{
			name:  "future drift",
			now:   inter.FromUnix(100),
			claim: inter.SlotClaim{Slot: 17, Time: inter.FromUnix(103), Author: authC, ParentTime: inter.FromUnix(90)},
			err:   ErrTimestampTooFarInFuture,
		},
		{
			name:  "within drift",
			now:   inter.FromUnix(100),
			claim: inter.SlotClaim{Slot: 16, Time: inter.FromMillis(101900), Author: authB, ParentTime: inter.FromUnix(90)},
		},
		{
			name:  "parent not older",
			now:   inter.FromUnix(100),
			claim: inter.SlotClaim{Slot: 16, Time: inter.FromUnix(99), Author: authB, ParentTime: inter.FromUnix(99)},
			err:   ErrNonMonotonicTimestamp,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testRules())
			f.now = tt.now
			tt.claim.Block = fakeHash(int64(i))

			v := f.engine.Evaluate(tt.claim, 1)
			if tt.err == nil {
				require.True(t, v.Accepted(), "%v", v.Err)
				return
			}
			require.Equal(t, Rejected, v.Status)
			require.Equal(t, SlotComputed, v.Stage)
			require.ErrorIs(t, v.Err, tt.err)
		})
	}
}

func TestEvaluateEquivocation(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		require := require.New(t)
		f := newFixture(t, testRules())
		f.now = inter.FromUnix(43)

		require.True(f.engine.Evaluate(slot7Claim(authB, 1), 10).Accepted())
		require.True(f.engine.Evaluate(slot7Claim(authB, 1), 11).Accepted(), "same block again")

		v := f.engine.Evaluate(slot7Claim(authB, 2), 10)
		require.Equal(Rejected, v.Status)
		require.Equal(TimingVerified, v.Stage)
		require.ErrorIs(v.Err, ErrEquivocationDetected)
		require.Equal([]hash.Hash{fakeHash(1), fakeHash(2)}, v.Evidence.Blocks)

		reports := f.engine.EquivocationReports()
		require.Len(reports, 1)
		require.Equal(authB, reports[0].Author)
		require.Equal(inter.Slot(7), reports[0].Slot)
	})

	t.Run("record only", func(t *testing.T) {
		require := require.New(t)
		rules := testRules()
		rules.Equivocation.RejectBlocks = false
		f := newFixture(t, rules)
		f.now = inter.FromUnix(43)

		f.engine.Evaluate(slot7Claim(authB, 1), 10)
		v := f.engine.Evaluate(slot7Claim(authB, 2), 10)
		require.True(v.Accepted())
		require.NoError(v.Err)
		require.True(v.Equivocated())
		require.Len(f.engine.EquivocationReports(), 1)
	})

	t.Run("wrong author is not recorded", func(t *testing.T) {
		f := newFixture(t, testRules())
		f.now = inter.FromUnix(43)

		f.engine.Evaluate(slot7Claim(authA, 1), 10)
		f.engine.Evaluate(slot7Claim(authA, 2), 10)
		require.Empty(t, f.engine.EquivocationReports())
	})
}

func TestEvaluateSnapshotErrors(t *testing.T) {
	t.Run("no snapshot", func(t *testing.T) {
		reg := new(registryMock)
		reg.On("Snapshot", idx.Block(5)).Return(nil, ErrNoSnapshotForPosition).Once()
		e, err := New(testRules(), reg, SystemClock{}, WithLogger(quietLogger()))
		require.NoError(t, err)

		v := e.Evaluate(slot7Claim(authB, 1), 5)
		require.Equal(t, Rejected, v.Status)
		require.Equal(t, Received, v.Stage)
		require.ErrorIs(t, v.Err, ErrNoSnapshotForPosition)
		require.True(t, IsFatal(v.Err))
		reg.AssertExpectations(t)
	})

	t.Run("transient", func(t *testing.T) {
		reg := new(registryMock)
		backend := errors.New("backend down")
		reg.On("Snapshot", idx.Block(5)).Return(nil, backend).Once()
		reg.On("Snapshot", idx.Block(5)).Return(iauth.MustNewSnapshot(1, authA, authB, authC), nil).Once()
		clock := ClockFunc(func() inter.Timestamp { return inter.FromUnix(43) })
		e, err := New(testRules(), reg, clock, WithLogger(quietLogger()))
		require.NoError(t, err)

		v := e.Evaluate(slot7Claim(authB, 1), 5)
		require.ErrorIs(t, v.Err, ErrSnapshotUnavailable)
		require.ErrorIs(t, v.Err, backend)
		require.False(t, IsFatal(v.Err))

		// the caller retries once the registry recovers
		v = e.Evaluate(slot7Claim(authB, 1), 5)
		require.True(t, v.Accepted())
		reg.AssertExpectations(t)
	})

	t.Run("nil snapshot", func(t *testing.T) {
		reg := new(registryMock)
		reg.On("Snapshot", idx.Block(5)).Return(nil, nil)
		e, err := New(testRules(), reg, SystemClock{}, WithLogger(quietLogger()))
		require.NoError(t, err)
		require.ErrorIs(t, e.Evaluate(slot7Claim(authB, 1), 5).Err, ErrNoSnapshotForPosition)
	})

	t.Run("empty authority set", func(t *testing.T) {
		e, err := New(testRules(), NewStaticRegistry(iauth.MustNewSnapshot(1)), SystemClock{}, WithLogger(quietLogger()))
		require.NoError(t, err)

		v := e.Evaluate(slot7Claim(authB, 1), 5)
		require.Equal(t, SnapshotResolved, v.Stage)
		require.ErrorIs(t, v.Err, ErrEmptyAuthoritySet)
		require.True(t, IsFatal(v.Err))
	})
}

func TestSnapshotCache(t *testing.T) {
	f := newFixture(t, testRules())
	f.now = inter.FromUnix(43)

	for i := 0; i < 5; i++ {
		f.engine.Evaluate(slot7Claim(authB, int64(i)), 42)
	}
	f.registry.AssertNumberOfCalls(t, "Snapshot", 1)

	f.engine.Evaluate(slot7Claim(authB, 1), 43)
	f.registry.AssertNumberOfCalls(t, "Snapshot", 2)
}

func TestClaimSlot(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, testRules())

	f.now = inter.FromUnix(43) // slot 7 belongs to B
	claim, ok, err := f.engine.ClaimSlot(authB, 1)
	require.NoError(err)
	require.True(ok)
	require.Equal(inter.Slot(7), claim.Slot)
	require.Equal(f.now, claim.Time)
	require.Equal(authB, claim.Author)

	_, ok, err = f.engine.ClaimSlot(authA, 1)
	require.NoError(err)
	require.False(ok)

	slot, start, err := f.engine.NextOwnSlot(authA, 1)
	require.NoError(err)
	require.Equal(inter.Slot(9), slot)
	require.Equal(inter.FromUnix(54), start)

	// a claim built by the owner passes import on another node
	claim.Block = fakeHash(1)
	claim.ParentTime = inter.FromUnix(40)
	require.True(f.engine.Evaluate(claim, 1).Accepted())
}

func TestClaimSlotBeforeEpochZero(t *testing.T) {
	rules := testRules()
	rules.Slots.EpochZero = inter.FromUnix(1000)
	f := newFixture(t, rules)
	f.now = inter.FromUnix(10)

	_, ok, err := f.engine.ClaimSlot(authA, 1)
	require.NoError(t, err)
	require.False(t, ok)

	slot, start, err := f.engine.NextOwnSlot(authA, 1)
	require.NoError(t, err)
	require.Equal(t, inter.Slot(0), slot)
	require.Equal(t, inter.FromUnix(1000), start)
}

func TestSubscribeEquivocations(t *testing.T) {
	f := newFixture(t, testRules())
	f.now = inter.FromUnix(43)

	ch := make(chan inter.Equivocation, 1)
	sub := f.engine.SubscribeEquivocations(ch)
	defer sub.Unsubscribe()

	f.engine.Evaluate(slot7Claim(authB, 1), 1)
	f.engine.Evaluate(slot7Claim(authB, 2), 1)

	select {
	case rec := <-ch:
		assert.Equal(t, authB, rec.Author)
	case <-time.After(time.Second):
		t.Fatal("no equivocation delivered")
	}
}

func TestSlashingIntegration(t *testing.T) {
	require := require.New(t)

	first := iauth.MustNewSnapshot(1, authA, authB, authC)
	tracker := slashing.NewTracker(first)
	reg := new(registryMock)
	reg.On("Snapshot", idx.Block(1)).Return(first, nil)
	reg.On("Snapshot", idx.Block(2)).Return(iauth.MustNewSnapshot(2, authA, authB, authC), nil)

	now := inter.FromUnix(43)
	e, err := New(testRules(), reg, ClockFunc(func() inter.Timestamp { return now }),
		WithSlashing(tracker), WithLogger(quietLogger()))
	require.NoError(err)

	e.Evaluate(slot7Claim(authB, 1), 1)
	e.Evaluate(slot7Claim(authB, 2), 1)
	require.Equal(uint32(1), tracker.Severity())

	// slot 9 at position 2 starts epoch 2 for the tracker
	now = inter.FromUnix(55)
	claim := inter.SlotClaim{Slot: 9, Time: now, Author: authA, Block: fakeHash(10), ParentTime: inter.FromUnix(43)}
	e.Evaluate(claim, 2)
	claim.Block = fakeHash(11)
	e.Evaluate(claim, 2)
	require.Equal(idx.Epoch(2), tracker.Epoch())
	require.Equal([]idx.ValidatorID{authA}, tracker.Culprits())
}

// An equivocation that shows up after slashing moved to the next epoch is
// still reported but not graded against the new epoch.
func TestSlashingLateEvidence(t *testing.T) {
	require := require.New(t)

	first := iauth.MustNewSnapshot(1, authA, authB, authC)
	tracker := slashing.NewTracker(first)
	reg := new(registryMock)
	reg.On("Snapshot", idx.Block(1)).Return(first, nil)
	reg.On("Snapshot", idx.Block(2)).Return(iauth.MustNewSnapshot(2, authA, authB, authC), nil)

	now := inter.FromUnix(43)
	e, err := New(testRules(), reg, ClockFunc(func() inter.Timestamp { return now }),
		WithSlashing(tracker), WithLogger(quietLogger()))
	require.NoError(err)

	require.True(e.Evaluate(slot7Claim(authB, 1), 1).Accepted())

	now = inter.FromUnix(55)
	claim := inter.SlotClaim{Slot: 9, Time: now, Author: authA, Block: fakeHash(10), ParentTime: inter.FromUnix(43)}
	e.Evaluate(claim, 2)
	claim.Block = fakeHash(11)
	e.Evaluate(claim, 2)
	require.Equal(idx.Epoch(2), tracker.Epoch())

	// authB's second slot 7 block arrives on the epoch 1 branch
	v := e.Evaluate(slot7Claim(authB, 2), 1)
	require.True(v.Equivocated())
	require.Len(e.EquivocationReports(), 2)
	require.Equal(idx.Epoch(2), tracker.Epoch())
	require.Equal([]idx.ValidatorID{authA}, tracker.Culprits())
	require.Equal(uint32(1), tracker.Severity())
}

// Competing forks import conflicting blocks for one slot concurrently:
// exactly one of them is accepted.
func TestConcurrentImports(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, testRules(), WithDetector(equivocation.New(64, equivocation.WithLogger(quietLogger()))))
	f.now = inter.FromUnix(43)

	const forks = 16
	verdicts := make([]Verdict, forks)
	var wg sync.WaitGroup
	for i := 0; i < forks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			verdicts[i] = f.engine.Evaluate(slot7Claim(authB, int64(i)), idx.Block(i))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, v := range verdicts {
		if v.Accepted() {
			accepted++
		} else {
			require.ErrorIs(v.Err, ErrEquivocationDetected)
		}
	}
	require.Equal(1, accepted)
	require.Len(f.engine.EquivocationReports()[0].Blocks, forks)
}

func TestNewInvalidRules(t *testing.T) {
	rules := testRules()
	rules.Slots.Duration = 0
	_, err := New(rules, NewStaticRegistry(nil), SystemClock{})
	require.ErrorIs(t, err, aura.ErrZeroSlotDuration)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "received", Received.String())
	assert.Equal(t, "equivocation_checked", EquivocationChecked.String())
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "rejected", Rejected.String())
}

// fakeHash is a deterministic block identity.
func fakeHash(seed int64) hash.Hash {
	return hash.Hash(hash.FakeHash(seed))
}
