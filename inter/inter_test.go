package inter

import (
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-aura-asset/utils/cser"
)

func TestTimestamp(t *testing.T) {
	require := require.New(t)

	ts := FromUnix(100)
	require.Equal(Timestamp(100*time.Second), ts)
	require.Equal(int64(100), ts.Unix())
	require.Equal(uint64(100000), ts.Millis())
	require.Equal(ts, FromMillis(100000))
	require.Equal(ts, FromTime(ts.Time()))
	require.Equal(Timestamp(0), FromTime(time.Unix(-1, 0)))

	require.Equal(FromUnix(103), ts.Add(3*time.Second))
	require.Equal(Timestamp(0), ts.Add(-200*time.Second))
	require.Equal(-3*time.Second, ts.Sub(FromUnix(103)))
	require.Equal("1970-01-01T00:01:40Z", ts.String())
}

func TestBlockHeaderHash(t *testing.T) {
	require := require.New(t)

	a := &BlockHeader{
		Number:     7,
		ParentHash: fakeHash(1),
		Slot:       16,
		Time:       FromUnix(100),
		ParentTime: FromUnix(94),
		Author:     2,
	}
	b := *a
	require.Equal(a.Hash(), b.Hash())

	b.Extra = []byte{1}
	require.NotEqual(a.Hash(), b.Hash())

	claim := a.Claim()
	require.Equal(Slot(16), claim.Slot)
	require.Equal(a.Time, claim.Time)
	require.Equal(a.ParentTime, claim.ParentTime)
	require.Equal(a.Author, claim.Author)
	require.Equal(a.Hash(), claim.Block)
}

func TestEquivocationSerialization(t *testing.T) {
	require := require.New(t)

	e := &Equivocation{
		Slot:   1 << 33,
		Author: 5,
		Blocks: []hash.Hash{fakeHash(1), fakeHash(2), fakeHash(3)},
	}

	raw, err := e.MarshalBinary()
	require.NoError(err)

	var got Equivocation
	require.NoError(got.UnmarshalBinary(raw))
	require.Equal(*e, got)
	require.Equal(e.Hash(), got.Hash())

	t.Run("short evidence", func(t *testing.T) {
		short := &Equivocation{Slot: 1, Author: 1, Blocks: []hash.Hash{fakeHash(1)}}
		raw, err := short.MarshalBinary()
		require.NoError(err)
		require.ErrorIs(new(Equivocation).UnmarshalBinary(raw), ErrShortEvidence)
	})

	t.Run("trailing garbage", func(t *testing.T) {
		bad := append([]byte{0xff}, raw...)
		err := new(Equivocation).UnmarshalBinary(bad)
		require.Error(err)
	})

	t.Run("truncated", func(t *testing.T) {
		err := new(Equivocation).UnmarshalBinary(raw[:len(raw)/2])
		require.Error(err)
	})

	t.Run("empty", func(t *testing.T) {
		require.Equal(cser.ErrMalformedEncoding, new(Equivocation).UnmarshalBinary(nil))
	})
}

func TestEquivocationCopy(t *testing.T) {
	e := Equivocation{Slot: 1, Author: 1, Blocks: []hash.Hash{fakeHash(1), fakeHash(2)}}
	cp := e.Copy()
	cp.Blocks[0] = fakeHash(9)

	require.True(t, e.Contains(fakeHash(1)))
	require.False(t, e.Contains(fakeHash(9)))
	require.NotEqual(t, e.Hash(), cp.Hash())
}

// fakeHash is a deterministic block identity.
func fakeHash(seed int64) hash.Hash {
	return hash.Hash(hash.FakeHash(seed))
}
