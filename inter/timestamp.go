// Package inter defines the data exchanged between the slot scheduler, the
// inherent timestamp check and the equivocation detector: wall-clock
// timestamps, slot numbers, slot claims carried by candidate blocks, block
// headers and equivocation evidence records.
package inter

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
)

// Timestamp is a UTC instant in nanoseconds since the Unix epoch.
type Timestamp uint64

// FromUnix converts whole seconds to a Timestamp.
func FromUnix(sec int64) Timestamp {
	return Timestamp(sec) * Timestamp(time.Second)
}

// FromTime converts t to a Timestamp. Instants before 1970 are clamped to zero.
func FromTime(t time.Time) Timestamp {
	ns := t.UnixNano()
	if ns < 0 {
		return 0
	}
	return Timestamp(ns)
}

// FromMillis converts milliseconds since the Unix epoch, the resolution
// block producers usually inject.
func FromMillis(ms uint64) Timestamp {
	return Timestamp(ms) * Timestamp(time.Millisecond)
}

// Unix returns whole seconds.
func (t Timestamp) Unix() int64 {
	return int64(t) / int64(time.Second)
}

// Millis returns whole milliseconds.
func (t Timestamp) Millis() uint64 {
	return uint64(t) / uint64(time.Millisecond)
}

// Time converts the timestamp to time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// Add returns t+d. Negative durations saturate at zero.
func (t Timestamp) Add(d time.Duration) Timestamp {
	if d < 0 && Timestamp(-d) > t {
		return 0
	}
	return Timestamp(int64(t) + int64(d))
}

// Sub returns t-u as a duration.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(int64(t) - int64(u))
}

func (t Timestamp) Bytes() []byte {
	return bigendian.Uint64ToBytes(uint64(t))
}

func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}
