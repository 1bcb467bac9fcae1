// Package bits is a little-endian bit stream used by utils/cser for flags
// and length prefixes that do not deserve a whole byte.
package bits

type (
	// Array owns the packed bytes.
	Array struct {
		Bytes []byte
	}

	// Writer appends bit groups to an Array.
	Writer struct {
		*Array
		bitOffset int // next free bit in the last byte, 0 means a new byte is needed
	}

	// Reader consumes bit groups from an Array.
	Reader struct {
		*Array
		byteOffset int
		bitOffset  int
	}
)

func NewWriter(arr *Array) *Writer {
	return &Writer{Array: arr}
}

func NewReader(arr *Array) *Reader {
	return &Reader{Array: arr}
}

func lowBits(v uint, clear int) uint {
	return v & (uint(0xff) >> clear)
}

// Write appends the lowest n bits of v. Bits that do not fit into the
// current byte continue in the next one.
func (a *Writer) Write(n int, v uint) {
	for {
		if a.bitOffset == 0 {
			a.Bytes = append(a.Bytes, 0)
		}
		free := 8 - a.bitOffset
		if n <= free {
			a.Bytes[len(a.Bytes)-1] |= byte(v << a.bitOffset)
			a.bitOffset = (a.bitOffset + n) % 8
			return
		}
		a.Bytes[len(a.Bytes)-1] |= byte(lowBits(v, a.bitOffset) << a.bitOffset)
		a.bitOffset = 0
		n -= free
		v >>= free
	}
}

// Read consumes n bits and returns them as the low bits of v.
// It panics when fewer than n bits remain.
func (a *Reader) Read(n int) (v uint) {
	shift := 0
	for n > 0 {
		free := 8 - a.bitOffset
		if n < free {
			clear := 8 - (a.bitOffset + n)
			v |= (lowBits(uint(a.Bytes[a.byteOffset]), clear) >> a.bitOffset) << shift
			a.bitOffset += n
			return v
		}
		v |= (uint(a.Bytes[a.byteOffset]) >> a.bitOffset) << shift
		a.bitOffset = 0
		a.byteOffset++
		shift += free
		n -= free
	}
	return v
}

// NonReadBytes counts bytes that are not fully consumed.
func (a *Reader) NonReadBytes() int {
	return len(a.Bytes) - a.byteOffset
}

// NonReadBits counts the remaining bits, padding included.
func (a *Reader) NonReadBits() int {
	return a.NonReadBytes()*8 - a.bitOffset
}
