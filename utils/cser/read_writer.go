// Package cser is the canonical compact serialization used for evidence
// records. Every value has exactly one valid encoding: integers are stored
// in the fewest little-endian bytes, with their byte length kept in a side
// bit stream, and decoders reject anything that is not minimal.
package cser

import (
	"errors"

	"github.com/rony4d/go-aura-asset/utils/bits"
	"github.com/rony4d/go-aura-asset/utils/fast"
)

var (
	ErrNonCanonicalEncoding = errors.New("non canonical encoding")
	ErrMalformedEncoding    = errors.New("malformed encoding")
	ErrTooLargeAlloc        = errors.New("too large allocation")
)

// MaxAlloc caps the element count a decoder will allocate for.
const MaxAlloc = 100 * 1024

// Writer writes to the bit stream and the byte stream at once.
type Writer struct {
	BitsW  *bits.Writer
	BytesW *fast.Writer
}

// Reader is the decoding counterpart of Writer.
type Reader struct {
	BitsR  *bits.Reader
	BytesR *fast.Reader
}

func NewWriter() *Writer {
	return &Writer{
		BitsW:  bits.NewWriter(&bits.Array{Bytes: make([]byte, 0, 32)}),
		BytesW: fast.NewWriter(make([]byte, 0, 200)),
	}
}

// writeUint64Compact is a base-128 varint whose final byte carries the high
// bit. Only the trailing size suffix uses it.
func writeUint64Compact(bytesW *fast.Writer, v uint64) {
	for {
		chunk := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			bytesW.PutByte(chunk | 0x80)
			return
		}
		bytesW.PutByte(chunk)
	}
}

func readUint64Compact(bytesR *fast.Reader) uint64 {
	var v uint64
	for i := 0; ; i++ {
		chunk := bytesR.NextByte()
		word := uint64(chunk & 0x7f)
		stop := chunk&0x80 != 0
		if i > 0 && stop && word == 0 {
			panic(ErrNonCanonicalEncoding)
		}
		v |= word << (7 * uint(i))
		if stop {
			return v
		}
	}
}

func writeUint64BitCompact(bytesW *fast.Writer, v uint64, minSize int) (size int) {
	for size < minSize || v != 0 {
		bytesW.PutByte(byte(v))
		size++
		v >>= 8
	}
	return size
}

func readUint64BitCompact(bytesR *fast.Reader, size int) uint64 {
	var v uint64
	buf := bytesR.Read(size)
	for i, b := range buf {
		v |= uint64(b) << (8 * uint(i))
	}
	if size > 1 && buf[size-1] == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return v
}

func (w *Writer) writeSized(minSize, sizeBits int, v uint64) {
	size := writeUint64BitCompact(w.BytesW, v, minSize)
	w.BitsW.Write(sizeBits, uint(size-minSize))
}

func (r *Reader) readSized(minSize, sizeBits int) uint64 {
	size := int(r.BitsR.Read(sizeBits)) + minSize
	return readUint64BitCompact(r.BytesR, size)
}

func (w *Writer) U8(v uint8) {
	w.BytesW.PutByte(v)
}

func (r *Reader) U8() uint8 {
	return r.BytesR.NextByte()
}

// U32 takes 1..4 bytes plus 2 size bits.
func (w *Writer) U32(v uint32) {
	w.writeSized(1, 2, uint64(v))
}

func (r *Reader) U32() uint32 {
	return uint32(r.readSized(1, 2))
}

// U64 takes 1..8 bytes plus 3 size bits.
func (w *Writer) U64(v uint64) {
	w.writeSized(1, 3, v)
}

func (r *Reader) U64() uint64 {
	return r.readSized(1, 3)
}

// U56 encodes lengths: 0..7 bytes, so zero costs only its size bits.
func (w *Writer) U56(v uint64) {
	const max = 1<<(8*7) - 1
	if v > max {
		panic("cser: value too big for U56")
	}
	w.writeSized(0, 3, v)
}

func (r *Reader) U56() uint64 {
	return r.readSized(0, 3)
}

func (w *Writer) Bool(v bool) {
	var b uint
	if v {
		b = 1
	}
	w.BitsW.Write(1, b)
}

func (r *Reader) Bool() bool {
	return r.BitsR.Read(1) != 0
}

// FixedBytes copies len(v) raw bytes; the length is implied by the schema.
func (w *Writer) FixedBytes(v []byte) {
	w.BytesW.Write(v)
}

func (r *Reader) FixedBytes(v []byte) {
	copy(v, r.BytesR.Read(len(v)))
}
