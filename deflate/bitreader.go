package deflate

import "github.com/jonjohnsonjr/codecreg/codec"

// bitReader is an LSB-first bit accumulator built for chunk-resumable
// parsing: instead of reading from a single complete backing slice, it is
// re-pointed at a new *codec.Buffer on every Update call and carries its
// partially-filled accumulator (up to 32 real bits plus headroom) across
// calls. This is the component that lets the decoder suspend at any bit
// boundary and resume with no loss of state.
type bitReader struct {
	src      *codec.Buffer
	acc      uint64
	nbits    uint
	consumed uint64 // whole bytes pulled from src, net of giveBackWholeBytes
}

func (r *bitReader) setSource(b *codec.Buffer) {
	r.src = b
}

// fill pulls bytes from the current source until at least n bits are
// buffered, or the source runs out first. It never blocks and never
// errors: running out of input is a normal suspension point, not a
// corruption.
func (r *bitReader) fill(n uint) bool {
	for r.nbits < n {
		if r.src == nil || r.src.Avail() == 0 {
			return false
		}
		c := r.src.Data[r.src.Used]
		r.src.Advance(1)
		r.acc |= uint64(c) << r.nbits
		r.nbits += 8
		r.consumed++
	}
	return true
}

// readBits reads n (1..24) bits LSB-first. It reports ok=false when the
// current source is exhausted before n bits could be filled (a suspension
// point, not an error).
func (r *bitReader) readBits(n uint) (uint32, bool) {
	if !r.fill(n) {
		return 0, false
	}
	v := uint32(r.acc & (1<<n - 1))
	r.acc >>= n
	r.nbits -= n
	return v, true
}

// alignToByte discards the remaining bits of the current partially
// consumed byte.
func (r *bitReader) alignToByte() {
	drop := r.nbits % 8
	r.acc >>= drop
	r.nbits -= drop
}

// isEOF reports whether there are no more buffered bits and the current
// source (if any) is exhausted.
func (r *bitReader) isEOF() bool {
	return r.nbits == 0 && (r.src == nil || r.src.Avail() == 0)
}

// giveBackWholeBytes returns any fully-buffered, not-yet-consumed bytes to
// src by rewinding its Used cursor, discarding them from the accumulator.
// Bits read beyond the final block's last symbol but still held in the
// accumulator must stay available to a caller that wraps this decoder:
// gzip calls this once the inner stream is Done so the trailer bytes it
// over-read reappear in the shared buffer. The sub-byte remainder of the
// last consumed byte (0-7 bits) is dropped; it is deflate's own
// end-of-stream padding and has no meaning to a wrapper.
func (r *bitReader) giveBackWholeBytes() {
	whole := r.nbits / 8
	if whole == 0 {
		return
	}
	if r.src != nil {
		r.src.Used -= int(whole)
	}
	r.acc >>= whole * 8
	r.nbits -= whole * 8
	r.consumed -= uint64(whole)
}
