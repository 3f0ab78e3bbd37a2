package deflate

import "github.com/jonjohnsonjr/codecreg/codec"

// bitWriter is the LSB-first bit accumulator for the encoder. Like
// bitReader it is re-pointed at a new output *codec.Buffer on every
// Update/Finish call and carries any not-yet-drained bits across calls, so
// a caller-supplied output buffer that is too small to hold a block never
// loses data: writeBits simply stops draining and the backlog is flushed
// on the next call once more room is available.
type bitWriter struct {
	dst   *codec.Buffer
	acc   uint64
	nbits uint
	count uint64 // cumulative bits appended via writeBits, independent of dst/draining
}

func (w *bitWriter) setDest(b *codec.Buffer) {
	w.dst = b
}

// writeBits appends the low n bits of value, LSB-first, then opportunistically
// drains whole bytes to dst.
func (w *bitWriter) writeBits(value uint32, n uint) {
	w.acc |= uint64(value&(1<<n-1)) << w.nbits
	w.nbits += n
	w.count += uint64(n)
	w.drain()
}

// drain pushes as many complete bytes as currently fit into dst. Bytes
// that don't fit remain buffered in acc/nbits (up to the accumulator's
// capacity) until a later call provides more room.
func (w *bitWriter) drain() {
	for w.nbits >= 8 {
		if w.dst == nil || w.dst.Avail() == 0 {
			return
		}
		w.dst.Data[w.dst.Used] = byte(w.acc)
		w.dst.Advance(1)
		w.acc >>= 8
		w.nbits -= 8
	}
}

// backlogBits reports how many bits are still waiting to be drained.
func (w *bitWriter) backlogBits() uint {
	return w.nbits
}

// flushToByte pads with zero bits to a byte boundary, then requires every
// resulting byte to have been committed to dst; if the buffer can't hold
// them, it reports KindLimit synchronously rather than silently dropping
// bits.
func (w *bitWriter) flushToByte() error {
	if pad := w.nbits % 8; pad != 0 {
		w.writeBits(0, 8-pad)
	}
	w.drain()
	if w.nbits != 0 {
		return &codec.Error{Kind: codec.KindLimit, Stage: "deflate.flush", Detail: "output buffer too small to flush final bytes"}
	}
	return nil
}
