package deflate

import (
	"math/bits"

	"github.com/jonjohnsonjr/codecreg/codec"
)

// fastBits is the width of the primary decode table: a fast table indexed
// by the next 9 bits.
const fastBits = 9
const fastSize = 1 << fastBits

// validateLengths rejects any length exceeding maxBits, and rejects an
// over-subscribed code (Kraft sum exceeds 2^maxBits). Under-subscribed
// trees are accepted, per RFC 1951's explicit allowance for an incomplete
// distance tree.
func validateLengths(lengths []int, maxBits int) error {
	var kraft uint64
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		if l > maxBits {
			return &codec.Error{Kind: codec.KindCorrupt, Stage: "huffman.validate", Detail: "code length exceeds max_bits"}
		}
		kraft += uint64(1) << uint(maxBits-l)
	}
	if kraft > uint64(1)<<uint(maxBits) {
		return &codec.Error{Kind: codec.KindCorrupt, Stage: "huffman.validate", Detail: "Huffman tree is over-subscribed"}
	}
	return nil
}

// buildCodes performs the canonical Huffman code assignment: for ascending
// length l, consecutive integers are assigned starting at next_code[l],
// derived from the per-length histogram.
func buildCodes(lengths []int, maxBits int) (codes []uint16, err error) {
	if err := validateLengths(lengths, maxBits); err != nil {
		return nil, err
	}
	var count [maxCodeBits + 1]int
	for _, l := range lengths {
		if l > 0 {
			count[l]++
		}
	}
	var nextCode [maxCodeBits + 2]int
	code := 0
	for l := 1; l <= maxBits; l++ {
		code = (code + count[l-1]) << 1
		nextCode[l] = code
	}
	codes = make([]uint16, len(lengths))
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		codes[sym] = uint16(nextCode[l])
		nextCode[l]++
	}
	return codes, nil
}

// huffStatus is the tri-state result of a single symbol decode attempt.
type huffStatus int

const (
	huffOK huffStatus = iota
	huffSuspend
	huffCorrupt
)

type decodeEntry struct {
	symbol uint16
	nbits  uint8 // 0 means "consult the long table"
}

// huffmanTable is a two-level decode table: a 512-entry fast table for
// codes of length <= 9, and a lazily-sized long table for codes of length
// > 9, keyed by the high bits beyond the fast table's 9.
type huffmanTable struct {
	min, max int
	fast     [fastSize]decodeEntry
	long     [][]decodeEntry
	linkMask uint32
}

// buildDecodeTable builds a huffmanTable from a code-length vector:
// reversed canonical codes fill the "don't care" high bits for short
// codes, and an overflow link table handles long ones, with each entry
// carrying an explicit {symbol, nbits} pair rather than a single packed
// value.
func buildDecodeTable(lengths []int, maxBits int) (*huffmanTable, error) {
	if err := validateLengths(lengths, maxBits); err != nil {
		return nil, err
	}
	var count [maxCodeBits + 1]int
	min, max := 0, 0
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		if min == 0 || l < min {
			min = l
		}
		if l > max {
			max = l
		}
		count[l]++
	}
	t := &huffmanTable{min: min, max: max}
	if max == 0 {
		return t, nil // empty tree: permitted, caller must not decode from it
	}

	var nextCode [maxCodeBits + 2]int
	code := 0
	for l := 1; l <= max; l++ {
		code = (code + count[l-1]) << 1
		nextCode[l] = code
	}

	if max > fastBits {
		numLinks := 1 << uint(max-fastBits)
		t.linkMask = uint32(numLinks - 1)
		link := nextCode[fastBits+1] >> 1
		t.long = make([][]decodeEntry, fastSize-link)
		for j := link; j < fastSize; j++ {
			reversed := int(bits.Reverse16(uint16(j))) >> (16 - fastBits)
			off := j - link
			t.fast[reversed] = decodeEntry{symbol: uint16(off), nbits: 0}
			t.long[off] = make([]decodeEntry, numLinks)
		}
	}

	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		code := nextCode[l]
		nextCode[l]++
		reversed := int(bits.Reverse16(uint16(code))) >> (16 - l)
		if l <= fastBits {
			for off := reversed; off < fastSize; off += 1 << uint(l) {
				t.fast[off] = decodeEntry{symbol: uint16(sym), nbits: uint8(l)}
			}
		} else {
			j := reversed & (fastSize - 1)
			linkIdx := t.fast[j].symbol
			sub := t.long[linkIdx]
			top := reversed >> fastBits
			for off := top; off < len(sub); off += 1 << uint(l-fastBits) {
				sub[off] = decodeEntry{symbol: uint16(sym), nbits: uint8(l)}
			}
		}
	}
	return t, nil
}

// empty reports whether the table has no codes at all.
func (t *huffmanTable) empty() bool {
	return t.max == 0
}

// decode reads one symbol from r. huffSuspend means r's current source
// ran out of bits before a full code could be read; the caller must
// return from Update and retry the identical decode call once more input
// arrives, since no state beyond r's own accumulator was consumed.
//
// finish relaxes that rule for the final symbol of a stream that will
// never receive more input: the
// two-level table always probes a fixed fastBits/max-wide window even
// when the real code is shorter, so a bare (non-wrapped) DEFLATE stream
// whose last symbol leaves fewer than fastBits bits before end-of-input
// would otherwise suspend forever. Since every bit position at or beyond
// r.nbits already reads as zero (bitReader's accumulator invariant) and
// buildDecodeTable fills every "don't care" suffix of a short code with
// the same entry, treating a permanently exhausted source as zero-padded
// out to the probe width is equivalent to the real bitstream ending
// there; it only ever applies to this table lookup, never to the
// fixed-width reads (LEN/NLEN, extra bits, header fields) that must
// still suspend and later report truncation if input genuinely ran out
// mid-field.
func (t *huffmanTable) decode(r *bitReader, finish bool) (int, huffStatus) {
	if t.empty() {
		return 0, huffCorrupt
	}
	if !r.fill(fastBits) && !finish {
		return 0, huffSuspend
	}
	e := t.fast[uint32(r.acc)&(fastSize-1)]
	if e.nbits == 0 {
		if !r.fill(uint(t.max)) && !finish {
			return 0, huffSuspend
		}
		if t.long == nil || int(e.symbol) >= len(t.long) {
			return 0, huffCorrupt
		}
		sub := t.long[e.symbol]
		idx := (uint32(r.acc) >> fastBits) & t.linkMask
		if int(idx) >= len(sub) {
			return 0, huffCorrupt
		}
		e = sub[idx]
		if e.nbits == 0 {
			return 0, huffCorrupt
		}
	}
	consume := uint(e.nbits)
	if consume > r.nbits {
		consume = r.nbits
	}
	r.acc >>= consume
	r.nbits -= consume
	return int(e.symbol), huffOK
}
