package deflate

import (
	"bytes"
	"testing"

	"github.com/jonjohnsonjr/codecreg/codec"
)

// encodeAll drives e to completion against input, feeding it through a
// small fixed-size output buffer a few bytes at a time to exercise the
// "caller's buffer is smaller than one block" resumability path.
func encodeAll(t *testing.T, e *Encoder, input []byte, outChunk int) []byte {
	t.Helper()
	var compressed []byte
	in := &codec.Buffer{Data: input}
	for {
		out := &codec.Buffer{Data: make([]byte, outChunk)}
		var err error
		if in.Used < len(in.Data) {
			err = e.Update(in, out)
		} else {
			err = e.Finish(in, out)
		}
		if err != nil {
			t.Fatalf("encode step: %v", err)
		}
		compressed = append(compressed, out.Data[:out.Used]...)
		if e.Done() && out.Used == 0 {
			break
		}
	}
	return compressed
}

// decodeAll drives d to completion against compressed, feeding both input
// and output through small fixed-size chunks to exercise suspend/resume
// at arbitrary byte (and therefore bit) boundaries.
func decodeAll(t *testing.T, d *Decoder, compressed []byte, inChunk, outChunk int) []byte {
	t.Helper()
	var plain []byte
	pos := 0
	for {
		end := pos + inChunk
		if end > len(compressed) {
			end = len(compressed)
		}
		in := &codec.Buffer{Data: compressed[pos:end]}
		isLast := end == len(compressed)
		for {
			out := &codec.Buffer{Data: make([]byte, outChunk)}
			var err error
			if isLast {
				err = d.Finish(in, out)
			} else {
				err = d.Update(in, out)
			}
			if err != nil {
				t.Fatalf("decode step: %v", err)
			}
			plain = append(plain, out.Data[:out.Used]...)
			if in.Used == len(in.Data) || d.Done() {
				break
			}
		}
		pos += in.Used
		if d.Done() {
			break
		}
		if pos >= len(compressed) {
			t.Fatalf("ran out of compressed input before decoder signaled done")
		}
	}
	return plain
}

func roundTrip(t *testing.T, level int, input []byte) {
	t.Helper()
	limits := codec.Limits{MaxOutputBytes: 0, MaxMemoryBytes: 0, MaxExpansionRatio: 0, MaxWindowBytes: 0}
	enc := NewEncoder(level, 15, limits)
	compressed := encodeAll(t, enc, input, 7)

	dec := NewDecoder(15, limits)
	plain := decodeAll(t, dec, compressed, 5, 11)

	if !bytes.Equal(plain, input) {
		t.Fatalf("level %d: round-trip mismatch: got %d bytes, want %d bytes", level, len(plain), len(input))
	}
}

func TestRoundTripStoredLevel0(t *testing.T) {
	roundTrip(t, 0, []byte("the quick brown fox jumps over the lazy dog"))
}

func TestRoundTripDynamicLevel6(t *testing.T) {
	input := bytes.Repeat([]byte("abcabcabcabd ababab xyzxyzxyz "), 200)
	roundTrip(t, 6, input)
}

func TestRoundTripHighCompressionLongMatches(t *testing.T) {
	input := bytes.Repeat([]byte("0123456789"), 5000)
	roundTrip(t, 9, input)
}

func TestRoundTripEmptyInput(t *testing.T) {
	roundTrip(t, 6, nil)
}

func TestRoundTripSingleByte(t *testing.T) {
	roundTrip(t, 6, []byte{0x42})
}

func TestRoundTripAcrossMultipleBlocks(t *testing.T) {
	// blockSize is 1<<16 - 1; force at least 3 emitted blocks.
	input := bytes.Repeat([]byte("block boundary stress test data "), 10000)
	roundTrip(t, 6, input)
}

func TestDecodeRejectsBadLenNLen(t *testing.T) {
	limits := codec.Limits{}
	dec := NewDecoder(15, limits)
	// BFINAL=1, BTYPE=00 (stored), byte-aligned, then LEN=5, NLEN=5 (should
	// be ~5 = 0xfffa), which must be rejected as corrupt.
	bad := []byte{0x01, 0x05, 0x00, 0x05, 0x00, 'h', 'e', 'l', 'l', 'o'}
	in := &codec.Buffer{Data: bad}
	out := &codec.Buffer{Data: make([]byte, 64)}
	err := dec.Finish(in, out)
	ce, ok := err.(*codec.Error)
	if !ok || ce.Kind != codec.KindCorrupt {
		t.Fatalf("expected KindCorrupt for LEN/NLEN mismatch, got %v", err)
	}
}

// TestDecodeRejectsDistanceTooFar hand-builds a fixed-Huffman block (RFC
// 1951 section 3.2.6) containing a single back-reference whose distance
// exceeds the bytes produced so far; the decoder must reject it rather
// than read out-of-bounds history.
func TestDecodeRejectsDistanceTooFar(t *testing.T) {
	lengths := fixedLitLengths()
	litCodes, err := buildCodes(lengths, maxCodeBits)
	if err != nil {
		t.Fatalf("buildCodes: %v", err)
	}
	distCodes, err := buildCodes(fixedDistLengths(), maxCodeBits)
	if err != nil {
		t.Fatalf("buildCodes: %v", err)
	}

	out := &codec.Buffer{Data: make([]byte, 32)}
	var bw bitWriter
	bw.setDest(out)
	writeBlockHeader(&bw, true, 1) // BFINAL=1, BTYPE=01 (fixed Huffman)

	// One literal byte so the window has exactly 1 byte of history.
	writeCanonicalCode(&bw, litCodes['A'], lengths['A'])

	// A length-3 match (length symbol 257, lengthBase[0]==3, no extra
	// bits) at distance symbol 1 (distBase[1]==2), which already exceeds
	// the single byte of history available.
	lenIdx := 0
	writeCanonicalCode(&bw, litCodes[lengthStart+lenIdx], lengths[lengthStart+lenIdx])
	writeCanonicalCode(&bw, distCodes[1], fixedDistLengths()[1])

	if err := bw.flushToByte(); err != nil {
		t.Fatalf("flushToByte: %v", err)
	}

	dec := NewDecoder(15, codec.Limits{})
	in := &codec.Buffer{Data: out.Data[:out.Used]}
	decOut := &codec.Buffer{Data: make([]byte, 32)}
	err = dec.Finish(in, decOut)
	ce, ok := err.(*codec.Error)
	if !ok || ce.Kind != codec.KindCorrupt {
		t.Fatalf("expected KindCorrupt for distance exceeding history, got %v", err)
	}
}

func TestFinishReportsTruncatedStream(t *testing.T) {
	limits := codec.Limits{}
	dec := NewDecoder(15, limits)
	// A single BFINAL=0 stored block carrying "hi" with nothing after it:
	// never reaches a final block, so Finish must report corruption rather
	// than silently accepting a truncated stream.
	truncated := []byte{0x00, 0x02, 0x00, 0xfd, 0xff, 'h', 'i'}
	in := &codec.Buffer{Data: truncated}
	out := &codec.Buffer{Data: make([]byte, 64)}
	err := dec.Finish(in, out)
	ce, ok := err.(*codec.Error)
	if !ok || ce.Kind != codec.KindCorrupt {
		t.Fatalf("expected KindCorrupt for truncated stream, got %v", err)
	}
}

func TestDecoderResetAllowsReuse(t *testing.T) {
	limits := codec.Limits{}
	enc := NewEncoder(6, 15, limits)
	compressed := encodeAll(t, enc, []byte("reset me please"), 64)

	dec := NewDecoder(15, limits)
	first := decodeAll(t, dec, compressed, 64, 64)
	if string(first) != "reset me please" {
		t.Fatalf("first decode: got %q", first)
	}
	if err := dec.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	second := decodeAll(t, dec, compressed, 64, 64)
	if string(second) != "reset me please" {
		t.Fatalf("second decode after Reset: got %q", second)
	}
}

func TestPresetDictionaryRoundTrip(t *testing.T) {
	dict := []byte("the quick brown fox jumps over the lazy dog")
	input := []byte("the quick brown fox jumps over the lazy dog again and again")

	limits := codec.Limits{}
	enc := NewEncoder(6, 15, limits)
	enc.SeedDictionary(dict)
	compressed := encodeAll(t, enc, input, 64)

	plain := NewEncoder(6, 15, limits)
	plainCompressed := encodeAll(t, plain, input, 64)
	if len(compressed) >= len(plainCompressed) {
		t.Fatalf("dictionary-seeded encode (%d bytes) should beat unseeded encode (%d bytes)", len(compressed), len(plainCompressed))
	}

	dec := NewDecoder(15, limits)
	dec.SeedDictionary(dict)
	got := decodeAll(t, dec, compressed, 64, 64)
	if string(got) != string(input) {
		t.Fatalf("decode with dictionary: got %q, want %q", got, input)
	}
}

// firstBlockType reads the BTYPE of the first emitted block directly out
// of the compressed byte stream's first byte (bit 0 is BFINAL, bits 1-2
// are BTYPE, LSB-first per RFC 1951 section 3.2.3).
func firstBlockType(b byte) int {
	return int(b>>1) & 0x3
}

func TestChooseBlockTypePicksFixedForTinyBlock(t *testing.T) {
	// A handful of literal tokens: a dynamic block's own Huffman table
	// description costs far more bits than it could ever save over the
	// zero-overhead fixed tables for a block this small.
	e := NewEncoder(6, 15, codec.Limits{})
	raw := []byte{'a', 'b', 'c'}
	toks := []token{{lit: 'a'}, {lit: 'b'}, {lit: 'c'}}

	if got := e.chooseBlockType(raw, toks); got != blockFixed {
		t.Fatalf("chooseBlockType: got %v, want blockFixed", got)
	}
}

func TestEncoderChoosesFixedHuffmanForSmallBlock(t *testing.T) {
	limits := codec.Limits{}
	enc := NewEncoder(6, 15, limits)
	input := []byte("abc")
	compressed := encodeAll(t, enc, input, 64)

	if got := firstBlockType(compressed[0]); got != 1 {
		t.Fatalf("first block BTYPE: got %d, want 1 (fixed Huffman)", got)
	}

	dec := NewDecoder(15, limits)
	plain := decodeAll(t, dec, compressed, 64, 64)
	if string(plain) != string(input) {
		t.Fatalf("round trip mismatch: got %q, want %q", plain, input)
	}
}

func TestEncoderChoosesDynamicForHighlyStructuredBlock(t *testing.T) {
	limits := codec.Limits{}
	// Long, highly skewed/repetitive input: the dynamic header cost is
	// amortized and its custom-fit tables should beat the fixed ones.
	input := bytes.Repeat([]byte("abcabcabcabd ababab xyzxyzxyz "), 200)
	enc := NewEncoder(6, 15, limits)
	compressed := encodeAll(t, enc, input, 64)

	if got := firstBlockType(compressed[0]); got != 2 {
		t.Fatalf("first block BTYPE: got %d, want 2 (dynamic Huffman)", got)
	}
}

func TestEncoderLevelZeroAlwaysStored(t *testing.T) {
	limits := codec.Limits{}
	input := bytes.Repeat([]byte("abcabcabcabd ababab xyzxyzxyz "), 200)
	enc := NewEncoder(0, 15, limits)
	compressed := encodeAll(t, enc, input, 64)

	if got := firstBlockType(compressed[0]); got != 0 {
		t.Fatalf("first block BTYPE: got %d, want 0 (stored)", got)
	}
}

func TestOutputLimitRejectsOversizedStream(t *testing.T) {
	limits := codec.Limits{MaxOutputBytes: 5}
	enc := NewEncoder(6, 15, codec.Limits{})
	input := bytes.Repeat([]byte("x"), 1000)
	compressed := encodeAll(t, enc, input, 64)

	dec := NewDecoder(15, limits)
	in := &codec.Buffer{Data: compressed}
	out := &codec.Buffer{Data: make([]byte, 1000)}
	err := dec.Update(in, out)
	ce, ok := err.(*codec.Error)
	if !ok || ce.Kind != codec.KindLimit {
		t.Fatalf("expected KindLimit for output exceeding max_output_bytes, got %v", err)
	}
}
