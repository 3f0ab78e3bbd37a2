package deflate

import (
	"github.com/jonjohnsonjr/codecreg/codec"
)

const (
	hashBits  = 15
	hashSize  = 1 << hashBits
	blockSize = 1<<16 - 1 // bytes of input tokenized per emitted block; also the largest stored-block LEN
)

// token is one LZ77-stage output unit: either a single literal byte or a
// (length, distance) back-reference.
type token struct {
	isMatch bool
	lit     byte
	length  int
	dist    int
}

// levelParams holds the per-level match search budget: higher levels
// search longer hash chains and accept only longer "nice" matches before
// giving up and taking the best one found so far.
type levelParams struct {
	niceMatch int
	maxChain  int
}

func paramsForLevel(level int) levelParams {
	switch {
	case level <= 0:
		return levelParams{}
	case level <= 3:
		return levelParams{niceMatch: 16, maxChain: 8}
	case level <= 6:
		return levelParams{niceMatch: 64, maxChain: 32}
	default:
		return levelParams{niceMatch: maxMatchLength, maxChain: 128}
	}
}

// Encoder implements codec.Coder for RFC 1951 DEFLATE streams. It buffers
// all input seen so far (bounded only by the
// max_memory_bytes limit check, not by proactive eviction) since LZ77
// matches may reference arbitrarily far back within the configured
// window, then emits one Huffman-coded block per blockSize-sized chunk
// of newly buffered input, draining the resulting compressed bytes to
// the caller's output Buffer a few bytes at a time so a too-small output
// Buffer never loses already-computed work.
type Encoder struct {
	level      int
	windowSize int
	params     levelParams
	limits     codec.Limits

	pending     []byte
	tokenizedAt int

	head []int32
	prev []int32

	outBuf []byte
	outPos int

	// bwAcc/bwNBits carry a bitWriter's not-yet-byte-aligned backlog across
	// emitBlock calls, mirroring how bitReader persists acc/nbits across
	// Update calls on the decode side. Only the truly final block pads out
	// to a byte boundary; every other block leaves its trailing bits for
	// the next block's header to continue from, so BTYPE=1/2 blocks pack
	// back-to-back exactly as RFC 1951 section 3.2.3 requires.
	bwAcc   uint64
	bwNBits uint

	finishCalled bool
	wroteFinal   bool
	done         bool
	totalOut     uint64
	lastErr      *codec.Error
}

// NewEncoder builds an Encoder at the given compression level (0-9) with
// a window of 1<<windowBits bytes.
func NewEncoder(level, windowBits int, limits codec.Limits) *Encoder {
	return &Encoder{
		level:      level,
		windowSize: 1 << uint(windowBits),
		params:     paramsForLevel(level),
		limits:     limits,
		head:       make([]int32, hashSize),
	}
}

func (e *Encoder) Done() bool { return e.done }

// SeedDictionary preloads dict as history the first real input byte can
// match against, without emitting it as output. The dictionary bytes are
// inserted into the hash chain like any other tokenized position, but
// tokenizedAt is advanced past them so tokenize never turns them into
// literals or match tokens of their own.
func (e *Encoder) SeedDictionary(dict []byte) {
	if len(dict) == 0 {
		return
	}
	if len(dict) > e.windowSize {
		dict = dict[len(dict)-e.windowSize:]
	}
	e.pending = append(e.pending, dict...)
	for i := range dict {
		if i+3 <= len(e.pending) {
			e.insertHash(e.pending, i)
		}
	}
	e.tokenizedAt = len(e.pending)
}

// Reset returns the encoder to its initial state.
func (e *Encoder) Reset() error {
	e.pending = nil
	e.tokenizedAt = 0
	e.head = make([]int32, hashSize)
	e.prev = nil
	e.outBuf = nil
	e.outPos = 0
	e.bwAcc = 0
	e.bwNBits = 0
	e.finishCalled = false
	e.wroteFinal = false
	e.done = false
	e.totalOut = 0
	e.lastErr = nil
	return nil
}

func (e *Encoder) fail(err error) error {
	if ce, ok := err.(*codec.Error); ok {
		e.lastErr = ce
	}
	return err
}

func (e *Encoder) Update(in, out *codec.Buffer) error {
	if e.lastErr != nil {
		return e.lastErr
	}
	if e.finishCalled {
		return e.fail(&codec.Error{Kind: codec.KindInvalidArg, Stage: "deflate.encode", Detail: "Update called after Finish"})
	}
	return e.step(in, out, false)
}

func (e *Encoder) Finish(in, out *codec.Buffer) error {
	if e.lastErr != nil {
		return e.lastErr
	}
	e.finishCalled = true
	return e.step(in, out, true)
}

func (e *Encoder) step(in, out *codec.Buffer, finish bool) error {
	if in != nil {
		e.pending = append(e.pending, in.Data[in.Used:]...)
		in.Used = len(in.Data)
	}
	if mem := e.limits.MaxMemoryBytes; mem != 0 {
		if err := e.limits.CheckMemory(uint64(cap(e.pending)+cap(e.outBuf)), "deflate.encode"); err != nil {
			return e.fail(err)
		}
	}

	for {
		if e.outPos < len(e.outBuf) {
			n := copy(out.Remaining(), e.outBuf[e.outPos:])
			out.Advance(n)
			e.outPos += n
			e.totalOut += uint64(n)
			if err := e.limits.CheckOutput(e.totalOut, "deflate.limits"); err != nil {
				return e.fail(err)
			}
			if e.outPos < len(e.outBuf) {
				return nil // out is full; resume draining next call
			}
			if e.wroteFinal {
				e.done = true
				return nil
			}
		}

		avail := len(e.pending) - e.tokenizedAt
		if !finish && avail < blockSize {
			return nil // wait for more input before spending a block
		}
		if finish && avail == 0 && !e.wroteFinal {
			e.emitBlock(nil, nil, true)
			continue
		}
		if avail == 0 {
			return nil
		}

		end := e.tokenizedAt + avail
		if avail > blockSize {
			end = e.tokenizedAt + blockSize
		}
		start := e.tokenizedAt
		toks := e.tokenize(start, end)
		e.tokenizedAt = end
		e.emitBlock(e.pending[start:end], toks, finish && end == len(e.pending))
	}
}

// scratchSizeFor is a generous worst-case byte count for rendering one
// block under any of the three encodings: every token could need up to
// ~6 bytes (15-bit code + 13 extra bits on each of length/distance), a
// stored block needs len(raw) bytes verbatim, and either needs a little
// slack for the dynamic header and final padding.
func scratchSizeFor(raw []byte, toks []token) int {
	n := len(toks) * 6
	if len(raw) > n {
		n = len(raw)
	}
	return n + 1024
}

// blockType identifies which of RFC 1951's three block encodings was
// chosen for one emitted block.
type blockType int

const (
	blockStored blockType = iota
	blockFixed
	blockDynamic
)

// chooseBlockType picks whichever of stored/fixed/dynamic coding produces
// the fewest bits for this block, per RFC 1951 section 4's guidance that a
// compliant encoder may choose per-block. Level 0 ("store only") always
// forces stored, matching its "0 stored-only" level semantics.
func (e *Encoder) chooseBlockType(raw []byte, toks []token) blockType {
	if e.level == 0 {
		return blockStored
	}
	scratchLen := scratchSizeFor(raw, toks)
	bitsFor := func(write func(bw *bitWriter)) uint64 {
		var bw bitWriter
		bw.setDest(&codec.Buffer{Data: make([]byte, scratchLen)})
		write(&bw)
		return bw.count
	}

	best := blockStored
	bestBits := bitsFor(func(bw *bitWriter) { writeStoredBlock(bw, raw, false) })
	if n := bitsFor(func(bw *bitWriter) { writeFixedBlock(bw, toks, false) }); n < bestBits {
		best, bestBits = blockFixed, n
	}
	if n := bitsFor(func(bw *bitWriter) { writeDynamicBlock(bw, toks, false) }); n < bestBits {
		best, bestBits = blockDynamic, n
	}
	return best
}

// emitBlock renders raw/toks (with BFINAL set if final) into e.outBuf as a
// freshly built byte slice,
// replacing any already-fully-drained previous contents. Any bits left
// over from a prior non-final block carry forward via e.bwAcc/e.bwNBits so
// consecutive blocks pack without gaps; only the final block pads out to a
// byte boundary.
func (e *Encoder) emitBlock(raw []byte, toks []token, final bool) {
	var bw bitWriter
	bw.acc, bw.nbits = e.bwAcc, e.bwNBits
	buf := &codec.Buffer{Data: make([]byte, scratchSizeFor(raw, toks))}
	bw.setDest(buf)

	switch e.chooseBlockType(raw, toks) {
	case blockStored:
		writeStoredBlock(&bw, raw, final)
	case blockFixed:
		writeFixedBlock(&bw, toks, final)
	default:
		writeDynamicBlock(&bw, toks, final)
	}

	if final {
		_ = bw.flushToByte() // buf is sized generously; this never hits the limit path
		e.wroteFinal = true
		e.bwAcc, e.bwNBits = 0, 0
	} else {
		e.bwAcc, e.bwNBits = bw.acc, bw.nbits
	}
	e.outBuf = buf.Data[:buf.Used]
	e.outPos = 0
}

// insertHash records position i (whose 3-byte prefix is data[i:i+3]) in
// the hash chain, returning the previous position with the same hash, or
// -1 if none.
func (e *Encoder) insertHash(data []byte, i int) int32 {
	h := hash3(data, i)
	old := e.head[h]
	for len(e.prev) <= i {
		e.prev = append(e.prev, -1)
	}
	e.prev[i] = old
	e.head[h] = int32(i)
	return old
}

func hash3(data []byte, i int) uint32 {
	v := uint32(data[i])<<16 | uint32(data[i+1])<<8 | uint32(data[i+2])
	return (v * 2654435761) >> (32 - hashBits)
}

// findMatch searches the hash chain at position i (data[:limit] is all
// valid input) for the longest back-reference within the encoder's
// window.
func (e *Encoder) findMatch(data []byte, i, limit int) (length, dist int) {
	if limit-i < minMatchLength {
		return 0, 0
	}
	minPos := i - e.windowSize
	if minPos < 0 {
		minPos = 0
	}
	candidate := e.insertHash(data, i)
	chain := e.params.maxChain
	bestLen := 0
	bestPos := -1
	maxLen := limit - i
	if maxLen > maxMatchLength {
		maxLen = maxMatchLength
	}
	for candidate >= int32(minPos) && chain > 0 {
		c := int(candidate)
		l := matchLength(data, c, i, maxLen)
		if l > bestLen {
			bestLen = l
			bestPos = c
			if l >= e.params.niceMatch {
				break
			}
		}
		if int(c) >= len(e.prev) {
			break
		}
		candidate = e.prev[c]
		chain--
	}
	if bestLen < minMatchLength {
		return 0, 0
	}
	return bestLen, i - bestPos
}

func matchLength(data []byte, a, b, max int) int {
	n := 0
	for n < max && data[a+n] == data[b+n] {
		n++
	}
	return n
}

// tokenize runs the LZ77 match search over data[start:end], inserting
// every scanned position (including those skipped over inside a match)
// into the hash chain so later calls can still find them. Level 0 emits
// every byte as a literal with no search; levels 1-3 use a greedy search
// (take the best match found at the current position);
// levels 4-9 additionally evaluate the match one position ahead and defer
// to it when strictly longer (lazy matching).
func (e *Encoder) tokenize(start, end int) []token {
	data := e.pending
	var toks []token
	if e.level == 0 {
		for i := start; i < end; i++ {
			toks = append(toks, token{lit: data[i]})
		}
		return toks
	}
	if e.level < 4 {
		return e.tokenizeGreedy(data, start, end)
	}
	return e.tokenizeLazy(data, start, end)
}

func (e *Encoder) tokenizeGreedy(data []byte, start, end int) []token {
	var toks []token
	i := start
	for i < end {
		length, dist := 0, 0
		if end-i >= minMatchLength {
			length, dist = e.findMatch(data, i, end)
		}
		if length >= minMatchLength {
			toks = append(toks, token{isMatch: true, length: length, dist: dist})
			for k := 1; k < length && i+k < end-2; k++ {
				e.insertHash(data, i+k)
			}
			i += length
		} else {
			toks = append(toks, token{lit: data[i]})
			i++
		}
	}
	return toks
}

// tokenizeLazy implements the classic deflate_slow algorithm: before
// committing to a match found at position i-1, look at the match found at
// i; if it is strictly longer, emit a literal for i-1 and carry the match
// at i forward as the new pending candidate instead of re-searching.
func (e *Encoder) tokenizeLazy(data []byte, start, end int) []token {
	var toks []token
	i := start
	pendingLen, pendingDist := 0, 0
	pending := false

	for i < end {
		curLen, curDist := 0, 0
		if end-i >= minMatchLength {
			curLen, curDist = e.findMatch(data, i, end)
		}

		if pending {
			if pendingLen >= curLen {
				// The match found at i-1 is at least as good as anything
				// starting at i: commit to it now.
				toks = append(toks, token{isMatch: true, length: pendingLen, dist: pendingDist})
				for k := i + 1; k <= i+pendingLen-2 && k < end-2; k++ {
					e.insertHash(data, k)
				}
				i += pendingLen - 1
				pending = false
				pendingLen = 0
				continue
			}
			// The longer match starting at i wins: emit the deferred
			// literal for i-1 instead of the shorter match.
			toks = append(toks, token{lit: data[i-1]})
		}

		if curLen >= minMatchLength {
			pendingLen, pendingDist = curLen, curDist
			pending = true
		} else {
			toks = append(toks, token{lit: data[i]})
			pending = false
			pendingLen = 0
		}
		i++
	}
	if pending {
		toks = append(toks, token{isMatch: true, length: pendingLen, dist: pendingDist})
	}
	return toks
}
