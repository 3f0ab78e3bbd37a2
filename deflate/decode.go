package deflate

import (
	"fmt"

	"github.com/jonjohnsonjr/codecreg/codec"
)

// blockState enumerates every point at which the decoder may be suspended
// mid-block and later resumed with no loss of progress. Each state
// corresponds to exactly one durable fact the decoder has already
// established (a field already committed to d) and one fact it is still
// waiting to read or write.
type blockState int

const (
	sBlockStart blockState = iota
	sStoredLen
	sStoredNLen
	sStoredCopy
	sDynHlit
	sDynHdist
	sDynHclen
	sDynCLLen
	sDynCodeLen
	sDynCodeLenExtra
	sHuffSymbol
	sHuffLenExtra
	sHuffDistSymbol
	sHuffDistExtra
	sCopyMatch
	sEmitLiteral
	sDone
)

// Decoder implements codec.Coder for RFC 1951 DEFLATE streams. It holds
// all state needed to suspend at any bit boundary and resume on the next
// Update call with a fresh input/output Buffer pair, without ever blocking
// on an io.Reader: every read here either completes or leaves the
// bitReader's accumulator untouched-but-durable for the next call.
type Decoder struct {
	br  bitReader
	win *window

	limits codec.Limits

	state blockState
	final bool

	// stored block
	storedLen       int
	storedRemaining int

	// dynamic header parsing
	hlit, hdist, hclen int
	clLengths          [numCLSym]int
	clIdx              int
	clTable            *huffmanTable
	codeLengths        []int
	codeLenIdx         int
	prevLen            int
	pendingSym         int

	litTable, distTable *huffmanTable

	// huffman-coded data
	pendingLit  byte
	copyLen     int
	copyDistIdx int
	copyDist    int
	copyRemain  int

	totalOut uint64

	done    bool
	lastErr *codec.Error
}

// NewDecoder builds a Decoder whose window size is 1<<windowBits bytes
// (windowBits in [8,15]) and whose output/ratio limits are those resolved
// by the caller.
func NewDecoder(windowBits int, limits codec.Limits) *Decoder {
	return &Decoder{
		win:    newWindow(1 << uint(windowBits)),
		limits: limits,
	}
}

// SeedDictionary pre-loads the decoder's window, for the deflate.dictionary
// option.
func (d *Decoder) SeedDictionary(dict []byte) {
	d.win.seed(dict)
}

func (d *Decoder) corrupt(stage, format string, args ...interface{}) error {
	err := &codec.Error{Kind: codec.KindCorrupt, Stage: stage, Detail: fmt.Sprintf(format, args...)}
	d.lastErr = err
	return err
}

func (d *Decoder) fail(err error) error {
	if ce, ok := err.(*codec.Error); ok {
		d.lastErr = ce
	}
	return err
}

// Done reports whether the final block has been fully decoded.
func (d *Decoder) Done() bool { return d.done }

// Reset returns the decoder to its initial state, for stream reuse.
func (d *Decoder) Reset() error {
	size := d.win.size()
	d.win = newWindow(size)
	d.br = bitReader{}
	d.state = sBlockStart
	d.final = false
	d.clTable = nil
	d.litTable = nil
	d.distTable = nil
	d.codeLengths = nil
	d.totalOut = 0
	d.done = false
	d.lastErr = nil
	return nil
}

// Update feeds in to the decoder and appends any decoded bytes to out. It
// returns nil (not an error) when input or output space runs out mid
// symbol; the caller is expected to call Update again once more of either
// is available.
func (d *Decoder) Update(in, out *codec.Buffer) error {
	if d.lastErr != nil {
		return d.lastErr
	}
	if d.done {
		return nil
	}
	d.br.setSource(in)
	return d.run(out, false)
}

// Finish behaves like Update but additionally requires the stream to have
// reached its final block; a truncated stream is reported as KindCorrupt
// rather than silently accepted.
func (d *Decoder) Finish(in, out *codec.Buffer) error {
	if d.lastErr != nil {
		return d.lastErr
	}
	if d.done {
		return nil
	}
	d.br.setSource(in)
	if err := d.run(out, true); err != nil {
		return err
	}
	if !d.done {
		return d.fail(&codec.Error{Kind: codec.KindCorrupt, Stage: "deflate.finish", Detail: "truncated deflate stream: no final block"})
	}
	return nil
}

// run drives the state machine as far as the current input/output allow,
// returning nil on a clean suspension point and a *codec.Error on
// anything that can never be resumed past.
func (d *Decoder) run(out *codec.Buffer, finish bool) error {
	for {
		switch d.state {
		case sBlockStart:
			bits, ok := d.br.readBits(3)
			if !ok {
				return nil
			}
			d.final = bits&1 == 1
			switch (bits >> 1) & 3 {
			case 0:
				d.br.alignToByte()
				d.state = sStoredLen
			case 1:
				d.litTable = fixedLitTable()
				d.distTable = fixedDistTable()
				d.state = sHuffSymbol
			case 2:
				d.hlit, d.hdist, d.hclen = 0, 0, 0
				d.clIdx = 0
				for i := range d.clLengths {
					d.clLengths[i] = 0
				}
				d.state = sDynHlit
			default:
				return d.fail(d.corrupt("deflate.block_header", "reserved block type 3"))
			}

		case sStoredLen:
			v, ok := d.br.readBits(16)
			if !ok {
				return nil
			}
			d.storedLen = int(v)
			d.state = sStoredNLen

		case sStoredNLen:
			v, ok := d.br.readBits(16)
			if !ok {
				return nil
			}
			if uint16(v) != ^uint16(d.storedLen) {
				return d.fail(d.corrupt("deflate.stored_header", "LEN/NLEN mismatch"))
			}
			d.storedRemaining = d.storedLen
			d.state = sStoredCopy

		case sStoredCopy:
			for d.storedRemaining > 0 {
				if out.Avail() == 0 {
					return nil
				}
				v, ok := d.br.readBits(8)
				if !ok {
					return nil
				}
				if err := d.checkEmitLimit(); err != nil {
					return d.fail(err)
				}
				d.emit(out, byte(v))
				d.storedRemaining--
			}
			if d.final {
				d.state = sDone
			} else {
				d.state = sBlockStart
			}

		case sDynHlit:
			v, ok := d.br.readBits(5)
			if !ok {
				return nil
			}
			d.hlit = int(v) + 257
			d.state = sDynHdist

		case sDynHdist:
			v, ok := d.br.readBits(5)
			if !ok {
				return nil
			}
			d.hdist = int(v) + 1
			d.state = sDynHclen

		case sDynHclen:
			v, ok := d.br.readBits(4)
			if !ok {
				return nil
			}
			d.hclen = int(v) + 4
			d.clIdx = 0
			d.state = sDynCLLen

		case sDynCLLen:
			for d.clIdx < d.hclen {
				v, ok := d.br.readBits(3)
				if !ok {
					return nil
				}
				d.clLengths[codeLengthOrder[d.clIdx]] = int(v)
				d.clIdx++
			}
			tbl, err := buildDecodeTable(d.clLengths[:], 7)
			if err != nil {
				return d.fail(err)
			}
			d.clTable = tbl
			d.codeLengths = make([]int, d.hlit+d.hdist)
			d.codeLenIdx = 0
			d.prevLen = 0
			d.state = sDynCodeLen

		case sDynCodeLen:
			done := true
			for d.codeLenIdx < len(d.codeLengths) {
				sym, st := d.clTable.decode(&d.br, finish)
				switch st {
				case huffSuspend:
					return nil
				case huffCorrupt:
					return d.fail(d.corrupt("deflate.code_lengths", "invalid code-length symbol"))
				}
				if sym < 16 {
					d.codeLengths[d.codeLenIdx] = sym
					d.prevLen = sym
					d.codeLenIdx++
					continue
				}
				d.pendingSym = sym
				d.state = sDynCodeLenExtra
				done = false
				break
			}
			if done {
				if err := d.buildTrees(); err != nil {
					return d.fail(err)
				}
				d.state = sHuffSymbol
			}

		case sDynCodeLenExtra:
			var extraBits uint
			var base, repeatVal int
			switch d.pendingSym {
			case 16:
				if d.codeLenIdx == 0 {
					return d.fail(d.corrupt("deflate.code_lengths", "repeat-previous code with no previous length"))
				}
				extraBits, base, repeatVal = 2, 3, d.prevLen
			case 17:
				extraBits, base, repeatVal = 3, 3, 0
			default: // 18
				extraBits, base, repeatVal = 7, 11, 0
			}
			v, ok := d.br.readBits(extraBits)
			if !ok {
				return nil
			}
			count := base + int(v)
			if d.codeLenIdx+count > len(d.codeLengths) {
				return d.fail(d.corrupt("deflate.code_lengths", "repeat count overruns code length table"))
			}
			for i := 0; i < count; i++ {
				d.codeLengths[d.codeLenIdx] = repeatVal
				d.codeLenIdx++
			}
			if d.pendingSym != 16 {
				d.prevLen = 0
			}
			d.state = sDynCodeLen

		case sHuffSymbol:
			sym, st := d.litTable.decode(&d.br, finish)
			switch st {
			case huffSuspend:
				return nil
			case huffCorrupt:
				return d.fail(d.corrupt("deflate.huffman", "invalid literal/length symbol"))
			}
			switch {
			case sym < 256:
				if out.Avail() == 0 {
					d.pendingLit = byte(sym)
					d.state = sEmitLiteral
					return nil
				}
				if err := d.checkEmitLimit(); err != nil {
					return d.fail(err)
				}
				d.emit(out, byte(sym))
			case sym == endOfBlock:
				if d.final {
					d.state = sDone
				} else {
					d.state = sBlockStart
				}
			case sym-lengthStart >= 0 && sym-lengthStart < len(lengthBase):
				idx := sym - lengthStart
				if lengthExtra[idx] > 0 {
					d.pendingSym = idx
					d.state = sHuffLenExtra
				} else {
					d.copyLen = lengthBase[idx]
					d.state = sHuffDistSymbol
				}
			default:
				return d.fail(d.corrupt("deflate.huffman", "reserved literal/length symbol %d", sym))
			}

		case sHuffLenExtra:
			idx := d.pendingSym
			v, ok := d.br.readBits(lengthExtra[idx])
			if !ok {
				return nil
			}
			d.copyLen = lengthBase[idx] + int(v)
			d.state = sHuffDistSymbol

		case sHuffDistSymbol:
			sym, st := d.distTable.decode(&d.br, finish)
			switch st {
			case huffSuspend:
				return nil
			case huffCorrupt:
				return d.fail(d.corrupt("deflate.huffman", "invalid distance symbol"))
			}
			if sym >= numDistSym {
				return d.fail(d.corrupt("deflate.huffman", "reserved distance symbol %d", sym))
			}
			d.copyDistIdx = sym
			if distExtra[sym] > 0 {
				d.state = sHuffDistExtra
			} else {
				d.copyDist = distBase[sym]
				if err := d.startCopy(); err != nil {
					return d.fail(err)
				}
			}

		case sHuffDistExtra:
			v, ok := d.br.readBits(distExtra[d.copyDistIdx])
			if !ok {
				return nil
			}
			d.copyDist = distBase[d.copyDistIdx] + int(v)
			if err := d.startCopy(); err != nil {
				return d.fail(err)
			}

		case sCopyMatch:
			for d.copyRemain > 0 {
				if out.Avail() == 0 {
					return nil
				}
				if err := d.checkEmitLimit(); err != nil {
					return d.fail(err)
				}
				b := d.win.byteAt(d.copyDist)
				d.emit(out, b)
				d.copyRemain--
			}
			d.state = sHuffSymbol

		case sEmitLiteral:
			if out.Avail() == 0 {
				return nil
			}
			if err := d.checkEmitLimit(); err != nil {
				return d.fail(err)
			}
			d.emit(out, d.pendingLit)
			d.state = sHuffSymbol

		case sDone:
			d.done = true
			d.br.giveBackWholeBytes()
			return nil
		}
	}
}

// emit writes b to out and records it in the history window. Callers must
// have already verified out.Avail() > 0.
func (d *Decoder) emit(out *codec.Buffer, b byte) {
	out.Data[out.Used] = b
	out.Advance(1)
	d.win.push(b)
	d.totalOut++
}

// checkEmitLimit enforces the output and expansion-ratio caps against the
// hypothetical count after one more byte, so a limit-exceeding byte is
// rejected before it is ever written into the caller's output buffer.
func (d *Decoder) checkEmitLimit() error {
	next := d.totalOut + 1
	if err := d.limits.CheckOutput(next, "deflate.limits"); err != nil {
		return err
	}
	return d.limits.CheckExpansionRatio(d.br.consumed, next, "deflate.limits")
}

// startCopy validates a fully-decoded (length, distance) pair against the
// window's available history and RFC 1951's distance range, then
// transitions to the byte-copy loop.
func (d *Decoder) startCopy() error {
	if d.copyDist < minMatchDist || d.copyDist > maxMatchDist {
		return d.corrupt("deflate.match", "distance %d out of range", d.copyDist)
	}
	if d.win.distanceTooFar(d.copyDist) {
		return d.corrupt("deflate.match", "distance %d exceeds available history", d.copyDist)
	}
	d.copyRemain = d.copyLen
	d.state = sCopyMatch
	return nil
}

// buildTrees splits the just-decoded code-length sequence into the
// literal/length and distance alphabets and builds their decode tables
// (RFC 1951 section 3.2.7).
func (d *Decoder) buildTrees() error {
	litLengths := d.codeLengths[:d.hlit]
	distLengths := d.codeLengths[d.hlit:]

	litTable, err := buildDecodeTable(litLengths, maxCodeBits)
	if err != nil {
		return err
	}
	d.litTable = litTable

	if len(distLengths) == 1 && distLengths[0] == 0 {
		// A single zero-length distance code means "no distances used"
		// (RFC 1951 section 3.2.7, also produced by zlib/minigzip for
		// all-literal input): accept it as a legally empty table.
		d.distTable = &huffmanTable{}
		return nil
	}
	distTable, err := buildDecodeTable(distLengths, maxCodeBits)
	if err != nil {
		return err
	}
	d.distTable = distTable
	return nil
}

var fixedLitCache, fixedDistCache *huffmanTable

func fixedLitTable() *huffmanTable {
	if fixedLitCache == nil {
		t, _ := buildDecodeTable(fixedLitLengths(), maxCodeBits)
		fixedLitCache = t
	}
	return fixedLitCache
}

func fixedDistTable() *huffmanTable {
	if fixedDistCache == nil {
		t, _ := buildDecodeTable(fixedDistLengths(), maxCodeBits)
		fixedDistCache = t
	}
	return fixedDistCache
}
