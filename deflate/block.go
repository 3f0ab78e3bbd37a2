package deflate

// writeBlockHeader writes the 3-bit BFINAL/BTYPE header common to every
// block (RFC 1951 section 3.2.3).
func writeBlockHeader(bw *bitWriter, final bool, btype uint32) {
	var finalBit uint32
	if final {
		finalBit = 1
	}
	bw.writeBits(finalBit|(btype<<1), 3)
}

// writeStoredBlock emits a type-0 block: header, alignment padding,
// LEN/NLEN, then the raw bytes verbatim (RFC 1951 section 3.2.4). Used
// unconditionally at level 0 ("store only"), and at higher levels
// whenever chooseBlockType finds it cheaper than fixed or dynamic coding
// for a given block (typically incompressible data).
func writeStoredBlock(bw *bitWriter, data []byte, final bool) {
	writeBlockHeader(bw, final, 0)
	if pad := bw.backlogBits() % 8; pad != 0 {
		bw.writeBits(0, 8-pad)
	}
	bw.drain()
	n := len(data)
	bw.writeBits(uint32(n), 16)
	bw.writeBits(uint32(^uint16(n)), 16)
	for _, b := range data {
		bw.writeBits(uint32(b), 8)
	}
}

// writeDynamicBlock emits a type-2 block: the Huffman table description
// (HLIT/HDIST/HCLEN, the code-length alphabet's own lengths, and the
// run-length-coded literal/length and distance code lengths), followed
// by the token stream itself Huffman-coded against those tables (RFC
// 1951 sections 3.2.6-3.2.7).
func writeDynamicBlock(bw *bitWriter, toks []token, final bool) {
	writeBlockHeader(bw, final, 2)

	litFreq := make([]int, 288)
	distFreq := make([]int, 30)
	litFreq[endOfBlock] = 1
	for _, t := range toks {
		if t.isMatch {
			idx := lengthSymbolIndex(t.length)
			litFreq[lengthStart+idx]++
			distFreq[distSymbolIndex(t.dist)]++
		} else {
			litFreq[t.lit]++
		}
	}

	litLengths := buildHuffmanLengths(litFreq, maxCodeBits)
	distLengths := buildHuffmanLengths(distFreq, maxCodeBits)
	// Deflate requires at least one distance code to be present even
	// when no matches occurred in this block.
	if allZero(distLengths) {
		distLengths[0] = 1
	}

	hlit := trimmedLen(litLengths, 257)
	hdist := trimmedLen(distLengths, 1)

	combined := append(append([]int{}, litLengths[:hlit]...), distLengths[:hdist]...)
	clSymbols, clExtraVals, clExtraBits := rleCodeLengths(combined)

	clFreq := make([]int, numCLSym)
	for _, s := range clSymbols {
		clFreq[s]++
	}
	clLengths := buildHuffmanLengths(clFreq, 7)
	hclen := trimmedCLLen(clLengths)

	litCodes, _ := buildCodes(litLengths, maxCodeBits)
	distCodes, _ := buildCodes(distLengths, maxCodeBits)
	clCodes, _ := buildCodes(clLengths, 7)

	bw.writeBits(uint32(hlit-257), 5)
	bw.writeBits(uint32(hdist-1), 5)
	bw.writeBits(uint32(hclen-4), 4)
	for i := 0; i < hclen; i++ {
		bw.writeBits(uint32(clLengths[codeLengthOrder[i]]), 3)
	}
	for i, sym := range clSymbols {
		writeCanonicalCode(bw, clCodes[sym], clLengths[sym])
		if clExtraBits[i] > 0 {
			bw.writeBits(clExtraVals[i], clExtraBits[i])
		}
	}

	for _, t := range toks {
		if t.isMatch {
			idx := lengthSymbolIndex(t.length)
			sym := lengthStart + idx
			writeCanonicalCode(bw, litCodes[sym], litLengths[sym])
			if lengthExtra[idx] > 0 {
				bw.writeBits(uint32(t.length-lengthBase[idx]), lengthExtra[idx])
			}
			dIdx := distSymbolIndex(t.dist)
			writeCanonicalCode(bw, distCodes[dIdx], distLengths[dIdx])
			if distExtra[dIdx] > 0 {
				bw.writeBits(uint32(t.dist-distBase[dIdx]), distExtra[dIdx])
			}
		} else {
			writeCanonicalCode(bw, litCodes[t.lit], litLengths[t.lit])
		}
	}
	writeCanonicalCode(bw, litCodes[endOfBlock], litLengths[endOfBlock])
}

// writeFixedBlock emits a type-1 block: the token stream Huffman-coded
// against the fixed literal/length and distance tables of RFC 1951
// section 3.2.6, with no table description transmitted at all.
func writeFixedBlock(bw *bitWriter, toks []token, final bool) {
	writeBlockHeader(bw, final, 1)

	litLengths := fixedLitLengths()
	distLengths := fixedDistLengths()
	litCodes, _ := buildCodes(litLengths, maxCodeBits)
	distCodes, _ := buildCodes(distLengths, maxCodeBits)

	for _, t := range toks {
		if t.isMatch {
			idx := lengthSymbolIndex(t.length)
			sym := lengthStart + idx
			writeCanonicalCode(bw, litCodes[sym], litLengths[sym])
			if lengthExtra[idx] > 0 {
				bw.writeBits(uint32(t.length-lengthBase[idx]), lengthExtra[idx])
			}
			dIdx := distSymbolIndex(t.dist)
			writeCanonicalCode(bw, distCodes[dIdx], distLengths[dIdx])
			if distExtra[dIdx] > 0 {
				bw.writeBits(uint32(t.dist-distBase[dIdx]), distExtra[dIdx])
			}
		} else {
			writeCanonicalCode(bw, litCodes[t.lit], litLengths[t.lit])
		}
	}
	writeCanonicalCode(bw, litCodes[endOfBlock], litLengths[endOfBlock])
}

// writeCanonicalCode writes a canonical Huffman code MSB-first within
// its own bits, but LSB-first into the bitstream overall, as RFC 1951
// section 3.1.1 requires ("Huffman codes are packed starting with the
// most-significant bit of the code").
func writeCanonicalCode(bw *bitWriter, code uint16, length int) {
	var reversed uint32
	c := uint32(code)
	for i := 0; i < length; i++ {
		reversed = (reversed << 1) | (c & 1)
		c >>= 1
	}
	bw.writeBits(reversed, uint(length))
}

func lengthSymbolIndex(length int) int {
	for i := len(lengthBase) - 1; i >= 0; i-- {
		if length >= lengthBase[i] {
			return i
		}
	}
	return 0
}

func distSymbolIndex(dist int) int {
	for i := len(distBase) - 1; i >= 0; i-- {
		if dist >= distBase[i] {
			return i
		}
	}
	return 0
}

func allZero(lengths []int) bool {
	for _, l := range lengths {
		if l != 0 {
			return false
		}
	}
	return true
}

func trimmedLen(lengths []int, min int) int {
	n := len(lengths)
	for n > min && lengths[n-1] == 0 {
		n--
	}
	return n
}

func trimmedCLLen(clLengths []int) int {
	n := numCLSym
	for n > 4 && clLengths[codeLengthOrder[n-1]] == 0 {
		n--
	}
	return n
}

// rleCodeLengths run-length-encodes a code-length sequence using symbols
// 16 (repeat previous 3-6 times), 17 (repeat zero 3-10 times), and 18
// (repeat zero 11-138 times), per RFC 1951 section 3.2.7. It returns, in
// parallel, the emitted symbol stream and any associated extra-bits value
// and width.
func rleCodeLengths(lengths []int) (symbols []int, extraVals []uint32, extraBits []uint) {
	emit := func(sym int, val uint32, bits uint) {
		symbols = append(symbols, sym)
		extraVals = append(extraVals, val)
		extraBits = append(extraBits, bits)
	}

	i := 0
	for i < len(lengths) {
		l := lengths[i]
		spanEnd := i + 1
		for spanEnd < len(lengths) && lengths[spanEnd] == l {
			spanEnd++
		}
		remaining := spanEnd - i

		if l == 0 {
			for remaining > 0 {
				switch {
				case remaining >= 11:
					n := remaining
					if n > 138 {
						n = 138
					}
					emit(18, uint32(n-11), 7)
					remaining -= n
				case remaining >= 3:
					n := remaining
					if n > 10 {
						n = 10
					}
					emit(17, uint32(n-3), 3)
					remaining -= n
				default:
					emit(0, 0, 0)
					remaining--
				}
			}
		} else {
			emit(l, 0, 0)
			remaining--
			for remaining >= 3 {
				n := remaining
				if n > 6 {
					n = 6
				}
				emit(16, uint32(n-3), 2)
				remaining -= n
			}
			for ; remaining > 0; remaining-- {
				emit(l, 0, 0)
			}
		}
		i = spanEnd
	}
	return
}
