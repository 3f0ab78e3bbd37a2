package deflate

// Constants and fixed tables from RFC 1951. The fixed Huffman code lengths
// (section 3.2.6), the length/distance extra-bits tables (section 3.2.5),
// and the code-length alphabet permutation (section 3.2.7) are wire-format
// constants, not design choices, so they are ported directly from the RFC.
const (
	endOfBlock  = 256
	lengthStart = 257
	maxLitSym   = 287 // 286 and 287 are reserved but must decode as corrupt
	numDistSym  = 30
	numCLSym    = 19

	minMatchLength = 3
	maxMatchLength = 258
	minMatchDist   = 1
	maxMatchDist   = 1 << 15

	maxCodeBits = 15
)

// codeLengthOrder is the order in which the 3-bit code-length-code lengths
// are transmitted in a dynamic block header (RFC 1951 section 3.2.7).
var codeLengthOrder = [numCLSym]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// lengthBase and lengthExtra give, for length symbols 257..285 (index 0 =
// symbol 257), the base match length and the number of extra bits to add.
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
	15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
	67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtra = [29]uint{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// distBase and distExtra give, for distance symbols 0..29, the base match
// distance and the number of extra bits to add.
var distBase = [numDistSym]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25,
	33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
	1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

var distExtra = [numDistSym]uint{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// fixedLitLengths and fixedDistLengths are the fixed Huffman code lengths
// of RFC 1951 section 3.2.6.
func fixedLitLengths() []int {
	lens := make([]int, 288)
	for i := 0; i < 144; i++ {
		lens[i] = 8
	}
	for i := 144; i < 256; i++ {
		lens[i] = 9
	}
	for i := 256; i < 280; i++ {
		lens[i] = 7
	}
	for i := 280; i < 288; i++ {
		lens[i] = 8
	}
	return lens
}

func fixedDistLengths() []int {
	lens := make([]int, 30)
	for i := range lens {
		lens[i] = 5
	}
	return lens
}
