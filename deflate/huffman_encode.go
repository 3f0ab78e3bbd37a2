package deflate

import "sort"

// huffNode is an internal node of the unbounded Huffman tree built while
// assigning encoder code lengths. Leaves carry sym >= 0; internal nodes
// carry sym == -1.
type huffNode struct {
	freq        int
	sym         int
	left, right *huffNode
	depth       int
}

// assignDepths walks the tree recording each leaf's depth (== unbounded
// code length) into lengths.
func assignDepths(n *huffNode, depth int, lengths []int) {
	if n.sym >= 0 {
		lengths[n.sym] = depth
		if depth == 0 {
			lengths[n.sym] = 1 // single-symbol alphabet still needs 1 bit
		}
		return
	}
	assignDepths(n.left, depth+1, lengths)
	assignDepths(n.right, depth+1, lengths)
}

// buildHuffmanLengths computes a valid (Kraft sum <= 1), length-limited
// set of code lengths for the given per-symbol frequencies, grounded on
// the classic two-queue Huffman construction plus a greedy Kraft-based
// length-limiting pass for the rare alphabets whose natural tree depth
// would exceed maxLen (RFC 1951 section 3.2.2 caps all codes at 15
// bits). Symbols with freq == 0 are left at length 0 (unused).
func buildHuffmanLengths(freqs []int, maxLen int) []int {
	lengths := make([]int, len(freqs))

	var leaves []*huffNode
	for sym, f := range freqs {
		if f > 0 {
			leaves = append(leaves, &huffNode{freq: f, sym: sym})
		}
	}
	switch len(leaves) {
	case 0:
		return lengths
	case 1:
		lengths[leaves[0].sym] = 1
		return lengths
	}

	sort.Slice(leaves, func(i, j int) bool { return leaves[i].freq < leaves[j].freq })

	// Two-queue merge (Huffman's algorithm in O(n log n) once sorted):
	// queue1 holds leaves in ascending frequency order, queue2 holds
	// freshly merged internal nodes, also ascending; the next smallest
	// node is always at the front of one of the two queues.
	queue1 := leaves
	var queue2 []*huffNode
	pop := func() *huffNode {
		if len(queue2) == 0 || (len(queue1) > 0 && queue1[0].freq <= queue2[0].freq) {
			n := queue1[0]
			queue1 = queue1[1:]
			return n
		}
		n := queue2[0]
		queue2 = queue2[1:]
		return n
	}
	for len(queue1)+len(queue2) > 1 {
		a := pop()
		b := pop()
		queue2 = append(queue2, &huffNode{freq: a.freq + b.freq, sym: -1, left: a, right: b})
	}
	root := queue2[0]
	assignDepths(root, 0, lengths)

	limitLengths(lengths, freqs, maxLen)
	return lengths
}

// limitLengths clips any code length exceeding maxLen and repeatedly
// lengthens the lowest-frequency under-maxLen code until the Kraft sum
// sum(2^-len) no longer exceeds 1, which by the Kraft-McMillan inequality
// is exactly the condition for the lengths to admit a valid prefix code.
// This trades a little compression efficiency for simplicity relative to
// a full package-merge length-limited construction, and never produces
// an invalid (over-subscribed) code.
func limitLengths(lengths, freqs []int, maxLen int) {
	overflowed := false
	for sym, l := range lengths {
		if l > maxLen {
			lengths[sym] = maxLen
			overflowed = true
		}
	}
	if !overflowed {
		return
	}
	for {
		var kraft uint64
		for _, l := range lengths {
			if l > 0 {
				kraft += uint64(1) << uint(maxLen-l)
			}
		}
		if kraft <= uint64(1)<<uint(maxLen) {
			return
		}
		// Find the shortest-frequency symbol whose code is shorter than
		// maxLen and lengthen it by one bit; this always exists while
		// kraft is still over budget, because at least one length must
		// be < maxLen for the sum to be reducible.
		best := -1
		for sym, l := range lengths {
			if l > 0 && l < maxLen {
				if best == -1 || freqs[sym] < freqs[best] {
					best = sym
				}
			}
		}
		if best == -1 {
			return // every used symbol already at maxLen; nothing more to do
		}
		lengths[best]++
	}
}
