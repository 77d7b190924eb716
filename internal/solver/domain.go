package solver

import "math/bits"

// layout maps each group onto a run of words in a node's bitset. Bit v of a
// group is start slot First+v.
type layout struct {
	off   []int
	words []int
	size  []int
	total int
}

func newLayout(sizes []int) layout {
	l := layout{
		off:   make([]int, len(sizes)),
		words: make([]int, len(sizes)),
		size:  append([]int(nil), sizes...),
	}
	for g, n := range sizes {
		l.off[g] = l.total
		l.words[g] = (n + 63) / 64
		l.total += l.words[g]
	}
	return l
}

// node is the search state: remaining start slots per group plus the bounds
// of the makespan variable.
type node struct {
	lay  *layout
	bits []uint64
	msLo int
	msHi int
}

func newRoot(lay *layout, msHi int) *node {
	n := &node{lay: lay, bits: make([]uint64, lay.total), msHi: msHi}
	for g, size := range lay.size {
		w := n.group(g)
		for v := 0; v < size; v++ {
			w[v/64] |= 1 << uint(v%64)
		}
	}
	return n
}

func (n *node) clone() *node {
	c := &node{lay: n.lay, bits: make([]uint64, len(n.bits)), msLo: n.msLo, msHi: n.msHi}
	copy(c.bits, n.bits)
	return c
}

func (n *node) group(g int) []uint64 {
	off := n.lay.off[g]
	return n.bits[off : off+n.lay.words[g]]
}

func (n *node) count(g int) int {
	c := 0
	for _, w := range n.group(g) {
		c += bits.OnesCount64(w)
	}
	return c
}

// min returns the smallest value left in g, or -1 if g is empty.
func (n *node) min(g int) int {
	for i, w := range n.group(g) {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}

func (n *node) remove(g, v int) {
	n.group(g)[v/64] &^= 1 << uint(v%64)
}

// fix reduces g to the single value v.
func (n *node) fix(g, v int) {
	w := n.group(g)
	for i := range w {
		w[i] = 0
	}
	w[v/64] = 1 << uint(v%64)
}

// each calls fn for every value left in g, in increasing order.
func (n *node) each(g int, fn func(v int)) {
	for i, w := range n.group(g) {
		for w != 0 {
			fn(i*64 + bits.TrailingZeros64(w))
			w &= w - 1
		}
	}
}

// values returns the values left in g in increasing order.
func (n *node) values(g int) []int {
	out := make([]int, 0, n.count(g))
	n.each(g, func(v int) { out = append(out, v) })
	return out
}

// mask returns the bits of word i that fall in [lo, hi].
func mask(i, lo, hi int) uint64 {
	base := i * 64
	a, b := max(lo-base, 0), min(hi-base, 63)
	if a > b {
		return 0
	}
	m := ^uint64(0) << uint(a)
	if b < 63 {
		m &= (uint64(1) << uint(b+1)) - 1
	}
	return m
}

// minIn returns the smallest value of g in [lo, hi], or -1.
func (n *node) minIn(g, lo, hi int) int {
	lo, hi = max(lo, 0), min(hi, n.lay.size[g]-1)
	if lo > hi {
		return -1
	}
	w := n.group(g)
	for i := lo / 64; i <= hi/64; i++ {
		if x := w[i] & mask(i, lo, hi); x != 0 {
			return i*64 + bits.TrailingZeros64(x)
		}
	}
	return -1
}

// maxIn returns the largest value of g in [lo, hi], or -1.
func (n *node) maxIn(g, lo, hi int) int {
	lo, hi = max(lo, 0), min(hi, n.lay.size[g]-1)
	if lo > hi {
		return -1
	}
	w := n.group(g)
	for i := hi / 64; i >= lo/64; i-- {
		if x := w[i] & mask(i, lo, hi); x != 0 {
			return i*64 + 63 - bits.LeadingZeros64(x)
		}
	}
	return -1
}

// outside reports whether g holds a value below lo or above hi.
func (n *node) outside(g, lo, hi int) bool {
	return n.minIn(g, 0, lo-1) >= 0 || n.minIn(g, hi+1, n.lay.size[g]-1) >= 0
}

// removeRange drops every value of g in [lo, hi] and reports whether any
// was present.
func (n *node) removeRange(g, lo, hi int) bool {
	lo, hi = max(lo, 0), min(hi, n.lay.size[g]-1)
	if lo > hi {
		return false
	}
	w := n.group(g)
	changed := false
	for i := lo / 64; i <= hi/64; i++ {
		if m := mask(i, lo, hi); w[i]&m != 0 {
			w[i] &^= m
			changed = true
		}
	}
	return changed
}
