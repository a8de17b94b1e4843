package accel

import "math/bits"

type radixBackend struct{}

func (radixBackend) Name() string { return "radix" }

// SortPending runs an LSD radix sort over the row keys, then the column
// keys. Each pass is stable, so ties keep insertion order.
func (radixBackend) SortPending(rows, cols []uint64, perm []int) bool {
	n := len(rows)
	if len(cols) != n || len(perm) != n {
		return false
	}
	for k := range perm {
		perm[k] = k
	}
	if n < 2 {
		return true
	}

	tmp := make([]int, n)
	radixPass(rows, perm, tmp)
	radixPass(cols, perm, tmp)
	return true
}

// radixPass stably reorders perm by keys[perm[k]], 8 bits per digit,
// skipping digits above the largest key.
func radixPass(keys []uint64, perm, tmp []int) {
	var maxKey uint64
	for _, k := range keys {
		maxKey |= k
	}
	digits := (bits.Len64(maxKey) + 7) / 8

	src, dst := perm, tmp
	for d := 0; d < digits; d++ {
		shift := uint(d * 8)
		var count [257]int
		for _, p := range src {
			count[((keys[p]>>shift)&0xff)+1]++
		}
		for b := 1; b < len(count); b++ {
			count[b] += count[b-1]
		}
		for _, p := range src {
			b := (keys[p] >> shift) & 0xff
			dst[count[b]] = p
			count[b]++
		}
		src, dst = dst, src
	}
	if digits%2 == 1 {
		copy(perm, src)
	}
}
