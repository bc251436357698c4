package shardwallet

import (
	"math/bits"
	"sort"
)

// mulDiv returns floor(a*b/d) and the remainder, using a 128-bit
// intermediate. The quotient must fit in 64 bits (b <= d guarantees it).
func mulDiv(a, b, d uint64) (uint64, uint64) {
	hi, lo := bits.Mul64(a, b)
	return bits.Div64(hi, lo, d)
}

// apportion splits amount across weights in proportion, never giving share i
// more than caps[i]. Units left by rounding go to the largest fractional
// remainders first, then to lower indexes. The result sums to amount unless
// the caps make that impossible.
func apportion(amount uint64, weights, caps []uint64) []uint64 {
	out := make([]uint64, len(weights))
	if amount == 0 || len(weights) == 0 {
		return out
	}
	var total uint64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return out
	}

	rems := make([]uint64, len(weights))
	var given uint64
	for i, w := range weights {
		q, r := mulDiv(amount, w, total)
		if q > caps[i] {
			q = caps[i]
		}
		out[i] = q
		rems[i] = r
		given += q
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rems[order[a]] > rems[order[b]] })

	left := amount - given
	for _, i := range order {
		if left == 0 {
			break
		}
		if out[i] < caps[i] {
			out[i]++
			left--
		}
	}
	// Only reachable when a cap clipped a proportional share.
	for _, i := range order {
		if left == 0 {
			break
		}
		room := caps[i] - out[i]
		if room > left {
			room = left
		}
		out[i] += room
		left -= room
	}
	return out
}
