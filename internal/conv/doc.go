// Package conv provides overflow-checked integer arithmetic and conversions.
//
// Every allocation size or capacity derived from matrix dimensions must be
// computed through MulUint64/MulInt. The guard is deliberately conservative:
// a product is refused once ceil(log2(a)) + ceil(log2(b)) exceeds 60, without
// ever computing a possibly wrapped result.
//
// For conversions that are provably safe by domain constraints (loop indices,
// bounded counters), use direct type casts instead.
package conv
