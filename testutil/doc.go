// Package testutil generates sparse-matrix workloads for tests and
// benchmarks.
//
//	rng := testutil.NewRNG(42)
//	ops := rng.Churn(10_000, 1<<20, 1<<20, 8)
//	want := make(testutil.Model)
//	want.Apply(ops)
//
// Generated values are small integers so dedup sums are exact in float64.
package testutil
