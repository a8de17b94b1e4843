//go:build gbcore_debug

package status

// Debug enables expensive invariant checks and turns corruption into panics.
const Debug = true
