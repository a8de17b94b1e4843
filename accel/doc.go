// Package accel holds the process-wide accelerator switch.
//
// The matrix core implements no accelerated kernels itself. It checks Enabled
// before bulk work (sorting pending tuples, aligned allocation) and, when a
// Backend is registered, dispatches into it; otherwise it uses the portable
// path.
//
// # Configuration
//
// The switch starts off unless GBCORE_ACCEL is set to a truthy value
// ("1", "true", "on"). GBCORE_ISA pins the reported instruction set
// ("generic", "neon", "sve2", "avx2", "avx512") if the CPU supports it.
//
// # Backends
//
// A pure Go radix sort backend is registered at init. Hardware backends
// replace it with Register.
package accel
