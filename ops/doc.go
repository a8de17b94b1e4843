// Package ops manages the algebraic objects that parameterize matrix
// operations: binary operators, monoids and semirings.
//
// Every object is either static (a built-in, shared by the whole process and
// never freed) or owned (created by the caller, released with the matching
// Free function). Free is a no-op for nil, static and already-freed objects,
// so double frees and frees of built-ins are harmless.
//
// A semiring references its additive monoid and multiplicative operator but
// does not own them; freeing a semiring never frees either.
package ops
