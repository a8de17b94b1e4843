// Package types describes the element types a matrix can hold.
//
// Built-in types (Bool, the signed and unsigned integers, FP32, FP64) are
// package-level singletons and are freely castable to one another. User-defined
// types are created through a Registry; they share the generic code UDT and are
// only compatible with themselves.
//
// A nil *Type acts as a wildcard and is compatible with every type.
package types
