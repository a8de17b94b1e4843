package types

import (
	"fmt"
	"sync"

	"github.com/hupe1980/gbcore/internal/status"
)

// Code identifies a built-in type, or UDT for every user-defined type.
type Code uint8

const (
	CodeBool Code = iota + 1
	CodeInt8
	CodeUint8
	CodeInt16
	CodeUint16
	CodeInt32
	CodeUint32
	CodeInt64
	CodeUint64
	CodeFP32
	CodeFP64
	// UDT is shared by all user-defined types.
	UDT
)

// String returns the type name for a code.
func (c Code) String() string {
	switch c {
	case CodeBool:
		return "bool"
	case CodeInt8:
		return "int8"
	case CodeUint8:
		return "uint8"
	case CodeInt16:
		return "int16"
	case CodeUint16:
		return "uint16"
	case CodeInt32:
		return "int32"
	case CodeUint32:
		return "uint32"
	case CodeInt64:
		return "int64"
	case CodeUint64:
		return "uint64"
	case CodeFP32:
		return "fp32"
	case CodeFP64:
		return "fp64"
	case UDT:
		return "udt"
	default:
		return "unknown"
	}
}

// Type is a type descriptor.
type Type struct {
	Code Code
	Size int
	Name string
}

// IsUserDefined reports whether t is a user-defined type.
func (t *Type) IsUserDefined() bool {
	return t != nil && t.Code == UDT
}

func (t *Type) String() string {
	if t == nil {
		return "<any>"
	}
	return t.Name
}

var (
	Bool   = &Type{Code: CodeBool, Size: 1, Name: "bool"}
	Int8   = &Type{Code: CodeInt8, Size: 1, Name: "int8"}
	Uint8  = &Type{Code: CodeUint8, Size: 1, Name: "uint8"}
	Int16  = &Type{Code: CodeInt16, Size: 2, Name: "int16"}
	Uint16 = &Type{Code: CodeUint16, Size: 2, Name: "uint16"}
	Int32  = &Type{Code: CodeInt32, Size: 4, Name: "int32"}
	Uint32 = &Type{Code: CodeUint32, Size: 4, Name: "uint32"}
	Int64  = &Type{Code: CodeInt64, Size: 8, Name: "int64"}
	Uint64 = &Type{Code: CodeUint64, Size: 8, Name: "uint64"}
	FP32   = &Type{Code: CodeFP32, Size: 4, Name: "fp32"}
	FP64   = &Type{Code: CodeFP64, Size: 8, Name: "fp64"}
)

// Builtins lists every built-in type in code order.
var Builtins = []*Type{Bool, Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64, FP32, FP64}

// Builtin returns the built-in type for a code, or nil.
func Builtin(c Code) *Type {
	if c < CodeBool || c > CodeFP64 {
		return nil
	}
	return Builtins[c-CodeBool]
}

// Compatible reports whether values of a and b may be typecast into one
// another. A nil type is a wildcard. Two user-defined types are compatible
// only if they are the identical registered type.
func Compatible(a, b *Type) bool {
	if a == nil || b == nil {
		return true
	}
	if a.IsUserDefined() || b.IsUserDefined() {
		return a == b
	}
	return true
}

// CodeCompatible is Compatible on bare codes. Since every user-defined type
// shares UDT, two different user types are reported compatible here; callers
// that can see more than one user type must use Compatible instead.
func CodeCompatible(a, b Code) bool {
	if a == UDT || b == UDT {
		return a == b
	}
	return true
}

// Registry holds the built-in types and every registered user type.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Type
}

// NewRegistry creates a registry pre-populated with the built-in types.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Type, len(Builtins))}
	for _, t := range Builtins {
		r.byName[t.Name] = t
	}
	return r
}

// Register creates a user-defined type of the given byte size.
func (r *Registry) Register(name string, size int) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty type name", status.ErrInvalidArgument)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: type %q has size %d", status.ErrInvalidArgument, name, size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return nil, fmt.Errorf("%w: type %q already registered", status.ErrInvalidArgument, name)
	}
	t := &Type{Code: UDT, Size: size, Name: name}
	r.byName[name] = t
	return t, nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}
