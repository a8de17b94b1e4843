package ops

// allocation is the lifecycle variant of an operator, monoid or semiring.
type allocation interface {
	isAllocation()
}

// static marks a built-in object. It is never released.
type static struct{}

// owned marks a caller-created object and carries what it owns.
type owned struct {
	definition []byte
}

// freed marks an object whose Free already ran.
type freed struct{}

func (static) isAllocation() {}
func (*owned) isAllocation() {}
func (freed) isAllocation()  {}
