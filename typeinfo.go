package evdump

// Names of the operations the printer probes for. A type exposes a container
// shape when it answers either {OpSize, OpAt} or {OpBegin, OpEnd} with an
// iterator answering {OpNotEqual, OpNext, OpDeref}.
const (
	OpSize     = "Size"
	OpAt       = "At"
	OpBegin    = "Begin"
	OpEnd      = "End"
	OpNotEqual = "NotEqual"
	OpNext     = "Next"
	OpDeref    = "Deref"
)

// Type answers introspective queries about the type of a Value. All queries
// are pure.
type Type interface {
	// Name returns the fully scoped name of the type. It may be empty for
	// anonymous or unregistered types.
	Name() string

	IsPointer() bool
	IsTypedef() bool

	// Target returns the pointee type of a pointer or the aliased type of a
	// typedef, and nil for anything else.
	Target() Type

	// Bases returns the direct base types in declaration order.
	Bases() []Type

	// DataMembers returns the declared, non-transient data members in
	// declaration order. Members of bases are not included.
	DataMembers() []Member

	// Operation looks up a named capability. Absence is a normal result.
	Operation(name string) (Operation, bool)
}

// Value is an introspectable handle to a value of a type discovered at
// runtime. The printer only reads through it and never retains it past a
// single print call.
type Value interface {
	Type() Type

	// IsNil reports whether the value is a null pointer.
	IsNil() bool

	Interface() any

	// Elem returns the pointee of a non-nil pointer, resolved to its dynamic
	// type.
	Elem() (Value, error)

	// As views the same memory as t, which must be one of the value's bases
	// or its typedef target.
	As(t Type) (Value, error)
}

type Member interface {
	Name() string
	Type() Type
	Get(obj Value) (Value, error)
}

type Operation interface {
	Name() string
	Invoke(recv Value, args ...Value) (Value, error)
}
