package types

// Type identifies the storage type of a field.
type Type int

const (
	IntType Type = iota
	StringType
	BoolType
)

// Size returns the fixed serialized size in bytes of a field of this type.
// Every type used by the execution layer serializes to a fixed width so that
// page capacity can be computed from the schema alone.
func (t Type) Size() uint32 {
	switch t {
	case IntType:
		return 8
	case StringType:
		return 4 + StringMaxSize
	case BoolType:
		return 1
	default:
		return 0
	}
}

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT_TYPE"
	case StringType:
		return "STRING_TYPE"
	case BoolType:
		return "BOOL_TYPE"
	default:
		return "UNKNOWN_TYPE"
	}
}
