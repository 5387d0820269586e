package types

import "minirel/common"

// Type enumerates the field domains supported by the engine.
type Type uint8

const (
	IntType Type = iota + 1
	StringType
)

// Size returns the number of bytes a serialized field of this type
// occupies inside a slot.
func (t Type) Size() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		// 4 byte length prefix followed by the padded bytes.
		return common.StringFixedLength + 4
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "INT"
	case StringType:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}
