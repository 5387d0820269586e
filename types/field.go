package types

import (
	"encoding/binary"
	"fmt"
	"strings"

	"minirel/common"
)

// Field is a single scalar value. Fields of the same type are totally
// ordered; comparing fields of different types is undefined and always
// yields false.
type Field interface {
	Type() Type

	// Serialize writes the field's on-disk form into dest, which must
	// be at least Type().Size() bytes long.
	Serialize(dest []byte)

	// Compare evaluates `this op other`.
	Compare(op Op, other Field) bool
}

type IntField struct {
	Value int32
}

func NewIntField(v int32) IntField {
	return IntField{Value: v}
}

func (f IntField) Type() Type {
	return IntType
}

func (f IntField) Serialize(dest []byte) {
	binary.BigEndian.PutUint32(dest, uint32(f.Value))
}

func (f IntField) Compare(op Op, other Field) bool {
	o, ok := other.(IntField)
	if !ok {
		return false
	}

	switch op {
	case Equals:
		return f.Value == o.Value
	case NotEquals:
		return f.Value != o.Value
	case GreaterThan:
		return f.Value > o.Value
	case GreaterThanOrEq:
		return f.Value >= o.Value
	case LessThan:
		return f.Value < o.Value
	case LessThanOrEq:
		return f.Value <= o.Value
	default:
		panic(fmt.Sprintf("unknown op: %v", op))
	}
}

func (f IntField) String() string {
	return fmt.Sprint(f.Value)
}

// ParseIntField reads an IntField from the head of src.
func ParseIntField(src []byte) IntField {
	return IntField{Value: int32(binary.BigEndian.Uint32(src))}
}

// StringField is a fixed-width string. Values longer than the fixed
// length are truncated at construction; the serialized form is a 4 byte
// length prefix followed by the zero-padded bytes.
type StringField struct {
	Value string
}

func NewStringField(v string) StringField {
	if len(v) > common.StringFixedLength {
		v = v[:common.StringFixedLength]
	}
	return StringField{Value: v}
}

func (f StringField) Type() Type {
	return StringType
}

func (f StringField) Serialize(dest []byte) {
	binary.BigEndian.PutUint32(dest, uint32(len(f.Value)))
	padded := dest[4 : 4+common.StringFixedLength]
	n := copy(padded, f.Value)
	for i := n; i < len(padded); i++ {
		padded[i] = 0
	}
}

func (f StringField) Compare(op Op, other Field) bool {
	o, ok := other.(StringField)
	if !ok {
		return false
	}

	cmp := strings.Compare(f.Value, o.Value)
	switch op {
	case Equals:
		return cmp == 0
	case NotEquals:
		return cmp != 0
	case GreaterThan:
		return cmp > 0
	case GreaterThanOrEq:
		return cmp >= 0
	case LessThan:
		return cmp < 0
	case LessThanOrEq:
		return cmp <= 0
	default:
		panic(fmt.Sprintf("unknown op: %v", op))
	}
}

func (f StringField) String() string {
	return f.Value
}

// ParseStringField reads a StringField from the head of src.
func ParseStringField(src []byte) StringField {
	n := int(binary.BigEndian.Uint32(src))
	if n > common.StringFixedLength {
		n = common.StringFixedLength
	}
	return StringField{Value: string(src[4 : 4+n])}
}

// ParseField reads a field of the given type from the head of src.
func ParseField(t Type, src []byte) Field {
	switch t {
	case IntType:
		return ParseIntField(src)
	case StringType:
		return ParseStringField(src)
	default:
		panic("unknown type")
	}
}
