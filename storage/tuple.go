package storage

import (
	"fmt"
	"strings"

	"minirel/types"
)

// Tuple is a fixed-width row: a schema, a field vector of matching
// arity and an optional record id pointing at the tuple's slot on
// disk.
type Tuple struct {
	desc   *TupleDesc
	fields []types.Field

	// RID is nil until the tuple is stored somewhere.
	RID *RecordID
}

func NewTuple(desc *TupleDesc, fields []types.Field) *Tuple {
	if len(fields) != desc.NumFields() {
		panic(fmt.Sprintf("tuple arity %d does not match schema %v", len(fields), desc))
	}
	return &Tuple{desc: desc, fields: fields}
}

func (t *Tuple) Desc() *TupleDesc {
	return t.desc
}

func (t *Tuple) Field(i int) types.Field {
	return t.fields[i]
}

func (t *Tuple) SetField(i int, f types.Field) {
	t.fields[i] = f
}

// Serialize writes the tuple into dest, which must be at least
// Desc().Size() bytes.
func (t *Tuple) Serialize(dest []byte) {
	off := 0
	for i, f := range t.fields {
		f.Serialize(dest[off:])
		off += t.desc.FieldType(i).Size()
	}
}

// ParseTuple reads a tuple with the given schema from the head of src.
func ParseTuple(desc *TupleDesc, src []byte) *Tuple {
	fields := make([]types.Field, desc.NumFields())
	off := 0
	for i := range fields {
		ft := desc.FieldType(i)
		fields[i] = types.ParseField(ft, src[off:])
		off += ft.Size()
	}
	return NewTuple(desc, fields)
}

// Equals compares schema and field values; record ids are ignored.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || !t.desc.Equals(other.desc) {
		return false
	}
	for i, f := range t.fields {
		if !f.Compare(types.Equals, other.fields[i]) {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = fmt.Sprint(f)
	}
	return strings.Join(parts, "\t")
}
