package candid

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

var magic = []byte("DIDL")

const (
	opNull      int64 = -1
	opBool      int64 = -2
	opNat       int64 = -3
	opInt       int64 = -4
	opNat8      int64 = -5
	opNat16     int64 = -6
	opNat32     int64 = -7
	opNat64     int64 = -8
	opInt8      int64 = -9
	opInt16     int64 = -10
	opInt32     int64 = -11
	opInt64     int64 = -12
	opFloat32   int64 = -13
	opFloat64   int64 = -14
	opText      int64 = -15
	opReserved  int64 = -16
	opEmpty     int64 = -17
	opOpt       int64 = -18
	opVec       int64 = -19
	opRecord    int64 = -20
	opVariant   int64 = -21
	opPrincipal int64 = -24
)

// EncodeArgs serializes values according to types into a complete message.
func EncodeArgs(types []*Type, values []any) ([]byte, error) {
	if len(types) != len(values) {
		return nil, fmt.Errorf("candid: %d values for %d types", len(values), len(types))
	}

	tbl := &typeTable{index: map[*Type]int64{}}
	refs := make([]int64, len(types))
	for i, t := range types {
		refs[i] = tbl.ref(t)
	}

	var body bytes.Buffer
	for i, t := range types {
		if err := encodeValue(&body, t, values[i]); err != nil {
			return nil, fmt.Errorf("candid: argument %d: %w", i, err)
		}
	}

	var out bytes.Buffer
	out.Write(magic)
	writeUint(&out, uint64(len(tbl.entries)))
	for _, e := range tbl.entries {
		out.Write(e)
	}
	writeUint(&out, uint64(len(refs)))
	for _, r := range refs {
		writeSint(&out, r)
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

type typeTable struct {
	index   map[*Type]int64
	entries [][]byte
}

func (tbl *typeTable) ref(t *Type) int64 {
	switch t.Kind {
	case KindNull:
		return opNull
	case KindBool:
		return opBool
	case KindNat:
		return opNat
	case KindInt:
		return opInt
	case KindText:
		return opText
	case KindPrincipal:
		return opPrincipal
	case KindReserved:
		return opReserved
	}
	if idx, ok := tbl.index[t]; ok {
		return idx
	}

	var entry bytes.Buffer
	switch t.Kind {
	case KindOpt, KindVec:
		child := tbl.ref(t.Elem)
		if t.Kind == KindOpt {
			writeSint(&entry, opOpt)
		} else {
			writeSint(&entry, opVec)
		}
		writeSint(&entry, child)
	case KindRecord, KindVariant:
		children := make([]int64, len(t.Fields))
		for i, f := range t.Fields {
			children[i] = tbl.ref(f.Type)
		}
		if t.Kind == KindRecord {
			writeSint(&entry, opRecord)
		} else {
			writeSint(&entry, opVariant)
		}
		writeUint(&entry, uint64(len(t.Fields)))
		for i, f := range t.Fields {
			writeUint(&entry, uint64(f.ID))
			writeSint(&entry, children[i])
		}
	}

	idx := int64(len(tbl.entries))
	tbl.index[t] = idx
	tbl.entries = append(tbl.entries, entry.Bytes())
	return idx
}

func encodeValue(buf *bytes.Buffer, t *Type, v any) error {
	switch t.Kind {
	case KindNull, KindReserved:
		return nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindNat:
		n, err := toBig(v)
		if err != nil {
			return err
		}
		if n.Sign() < 0 {
			return fmt.Errorf("nat cannot be negative: %s", n)
		}
		writeNat(buf, n)
	case KindInt:
		n, err := toBig(v)
		if err != nil {
			return err
		}
		writeInt(buf, n)
	case KindText:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		if !utf8.ValidString(s) {
			return fmt.Errorf("text is not valid utf-8")
		}
		writeUint(buf, uint64(len(s)))
		buf.WriteString(s)
	case KindPrincipal:
		p, ok := v.(principal.Principal)
		if !ok {
			return fmt.Errorf("expected principal, got %T", v)
		}
		raw := p.Bytes()
		buf.WriteByte(1)
		writeUint(buf, uint64(len(raw)))
		buf.Write(raw)
	case KindOpt:
		var o Option
		switch x := v.(type) {
		case nil:
		case Option:
			o = x
		default:
			return fmt.Errorf("expected Option, got %T", v)
		}
		if !o.Valid {
			buf.WriteByte(0)
			return nil
		}
		buf.WriteByte(1)
		return encodeValue(buf, t.Elem, o.Value)
	case KindVec:
		items, ok := v.([]any)
		if !ok && v != nil {
			return fmt.Errorf("expected []any, got %T", v)
		}
		writeUint(buf, uint64(len(items)))
		for i, item := range items {
			if err := encodeValue(buf, t.Elem, item); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	case KindRecord:
		return encodeRecord(buf, t, v)
	case KindVariant:
		vv, ok := v.(VariantValue)
		if !ok {
			return fmt.Errorf("expected VariantValue, got %T", v)
		}
		for i, f := range t.Fields {
			if f.Name == vv.Tag {
				writeUint(buf, uint64(i))
				return encodeValue(buf, f.Type, vv.Value)
			}
		}
		return fmt.Errorf("unknown variant tag %q", vv.Tag)
	default:
		return fmt.Errorf("unsupported kind %s", t.Kind)
	}
	return nil
}

func encodeRecord(buf *bytes.Buffer, t *Type, v any) error {
	if t.Tuple {
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected []any for tuple, got %T", v)
		}
		if len(items) != len(t.Fields) {
			return fmt.Errorf("tuple needs %d elements, got %d", len(t.Fields), len(items))
		}
		for i, f := range t.Fields {
			if err := encodeValue(buf, f.Type, items[i]); err != nil {
				return fmt.Errorf("tuple element %d: %w", i, err)
			}
		}
		return nil
	}

	rec, ok := v.(RecordValue)
	if !ok {
		return fmt.Errorf("expected RecordValue, got %T", v)
	}
	for _, f := range t.Fields {
		val, present := rec[f.Name]
		if !present && f.Type.Kind != KindOpt && f.Type.Kind != KindNull {
			return fmt.Errorf("missing field %q", f.Name)
		}
		if err := encodeValue(buf, f.Type, val); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}
