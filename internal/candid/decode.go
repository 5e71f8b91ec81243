package candid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// ErrDecode marks a reply that does not match the declared shape.
var ErrDecode = errors.New("candid: decode failed")

type wireField struct {
	id  uint32
	ref int64
}

type wireType struct {
	op     int64
	elem   int64
	fields []wireField
}

// maxDepth bounds value nesting; maxEmptyVec bounds vectors whose elements
// occupy no bytes on the wire.
const (
	maxDepth    = 128
	maxEmptyVec = 1 << 16
)

type decoder struct {
	r     *bytes.Reader
	table []wireType
	depth int
}

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// DecodeArgs parses a message and conforms each value to the expected types.
// Wire values beyond len(types) are skipped; missing trailing values are
// accepted only for opt, null and reserved types.
func DecodeArgs(types []*Type, data []byte) ([]any, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, decodeErr("missing DIDL header")
	}
	d := &decoder{r: bytes.NewReader(data[len(magic):])}
	if err := d.readTable(); err != nil {
		return nil, err
	}

	count, err := readUint(d.r)
	if err != nil {
		return nil, decodeErr("argument count: %v", err)
	}
	if count > uint64(d.r.Len()) {
		return nil, decodeErr("argument count %d exceeds message", count)
	}
	refs := make([]int64, count)
	for i := range refs {
		if refs[i], err = readSint(d.r); err != nil {
			return nil, decodeErr("argument type %d: %v", i, err)
		}
		if err := d.checkRef(refs[i]); err != nil {
			return nil, err
		}
	}

	out := make([]any, len(types))
	for i, ref := range refs {
		var expected *Type
		if i < len(types) {
			expected = types[i]
		}
		v, err := d.value(ref, expected)
		if err != nil {
			if !errors.Is(err, ErrDecode) {
				err = fmt.Errorf("%w: %v", ErrDecode, err)
			}
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		if i < len(types) {
			out[i] = v
		}
	}
	for i := len(refs); i < len(types); i++ {
		v, ok := absentValue(types[i])
		if !ok {
			return nil, decodeErr("missing argument %d of type %s", i, types[i])
		}
		out[i] = v
	}
	if d.r.Len() != 0 {
		return nil, decodeErr("%d trailing bytes", d.r.Len())
	}
	return out, nil
}

func absentValue(t *Type) (any, bool) {
	switch t.Kind {
	case KindOpt:
		return None(), true
	case KindNull, KindReserved:
		return nil, true
	}
	return nil, false
}

func (d *decoder) readTable() error {
	n, err := readUint(d.r)
	if err != nil {
		return decodeErr("type table length: %v", err)
	}
	if n > uint64(d.r.Len()) {
		return decodeErr("type table length %d exceeds message", n)
	}
	d.table = make([]wireType, n)
	for i := range d.table {
		op, err := readSint(d.r)
		if err != nil {
			return decodeErr("type %d: %v", i, err)
		}
		wt := wireType{op: op}
		switch op {
		case opOpt, opVec:
			if wt.elem, err = readSint(d.r); err != nil {
				return decodeErr("type %d element: %v", i, err)
			}
		case opRecord, opVariant:
			count, err := readUint(d.r)
			if err != nil {
				return decodeErr("type %d field count: %v", i, err)
			}
			if count > uint64(d.r.Len()) {
				return decodeErr("type %d field count %d exceeds message", i, count)
			}
			wt.fields = make([]wireField, count)
			for j := range wt.fields {
				id, err := readUint(d.r)
				if err != nil || id > 0xffffffff {
					return decodeErr("type %d field %d label", i, j)
				}
				ref, err := readSint(d.r)
				if err != nil {
					return decodeErr("type %d field %d type: %v", i, j, err)
				}
				wt.fields[j] = wireField{id: uint32(id), ref: ref}
			}
		default:
			return decodeErr("unsupported type constructor %d", op)
		}
		d.table[i] = wt
	}
	for _, wt := range d.table {
		if wt.op == opOpt || wt.op == opVec {
			if err := d.checkRef(wt.elem); err != nil {
				return err
			}
		}
		for _, f := range wt.fields {
			if err := d.checkRef(f.ref); err != nil {
				return err
			}
		}
	}
	return d.checkProductive()
}

// checkProductive rejects records that contain themselves without an opt,
// vec or variant in between: such a value would be read forever without
// consuming input.
func (d *decoder) checkProductive() error {
	const (
		unvisited = iota
		active
		finished
	)
	state := make([]uint8, len(d.table))
	var visit func(i int64) error
	visit = func(i int64) error {
		switch state[i] {
		case active:
			return decodeErr("type %d is a record that contains itself", i)
		case finished:
			return nil
		}
		state[i] = active
		if d.table[i].op == opRecord {
			for _, f := range d.table[i].fields {
				if f.ref < 0 {
					continue
				}
				if err := visit(f.ref); err != nil {
					return err
				}
			}
		}
		state[i] = finished
		return nil
	}
	for i := range d.table {
		if err := visit(int64(i)); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) checkRef(ref int64) error {
	if ref >= 0 {
		if ref >= int64(len(d.table)) {
			return decodeErr("type reference %d out of range", ref)
		}
		return nil
	}
	switch ref {
	case opNull, opBool, opNat, opInt, opNat8, opNat16, opNat32, opNat64,
		opInt8, opInt16, opInt32, opInt64, opFloat32, opFloat64,
		opText, opReserved, opPrincipal:
		return nil
	}
	return decodeErr("unsupported primitive type %d", ref)
}

func (d *decoder) op(ref int64) int64 {
	if ref >= 0 {
		return d.table[ref].op
	}
	return ref
}

// value reads one value of wire type ref, shaping it after expected. A nil
// expected type decodes and discards.
func (d *decoder) value(ref int64, expected *Type) (any, error) {
	if d.depth >= maxDepth {
		return nil, decodeErr("values nested deeper than %d", maxDepth)
	}
	d.depth++
	defer func() { d.depth-- }()

	op := d.op(ref)

	if expected != nil {
		switch expected.Kind {
		case KindReserved:
			_, err := d.value(ref, nil)
			return nil, err
		case KindOpt:
			return d.option(ref, op, expected)
		}
		if err := compatible(op, expected); err != nil {
			return nil, err
		}
	}

	switch op {
	case opNull, opReserved:
		return nil, nil
	case opBool:
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		if b > 1 {
			return nil, decodeErr("invalid bool byte %d", b)
		}
		return b == 1, nil
	case opNat:
		return readNat(d.r)
	case opInt:
		return readInt(d.r)
	case opNat8, opInt8:
		return nil, d.skip(1)
	case opNat16, opInt16:
		return nil, d.skip(2)
	case opNat32, opInt32, opFloat32:
		return nil, d.skip(4)
	case opNat64, opInt64, opFloat64:
		return nil, d.skip(8)
	case opText:
		raw, err := d.blob()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(raw) {
			return nil, decodeErr("text is not valid utf-8")
		}
		return string(raw), nil
	case opPrincipal:
		flag, err := d.r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		if flag != 1 {
			return nil, decodeErr("opaque principal reference")
		}
		raw, err := d.blob()
		if err != nil {
			return nil, err
		}
		p, err := principal.FromBytes(raw)
		if err != nil {
			return nil, decodeErr("%v", err)
		}
		return p, nil
	case opOpt:
		// Only reached when discarding.
		flag, err := d.r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		if flag == 1 {
			_, err = d.value(d.table[ref].elem, nil)
		}
		return nil, err
	case opVec:
		return d.vec(ref, expected)
	case opRecord:
		return d.record(ref, expected)
	case opVariant:
		return d.variant(ref, expected)
	}
	return nil, decodeErr("unsupported type %d", op)
}

func compatible(op int64, expected *Type) error {
	ok := false
	switch expected.Kind {
	case KindNull:
		ok = op == opNull
	case KindBool:
		ok = op == opBool
	case KindNat:
		ok = op == opNat
	case KindInt:
		ok = op == opInt || op == opNat
	case KindText:
		ok = op == opText
	case KindPrincipal:
		ok = op == opPrincipal
	case KindVec:
		ok = op == opVec
	case KindRecord:
		ok = op == opRecord
	case KindVariant:
		ok = op == opVariant
	}
	if !ok {
		return decodeErr("wire type %d does not match %s", op, expected)
	}
	return nil
}

func (d *decoder) option(ref, op int64, expected *Type) (any, error) {
	switch op {
	case opNull, opReserved:
		return None(), nil
	case opOpt:
		flag, err := d.r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		switch flag {
		case 0:
			return None(), nil
		case 1:
			v, err := d.value(d.table[ref].elem, expected.Elem)
			if err != nil {
				return nil, err
			}
			return Some(v), nil
		default:
			return nil, decodeErr("invalid opt flag %d", flag)
		}
	default:
		v, err := d.value(ref, expected.Elem)
		if err != nil {
			return nil, err
		}
		return Some(v), nil
	}
}

func (d *decoder) vec(ref int64, expected *Type) (any, error) {
	n, err := readUint(d.r)
	if err != nil {
		return nil, decodeErr("vec length: %v", err)
	}
	elemRef := d.table[ref].elem
	var elemType *Type
	if expected != nil {
		elemType = expected.Elem
	}
	switch d.op(elemRef) {
	case opNull, opReserved:
		if n > maxEmptyVec {
			return nil, decodeErr("vec of %d empty elements", n)
		}
	default:
		if n > uint64(d.r.Len()) {
			return nil, decodeErr("vec length %d exceeds message", n)
		}
	}
	items := make([]any, 0, min(n, 1024))
	for i := uint64(0); i < n; i++ {
		v, err := d.value(elemRef, elemType)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items = append(items, v)
	}
	if expected == nil {
		return nil, nil
	}
	return items, nil
}

func (d *decoder) record(ref int64, expected *Type) (any, error) {
	wt := d.table[ref]
	seen := map[uint32]any{}
	for _, wf := range wt.fields {
		var ft *Type
		if expected != nil {
			if f, ok := expected.FieldByID(wf.id); ok {
				ft = f.Type
			}
		}
		v, err := d.value(wf.ref, ft)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", wf.id, err)
		}
		if ft != nil {
			seen[wf.id] = v
		}
	}
	if expected == nil {
		return nil, nil
	}

	values := make([]any, len(expected.Fields))
	for i, f := range expected.Fields {
		v, ok := seen[f.ID]
		if !ok {
			if v, ok = absentValue(f.Type); !ok {
				return nil, decodeErr("record is missing field %q", f.Name)
			}
		}
		values[i] = v
	}
	if expected.Tuple {
		return values, nil
	}
	rec := make(RecordValue, len(values))
	for i, f := range expected.Fields {
		rec[f.Name] = values[i]
	}
	return rec, nil
}

func (d *decoder) variant(ref int64, expected *Type) (any, error) {
	wt := d.table[ref]
	idx, err := readUint(d.r)
	if err != nil {
		return nil, decodeErr("variant index: %v", err)
	}
	if idx >= uint64(len(wt.fields)) {
		return nil, decodeErr("variant index %d out of range", idx)
	}
	wf := wt.fields[idx]
	if expected == nil {
		_, err := d.value(wf.ref, nil)
		return nil, err
	}
	f, ok := expected.FieldByID(wf.id)
	if !ok {
		return nil, decodeErr("unknown variant tag with label %s", strconv.FormatUint(uint64(wf.id), 10))
	}
	v, err := d.value(wf.ref, f.Type)
	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", f.Name, err)
	}
	return VariantValue{Tag: f.Name, Value: v}, nil
}

func (d *decoder) blob() ([]byte, error) {
	n, err := readUint(d.r)
	if err != nil {
		return nil, decodeErr("length: %v", err)
	}
	if n > uint64(d.r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}

func (d *decoder) skip(n int) error {
	if d.r.Len() < n {
		return io.ErrUnexpectedEOF
	}
	_, err := d.r.Seek(int64(n), io.SeekCurrent)
	return err
}
