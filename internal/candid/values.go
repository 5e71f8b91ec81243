package candid

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Value representation (both directions of the codec):
//
//	null      nil
//	bool      bool
//	nat, int  *big.Int (encoding also accepts Go integer types)
//	text      string
//	principal principal.Principal
//	opt       Option
//	vec       []any
//	record    RecordValue, or []any for tuples
//	variant   VariantValue

// RecordValue maps field names to values.
type RecordValue map[string]any

// VariantValue is one selected tag of a variant.
type VariantValue struct {
	Tag   string
	Value any
}

// Option is an optional value.
type Option struct {
	Value any
	Valid bool
}

func Some(v any) Option { return Option{Value: v, Valid: true} }

func None() Option { return Option{} }

// Tag builds a variant value whose payload is null.
func Tag(name string) VariantValue { return VariantValue{Tag: name} }

func (o Option) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// MarshalJSON renders {"tag": payload}.
func (v VariantValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{v.Tag: v.Value})
}

// NatValue converts a decoded nat or int to uint64.
func NatValue(v any) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("number %s does not fit in uint64", n)
	}
	return n.Uint64(), nil
}

// IntValue converts a decoded int to int64.
func IntValue(v any) (int64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("number %s does not fit in int64", n)
	}
	return n.Int64(), nil
}

func toBig(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil number")
		}
		return n, nil
	case int:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, fmt.Errorf("expected number, got %T", v)
	}
}
