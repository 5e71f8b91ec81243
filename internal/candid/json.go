package candid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// FromJSON converts a JSON document into a value of type t. Numbers may be
// given as JSON numbers or decimal strings, principals as text, variants as
// a tag string or a single-key object.
func FromJSON(t *Type, raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := dec.Decode(&generic); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}
	return fromGeneric(t, generic)
}

func fromGeneric(t *Type, v any) (any, error) {
	switch t.Kind {
	case KindNull, KindReserved:
		return nil, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
		return b, nil
	case KindNat, KindInt:
		var text string
		switch n := v.(type) {
		case json.Number:
			text = n.String()
		case string:
			text = n
		default:
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		n, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", text)
		}
		if t.Kind == KindNat && n.Sign() < 0 {
			return nil, fmt.Errorf("nat cannot be negative: %s", text)
		}
		return n, nil
	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case KindPrincipal:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected principal text, got %T", v)
		}
		return principal.Decode(s)
	case KindOpt:
		if v == nil {
			return None(), nil
		}
		inner, err := fromGeneric(t.Elem, v)
		if err != nil {
			return nil, err
		}
		return Some(inner), nil
	case KindVec:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			conv, err := fromGeneric(t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case KindRecord:
		if t.Tuple {
			items, ok := v.([]any)
			if !ok || len(items) != len(t.Fields) {
				return nil, fmt.Errorf("expected array of %d elements", len(t.Fields))
			}
			out := make([]any, len(items))
			for i, f := range t.Fields {
				conv, err := fromGeneric(f.Type, items[i])
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = conv
			}
			return out, nil
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", v)
		}
		rec := make(RecordValue, len(t.Fields))
		for _, f := range t.Fields {
			conv, err := fromGeneric(f.Type, obj[f.Name])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			rec[f.Name] = conv
		}
		return rec, nil
	case KindVariant:
		tag, payload := "", any(nil)
		switch x := v.(type) {
		case string:
			tag = x
		case map[string]any:
			if len(x) != 1 {
				return nil, fmt.Errorf("variant object needs exactly one key")
			}
			for k, val := range x {
				tag, payload = k, val
			}
		default:
			return nil, fmt.Errorf("expected variant tag, got %T", v)
		}
		for _, f := range t.Fields {
			if f.Name == tag {
				conv, err := fromGeneric(f.Type, payload)
				if err != nil {
					return nil, fmt.Errorf("tag %q: %w", tag, err)
				}
				return VariantValue{Tag: tag, Value: conv}, nil
			}
		}
		return nil, fmt.Errorf("unknown variant tag %q", tag)
	}
	return nil, fmt.Errorf("unsupported kind %s", t.Kind)
}
