package candid

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ayo6706/twinvest-bridge/internal/principal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	assert.Equal(t, uint32(5097222), Hash("foo"))
	assert.Equal(t, uint32(0), Hash(""))
}

func TestEncodeKnownVectors(t *testing.T) {
	empty, err := EncodeArgs(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("DIDL\x00\x00"), empty)

	nat, err := EncodeArgs(Types(Nat), []any{42})
	require.NoError(t, err)
	assert.Equal(t, []byte("DIDL\x00\x01\x7d\x2a"), nat)

	text, err := EncodeArgs(Types(Text), []any{"hi"})
	require.NoError(t, err)
	assert.Equal(t, []byte("DIDL\x00\x01\x71\x02hi"), text)

	neg, err := EncodeArgs(Types(Int), []any{int64(-1)})
	require.NoError(t, err)
	assert.Equal(t, []byte("DIDL\x00\x01\x7c\x7f"), neg)

	big64, err := EncodeArgs(Types(Int), []any{64})
	require.NoError(t, err)
	assert.Equal(t, []byte("DIDL\x00\x01\x7c\xc0\x00"), big64)
}

func TestRoundTripCompound(t *testing.T) {
	status := Variant(F("open", Null), F("funded", Null))
	item := Record(
		F("id", Nat),
		F("owner", Principal),
		F("due", Int),
		F("note", Opt(Text)),
		F("status", status),
		F("pairs", Vec(Tuple(Nat, Nat))),
	)
	types := Types(Vec(item), Opt(Nat), Bool)

	owner := principal.MustDecode("2vxsx-fae")
	values := []any{
		[]any{
			RecordValue{
				"id":     7,
				"owner":  owner,
				"due":    int64(-5),
				"note":   Some("hello"),
				"status": Tag("funded"),
				"pairs":  []any{[]any{1, 2}, []any{3, uint64(4)}},
			},
		},
		None(),
		true,
	}

	data, err := EncodeArgs(types, values)
	require.NoError(t, err)

	out, err := DecodeArgs(types, data)
	require.NoError(t, err)
	require.Len(t, out, 3)

	items := out[0].([]any)
	require.Len(t, items, 1)
	rec := items[0].(RecordValue)
	assert.Equal(t, 0, rec["id"].(*big.Int).Cmp(big.NewInt(7)))
	assert.True(t, owner.Equal(rec["owner"].(principal.Principal)))
	assert.Equal(t, "-5", rec["due"].(*big.Int).String())
	assert.Equal(t, Some("hello"), rec["note"])
	assert.Equal(t, "funded", rec["status"].(VariantValue).Tag)
	pairs := rec["pairs"].([]any)
	require.Len(t, pairs, 2)
	second := pairs[1].([]any)
	n, err := NatValue(second[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	assert.Equal(t, None(), out[1])
	assert.Equal(t, true, out[2])
}

func TestDecodeToleratesExtraAndMissingOptional(t *testing.T) {
	wide := Record(F("a", Nat), F("b", Text))
	data, err := EncodeArgs(Types(wide, Text), []any{RecordValue{"a": 1, "b": "x"}, "extra"})
	require.NoError(t, err)

	narrow := Record(F("a", Nat), F("c", Opt(Bool)))
	out, err := DecodeArgs(Types(narrow), data)
	require.NoError(t, err)
	rec := out[0].(RecordValue)
	assert.Equal(t, None(), rec["c"])
	_, hasB := rec["b"]
	assert.False(t, hasB)
}

func TestDecodeShapeMismatch(t *testing.T) {
	data, err := EncodeArgs(Types(Text), []any{"nope"})
	require.NoError(t, err)

	_, err = DecodeArgs(Types(Nat), data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = DecodeArgs(Types(Nat), []byte("garbage"))
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = DecodeArgs(Types(Nat), []byte("DIDL\x00\x01\x7d"))
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeRejectsHostileMessages(t *testing.T) {
	deepOpt := append([]byte("DIDL\x01\x6e\x00\x01\x00"), bytes.Repeat([]byte{1}, 200)...)
	cases := map[string][]byte{
		"argument count beyond message": AppendUleb([]byte("DIDL\x00"), 1<<62),
		"record containing itself":      []byte("DIDL\x01\x6c\x01\x00\x00\x02\x7d\x00\x01"),
		"records containing each other": []byte("DIDL\x02\x6c\x01\x00\x01\x6c\x01\x00\x00\x00"),
		"opt nested too deep":           append(deepOpt, 0),
		"huge vec of null":              AppendUleb([]byte("DIDL\x01\x6d\x7f\x01\x00"), 1<<40),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeArgs(nil, data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
		})
	}
}

func TestDecodeAcceptsRecursionThroughOpt(t *testing.T) {
	// record { 0 : opt <self> } carrying null.
	data := []byte("DIDL\x02\x6c\x01\x00\x01\x6e\x00\x01\x00\x00")
	out, err := DecodeArgs(nil, data)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func FuzzDecodeArgs(f *testing.F) {
	seed, err := EncodeArgs(Types(Nat, Opt(Text)), []any{7, Some("x")})
	require.NoError(f, err)
	f.Add(seed)
	f.Add([]byte("DIDL\x00\x00"))
	f.Add([]byte("DIDL\x01\x6c\x01\x00\x00\x02\x7d\x00\x01"))
	f.Fuzz(func(t *testing.T, data []byte) {
		out, err := DecodeArgs(Types(Nat, Opt(Text)), data)
		if err != nil {
			assert.True(t, errors.Is(err, ErrDecode), "%v", err)
			return
		}
		assert.Len(t, out, 2)
	})
}

func TestDecodeMissingRequiredResult(t *testing.T) {
	data, err := EncodeArgs(nil, nil)
	require.NoError(t, err)

	_, err = DecodeArgs(Types(Bool), data)
	assert.True(t, errors.Is(err, ErrDecode))

	out, err := DecodeArgs(Types(Opt(Nat)), data)
	require.NoError(t, err)
	assert.Equal(t, None(), out[0])
}

func TestEncodeRejectsBadValues(t *testing.T) {
	_, err := EncodeArgs(Types(Nat), []any{-1})
	assert.Error(t, err)

	_, err = EncodeArgs(Types(Variant(F("a", Null))), []any{Tag("b")})
	assert.Error(t, err)

	_, err = EncodeArgs(Types(Nat, Nat), []any{1})
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	role := Variant(F("investor", Null), F("issuer", Null), F("admin", Null))

	v, err := FromJSON(role, json.RawMessage(`"issuer"`))
	require.NoError(t, err)
	assert.Equal(t, Tag("issuer"), v)

	v, err = FromJSON(role, json.RawMessage(`{"admin": null}`))
	require.NoError(t, err)
	assert.Equal(t, Tag("admin"), v)

	v, err = FromJSON(Nat, json.RawMessage(`"18446744073709551616"`))
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551616", v.(*big.Int).String())

	v, err = FromJSON(Opt(Principal), json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, None(), v)

	_, err = FromJSON(Nat, json.RawMessage(`-4`))
	assert.Error(t, err)

	_, err = FromJSON(role, json.RawMessage(`"owner"`))
	assert.Error(t, err)
}

func TestJSONRendering(t *testing.T) {
	out, err := json.Marshal([]any{Tag("open"), Some(big.NewInt(3)), None(), principal.Anonymous})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"open":null},3,null,"2vxsx-fae"]`, string(out))
}

func TestServiceTable(t *testing.T) {
	svc := NewService(
		UpdateMethod("b", Types(Nat), nil),
		QueryMethod("a", nil, Types(Text)),
	)
	assert.Equal(t, []string{"a", "b"}, svc.Names())

	fn, ok := svc.Lookup("a")
	require.True(t, ok)
	assert.True(t, fn.Query)
	assert.Equal(t, "() -> (text) query", fn.Signature())

	_, ok = svc.Lookup("missing")
	assert.False(t, ok)
}
