package identity

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/ayo6706/twinvest-bridge/internal/candid"
)

// HashOfMap computes the representation-independent hash of a map whose
// values are string, []byte, uint64, [][]byte or [][][]byte. Requests and
// delegations are signed over this hash.
func HashOfMap(fields map[string]any) ([32]byte, error) {
	pairs := make([][]byte, 0, len(fields))
	for k, v := range fields {
		vh, err := hashValue(v)
		if err != nil {
			return [32]byte{}, fmt.Errorf("hash field %q: %w", k, err)
		}
		kh := sha256.Sum256([]byte(k))
		pair := make([]byte, 0, 64)
		pair = append(pair, kh[:]...)
		pair = append(pair, vh[:]...)
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i], pairs[j]) < 0 })
	return sha256.Sum256(bytes.Join(pairs, nil)), nil
}

func hashValue(v any) ([32]byte, error) {
	switch x := v.(type) {
	case string:
		return sha256.Sum256([]byte(x)), nil
	case []byte:
		return sha256.Sum256(x), nil
	case uint64:
		return sha256.Sum256(candid.AppendUleb(nil, x)), nil
	case [][]byte:
		var cat []byte
		for _, item := range x {
			h := sha256.Sum256(item)
			cat = append(cat, h[:]...)
		}
		return sha256.Sum256(cat), nil
	case [][][]byte:
		var cat []byte
		for _, path := range x {
			h, err := hashValue(path)
			if err != nil {
				return [32]byte{}, err
			}
			cat = append(cat, h[:]...)
		}
		return sha256.Sum256(cat), nil
	default:
		return [32]byte{}, fmt.Errorf("unsupported type %T", v)
	}
}
