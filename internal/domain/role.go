package domain

import "github.com/ayo6706/twinvest-bridge/internal/candid"

// Variant is the wire form of r.
func (r Role) Variant() candid.VariantValue {
	return candid.Tag(string(r))
}

// RoleFromVariant reads a decoded role, either bare or wrapped in an
// option. ok is false when no role is assigned or the tag is unknown.
func RoleFromVariant(v any) (role Role, ok bool) {
	switch x := v.(type) {
	case candid.Option:
		if !x.Valid {
			return "", false
		}
		return RoleFromVariant(x.Value)
	case candid.VariantValue:
		r, err := ParseRole(x.Tag)
		if err != nil {
			return "", false
		}
		return r, true
	}
	return "", false
}
