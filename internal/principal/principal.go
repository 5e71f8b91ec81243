// Package principal carries caller and service identifiers of the ledger's
// hosting network. The textual codec is agent-go's.
package principal

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	icp "github.com/aviate-labs/agent-go/principal"
)

const maxLength = 29

var ErrInvalidText = errors.New("invalid principal text")

// Principal is an opaque identifier of at most 29 bytes.
type Principal struct {
	raw []byte
}

// Management is the principal with an empty byte form ("aaaaa-aa").
var Management = Principal{}

// Anonymous is the principal used by unauthenticated callers ("2vxsx-fae").
var Anonymous = Principal{raw: icp.AnonymousID.Raw}

// FromBytes copies raw into a principal.
func FromBytes(raw []byte) (Principal, error) {
	if len(raw) > maxLength {
		return Principal{}, fmt.Errorf("principal too long: %d bytes", len(raw))
	}
	return Principal{raw: append([]byte(nil), raw...)}, nil
}

// SelfAuthenticating derives the principal owned by a DER-encoded public key.
func SelfAuthenticating(derPublicKey []byte) Principal {
	return Principal{raw: icp.NewSelfAuthenticating(derPublicKey).Raw}
}

// Decode parses the canonical textual form, verifying the embedded checksum.
// Regrouped spellings are refused; case is ignored.
func Decode(text string) (Principal, error) {
	parsed, err := icp.Decode(text)
	if err != nil {
		return Principal{}, fmt.Errorf("%w %q: %v", ErrInvalidText, text, err)
	}
	p, err := FromBytes(parsed.Raw)
	if err != nil {
		return Principal{}, fmt.Errorf("%w %q: %v", ErrInvalidText, text, err)
	}
	if p.String() != strings.ToLower(text) {
		return Principal{}, fmt.Errorf("%w %q: not in canonical form", ErrInvalidText, text)
	}
	return p, nil
}

// MustDecode is Decode for package-level constants and tests.
func MustDecode(text string) Principal {
	p, err := Decode(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Bytes returns a copy of the binary form.
func (p Principal) Bytes() []byte {
	return append([]byte{}, p.raw...)
}

// String returns the grouped base32 form of checksum||bytes.
func (p Principal) String() string {
	q := icp.Principal{Raw: p.raw}
	return q.String()
}

// Equal reports whether both principals have the same byte form.
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p.raw, other.raw)
}

// IsAnonymous reports whether p is the anonymous principal.
func (p Principal) IsAnonymous() bool {
	return p.Equal(Anonymous)
}

func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	decoded, err := Decode(string(text))
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
