// Package identity provides the caller identities that sign requests.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// Identity signs requests on behalf of a principal.
type Identity interface {
	// Sender is the principal requests are attributed to.
	Sender() principal.Principal
	// PublicKey is the DER-encoded key of the sender, nil for anonymous.
	PublicKey() []byte
	// Sign signs msg with the key that ends the delegation chain.
	Sign(msg []byte) ([]byte, error)
	// Delegations is the chain from PublicKey to the signing key.
	Delegations() []SignedDelegation
}

// Domain separators prefixed to signed payloads.
var (
	RequestDomain    = []byte("\x0Aic-request")
	DelegationDomain = []byte("\x1Aic-request-auth-delegation")
)

var ed25519DERPrefix = []byte{0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00}

var ErrNotEd25519 = errors.New("public key is not a DER-encoded Ed25519 key")

// Anonymous sends unsigned requests.
type Anonymous struct{}

func (Anonymous) Sender() principal.Principal     { return principal.Anonymous }
func (Anonymous) PublicKey() []byte               { return nil }
func (Anonymous) Sign([]byte) ([]byte, error)     { return nil, nil }
func (Anonymous) Delegations() []SignedDelegation { return nil }

// Ed25519 is a basic key pair identity.
type Ed25519 struct {
	priv ed25519.PrivateKey
	der  []byte
}

// NewEd25519 generates a fresh key pair.
func NewEd25519() (*Ed25519, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return Ed25519FromSeed(seed)
}

// Ed25519FromSeed restores a key pair from its 32-byte seed.
func Ed25519FromSeed(seed []byte) (*Ed25519, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519{priv: priv, der: EncodeEd25519PublicKey(priv.Public().(ed25519.PublicKey))}, nil
}

func (i *Ed25519) Seed() []byte                    { return i.priv.Seed() }
func (i *Ed25519) Sender() principal.Principal     { return principal.SelfAuthenticating(i.der) }
func (i *Ed25519) PublicKey() []byte               { return append([]byte(nil), i.der...) }
func (i *Ed25519) Delegations() []SignedDelegation { return nil }

func (i *Ed25519) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(i.priv, msg), nil
}

// EncodeEd25519PublicKey wraps a raw key in its DER SubjectPublicKeyInfo.
func EncodeEd25519PublicKey(pub ed25519.PublicKey) []byte {
	out := make([]byte, 0, len(ed25519DERPrefix)+len(pub))
	out = append(out, ed25519DERPrefix...)
	return append(out, pub...)
}

// DecodeEd25519PublicKey strips the DER wrapper.
func DecodeEd25519PublicKey(der []byte) (ed25519.PublicKey, error) {
	if len(der) != len(ed25519DERPrefix)+ed25519.PublicKeySize || !bytes.HasPrefix(der, ed25519DERPrefix) {
		return nil, ErrNotEd25519
	}
	return ed25519.PublicKey(der[len(ed25519DERPrefix):]), nil
}

// VerifyEd25519 checks sig over msg against a DER-encoded key.
func VerifyEd25519(der, msg, sig []byte) error {
	pub, err := DecodeEd25519PublicKey(der)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, msg, sig) {
		return errors.New("invalid ed25519 signature")
	}
	return nil
}
