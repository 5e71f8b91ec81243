package agent

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// ErrCertificate marks a certificate that does not prove what it claims.
var ErrCertificate = errors.New("certificate verification failed")

// SignatureDST is the hash-to-curve domain of certificate signatures.
var SignatureDST = []byte("BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_")

// blsDERPrefix wraps a 96-byte compressed G2 public key.
var blsDERPrefix = mustHex("308182301d060d2b0601040182dc7c0503010201060c2b0601040182dc7c05030201036100")

var mainnetRootKey = mustHex("308182301d060d2b0601040182dc7c0503010201060c2b0601040182dc7c05030201036100" +
	"814c0e6ec71fab583b08bd81373c255c3c371b2e84863c98a4f1e08b74235d14fb5d9c0cd546d9685f913a0c0b2cc5341583" +
	"bf4b4392e467db96d65b9bb4cb717112f8472e0d5a4d14505ffd7484b01291091c5f87b98883463f98091a0baaae")

const maxCertificateAge = 5 * time.Minute

// MainnetRootKey is the DER-encoded key every production certificate
// chains up to.
func MainnetRootKey() []byte {
	return append([]byte(nil), mainnetRootKey...)
}

// EncodeBLSPublicKey wraps a compressed G2 key in its DER form.
func EncodeBLSPublicKey(raw []byte) []byte {
	return append(append([]byte(nil), blsDERPrefix...), raw...)
}

// StateRootMessage is the payload a subnet signs for a tree root.
func StateRootMessage(root [32]byte) []byte {
	return append([]byte("\x0Dic-state-root"), root[:]...)
}

// Verify checks that cert is signed by rootKey, directly or through a
// subnet delegation whose canister ranges include canister.
func Verify(cert *Certificate, canister principal.Principal, rootKey []byte) error {
	key := rootKey
	if cert.Delegation != nil {
		var err error
		if key, err = delegatedKey(cert.Delegation, canister, rootKey); err != nil {
			return err
		}
	}
	return checkSignature(cert, key)
}

// CheckFreshness rejects certificates whose /time is further than the
// allowed skew from now.
func CheckFreshness(cert *Certificate, now time.Time) error {
	raw, ok := cert.LookupText("time")
	if !ok {
		return fmt.Errorf("%w: no time", ErrCertificate)
	}
	ns, err := candid.ReadUleb(raw)
	if err != nil {
		return fmt.Errorf("%w: time: %v", ErrCertificate, err)
	}
	at := time.Unix(0, int64(ns))
	if d := now.Sub(at); d > maxCertificateAge || d < -maxCertificateAge {
		return fmt.Errorf("%w: certified at %s, %s away from local time", ErrCertificate, at.UTC().Format(time.RFC3339), d.Round(time.Second))
	}
	return nil
}

func delegatedKey(d *CertificateDelegation, canister principal.Principal, rootKey []byte) ([]byte, error) {
	inner, err := ParseCertificate(d.Certificate)
	if err != nil {
		return nil, fmt.Errorf("%w: delegation: %v", ErrCertificate, err)
	}
	if inner.Delegation != nil {
		return nil, fmt.Errorf("%w: delegation is itself delegated", ErrCertificate)
	}
	if err := checkSignature(inner, rootKey); err != nil {
		return nil, fmt.Errorf("delegation: %w", err)
	}

	subnet := []byte("subnet")
	rawRanges, ok := inner.Lookup(subnet, d.SubnetID, []byte("canister_ranges"))
	if !ok {
		return nil, fmt.Errorf("%w: delegation has no canister ranges", ErrCertificate)
	}
	var ranges [][][]byte
	if err := Unmarshal(rawRanges, &ranges); err != nil {
		return nil, fmt.Errorf("%w: canister ranges: %v", ErrCertificate, err)
	}
	if !inRanges(canister.Bytes(), ranges) {
		return nil, fmt.Errorf("%w: subnet is not authorized for canister %s", ErrCertificate, canister)
	}
	key, ok := inner.Lookup(subnet, d.SubnetID, []byte("public_key"))
	if !ok {
		return nil, fmt.Errorf("%w: delegation has no subnet key", ErrCertificate)
	}
	return key, nil
}

func inRanges(id []byte, ranges [][][]byte) bool {
	for _, r := range ranges {
		if len(r) == 2 && bytes.Compare(r[0], id) <= 0 && bytes.Compare(id, r[1]) <= 0 {
			return true
		}
	}
	return false
}

func checkSignature(cert *Certificate, derKey []byte) error {
	root, err := cert.RootHash()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCertificate, err)
	}
	if len(derKey) != len(blsDERPrefix)+bls12381.SizeOfG2AffineCompressed || !bytes.HasPrefix(derKey, blsDERPrefix) {
		return fmt.Errorf("%w: root key is not a DER-encoded BLS key", ErrCertificate)
	}
	if err := verifyBLS(derKey[len(blsDERPrefix):], cert.Signature, StateRootMessage(root)); err != nil {
		return fmt.Errorf("%w: %v", ErrCertificate, err)
	}
	return nil
}

// verifyBLS checks e(sig, g2) == e(H(msg), pub).
func verifyBLS(pub, sig, msg []byte) error {
	if len(sig) != bls12381.SizeOfG1AffineCompressed {
		return fmt.Errorf("signature is %d bytes", len(sig))
	}
	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(pub); err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	var s bls12381.G1Affine
	if _, err := s.SetBytes(sig); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if pk.IsInfinity() || s.IsInfinity() {
		return errors.New("identity point")
	}
	h, err := bls12381.HashToG1(msg, SignatureDST)
	if err != nil {
		return err
	}
	var negH bls12381.G1Affine
	negH.Neg(&h)
	_, _, _, g2 := bls12381.Generators()
	ok, err := bls12381.PairingCheck([]bls12381.G1Affine{s, negH}, []bls12381.G2Affine{g2, pk})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("signature does not match")
	}
	return nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
