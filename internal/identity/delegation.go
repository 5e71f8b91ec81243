package identity

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

// Delegation authorizes PubKey to sign for the delegating key until
// Expiration, optionally limited to Targets.
type Delegation struct {
	PubKey     []byte   `cbor:"pubkey"`
	Expiration uint64   `cbor:"expiration"`
	Targets    [][]byte `cbor:"targets,omitempty"`
}

// SignedDelegation is a delegation signed by the previous key in the chain.
type SignedDelegation struct {
	Delegation Delegation `cbor:"delegation"`
	Signature  []byte     `cbor:"signature"`
}

// Hash is the representation-independent hash covered by the signature.
func (d Delegation) Hash() ([32]byte, error) {
	fields := map[string]any{
		"pubkey":     d.PubKey,
		"expiration": d.Expiration,
	}
	if len(d.Targets) > 0 {
		fields["targets"] = d.Targets
	}
	return HashOfMap(fields)
}

// SignDelegation has signer delegate to pubKey until expires.
func SignDelegation(signer Identity, pubKey []byte, expires time.Time, targets ...principal.Principal) (SignedDelegation, error) {
	d := Delegation{PubKey: pubKey, Expiration: uint64(expires.UnixNano())}
	for _, t := range targets {
		d.Targets = append(d.Targets, t.Bytes())
	}
	h, err := d.Hash()
	if err != nil {
		return SignedDelegation{}, err
	}
	sig, err := signer.Sign(append(append([]byte(nil), DelegationDomain...), h[:]...))
	if err != nil {
		return SignedDelegation{}, fmt.Errorf("sign delegation: %w", err)
	}
	return SignedDelegation{Delegation: d, Signature: sig}, nil
}

// DelegationChain links a root public key to a session key.
type DelegationChain struct {
	PublicKey   []byte
	Delegations []SignedDelegation
}

// Expiration is the earliest expiry in the chain.
func (c DelegationChain) Expiration() time.Time {
	var earliest uint64
	for i, sd := range c.Delegations {
		if i == 0 || sd.Delegation.Expiration < earliest {
			earliest = sd.Delegation.Expiration
		}
	}
	return time.Unix(0, int64(earliest))
}

// Valid reports whether the chain is non-empty and unexpired at now.
func (c DelegationChain) Valid(now time.Time) bool {
	return len(c.Delegations) > 0 && now.Before(c.Expiration())
}

// Verify checks every link against its predecessor. Only Ed25519 keys are
// verified; chains rooted in other schemes are rejected.
func (c DelegationChain) Verify() error {
	if len(c.Delegations) == 0 {
		return errors.New("empty delegation chain")
	}
	signer := c.PublicKey
	for i, sd := range c.Delegations {
		h, err := sd.Delegation.Hash()
		if err != nil {
			return err
		}
		msg := append(append([]byte(nil), DelegationDomain...), h[:]...)
		if err := VerifyEd25519(signer, msg, sd.Signature); err != nil {
			return fmt.Errorf("delegation %d: %w", i, err)
		}
		signer = sd.Delegation.PubKey
	}
	return nil
}

type jsonDelegation struct {
	Delegation struct {
		PubKey     string   `json:"pubkey"`
		Expiration string   `json:"expiration"`
		Targets    []string `json:"targets,omitempty"`
	} `json:"delegation"`
	Signature string `json:"signature"`
}

type jsonChain struct {
	PublicKey   string           `json:"publicKey"`
	Delegations []jsonDelegation `json:"delegations"`
}

// MarshalJSON writes keys and signatures as hex and expirations as hex
// nanoseconds, the layout identity providers post back.
func (c DelegationChain) MarshalJSON() ([]byte, error) {
	out := jsonChain{PublicKey: hex.EncodeToString(c.PublicKey), Delegations: []jsonDelegation{}}
	for _, sd := range c.Delegations {
		var jd jsonDelegation
		jd.Delegation.PubKey = hex.EncodeToString(sd.Delegation.PubKey)
		jd.Delegation.Expiration = strconv.FormatUint(sd.Delegation.Expiration, 16)
		for _, t := range sd.Delegation.Targets {
			jd.Delegation.Targets = append(jd.Delegation.Targets, hex.EncodeToString(t))
		}
		jd.Signature = hex.EncodeToString(sd.Signature)
		out.Delegations = append(out.Delegations, jd)
	}
	return json.Marshal(out)
}

func (c *DelegationChain) UnmarshalJSON(data []byte) error {
	var in jsonChain
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	pub, err := hex.DecodeString(in.PublicKey)
	if err != nil {
		return fmt.Errorf("publicKey: %w", err)
	}
	chain := DelegationChain{PublicKey: pub}
	for i, jd := range in.Delegations {
		var sd SignedDelegation
		if sd.Delegation.PubKey, err = hex.DecodeString(jd.Delegation.PubKey); err != nil {
			return fmt.Errorf("delegation %d pubkey: %w", i, err)
		}
		if sd.Delegation.Expiration, err = strconv.ParseUint(jd.Delegation.Expiration, 16, 64); err != nil {
			return fmt.Errorf("delegation %d expiration: %w", i, err)
		}
		for _, t := range jd.Delegation.Targets {
			raw, err := hex.DecodeString(t)
			if err != nil {
				return fmt.Errorf("delegation %d target: %w", i, err)
			}
			sd.Delegation.Targets = append(sd.Delegation.Targets, raw)
		}
		if sd.Signature, err = hex.DecodeString(jd.Signature); err != nil {
			return fmt.Errorf("delegation %d signature: %w", i, err)
		}
		chain.Delegations = append(chain.Delegations, sd)
	}
	*c = chain
	return nil
}

// Delegated signs with a session key on behalf of the chain's root key.
type Delegated struct {
	session Identity
	chain   DelegationChain
}

// NewDelegated pairs a session key with the chain ending in its public key.
func NewDelegated(session Identity, chain DelegationChain) (*Delegated, error) {
	if len(chain.Delegations) == 0 {
		return nil, errors.New("delegation chain is empty")
	}
	if last := chain.Delegations[len(chain.Delegations)-1]; string(last.Delegation.PubKey) != string(session.PublicKey()) {
		return nil, errors.New("delegation chain does not end in the session key")
	}
	return &Delegated{session: session, chain: chain}, nil
}

func (d *Delegated) Sender() principal.Principal {
	return principal.SelfAuthenticating(d.chain.PublicKey)
}
func (d *Delegated) PublicKey() []byte               { return append([]byte(nil), d.chain.PublicKey...) }
func (d *Delegated) Sign(msg []byte) ([]byte, error) { return d.session.Sign(msg) }
func (d *Delegated) Delegations() []SignedDelegation { return d.chain.Delegations }

// Chain returns the delegation chain.
func (d *Delegated) Chain() DelegationChain { return d.chain }
