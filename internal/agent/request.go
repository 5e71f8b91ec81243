package agent

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ayo6706/twinvest-bridge/internal/identity"
)

const (
	RequestQuery     = "query"
	RequestCall      = "call"
	RequestReadState = "read_state"
)

// selfDescribe is the CBOR tag 55799 prefix the replica puts on replies.
var selfDescribe = []byte{0xd9, 0xd9, 0xf7}

// RequestContent is the signed body of a request.
type RequestContent struct {
	RequestType   string     `cbor:"request_type"`
	Sender        []byte     `cbor:"sender"`
	IngressExpiry uint64     `cbor:"ingress_expiry"`
	Nonce         []byte     `cbor:"nonce,omitempty"`
	CanisterID    []byte     `cbor:"canister_id,omitempty"`
	MethodName    string     `cbor:"method_name,omitempty"`
	Arg           []byte     `cbor:"arg,omitempty"`
	Paths         [][][]byte `cbor:"paths,omitempty"`
}

// ID is the request id: the representation-independent hash of the content.
func (c RequestContent) ID() ([32]byte, error) {
	fields := map[string]any{
		"request_type":   c.RequestType,
		"sender":         c.Sender,
		"ingress_expiry": c.IngressExpiry,
	}
	if c.Nonce != nil {
		fields["nonce"] = c.Nonce
	}
	if c.RequestType == RequestReadState {
		fields["paths"] = c.Paths
	} else {
		fields["canister_id"] = c.CanisterID
		fields["method_name"] = c.MethodName
		fields["arg"] = c.Arg
	}
	return identity.HashOfMap(fields)
}

// Envelope carries content with the sender's authentication.
type Envelope struct {
	Content          RequestContent              `cbor:"content"`
	SenderPubKey     []byte                      `cbor:"sender_pubkey,omitempty"`
	SenderSig        []byte                      `cbor:"sender_sig,omitempty"`
	SenderDelegation []identity.SignedDelegation `cbor:"sender_delegation,omitempty"`
}

// Sign wraps content in an envelope signed by id. Anonymous identities
// produce an unsigned envelope.
func Sign(id identity.Identity, content RequestContent) (Envelope, [32]byte, error) {
	reqID, err := content.ID()
	if err != nil {
		return Envelope{}, reqID, err
	}
	env := Envelope{Content: content}
	pub := id.PublicKey()
	if pub == nil {
		return env, reqID, nil
	}
	msg := append(append([]byte(nil), identity.RequestDomain...), reqID[:]...)
	sig, err := id.Sign(msg)
	if err != nil {
		return Envelope{}, reqID, fmt.Errorf("sign request: %w", err)
	}
	env.SenderPubKey = pub
	env.SenderSig = sig
	env.SenderDelegation = id.Delegations()
	return env, reqID, nil
}

// Hash trees nest well past the decoder's default limit of 32.
var decMode = func() cbor.DecMode {
	m, err := cbor.DecOptions{MaxNestedLevels: 512}.DecMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Marshal encodes v as CBOR.
func Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

// Unmarshal decodes CBOR, tolerating a self-describe prefix.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(bytes.TrimPrefix(data, selfDescribe), v)
}

type queryResponse struct {
	Status        string `cbor:"status"`
	Reply         *reply `cbor:"reply"`
	RejectCode    uint64 `cbor:"reject_code"`
	RejectMessage string `cbor:"reject_message"`
	ErrorCode     string `cbor:"error_code"`
}

type reply struct {
	Arg []byte `cbor:"arg"`
}

type callResponse struct {
	Status        string `cbor:"status"`
	Certificate   []byte `cbor:"certificate"`
	RejectCode    uint64 `cbor:"reject_code"`
	RejectMessage string `cbor:"reject_message"`
	ErrorCode     string `cbor:"error_code"`
}

type readStateResponse struct {
	Certificate []byte `cbor:"certificate"`
}

type statusResponse struct {
	RootKey []byte `cbor:"root_key"`
}
