package agent

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
)

// Hash tree node tags.
const (
	nodeEmpty uint64 = iota
	nodeFork
	nodeLabeled
	nodeLeaf
	nodePruned
)

var errMalformedTree = errors.New("malformed hash tree")

// Certificate is a hash tree whose root is signed by the subnet that
// produced it. See Verify.
type Certificate struct {
	Tree       any                    `cbor:"tree"`
	Signature  []byte                 `cbor:"signature"`
	Delegation *CertificateDelegation `cbor:"delegation,omitempty"`
}

// CertificateDelegation carries the root-signed certificate that vouches
// for the key of the subnet signing the outer certificate.
type CertificateDelegation struct {
	SubnetID    []byte `cbor:"subnet_id"`
	Certificate []byte `cbor:"certificate"`
}

// ParseCertificate decodes a CBOR certificate.
func ParseCertificate(data []byte) (*Certificate, error) {
	var cert Certificate
	if err := Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	return &cert, nil
}

// RootHash rebuilds the digest of the tree, the value the signature covers.
func (c *Certificate) RootHash() ([32]byte, error) {
	return digest(c.Tree)
}

func digest(node any) ([32]byte, error) {
	tag, items, ok := split(node)
	if !ok {
		return [32]byte{}, errMalformedTree
	}
	switch tag {
	case nodeEmpty:
		if len(items) == 0 {
			return domainHash("ic-hashtree-empty"), nil
		}
	case nodeFork:
		if len(items) == 2 {
			l, err := digest(items[0])
			if err != nil {
				return l, err
			}
			r, err := digest(items[1])
			if err != nil {
				return r, err
			}
			return domainHash("ic-hashtree-fork", l[:], r[:]), nil
		}
	case nodeLabeled:
		if len(items) != 2 {
			break
		}
		if label, ok := items[0].([]byte); ok {
			sub, err := digest(items[1])
			if err != nil {
				return sub, err
			}
			return domainHash("ic-hashtree-labeled", label, sub[:]), nil
		}
	case nodeLeaf:
		if len(items) != 1 {
			break
		}
		if v, ok := items[0].([]byte); ok {
			return domainHash("ic-hashtree-leaf", v), nil
		}
	case nodePruned:
		if len(items) != 1 {
			break
		}
		if h, ok := items[0].([]byte); ok && len(h) == sha256.Size {
			return [32]byte(h), nil
		}
	}
	return [32]byte{}, fmt.Errorf("%w: node tag %d", errMalformedTree, tag)
}

// domainHash is sha256 over a length-prefixed separator followed by parts.
func domainHash(sep string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{byte(len(sep))})
	h.Write([]byte(sep))
	for _, p := range parts {
		h.Write(p)
	}
	return [32]byte(h.Sum(nil))
}

// Lookup returns the leaf at path and whether it exists.
func (c *Certificate) Lookup(path ...[]byte) ([]byte, bool) {
	return lookup(c.Tree, path)
}

// LookupText is Lookup for labels given as strings.
func (c *Certificate) LookupText(path ...string) ([]byte, bool) {
	labels := make([][]byte, len(path))
	for i, p := range path {
		labels[i] = []byte(p)
	}
	return c.Lookup(labels...)
}

func lookup(node any, path [][]byte) ([]byte, bool) {
	if len(path) == 0 {
		tag, items, ok := split(node)
		if !ok || tag != nodeLeaf || len(items) != 1 {
			return nil, false
		}
		leaf, ok := items[0].([]byte)
		return leaf, ok
	}
	for _, child := range labeled(node) {
		if bytes.Equal(child.label, path[0]) {
			return lookup(child.node, path[1:])
		}
	}
	return nil, false
}

type labeledNode struct {
	label []byte
	node  any
}

// labeled flattens the forks below node into its labeled children.
func labeled(node any) []labeledNode {
	tag, items, ok := split(node)
	if !ok {
		return nil
	}
	switch tag {
	case nodeFork:
		if len(items) != 2 {
			return nil
		}
		return append(labeled(items[0]), labeled(items[1])...)
	case nodeLabeled:
		if len(items) != 2 {
			return nil
		}
		label, ok := items[0].([]byte)
		if !ok {
			return nil
		}
		return []labeledNode{{label: label, node: items[1]}}
	}
	return nil
}

func split(node any) (uint64, []any, bool) {
	arr, ok := node.([]any)
	if !ok || len(arr) == 0 {
		return 0, nil, false
	}
	tag, ok := arr[0].(uint64)
	if !ok {
		return 0, nil, false
	}
	return tag, arr[1:], true
}

// Tree builders, used to assemble certificates in tests and fakes.

func EmptyTree() any                  { return []any{nodeEmpty} }
func Fork(l, r any) any               { return []any{nodeFork, l, r} }
func Labeled(label []byte, n any) any { return []any{nodeLabeled, label, n} }
func Leaf(v []byte) any               { return []any{nodeLeaf, v} }
func Pruned(h []byte) any             { return []any{nodePruned, h} }
