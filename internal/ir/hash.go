package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for a future change of serialization.
const (
	DomainGate    = "octet/gate/v1"
	DomainProgram = "octet/program/v1"
	DomainCircuit = "octet/circuit/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || data) as hex.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GateHash is the content identity of one channel's segment sequence within
// a gate slice. Two sequences hash equal exactly when every segment field is
// equal, in order.
func GateHash(segments []PulseSegment) (string, error) {
	list := make([]any, len(segments))
	for i, s := range segments {
		list[i] = s.canonical()
	}
	data, err := MarshalCanonical(list)
	if err != nil {
		return "", errors.Wrap(err, "gate hash")
	}
	return HashWithDomain(DomainGate, data), nil
}

// MustGateHash is like GateHash but panics on error.
// Segments only hold integers and names, so this cannot fail in practice.
func MustGateHash(segments []PulseSegment) string {
	h, err := GateHash(segments)
	if err != nil {
		panic(err)
	}
	return h
}
