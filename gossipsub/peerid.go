package gossipsub

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
)

// PeerId is an opaque identifier, comparable for equality and usable as
// a map key, stable for the lifetime of a connection. The external
// representation is Base58 text, per this corpus's own documented
// convention for peer ids (pkg/types/ids.go), encoded here with
// mr-tron/base58 rather than the hand-rolled codec that corpus uses for
// the same purpose — the core never decodes or interprets the bytes,
// it only compares ids for equality.
type PeerId string

// NewPeerId derives a PeerId from raw identity bytes (e.g. a public key
// or any stable per-connection token supplied by the identity/transport
// collaborators), rendering it as Base58 text.
func NewPeerId(raw []byte) PeerId {
	return PeerId(base58.Encode(raw))
}

// RandomPeerId generates a PeerId from 16 bytes of crypto/rand entropy.
// It exists for tests and demos that need distinct peer identities
// without a real identity collaborator; production callers are expected
// to derive PeerId from their identity collaborator via NewPeerId.
func RandomPeerId() PeerId {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is catastrophic for the whole process;
		// a zero-filled id is still a valid, if predictable, PeerId.
	}
	return NewPeerId(buf)
}

func (p PeerId) String() string { return string(p) }
