package gossipsub

import "fmt"

// Sentinel error kinds surfaced to callers, declared with fmt.Errorf in
// the flat var-block convention this corpus uses for its pubsub
// error sets (see internal/protocol/pubsub/errors.go in the teacher
// repo). Wrap with fmt.Errorf("...: %w", ErrX) when a value needs to
// be attached; callers compare with errors.Is.
var (
	// ErrNotSubscribed is returned by Publish for a topic not in topics.
	ErrNotSubscribed = fmt.Errorf("gossipsub: not subscribed to topic")
	// ErrUnknownPeer is returned when an inbound frame names a peer not in peers.
	ErrUnknownPeer = fmt.Errorf("gossipsub: unknown peer")
	// ErrInvalidFrame is returned when a decoded frame violates the schema.
	ErrInvalidFrame = fmt.Errorf("gossipsub: invalid frame")
)

// TransportError wraps a failed Transport.Send call. The core never
// returns it to a caller — per §7's propagation policy it is logged
// and swallowed — but it is exposed so the logging call site and tests
// have a concrete type to assert against.
type TransportError struct {
	Peer  PeerId
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gossipsub: transport send to %s failed: %v", e.Peer, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }
