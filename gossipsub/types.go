package gossipsub

import (
	"encoding/hex"

	"github.com/google/uuid"
	sha256simd "github.com/minio/sha256-simd"
)

// Topic is an opaque string naming a pub/sub channel.
type Topic string

// MessageId is an opaque, content-derived identifier. The core never
// interprets its bytes, only compares for equality and uses it as a
// map key; collision probability is assumed negligible.
type MessageId string

// ControlKind tags the variant carried by a Message.
type ControlKind int

const (
	// Publish carries application payload for a topic.
	Publish ControlKind = iota
	// IHave advertises recently seen message ids.
	IHave
	// IWant requests specific message ids.
	IWant
	// Graft requests mesh admission for a topic.
	Graft
	// Prune requests/announces mesh removal for a topic.
	Prune
	// Subscribe announces that the sender has joined a topic. This
	// control kind is not part of the wire frame schema in the
	// distilled routing spec; it resolves that spec's own open
	// question about how peer-subscription awareness gets populated.
	Subscribe
	// Unsubscribe announces that the sender has left a topic.
	Unsubscribe
)

func (k ControlKind) String() string {
	switch k {
	case Publish:
		return "PUBLISH"
	case IHave:
		return "IHAVE"
	case IWant:
		return "IWANT"
	case Graft:
		return "GRAFT"
	case Prune:
		return "PRUNE"
	case Subscribe:
		return "SUBSCRIBE"
	case Unsubscribe:
		return "UNSUBSCRIBE"
	default:
		return "UNKNOWN"
	}
}

// Message is the wire frame schema: every frame carries Kind, Id,
// Timestamp, and optionally From, To, Topic, Content and MessageIds.
// The on-wire encoding is external (see protocol.go for one concrete,
// hand-rolled option); the core only ever works with already-decoded
// values of this type.
type Message struct {
	Kind      ControlKind
	Id        MessageId
	Timestamp int64 // monotonic milliseconds, per Clock.NowMs

	From *PeerId // origin peer, not relay; nil for pure control frames without one
	To   *PeerId // intended recipient, debugging/routing diagnostics only; never trusted

	Topic      *Topic
	Content    []byte
	MessageIds []MessageId // used by IHAVE / IWANT
}

func strPtr(t Topic) *Topic    { return &t }
func peerPtr(p PeerId) *PeerId { return &p }

// contentMessageId derives a MessageId as a content hash of
// (from, topic, seq, payload), truncated to 20 bytes and hex-encoded.
// This is the default scheme used by Router.Publish; sha256-simd gives
// us a real, vectorized, API-compatible drop-in for crypto/sha256
// (which is what this corpus's own ids.go calls directly for peer-id
// hashing) rather than a hand-rolled hash.
func contentMessageId(from PeerId, topic Topic, seq uint64, payload []byte) MessageId {
	h := sha256simd.New()
	h.Write([]byte(from))
	h.Write([]byte(topic))
	h.Write(encodeUint64(seq))
	h.Write(payload)
	sum := h.Sum(nil)
	return MessageId(hex.EncodeToString(sum[:20]))
}

// RandomMessageId allocates an id that is not derived from any
// content, for the rare case (per the data model: "content hash or
// (source, seqno); treated as opaque by the core") where a collaborator
// wants an allocated id rather than a derived one — e.g. synthetic
// control-only frames in tests.
func RandomMessageId() MessageId {
	return MessageId(uuid.NewString())
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
