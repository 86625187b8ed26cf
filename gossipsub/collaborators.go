package gossipsub

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"

	"github.com/benbjohnson/clock"
)

// Transport is the best-effort outbound sink. Send errors are logged
// by the core and never affect NodeState; the core does not retry —
// the next heartbeat re-evaluates mesh membership.
type Transport interface {
	Send(peer PeerId, frame *Message) error
}

// Clock supplies monotonic milliseconds. The default implementation
// wraps github.com/benbjohnson/clock so tests can inject clock.NewMock
// and advance it explicitly instead of sleeping.
type Clock interface {
	NowMs() int64
}

// Rng selects a pseudo-random subset of n peers from candidates. The
// default implementation is math/rand seeded from crypto/rand, the
// same pattern the teacher's mesh manager uses for its own peer
// selection (cryptoSeed in mesh.go).
type Rng interface {
	Pick(n int, from []PeerId) []PeerId
}

// Application receives PUBLISH payloads for topics the local node
// subscribes to.
type Application interface {
	OnMessage(topic Topic, payload []byte, from PeerId)
}

// realClock adapts benbjohnson/clock.Clock to the Clock interface.
type realClock struct {
	c clock.Clock
}

// NewRealClock returns the default Clock collaborator, backed by the
// system clock via benbjohnson/clock (so production code and tests
// share the same interface, with tests substituting clock.NewMock()).
func NewRealClock() Clock {
	return &realClock{c: clock.New()}
}

// NewClockFrom wraps an existing benbjohnson/clock.Clock (e.g. a
// clock.Mock in tests) as a Clock collaborator.
func NewClockFrom(c clock.Clock) Clock {
	return &realClock{c: c}
}

func (r *realClock) NowMs() int64 {
	return r.c.Now().UnixMilli()
}

// cryptoRand is the default Rng: a math/rand source seeded from
// crypto/rand, matching mesh.go's cryptoSeed() pattern in the teacher
// repo rather than pulling in a third-party PRNG the corpus never
// uses for this purpose.
type cryptoRand struct {
	r *mathrand.Rand
}

// NewCryptoRand returns the default Rng collaborator.
func NewCryptoRand() Rng {
	var seed int64
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		seed = int64(binary.BigEndian.Uint64(buf[:]))
	}
	// A zero seed (crypto/rand failure) still yields a valid, merely
	// predictable, source rather than a nil one.
	return &cryptoRand{r: mathrand.New(mathrand.NewSource(seed))}
}

func (c *cryptoRand) Pick(n int, from []PeerId) []PeerId {
	if n <= 0 || len(from) == 0 {
		return nil
	}
	if n >= len(from) {
		out := make([]PeerId, len(from))
		copy(out, from)
		return out
	}

	shuffled := make([]PeerId, len(from))
	copy(shuffled, from)
	c.r.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// discardApplication drops every message; used when a Router is built
// purely as a relay with no local delivery target.
type discardApplication struct{}

func (discardApplication) OnMessage(Topic, []byte, PeerId) {}

// DiscardApplication returns an Application that ignores every message.
func DiscardApplication() Application { return discardApplication{} }
