package gossipsub

import "sync"

// fakeTransport records every frame handed to Send and lets tests
// inject a failure for a specific peer, to exercise §4.2's failure
// semantics (a failed GRAFT send must not admit the peer).
type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentFrame
	failFor map[PeerId]bool
}

type sentFrame struct {
	peer  PeerId
	frame *Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: make(map[PeerId]bool)}
}

func (f *fakeTransport) Send(peer PeerId, frame *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[peer] {
		return errSendFailed
	}
	f.sent = append(f.sent, sentFrame{peer: peer, frame: frame})
	return nil
}

func (f *fakeTransport) setFail(p PeerId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[p] = true
}

func (f *fakeTransport) framesTo(p PeerId, kind ControlKind) []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Message
	for _, s := range f.sent {
		if s.peer == p && s.frame.Kind == kind {
			out = append(out, s.frame)
		}
	}
	return out
}

func (f *fakeTransport) framesOfKind(kind ControlKind) []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentFrame
	for _, s := range f.sent {
		if s.frame.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

var errSendFailed = sendFailedErr{}

type sendFailedErr struct{}

func (sendFailedErr) Error() string { return "fake transport: send failed" }

// fakeApplication records every delivered payload.
type fakeApplication struct {
	mu        sync.Mutex
	delivered []delivery
}

type delivery struct {
	topic   Topic
	payload []byte
	from    PeerId
}

func newFakeApplication() *fakeApplication {
	return &fakeApplication{}
}

func (a *fakeApplication) OnMessage(topic Topic, payload []byte, from PeerId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delivered = append(a.delivered, delivery{topic: topic, payload: payload, from: from})
}

func (a *fakeApplication) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.delivered)
}

// sortedRng is a deterministic stand-in for the Rng collaborator: it
// always returns the first n candidates in sorted order, making mesh
// selection outcomes predictable for tests instead of pseudo-random.
type sortedRng struct{}

func (sortedRng) Pick(n int, from []PeerId) []PeerId {
	if n <= 0 || len(from) == 0 {
		return nil
	}
	cp := make([]PeerId, len(from))
	copy(cp, from)
	sortPeers(cp)
	if n > len(cp) {
		n = len(cp)
	}
	return cp[:n]
}
