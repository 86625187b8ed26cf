package gossipsub

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(local PeerId, cfg *Config, transport *fakeTransport, mock *clock.Mock, app *fakeApplication) *Router {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewRouter(local, cfg, transport, NewClockFrom(mock), sortedRng{}, app)
}

// Scenario 1 (§8): Publish fan-out.
func TestPublishFanOut(t *testing.T) {
	const T Topic = "T"
	p1, p2 := PeerId("P1"), PeerId("P2")

	mock := clock.NewMock()
	transport := newFakeTransport()
	app := newFakeApplication()
	cfg := DefaultConfig()
	cfg.MeshSize = 2
	cfg.MeshLow = 1

	r := newTestRouter("local", cfg, transport, mock, app)
	r.AddPeer(p1, nil)
	r.AddPeer(p2, nil)
	r.reg.markSubscribed(p1, T)
	r.reg.markSubscribed(p2, T)
	r.Subscribe(T)

	require.ElementsMatch(t, []PeerId{p1, p2}, r.MeshPeers(T))
	transport.reset()

	id, err := r.Publish(T, []byte("hello"))
	require.NoError(t, err)

	pubs := transport.framesOfKind(Publish)
	require.Len(t, pubs, 2)
	seenPeers := []PeerId{}
	for _, f := range pubs {
		seenPeers = append(seenPeers, f.peer)
		assert.Equal(t, id, f.frame.Id)
	}
	assert.ElementsMatch(t, []PeerId{p1, p2}, seenPeers)

	assert.True(t, r.HasSeen(id))
	assert.True(t, r.HasCached(id))
	assert.Contains(t, r.History(T), id)
}

// Scenario 2 (§8): Dedup.
func TestHandleIncomingDedup(t *testing.T) {
	const T Topic = "T"
	peerA := PeerId("A")

	mock := clock.NewMock()
	transport := newFakeTransport()
	app := newFakeApplication()

	r := newTestRouter("local", nil, transport, mock, app)
	r.AddPeer(peerA, nil)
	r.Subscribe(T)

	from := peerA
	msg := &Message{Kind: Publish, Id: "X", Timestamp: 1, From: &from, Topic: strPtr(T), Content: []byte("hi")}

	require.NoError(t, r.HandleIncoming(msg, peerA))
	require.NoError(t, r.HandleIncoming(msg, peerA))

	assert.Equal(t, 1, app.count())
}

// Scenario 3 (§8): IHAVE/IWANT round trip, across two independent routers.
func TestIHaveIWantRoundTrip(t *testing.T) {
	const T Topic = "T"
	idA, idB := PeerId("A"), PeerId("B")

	mockA, mockB := clock.NewMock(), clock.NewMock()
	transportA, transportB := newFakeTransport(), newFakeTransport()
	appA, appB := newFakeApplication(), newFakeApplication()

	cfg := DefaultConfig()
	cfg.GossipSize = 3

	a := newTestRouter(idA, cfg, transportA, mockA, appA)
	b := newTestRouter(idB, cfg, transportB, mockB, appB)

	a.AddPeer(idB, nil)
	a.Subscribe(T) // mesh stays empty: B is not a known subscriber
	b.AddPeer(idA, nil)
	b.Subscribe(T)

	ids := make([]MessageId, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := a.Publish(T, []byte{byte(i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.Empty(t, a.MeshPeers(T), "B was never a known subscriber so mesh stays empty")

	transportA.reset()
	a.Heartbeat()

	ihaves := transportA.framesTo(idB, IHave)
	require.Len(t, ihaves, 1)
	assert.ElementsMatch(t, ids, ihaves[0].MessageIds)

	require.NoError(t, b.HandleIncoming(ihaves[0], idA))
	iwants := transportB.framesTo(idA, IWant)
	require.Len(t, iwants, 1)
	assert.ElementsMatch(t, ids, iwants[0].MessageIds)

	transportA.reset()
	require.NoError(t, a.HandleIncoming(iwants[0], idB))
	pubs := transportA.framesTo(idB, Publish)
	require.Len(t, pubs, 3)

	for _, f := range pubs {
		require.NoError(t, b.HandleIncoming(f, idA))
	}
	for _, id := range ids {
		assert.True(t, b.HasCached(id))
	}
}

// Scenario 4 (§8): GRAFT accepted.
func TestGraftAccepted(t *testing.T) {
	const T Topic = "T"
	peerB := PeerId("B")

	mock := clock.NewMock()
	transport := newFakeTransport()
	r := newTestRouter("local", nil, transport, mock, newFakeApplication())
	r.AddPeer(peerB, nil)
	r.Subscribe(T)

	require.NoError(t, r.HandleIncoming(&Message{Kind: Graft, Topic: strPtr(T)}, peerB))

	assert.Contains(t, r.MeshPeers(T), peerB)
	assert.Empty(t, transport.framesTo(peerB, Prune))
}

// Scenario 5 (§8): GRAFT rejected when mesh is full.
func TestGraftRejectedWhenFull(t *testing.T) {
	const T Topic = "T"

	mock := clock.NewMock()
	transport := newFakeTransport()
	cfg := DefaultConfig()
	r := newTestRouter("local", cfg, transport, mock, newFakeApplication())
	r.Subscribe(T)

	for i := 0; i < cfg.MeshHigh; i++ {
		p := PeerId(string(rune('a' + i)))
		r.AddPeer(p, nil)
		r.mesh.admit(T, p)
	}
	require.Equal(t, cfg.MeshHigh, len(r.MeshPeers(T)))

	newPeer := PeerId("newcomer")
	r.AddPeer(newPeer, nil)
	require.NoError(t, r.HandleIncoming(&Message{Kind: Graft, Topic: strPtr(T)}, newPeer))

	assert.NotContains(t, r.MeshPeers(T), newPeer)
	assert.Len(t, transport.framesTo(newPeer, Prune), 1)
}

// Scenario 6 (§8): PRUNE sets back-off, and a subsequent expand does
// not immediately re-GRAFT the pruning peer.
func TestPruneSetsBackoff(t *testing.T) {
	const T Topic = "T"
	peerB := PeerId("B")

	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	transport := newFakeTransport()
	cfg := DefaultConfig()
	r := newTestRouter("local", cfg, transport, mock, newFakeApplication())
	r.AddPeer(peerB, nil)
	r.reg.markSubscribed(peerB, T)
	r.Subscribe(T)
	r.mesh.admit(T, peerB)
	require.Contains(t, r.MeshPeers(T), peerB)

	nowBefore := mock.Now().UnixMilli()
	require.NoError(t, r.HandleIncoming(&Message{Kind: Prune, Topic: strPtr(T)}, peerB))

	assert.NotContains(t, r.MeshPeers(T), peerB)
	expiry, ok := r.GraftBackoffExpiry(T, peerB)
	require.True(t, ok)
	assert.Equal(t, nowBefore+cfg.GraftBackoff.Milliseconds(), expiry)

	// Force an expand (mesh below MeshLow): B must stay excluded while backed off.
	r.Heartbeat()
	assert.NotContains(t, r.MeshPeers(T), peerB)
}

func TestRemovePeerCascades(t *testing.T) {
	const T Topic = "T"
	peerB := PeerId("B")

	mock := clock.NewMock()
	transport := newFakeTransport()
	r := newTestRouter("local", nil, transport, mock, newFakeApplication())
	r.AddPeer(peerB, nil)
	r.Subscribe(T)
	r.mesh.admit(T, peerB)
	r.mesh.graftBackoff.set(T, peerB, mock.Now().UnixMilli(), 1000)
	r.fanout.fanout[T] = &fanoutTopic{peers: map[PeerId]struct{}{peerB: {}}}

	r.RemovePeer(peerB)

	assert.NotContains(t, r.MeshPeers(T), peerB)
	assert.NotContains(t, r.FanoutPeers(T), peerB)
	_, ok := r.GraftBackoffExpiry(T, peerB)
	assert.False(t, ok)
}

func TestPublishNotSubscribedErrors(t *testing.T) {
	mock := clock.NewMock()
	r := newTestRouter("local", nil, newFakeTransport(), mock, newFakeApplication())
	_, err := r.Publish("unknown-topic", []byte("x"))
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestHandleIncomingUnknownPeer(t *testing.T) {
	mock := clock.NewMock()
	r := newTestRouter("local", nil, newFakeTransport(), mock, newFakeApplication())
	err := r.HandleIncoming(&Message{Kind: Publish, Id: "x", Topic: strPtr("T")}, "stranger")
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestHistoryWindowBounded(t *testing.T) {
	const T Topic = "T"
	mock := clock.NewMock()
	cfg := DefaultConfig()
	cfg.GossipSize = 2
	r := newTestRouter("local", cfg, newFakeTransport(), mock, newFakeApplication())
	r.Subscribe(T)

	for i := 0; i < 10; i++ {
		_, err := r.Publish(T, []byte{byte(i)})
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, len(r.History(T)), 3*cfg.GossipSize)
}

// Relay-without-delivery: a PUBLISH on a topic the local node has not
// joined is still forwarded through mesh[topic] (§9 REDESIGN FLAG) but
// never reaches Application.OnMessage.
func TestHandleIncomingRelaysUnsubscribedTopic(t *testing.T) {
	const T Topic = "T"
	peerA, peerB := PeerId("A"), PeerId("B")

	mock := clock.NewMock()
	transport := newFakeTransport()
	app := newFakeApplication()
	r := newTestRouter("local", nil, transport, mock, app)
	r.AddPeer(peerA, nil)
	r.AddPeer(peerB, nil)
	r.mesh.ensureTopic(T)
	r.mesh.admit(T, peerB)

	from := peerA
	msg := &Message{Kind: Publish, Id: "X", From: &from, Topic: strPtr(T), Content: []byte("relay-me")}
	require.NoError(t, r.HandleIncoming(msg, peerA))

	assert.Equal(t, 0, app.count())
	pubs := transport.framesTo(peerB, Publish)
	require.Len(t, pubs, 1)
	assert.Equal(t, MessageId("X"), pubs[0].Id)
}
