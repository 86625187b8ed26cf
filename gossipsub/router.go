package gossipsub

import (
	"sort"
	"sync"

	"github.com/edgeflyer/GossipSub/internal/logging"
)

var log = logging.Logger("gossipsub")

// Router is the single in-process entry point (subcomponent 2.7),
// surrounded by the five subcomponents in registry.go, mesh.go,
// fanout.go, cache.go and gossip.go, all operating on state reachable
// only through Router.
//
// A Router is single-owner, single-threaded-cooperative (§5): every
// exported method takes an internal mutex so two calls never
// interleave, but callers must still not rely on any method
// suspending internally — every operation here is synchronous
// CPU-and-memory work plus non-blocking Transport.Send calls.
type Router struct {
	mu sync.Mutex

	localID PeerId
	config  *Config

	transport Transport
	clock     Clock
	rng       Rng
	app       Application

	reg    *registry
	cache  *messageCache
	seen   *seenSet
	mesh   *meshManager
	fanout *fanoutManager
	gossip *gossipEngine

	seq uint64
}

// NewRouter constructs an empty Router (§3's Lifecycle: "a Router is
// created empty"). config is copied and Validate()-ed so an invalid
// zero-value Config cannot wedge the mesh/heartbeat math.
func NewRouter(localID PeerId, config *Config, transport Transport, clock Clock, rng Rng, app Application) *Router {
	cfg := *config
	cfg.Validate()

	reg := newRegistry()
	mesh := newMeshManager(reg, &cfg, rng)

	if app == nil {
		app = DiscardApplication()
	}

	return &Router{
		localID:   localID,
		config:    &cfg,
		transport: transport,
		clock:     clock,
		rng:       rng,
		app:       app,
		reg:       reg,
		cache:     newMessageCache(cfg.CacheCapacity),
		seen:      newSeenSet(cfg.SeenCapacity),
		mesh:      mesh,
		fanout:    newFanoutManager(reg, &cfg, rng, mesh),
		gossip:    newGossipEngine(reg, mesh, &cfg, rng),
	}
}

func sortPeers(peers []PeerId) []PeerId {
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// send is the best-effort Transport call every outbound path funnels
// through: failures are logged and swallowed per §7's propagation
// policy, never surfaced to the caller and never retried.
// Each peer receives its own shallow copy of frame with To set to that
// peer, so a frame shared across recipients is never mutated.
func (r *Router) send(peer PeerId, frame *Message) error {
	out := *frame
	out.To = peerPtr(peer)
	if err := r.transport.Send(peer, &out); err != nil {
		log.Warn("transport send failed", "peer", peer, "kind", frame.Kind.String(), "err", err)
		return &TransportError{Peer: peer, Cause: err}
	}
	return nil
}

func (r *Router) sendGraft(t Topic, p PeerId) error {
	return r.send(p, &Message{Kind: Graft, Timestamp: r.clock.NowMs(), Topic: strPtr(t)})
}

func (r *Router) sendPrune(t Topic, p PeerId) error {
	return r.send(p, &Message{Kind: Prune, Timestamp: r.clock.NowMs(), Topic: strPtr(t)})
}

func (r *Router) sendIHave(t Topic, ids []MessageId, p PeerId) error {
	return r.send(p, &Message{Kind: IHave, Timestamp: r.clock.NowMs(), Topic: strPtr(t), MessageIds: ids})
}

func (r *Router) sendIWant(ids []MessageId, p PeerId) error {
	return r.send(p, &Message{Kind: IWant, Timestamp: r.clock.NowMs(), MessageIds: ids})
}

func (r *Router) sendSubAnnounce(kind ControlKind, t Topic, p PeerId) error {
	return r.send(p, &Message{Kind: kind, Timestamp: r.clock.NowMs(), Topic: strPtr(t)})
}

// graftAndAdmit sends GRAFT(t) to p and, only on success, admits p to
// mesh[t] — §4.2's failure semantics: a failed send never inserts the
// peer, and is not retried.
func (r *Router) graftAndAdmit(t Topic, p PeerId) {
	if err := r.sendGraft(t, p); err == nil {
		r.mesh.admit(t, p)
	}
}

// Subscribe joins topic t (§4.1). Idempotent: re-subscribing to an
// already-joined topic is a no-op.
func (r *Router) Subscribe(t Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reg.isSubscribed(t) {
		return
	}
	r.reg.addTopic(t)
	r.mesh.ensureTopic(t)
	now := r.clock.NowMs()

	// Absorb any existing fanout as the seed of the new mesh (§4.3).
	for _, p := range sortPeers(r.fanout.absorb(t)) {
		r.graftAndAdmit(t, p)
	}

	// Bootstrap the remainder up to MeshSize (§4.2 Bootstrap).
	if need := r.config.MeshSize - r.mesh.meshSize(t); need > 0 {
		for _, p := range sortPeers(r.mesh.selectToGraft(t, need, now)) {
			r.graftAndAdmit(t, p)
		}
	}

	for _, p := range sortPeers(r.reg.allPeers()) {
		_ = r.sendSubAnnounce(Subscribe, t, p)
	}
}

// Unsubscribe leaves topic t (§4.1): PRUNE every mesh peer, then
// discard mesh[t], fanout[t] and history[t].
func (r *Router) Unsubscribe(t Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reg.isSubscribed(t) {
		return
	}

	for _, p := range sortPeers(r.mesh.meshPeers(t)) {
		_ = r.sendPrune(t, p)
	}
	for _, p := range sortPeers(r.reg.allPeers()) {
		_ = r.sendSubAnnounce(Unsubscribe, t, p)
	}

	r.mesh.removeTopic(t)
	r.fanout.remove(t)
	r.gossip.removeTopic(t)
	r.reg.removeTopic(t)
}

// AddPeer registers a transport-layer peer. A duplicate call re-binds
// handle.
func (r *Router) AddPeer(p PeerId, handle ConnHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg.addPeer(p, handle)
}

// RemovePeer unregisters p and cascades the removal into every mesh,
// fanout and back-off structure (§4.1, invariants §3.1/§3.7). A no-op
// for an unknown peer.
func (r *Router) RemovePeer(p PeerId) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reg.removePeer(p)
	r.mesh.removePeer(p)
	r.fanout.removePeer(p)
}

// Publish sends payload on topic t to every peer in mesh[t] (or, if
// mesh[t] is empty, the lazily-populated fanout[t]). Returns the
// assigned MessageId.
func (r *Router) Publish(t Topic, payload []byte) (MessageId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reg.isSubscribed(t) {
		return "", ErrNotSubscribed
	}

	now := r.clock.NowMs()
	r.seq++
	id := contentMessageId(r.localID, t, r.seq, payload)
	from := r.localID
	msg := &Message{
		Kind:      Publish,
		Id:        id,
		Timestamp: now,
		From:      &from,
		Topic:     strPtr(t),
		Content:   payload,
	}

	r.seen.add(id)
	r.cache.put(msg, now)
	r.gossip.appendHistory(t, id)

	peers := r.mesh.meshPeers(t)
	if len(peers) == 0 {
		r.fanout.ensure(t, now)
		peers = r.fanout.peers(t)
	} else {
		r.fanout.markUsed(t, now)
	}

	for _, p := range sortPeers(peers) {
		_ = r.send(p, msg)
	}

	return id, nil
}

// HandleIncoming dispatches an already-decoded frame received from
// fromPeer (§4.7). Duplicate PUBLISHes are accepted and dropped
// without side effect; malformed frames and frames from unregistered
// peers return an error instead of panicking.
func (r *Router) HandleIncoming(msg *Message, fromPeer PeerId) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reg.hasPeer(fromPeer) {
		return ErrUnknownPeer
	}

	switch msg.Kind {
	case Publish:
		return r.handlePublish(msg, fromPeer)
	case IHave:
		return r.handleIHave(msg, fromPeer)
	case IWant:
		return r.handleIWant(msg, fromPeer)
	case Graft:
		return r.handleGraft(msg, fromPeer)
	case Prune:
		return r.handlePrune(msg, fromPeer)
	case Subscribe:
		return r.handleSubscribe(msg, fromPeer)
	case Unsubscribe:
		return r.handleUnsubscribe(msg, fromPeer)
	default:
		return ErrInvalidFrame
	}
}

func (r *Router) handlePublish(msg *Message, from PeerId) error {
	if msg.Topic == nil || msg.Id == "" {
		return ErrInvalidFrame
	}
	t := *msg.Topic

	if r.seen.has(msg.Id) {
		return nil // dedup (§4.7 step 1)
	}
	r.seen.add(msg.Id)
	r.cache.put(msg, r.clock.NowMs())
	r.gossip.fulfillIwant(msg.Id)

	if r.reg.isSubscribed(t) {
		r.app.OnMessage(t, msg.Content, from)
		r.gossip.appendHistory(t, msg.Id)
	}
	// Relay through mesh regardless of local subscription (§9 REDESIGN
	// FLAG: a routing-only node relays without delivering locally).
	for _, p := range sortPeers(r.mesh.meshPeers(t)) {
		if p == from {
			continue
		}
		_ = r.send(p, msg)
	}
	return nil
}

func (r *Router) handleIHave(msg *Message, from PeerId) error {
	if msg.Topic == nil {
		return ErrInvalidFrame
	}
	t := *msg.Topic
	if !r.reg.isSubscribed(t) {
		return nil
	}
	wanted := r.gossip.onIHaveReceived(msg.MessageIds, r.clock.NowMs(), r.seen, r.cache)
	if len(wanted) == 0 {
		return nil
	}
	return r.sendIWant(wanted, from)
}

func (r *Router) handleIWant(msg *Message, from PeerId) error {
	for _, m := range r.gossip.resolveIWant(msg.MessageIds, r.cache) {
		_ = r.send(from, m)
	}
	return nil
}

func (r *Router) handleGraft(msg *Message, from PeerId) error {
	if msg.Topic == nil {
		return ErrInvalidFrame
	}
	t := *msg.Topic
	now := r.clock.NowMs()

	switch r.mesh.evaluateGraft(t, from, now) {
	case graftAdmitted:
		r.mesh.admit(t, from)
	default:
		_ = r.sendPrune(t, from)
	}
	return nil
}

func (r *Router) handlePrune(msg *Message, from PeerId) error {
	if msg.Topic == nil {
		return ErrInvalidFrame
	}
	r.mesh.onPruneReceived(*msg.Topic, from, r.clock.NowMs())
	return nil
}

func (r *Router) handleSubscribe(msg *Message, from PeerId) error {
	if msg.Topic == nil {
		return ErrInvalidFrame
	}
	r.reg.markSubscribed(from, *msg.Topic)
	return nil
}

func (r *Router) handleUnsubscribe(msg *Message, from PeerId) error {
	if msg.Topic == nil {
		return ErrInvalidFrame
	}
	r.reg.markUnsubscribed(from, *msg.Topic)
	return nil
}

// --- Introspection, used by tests and by operators wiring metrics ---

func (r *Router) MeshPeers(t Topic) []PeerId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortPeers(r.mesh.meshPeers(t))
}

func (r *Router) FanoutPeers(t Topic) []PeerId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortPeers(r.fanout.peers(t))
}

func (r *Router) History(t Topic) []MessageId {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.gossip.history[t]
	out := make([]MessageId, len(h))
	copy(out, h)
	return out
}

func (r *Router) HasSeen(id MessageId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen.has(id)
}

func (r *Router) HasCached(id MessageId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.has(id)
}

func (r *Router) IsSubscribed(t Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg.isSubscribed(t)
}

// GraftBackoffExpiry returns the graft_backoff[t][p] expiry, if any.
func (r *Router) GraftBackoffExpiry(t Topic, p PeerId) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mesh.graftBackoff.expiry(t, p)
}

// PruneBackoffExpiry returns the prune_backoff[t][p] expiry, if any.
func (r *Router) PruneBackoffExpiry(t Topic, p PeerId) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mesh.pruneBackoff.expiry(t, p)
}

// AddDirectPeer marks p, for every topic, as immune to contraction (a
// heartbeat never PRUNEs it); it does not make p eligible for bootstrap
// or expand beyond the usual rules — a small additive extension beyond the
// distilled spec (see SPEC_FULL.md §12), grounded on the teacher's
// mesh.go direct-peers concept.
func (r *Router) AddDirectPeer(p PeerId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mesh.addDirectPeer(p)
}

func (r *Router) RemoveDirectPeer(p PeerId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mesh.removeDirectPeer(p)
}
