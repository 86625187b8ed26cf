package gossipsub

// ConnHandle is the opaque, transport-owned connection handle
// associated with a peer; the core never inspects it. Keeping identity
// (PeerId) and transport handle (ConnHandle) as separate types instead
// of e.g. a bare string->string map is the re-architecture hint §9
// calls out explicitly about the original source's peer table.
type ConnHandle any

// registry is the topic/subscription registry (§4.1, subcomponent
// 2.1): the local node's own subscriptions, the set of known peers,
// and — as a supplemental feature this module adds to resolve §9's
// open question about peer-subscription awareness — which remote
// peers are known to subscribe to which topics.
type registry struct {
	peers  map[PeerId]ConnHandle
	topics map[Topic]struct{}

	// subscribersOf[t] is the set of peers known (via SUBSCRIBE
	// control frames) to be subscribed to t; topicsOf is its inverse,
	// kept in sync so remove_peer can cascade in O(topics-for-peer)
	// rather than scanning every topic.
	subscribersOf map[Topic]map[PeerId]struct{}
	topicsOf      map[PeerId]map[Topic]struct{}
}

func newRegistry() *registry {
	return &registry{
		peers:         make(map[PeerId]ConnHandle),
		topics:        make(map[Topic]struct{}),
		subscribersOf: make(map[Topic]map[PeerId]struct{}),
		topicsOf:      make(map[PeerId]map[Topic]struct{}),
	}
}

func (r *registry) addPeer(p PeerId, handle ConnHandle) {
	r.peers[p] = handle
}

func (r *registry) hasPeer(p PeerId) bool {
	_, ok := r.peers[p]
	return ok
}

func (r *registry) removePeer(p PeerId) {
	delete(r.peers, p)
	for t := range r.topicsOf[p] {
		delete(r.subscribersOf[t], p)
		if len(r.subscribersOf[t]) == 0 {
			delete(r.subscribersOf, t)
		}
	}
	delete(r.topicsOf, p)
}

func (r *registry) allPeers() []PeerId {
	out := make([]PeerId, 0, len(r.peers))
	for p := range r.peers {
		out = append(out, p)
	}
	return out
}

func (r *registry) isSubscribed(t Topic) bool {
	_, ok := r.topics[t]
	return ok
}

func (r *registry) addTopic(t Topic) {
	r.topics[t] = struct{}{}
}

func (r *registry) removeTopic(t Topic) {
	delete(r.topics, t)
}

// markSubscribed records that peer p is known to subscribe to t.
func (r *registry) markSubscribed(p PeerId, t Topic) {
	if _, ok := r.subscribersOf[t]; !ok {
		r.subscribersOf[t] = make(map[PeerId]struct{})
	}
	r.subscribersOf[t][p] = struct{}{}

	if _, ok := r.topicsOf[p]; !ok {
		r.topicsOf[p] = make(map[Topic]struct{})
	}
	r.topicsOf[p][t] = struct{}{}
}

// markUnsubscribed forgets that peer p subscribes to t.
func (r *registry) markUnsubscribed(p PeerId, t Topic) {
	if set, ok := r.subscribersOf[t]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(r.subscribersOf, t)
		}
	}
	if set, ok := r.topicsOf[p]; ok {
		delete(set, t)
		if len(set) == 0 {
			delete(r.topicsOf, p)
		}
	}
}

// isKnownSubscriber reports whether p is a known subscriber of t. A
// peer we have no subscription information for is treated as not
// subscribed. Mesh and fanout selection apply the same rule through
// subscribersOfTopic; gossip (IHAVE) peer selection does not consult
// subscriptions and picks from every known peer.
func (r *registry) isKnownSubscriber(p PeerId, t Topic) bool {
	_, ok := r.subscribersOf[t][p]
	return ok
}

// topicsList returns every locally-subscribed topic, sorted, so
// heartbeat processing order is deterministic (§4.6).
func (r *registry) topicsList() []Topic {
	out := make([]Topic, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	sortTopics(out)
	return out
}

func (r *registry) subscribersOfTopic(t Topic) []PeerId {
	set := r.subscribersOf[t]
	out := make([]PeerId, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
