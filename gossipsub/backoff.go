package gossipsub

// backoffMap tracks, per topic, the expiry timestamp (ms, per Clock)
// before which a peer must not be (re-)GRAFTed. NodeState keeps two
// independent instances — graftBackoff and pruneBackoff — because
// although both keep a peer out of the GRAFT candidates chosen at
// bootstrap and expand, they are set by distinct
// triggers (§4.2: PRUNEing a peer vs. being PRUNEd / flooding us with
// GRAFTs). The teacher's BackoffTracker (gossipsub/cache.go, held by a
// single field on MeshManager) unifies both into one map keyed by
// "peer:topic"; this module keeps that same map-keyed-by-peer
// mechanics but instantiates it twice to match this spec's NodeState
// model (graft_backoff, prune_backoff) exactly.
type backoffMap struct {
	byTopic map[Topic]map[PeerId]int64 // topic -> peer -> expiry (ms)
}

func newBackoffMap() *backoffMap {
	return &backoffMap{byTopic: make(map[Topic]map[PeerId]int64)}
}

// set installs a back-off for peer on topic expiring at nowMs+duration.
func (b *backoffMap) set(topic Topic, peer PeerId, nowMs int64, durationMs int64) {
	m, ok := b.byTopic[topic]
	if !ok {
		m = make(map[PeerId]int64)
		b.byTopic[topic] = m
	}
	m[peer] = nowMs + durationMs
}

// active reports whether peer is currently backed off on topic.
func (b *backoffMap) active(topic Topic, peer PeerId, nowMs int64) bool {
	m, ok := b.byTopic[topic]
	if !ok {
		return false
	}
	expiry, ok := m[peer]
	if !ok {
		return false
	}
	return expiry > nowMs
}

// expiry returns the raw expiry timestamp for peer on topic, if any.
func (b *backoffMap) expiry(topic Topic, peer PeerId) (int64, bool) {
	m, ok := b.byTopic[topic]
	if !ok {
		return 0, false
	}
	v, ok := m[peer]
	return v, ok
}

// cleanup drops every entry whose expiry is <= nowMs, and drops the
// per-topic submap entirely once it is empty (§4.6 step 4).
func (b *backoffMap) cleanup(nowMs int64) {
	for topic, m := range b.byTopic {
		for peer, expiry := range m {
			if expiry <= nowMs {
				delete(m, peer)
			}
		}
		if len(m) == 0 {
			delete(b.byTopic, topic)
		}
	}
}

// clearPeer removes every back-off entry for peer across all topics;
// used by remove_peer (§4.1 cascade, invariant §3.7).
func (b *backoffMap) clearPeer(peer PeerId) {
	for topic, m := range b.byTopic {
		delete(m, peer)
		if len(m) == 0 {
			delete(b.byTopic, topic)
		}
	}
}

// clearTopic drops every back-off entry for topic; used by unsubscribe.
func (b *backoffMap) clearTopic(topic Topic) {
	delete(b.byTopic, topic)
}
