package gossipsub

// gossipEngine owns NodeState's history and iwant_pending (§4.5,
// subcomponent 2.5): maintaining per-topic recent-id history, emitting
// IHAVE on heartbeat, answering incoming IHAVE with IWANT, and
// tracking the IWANTs we are still waiting on.
type gossipEngine struct {
	reg    *registry
	mesh   *meshManager
	config *Config
	rng    Rng

	history map[Topic][]MessageId
	pending *iwantPending
}

func newGossipEngine(reg *registry, mesh *meshManager, config *Config, rng Rng) *gossipEngine {
	return &gossipEngine{
		reg:     reg,
		mesh:    mesh,
		config:  config,
		rng:     rng,
		history: make(map[Topic][]MessageId),
		pending: newIwantPending(),
	}
}

// appendHistory records id as the most recent for topic t, trimming
// the front so |history[t]| <= 3*GossipSize (§4.5, invariant §8.5).
func (g *gossipEngine) appendHistory(t Topic, id MessageId) {
	h := append(g.history[t], id)
	if max := g.config.historyWindow(); len(h) > max {
		h = h[len(h)-max:]
	}
	g.history[t] = h
}

// historySuffix returns the suffix of history[t] of length
// min(len(history[t]), GossipSize), used for IHAVE emission.
func (g *gossipEngine) historySuffix(t Topic) []MessageId {
	h := g.history[t]
	n := g.config.GossipSize
	if len(h) < n {
		n = len(h)
	}
	if n == 0 {
		return nil
	}
	out := make([]MessageId, n)
	copy(out, h[len(h)-n:])
	return out
}

// selectGossipPeers picks up to GossipSize peers that are known but
// not already in mesh[t], pseudo-randomly, for IHAVE emission.
func (g *gossipEngine) selectGossipPeers(t Topic) []PeerId {
	candidates := make([]PeerId, 0)
	for _, p := range g.reg.allPeers() {
		if g.mesh.inMesh(t, p) {
			continue
		}
		candidates = append(candidates, p)
	}
	return g.rng.Pick(g.config.GossipSize, candidates)
}

// onIHaveReceived filters ids down to ones neither seen nor cached,
// caps the result to MaxIHaveLength, records each as a pending IWANT
// request, and returns the ids the caller should IWANT.
func (g *gossipEngine) onIHaveReceived(ids []MessageId, nowMs int64, seen *seenSet, cache *messageCache) []MessageId {
	wanted := make([]MessageId, 0, len(ids))
	for _, id := range ids {
		if seen.has(id) || cache.has(id) {
			continue
		}
		wanted = append(wanted, id)
		if len(wanted) >= g.config.MaxIHaveLength {
			break
		}
	}
	for _, id := range wanted {
		g.pending.track(id, nowMs)
	}
	return wanted
}

// resolveIWant returns the cached messages matching the requested ids,
// in request order; missing ids are silently dropped (§4.4).
func (g *gossipEngine) resolveIWant(ids []MessageId, cache *messageCache) []*Message {
	out := make([]*Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := cache.get(id); ok {
			out = append(out, msg)
		}
	}
	return out
}

// fulfillIwant marks id as no longer pending, called when a PUBLISH
// satisfying it is accepted for the first time (a duplicate already in
// the seen-set is dropped before this point).
func (g *gossipEngine) fulfillIwant(id MessageId) {
	g.pending.fulfill(id)
}

// cleanupExpiredIwant drops pending IWANTs older than ttlMs (§4.5 IWANT
// TTL GC, §4.6 step 2).
func (g *gossipEngine) cleanupExpiredIwant(nowMs int64, ttlMs int64) {
	g.pending.cleanupExpired(nowMs, ttlMs)
}

func (g *gossipEngine) removeTopic(t Topic) {
	delete(g.history, t)
}
