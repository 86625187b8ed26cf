package gossipsub

import "sort"

// sortTopics orders topics lexicographically so heartbeat's per-topic
// loop runs in a deterministic sequence, matching §4.6's requirement
// that "ordering inside a heartbeat MUST be deterministic to ease
// testing".
func sortTopics(topics []Topic) []Topic {
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}

// Heartbeat runs the periodic maintenance tick (subcomponent 2.6,
// §4.6). It must be invoked by an external scheduler every
// HeartbeatInterval — this module never starts a timer of its own,
// since firing the tick is explicitly an external-collaborator concern
// (§1's Out of scope: "Clock source and timer scheduling"). See
// scheduler.go for an optional, separate helper that does own a timer
// for callers who want one.
//
// The five steps run in the fixed order §4.6 specifies:
//  1. per-topic mesh maintenance, then IHAVE emission
//  2. expire pending IWANT requests
//  3. evict expired cache entries
//  4. evict expired back-off entries (both maps)
//  5. expire stale fanout topics
func (r *Router) Heartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.NowMs()
	topics := r.reg.topicsList()

	for _, t := range topics {
		toGraft, toPrune := r.mesh.heartbeatMaintenance(t, now)

		for _, p := range sortPeers(toGraft) {
			r.graftAndAdmit(t, p)
		}
		for _, p := range sortPeers(toPrune) {
			_ = r.sendPrune(t, p)
		}

		if ids := r.gossip.historySuffix(t); len(ids) > 0 {
			for _, p := range sortPeers(r.gossip.selectGossipPeers(t)) {
				_ = r.sendIHave(t, ids, p)
			}
		}
	}

	ttl := r.config.MessageCacheTTL.Milliseconds()
	r.gossip.cleanupExpiredIwant(now, ttl)
	r.cache.cleanupExpired(now, ttl)
	r.mesh.cleanupBackoffs(now)
	r.fanout.expireStale(now)
}
