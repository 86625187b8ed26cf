package gossipsub

// fanoutTopic is the per-topic shadow peer set used when publishing to
// a joined topic whose mesh is empty (subcomponent 2.3; Publish rejects
// topics the local node has not joined), plus the last-used timestamp
// NodeState's fanout map carries per §3.
type fanoutTopic struct {
	peers      map[PeerId]struct{}
	lastUsedMs int64
}

// fanoutManager owns NodeState's fanout map (§4.3). It shares the
// mesh manager's graft back-off map as its own "not blacklisted" check
// — peer scoring is out of scope for this module, so a peer currently
// serving a GRAFT back-off is the only concrete signal available for
// "not already in some peer's blacklist/back-off view".
type fanoutManager struct {
	reg    *registry
	config *Config
	rng    Rng
	mesh   *meshManager

	fanout map[Topic]*fanoutTopic
}

func newFanoutManager(reg *registry, config *Config, rng Rng, mesh *meshManager) *fanoutManager {
	return &fanoutManager{
		reg:    reg,
		config: config,
		rng:    rng,
		mesh:   mesh,
		fanout: make(map[Topic]*fanoutTopic),
	}
}

func (f *fanoutManager) has(t Topic) bool {
	_, ok := f.fanout[t]
	return ok
}

func (f *fanoutManager) peers(t Topic) []PeerId {
	ft, ok := f.fanout[t]
	if !ok {
		return nil
	}
	out := make([]PeerId, 0, len(ft.peers))
	for p := range ft.peers {
		out = append(out, p)
	}
	return out
}

// ensure lazily populates fanout[t] with up to GossipSize peers that
// are subscribed to t and not graft-backed-off, and marks it used now.
// If fanout[t] already exists it is only marked used, not re-populated
// (the caller is responsible for deciding when re-population is
// appropriate).
func (f *fanoutManager) ensure(t Topic, nowMs int64) {
	if f.has(t) {
		f.fanout[t].lastUsedMs = nowMs
		return
	}

	candidates := make([]PeerId, 0)
	for _, p := range f.reg.subscribersOfTopic(t) {
		if f.mesh.graftBackoff.active(t, p, nowMs) {
			continue
		}
		candidates = append(candidates, p)
	}
	selected := f.rng.Pick(f.config.GossipSize, candidates)

	set := make(map[PeerId]struct{}, len(selected))
	for _, p := range selected {
		set[p] = struct{}{}
	}
	f.fanout[t] = &fanoutTopic{peers: set, lastUsedMs: nowMs}
}

func (f *fanoutManager) markUsed(t Topic, nowMs int64) {
	if ft, ok := f.fanout[t]; ok {
		ft.lastUsedMs = nowMs
	}
}

// absorb returns fanout[t]'s peers (to seed a new mesh on subscribe)
// and deletes fanout[t], per §4.3's absorption rule and invariant §3.3
// (a peer is never in both structures for the same topic).
func (f *fanoutManager) absorb(t Topic) []PeerId {
	ft, ok := f.fanout[t]
	if !ok {
		return nil
	}
	out := make([]PeerId, 0, len(ft.peers))
	for p := range ft.peers {
		out = append(out, p)
	}
	delete(f.fanout, t)
	return out
}

func (f *fanoutManager) remove(t Topic) {
	delete(f.fanout, t)
}

// expireStale drops any fanout topic unused for longer than FanoutTTL
// (§4.3, heartbeat step 5).
func (f *fanoutManager) expireStale(nowMs int64) {
	for t, ft := range f.fanout {
		if nowMs-ft.lastUsedMs > f.config.FanoutTTL.Milliseconds() {
			delete(f.fanout, t)
		}
	}
}

// removePeer cascades a disconnect into every fanout set (§4.1).
func (f *fanoutManager) removePeer(p PeerId) {
	for _, ft := range f.fanout {
		delete(ft.peers, p)
	}
}
