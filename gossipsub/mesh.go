package gossipsub

// meshManager owns NodeState's mesh map and the two back-off maps
// (subcomponent 2.2). It never sends frames itself — Router does that
// and reports back success/failure, because §4.2's failure semantics
// require a peer to be admitted to mesh[t] only when the GRAFT send
// actually succeeded. This separation mirrors the teacher's mesh.go
// (MeshManager), with the same optimistic-admission-after-send
// ordering but generalized to this spec's two distinct back-off maps.
type meshManager struct {
	reg    *registry
	config *Config
	rng    Rng

	mesh map[Topic]map[PeerId]struct{}

	graftBackoff *backoffMap
	pruneBackoff *backoffMap

	// lastGraftAtMs tracks, per peer per topic, when we last admitted
	// (or considered) a GRAFT from that peer — the rolling window used
	// by the anti-flood heuristic (§4.2's is_flooding / §9's decision
	// to implement it as "last GRAFT timestamp within the window").
	lastGraftAtMs map[Topic]map[PeerId]int64

	// directPeers are immune to contraction, a supplemental feature
	// beyond the distilled spec (SPEC_FULL.md §12). They get no other
	// special treatment: bootstrap and expand select them only under the
	// same eligibility rules as any other peer.
	directPeers map[PeerId]struct{}
}

func newMeshManager(reg *registry, config *Config, rng Rng) *meshManager {
	return &meshManager{
		reg:           reg,
		config:        config,
		rng:           rng,
		mesh:          make(map[Topic]map[PeerId]struct{}),
		graftBackoff:  newBackoffMap(),
		pruneBackoff:  newBackoffMap(),
		lastGraftAtMs: make(map[Topic]map[PeerId]int64),
		directPeers:   make(map[PeerId]struct{}),
	}
}

func (m *meshManager) addDirectPeer(p PeerId)    { m.directPeers[p] = struct{}{} }
func (m *meshManager) removeDirectPeer(p PeerId) { delete(m.directPeers, p) }
func (m *meshManager) isDirectPeer(p PeerId) bool {
	_, ok := m.directPeers[p]
	return ok
}

func (m *meshManager) ensureTopic(t Topic) {
	if _, ok := m.mesh[t]; !ok {
		m.mesh[t] = make(map[PeerId]struct{})
	}
}

func (m *meshManager) meshPeers(t Topic) []PeerId {
	set := m.mesh[t]
	out := make([]PeerId, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

func (m *meshManager) meshSize(t Topic) int { return len(m.mesh[t]) }

func (m *meshManager) inMesh(t Topic, p PeerId) bool {
	_, ok := m.mesh[t][p]
	return ok
}

// eligibleCandidates returns peers that are known subscribers of t,
// not already in mesh[t], and not under an active graft_backoff or
// prune_backoff for t — the eligibility contract shared by bootstrap
// and expand (§4.2).
func (m *meshManager) eligibleCandidates(t Topic, nowMs int64) []PeerId {
	out := make([]PeerId, 0)
	for _, p := range m.reg.subscribersOfTopic(t) {
		if m.inMesh(t, p) {
			continue
		}
		if m.graftBackoff.active(t, p, nowMs) || m.pruneBackoff.active(t, p, nowMs) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// selectToGraft picks up to n eligible peers, pseudo-randomly, for
// bootstrap or expand.
func (m *meshManager) selectToGraft(t Topic, n int, nowMs int64) []PeerId {
	if n <= 0 {
		return nil
	}
	candidates := m.eligibleCandidates(t, nowMs)
	return m.rng.Pick(n, candidates)
}

// admit inserts p into mesh[t]; called only after a successful GRAFT
// send (bootstrap/expand) or for an accepted incoming GRAFT.
func (m *meshManager) admit(t Topic, p PeerId) {
	m.ensureTopic(t)
	m.mesh[t][p] = struct{}{}
}

// selectToPrune picks n peers to evict during contract, pseudo-randomly,
// excluding direct peers (which are immune to contraction).
func (m *meshManager) selectToPrune(t Topic, n int) []PeerId {
	if n <= 0 {
		return nil
	}
	candidates := make([]PeerId, 0)
	for _, p := range m.meshPeers(t) {
		if m.isDirectPeer(p) {
			continue
		}
		candidates = append(candidates, p)
	}
	return m.rng.Pick(n, candidates)
}

// evict removes p from mesh[t] and sets prune_backoff[t][p], used by
// contract (local decision to prune).
func (m *meshManager) evict(t Topic, p PeerId, nowMs int64) {
	delete(m.mesh[t], p)
	m.pruneBackoff.set(t, p, nowMs, m.config.PruneBackoff.Milliseconds())
}

// heartbeatMaintenance runs §4.2's expand/contract step for topic t and
// returns the peers to GRAFT and the peers to PRUNE (eviction and
// back-off have already been applied to the prune list; the caller
// only needs to send the frames).
func (m *meshManager) heartbeatMaintenance(t Topic, nowMs int64) (toGraft, toPrune []PeerId) {
	size := m.meshSize(t)

	if size < m.config.MeshLow {
		need := m.config.MeshSize - size
		toGraft = m.selectToGraft(t, need, nowMs)
	} else if size > m.config.MeshHigh {
		excess := size - m.config.MeshSize
		toPrune = m.selectToPrune(t, excess)
		for _, p := range toPrune {
			m.evict(t, p, nowMs)
		}
	}
	return toGraft, toPrune
}

// graftFloodWindow reports whether admitting a GRAFT from p on t right
// now would be within GraftFloodThreshold of the previous GRAFT from
// the same peer on the same topic, and records nowMs as the latest
// GRAFT time regardless of the verdict (the window always slides).
func (m *meshManager) graftFloodWindow(t Topic, p PeerId, nowMs int64) bool {
	byPeer, ok := m.lastGraftAtMs[t]
	if !ok {
		byPeer = make(map[PeerId]int64)
		m.lastGraftAtMs[t] = byPeer
	}
	last, seen := byPeer[p]
	byPeer[p] = nowMs
	if !seen {
		return false
	}
	return nowMs-last < m.config.GraftFloodThreshold.Milliseconds()
}

// graftDecision is the outcome of evaluating an incoming GRAFT(t) from p.
type graftDecision int

const (
	graftNotSubscribed graftDecision = iota
	graftFlooding
	graftMeshFull
	graftAdmitted
)

// evaluateGraft implements §4.2's incoming-GRAFT contract. It mutates
// back-off/flood-tracking state as a side effect (the flood window
// always slides, and a flooding GRAFT sets graft_backoff),
// but never mutates mesh[t] itself — the caller admits on
// graftAdmitted.
func (m *meshManager) evaluateGraft(t Topic, p PeerId, nowMs int64) graftDecision {
	if !m.reg.isSubscribed(t) {
		return graftNotSubscribed
	}
	if m.graftFloodWindow(t, p, nowMs) {
		m.graftBackoff.set(t, p, nowMs, m.config.GraftBackoff.Milliseconds())
		return graftFlooding
	}
	if m.meshSize(t) >= m.config.MeshHigh {
		return graftMeshFull
	}
	return graftAdmitted
}

// onPruneReceived implements §4.2's incoming-PRUNE contract: evict p
// from mesh[t] if present, and set graft_backoff[t][p] so we do not
// immediately re-GRAFT a peer that just rejected us.
func (m *meshManager) onPruneReceived(t Topic, p PeerId, nowMs int64) {
	delete(m.mesh[t], p)
	m.graftBackoff.set(t, p, nowMs, m.config.GraftBackoff.Milliseconds())
}

// removePeer cascades a disconnect into every mesh and both back-off
// maps (§4.1, invariants §3.1 and §3.7).
func (m *meshManager) removePeer(p PeerId) {
	for _, set := range m.mesh {
		delete(set, p)
	}
	m.graftBackoff.clearPeer(p)
	m.pruneBackoff.clearPeer(p)
	for _, byPeer := range m.lastGraftAtMs {
		delete(byPeer, p)
	}
}

// removeTopic drops every trace of topic t: its mesh, its back-off
// entries, and its flood-tracking state. Used by unsubscribe.
func (m *meshManager) removeTopic(t Topic) {
	delete(m.mesh, t)
	m.graftBackoff.clearTopic(t)
	m.pruneBackoff.clearTopic(t)
	delete(m.lastGraftAtMs, t)
}

// cleanupBackoffs drops expired entries from both back-off maps
// (§4.6 step 4).
func (m *meshManager) cleanupBackoffs(nowMs int64) {
	m.graftBackoff.cleanup(nowMs)
	m.pruneBackoff.cleanup(nowMs)
}
