package gossipsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMesh(cfg *Config) (*meshManager, *registry) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	reg := newRegistry()
	return newMeshManager(reg, cfg, sortedRng{}), reg
}

func TestEligibleCandidatesExcludesBackedOffAndMeshMembers(t *testing.T) {
	const T Topic = "T"
	m, reg := newTestMesh(nil)

	reg.markSubscribed("A", T)
	reg.markSubscribed("B", T)
	reg.markSubscribed("C", T)
	m.admit(T, "A")
	m.graftBackoff.set(T, "B", 0, 1000)

	candidates := m.eligibleCandidates(T, 500)
	assert.ElementsMatch(t, []PeerId{"C"}, candidates)
}

func TestGraftFloodWindowDetectsRapidRegraft(t *testing.T) {
	const T Topic = "T"
	cfg := DefaultConfig()
	cfg.GraftFloodThreshold = 10_000 * time.Millisecond
	m, _ := newTestMesh(cfg)

	assert.False(t, m.graftFloodWindow(T, "A", 0), "first GRAFT is never flooding")
	assert.True(t, m.graftFloodWindow(T, "A", 5_000), "second GRAFT within the window is flooding")
	assert.False(t, m.graftFloodWindow(T, "A", 25_000), "a GRAFT after the window has elapsed is not flooding")
}

func TestEvaluateGraftRejectsWhenMeshFull(t *testing.T) {
	const T Topic = "T"
	cfg := DefaultConfig()
	cfg.MeshHigh = 2
	m, reg := newTestMesh(cfg)
	reg.addTopic(T)
	m.admit(T, "A")
	m.admit(T, "B")

	decision := m.evaluateGraft(T, "C", 0)
	assert.Equal(t, graftMeshFull, decision)
}

func TestEvaluateGraftRejectsWhenNotSubscribed(t *testing.T) {
	const T Topic = "T"
	m, _ := newTestMesh(nil)
	assert.Equal(t, graftNotSubscribed, m.evaluateGraft(T, "A", 0))
}

func TestEvaluateGraftAdmitsOtherwise(t *testing.T) {
	const T Topic = "T"
	m, reg := newTestMesh(nil)
	reg.addTopic(T)
	assert.Equal(t, graftAdmitted, m.evaluateGraft(T, "A", 0))
}

func TestBackoffCleanupDropsExpiredAndEmptySubmaps(t *testing.T) {
	b := newBackoffMap()
	b.set("T", "A", 0, 1000)
	b.cleanup(2000)

	_, ok := b.byTopic["T"]
	require.False(t, ok, "emptied per-topic submap should be dropped entirely")
}

func TestSelectToPruneExcludesDirectPeers(t *testing.T) {
	const T Topic = "T"
	m, _ := newTestMesh(nil)
	m.admit(T, "A")
	m.admit(T, "B")
	m.addDirectPeer("A")

	pruned := m.selectToPrune(T, 2)
	assert.NotContains(t, pruned, PeerId("A"))
}
