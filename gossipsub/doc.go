// Package gossipsub implements the per-node protocol state machine of a
// GossipSub-style publish/subscribe routing engine: topic membership,
// mesh construction and maintenance (GRAFT/PRUNE), lazy-push gossip
// advertisement and pull (IHAVE/IWANT), fanout handling for publishes
// on a joined topic whose mesh is empty, message deduplication and
// caching, and the
// back-off/flood-control policies that protect the mesh from rapid
// churn and misbehavior.
//
// The package deliberately does not implement a transport, peer
// discovery, identity, clock source, or message signing — those are
// external collaborators, consumed through the Transport, Clock, Rng
// and Application interfaces in collaborators.go. A Router is the
// single entry point; all of its public methods are meant to be called
// serially by a single owner (see the Router doc comment).
//
// Usage:
//
//	r := gossipsub.NewRouter(localID, gossipsub.DefaultConfig(), transport, clock, rng, app)
//	r.AddPeer(peerA, handleA)
//	r.Subscribe("feed")
//	id, _ := r.Publish("feed", []byte("hello"))
//	r.Heartbeat() // invoked by an external scheduler every HeartbeatInterval
package gossipsub
