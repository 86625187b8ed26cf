package gossipsub

import "time"

// Config bundles the immutable tunable parameters a Router is built
// with. Field names and defaults mirror §6's parameter table; the
// struct shape and the self-healing Validate method are grounded on
// the teacher's gossipsub Config (config.go: DefaultConfig/Validate).
type Config struct {
	// Mesh parameters.
	MeshSize int // target mesh cardinality
	MeshLow  int // lower rebuild threshold
	MeshHigh int // upper prune threshold

	// Gossip parameters.
	GossipSize     int // IHAVE fan-out and history window multiplier
	MaxIHaveLength int // cap on ids accepted from a single IHAVE

	// Timing parameters (all durations).
	HeartbeatInterval   time.Duration
	MessageCacheTTL     time.Duration // cache and IWANT TTL
	GraftFloodThreshold time.Duration // window for per-peer GRAFT flood detection
	PruneBackoff        time.Duration // after PRUNEing a peer, refuse to GRAFT it for this long
	GraftBackoff        time.Duration // after being PRUNEd by a peer, refuse to GRAFT it for this long

	// FanoutTTL is absent from the distilled source config; §9's Open
	// Questions leaves it to the implementer and suggests 60s as
	// conventional, matching the teacher's own FanoutTTL default.
	FanoutTTL time.Duration

	// CacheCapacity bounds the message cache (§4.4); SeenCapacity bounds
	// the deduplication set. Both are implementer choices per §4.4.
	CacheCapacity int
	SeenCapacity  int
}

// DefaultConfig returns the parameter defaults from §6 / the original
// Rust source's GossipSubConfig::default().
func DefaultConfig() *Config {
	return &Config{
		MeshSize:            6,
		MeshLow:             4,
		MeshHigh:            12,
		GossipSize:          3,
		MaxIHaveLength:      5000,
		HeartbeatInterval:   1000 * time.Millisecond,
		MessageCacheTTL:     30_000 * time.Millisecond,
		GraftFloodThreshold: 10_000 * time.Millisecond,
		PruneBackoff:        60_000 * time.Millisecond,
		GraftBackoff:        60_000 * time.Millisecond,
		FanoutTTL:           60 * time.Second,
		CacheCapacity:       4096,
		SeenCapacity:        4096,
	}
}

// Validate resets invalid (zero or negative where that makes no sense)
// fields to their defaults instead of erroring, the same self-healing
// approach the teacher's Config.Validate takes.
func (c *Config) Validate() {
	d := DefaultConfig()

	if c.MeshSize <= 0 {
		c.MeshSize = d.MeshSize
	}
	if c.MeshLow <= 0 || c.MeshLow > c.MeshSize {
		c.MeshLow = d.MeshLow
	}
	if c.MeshHigh <= 0 || c.MeshHigh < c.MeshSize {
		c.MeshHigh = d.MeshHigh
	}
	if c.GossipSize <= 0 {
		c.GossipSize = d.GossipSize
	}
	if c.MaxIHaveLength <= 0 {
		c.MaxIHaveLength = d.MaxIHaveLength
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.MessageCacheTTL <= 0 {
		c.MessageCacheTTL = d.MessageCacheTTL
	}
	if c.GraftFloodThreshold <= 0 {
		c.GraftFloodThreshold = d.GraftFloodThreshold
	}
	if c.PruneBackoff <= 0 {
		c.PruneBackoff = d.PruneBackoff
	}
	if c.GraftBackoff <= 0 {
		c.GraftBackoff = d.GraftBackoff
	}
	if c.FanoutTTL <= 0 {
		c.FanoutTTL = d.FanoutTTL
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = d.CacheCapacity
	}
	if c.SeenCapacity <= 0 {
		c.SeenCapacity = d.SeenCapacity
	}
}

// historyWindow returns the maximum per-topic history length, 3x
// GossipSize per §4.5.
func (c *Config) historyWindow() int {
	return 3 * c.GossipSize
}
