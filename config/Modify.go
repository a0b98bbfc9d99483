package config

// ApplyStaticPeers adds static peers to c in place. It appends any
// entries not already present in c.StaticPeers, preserving order and
// skipping duplicates. It does not validate "host:port" shape — NewNode
// logs and drops malformed entries when a node is built from the list.
// A node that is already running is not affected: its static peer list
// is fixed when it is constructed.
func (c *Config) ApplyStaticPeers(peers ...string) {
	existing := make(map[string]struct{}, len(c.StaticPeers))
	for _, p := range c.StaticPeers {
		existing[p] = struct{}{}
	}

	for _, p := range peers {
		if _, ok := existing[p]; ok {
			continue
		}
		c.StaticPeers = append(c.StaticPeers, p)
		existing[p] = struct{}{}
	}
}
