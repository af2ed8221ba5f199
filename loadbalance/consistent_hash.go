package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"github.com/vgp7758/bitrpc/rpcregistry"
)

// ConsistentHashBalancer maps a call's "<ServiceName>.<Operation>" method
// name (rpcproto's own routing key, §4.4.1) onto a hash ring of
// instances, so every call to a given operation lands on the same
// backend instance for as long as the instance set is stable.
//
// This matters for BitRPC's server-streaming operations (§4.4.3): a
// stream accumulates per-connection state on the server for its whole
// lifetime, and a client that opens many short-lived streams against the
// same operation benefits from consistently landing on whichever
// instance is already warm for it, instead of round-robin spreading a
// single operation's streams - and their server-side caches - thinly
// across the fleet.
//
// Virtual nodes: each instance is mapped to N virtual nodes on the ring.
// Without virtual nodes, 3 instances might cluster together on the ring,
// causing uneven load distribution. 100 virtual nodes per instance gives
// statistical uniformity.
type ConsistentHashBalancer struct {
	replicas int

	mu     sync.Mutex
	built  string // fingerprint of the instance set the ring was built from
	ring   []uint32
	nodes  map[uint32]rpcregistry.ServiceInstance
}

// NewConsistentHashBalancer creates a hash ring balancer with 100
// virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: 100}
}

// fingerprint identifies an instance set so the ring is only rebuilt
// when Discover returns a different set of addresses, not on every call.
func fingerprint(instances []rpcregistry.ServiceInstance) string {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	return strings.Join(addrs, ",")
}

// rebuildLocked places every instance onto the ring with b.replicas
// virtual nodes each, hashed from "{addr}#{i}" to spread evenly.
func (b *ConsistentHashBalancer) rebuildLocked(instances []rpcregistry.ServiceInstance) {
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]rpcregistry.ServiceInstance, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			key := fmt.Sprintf("%s#%d", inst.Addr, i)
			hash := crc32.ChecksumIEEE([]byte(key))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// Pick hashes key (the call's method name, or any caller-supplied
// affinity key) and walks clockwise to the nearest ring node. The ring is
// rebuilt from instances whenever the live instance set changes.
func (b *ConsistentHashBalancer) Pick(instances []rpcregistry.ServiceInstance, key string) (*rpcregistry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if fp := fingerprint(instances); fp != b.built {
		b.rebuildLocked(instances)
		b.built = fp
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0 // wrap around: hash is larger than every node, use the first
	}

	picked := b.nodes[b.ring[idx]]
	return &picked, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
