package loadbalance

import (
	"fmt"
	"sync/atomic"

	"github.com/vgp7758/bitrpc/rpcregistry"
)

// RoundRobinBalancer distributes calls evenly across all instances in
// order, ignoring the call key - the default strategy when a PDL schema
// carries no "load_balance" option (FromSchemaOption).
type RoundRobinBalancer struct {
	counter int64 // atomic, incremented on each Pick()
}

// Pick selects the next instance in round-robin order. key is unused: a
// stateless service has no reason to route the same operation to the
// same instance twice in a row.
func (b *RoundRobinBalancer) Pick(instances []rpcregistry.ServiceInstance, key string) (*rpcregistry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
