// Package loadbalance picks which registered rpcregistry.ServiceInstance a
// rpcclient.Client dials next for a given "<ServiceName>.<Operation>" call
// (the same method-name string rpcproto puts on the wire, §4.4.1).
//
// Three strategies are implemented:
//   - RoundRobin:      ignores the call key; even rotation across instances.
//   - WeightedRandom:  ignores the call key; proportional to each
//     instance's registered Weight (§6.5 generator config / rpcregistry
//     Register call), with a PDL-schema-sourced floor so a misconfigured
//     zero-weight fleet never divides by zero.
//   - ConsistentHash:  keys on the call's method name by default, so every
//     call to a given operation lands on the same backend instance for as
//     long as the instance set is stable - useful for server-streaming
//     operations (§4.4.3) that accumulate per-operation state on the
//     server side and would thrash it under round-robin.
//
// Which strategy a generated client uses is driven by the parsed PDL's
// `option load_balance = "...";` (§4.1 option_decl), via FromSchemaOption,
// rather than being hardcoded into the client.
package loadbalance

import "github.com/vgp7758/bitrpc/rpcregistry"

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each RPC to select a target instance.
// key is the call's "<ServiceName>.<Operation>" method name (rpcproto's
// own framing concept, §4.4.1) - strategies that don't need routing
// affinity (RoundRobin, WeightedRandom) ignore it.
type Balancer interface {
	// Pick selects one instance from the available list for this call.
	// Called on every RPC call - must be goroutine-safe.
	Pick(instances []rpcregistry.ServiceInstance, key string) (*rpcregistry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// FromSchemaOption selects a Balancer by the value of a PDL schema's
// "load_balance" file-level option (one of "round_robin",
// "weighted_random", "consistent_hash"). An empty or unrecognized value
// (or a nil options map) defaults to round_robin. rpcclient.NewClient
// itself has no default and uses whatever Balancer it is given.
func FromSchemaOption(options map[string]string) Balancer {
	switch options["load_balance"] {
	case "weighted_random":
		return NewWeightedRandomBalancer(options)
	case "consistent_hash":
		return NewConsistentHashBalancer()
	default:
		return &RoundRobinBalancer{}
	}
}
