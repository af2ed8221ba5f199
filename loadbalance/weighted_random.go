package loadbalance

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/vgp7758/bitrpc/rpcregistry"
)

// WeightedRandomBalancer selects instances probabilistically in
// proportion to their registered Weight (set at Register time, §6.5 - a
// server instance with more CPU/memory is registered with a larger
// weight so it takes a proportionally larger share of calls).
//
// minWeight floors every instance's effective weight before the draw,
// sourced from the PDL schema's "min_weight" option
// (NewWeightedRandomBalancer) - without it, a fleet where every instance
// happens to register with Weight 0 (the zero value, easy to produce by
// omission) makes the draw's total weight 0 and panics on rand.Intn.
type WeightedRandomBalancer struct {
	minWeight int
}

// NewWeightedRandomBalancer reads a "min_weight" PDL option (if present
// and a valid positive integer) as the floor applied to every instance's
// weight; it defaults to 1.
func NewWeightedRandomBalancer(options map[string]string) *WeightedRandomBalancer {
	minWeight := 1
	if v, ok := options["min_weight"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minWeight = n
		}
	}
	return &WeightedRandomBalancer{minWeight: minWeight}
}

func (b *WeightedRandomBalancer) effectiveWeight(w int) int {
	if w < b.minWeight {
		return b.minWeight
	}
	return w
}

// Pick draws an instance with probability proportional to its effective
// weight. key is unused - weighting is a property of the instance, not
// of which operation is being called.
func (b *WeightedRandomBalancer) Pick(instances []rpcregistry.ServiceInstance, key string) (*rpcregistry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}

	total := 0
	for _, v := range instances {
		total += b.effectiveWeight(v.Weight)
	}

	r := rand.Intn(total)
	for i := range instances {
		r -= b.effectiveWeight(instances[i].Weight)
		if r < 0 {
			return &instances[i], nil
		}
	}

	return nil, fmt.Errorf("loadbalance: unreachable: weighted draw exhausted total weight %d", total)
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
