package loadbalance

import (
	"fmt"
	"testing"

	"github.com/vgp7758/bitrpc/rpcregistry"
)

var testInstances = []rpcregistry.ServiceInstance{
	{Addr: ":8001", Weight: 10, Version: "1.0"},
	{Addr: ":8002", Weight: 5, Version: "1.0"},
	{Addr: ":8003", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all instances
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances, "Echo.Echo")
		if err != nil {
			t.Fatal(err)
		}
		results[i] = inst.Addr
	}

	// Pick again, should wrap around to first
	inst, _ := b.Pick(testInstances, "Echo.Echo")
	if inst.Addr != results[0] {
		t.Fatalf("expect wrap around to %s, got %s", results[0], inst.Addr)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick([]rpcregistry.ServiceInstance{}, "Echo.Echo")
	if err == nil {
		t.Fatal("expect error for empty instances")
	}
}

func TestWeightedRandom(t *testing.T) {
	b := NewWeightedRandomBalancer(nil)

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances, "Echo.Echo")
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	// Weight ratio is 10:5:10, so :8001 and :8003 should be ~2x of :8002
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio :8001/:8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomMinWeightFloor(t *testing.T) {
	zeroWeight := []rpcregistry.ServiceInstance{
		{Addr: ":9001", Weight: 0},
		{Addr: ":9002", Weight: 0},
	}
	b := NewWeightedRandomBalancer(map[string]string{"min_weight": "1"})
	if _, err := b.Pick(zeroWeight, "Echo.Echo"); err != nil {
		t.Fatalf("expected min_weight floor to avoid a zero total weight, got: %v", err)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()

	// The same key should always map to the same instance.
	inst1, err := b.Pick(testInstances, "Echo.Count")
	if err != nil {
		t.Fatal(err)
	}
	inst2, err := b.Pick(testInstances, "Echo.Count")
	if err != nil {
		t.Fatal(err)
	}
	if inst1.Addr != inst2.Addr {
		t.Fatalf("same key mapped to different instances: %s vs %s", inst1.Addr, inst2.Addr)
	}

	// Different operations should (likely) map to different instances.
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.Pick(testInstances, fmt.Sprintf("Echo.Op%d", i))
		if err != nil {
			t.Fatal(err)
		}
		seen[inst.Addr] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different instances, got %d", len(seen))
	}
}

func TestConsistentHashRebuildsOnInstanceChange(t *testing.T) {
	b := NewConsistentHashBalancer()

	if _, err := b.Pick(testInstances, "Echo.Count"); err != nil {
		t.Fatal(err)
	}

	shrunk := testInstances[:len(testInstances)-1]
	after, err := b.Pick(shrunk, "Echo.Count")
	if err != nil {
		t.Fatal(err)
	}
	for _, inst := range shrunk {
		if after.Addr == inst.Addr {
			return
		}
	}
	t.Fatalf("Pick after instance-set change returned %s, not a member of the shrunk set", after.Addr)
}
