package rpcregistry

import "testing"

func TestMockRegistryRegisterDiscover(t *testing.T) {
	r := NewMockRegistry()
	if err := r.Register("Echo", ServiceInstance{Addr: "127.0.0.1:9001"}, 10); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	instances, err := r.Discover("Echo")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(instances) != 1 || instances[0].Addr != "127.0.0.1:9001" {
		t.Fatalf("got %+v", instances)
	}
}

func TestMockRegistryDeregister(t *testing.T) {
	r := NewMockRegistry()
	r.Register("Echo", ServiceInstance{Addr: "127.0.0.1:9001"}, 10)
	r.Register("Echo", ServiceInstance{Addr: "127.0.0.1:9002"}, 10)
	if err := r.Deregister("Echo", "127.0.0.1:9001"); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	instances, _ := r.Discover("Echo")
	if len(instances) != 1 || instances[0].Addr != "127.0.0.1:9002" {
		t.Fatalf("got %+v", instances)
	}
}

func TestMockRegistryWatch(t *testing.T) {
	r := NewMockRegistry()
	ch := r.Watch("Echo")
	r.Register("Echo", ServiceInstance{Addr: "127.0.0.1:9001"}, 10)

	select {
	case instances := <-ch:
		if len(instances) != 1 {
			t.Fatalf("got %+v", instances)
		}
	default:
		t.Fatal("expected a watch notification")
	}
}

func TestMockRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewMockRegistry()
	r.Register("Echo", ServiceInstance{Addr: "a"}, 10)
	r.Register("Echo", ServiceInstance{Addr: "a"}, 10)
	instances, _ := r.Discover("Echo")
	if len(instances) != 1 {
		t.Fatalf("expected deduped registration, got %+v", instances)
	}
}
