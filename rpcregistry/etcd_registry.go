package rpcregistry

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultHeartbeatInterval is how often rpcclient.Transport pings a
// connection to keep it warm (SPEC_FULL.md §4 Supplemental features:
// heartbeat keepalive). EtcdRegistry's default lease TTL is derived from it rather
// than from an arbitrary etcd-operations constant, so a lease outlives
// at least two missed client heartbeats before etcd prunes the instance
// as dead.
const DefaultHeartbeatInterval = 30 * time.Second

// DefaultLeaseTTLSeconds is the lease TTL Register falls back to when
// called with ttl <= 0.
const DefaultLeaseTTLSeconds = int64(3 * DefaultHeartbeatInterval / time.Second)

// EtcdRegistry implements Registry using etcd v3: TTL leases plus
// KeepAlive renewal, the same pattern any TTL-based discovery layer
// needs regardless of the RPC wire format sitting on top of it.
//
// Keys are namespaced by the PDL schema's dotted namespace
// (schema.ProtocolDefinition.Namespace, §3) rather than a single flat
// "/bitrpc/" prefix, so two unrelated protocols registered against the
// same etcd cluster never collide on "/bitrpc/<ServiceName>/<addr>" -
// BitRPC service names are unique only within one protocol's namespace,
// not globally.
type EtcdRegistry struct {
	client    *clientv3.Client
	keyPrefix string
}

// NewEtcdRegistry connects to the given etcd endpoints and scopes every
// key this registry writes or reads under namespace (the parsed PDL's
// ProtocolDefinition.Namespace, e.g. "bitrpc.echo"). An empty namespace
// falls back to the bare "/bitrpc/" root, for callers with only one
// protocol in play.
func NewEtcdRegistry(endpoints []string, namespace string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	prefix := "/bitrpc/"
	if namespace != "" {
		prefix = "/bitrpc/" + namespace + "/"
	}
	return &EtcdRegistry{client: c, keyPrefix: prefix}, nil
}

// Register grants a ttl-second lease (DefaultLeaseTTLSeconds if ttl <=
// 0), puts the instance under it, and starts background KeepAlive
// renewal. leaseID is kept local to this call, not stored on the
// struct, so concurrent Register calls for different services on a
// shared EtcdRegistry never race over it.
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	if ttl <= 0 {
		ttl = DefaultLeaseTTLSeconds
	}
	ctx := context.Background()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	if _, err := r.client.Put(ctx, r.keyPrefix+serviceName+"/"+instance.Addr, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister deletes the instance's key immediately, ahead of lease
// expiry, so clients stop routing to it as soon as shutdown starts.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	_, err := r.client.Delete(context.Background(), r.keyPrefix+serviceName+"/"+addr)
	return err
}

// Discover fetches every instance currently registered under a
// service's key prefix.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(context.Background(), r.keyPrefix+serviceName+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst ServiceInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch re-fetches the full instance list on any change under the
// service's prefix - simpler than reconciling individual watch events,
// and cheap since instance lists are small.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	out := make(chan []ServiceInstance, 1)
	prefix := r.keyPrefix + serviceName + "/"

	go func() {
		watchChan := r.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(serviceName)
			if err != nil {
				continue
			}
			out <- instances
		}
	}()

	return out
}
