// Package rpcregistry defines the service discovery interface and
// instance metadata used by rpcclient to resolve a service name into a
// set of addresses before a transport is opened or a load-balancing
// decision is made.
package rpcregistry

// ServiceInstance is a single running instance of a registered service.
type ServiceInstance struct {
	Addr    string // dial address, e.g. "127.0.0.1:9090"
	Weight  int    // used by loadbalance.WeightedRandom
	Version string
}

// Registry is the service discovery contract. EtcdRegistry is the
// production implementation; MockRegistry backs tests that don't want
// a live etcd cluster.
type Registry interface {
	// Register adds an instance with a TTL lease; the instance is
	// removed automatically if KeepAlive renewal stops.
	Register(serviceName string, instance ServiceInstance, ttl int64) error

	// Deregister removes an instance, called during graceful shutdown
	// before the listener closes.
	Deregister(serviceName string, addr string) error

	// Discover returns the currently registered instances for a service.
	Discover(serviceName string) ([]ServiceInstance, error)

	// Watch emits an updated instance list whenever the service's
	// instances change.
	Watch(serviceName string) <-chan []ServiceInstance
}
