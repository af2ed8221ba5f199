package rpcclient

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vgp7758/bitrpc/loadbalance"
	"github.com/vgp7758/bitrpc/rpcregistry"
	"github.com/vgp7758/bitrpc/typeregistry"
)

// Client layers service discovery and load balancing over a pool of
// per-address Transports (adapted from client.Client; see DESIGN.md).
// Unlike the teacher's client, a pooled Transport here is exclusive
// per call rather than freely shared, since §5 permits at most one
// call in flight per connection - poolSize therefore controls how many
// concurrent calls a given server instance can serve from this client,
// not just write-lock contention.
type Client struct {
	discovery rpcregistry.Registry
	balancer  loadbalance.Balancer
	registry  *typeregistry.Registry // nil means typeregistry.Default()

	heartbeatInterval time.Duration
	poolSize          int

	mu    sync.Mutex
	pools map[string][]*Transport
	ctr   uint64
}

// NewClient returns a Client resolving instances via discovery and
// picking among them with balancer. poolSize is the number of
// Transports (TCP connections) maintained per resolved address; reg
// may be nil to use typeregistry.Default().
func NewClient(discovery rpcregistry.Registry, balancer loadbalance.Balancer, reg *typeregistry.Registry, poolSize int) *Client {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Client{
		discovery:         discovery,
		balancer:          balancer,
		registry:          reg,
		heartbeatInterval: rpcregistry.DefaultHeartbeatInterval,
		poolSize:          poolSize,
		pools:             make(map[string][]*Transport),
	}
}

func (c *Client) typeRegistry() *typeregistry.Registry {
	if c.registry != nil {
		return c.registry
	}
	return typeregistry.Default()
}

// pickAddr resolves serviceName via discovery and hands the live
// instance list to the balancer, keyed on the call's full
// "<ServiceName>.<Operation>" method name - the same string rpcproto
// puts on the wire (§4.4.1) - so a ConsistentHashBalancer can give
// per-operation routing affinity.
func (c *Client) pickAddr(serviceName, operation string) (string, error) {
	instances, err := c.discovery.Discover(serviceName)
	if err != nil {
		return "", fmt.Errorf("rpcclient: discover %s: %w", serviceName, err)
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("rpcclient: no instances registered for service %s", serviceName)
	}
	instance, err := c.balancer.Pick(instances, serviceName+"."+operation)
	if err != nil {
		return "", fmt.Errorf("rpcclient: pick instance for %s: %w", serviceName, err)
	}
	return instance.Addr, nil
}

// transport returns one of this address's pooled transports,
// round-robin, dialing the full pool lazily on first use.
func (c *Client) transport(addr string) (*Transport, error) {
	n := atomic.AddUint64(&c.ctr, 1)

	c.mu.Lock()
	pool, ok := c.pools[addr]
	if !ok {
		pool = make([]*Transport, c.poolSize)
		for i := 0; i < c.poolSize; i++ {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				c.mu.Unlock()
				return nil, fmt.Errorf("rpcclient: dial %s: %w", addr, err)
			}
			pool[i] = NewTransport(conn, c.heartbeatInterval)
		}
		c.pools[addr] = pool
	}
	c.mu.Unlock()

	return pool[n%uint64(len(pool))], nil
}

// Call performs a unary RPC (§4.4.1/§4.4.2): discover -> pick -> get a
// transport -> send, blocking for the response.
func (c *Client) Call(service, operation string, req any) (any, error) {
	addr, err := c.pickAddr(service, operation)
	if err != nil {
		return nil, err
	}
	t, err := c.transport(addr)
	if err != nil {
		return nil, err
	}
	return t.Call(service, operation, req, c.typeRegistry())
}

// OpenStream performs a server-streaming RPC (§4.4.3).
func (c *Client) OpenStream(service, operation string, req any) (*StreamReader, error) {
	addr, err := c.pickAddr(service, operation)
	if err != nil {
		return nil, err
	}
	t, err := c.transport(addr)
	if err != nil {
		return nil, err
	}
	return t.OpenStream(service, operation, req, c.typeRegistry())
}

// Close closes every pooled transport across every resolved address.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, pool := range c.pools {
		for _, t := range pool {
			if err := t.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
