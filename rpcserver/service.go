package rpcserver

import (
	"context"
	"fmt"
	"sync"
)

// AsyncResult is what an UnaryAsyncHandler's channel ultimately
// delivers (§4.4.4's "unary-async" method table): the same
// (response, error) pair a sync handler would have returned directly,
// just available later rather than immediately.
type AsyncResult struct {
	Resp any
	Err  error
}

// UnarySyncHandler answers one request with one response, blocking the
// connection's worker for the duration of the call.
type UnarySyncHandler func(ctx context.Context, req any) (any, error)

// UnaryAsyncHandler answers one request by returning a channel that
// will eventually carry the result; the dispatcher blocks the
// connection's worker on that channel (§4.4.5: unary calls are still
// strictly one-response-per-request, the "async" here refers to how the
// user's own code is structured, not to the wire protocol, which has no
// concept of a deferred response).
type UnaryAsyncHandler func(ctx context.Context, req any) (<-chan AsyncResult, error)

// StreamHandler produces zero or more response values by calling send
// for each one, returning when the stream is exhausted or an error
// occurs. The dispatcher translates each send into one §4.4.3 data
// frame and writes the zero-length end marker once StreamHandler
// returns without error.
type StreamHandler func(ctx context.Context, req any, send func(any) error) error

// Service holds the three per-operation method tables §4.4.4
// specifies: unary-sync, unary-async, and server-stream. A single
// operation name may only be registered in one of the three tables.
type Service struct {
	name        string
	unarySync   map[string]UnarySyncHandler
	unaryAsync  map[string]UnaryAsyncHandler
	stream      map[string]StreamHandler
}

// NewService returns an empty service named name.
func NewService(name string) *Service {
	return &Service{
		name:       name,
		unarySync:  make(map[string]UnarySyncHandler),
		unaryAsync: make(map[string]UnaryAsyncHandler),
		stream:     make(map[string]StreamHandler),
	}
}

func (s *Service) checkFree(operation string) error {
	if _, ok := s.unarySync[operation]; ok {
		return fmt.Errorf("rpcserver: operation %s.%s already registered (unary-sync)", s.name, operation)
	}
	if _, ok := s.unaryAsync[operation]; ok {
		return fmt.Errorf("rpcserver: operation %s.%s already registered (unary-async)", s.name, operation)
	}
	if _, ok := s.stream[operation]; ok {
		return fmt.Errorf("rpcserver: operation %s.%s already registered (stream)", s.name, operation)
	}
	return nil
}

// RegisterUnarySync registers a synchronous unary handler.
func (s *Service) RegisterUnarySync(operation string, h UnarySyncHandler) error {
	if err := s.checkFree(operation); err != nil {
		return err
	}
	s.unarySync[operation] = h
	return nil
}

// RegisterUnaryAsync registers a future-returning unary handler.
func (s *Service) RegisterUnaryAsync(operation string, h UnaryAsyncHandler) error {
	if err := s.checkFree(operation); err != nil {
		return err
	}
	s.unaryAsync[operation] = h
	return nil
}

// RegisterStream registers a server-streaming handler.
func (s *Service) RegisterStream(operation string, h StreamHandler) error {
	if err := s.checkFree(operation); err != nil {
		return err
	}
	s.stream[operation] = h
	return nil
}

// IsStream reports whether operation is registered in the stream
// table - used to resolve the "STREAM:" method-name prefix ambiguity
// (§9): a method registered only as a stream handler is treated as
// streaming even if the client omitted the prefix.
func (s *Service) IsStream(operation string) bool {
	_, ok := s.stream[operation]
	return ok
}

// ServiceManager is the per-process map from service name to Service
// (§4.4.4). Registration happens at startup; Lookup and Names take a
// read lock to stay correct if services are registered after Serve starts,
// matching §5's "a map guarded by a mutex on write; reads take a
// snapshot or a read lock."
type ServiceManager struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewServiceManager returns an empty manager.
func NewServiceManager() *ServiceManager {
	return &ServiceManager{services: make(map[string]*Service)}
}

// Register adds svc under its own name, replacing any existing service
// of the same name (re-registration is how a server updates handlers
// at runtime without restarting the listener).
func (m *ServiceManager) Register(svc *Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[svc.name] = svc
}

// Lookup resolves a service name against the table (§4.4.4 step 3).
func (m *ServiceManager) Lookup(serviceName string) (*Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[serviceName]
	return svc, ok
}

// Names returns the currently registered service names, used at Serve
// startup to register each one with a discovery backend.
func (m *ServiceManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	return names
}
