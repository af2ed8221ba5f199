package rpcserver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vgp7758/bitrpc/rpcproto"
	"github.com/vgp7758/bitrpc/rpcregistry"
	"github.com/vgp7758/bitrpc/typeregistry"
	"github.com/vgp7758/bitrpc/wire"
)

// Server is the TCP RPC runtime's accept loop (§5): one goroutine
// accepts connections, and each accepted connection is handed to a
// single dedicated worker that reads, dispatches, and writes
// synchronously in order for that connection - unlike the teacher's
// server.Server, which spins up a new goroutine per request (fine for
// its multiplexed, seq-tagged frames, but wrong here: BitRPC's frame
// carries no sequence number, so out-of-order completion on one
// connection would be undetectable corruption, not just a reordering).
type Server struct {
	Manager  *ServiceManager
	Registry *typeregistry.Registry // nil means typeregistry.Default()
	Limiter  *rate.Limiter          // nil disables rate limiting
	Logger   *zap.Logger

	discovery     rpcregistry.Registry
	advertiseAddr string

	listener net.Listener
	ready    chan struct{}
	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewServer returns a Server dispatching against manager. reg may be
// nil, in which case the process-wide typeregistry.Default() registry
// is used; logger may be nil, in which case logging is a no-op.
func NewServer(manager *ServiceManager, reg *typeregistry.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Manager: manager, Registry: reg, Logger: logger, ready: make(chan struct{})}
}

func (s *Server) registry() *typeregistry.Registry {
	if s.Registry != nil {
		return s.Registry
	}
	return typeregistry.Default()
}

// Serve listens on address and runs the accept loop until Shutdown is
// called or a non-shutdown Accept error occurs. If discovery is
// non-nil, every service currently in the manager is registered under
// advertiseAddr with a 10s TTL lease, mirroring the teacher's
// server.Server.Serve registration step.
func (s *Server) Serve(network, address, advertiseAddr string, discovery rpcregistry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = listener
	s.advertiseAddr = advertiseAddr
	s.discovery = discovery
	close(s.ready)

	if discovery != nil {
		for _, name := range s.Manager.Names() {
			if err := discovery.Register(name, rpcregistry.ServiceInstance{Addr: advertiseAddr}, 10); err != nil {
				s.Logger.Error("service registration failed", zap.String("service", name), zap.Error(err))
			}
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Addr blocks until Serve has bound the listener and returns its
// address. If Serve's Listen call fails, Addr never returns.
// Useful for tests that bind to ":0" and need the ephemeral port.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Shutdown deregisters every service, stops accepting new connections,
// and waits up to timeout for in-flight connection workers to finish
// their current request (adapted from server.Server.Shutdown; see
// DESIGN.md).
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.discovery != nil {
		for _, name := range s.Manager.Names() {
			s.discovery.Deregister(name, s.advertiseAddr)
		}
	}
	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errShutdownTimeout
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connID := uuid.NewString()
	logger := s.Logger.With(zap.String("conn_id", connID), zap.String("remote_addr", conn.RemoteAddr().String()))

	for {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(context.Background()); err != nil {
				logger.Warn("rate limiter wait failed", zap.Error(err))
				return
			}
		}

		serviceName, operation, stream, reqBytes, err := rpcproto.ReadRequestFrame(conn)
		if err != nil {
			if err != rpcproto.ErrConnectionClosed {
				logger.Warn("frame read failed, closing connection", zap.Error(err))
			}
			return
		}

		logger.Debug("dispatching", zap.String("service", serviceName), zap.String("operation", operation), zap.Bool("stream", stream))

		if !s.dispatch(context.Background(), conn, serviceName, operation, stream, reqBytes, logger) {
			return
		}
	}
}

// dispatch implements §4.4.4's five steps for one already-read request
// frame. It returns false when the connection must be closed (decode
// error or user-handler error, per §4.4.5); true means the worker
// should keep reading frames from this connection.
func (s *Server) dispatch(ctx context.Context, conn net.Conn, serviceName, operation string, stream bool, reqBytes []byte, logger *zap.Logger) bool {
	svc, ok := s.Manager.Lookup(serviceName)
	if !ok {
		logger.Info("unknown service", zap.NamedError("dispatch_error", &DispatchError{Service: serviceName, Reason: "not registered"}))
		rpcproto.WriteUnaryResponseFrame(conn, nil)
		return true
	}

	reqVal, err := typeregistry.ReadObject(wire.NewReader(reqBytes), s.registry())
	if err != nil {
		logger.Warn("request decode failed, closing connection", zap.Error(err))
		return false
	}

	if !stream && svc.IsStream(operation) {
		// §9: the "STREAM:" prefix is a recommended default, not
		// mandatory - an operation registered only as a stream method
		// is still dispatched as one even if the client omitted it.
		stream = true
	}

	if stream {
		return s.dispatchStream(ctx, conn, svc, serviceName, operation, reqVal, logger)
	}
	return s.dispatchUnary(ctx, conn, svc, serviceName, operation, reqVal, logger)
}

func (s *Server) dispatchUnary(ctx context.Context, conn net.Conn, svc *Service, serviceName, operation string, reqVal any, logger *zap.Logger) bool {
	if h, ok := svc.unarySync[operation]; ok {
		resp, err := h(ctx, reqVal)
		if err != nil {
			logger.Error("user handler error, closing connection", zap.Error(&UserHandlerError{Service: serviceName, Operation: operation, Err: err}))
			return false
		}
		return s.writeUnary(conn, resp, logger)
	}
	if h, ok := svc.unaryAsync[operation]; ok {
		ch, err := h(ctx, reqVal)
		if err != nil {
			logger.Error("user handler error, closing connection", zap.Error(&UserHandlerError{Service: serviceName, Operation: operation, Err: err}))
			return false
		}
		result := <-ch
		if result.Err != nil {
			logger.Error("user handler error, closing connection", zap.Error(&UserHandlerError{Service: serviceName, Operation: operation, Err: result.Err}))
			return false
		}
		return s.writeUnary(conn, result.Resp, logger)
	}

	logger.Info("unknown operation", zap.NamedError("dispatch_error", &DispatchError{Service: serviceName, Operation: operation, Reason: "not registered"}))
	rpcproto.WriteUnaryResponseFrame(conn, nil)
	return true
}

func (s *Server) dispatchStream(ctx context.Context, conn net.Conn, svc *Service, serviceName, operation string, reqVal any, logger *zap.Logger) bool {
	h, ok := svc.stream[operation]
	if !ok {
		logger.Info("unknown stream operation", zap.NamedError("dispatch_error", &DispatchError{Service: serviceName, Operation: operation, Reason: "not registered"}))
		rpcproto.WriteStreamEnd(conn)
		return true
	}

	send := func(item any) error {
		w := wire.NewWriter()
		if err := typeregistry.WriteObject(w, s.registry(), item); err != nil {
			return err
		}
		return rpcproto.WriteStreamFrame(conn, w.Bytes())
	}

	if err := h(ctx, reqVal, send); err != nil {
		logger.Error("stream handler error, closing connection", zap.Error(&UserHandlerError{Service: serviceName, Operation: operation, Err: err}))
		return false
	}
	if err := rpcproto.WriteStreamEnd(conn); err != nil {
		logger.Warn("failed to write stream end marker", zap.Error(err))
		return false
	}
	return true
}

func (s *Server) writeUnary(conn net.Conn, resp any, logger *zap.Logger) bool {
	w := wire.NewWriter()
	if err := typeregistry.WriteObject(w, s.registry(), resp); err != nil {
		logger.Error("response encode failed, closing connection", zap.Error(err))
		return false
	}
	if err := rpcproto.WriteUnaryResponseFrame(conn, w.Bytes()); err != nil {
		logger.Warn("failed to write response frame", zap.Error(err))
		return false
	}
	return true
}
