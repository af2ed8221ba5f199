package rpcclient

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/vgp7758/bitrpc/rpcregistry"
	"github.com/vgp7758/bitrpc/rpcserver"
	"github.com/vgp7758/bitrpc/schema"
	"github.com/vgp7758/bitrpc/typeregistry"
)

type echoReq struct {
	Message   string
	Timestamp int32
}

type echoResp struct {
	Message    string
	Timestamp  int32
	ServerTime string
}

func newEchoRegistry(t *testing.T) *typeregistry.Registry {
	t.Helper()
	reg := typeregistry.NewRegistryWithBuiltins()

	reqDesc := &schema.Message{Name: "EchoRequest", Fields: []schema.Field{
		{Name: "message", ID: 1, Type: schema.TypeString},
		{Name: "timestamp", ID: 2, Type: schema.TypeI32},
	}}
	reqH, err := typeregistry.NewMessageHandler(reqDesc, reflect.TypeOf(echoReq{}), reg)
	if err != nil {
		t.Fatalf("NewMessageHandler(EchoRequest): %v", err)
	}
	reg.MustRegister(reqH)

	respDesc := &schema.Message{Name: "EchoResponse", Fields: []schema.Field{
		{Name: "message", ID: 1, Type: schema.TypeString},
		{Name: "timestamp", ID: 2, Type: schema.TypeI32},
		{Name: "server_time", ID: 3, Type: schema.TypeString},
	}}
	respH, err := typeregistry.NewMessageHandler(respDesc, reflect.TypeOf(echoResp{}), reg)
	if err != nil {
		t.Fatalf("NewMessageHandler(EchoResponse): %v", err)
	}
	reg.MustRegister(respH)

	return reg
}

func startEchoServer(t *testing.T, reg *typeregistry.Registry) (*rpcserver.Server, rpcregistry.Registry) {
	t.Helper()
	mgr := rpcserver.NewServiceManager()
	svc := rpcserver.NewService("Echo")
	svc.RegisterUnarySync("Echo", func(ctx context.Context, req any) (any, error) {
		r := req.(echoReq)
		return echoResp{Message: r.Message, Timestamp: r.Timestamp, ServerTime: "2024-01-01T00:00:00Z"}, nil
	})
	svc.RegisterStream("Count", func(ctx context.Context, req any, send func(any) error) error {
		n := req.(echoReq).Timestamp
		for i := int32(0); i < n; i++ {
			if err := send(echoResp{Timestamp: i}); err != nil {
				return err
			}
		}
		return nil
	})
	mgr.Register(svc)

	srv := rpcserver.NewServer(mgr, reg, nil)
	go srv.Serve("tcp", "127.0.0.1:0", "", nil)
	t.Cleanup(func() { srv.Shutdown(time.Second) })

	disc := rpcregistry.NewMockRegistry()
	disc.Register("Echo", rpcregistry.ServiceInstance{Addr: srv.Addr().String()}, 10)
	return srv, disc
}

func TestClientUnaryCall(t *testing.T) {
	reg := newEchoRegistry(t)
	_, disc := startEchoServer(t, reg)

	c := NewClient(disc, balancerStub{}, reg, 1)
	t.Cleanup(func() { c.Close() })

	resp, err := c.Call("Echo", "Echo", echoReq{Message: "hi", Timestamp: 7})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	got := resp.(echoResp)
	if got.Message != "hi" || got.Timestamp != 7 || got.ServerTime != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestClientStream(t *testing.T) {
	reg := newEchoRegistry(t)
	_, disc := startEchoServer(t, reg)

	c := NewClient(disc, balancerStub{}, reg, 1)
	t.Cleanup(func() { c.Close() })

	sr, err := c.OpenStream("Echo", "Count", echoReq{Timestamp: 3})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	var items []int32
	for {
		v, err := sr.ReadNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadNext: %v", err)
		}
		items = append(items, v.(echoResp).Timestamp)
	}
	if sr.HasMore() {
		t.Fatalf("expected HasMore() == false after EOF")
	}
	if sr.HasError() {
		t.Fatalf("unexpected stream error: %s", sr.ErrorMessage())
	}
	if len(items) != 3 || items[0] != 0 || items[2] != 2 {
		t.Fatalf("unexpected items: %v", items)
	}

	// A call issued after the stream drained must succeed - the
	// transport's call mutex should have been released.
	resp, err := c.Call("Echo", "Echo", echoReq{Message: "after-stream"})
	if err != nil {
		t.Fatalf("Call after stream: %v", err)
	}
	if resp.(echoResp).Message != "after-stream" {
		t.Fatalf("unexpected post-stream response: %+v", resp)
	}
}

func TestClientUnknownOperation(t *testing.T) {
	reg := newEchoRegistry(t)
	_, disc := startEchoServer(t, reg)

	c := NewClient(disc, balancerStub{}, reg, 1)
	t.Cleanup(func() { c.Close() })

	_, err := c.Call("Echo", "NoSuchOp", echoReq{Message: "x"})
	if err == nil {
		t.Fatalf("expected DispatchError for unknown operation")
	}
	var dispatchErr *DispatchError
	if !asDispatchError(err, &dispatchErr) {
		t.Fatalf("expected *DispatchError, got %T: %v", err, err)
	}
}

func asDispatchError(err error, target **DispatchError) bool {
	de, ok := err.(*DispatchError)
	if !ok {
		return false
	}
	*target = de
	return true
}

// balancerStub always picks the first instance - sufficient for tests
// that only ever register one.
type balancerStub struct{}

func (balancerStub) Pick(instances []rpcregistry.ServiceInstance, key string) (*rpcregistry.ServiceInstance, error) {
	return &instances[0], nil
}
func (balancerStub) Name() string { return "stub" }
