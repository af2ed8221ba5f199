package rpcserver

import (
	"context"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/vgp7758/bitrpc/rpcproto"
	"github.com/vgp7758/bitrpc/schema"
	"github.com/vgp7758/bitrpc/typeregistry"
	"github.com/vgp7758/bitrpc/wire"
)

type addReq struct {
	A int32
	B int32
}

type addResp struct {
	Sum int32
}

func newArithRegistry(t *testing.T) *typeregistry.Registry {
	t.Helper()
	reg := typeregistry.NewRegistryWithBuiltins()

	reqDesc := &schema.Message{Name: "AddRequest", Fields: []schema.Field{
		{Name: "a", ID: 1, Type: schema.TypeI32},
		{Name: "b", ID: 2, Type: schema.TypeI32},
	}}
	reqHandler, err := typeregistry.NewMessageHandler(reqDesc, reflect.TypeOf(addReq{}), reg)
	if err != nil {
		t.Fatalf("NewMessageHandler(AddRequest): %v", err)
	}
	reg.MustRegister(reqHandler)

	respDesc := &schema.Message{Name: "AddResponse", Fields: []schema.Field{
		{Name: "sum", ID: 1, Type: schema.TypeI32},
	}}
	respHandler, err := typeregistry.NewMessageHandler(respDesc, reflect.TypeOf(addResp{}), reg)
	if err != nil {
		t.Fatalf("NewMessageHandler(AddResponse): %v", err)
	}
	reg.MustRegister(respHandler)

	return reg
}

func startArithServer(t *testing.T, reg *typeregistry.Registry) *Server {
	t.Helper()

	mgr := NewServiceManager()
	svc := NewService("Arith")
	svc.RegisterUnarySync("Add", func(ctx context.Context, req any) (any, error) {
		r := req.(addReq)
		return addResp{Sum: r.A + r.B}, nil
	})
	svc.RegisterStream("Count", func(ctx context.Context, req any, send func(any) error) error {
		n := req.(addReq).A
		for i := int32(0); i < n; i++ {
			if err := send(addResp{Sum: i}); err != nil {
				return err
			}
		}
		return nil
	})
	mgr.Register(svc)

	srv := NewServer(mgr, reg, nil)
	go srv.Serve("tcp", "127.0.0.1:0", "", nil)
	t.Cleanup(func() { srv.Shutdown(time.Second) })
	return srv
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerUnaryDispatch(t *testing.T) {
	reg := newArithRegistry(t)
	srv := startArithServer(t, reg)
	conn := dialServer(t, srv)

	w := wire.NewWriter()
	if err := typeregistry.WriteObject(w, reg, addReq{A: 2, B: 3}); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if err := rpcproto.WriteRequestFrame(conn, "Arith", "Add", false, w.Bytes()); err != nil {
		t.Fatalf("write request: %v", err)
	}

	payload, err := rpcproto.ReadUnaryResponseFrame(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	v, err := typeregistry.ReadObject(wire.NewReader(payload), reg)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	got := v.(addResp)
	if got.Sum != 5 {
		t.Fatalf("expected sum 5, got %d", got.Sum)
	}
}

func TestServerUnknownService(t *testing.T) {
	reg := newArithRegistry(t)
	srv := startArithServer(t, reg)
	conn := dialServer(t, srv)

	w := wire.NewWriter()
	typeregistry.WriteObject(w, reg, addReq{A: 1, B: 1})
	if err := rpcproto.WriteRequestFrame(conn, "NoSuchService", "Add", false, w.Bytes()); err != nil {
		t.Fatalf("write request: %v", err)
	}

	payload, err := rpcproto.ReadUnaryResponseFrame(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if len(payload) != 0 {
		t.Fatalf("expected length-0 response for unknown service, got %d bytes", len(payload))
	}
}

func TestServerStreamDispatch(t *testing.T) {
	reg := newArithRegistry(t)
	srv := startArithServer(t, reg)
	conn := dialServer(t, srv)

	w := wire.NewWriter()
	typeregistry.WriteObject(w, reg, addReq{A: 3})
	if err := rpcproto.WriteRequestFrame(conn, "Arith", "Count", true, w.Bytes()); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var got []int32
	for {
		payload, end, err := rpcproto.ReadStreamFrame(conn)
		if err != nil {
			t.Fatalf("ReadStreamFrame: %v", err)
		}
		if end {
			break
		}
		v, err := typeregistry.ReadObject(wire.NewReader(payload), reg)
		if err != nil {
			t.Fatalf("ReadObject: %v", err)
		}
		got = append(got, v.(addResp).Sum)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("unexpected stream items: %v", got)
	}
}

func TestServerClosesConnectionOnTruncatedFrame(t *testing.T) {
	reg := newArithRegistry(t)
	srv := startArithServer(t, reg)
	conn := dialServer(t, srv)

	w := wire.NewWriter()
	typeregistry.WriteObject(w, reg, addReq{A: 1, B: 1})
	full := w.Bytes()
	// Truncate the encoded object by one byte (§8 scenario F).
	if err := rpcproto.WriteRequestFrame(conn, "Arith", "Add", false, full[:len(full)-1]); err != nil {
		t.Fatalf("write request: %v", err)
	}

	buf := make([]byte, 4)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(buf)
	if err == nil {
		t.Fatalf("expected connection to be closed after truncated frame")
	}
}
