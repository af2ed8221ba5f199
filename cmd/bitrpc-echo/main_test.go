package main

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/vgp7758/bitrpc/loadbalance"
	"github.com/vgp7758/bitrpc/rpcclient"
	"github.com/vgp7758/bitrpc/rpcproto"
	"github.com/vgp7758/bitrpc/rpcregistry"
	"github.com/vgp7758/bitrpc/rpcserver"
	"github.com/vgp7758/bitrpc/typeregistry"
	"github.com/vgp7758/bitrpc/wire"
)

func startTestServer(t *testing.T) (*rpcserver.Server, *typeregistry.Registry) {
	t.Helper()
	reg := typeregistry.NewRegistryWithBuiltins()
	if err := registerTypes(reg); err != nil {
		t.Fatalf("registerTypes: %v", err)
	}
	srv := rpcserver.NewServer(newEchoManager(), reg, nil)
	go srv.Serve("tcp", "127.0.0.1:0", "", nil)
	t.Cleanup(func() { srv.Shutdown(time.Second) })
	return srv, reg
}

func dialEcho(srv *rpcserver.Server) (net.Conn, error) {
	return net.Dial("tcp", srv.Addr().String())
}

// TestEchoRequestWireBytes verifies §8 scenario A's literal byte
// sequence for the request body: G=1 mask=0b11, then "hi" (i32 length 2
// + "hi"), then i32 7.
func TestEchoRequestWireBytes(t *testing.T) {
	reg := typeregistry.NewRegistryWithBuiltins()
	if err := registerTypes(reg); err != nil {
		t.Fatalf("registerTypes: %v", err)
	}

	w := wire.NewWriter()
	if err := typeregistry.WriteObject(w, reg, EchoRequest{Message: "hi", Timestamp: 7}); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	encoded := w.Bytes()
	if len(encoded) < 4 {
		t.Fatalf("encoded object too short: %d bytes", len(encoded))
	}
	body := encoded[4:] // skip the hash_code tag

	want := []byte{
		0x03, 0x00, 0x00, 0x00, // mask group 0: bits 0 and 1 set
		0x02, 0x00, 0x00, 0x00, // "hi" length
		'h', 'i',
		0x07, 0x00, 0x00, 0x00, // timestamp = 7
	}
	if !bytes.Equal(body, want) {
		t.Fatalf("unexpected wire bytes:\n got  % x\n want % x", body, want)
	}
}

// TestEchoScenarioEndToEnd drives scenario A (unary echo) and scenario E
// (3-item stream) over a real loopback connection via rpcclient.Client.
func TestEchoScenarioEndToEnd(t *testing.T) {
	srv, reg := startTestServer(t)
	disc := rpcregistry.NewMockRegistry()
	disc.Register("Echo", rpcregistry.ServiceInstance{Addr: srv.Addr().String()}, 10)

	client := rpcclient.NewClient(disc, loadbalance.FromSchemaOption(echoProtocol.Options), reg, 1)
	t.Cleanup(func() { client.Close() })

	resp, err := client.Call("Echo", "Echo", EchoRequest{Message: "hi", Timestamp: 7})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	got := resp.(EchoResponse)
	if got.Message != "hi" || got.Timestamp != 7 || got.ServerTime != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected echo response: %+v", got)
	}

	sr, err := client.OpenStream("Echo", "Count", EchoRequest{Timestamp: 3})
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
		items = append(items, v.(EchoResponse).Timestamp)
	}
	if len(items) != 3 || items[0] != 1 || items[2] != 3 {
		t.Fatalf("unexpected stream items: %v", items)
	}
}

// TestEchoScenarioRoundRobinOption drives the same scenario A call with
// "load_balance" unset, verifying FromSchemaOption's default
// (RoundRobinBalancer) is itself wired up and not just ConsistentHash.
func TestEchoScenarioRoundRobinOption(t *testing.T) {
	srv, reg := startTestServer(t)
	disc := rpcregistry.NewMockRegistry()
	disc.Register("Echo", rpcregistry.ServiceInstance{Addr: srv.Addr().String()}, 10)

	balancer := loadbalance.FromSchemaOption(nil)
	if balancer.Name() != "RoundRobin" {
		t.Fatalf("expected default balancer RoundRobin, got %s", balancer.Name())
	}

	client := rpcclient.NewClient(disc, balancer, reg, 1)
	t.Cleanup(func() { client.Close() })

	resp, err := client.Call("Echo", "Echo", EchoRequest{Message: "hi", Timestamp: 7})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.(EchoResponse).Message != "hi" {
		t.Fatalf("unexpected echo response: %+v", resp)
	}
}

// TestEchoScenarioTruncation verifies §8 scenario F: truncating a
// request by one byte closes the connection rather than dispatching it.
func TestEchoScenarioTruncation(t *testing.T) {
	srv, reg := startTestServer(t)
	conn, err := dialEcho(srv)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	w := wire.NewWriter()
	if err := typeregistry.WriteObject(w, reg, EchoRequest{Message: "hi", Timestamp: 7}); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	full := w.Bytes()
	if err := rpcproto.WriteRequestFrame(conn, "Echo", "Echo", false, full[:len(full)-1]); err != nil {
		t.Fatalf("WriteRequestFrame: %v", err)
	}

	buf := make([]byte, 4)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected the connection to be closed after a truncated request")
	}
}
