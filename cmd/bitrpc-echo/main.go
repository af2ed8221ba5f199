package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vgp7758/bitrpc/loadbalance"
	"github.com/vgp7758/bitrpc/rpcclient"
	"github.com/vgp7758/bitrpc/rpcregistry"
	"github.com/vgp7758/bitrpc/rpcserver"
	"github.com/vgp7758/bitrpc/schema"
	"github.com/vgp7758/bitrpc/typeregistry"
)

// echoProtocol stands in for the parsed PDL this demo would otherwise
// get from pdl.Parse: just enough of a schema.ProtocolDefinition to
// carry the `option load_balance = "consistent_hash";` (§4.1
// option_decl) that picks the client's Balancer. Count is
// server-streaming, so consistent hashing keeps repeated calls to it
// pinned to the instance already serving it, rather than round-robin
// spreading one operation's streams across the fleet.
var echoProtocol = &schema.ProtocolDefinition{
	Namespace: "bitrpc.echo",
	Options:   map[string]string{"load_balance": "consistent_hash"},
}

func main() {
	reg := typeregistry.NewRegistryWithBuiltins()
	if err := registerTypes(reg); err != nil {
		log.Fatalf("register types: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	srv := rpcserver.NewServer(newEchoManager(), reg, logger)
	// One call per 50ms sustained, bursts of 5 - enough headroom for this
	// demo's handful of calls while still exercising the limiter path.
	srv.Limiter = rate.NewLimiter(rate.Every(50*time.Millisecond), 5)

	discovery := rpcregistry.NewMockRegistry()
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve("tcp", "127.0.0.1:0", "", nil) }()
	addr := srv.Addr().String()
	discovery.Register("Echo", rpcregistry.ServiceInstance{Addr: addr}, 10)
	defer srv.Shutdown(5 * time.Second)

	client := rpcclient.NewClient(discovery, loadbalance.FromSchemaOption(echoProtocol.Options), reg, 1)
	defer client.Close()

	runEchoScenario(client)
	runStreamScenario(client)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Printf("server exited: %v", err)
		}
	default:
	}
}

// runEchoScenario exercises §8 scenario A.
func runEchoScenario(client *rpcclient.Client) {
	resp, err := client.Call("Echo", "Echo", EchoRequest{Message: "hi", Timestamp: 7})
	if err != nil {
		log.Fatalf("Echo call failed: %v", err)
	}
	r := resp.(EchoResponse)
	fmt.Printf("Echo: message=%q timestamp=%d server_time=%q\n", r.Message, r.Timestamp, r.ServerTime)
}

// runStreamScenario exercises §8 scenario E: 3 items then the
// zero-length end marker.
func runStreamScenario(client *rpcclient.Client) {
	sr, err := client.OpenStream("Echo", "Count", EchoRequest{Timestamp: 3})
	if err != nil {
		log.Fatalf("OpenStream failed: %v", err)
	}
	defer sr.Close()

	for {
		v, err := sr.ReadNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("stream read failed: %v", err)
		}
		fmt.Printf("Count item: timestamp=%d\n", v.(EchoResponse).Timestamp)
	}
}
