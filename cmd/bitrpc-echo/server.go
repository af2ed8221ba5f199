package main

import (
	"context"

	"github.com/vgp7758/bitrpc/rpcserver"
)

// newEchoManager builds the "Echo" service §8 scenario A/E exercise:
// a unary Echo method and a 3-item Count stream method.
func newEchoManager() *rpcserver.ServiceManager {
	mgr := rpcserver.NewServiceManager()
	svc := rpcserver.NewService("Echo")

	svc.RegisterUnarySync("Echo", func(ctx context.Context, req any) (any, error) {
		r := req.(EchoRequest)
		return EchoResponse{
			Message:    r.Message,
			Timestamp:  r.Timestamp,
			ServerTime: "2024-01-01T00:00:00Z",
		}, nil
	})

	svc.RegisterStream("Count", func(ctx context.Context, req any, send func(any) error) error {
		n := req.(EchoRequest).Timestamp
		for i := int32(0); i < n; i++ {
			if err := send(EchoResponse{Timestamp: i + 1}); err != nil {
				return err
			}
		}
		return nil
	})

	mgr.Register(svc)
	return mgr
}
