// Command bitrpc-echo wires up the §8 scenario A (echo unary) and
// scenario E (3-item server stream) end to end over a real loopback TCP
// connection, the way the teacher's test/integration_test.go exercises
// server.Server and client.Client together rather than through mocks.
package main

import (
	"reflect"

	"github.com/vgp7758/bitrpc/schema"
	"github.com/vgp7758/bitrpc/typeregistry"
)

// EchoRequest/EchoResponse mirror the §8 scenario A schema verbatim.
type EchoRequest struct {
	Message   string
	Timestamp int32
}

type EchoResponse struct {
	Message    string
	Timestamp  int32
	ServerTime string
}

func registerTypes(reg *typeregistry.Registry) error {
	reqDesc := &schema.Message{Name: "EchoRequest", Fields: []schema.Field{
		{Name: "message", ID: 1, Type: schema.TypeString},
		{Name: "timestamp", ID: 2, Type: schema.TypeI32},
	}}
	reqH, err := typeregistry.NewMessageHandler(reqDesc, reflect.TypeOf(EchoRequest{}), reg)
	if err != nil {
		return err
	}
	if err := reg.Register(reqH); err != nil {
		return err
	}

	respDesc := &schema.Message{Name: "EchoResponse", Fields: []schema.Field{
		{Name: "message", ID: 1, Type: schema.TypeString},
		{Name: "timestamp", ID: 2, Type: schema.TypeI32},
		{Name: "server_time", ID: 3, Type: schema.TypeString},
	}}
	respH, err := typeregistry.NewMessageHandler(respDesc, reflect.TypeOf(EchoResponse{}), reg)
	if err != nil {
		return err
	}
	return reg.Register(respH)
}
