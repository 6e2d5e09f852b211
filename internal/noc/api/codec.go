package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodec lets the application channel ride on plain google.golang.org/grpc
// transport, framing, and interceptor stack (so otelgrpc's stats handler
// still sees every call) without depending on a protoc-generated
// message type: messages here are the same plain Go structs the rest
// of the package uses, marshaled with encoding/json instead of the
// protobuf wire format.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("api.jsonCodec.Marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("api.jsonCodec.Unmarshal: %w", err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
