// Package mmpclient implements the manager client: register_instance,
// request_peers (with jittered exponential backoff, since the manager may
// not have resolved every peer yet) and deregister_instance, grounded on
// original_source/mmp_client.py, riding over grpc with a raw-bytes codec
// exactly like transport/grpc/codec.go's customCodec, since no .proto
// compiler is available to this module.
package mmpclient

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "muscle3-raw"

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// rawCodec passes already-encoded byte slices straight through gRPC's
// wire framing, letting this package supply its own gob-encoded request
// and response envelopes instead of generated protobuf messages.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	raw, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("mmpclient: cannot marshal %T with the raw codec", v)
	}
	return *raw, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	raw, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("mmpclient: cannot unmarshal %T with the raw codec", v)
	}
	*raw = append((*raw)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return codecName }
