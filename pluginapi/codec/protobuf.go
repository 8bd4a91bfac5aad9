package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf encodes payloads that implement proto.Message.
var Protobuf Codec = protobufCodec{}

type protobufCodec struct{}

func (protobufCodec) Name() string { return "protobuf" }

func (protobufCodec) Encode(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec protobuf: %T does not implement proto.Message", v)
	}
	return proto.Marshal(m)
}

// Decode requires v to be a non-nil proto.Message, e.g. new(pb.MyMessage).
func (protobufCodec) Decode(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return &DecodeError{Codec: "protobuf", Err: fmt.Errorf("%T does not implement proto.Message", v)}
	}
	if err := proto.Unmarshal(data, m); err != nil {
		return &DecodeError{Codec: "protobuf", Err: err}
	}
	return nil
}
