package lockbox

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Codec converts structured payloads to and from bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes models with encoding/json.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ProtoCodec encodes models that implement proto.Message.
type ProtoCodec struct{}

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("proto: %T does not implement proto.Message", v)
	}
	return proto.Marshal(m)
}

// Unmarshal accepts either a proto.Message or a pointer to a message pointer,
// which is what UnlockModel passes for a T like *structpb.Struct. A nil
// message pointer is allocated.
func (ProtoCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("proto: cannot decode into %T", v)
	}

	elem := rv.Elem()
	if elem.Kind() != reflect.Pointer {
		return fmt.Errorf("proto: cannot decode into %T", v)
	}
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}

	m, ok := elem.Interface().(proto.Message)
	if !ok {
		return fmt.Errorf("proto: %s does not implement proto.Message", elem.Type())
	}
	return proto.Unmarshal(data, m)
}
