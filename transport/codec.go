package transport

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/zhur/errors"
)

// Marshal serializes v as msgpack.
func Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Serialize(fmt.Sprintf("%T", v), err)
	}
	return data, nil
}

// Unmarshal decodes msgpack data into v.
func Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.Deserialize(fmt.Sprintf("%T", v), err)
	}
	return nil
}
