package state

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// codecVersion prefixes every encoded value.
const codecVersion byte = 1

// MsgPackCodec stores values as MessagePack behind a one-byte version.
type MsgPackCodec[T any] struct{}

// NewMsgPackCodec returns a codec for T.
func NewMsgPackCodec[T any]() MsgPackCodec[T] {
	return MsgPackCodec[T]{}
}

// Serialize encodes value.
func (MsgPackCodec[T]) Serialize(value T) ([]byte, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("state: encode: %w", err)
	}
	return append([]byte{codecVersion}, data...), nil
}

// Deserialize decodes data written by Serialize. Anything else is
// ErrInvalidData.
func (MsgPackCodec[T]) Deserialize(data []byte) (T, error) {
	var value T
	if len(data) < 2 || data[0] != codecVersion {
		return value, ErrInvalidData
	}
	if err := msgpack.Unmarshal(data[1:], &value); err != nil {
		return value, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return value, nil
}
