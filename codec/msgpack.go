package codec

import "github.com/shamaton/msgpack"

type msgpackCodec[T any] struct{}

// Msgpack returns a codec encoding values with MessagePack. It is more compact
// than JSON for numeric-heavy records such as feature vectors.
func Msgpack[T any]() Codec[T] {
	return msgpackCodec[T]{}
}

func (msgpackCodec[T]) Encode(v T) ([]byte, error) {
	return msgpack.Encode(v)
}

func (msgpackCodec[T]) Decode(data []byte) (v T, err error) {
	err = msgpack.Decode(data, &v)
	return
}
