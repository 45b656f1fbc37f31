package codec

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec[T any] struct{}

// JSON returns a codec encoding values as JSON. It is the default codec of
// every type without a registered one.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Encode(v T) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (jsonCodec[T]) Decode(data []byte) (v T, err error) {
	err = jsonAPI.Unmarshal(data, &v)
	return
}
