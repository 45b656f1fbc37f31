// Package codec provides serialization descriptors for dataset records.
// Every dataset carries a Codec of its element type; operators use it to
// turn rows into values and back, and broadcast sets are shipped to tasks
// in their encoded form.
package codec

import "github.com/pkg/errors"

// Codec describes how values of T are encoded into row values and back.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// EncodeAll encodes values in order.
func EncodeAll[T any](c Codec[T], values []T) ([][]byte, error) {
	encoded := make([][]byte, len(values))
	for i, v := range values {
		data, err := c.Encode(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encode #%d", i)
		}
		encoded[i] = data
	}
	return encoded, nil
}

// DecodeAll decodes values in order. The result is never nil.
func DecodeAll[T any](c Codec[T], encoded [][]byte) ([]T, error) {
	values := make([]T, len(encoded))
	for i, data := range encoded {
		v, err := c.Decode(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode #%d", i)
		}
		values[i] = v
	}
	return values, nil
}
