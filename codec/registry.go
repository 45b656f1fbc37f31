package codec

import (
	"sync"

	"github.com/modern-go/reflect2"
)

var registry sync.Map

// Register sets the codec used for T by every dataset created afterwards
// without an explicit codec.
func Register[T any](c Codec[T]) {
	registry.Store(typeKey[T](), c)
}

// For returns the registered codec of T, falling back to JSON.
func For[T any]() Codec[T] {
	if c, ok := registry.Load(typeKey[T]()); ok {
		return c.(Codec[T])
	}
	return JSON[T]()
}

func typeKey[T any]() uintptr {
	return reflect2.RTypeOf((*T)(nil))
}
