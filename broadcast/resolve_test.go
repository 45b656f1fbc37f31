package broadcast

import (
	"errors"
	"testing"

	"github.com/ab180/enrich/codec"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string][][]byte

func (f fakeSource) Broadcast(name string) ([][]byte, error) {
	elements, ok := f[name]
	if !ok {
		return nil, ErrMissing
	}
	return elements, nil
}

func encoded(t *testing.T, values ...int) [][]byte {
	data, err := codec.EncodeAll(codec.JSON[int](), values)
	require.NoError(t, err)
	return data
}

func TestResolve(t *testing.T) {
	src := fakeSource{
		"one":   encoded(t, 10),
		"none":  encoded(t),
		"two":   encoded(t, 1, 2),
		"wrong": {[]byte("not a number")},
	}

	v, err := Resolve(src, "one", codec.JSON[int]())
	require.NoError(t, err)
	require.Equal(t, 10, v)

	tcs := []struct {
		Name  string
		Cause error
	}{
		{Name: "none", Cause: ErrEmpty},
		{Name: "two", Cause: ErrNotSingleton},
		{Name: "absent", Cause: ErrMissing},
	}
	for _, tc := range tcs {
		_, err := Resolve(src, tc.Name, codec.JSON[int]())

		var resErr *ResolutionError
		require.ErrorAs(t, err, &resErr, tc.Name)
		require.Equal(t, tc.Name, resErr.Name)
		require.ErrorIs(t, err, tc.Cause, tc.Name)
	}

	_, err = Resolve(src, "wrong", codec.JSON[int]())
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.ErrorContains(t, err, "decode")
}

func TestResolveSet(t *testing.T) {
	src := fakeSource{
		"many": encoded(t, 3, 1, 2),
		"none": encoded(t),
	}

	vv, err := ResolveSet(src, "many", codec.JSON[int]())
	require.NoError(t, err)
	require.Equal(t, []int{3, 1, 2}, vv)

	vv, err = ResolveSet(src, "none", codec.JSON[int]())
	require.NoError(t, err)
	require.NotNil(t, vv)
	require.Empty(t, vv)

	_, err = ResolveSet(src, "absent", codec.JSON[int]())
	require.True(t, errors.Is(err, ErrMissing))
}
