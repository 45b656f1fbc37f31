// Package operator provides transformations enriched with a broadcast
// variable. Every operator resolves the variable once per task in Setup,
// then calls its user function for each record with the resolved value.
//
// Operators are prototypes: the executor creates a fresh instance for each
// task with NewInstance, so the resolved value is never shared between tasks.
package operator

import (
	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/pkg/errors"
)

// Codecs describes how records are encoded around an operator.
type Codecs[T, B, O any] struct {
	In   codec.Codec[T]
	Side codec.Codec[B]
	Out  codec.Codec[O]
}

// CodecsFor returns codecs registered for the types, or JSON by default.
func CodecsFor[T, B, O any]() Codecs[T, B, O] {
	return Codecs[T, B, O]{
		In:   codec.For[T](),
		Side: codec.For[B](),
		Out:  codec.For[O](),
	}
}

func (c Codecs[T, B, O]) decode(row *lrdd.Row) (T, error) {
	v, err := c.In.Decode(row.Value)
	if err != nil {
		return v, errors.Wrap(err, "decode input")
	}
	return v, nil
}

func (c Codecs[T, B, O]) write(out *output.Writer, values ...O) error {
	rows := make([]*lrdd.Row, len(values))
	for i, v := range values {
		data, err := c.Out.Encode(v)
		if err != nil {
			return errors.Wrap(err, "encode output")
		}
		rows[i] = lrdd.Value(data)
	}
	return out.Write(rows...)
}
