package operator

import (
	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/transformation"
)

// SetMapper is a Mapper which receives every element of the broadcast
// variable, in the order they were produced. The variable may be empty.
type SetMapper[T, B, O any] struct {
	name   string
	fn     func(T, []B) (O, error)
	codecs Codecs[T, B, O]

	values []B
}

func NewSetMapper[T, B, O any](name string, fn func(T, []B) (O, error), codecs Codecs[T, B, O]) *SetMapper[T, B, O] {
	return &SetMapper[T, B, O]{name: name, fn: fn, codecs: codecs}
}

func (m *SetMapper[T, B, O]) NewInstance() transformation.Transformation {
	return NewSetMapper(m.name, m.fn, m.codecs)
}

func (m *SetMapper[T, B, O]) Setup(ctx transformation.Context) (err error) {
	m.values, err = broadcast.ResolveSet(ctx, m.name, m.codecs.Side)
	return
}

func (m *SetMapper[T, B, O]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := m.codecs.decode(row)
		if err != nil {
			return err
		}
		result, err := m.fn(v, m.values)
		if err != nil {
			return err
		}
		return m.codecs.write(out, result)
	})
}
