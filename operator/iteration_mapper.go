package operator

import (
	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/transformation"
)

// IterationMapper is a Mapper which also receives the current superstep of
// the iteration running the stage.
type IterationMapper[T, B, O any] struct {
	name   string
	fn     func(v T, b B, superstep int) (O, error)
	codecs Codecs[T, B, O]

	value B
}

func NewIterationMapper[T, B, O any](name string, fn func(T, B, int) (O, error), codecs Codecs[T, B, O]) *IterationMapper[T, B, O] {
	return &IterationMapper[T, B, O]{name: name, fn: fn, codecs: codecs}
}

func (m *IterationMapper[T, B, O]) NewInstance() transformation.Transformation {
	return NewIterationMapper(m.name, m.fn, m.codecs)
}

func (m *IterationMapper[T, B, O]) Setup(ctx transformation.Context) (err error) {
	m.value, err = broadcast.Resolve(ctx, m.name, m.codecs.Side)
	return
}

func (m *IterationMapper[T, B, O]) Apply(ctx transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := m.codecs.decode(row)
		if err != nil {
			return err
		}
		// the superstep is owned by the iteration and must not be cached
		result, err := m.fn(v, m.value, ctx.Superstep())
		if err != nil {
			return err
		}
		return m.codecs.write(out, result)
	})
}
