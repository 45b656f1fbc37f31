package operator

import (
	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/transformation"
)

// Mapper emits exactly one output for each input, computed with the single
// element of the broadcast variable.
type Mapper[T, B, O any] struct {
	name   string
	fn     func(T, B) (O, error)
	codecs Codecs[T, B, O]

	value B
}

func NewMapper[T, B, O any](name string, fn func(T, B) (O, error), codecs Codecs[T, B, O]) *Mapper[T, B, O] {
	return &Mapper[T, B, O]{name: name, fn: fn, codecs: codecs}
}

func (m *Mapper[T, B, O]) NewInstance() transformation.Transformation {
	return NewMapper(m.name, m.fn, m.codecs)
}

func (m *Mapper[T, B, O]) Setup(ctx transformation.Context) (err error) {
	m.value, err = broadcast.Resolve(ctx, m.name, m.codecs.Side)
	return
}

func (m *Mapper[T, B, O]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := m.codecs.decode(row)
		if err != nil {
			return err
		}
		result, err := m.fn(v, m.value)
		if err != nil {
			return err
		}
		return m.codecs.write(out, result)
	})
}

// Filter forwards the inputs for which the predicate holds, as they are.
type Filter[T, B any] struct {
	name   string
	fn     func(T, B) (bool, error)
	codecs Codecs[T, B, T]

	value B
}

func NewFilter[T, B any](name string, fn func(T, B) (bool, error), codecs Codecs[T, B, T]) *Filter[T, B] {
	return &Filter[T, B]{name: name, fn: fn, codecs: codecs}
}

func (f *Filter[T, B]) NewInstance() transformation.Transformation {
	return NewFilter(f.name, f.fn, f.codecs)
}

func (f *Filter[T, B]) Setup(ctx transformation.Context) (err error) {
	f.value, err = broadcast.Resolve(ctx, f.name, f.codecs.Side)
	return
}

func (f *Filter[T, B]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := f.codecs.decode(row)
		if err != nil {
			return err
		}
		ok, err := f.fn(v, f.value)
		if err != nil || !ok {
			return err
		}
		return out.Write(row)
	})
}

// FlatMapper emits every element returned for an input, in order.
// Returning no element drops the input.
type FlatMapper[T, B, O any] struct {
	name   string
	fn     func(T, B) ([]O, error)
	codecs Codecs[T, B, O]

	value B
}

func NewFlatMapper[T, B, O any](name string, fn func(T, B) ([]O, error), codecs Codecs[T, B, O]) *FlatMapper[T, B, O] {
	return &FlatMapper[T, B, O]{name: name, fn: fn, codecs: codecs}
}

func (f *FlatMapper[T, B, O]) NewInstance() transformation.Transformation {
	return NewFlatMapper(f.name, f.fn, f.codecs)
}

func (f *FlatMapper[T, B, O]) Setup(ctx transformation.Context) (err error) {
	f.value, err = broadcast.Resolve(ctx, f.name, f.codecs.Side)
	return
}

func (f *FlatMapper[T, B, O]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := f.codecs.decode(row)
		if err != nil {
			return err
		}
		results, err := f.fn(v, f.value)
		if err != nil {
			return err
		}
		return f.codecs.write(out, results...)
	})
}
