package executor

import (
	"context"

	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/lrdd"
)

// LocalPipe connects a task to the input of a task in the next stage.
type LocalPipe struct {
	ctx             context.Context
	nextStageReader *input.Reader
}

func NewLocalPipe(ctx context.Context, r *input.Reader) *LocalPipe {
	r.Add()
	return &LocalPipe{ctx: ctx, nextStageReader: r}
}

func (l *LocalPipe) Write(rows []*lrdd.Row) error {
	return l.nextStageReader.Write(l.ctx, rows)
}

func (l *LocalPipe) Close() error {
	l.nextStageReader.Done()
	return nil
}
