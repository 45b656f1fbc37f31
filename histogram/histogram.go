// Package histogram builds streaming histograms of numeric datasets.
//
// A histogram keeps at most a fixed number of centroids. When a new value
// makes it exceed the limit, the two closest centroids are merged into their
// weighted mean, so that the histogram can summarize a dataset of any size
// in a single pass and histograms of partitions can be merged.
package histogram

import (
	"context"
	"math"
	"sort"

	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/dataflow"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var ErrInvalidBins = errors.New("number of bins must be positive")

func init() {
	// bounds of an empty histogram are infinite, which JSON cannot carry
	codec.Register(codec.Msgpack[*Histogram]())
}

type Centroid struct {
	Value float64 `json:"value"`
	Count float64 `json:"count"`
}

// Histogram is a streaming histogram of at most Bins centroids, sorted by value.
type Histogram struct {
	Bins      int        `json:"bins"`
	Centroids []Centroid `json:"centroids"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
}

func New(bins int) (*Histogram, error) {
	if bins <= 0 {
		return nil, errors.Wrapf(ErrInvalidBins, "got %d", bins)
	}
	return &Histogram{
		Bins: bins,
		Min:  math.Inf(1),
		Max:  math.Inf(-1),
	}, nil
}

func (h *Histogram) Add(v float64) {
	h.insert(Centroid{Value: v, Count: 1})
	h.Min = math.Min(h.Min, v)
	h.Max = math.Max(h.Max, v)
	h.shrink()
}

// Merge adds every centroid of o to the histogram.
func (h *Histogram) Merge(o *Histogram) {
	for _, c := range o.Centroids {
		h.insert(c)
	}
	h.Min = math.Min(h.Min, o.Min)
	h.Max = math.Max(h.Max, o.Max)
	h.shrink()
}

// Total returns the number of values added to the histogram.
func (h *Histogram) Total() float64 {
	return lo.SumBy(h.Centroids, func(c Centroid) float64 { return c.Count })
}

// Count returns the estimated number of values less than or equal to b.
func (h *Histogram) Count(b float64) float64 {
	if len(h.Centroids) == 0 || b < h.Min {
		return 0
	}
	if b >= h.Max {
		return h.Total()
	}
	i := sort.Search(len(h.Centroids), func(i int) bool { return h.Centroids[i].Value > b })
	sum := 0.0
	for _, c := range h.Centroids[:i] {
		sum += c.Count
	}
	return sum
}

// Quantile returns the estimated value below which q of the values fall.
func (h *Histogram) Quantile(q float64) (float64, error) {
	if q < 0 || q > 1 {
		return 0, errors.Errorf("quantile %v is out of [0, 1]", q)
	}
	if len(h.Centroids) == 0 {
		return 0, errors.New("histogram is empty")
	}
	target, sum := q*h.Total(), 0.0
	for _, c := range h.Centroids {
		sum += c.Count
		if sum >= target {
			return c.Value, nil
		}
	}
	return h.Max, nil
}

func (h *Histogram) insert(c Centroid) {
	i := sort.Search(len(h.Centroids), func(i int) bool { return h.Centroids[i].Value >= c.Value })
	if i < len(h.Centroids) && h.Centroids[i].Value == c.Value {
		h.Centroids[i].Count += c.Count
		return
	}
	h.Centroids = append(h.Centroids, Centroid{})
	copy(h.Centroids[i+1:], h.Centroids[i:])
	h.Centroids[i] = c
}

func (h *Histogram) shrink() {
	for len(h.Centroids) > h.Bins {
		closest := 0
		for i := 1; i < len(h.Centroids)-1; i++ {
			if h.Centroids[i+1].Value-h.Centroids[i].Value < h.Centroids[closest+1].Value-h.Centroids[closest].Value {
				closest = i
			}
		}
		a, b := h.Centroids[closest], h.Centroids[closest+1]
		count := a.Count + b.Count
		h.Centroids[closest] = Centroid{
			Value: (a.Value*a.Count + b.Value*b.Count) / count,
			Count: count,
		}
		h.Centroids = append(h.Centroids[:closest+1], h.Centroids[closest+2:]...)
	}
}

// Create returns a dataset with the only histogram of the values in ds.
// Histograms of partitions are built in parallel, then merged.
func Create(ds *dataflow.Dataset[float64], bins int) (*dataflow.Dataset[*Histogram], error) {
	if bins <= 0 {
		return nil, errors.Wrapf(ErrInvalidBins, "got %d", bins)
	}
	partial := dataflow.MapPartition(ds, func(_ context.Context, values []float64) ([]*Histogram, error) {
		h, err := New(bins)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			h.Add(v)
		}
		return []*Histogram{h}, nil
	})
	gathered, err := dataflow.Repartition(partial, 1)
	if err != nil {
		return nil, err
	}
	return dataflow.MapPartition(gathered, func(_ context.Context, partials []*Histogram) ([]*Histogram, error) {
		h, err := New(bins)
		if err != nil {
			return nil, err
		}
		for _, p := range partials {
			h.Merge(p)
		}
		return []*Histogram{h}, nil
	}), nil
}
