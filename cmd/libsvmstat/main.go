// libsvmstat prints a histogram of the labels of a LibSVM file, and writes
// the file again with every feature scaled into [-1, 1] by its maximum
// absolute value.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"syscall"
	"time"

	"github.com/ab180/enrich"
	"github.com/ab180/enrich/dataflow"
	"github.com/ab180/enrich/histogram"
	"github.com/ab180/enrich/internal/util"
	"github.com/ab180/enrich/libsvm"
	"github.com/ab180/enrich/partitions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	in := flag.String("in", "", "LibSVM file to read")
	out := flag.String("out", "", "path to write the scaled file to (optional)")
	bins := flag.Int("bins", 10, "number of bins of the label histogram")
	numPartitions := flag.Int("partitions", partitions.Auto, "number of partitions")
	etcd := flag.String("etcd", "", "etcd endpoint to publish broadcast variables through (optional)")
	timeout := flag.Duration("timeout", 10*time.Minute, "timeout of each run")
	verbose := flag.Bool("v", false, "print debug logs")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	opts := []dataflow.SessionOption{
		dataflow.WithName("libsvmstat"),
		dataflow.WithTimeout(*timeout),
	}
	if *etcd != "" {
		opts = append(opts, dataflow.WithEtcd(*etcd))
	}
	if err := run(opts, *in, *out, *bins, *numPartitions); err != nil {
		log.Error().Err(err).Msg("failed")
		os.Exit(1)
	}
}

func run(opts []dataflow.SessionOption, in, out string, bins, numPartitions int) error {
	sess, err := dataflow.NewSession(opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := util.ContextWithSignal(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return stat(ctx, sess, in, out, bins, numPartitions)
}

func stat(ctx context.Context, sess *dataflow.Session, in, out string, bins, numPartitions int) error {
	vectors, err := enrich.ReadLibSVM(sess, in, libsvm.WithPartitions(numPartitions))
	if err != nil {
		return err
	}

	labels := dataflow.Map(vectors, func(lv libsvm.LabeledVector) (float64, error) {
		return lv.Label, nil
	})
	hist, err := histogram.Create(labels, bins)
	if err != nil {
		return err
	}
	collected, err := hist.Collect(ctx)
	if err != nil {
		return err
	}
	printHistogram(collected[0])

	if out == "" {
		return nil
	}
	maxAbs, err := maxAbsOf(vectors)
	if err != nil {
		return err
	}
	scaled := enrich.MapWithBroadcast(vectors, maxAbs, func(lv libsvm.LabeledVector, scale []float64) (libsvm.LabeledVector, error) {
		values := make([]float64, len(lv.Vector.Values))
		for i, idx := range lv.Vector.Indices {
			values[i] = lv.Vector.Values[i]
			if scale[idx] != 0 {
				values[i] /= scale[idx]
			}
		}
		lv.Vector.Values = values
		return lv, nil
	})
	if err := enrich.WriteLibSVM(ctx, scaled, out); err != nil {
		return err
	}
	log.Info().Str("path", out).Msg("scaled vectors written")
	return nil
}

// maxAbsOf returns a dataset with the only vector holding the maximum
// absolute value of each feature.
func maxAbsOf(vectors *dataflow.Dataset[libsvm.LabeledVector]) (*dataflow.Dataset[[]float64], error) {
	partial := dataflow.MapPartition(vectors, func(_ context.Context, p []libsvm.LabeledVector) ([][]float64, error) {
		var maxAbs []float64
		for _, lv := range p {
			maxAbs = mergeMaxAbs(maxAbs, lv.Vector.Dense())
		}
		return [][]float64{maxAbs}, nil
	})
	gathered, err := dataflow.Repartition(partial, 1)
	if err != nil {
		return nil, err
	}
	return dataflow.MapPartition(gathered, func(_ context.Context, partials [][]float64) ([][]float64, error) {
		var maxAbs []float64
		for _, p := range partials {
			maxAbs = mergeMaxAbs(maxAbs, p)
		}
		return [][]float64{maxAbs}, nil
	}), nil
}

func mergeMaxAbs(acc, v []float64) []float64 {
	for len(acc) < len(v) {
		acc = append(acc, 0)
	}
	for i, x := range v {
		acc[i] = math.Max(acc[i], math.Abs(x))
	}
	return acc
}

func printHistogram(h *histogram.Histogram) {
	total := h.Total()
	fmt.Printf("%d labels in [%g, %g]\n", int64(total), h.Min, h.Max)
	for _, c := range h.Centroids {
		fmt.Printf("%12.4f %10d %6.2f%%\n", c.Value, int64(c.Count), 100*c.Count/total)
	}
}
