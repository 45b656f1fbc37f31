// Package libsvm reads and writes datasets of labeled vectors in the LibSVM
// text format: one vector per line, as a label followed by space separated
// index:value pairs of its non-zero features. Indices are 1-based in files
// and 0-based in memory.
package libsvm

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var ErrMalformed = errors.New("malformed libsvm line")

// Vector is a sparse vector. Indices are sorted in ascending order.
type Vector struct {
	Size    int       `json:"size"`
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// Get returns the value at i, or 0 if it is not set.
func (v Vector) Get(i int) float64 {
	pos := sort.SearchInts(v.Indices, i)
	if pos < len(v.Indices) && v.Indices[pos] == i {
		return v.Values[pos]
	}
	return 0
}

func (v Vector) Dense() []float64 {
	dense := make([]float64, v.Size)
	for i, idx := range v.Indices {
		dense[idx] = v.Values[i]
	}
	return dense
}

type LabeledVector struct {
	Label  float64 `json:"label"`
	Vector Vector  `json:"vector"`
}

// parseLine parses a line of LibSVM. ok is false for blank or comment lines.
func parseLine(line string) (lv LabeledVector, ok bool, err error) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return lv, false, nil
	}
	lv.Label, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return lv, false, errors.Wrapf(ErrMalformed, "label %q", fields[0])
	}
	for _, f := range fields[1:] {
		idxStr, valStr, found := strings.Cut(f, ":")
		if !found {
			return lv, false, errors.Wrapf(ErrMalformed, "feature %q", f)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 1 {
			return lv, false, errors.Wrapf(ErrMalformed, "index %q", idxStr)
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return lv, false, errors.Wrapf(ErrMalformed, "value %q", valStr)
		}
		lv.Vector.Indices = append(lv.Vector.Indices, idx-1)
		lv.Vector.Values = append(lv.Vector.Values, val)
	}
	if !sort.IntsAreSorted(lv.Vector.Indices) {
		return lv, false, errors.Wrap(ErrMalformed, "indices must be in ascending order")
	}
	if len(lv.Vector.Indices) > 0 {
		lv.Vector.Size = lo.Max(lv.Vector.Indices) + 1
	}
	return lv, true, nil
}

func formatLine(lv LabeledVector) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatFloat(lv.Label, 'g', -1, 64))
	for i, idx := range lv.Vector.Indices {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(idx + 1))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(lv.Vector.Values[i], 'g', -1, 64))
	}
	return sb.String()
}
