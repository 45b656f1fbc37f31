package lrdd

// Row is a unit of data moved between stages. Value holds a record encoded
// with the codec of the dataset the row belongs to; Key is only used by
// key-based partitioners.
type Row struct {
	Key   string
	Value []byte
}

func Value(v []byte) *Row {
	return &Row{Value: v}
}

func KeyValue(k string, v []byte) *Row {
	return &Row{Key: k, Value: v}
}

// Values extracts the encoded values of given rows, preserving order.
func Values(rows []*Row) [][]byte {
	vv := make([][]byte, len(rows))
	for i, r := range rows {
		vv[i] = r.Value
	}
	return vv
}

// FromValues wraps each encoded value into a keyless row.
func FromValues(values [][]byte) []*Row {
	rows := make([]*Row, len(values))
	for i, v := range values {
		rows[i] = Value(v)
	}
	return rows
}
