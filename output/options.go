package output

type Options struct {
	// BufferLength is the number of rows buffered per output before they are
	// handed to the next stage.
	BufferLength int `default:"100"`
}
