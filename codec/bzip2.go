package codec

import (
	"compress/bzip2"
	"io"
)

// bzip2Codec implements Decompressor for method 12.
type bzip2Codec struct{}

var _ Decompressor = bzip2Codec{}

func (bzip2Codec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(src)), nil
}
