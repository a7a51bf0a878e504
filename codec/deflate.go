package codec

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// deflateCodec implements Decompressor for method 8, raw deflate streams.
type deflateCodec struct{}

var _ Decompressor = deflateCodec{}

func (deflateCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(src), nil
}
