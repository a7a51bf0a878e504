package codec

import (
	"io"

	"github.com/ulikunitz/xz"
)

// xzCodec implements Decompressor for method 95.
type xzCodec struct{}

var _ Decompressor = xzCodec{}

func (xzCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	r, err := xz.NewReader(src)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(r), nil
}
