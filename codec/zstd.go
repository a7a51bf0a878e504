package codec

import (
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec implements Decompressor for method 93.
//
// zstd decoders allocate large internal buffers, so instances are pooled
// and reset onto each entry's reader; closing the returned decoder parks
// the instance back in the pool instead of releasing it.
type zstdCodec struct{}

var _ Decompressor = zstdCodec{}

var zstdPool = sync.Pool{
	New: func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	},
}

func (zstdCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	d := zstdPool.Get().(*zstd.Decoder)
	if err := d.Reset(src); err != nil {
		zstdPool.Put(d)
		return nil, err
	}
	return &zstdDecoder{d: d}, nil
}

type zstdDecoder struct {
	d *zstd.Decoder
}

func (r *zstdDecoder) Read(p []byte) (int, error) {
	if r.d == nil {
		return 0, errors.New("zstd: read after close")
	}
	return r.d.Read(p)
}

func (r *zstdDecoder) Close() error {
	if d := r.d; d != nil {
		r.d = nil
		_ = d.Reset(nil)
		zstdPool.Put(d)
	}
	return nil
}
