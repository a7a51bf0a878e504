package codec

import (
	"errors"
	"fmt"
	"io"
)

// Compression method ids defined by the ZIP format that this package can
// decode.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
	BZip2   uint16 = 12
	Zstd    uint16 = 93
	XZ      uint16 = 95
)

// ErrUnsupportedMethod is returned by ForMethod for any method id outside
// the supported set. The id is included in the wrapping message.
var ErrUnsupportedMethod = errors.New("unsupported compression method")

// Decompressor creates streaming decoders over an entry's compressed data.
//
// Decoders are single-pass; a fresh decoder is created per extraction
// attempt. Implementations are stateless or internally pooled and safe for
// concurrent use.
type Decompressor interface {
	// NewDecoder creates a decoder to decompress contents from the given io.Reader.
	NewDecoder(src io.Reader) (io.ReadCloser, error)
}

// ForMethod maps a compression method id to its Decompressor.
//
// The set of supported methods is closed: store, deflate, bzip2, zstd and
// xz. Anything else fails with ErrUnsupportedMethod; the caller reports
// that per entry rather than aborting the archive.
func ForMethod(method uint16) (Decompressor, error) {
	switch method {
	case Store:
		return storeCodec{}, nil
	case Deflate:
		return deflateCodec{}, nil
	case BZip2:
		return bzip2Codec{}, nil
	case Zstd:
		return zstdCodec{}, nil
	case XZ:
		return xzCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, method)
	}
}

// Name returns a display name for the given method id, or "method <id>" for
// ids outside the supported set.
func Name(method uint16) string {
	switch method {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	case BZip2:
		return "bzip2"
	case Zstd:
		return "zstd"
	case XZ:
		return "xz"
	default:
		return fmt.Sprintf("method %d", method)
	}
}
