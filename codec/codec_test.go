package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/ulikunitz/xz"
)

func TestForMethod(t *testing.T) {
	for _, method := range []uint16{Store, Deflate, BZip2, Zstd, XZ} {
		t.Run(Name(method), func(t *testing.T) {
			dec, err := ForMethod(method)
			assert.NoErrorf(t, err, "ForMethod(%d) error = %v", method, err)
			assert.NotNil(t, dec)
		})
	}
}

func TestForMethod_Unsupported(t *testing.T) {
	_, err := ForMethod(99)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Contains(t, err.Error(), "99")
}

func TestName(t *testing.T) {
	assert.Equal(t, "store", Name(Store))
	assert.Equal(t, "deflate", Name(Deflate))
	assert.Equal(t, "bzip2", Name(BZip2))
	assert.Equal(t, "zstd", Name(Zstd))
	assert.Equal(t, "xz", Name(XZ))
	assert.Equal(t, "method 99", Name(99))
}

// decode runs compressed through the decoder for method and returns the
// decompressed text.
func decode(t *testing.T, method uint16, compressed []byte) string {
	t.Helper()

	dec, err := ForMethod(method)
	assert.NoErrorf(t, err, "ForMethod(%d) error = %v", method, err)

	r, err := dec.NewDecoder(bytes.NewReader(compressed))
	assert.NoErrorf(t, err, "NewDecoder(...) error = %v", err)
	defer r.Close()

	b, err := io.ReadAll(r)
	assert.NoErrorf(t, err, "ReadAll(...) error = %v", err)
	return string(b)
}

func TestStore(t *testing.T) {
	assert.Equal(t, "hello world", decode(t, Store, []byte("hello world")))
	assert.Equal(t, "", decode(t, Store, nil))
}

func TestDeflate(t *testing.T) {
	body := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 50)

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	assert.NoErrorf(t, err, "flate.NewWriter(...) error = %v", err)
	_, err = w.Write([]byte(body))
	assert.NoErrorf(t, err, "write error = %v", err)
	assert.NoErrorf(t, w.Close(), "Close() error")

	assert.Equal(t, body, decode(t, Deflate, buf.Bytes()))
}

func TestZstd(t *testing.T) {
	body := strings.Repeat("zstandard round trip data ", 100)

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	assert.NoErrorf(t, err, "zstd.NewWriter(...) error = %v", err)
	_, err = w.Write([]byte(body))
	assert.NoErrorf(t, err, "write error = %v", err)
	assert.NoErrorf(t, w.Close(), "Close() error")

	// decode twice so that a pooled decoder gets parked and reused.
	assert.Equal(t, body, decode(t, Zstd, buf.Bytes()))
	assert.Equal(t, body, decode(t, Zstd, buf.Bytes()))
}

func TestZstd_ReadAfterClose(t *testing.T) {
	dec, err := ForMethod(Zstd)
	assert.NoErrorf(t, err, "ForMethod(Zstd) error = %v", err)

	r, err := dec.NewDecoder(bytes.NewReader(nil))
	assert.NoErrorf(t, err, "NewDecoder(...) error = %v", err)
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())

	_, err = r.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestXZ(t *testing.T) {
	body := strings.Repeat("xz round trip data ", 100)

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	assert.NoErrorf(t, err, "xz.NewWriter(...) error = %v", err)
	_, err = w.Write([]byte(body))
	assert.NoErrorf(t, err, "write error = %v", err)
	assert.NoErrorf(t, w.Close(), "Close() error")

	assert.Equal(t, body, decode(t, XZ, buf.Bytes()))
}
