package punzip

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/nguyengg/punzip/codec"
	"github.com/nguyengg/punzip/zipfile"
)

// Open returns a reader over the entry's decompressed contents.
//
// The reader verifies the CRC-32 and byte count against the central
// directory as it goes: the final Read reports ErrChecksum or
// ErrSizeMismatch instead of io.EOF when the data does not match, and the
// stream is capped at the declared uncompressed size so a lying archive
// cannot produce more bytes than it declared. Close must be called to
// release decoder resources.
//
// The reader is single-pass; call Open again for another attempt. Multiple
// entries of the same archive can be open concurrently.
func (e *Entry) Open() (io.ReadCloser, error) {
	rc, _, err := e.open(true)
	return rc, err
}

// open resolves the entry's compressed data range, creates the decompressor
// for its method and wraps the result in the verifying reader.
//
// The returned warnings list the fields where the local file header
// disagrees with the central directory; the central directory stays
// authoritative and the disagreement alone never fails the entry.
func (e *Entry) open(verify bool) (io.ReadCloser, []string, error) {
	a := e.archive
	if a == nil {
		return nil, nil, errors.New("entry is not attached to an open archive")
	}

	lh, data, err := zipfile.ResolveData(a.src, a.size, &e.FileHeader)
	if err != nil {
		return nil, nil, err
	}
	warnings := lh.Mismatches(&e.FileHeader)

	dec, err := codec.ForMethod(e.Method)
	if err != nil {
		return nil, warnings, err
	}

	rc, err := dec.NewDecoder(io.NewSectionReader(a.src, data.Offset, data.Length))
	if err != nil {
		return nil, warnings, fmt.Errorf("create %s decoder error: %w", codec.Name(e.Method), err)
	}

	cr := &checksumReader{
		rc:    rc,
		size:  e.UncompressedSize,
		crc32: e.CRC32,
	}
	if verify {
		cr.hash = crc32.NewIEEE()
	}
	return cr, warnings, nil
}

// checksumReader accumulates a CRC-32 (IEEE, the ZIP polynomial) and byte
// count over the decompressed stream and compares both against the central
// directory values once the stream ends.
//
// Reads never go past the declared uncompressed size; a decompressor that
// still has bytes at that point is cut off with ErrSizeMismatch. With a nil
// hash only the byte count is checked.
type checksumReader struct {
	rc    io.ReadCloser
	hash  hash.Hash32
	size  uint64
	crc32 uint32
	nread uint64
	err   error // sticky
}

func (r *checksumReader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if remaining := r.size - r.nread; remaining < uint64(len(p)) {
		p = p[:remaining]
	}

	if len(p) == 0 {
		// the declared size has been delivered in full; the stream must
		// end here, probing one byte tells a well-formed entry from one
		// that would overrun.
		var b [1]byte
		if pn, _ := r.rc.Read(b[:]); pn > 0 {
			r.err = fmt.Errorf("%w: decompressed data exceeds declared %d bytes", ErrSizeMismatch, r.size)
			return 0, r.err
		}
		err = io.EOF
	} else {
		n, err = r.rc.Read(p)
		if r.hash != nil {
			r.hash.Write(p[:n])
		}
		r.nread += uint64(n)
	}

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		if r.nread != r.size {
			r.err = fmt.Errorf("%w: got %d bytes, declared %d", ErrSizeMismatch, r.nread, r.size)
		} else if r.hash != nil && r.hash.Sum32() != r.crc32 {
			r.err = fmt.Errorf("%w: got %08x, declared %08x", ErrChecksum, r.hash.Sum32(), r.crc32)
		} else {
			r.err = io.EOF
		}
	default:
		r.err = err
	}

	return n, r.err
}

func (r *checksumReader) Close() error {
	return r.rc.Close()
}
