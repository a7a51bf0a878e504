package punzip

import (
	"errors"

	"github.com/nguyengg/punzip/codec"
	"github.com/nguyengg/punzip/zipfile"
)

var (
	// ErrChecksum is returned when the CRC-32 of an entry's decompressed
	// data does not match the value declared in the central directory.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrSizeMismatch is returned when an entry's decompressed data is
	// shorter or longer than the declared uncompressed size.
	ErrSizeMismatch = errors.New("uncompressed size mismatch")
	// ErrInsecurePath is returned for entry names that would escape the
	// destination root: absolute paths, ".." traversal, drive letters or
	// backslash separators.
	ErrInsecurePath = errors.New("insecure file path")
)

// Aliases for the sentinel errors of the parsing and decompression
// packages, so every error this package can surface has an errors.Is
// target here.
var (
	ErrNoEOCD             = zipfile.ErrNoEOCD
	ErrFormat             = zipfile.ErrFormat
	ErrMultiDisk          = zipfile.ErrMultiDisk
	ErrTruncatedDirectory = zipfile.ErrTruncatedDirectory
	ErrOffsetOutOfRange   = zipfile.ErrOffsetOutOfRange
	ErrExtraField         = zipfile.ErrExtraField
	ErrUnsupportedMethod  = codec.ErrUnsupportedMethod
)
