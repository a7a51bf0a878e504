// Package zipfile reads the on-disk structures of a ZIP archive: the
// end-of-central-directory record and its ZIP64 extensions, the central
// directory file headers, the per-entry extra fields, and the local file
// headers that precede each entry's compressed data.
//
// The package only parses; it never decompresses. Everything works off an
// io.ReaderAt so that one read-only view of the archive (typically a memory
// map) can be shared by concurrent readers.
package zipfile

// Record signatures. All multi-byte integers in a ZIP file are little-endian.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format).
const (
	sigCDFH         uint32 = 0x02014b50 // central directory file header
	sigLFH          uint32 = 0x04034b50 // local file header
	sigEOCD         uint32 = 0x06054b50 // end of central directory record
	sigZip64EOCD    uint32 = 0x06064b50 // ZIP64 end of central directory record
	sigZip64Locator uint32 = 0x07064b50 // ZIP64 end of central directory locator
	sigDataDesc     uint32 = 0x08074b50 // data descriptor (optional)
)

// Fixed sizes of the records above, excluding variable-length tails.
const (
	eocdLen         = 22
	zip64EOCDLen    = 56 // signature + size field + 44 fixed bytes
	zip64LocatorLen = 20
	cdfhLen         = 46
	lfhLen          = 30

	// maxCommentLen bounds the backward scan for the EOCD signature: the
	// comment length is a uint16, so the signature can be at most
	// maxCommentLen+eocdLen bytes before the end of the archive.
	maxCommentLen = 0xffff
)

// General-purpose bit flags of interest.
const (
	// FlagDataDescriptor (bit 3) marks entries whose sizes and CRC-32
	// were written in a data descriptor after the compressed data; the
	// local file header's copies are zero.
	FlagDataDescriptor uint16 = 0x0008
	// FlagUTF8 (bit 11) marks the file name and comment as UTF-8.
	FlagUTF8 uint16 = 0x0800
)

// Sentinel values indicating the true value lives in a ZIP64 field.
const (
	sentinel16 = 0xffff
	sentinel32 = 0xffffffff
)
