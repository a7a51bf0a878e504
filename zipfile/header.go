package zipfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"time"

	"github.com/valyala/bytebufferpool"
)

// FileHeader is one central directory file header with its ZIP64 sentinel
// fields already resolved against the ZIP64 extra field.
//
// Name bytes are kept raw because their encoding is not known at this layer;
// callers decide how to decode them (see the charset package).
type FileHeader struct {
	// CreatorVersion is the "version made by" field; its high byte
	// identifies the creating host system and selects how ExternalAttrs
	// is interpreted.
	CreatorVersion uint16
	// ReaderVersion is the minimum version needed to extract.
	ReaderVersion uint16
	// Flags is the general purpose bit flag (see FlagUTF8,
	// FlagDataDescriptor).
	Flags uint16
	// Method is the compression method id.
	Method uint16
	// Modified is the modification time: MS-DOS time at 2s resolution,
	// upgraded by an extended-timestamp or NTFS extra field when present.
	Modified time.Time
	// ModifiedTime and ModifiedDate are the raw MS-DOS fields.
	ModifiedTime uint16
	ModifiedDate uint16
	// CRC32 is the declared checksum of the uncompressed data.
	CRC32 uint32
	// CompressedSize and UncompressedSize are the logical 64-bit sizes.
	CompressedSize   uint64
	UncompressedSize uint64
	// InternalAttrs is the internal file attributes field.
	InternalAttrs uint16
	// ExternalAttrs is the external file attributes field; for unix
	// creators the high 16 bits carry the file mode.
	ExternalAttrs uint32
	// DiskNumber is the disk on which the file starts.
	DiskNumber uint32
	// Offset is the local file header offset relative to the start of
	// the archive.
	Offset uint64
	// RawName is the file name exactly as stored.
	RawName []byte
	// Comment is the raw file comment; nil unless Options.KeepComment.
	Comment []byte
	// Extra holds the parsed extra fields in on-disk order.
	Extra Fields
	// ParseErr records a non-fatal defect in this header's extra fields
	// (ErrExtraField); the fields that did decode are still populated.
	// Extraction of an entry whose ZIP64 values could not be resolved
	// will fail, but the defect never aborts the catalog walk.
	ParseErr error
}

// fixedSizeCDFileHeader needs to be fixed size to work with binary.Read.
//
// https://en.wikipedia.org/wiki/ZIP_(file_format)#Central_directory_file_header_(CDFH)
type fixedSizeCDFileHeader struct {
	Signature         uint32
	CreatorVersion    uint16
	ReaderVersion     uint16
	Flags             uint16
	Method            uint16
	ModifiedTime      uint16
	ModifiedDate      uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	FileNameLength    uint16
	ExtraFieldLength  uint16
	FileCommentLength uint16
	DiskNumber        uint16
	InternalAttrs     uint16
	ExternalAttrs     uint32
	Offset            uint32
}

// Options customises how the central directory is scanned.
type Options struct {
	// Ctx can be given to cancel the scanning after some time.
	Ctx context.Context

	// KeepComment controls whether per-file comments are kept or
	// discarded.
	//
	// By default, the zero value discards comment fields from all
	// returned headers. The archive comment on the EOCD record is always
	// kept.
	KeepComment bool
}

// Scan locates the central directory of the archive in src and returns the
// EOCD record together with an iterator over the file headers.
//
// The method assumes the contents from src contain exactly 1 well-formatted
// ZIP archive. The EOCD scan window is bounded (see ReadEOCD). The iterator
// walks the central directory in on-disk order for exactly the resolved
// record count; a record that would read past the declared directory size
// stops the iteration with ErrTruncatedDirectory, and a record with a bad
// signature stops it with ErrFormat.
//
// src must stay open for the duration of the iteration and any subsequent
// reads of entry data. Headers returned by the iterator are safe to use
// concurrently once yielded since src is only ever read through ReadAt.
func Scan(src io.ReaderAt, size int64, optFns ...func(*Options)) (EOCDRecord, iter.Seq2[FileHeader, error], error) {
	opts := &Options{
		Ctx:         context.Background(),
		KeepComment: false,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	r, err := ReadEOCD(src, size)
	if err != nil {
		return r, nil, err
	}

	return r, func(yield func(FileHeader, error) bool) {
		var (
			buf       = make([]byte, 16*1024)
			offset    = int64(r.CDOffset)
			remaining = int64(r.CDSize)
			readN     int
			err       error
		)

		for i := uint64(0); i < r.CDCount; i++ {
			select {
			case <-opts.Ctx.Done():
				yield(FileHeader{}, opts.Ctx.Err())
				return
			default:
			}

			if remaining < cdfhLen {
				yield(FileHeader{}, fmt.Errorf("%w: record %d/%d needs %d bytes, %d remain in directory", ErrTruncatedDirectory, i+1, r.CDCount, cdfhLen, remaining))
				return
			}

			if readN, err = src.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
				yield(FileHeader{}, fmt.Errorf("next CD file header: read error: %w", err))
				return
			} else if readN < cdfhLen {
				yield(FileHeader{}, fmt.Errorf("next CD file header: read returns insufficient data, needs at least %d bytes, got %d", cdfhLen, readN))
				return
			}

			fsfh := &fixedSizeCDFileHeader{}
			if err = binary.Read(bytes.NewReader(buf[:cdfhLen]), binary.LittleEndian, fsfh); err != nil {
				yield(FileHeader{}, fmt.Errorf("next CD file header: parse error: %w", err))
				return
			}
			if fsfh.Signature != sigCDFH {
				yield(FileHeader{}, fmt.Errorf("%w: mismatched CD file header signature at %d, got 0x%x, expected 0x%x", ErrFormat, offset, fsfh.Signature, sigCDFH))
				return
			}

			fh := FileHeader{
				CreatorVersion:   fsfh.CreatorVersion,
				ReaderVersion:    fsfh.ReaderVersion,
				Flags:            fsfh.Flags,
				Method:           fsfh.Method,
				ModifiedTime:     fsfh.ModifiedTime,
				ModifiedDate:     fsfh.ModifiedDate,
				CRC32:            fsfh.CRC32,
				CompressedSize:   uint64(fsfh.CompressedSize),
				UncompressedSize: uint64(fsfh.UncompressedSize),
				InternalAttrs:    fsfh.InternalAttrs,
				ExternalAttrs:    fsfh.ExternalAttrs,
				DiskNumber:       uint32(fsfh.DiskNumber),
				Offset:           uint64(fsfh.Offset),
			}
			fh.Modified = msDosTimeToTime(fh.ModifiedDate, fh.ModifiedTime)

			n, m, k := int(fsfh.FileNameLength), int(fsfh.ExtraFieldLength), int(fsfh.FileCommentLength)
			nmkLen := n + m + k
			if remaining < int64(cdfhLen+nmkLen) {
				yield(FileHeader{}, fmt.Errorf("%w: record %d/%d needs %d bytes, %d remain in directory", ErrTruncatedDirectory, i+1, r.CDCount, cdfhLen+nmkLen, remaining))
				return
			}

			if nmkLen > 0 {
				nmk := buf[cdfhLen:]
				if nmkLen > len(nmk) {
					bb := bytebufferpool.Get()
					if cap(bb.B) < nmkLen {
						bb.B = make([]byte, nmkLen)
					}
					nmk = bb.B[:nmkLen]
					if readN, err = src.ReadAt(nmk, offset+cdfhLen); err != nil && !errors.Is(err, io.EOF) {
						bytebufferpool.Put(bb)
						yield(fh, fmt.Errorf("next CD file header: read variable-size data: read error: %w", err))
						return
					} else if readN < nmkLen {
						bytebufferpool.Put(bb)
						yield(fh, fmt.Errorf("next CD file header: read variable-size data: read returns insufficient data, needs at least %d bytes, got %d", nmkLen, readN))
						return
					}
					fh.fillVariable(nmk, n, m, k, opts.KeepComment)
					bytebufferpool.Put(bb)
				} else {
					fh.fillVariable(nmk[:nmkLen], n, m, k, opts.KeepComment)
				}
			}

			offset += int64(cdfhLen + nmkLen)
			remaining -= int64(cdfhLen + nmkLen)

			if !yield(fh, nil) {
				return
			}
		}
	}, nil
}

// fillVariable copies the name/extra/comment bytes out of the shared scan
// buffer and runs the extra-field interpretation.
func (h *FileHeader) fillVariable(nmk []byte, n, m, k int, keepComment bool) {
	h.RawName = append([]byte(nil), nmk[:n]...)
	if m > 0 {
		h.Extra, h.ParseErr = ParseFields(append([]byte(nil), nmk[n:n+m]...))
	}
	if keepComment && k > 0 {
		h.Comment = append([]byte(nil), nmk[n+m:n+m+k]...)
	}

	if err := h.resolveZip64(); err != nil && h.ParseErr == nil {
		h.ParseErr = err
	}
	h.upgradeModified()
}

// UTF8 reports whether the name and comment are flagged as UTF-8.
func (h *FileHeader) UTF8() bool {
	return h.Flags&FlagUTF8 != 0
}

// UsesDataDescriptor reports whether sizes and CRC-32 were written in a
// data descriptor following the compressed data, making the local file
// header's copies unreliable.
func (h *FileHeader) UsesDataDescriptor() bool {
	return h.Flags&FlagDataDescriptor != 0
}

// IsDir reports whether the header describes a directory, detected via the
// trailing path separator or the external attributes.
func (h *FileHeader) IsDir() bool {
	if n := len(h.RawName); n > 0 && (h.RawName[n-1] == '/' || h.RawName[n-1] == '\\') {
		return true
	}
	return h.Mode().IsDir()
}

// Host systems of interest in CreatorVersion's high byte.
const (
	CreatorFAT    = 0
	CreatorUnix   = 3
	CreatorNTFS   = 11
	CreatorVFAT   = 14
	CreatorMacOSX = 19
)

// Unix mode bits as stored in the high 16 bits of ExternalAttrs.
const (
	s_IFMT   = 0xf000
	s_IFSOCK = 0xc000
	s_IFLNK  = 0xa000
	s_IFREG  = 0x8000
	s_IFBLK  = 0x6000
	s_IFDIR  = 0x4000
	s_IFCHR  = 0x2000
	s_IFIFO  = 0x1000
	s_ISUID  = 0x800
	s_ISGID  = 0x400
	s_ISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// Mode returns the file mode recovered from ExternalAttrs according to the
// creating host system recorded in CreatorVersion.
func (h *FileHeader) Mode() fs.FileMode {
	var mode fs.FileMode

	switch h.CreatorVersion >> 8 {
	case CreatorUnix, CreatorMacOSX:
		mode = unixModeToFileMode(h.ExternalAttrs >> 16)
	case CreatorFAT, CreatorVFAT, CreatorNTFS:
		mode = msdosModeToFileMode(h.ExternalAttrs)
	}

	if n := len(h.RawName); n > 0 && (h.RawName[n-1] == '/' || h.RawName[n-1] == '\\') {
		mode |= fs.ModeDir
	}

	return mode
}

func unixModeToFileMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0777)

	switch m & s_IFMT {
	case s_IFBLK:
		mode |= fs.ModeDevice
	case s_IFCHR:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case s_IFDIR:
		mode |= fs.ModeDir
	case s_IFIFO:
		mode |= fs.ModeNamedPipe
	case s_IFLNK:
		mode |= fs.ModeSymlink
	case s_IFREG:
		// nothing to do
	case s_IFSOCK:
		mode |= fs.ModeSocket
	}

	if m&s_ISGID != 0 {
		mode |= fs.ModeSetgid
	}
	if m&s_ISUID != 0 {
		mode |= fs.ModeSetuid
	}
	if m&s_ISVTX != 0 {
		mode |= fs.ModeSticky
	}

	return mode
}

func msdosModeToFileMode(m uint32) (mode fs.FileMode) {
	if m&msdosDir != 0 {
		mode = fs.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
//
// taken from https://go.dev/src/archive/zip/struct.go.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}
