package zipfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// LocalHeader is the fixed part of a local file header. Its size and CRC-32
// copies are unreliable when the entry uses a data descriptor (they are
// usually zero); the central directory values are authoritative either way.
type LocalHeader struct {
	ReaderVersion    uint16
	Flags            uint16
	Method           uint16
	ModifiedTime     uint16
	ModifiedDate     uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	// NameLen and ExtraLen size the variable tail between the fixed
	// header and the compressed data.
	NameLen  uint16
	ExtraLen uint16
}

// DataRange is the validated byte range of one entry's compressed data
// within the archive.
type DataRange struct {
	// Offset of the first compressed byte.
	Offset int64
	// Length of the compressed data, from the central directory.
	Length int64
}

// ResolveData validates the local file header the central directory claims
// at h.Offset and computes the compressed data range for the entry.
//
// The range is guaranteed to lie within [0, size). The compressed length
// always comes from the central directory: entries written with a data
// descriptor carry zero sizes in the local header, and this reader never
// needs to find the descriptor since the directory value is at hand.
// Fails with ErrOffsetOutOfRange or ErrFormat; a mere disagreement between
// the local header and the central directory is not an error here, callers
// cross-check the returned LocalHeader if they care.
func ResolveData(src io.ReaderAt, size int64, h *FileHeader) (LocalHeader, DataRange, error) {
	var lh LocalHeader

	if h.ParseErr != nil {
		if h.CompressedSize == sentinel32 {
			return lh, DataRange{}, fmt.Errorf("%w: compressed size is unresolved: %w", ErrFormat, h.ParseErr)
		}
		if h.UncompressedSize == sentinel32 {
			return lh, DataRange{}, fmt.Errorf("%w: uncompressed size is unresolved: %w", ErrFormat, h.ParseErr)
		}
	}

	offset := int64(h.Offset)
	if offset < 0 || offset+lfhLen > size {
		return lh, DataRange{}, fmt.Errorf("%w: local file header at %d does not fit in archive of %d bytes", ErrOffsetOutOfRange, h.Offset, size)
	}
	if h.CompressedSize > uint64(size) {
		return lh, DataRange{}, fmt.Errorf("%w: compressed size %d exceeds archive of %d bytes", ErrOffsetOutOfRange, h.CompressedSize, size)
	}

	buf := make([]byte, lfhLen)
	if n, err := src.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return lh, DataRange{}, fmt.Errorf("read local file header error: %w", err)
	} else if n < lfhLen {
		return lh, DataRange{}, fmt.Errorf("read local file header: needs %d bytes, got %d", lfhLen, n)
	}

	if sig := binary.LittleEndian.Uint32(buf[0:4]); sig != sigLFH {
		return lh, DataRange{}, fmt.Errorf("%w: mismatched local file header signature at %d, got 0x%x, expected 0x%x", ErrFormat, offset, sig, sigLFH)
	}

	lh = LocalHeader{
		ReaderVersion:    binary.LittleEndian.Uint16(buf[4:6]),
		Flags:            binary.LittleEndian.Uint16(buf[6:8]),
		Method:           binary.LittleEndian.Uint16(buf[8:10]),
		ModifiedTime:     binary.LittleEndian.Uint16(buf[10:12]),
		ModifiedDate:     binary.LittleEndian.Uint16(buf[12:14]),
		CRC32:            binary.LittleEndian.Uint32(buf[14:18]),
		CompressedSize:   binary.LittleEndian.Uint32(buf[18:22]),
		UncompressedSize: binary.LittleEndian.Uint32(buf[22:26]),
		NameLen:          binary.LittleEndian.Uint16(buf[26:28]),
		ExtraLen:         binary.LittleEndian.Uint16(buf[28:30]),
	}

	dataOffset := offset + lfhLen + int64(lh.NameLen) + int64(lh.ExtraLen)
	length := int64(h.CompressedSize)
	if dataOffset+length > size {
		return lh, DataRange{}, fmt.Errorf("%w: compressed data [%d, %d) extends past archive of %d bytes", ErrOffsetOutOfRange, dataOffset, dataOffset+length, size)
	}

	return lh, DataRange{Offset: dataOffset, Length: length}, nil
}

// Mismatches lists the fields where the local header disagrees with the
// central directory. Size comparisons are skipped for data-descriptor
// entries whose local copies are legitimately zero, and for local headers
// that defer to their own ZIP64 extra field.
func (lh LocalHeader) Mismatches(h *FileHeader) []string {
	var mm []string

	if lh.Method != h.Method {
		mm = append(mm, fmt.Sprintf("method %d (central directory %d)", lh.Method, h.Method))
	}

	if h.UsesDataDescriptor() {
		return mm
	}

	if lh.CRC32 != h.CRC32 {
		mm = append(mm, fmt.Sprintf("CRC-32 %08x (central directory %08x)", lh.CRC32, h.CRC32))
	}
	if lh.CompressedSize != sentinel32 && uint64(lh.CompressedSize) != h.CompressedSize {
		mm = append(mm, fmt.Sprintf("compressed size %d (central directory %d)", lh.CompressedSize, h.CompressedSize))
	}
	if lh.UncompressedSize != sentinel32 && uint64(lh.UncompressedSize) != h.UncompressedSize {
		mm = append(mm, fmt.Sprintf("uncompressed size %d (central directory %d)", lh.UncompressedSize, h.UncompressedSize))
	}

	return mm
}
