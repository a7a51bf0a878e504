package zipfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoEOCD is returned if no EOCD signature was found within the
	// maximum scan window (65557 bytes from the end of the archive).
	ErrNoEOCD = errors.New("end of central directory not found; most likely not a ZIP file")
	// ErrFormat is returned when a record fails structural validation
	// (bad signature or bounds); the wrapping message names the offset.
	ErrFormat = errors.New("not a valid ZIP file")
	// ErrMultiDisk is returned for archives that span multiple disks,
	// which this package does not read.
	ErrMultiDisk = errors.New("multi-disk ZIP archives are not supported")
	// ErrTruncatedDirectory is returned when the central directory ends
	// before the declared number of records could be read.
	ErrTruncatedDirectory = errors.New("central directory is truncated")
	// ErrOffsetOutOfRange is returned when a declared offset or size
	// points outside the archive.
	ErrOffsetOutOfRange = errors.New("offset out of archive range")
)

// EOCDRecord models the end of central directory record of a ZIP file with
// every field widened to its ZIP64 size.
//
// ReadEOCD fills the record from the classic 22-byte structure first; if any
// field holds its overflow sentinel (0xffff or 0xffffffff), the values are
// replaced wholesale from the ZIP64 end of central directory record and
// Zip64 is set.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD).
type EOCDRecord struct {
	// DiskNumber is the number of this disk.
	DiskNumber uint32
	// CDStartDisk is the disk where the central directory starts.
	CDStartDisk uint32
	// CDCountOnDisk is the number of central directory records on this disk.
	CDCountOnDisk uint64
	// CDCount is the total number of central directory records.
	CDCount uint64
	// CDSize is the size in bytes of the central directory.
	CDSize uint64
	// CDOffset is the offset of the start of the central directory
	// relative to the start of the archive.
	CDOffset uint64
	// Comment is the raw archive comment; its encoding is undeclared.
	Comment []byte
	// Zip64 reports whether the values came from a ZIP64 EOCD record.
	Zip64 bool

	// offset of the EOCD signature within the archive.
	offset int64
}

// ReadEOCD scans backwards from the end of src for the end of central
// directory record.
//
// The scan window is bounded by the maximum comment length so at most the
// last 65557 bytes of the archive are examined; ErrNoEOCD is returned if no
// valid record exists in that window. ZIP64 sentinel values are resolved by
// following the ZIP64 EOCD locator. Multi-disk archives fail with
// ErrMultiDisk, and a record count the declared directory size cannot hold
// fails with ErrFormat.
func ReadEOCD(src io.ReaderAt, size int64) (r EOCDRecord, err error) {
	windowLen := min(size, maxCommentLen+eocdLen)
	if windowLen < eocdLen {
		return r, ErrNoEOCD
	}

	windowStart := size - windowLen
	buf := make([]byte, windowLen)
	if n, err := src.ReadAt(buf, windowStart); err != nil && !errors.Is(err, io.EOF) {
		return r, fmt.Errorf("read EOCD scan window error: %w", err)
	} else if int64(n) < windowLen {
		return r, fmt.Errorf("read EOCD scan window: needs %d bytes, got %d", windowLen, n)
	}

	// scan backwards so that a signature embedded in the comment of the
	// real record cannot shadow it; a candidate is accepted only if its
	// declared comment fits in the remaining bytes.
	i := len(buf) - eocdLen
	for ; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) != sigEOCD {
			continue
		}
		if n := int(binary.LittleEndian.Uint16(buf[i+20 : i+22])); i+eocdLen+n <= len(buf) {
			break
		}
	}
	if i < 0 {
		return r, ErrNoEOCD
	}

	b := buf[i:]
	commentLen := int(binary.LittleEndian.Uint16(b[20:22]))
	r = EOCDRecord{
		DiskNumber:    uint32(binary.LittleEndian.Uint16(b[4:6])),
		CDStartDisk:   uint32(binary.LittleEndian.Uint16(b[6:8])),
		CDCountOnDisk: uint64(binary.LittleEndian.Uint16(b[8:10])),
		CDCount:       uint64(binary.LittleEndian.Uint16(b[10:12])),
		CDSize:        uint64(binary.LittleEndian.Uint32(b[12:16])),
		CDOffset:      uint64(binary.LittleEndian.Uint32(b[16:20])),
		offset:        windowStart + int64(i),
	}
	if commentLen > 0 {
		r.Comment = append([]byte(nil), b[eocdLen:eocdLen+commentLen]...)
	}

	if r.needsZip64() {
		if err = r.readZip64(src, size); err != nil {
			return r, err
		}
	}

	if r.DiskNumber != 0 || r.CDStartDisk != 0 || r.CDCountOnDisk != r.CDCount {
		return r, ErrMultiDisk
	}

	if r.CDSize > uint64(r.offset) || r.CDOffset > uint64(r.offset)-r.CDSize {
		return r, fmt.Errorf("%w: central directory at %d of %d bytes extends past EOCD at %d", ErrOffsetOutOfRange, r.CDOffset, r.CDSize, r.offset)
	}

	// each record is at least cdfhLen bytes, so a count the declared
	// directory cannot hold is a lie that must not size any allocation.
	if r.CDCount > r.CDSize/cdfhLen {
		return r, fmt.Errorf("%w: EOCD declares %d records, central directory of %d bytes holds at most %d", ErrFormat, r.CDCount, r.CDSize, r.CDSize/cdfhLen)
	}

	return r, nil
}

func (r *EOCDRecord) needsZip64() bool {
	return r.DiskNumber == sentinel16 ||
		r.CDStartDisk == sentinel16 ||
		r.CDCountOnDisk == sentinel16 ||
		r.CDCount == sentinel16 ||
		r.CDSize == sentinel32 ||
		r.CDOffset == sentinel32
}

// readZip64 locates the ZIP64 EOCD locator immediately preceding the EOCD
// record and follows it to the ZIP64 EOCD record, replacing r's values.
func (r *EOCDRecord) readZip64(src io.ReaderAt, size int64) error {
	locOffset := r.offset - zip64LocatorLen
	if locOffset < 0 {
		return fmt.Errorf("%w: EOCD has ZIP64 sentinel values but no room for a ZIP64 locator", ErrFormat)
	}

	buf := make([]byte, zip64LocatorLen)
	if n, err := src.ReadAt(buf, locOffset); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read ZIP64 EOCD locator error: %w", err)
	} else if n < zip64LocatorLen {
		return fmt.Errorf("read ZIP64 EOCD locator: needs %d bytes, got %d", zip64LocatorLen, n)
	}
	if sig := binary.LittleEndian.Uint32(buf[:4]); sig != sigZip64Locator {
		return fmt.Errorf("%w: mismatched ZIP64 EOCD locator signature at %d, got 0x%x, expected 0x%x", ErrFormat, locOffset, sig, sigZip64Locator)
	}
	if disk, count := binary.LittleEndian.Uint32(buf[4:8]), binary.LittleEndian.Uint32(buf[16:20]); disk != 0 || count > 1 {
		return ErrMultiDisk
	}

	recOffset := int64(binary.LittleEndian.Uint64(buf[8:16]))
	if recOffset < 0 || recOffset+zip64EOCDLen > size {
		return fmt.Errorf("%w: ZIP64 EOCD record at %d does not fit in archive of %d bytes", ErrOffsetOutOfRange, recOffset, size)
	}

	buf = make([]byte, zip64EOCDLen)
	if n, err := src.ReadAt(buf, recOffset); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read ZIP64 EOCD record error: %w", err)
	} else if n < zip64EOCDLen {
		return fmt.Errorf("read ZIP64 EOCD record: needs %d bytes, got %d", zip64EOCDLen, n)
	}
	if sig := binary.LittleEndian.Uint32(buf[:4]); sig != sigZip64EOCD {
		return fmt.Errorf("%w: mismatched ZIP64 EOCD record signature at %d, got 0x%x, expected 0x%x", ErrFormat, recOffset, sig, sigZip64EOCD)
	}

	// the size field counts the bytes after itself; 44 covers the fixed
	// fields, anything beyond is the extensible data sector.
	if n := binary.LittleEndian.Uint64(buf[4:12]); n < zip64EOCDLen-12 {
		return fmt.Errorf("%w: ZIP64 EOCD record at %d declares %d bytes, needs at least %d", ErrFormat, recOffset, n, zip64EOCDLen-12)
	}

	r.DiskNumber = binary.LittleEndian.Uint32(buf[16:20])
	r.CDStartDisk = binary.LittleEndian.Uint32(buf[20:24])
	r.CDCountOnDisk = binary.LittleEndian.Uint64(buf[24:32])
	r.CDCount = binary.LittleEndian.Uint64(buf[32:40])
	r.CDSize = binary.LittleEndian.Uint64(buf[40:48])
	r.CDOffset = binary.LittleEndian.Uint64(buf[48:56])
	r.Zip64 = true
	return nil
}
