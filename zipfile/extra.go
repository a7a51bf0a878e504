package zipfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Extra field ids this package interprets. Any other id is carried opaquely.
const (
	// ExtraZip64 holds the 64-bit values of header fields that overflowed
	// their 32-bit slots.
	ExtraZip64 uint16 = 0x0001
	// ExtraNTFS holds Windows timestamps with 100ns resolution.
	ExtraNTFS uint16 = 0x000a
	// ExtraExtendedTimestamp holds unix timestamps with 1s resolution.
	ExtraExtendedTimestamp uint16 = 0x5455
)

// ErrExtraField is returned when an extra field declares more bytes than
// remain in the block. The fields decoded before the defect are still
// usable; the defect is entry-scoped and never fails the whole archive.
var ErrExtraField = errors.New("malformed extra field")

// Field is one id/payload record from a header's extra field block.
type Field struct {
	ID   uint16
	Data []byte
}

// Fields holds a header's extra fields preserving their on-disk order.
type Fields []Field

// Get returns the payload of the first field with the given id.
func (fs Fields) Get(id uint16) ([]byte, bool) {
	for _, f := range fs {
		if f.ID == id {
			return f.Data, true
		}
	}
	return nil, false
}

// ParseFields splits a raw extra field block into its id/size/payload
// records.
//
// A field whose declared size overruns the block yields ErrExtraField along
// with every field decoded up to that point. A trailing fragment shorter
// than the 4-byte field header is reported the same way.
func ParseFields(extra []byte) (Fields, error) {
	var fields Fields
	for len(extra) > 0 {
		if len(extra) < 4 {
			return fields, fmt.Errorf("%w: %d trailing bytes", ErrExtraField, len(extra))
		}

		id := binary.LittleEndian.Uint16(extra[0:2])
		n := int(binary.LittleEndian.Uint16(extra[2:4]))
		if n > len(extra)-4 {
			return fields, fmt.Errorf("%w: field 0x%04x declares %d bytes, %d remain", ErrExtraField, id, n, len(extra)-4)
		}

		fields = append(fields, Field{ID: id, Data: extra[4 : 4+n]})
		extra = extra[4+n:]
	}
	return fields, nil
}

// resolveZip64 replaces h's sentinel-valued 32-bit fields with the 64-bit
// values from the ZIP64 extra field.
//
// The payload holds, in order and only for the fields whose 32-bit slot read
// as the sentinel: uncompressed size (8 bytes), compressed size (8),
// local header offset (8) and disk start number (4).
func (h *FileHeader) resolveZip64() error {
	needUncompressed := h.UncompressedSize == sentinel32
	needCompressed := h.CompressedSize == sentinel32
	needOffset := h.Offset == sentinel32
	needDisk := h.DiskNumber == sentinel16
	if !needUncompressed && !needCompressed && !needOffset && !needDisk {
		return nil
	}

	data, ok := h.Extra.Get(ExtraZip64)
	if !ok {
		return fmt.Errorf("%w: header fields hold ZIP64 sentinels but there is no ZIP64 extra field", ErrExtraField)
	}

	take := func(n int) ([]byte, error) {
		if len(data) < n {
			return nil, fmt.Errorf("%w: ZIP64 extra field is %d bytes short", ErrExtraField, n-len(data))
		}
		b := data[:n]
		data = data[n:]
		return b, nil
	}

	if needUncompressed {
		b, err := take(8)
		if err != nil {
			return err
		}
		h.UncompressedSize = binary.LittleEndian.Uint64(b)
	}
	if needCompressed {
		b, err := take(8)
		if err != nil {
			return err
		}
		h.CompressedSize = binary.LittleEndian.Uint64(b)
	}
	if needOffset {
		b, err := take(8)
		if err != nil {
			return err
		}
		h.Offset = binary.LittleEndian.Uint64(b)
	}
	if needDisk {
		b, err := take(4)
		if err != nil {
			return err
		}
		h.DiskNumber = binary.LittleEndian.Uint32(b)
	}
	return nil
}

// upgradeModified replaces the 2-second MS-DOS modification time with the
// higher-resolution timestamp from the extended-timestamp or NTFS extra
// field when one is present and well-formed. The last usable field in
// on-disk order wins.
func (h *FileHeader) upgradeModified() {
	for _, f := range h.Extra {
		switch f.ID {
		case ExtraExtendedTimestamp:
			// flags byte bit 0: modification time present, as unix
			// seconds right after the flags.
			if len(f.Data) >= 5 && f.Data[0]&0x1 != 0 {
				h.Modified = time.Unix(int64(binary.LittleEndian.Uint32(f.Data[1:5])), 0).UTC()
			}

		case ExtraNTFS:
			h.upgradeModifiedNTFS(f.Data)
		}
	}
}

// upgradeModifiedNTFS reads attribute 1 (file times) of an NTFS extra field:
// a 4-byte reserved word, then tag/size/payload attributes where tag 1
// carries mtime, atime, ctime as 100ns ticks since 1601-01-01.
func (h *FileHeader) upgradeModifiedNTFS(data []byte) {
	if len(data) < 4 {
		return
	}
	data = data[4:]

	for len(data) >= 4 {
		tag := binary.LittleEndian.Uint16(data[0:2])
		n := int(binary.LittleEndian.Uint16(data[2:4]))
		if n > len(data)-4 {
			return
		}

		if tag == 1 && n >= 8 {
			// 100ns ticks since 1601-01-01; too large a span for
			// time.Duration, so convert through unix seconds.
			const ticksPerSecond = 1e7
			const ntfsEpochUnix = -11644473600
			ticks := int64(binary.LittleEndian.Uint64(data[4:12]))
			h.Modified = time.Unix(ntfsEpochUnix+ticks/ticksPerSecond, (ticks%ticksPerSecond)*100).UTC()
			return
		}

		data = data[4+n:]
	}
}
