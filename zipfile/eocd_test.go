package zipfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEOCD(t *testing.T) {
	b := buildZip(t, "", []testFile{
		{name: "a.txt", body: "hello world"},
		{name: "path/b.txt", body: "lorem ipsum"},
	})

	r, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
	assert.NoErrorf(t, err, "ReadEOCD(...) error = %v", err)

	assert.Equal(t, uint64(2), r.CDCount)
	assert.Equal(t, r.CDCount, r.CDCountOnDisk)
	assert.False(t, r.Zip64)
	assert.Empty(t, r.Comment)

	// without a comment the record is the last 22 bytes, right after the
	// central directory.
	assert.Equal(t, uint64(len(b)-eocdLen), r.CDOffset+r.CDSize)
}

func TestReadEOCD_WithComment(t *testing.T) {
	alphabet := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	for _, n := range []int{1, 22, 8 * 1024, maxCommentLen} {
		t.Run(fmt.Sprintf("%d bytes", n), func(t *testing.T) {
			comment := make([]byte, n)
			for i := range n {
				comment[i] = alphabet[rand.IntN(len(alphabet))]
			}

			b := buildZip(t, string(comment), []testFile{{name: "a.txt", body: "hello"}})

			r, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
			assert.NoErrorf(t, err, "ReadEOCD(...) error = %v", err)
			assert.Equal(t, comment, r.Comment)
		})
	}
}

func TestReadEOCD_SignatureInComment(t *testing.T) {
	// the decoy signature inside the comment is followed by bytes that
	// declare an impossible comment length, so the backwards scan must skip
	// it and settle on the real record.
	comment := "decoy: PK\x05\x06" + strings.Repeat("\xff", 30)
	b := buildZip(t, comment, []testFile{{name: "a.txt", body: "hello"}})

	r, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
	assert.NoErrorf(t, err, "ReadEOCD(...) error = %v", err)
	assert.Equal(t, []byte(comment), r.Comment)
	assert.Equal(t, uint64(1), r.CDCount)
}

func TestReadEOCD_NotZip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "shorter than a record", data: []byte("PK")},
		{name: "text", data: []byte(strings.Repeat("certainly not a zip file\n", 10))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadEOCD(bytes.NewReader(tt.data), int64(len(tt.data)))
			assert.ErrorIs(t, err, ErrNoEOCD)
		})
	}
}

func TestReadEOCD_MultiDisk(t *testing.T) {
	base := buildZip(t, "", []testFile{{name: "a.txt", body: "hello"}})
	eocd := len(base) - eocdLen

	tests := []struct {
		name  string
		patch func(b []byte)
	}{
		{
			name:  "nonzero disk number",
			patch: func(b []byte) { binary.LittleEndian.PutUint16(b[eocd+4:], 1) },
		},
		{
			name:  "nonzero central directory disk",
			patch: func(b []byte) { binary.LittleEndian.PutUint16(b[eocd+6:], 1) },
		},
		{
			name:  "records split across disks",
			patch: func(b []byte) { binary.LittleEndian.PutUint16(b[eocd+8:], 0) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), base...)
			tt.patch(b)

			_, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
			assert.ErrorIs(t, err, ErrMultiDisk)
		})
	}
}

func TestReadEOCD_DirectoryOutOfRange(t *testing.T) {
	b := buildZip(t, "", []testFile{{name: "a.txt", body: "hello"}})

	// point the central directory past its own EOCD record.
	eocd := len(b) - eocdLen
	binary.LittleEndian.PutUint32(b[eocd+16:], uint32(len(b)))

	_, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestReadEOCD_Zip64(t *testing.T) {
	b := buildZip(t, "", []testFile{
		{name: "a.txt", body: "hello"},
		{name: "path/b.txt", body: "world"},
	})

	orig, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
	assert.NoErrorf(t, err, "ReadEOCD(...) error = %v", err)

	b64 := rewrapZip64(t, b)

	r, err := ReadEOCD(bytes.NewReader(b64), int64(len(b64)))
	assert.NoErrorf(t, err, "ReadEOCD(...) error = %v", err)
	assert.True(t, r.Zip64)
	assert.Equal(t, orig.CDCount, r.CDCount)
	assert.Equal(t, orig.CDSize, r.CDSize)
	assert.Equal(t, orig.CDOffset, r.CDOffset)
}

func TestReadEOCD_Zip64MissingLocator(t *testing.T) {
	b := buildZip(t, "", []testFile{{name: "a.txt", body: "hello"}})

	// sentinel values without a ZIP64 locator in front of the record.
	eocd := len(b) - eocdLen
	binary.LittleEndian.PutUint32(b[eocd+16:], sentinel32)

	_, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestReadEOCD_ImpossibleRecordCount(t *testing.T) {
	// the smallest archive reachable through a ZIP64 EOCD record: the record,
	// its locator and a sentinel-valued classic record over a zero-length
	// directory. The declared record count is a lie no directory could hold
	// and must fail instead of sizing the caller's allocations.
	var w bytes.Buffer

	z64 := make([]byte, zip64EOCDLen)
	binary.LittleEndian.PutUint32(z64[0:], sigZip64EOCD)
	binary.LittleEndian.PutUint64(z64[4:], zip64EOCDLen-12)
	binary.LittleEndian.PutUint16(z64[12:], 45) // version made by
	binary.LittleEndian.PutUint16(z64[14:], 45) // version needed to extract
	binary.LittleEndian.PutUint64(z64[24:], 1<<60)
	binary.LittleEndian.PutUint64(z64[32:], 1<<60)
	w.Write(z64)

	loc := make([]byte, zip64LocatorLen)
	binary.LittleEndian.PutUint32(loc[0:], sigZip64Locator)
	binary.LittleEndian.PutUint32(loc[16:], 1) // total disks
	w.Write(loc)

	eocd := make([]byte, eocdLen)
	binary.LittleEndian.PutUint32(eocd[0:], sigEOCD)
	binary.LittleEndian.PutUint16(eocd[8:], sentinel16)
	binary.LittleEndian.PutUint16(eocd[10:], sentinel16)
	binary.LittleEndian.PutUint32(eocd[12:], sentinel32)
	binary.LittleEndian.PutUint32(eocd[16:], sentinel32)
	w.Write(eocd)

	b := w.Bytes()
	_, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
	assert.ErrorIs(t, err, ErrFormat)
}

// rewrapZip64 rebuilds the archive's tail so that the catalog is only
// reachable through a ZIP64 EOCD record: the classic record keeps nothing but
// overflow sentinels. The central directory bytes are untouched.
func rewrapZip64(t *testing.T, b []byte) []byte {
	t.Helper()

	r, err := ReadEOCD(bytes.NewReader(b), int64(len(b)))
	assert.NoErrorf(t, err, "ReadEOCD(...) error = %v", err)

	cdEnd := int64(r.CDOffset + r.CDSize)

	var w bytes.Buffer
	w.Write(b[:cdEnd])

	z64 := make([]byte, zip64EOCDLen)
	binary.LittleEndian.PutUint32(z64[0:], sigZip64EOCD)
	binary.LittleEndian.PutUint64(z64[4:], zip64EOCDLen-12)
	binary.LittleEndian.PutUint16(z64[12:], 45) // version made by
	binary.LittleEndian.PutUint16(z64[14:], 45) // version needed to extract
	binary.LittleEndian.PutUint64(z64[24:], r.CDCountOnDisk)
	binary.LittleEndian.PutUint64(z64[32:], r.CDCount)
	binary.LittleEndian.PutUint64(z64[40:], r.CDSize)
	binary.LittleEndian.PutUint64(z64[48:], r.CDOffset)
	w.Write(z64)

	loc := make([]byte, zip64LocatorLen)
	binary.LittleEndian.PutUint32(loc[0:], sigZip64Locator)
	binary.LittleEndian.PutUint64(loc[8:], uint64(cdEnd))
	binary.LittleEndian.PutUint32(loc[16:], 1) // total disks
	w.Write(loc)

	eocd := make([]byte, eocdLen)
	binary.LittleEndian.PutUint32(eocd[0:], sigEOCD)
	binary.LittleEndian.PutUint16(eocd[8:], sentinel16)
	binary.LittleEndian.PutUint16(eocd[10:], sentinel16)
	binary.LittleEndian.PutUint32(eocd[12:], sentinel32)
	binary.LittleEndian.PutUint32(eocd[16:], sentinel32)
	w.Write(eocd)

	return w.Bytes()
}
