package zipfile

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// field encodes one id/size/payload extra field record.
func field(id uint16, data []byte) []byte {
	b := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(b[0:], id)
	binary.LittleEndian.PutUint16(b[2:], uint16(len(data)))
	copy(b[4:], data)
	return b
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		extra   []byte
		want    Fields
		wantErr bool
	}{
		{
			name: "empty",
		},
		{
			name:  "single field",
			extra: field(0x9999, []byte{1, 2, 3}),
			want:  Fields{{ID: 0x9999, Data: []byte{1, 2, 3}}},
		},
		{
			name:  "order preserved",
			extra: append(field(ExtraExtendedTimestamp, []byte{1, 0, 0, 0, 0}), field(0x9999, []byte{7})...),
			want: Fields{
				{ID: ExtraExtendedTimestamp, Data: []byte{1, 0, 0, 0, 0}},
				{ID: 0x9999, Data: []byte{7}},
			},
		},
		{
			name:    "trailing fragment",
			extra:   append(field(0x9999, []byte{1}), 0xab, 0xcd),
			want:    Fields{{ID: 0x9999, Data: []byte{1}}},
			wantErr: true,
		},
		{
			name:    "declared size overruns block",
			extra:   []byte{0x01, 0x00, 0xff, 0x00, 0x01, 0x02},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFields(tt.extra)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrExtraField)
			} else {
				assert.NoErrorf(t, err, "ParseFields(...) error = %v", err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldsGet(t *testing.T) {
	fields := Fields{
		{ID: ExtraZip64, Data: []byte{1}},
		{ID: ExtraNTFS, Data: []byte{2}},
	}

	data, ok := fields.Get(ExtraNTFS)
	assert.True(t, ok)
	assert.Equal(t, []byte{2}, data)

	_, ok = fields.Get(0x1234)
	assert.False(t, ok)
}

func TestResolveZip64(t *testing.T) {
	// only the sentinel-valued fields appear in the payload, in fixed order.
	payload := make([]byte, 20)
	binary.LittleEndian.PutUint64(payload[0:], 5_000_000_000)
	binary.LittleEndian.PutUint64(payload[8:], 4_900_000_000)
	binary.LittleEndian.PutUint32(payload[16:], 0)

	h := FileHeader{
		UncompressedSize: sentinel32,
		CompressedSize:   sentinel32,
		Offset:           1234,
		DiskNumber:       sentinel16,
		Extra:            Fields{{ID: ExtraZip64, Data: payload}},
	}

	assert.NoError(t, h.resolveZip64())
	assert.Equal(t, uint64(5_000_000_000), h.UncompressedSize)
	assert.Equal(t, uint64(4_900_000_000), h.CompressedSize)
	assert.Equal(t, uint64(1234), h.Offset)
	assert.Equal(t, uint32(0), h.DiskNumber)
}

func TestResolveZip64_OffsetOnly(t *testing.T) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload, 4_294_967_296)

	h := FileHeader{
		UncompressedSize: 200,
		CompressedSize:   100,
		Offset:           sentinel32,
		Extra:            Fields{{ID: ExtraZip64, Data: payload}},
	}

	assert.NoError(t, h.resolveZip64())
	assert.Equal(t, uint64(4_294_967_296), h.Offset)
	assert.Equal(t, uint64(100), h.CompressedSize)
	assert.Equal(t, uint64(200), h.UncompressedSize)
}

func TestResolveZip64_NoSentinels(t *testing.T) {
	h := FileHeader{UncompressedSize: 5, CompressedSize: 5}
	assert.NoError(t, h.resolveZip64())
	assert.Equal(t, uint64(5), h.UncompressedSize)
	assert.Equal(t, uint64(5), h.CompressedSize)
}

func TestResolveZip64_Malformed(t *testing.T) {
	tests := []struct {
		name string
		h    FileHeader
	}{
		{
			name: "sentinel without a ZIP64 extra field",
			h:    FileHeader{UncompressedSize: sentinel32},
		},
		{
			name: "payload too short",
			h: FileHeader{
				UncompressedSize: sentinel32,
				CompressedSize:   sentinel32,
				Extra:            Fields{{ID: ExtraZip64, Data: make([]byte, 8)}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.h.resolveZip64(), ErrExtraField)
		})
	}
}

func TestUpgradeModified_ExtendedTimestamp(t *testing.T) {
	want := time.Date(2024, time.March, 15, 10, 30, 45, 0, time.UTC)

	data := make([]byte, 5)
	data[0] = 1 // modification time present
	binary.LittleEndian.PutUint32(data[1:], uint32(want.Unix()))

	h := FileHeader{
		Modified: time.Date(2024, time.March, 15, 10, 30, 44, 0, time.UTC),
		Extra:    Fields{{ID: ExtraExtendedTimestamp, Data: data}},
	}
	h.upgradeModified()

	assert.Truef(t, h.Modified.Equal(want), "Modified = %v, want %v", h.Modified, want)
}

func TestUpgradeModified_FlagUnset(t *testing.T) {
	dos := time.Date(2024, time.March, 15, 10, 30, 44, 0, time.UTC)

	// bit 0 unset: the recorded time is an access time, which must not
	// replace the modification time.
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], uint32(time.Now().Unix()))

	h := FileHeader{Modified: dos, Extra: Fields{{ID: ExtraExtendedTimestamp, Data: data}}}
	h.upgradeModified()

	assert.Truef(t, h.Modified.Equal(dos), "Modified = %v, want %v", h.Modified, dos)
}

func TestUpgradeModified_NTFS(t *testing.T) {
	want := time.Date(2020, time.March, 14, 15, 9, 26, 535897900, time.UTC)

	// 100ns ticks since the NTFS epoch.
	const ntfsEpochUnix = -11644473600
	ticks := uint64(want.Unix()-ntfsEpochUnix)*1e7 + uint64(want.Nanosecond()/100)

	data := make([]byte, 4+4+24)
	binary.LittleEndian.PutUint16(data[4:], 1)  // attribute 1: file times
	binary.LittleEndian.PutUint16(data[6:], 24) // mtime, atime, ctime
	binary.LittleEndian.PutUint64(data[8:], ticks)

	h := FileHeader{Extra: Fields{{ID: ExtraNTFS, Data: data}}}
	h.upgradeModified()

	assert.Truef(t, h.Modified.Equal(want), "Modified = %v, want %v", h.Modified, want)
}

func TestUpgradeModified_MalformedNTFS(t *testing.T) {
	dos := time.Date(2024, time.March, 15, 10, 30, 44, 0, time.UTC)

	h := FileHeader{Modified: dos, Extra: Fields{{ID: ExtraNTFS, Data: []byte{0, 0}}}}
	h.upgradeModified()

	assert.Truef(t, h.Modified.Equal(dos), "Modified = %v, want %v", h.Modified, dos)
}
