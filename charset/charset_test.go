package charset

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNewResolver(t *testing.T) {
	_, err := NewResolver()
	assert.NoErrorf(t, err, "NewResolver() error = %v", err)

	_, err = NewResolver(WithEncoding("shift_jis"))
	assert.NoErrorf(t, err, "NewResolver(shift_jis) error = %v", err)

	_, err = NewResolver(WithEncoding("no-such-encoding"))
	assert.Error(t, err)
}

func TestResolver_Decode(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		raw      []byte
		isUTF8   bool
		want     string
	}{
		{
			name: "empty",
			raw:  nil,
			want: "",
		},
		{
			name:   "flagged UTF-8",
			raw:    []byte("日本語.txt"),
			isUTF8: true,
			want:   "日本語.txt",
		},
		{
			name: "plain ASCII without flag",
			raw:  []byte("report-2024.txt"),
			want: "report-2024.txt",
		},
		{
			name: "valid UTF-8 without flag",
			raw:  []byte("héllo.txt"),
			want: "héllo.txt",
		},
		{
			name:     "forced cp866",
			encoding: "cp866",
			raw:      []byte{0xaf, 0xe0, 0xa8, 0xa2, 0xa5, 0xe2},
			want:     "привет",
		},
		{
			name:     "forced shift_jis",
			encoding: "shift_jis",
			raw:      []byte{0x93, 0xfa, 0x96, 0x7b, 0x8c, 0xea},
			want:     "日本語",
		},
		{
			// the UTF-8 flag is a lie here, so the forced encoding applies.
			name:     "flagged but invalid UTF-8",
			encoding: "cp866",
			raw:      []byte{0xaf, 0xe0, 0xa8, 0xa2, 0xa5, 0xe2},
			isUTF8:   true,
			want:     "привет",
		},
		{
			// an ASCII name must come through a forced legacy encoding
			// untouched; cp866 maps the ASCII range to itself.
			name:     "forced encoding with ASCII",
			encoding: "cp866",
			raw:      []byte("a.txt"),
			want:     "a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var optFns []func(*Options)
			if tt.encoding != "" {
				optFns = append(optFns, WithEncoding(tt.encoding))
			}

			r, err := NewResolver(optFns...)
			assert.NoErrorf(t, err, "NewResolver(...) error = %v", err)

			assert.Equal(t, tt.want, r.Decode(tt.raw, tt.isUTF8))
		})
	}
}

func TestResolver_DecodeDeterministic(t *testing.T) {
	// detection has no ground truth for arbitrary bytes, but whatever it
	// decides must be decided again on every call.
	inputs := [][]byte{
		{0x8a, 0xbf, 0x8e, 0x9a, 0x83, 0x74, 0x83, 0x40, 0x83, 0x43, 0x83, 0x8b},
		{0xcf, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2, 0x2e, 0x74, 0x78, 0x74},
		{0xe1, 0xe2, 0xe3},
	}

	r, err := NewResolver()
	assert.NoErrorf(t, err, "NewResolver() error = %v", err)

	for _, raw := range inputs {
		first := r.Decode(raw, false)
		assert.NotEmpty(t, first)
		assert.True(t, utf8.ValidString(first))

		for range 3 {
			assert.Equal(t, first, r.Decode(raw, false))
		}
	}
}

func TestDecodeCP437(t *testing.T) {
	// code page 437 maps every byte, so the last resort cannot fail.
	raw := make([]byte, 256)
	for i := range raw {
		raw[i] = byte(i)
	}

	s := decodeCP437(raw)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, 256, len([]rune(s)))

	assert.Equal(t, "ß", decodeCP437([]byte{0xe1}))
}
