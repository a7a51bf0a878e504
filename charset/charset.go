// Package charset resolves the undeclared legacy encodings of ZIP file
// names and comments into Unicode text.
package charset

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// Options customises a Resolver.
type Options struct {
	// Encoding, if not empty, names the encoding (an IANA/WHATWG label
	// such as "cp866", "shift_jis" or "gbk") to decode names that are
	// not flagged as UTF-8, instead of running charset detection.
	Encoding string
}

// Resolver decodes raw name/comment bytes into Unicode text.
//
// The resolution is deterministic: the same bytes with the same flag always
// produce the same text, which keeps repeated extractions reproducible. A
// Resolver is safe for concurrent use.
type Resolver struct {
	enc      encoding.Encoding
	detector *chardet.Detector
}

// NewResolver returns a Resolver, failing only if Options.Encoding names an
// encoding this package does not know.
func NewResolver(optFns ...func(*Options)) (*Resolver, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	r := &Resolver{detector: chardet.NewTextDetector()}
	if opts.Encoding != "" {
		enc, err := lookup(opts.Encoding)
		if err != nil {
			return nil, err
		}
		r.enc = enc
	}

	return r, nil
}

// WithEncoding forces the given encoding label for names not flagged UTF-8.
func WithEncoding(label string) func(*Options) {
	return func(opts *Options) {
		opts.Encoding = label
	}
}

// Decode converts raw bytes into text, never failing.
//
// If the UTF-8 flag is set and the bytes are valid UTF-8 they are used
// as-is; invalid bytes despite the flag are treated as unflagged.
// Unflagged bytes are decoded with the forced encoding when one was
// configured, used as-is when they already are valid UTF-8 (which covers
// plain ASCII), or run through charset detection otherwise. Whenever no
// confident decision can be made the bytes are decoded as code page 437,
// the historical ZIP default, under which every byte has a mapping; that
// last resort cannot fail.
func (r *Resolver) Decode(raw []byte, isUTF8 bool) string {
	if len(raw) == 0 {
		return ""
	}

	if isUTF8 && utf8.Valid(raw) {
		return string(raw)
	}

	if r.enc != nil {
		if s, err := r.enc.NewDecoder().Bytes(raw); err == nil {
			return string(s)
		}
		return decodeCP437(raw)
	}

	if utf8.Valid(raw) {
		return string(raw)
	}

	if res, err := r.detector.DetectBest(raw); err == nil {
		if enc, err := lookup(res.Charset); err == nil {
			if s, err := enc.NewDecoder().Bytes(raw); err == nil {
				return string(s)
			}
		}
	}

	return decodeCP437(raw)
}

// aliases maps detector charset names to their WHATWG labels where the
// spellings differ.
var aliases = map[string]string{
	"gb-18030": "gb18030",
}

func lookup(label string) (encoding.Encoding, error) {
	name := strings.ToLower(label)
	if alias, ok := aliases[name]; ok {
		name = alias
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf(`unknown encoding "%s": %w`, label, err)
	}
	return enc, nil
}

func decodeCP437(raw []byte) string {
	s, _ := charmap.CodePage437.NewDecoder().Bytes(raw)
	return string(s)
}
