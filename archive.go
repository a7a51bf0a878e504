package punzip

import (
	"context"
	"fmt"
	"io"

	"github.com/nguyengg/punzip/charset"
	"github.com/nguyengg/punzip/internal"
	"github.com/nguyengg/punzip/zipfile"
	"golang.org/x/exp/mmap"
)

// Options customises Open and OpenReaderAt.
type Options struct {
	// Ctx can be given to cancel the central directory walk after some time.
	//
	// Defaults to context.Background().
	Ctx context.Context

	// Encoding forces the named encoding (an IANA/WHATWG label such as
	// "cp866", "shift_jis" or "gbk") when decoding file names and comments
	// that are not flagged as UTF-8.
	//
	// By default, the encoding is detected per name; see charset.Resolver.
	Encoding string

	// KeepComments controls whether per-file comments are kept on the
	// returned entries as raw bytes.
	//
	// By default, file comments are discarded during the central directory
	// walk. The archive comment is always kept and decoded.
	KeepComments bool
}

// Archive is the parsed catalog of one ZIP file.
//
// An Archive is immutable once Open or OpenReaderAt returns; its entries and
// the underlying reader are shared as-is by every goroutine that extracts
// from it, so no synchronization is needed for reads.
type Archive struct {
	// EOCD is the end of central directory record the catalog was built
	// from, with any ZIP64 values already resolved.
	EOCD zipfile.EOCDRecord

	// Entries lists the catalog in central directory (on-disk) order.
	Entries []Entry

	// Comment is the archive comment decoded with the same encoding
	// resolution as file names; empty if the archive has none. The raw
	// bytes are in EOCD.Comment.
	Comment string

	src    io.ReaderAt
	size   int64
	closer io.Closer
}

// Entry is one file or directory in the archive.
type Entry struct {
	zipfile.FileHeader

	// Name is the encoding-resolved file path, always relative with
	// forward slashes as stored in the archive. The bytes it was decoded
	// from are in RawName.
	Name string

	archive *Archive
}

// Open memory-maps the named ZIP file and parses its catalog.
//
// The mapping is read-only and shared by all entry reads until Close is
// called; the archive is never loaded into memory wholesale. Archive-level
// failures are ErrNoEOCD, ErrMultiDisk, ErrTruncatedDirectory and ErrFormat.
func Open(name string, optFns ...func(*Options)) (*Archive, error) {
	src, err := mmap.Open(name)
	if err != nil {
		return nil, fmt.Errorf("mmap error: %w", err)
	}

	a, err := OpenReaderAt(src, int64(src.Len()), optFns...)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	a.closer = src
	return a, nil
}

// OpenReaderAt parses the catalog of the ZIP archive in src, whose total
// size must be given.
//
// src must stay open for as long as entries are being read; Close on the
// returned Archive does not close it. src is only ever accessed through
// ReadAt so a single instance can back concurrent extractions.
func OpenReaderAt(src io.ReaderAt, size int64, optFns ...func(*Options)) (*Archive, error) {
	opts := &Options{Ctx: context.Background()}
	for _, fn := range optFns {
		fn(opts)
	}

	var resolverOptFns []func(*charset.Options)
	if opts.Encoding != "" {
		resolverOptFns = append(resolverOptFns, charset.WithEncoding(opts.Encoding))
	}
	resolver, err := charset.NewResolver(resolverOptFns...)
	if err != nil {
		return nil, err
	}

	eocd, headers, err := zipfile.Scan(src, size, func(o *zipfile.Options) {
		o.Ctx = opts.Ctx
		o.KeepComment = opts.KeepComments
	})
	if err != nil {
		return nil, err
	}

	a := &Archive{
		EOCD:    eocd,
		Entries: make([]Entry, 0, eocd.CDCount),
		Comment: resolver.Decode(eocd.Comment, false),
		src:     src,
		size:    size,
	}

	for fh, err := range headers {
		if err != nil {
			return nil, err
		}

		a.Entries = append(a.Entries, Entry{
			FileHeader: fh,
			Name:       resolver.Decode(fh.RawName, fh.UTF8()),
			archive:    a,
		})
	}

	return a, nil
}

// Close releases the memory mapping if the archive owns one.
//
// Close must not be called until every in-flight entry read has finished.
// Archives from OpenReaderAt have nothing to release.
func (a *Archive) Close() error {
	if c := a.closer; c != nil {
		a.closer = nil
		return c.Close()
	}
	return nil
}

// FindRootDir returns the top-level directory that is ancestor to every
// entry, or "" if the entries do not share one.
//
// An archive whose sole top-level member is the directory "test" has root
// "test"; as soon as two entries disagree on their first path component, or
// any entry sits at the top level itself, there is no root. Pass the result
// to ExtractOptions.StripRoot to unwrap it during extraction.
func FindRootDir(entries []Entry) string {
	ok, fn := false, internal.NewZipRootDirFinder()

	var root string
	for i := range entries {
		if root, ok = fn(entries[i].Name); !ok {
			return ""
		}
	}

	return root
}
