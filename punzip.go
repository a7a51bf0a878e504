// Package punzip extracts ZIP archives with parallel workers over a shared
// read-only memory mapping of the archive file.
//
// Open parses the central directory (including the ZIP64 extensions for
// large archives) into an immutable catalog; Archive.Extract then fans the
// entries out across a worker pool. Each worker decompresses and
// CRC-verifies its entry before writing it, so one corrupt entry never
// prevents its siblings from extracting. The store, deflate, bzip2, zstd
// and xz compression methods are supported. File names in legacy encodings
// are detected and decoded to Unicode; entry paths that would escape the
// destination root are rejected.
//
// The package only reads: it does not create or modify archives, and it
// does not support encrypted entries.
package punzip

import (
	"context"
)

// Extract is a convenience function that opens the named ZIP file and
// extracts every entry under dir.
//
// Equivalent to Open followed by Archive.Extract and Close. To force a
// filename encoding or keep per-file comments, use Open and its options
// instead.
func Extract(ctx context.Context, name, dir string, optFns ...func(*ExtractOptions)) (*Result, error) {
	a, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return a.Extract(ctx, dir, optFns...)
}

// List is a convenience function that returns the catalog of the named ZIP
// file without extracting anything.
//
// The returned entries are metadata only: they are detached from the
// underlying (closed) mapping, so calling Open on one fails. Use Open to
// both list and read entries.
func List(name string, optFns ...func(*Options)) ([]Entry, error) {
	a, err := Open(name, optFns...)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	entries := make([]Entry, len(a.Entries))
	copy(entries, a.Entries)
	for i := range entries {
		entries[i].archive = nil
	}

	return entries, nil
}
