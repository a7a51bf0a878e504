package punzip

import (
	"errors"
	"fmt"
)

// Status is the terminal state of one entry after extraction.
type Status int

const (
	// StatusPending is the zero value, the state of an entry the scheduler
	// has not claimed yet. Entries only remain Pending in the result when
	// extraction was aborted before every entry was processed.
	StatusPending Status = iota
	// StatusWritten marks an entry whose file or directory was fully
	// materialized (and, for files, verified unless verification was
	// disabled).
	StatusWritten
	// StatusSkipped marks an entry that was deliberately not written:
	// the destination already exists under NoOverwrite, or the entry is
	// the root directory being unwrapped by StripRoot.
	StatusSkipped
	// StatusFailed marks an entry that could not be extracted;
	// EntryResult.Err has the reason. The failure is terminal for the
	// entry but never aborts its siblings.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusWritten:
		return "written"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status %d", int(s))
	}
}

// EntryResult is the outcome of extracting one entry.
type EntryResult struct {
	// Entry points into Archive.Entries.
	Entry *Entry
	// Path is the destination the entry resolved to; empty if the entry
	// failed before path resolution or was skipped by StripRoot.
	Path string
	// Status is the terminal state.
	Status Status
	// Err is the failure reason when Status is StatusFailed. Use
	// errors.Is against ErrChecksum, ErrSizeMismatch, ErrInsecurePath,
	// ErrUnsupportedMethod, ErrFormat and ErrOffsetOutOfRange to tell the
	// reasons apart; anything else is an I/O failure from the file system.
	Err error
	// Warnings records non-fatal defects: local file header fields that
	// disagree with the central directory, or extra fields that could not
	// be fully decoded. The central directory values were used regardless.
	Warnings []string
}

// Result is the outcome of extracting one archive.
type Result struct {
	// Dir is the destination root files were written under.
	Dir string
	// Entries has the per-entry outcomes in catalog order, regardless of
	// the order the workers actually processed them in.
	Entries []EntryResult
}

// Written returns the number of entries that were materialized.
func (r *Result) Written() (n int) {
	for i := range r.Entries {
		if r.Entries[i].Status == StatusWritten {
			n++
		}
	}
	return
}

// Skipped returns the number of entries that were deliberately not written.
func (r *Result) Skipped() (n int) {
	for i := range r.Entries {
		if r.Entries[i].Status == StatusSkipped {
			n++
		}
	}
	return
}

// Failed returns the number of entries that could not be extracted.
func (r *Result) Failed() (n int) {
	for i := range r.Entries {
		if r.Entries[i].Status == StatusFailed {
			n++
		}
	}
	return
}

// WrittenBytes returns the total uncompressed size of the entries that were
// materialized.
func (r *Result) WrittenBytes() (n uint64) {
	for i := range r.Entries {
		if r.Entries[i].Status == StatusWritten {
			n += r.Entries[i].Entry.UncompressedSize
		}
	}
	return
}

// Err joins the failures of all failed entries into one error, or returns
// nil if no entry failed.
//
// Each joined error is an *EntryError so callers can recover the entry name
// with errors.As, and errors.Is still matches the underlying sentinel.
func (r *Result) Err() error {
	var errs []error
	for i := range r.Entries {
		if e := &r.Entries[i]; e.Status == StatusFailed {
			errs = append(errs, &EntryError{Name: e.Entry.Name, Err: e.Err})
		}
	}
	return errors.Join(errs...)
}

// EntryError is the failure of one entry, reported under the entry's
// decoded name.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf(`extract "%s" error: %v`, e.Name, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
