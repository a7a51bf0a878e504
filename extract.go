package punzip

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nguyengg/punzip/util"
	"github.com/nguyengg/punzip/zipfile"
	"golang.org/x/sync/errgroup"
)

// DefaultBufferSize is the size of the per-worker copy buffer.
const DefaultBufferSize = 32 * 1024

// ExtractOptions is an opaque struct for customising Extract.
type ExtractOptions struct {
	// Workers is the number of goroutines extracting entries in parallel.
	//
	// Zero or negative means min(GOMAXPROCS, entry count). Each worker
	// reads the shared archive through ReadAt only, so any worker count is
	// safe; the practical ceiling is the write bandwidth of the
	// destination file system.
	Workers int

	// BufferSize is the length of each worker's copy buffer.
	//
	// Default to DefaultBufferSize.
	BufferSize int

	// NoVerify skips the CRC-32 check on decompressed data.
	//
	// Byte counts are still compared against the declared uncompressed
	// size; only the checksum computation is skipped. Verification is
	// never disabled implicitly.
	NoVerify bool

	// NoOverwrite will ignore files that already exist at the target path.
	//
	// By default, Extract will overwrite existing files, finishing with
	// whichever entry was written last. If NoOverwrite is true, those
	// entries are recorded as StatusSkipped instead.
	NoOverwrite bool

	// StripRoot, if not empty, names the top-level directory to remove
	// from every entry path before writing, unwrapping an archive whose
	// contents all live under one root. Use FindRootDir to compute it.
	// The root directory entry itself is recorded as StatusSkipped.
	StripRoot string

	// Progress, if not nil, receives every chunk of decompressed bytes as
	// it is written out, for byte-accurate progress reporting. The writer
	// is shared by all workers so it must be safe for concurrent use when
	// Workers is not 1; a write error fails the entry being written.
	Progress io.Writer
}

// Extract materializes every entry of the archive under the directory dir,
// creating it if needed.
//
// Entries are partitioned across a fixed pool of workers; each entry is
// claimed and processed by exactly one worker, so there is no extraction
// order guarantee across entries. Per-entry failures (unsupported method,
// checksum mismatch, unsafe path, file-system errors) are recorded in the
// returned Result and never abort sibling entries; consult Result.Err for
// an aggregate. The returned error is non-nil only when the whole operation
// could not run or was cancelled through ctx, in which case the Result
// still reports the entries finished before the abort: files already
// written stay in place.
//
// Within one entry, the file appears under its final name only after its
// contents were fully written and verified; a half-written file is never
// left behind under the destination name.
func (a *Archive) Extract(ctx context.Context, dir string, optFns ...func(*ExtractOptions)) (*Result, error) {
	opts := &ExtractOptions{
		BufferSize: DefaultBufferSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create destination directory error: %w", err)
	}

	res := &Result{
		Dir:     dir,
		Entries: make([]EntryResult, len(a.Entries)),
	}
	for i := range a.Entries {
		res.Entries[i].Entry = &a.Entries[i]
	}

	x := &extractor{
		opts: opts,
		dir:  dir,
	}
	if root := opts.StripRoot; root != "" {
		x.stripPrefix = strings.TrimSuffix(root, "/") + "/"
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if n := len(res.Entries); workers > n {
		workers = n
	}

	// workers claim entries through cursor so that every entry is
	// processed by exactly one worker; a worker only returns early (with
	// the context's error) between entries, never mid-entry.
	var cursor atomic.Int64
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			buf := make([]byte, opts.BufferSize)
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(res.Entries) {
					return nil
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				x.extractEntry(ctx, &res.Entries[i], buf)
			}
		})
	}
	err := g.Wait()

	// directory metadata is applied only after all writes have landed,
	// children before parents, so that a directory restored read-only
	// cannot block the files being written beneath it.
	x.restoreDirMetadata(res)

	return res, err
}

// extractor holds extraction state shared by all workers; everything in it
// is read-only while the workers run.
type extractor struct {
	opts        *ExtractOptions
	dir         string
	stripPrefix string
}

// extractEntry drives one entry from claim to its terminal status, recording
// the outcome in res. It never returns an error; a failure here stops only
// this entry.
func (x *extractor) extractEntry(ctx context.Context, res *EntryResult, buf []byte) {
	e := res.Entry

	name := e.Name
	if x.stripPrefix != "" {
		name = strings.TrimPrefix(name, x.stripPrefix)
		if name == "" || (e.IsDir() && name+"/" == x.stripPrefix) {
			// the unwrapped root directory itself.
			res.Status = StatusSkipped
			return
		}
	}

	if e.ParseErr != nil {
		res.Warnings = append(res.Warnings, e.ParseErr.Error())
	}

	rel, err := safeRel(name)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return
	}
	path := filepath.Join(x.dir, rel)
	res.Path = path

	if e.IsDir() {
		if err = os.MkdirAll(path, 0755); err != nil {
			res.Status, res.Err = StatusFailed, fmt.Errorf("create directory error: %w", err)
			return
		}
		res.Status = StatusWritten
		return
	}

	if x.opts.NoOverwrite {
		if _, err = os.Lstat(path); err == nil {
			res.Status = StatusSkipped
			return
		}
	}

	src, warnings, err := e.open(!x.opts.NoVerify)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return
	}

	err = x.write(ctx, path, e, src, buf)
	if cerr := src.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return
	}

	res.Status = StatusWritten
}

// write copies the entry's verified contents to a temporary file next to
// path and renames it into place, so concurrent duplicate paths resolve
// last-write-wins without a torn file ever being visible, and a failed
// entry leaves nothing behind.
func (x *extractor) write(ctx context.Context, path string, e *Entry, src io.Reader, buf []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent directories error: %w", err)
	}

	f, err := os.CreateTemp(dir, ".punzip-*")
	if err != nil {
		return fmt.Errorf("create file error: %w", err)
	}
	tmp := f.Name()

	dst := io.Writer(f)
	if x.opts.Progress != nil {
		dst = io.MultiWriter(f, x.opts.Progress)
	}

	// the copy finishing without error means the verifying reader saw the
	// stream through to a clean, checksum-matched end.
	_, err = util.CopyBufferWithContext(ctx, dst, src, buf)
	if err == nil {
		err = f.Chmod(entryPerm(e))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chtimes(tmp, time.Time{}, e.Modified)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}

// restoreDirMetadata applies recorded permissions and modification times to
// the directories that were materialized, deepest first.
func (x *extractor) restoreDirMetadata(res *Result) {
	type dirMeta struct {
		path  string
		depth int
		e     *Entry
	}

	var dirs []dirMeta
	for i := range res.Entries {
		if r := &res.Entries[i]; r.Status == StatusWritten && r.Entry.IsDir() {
			dirs = append(dirs, dirMeta{
				path:  r.Path,
				depth: strings.Count(r.Path, string(os.PathSeparator)),
				e:     r.Entry,
			})
		}
	}
	slices.SortFunc(dirs, func(a, b dirMeta) int { return b.depth - a.depth })

	for _, d := range dirs {
		if perm, ok := unixPerm(d.e); ok && perm != 0 {
			_ = os.Chmod(d.path, perm)
		}
		_ = os.Chtimes(d.path, time.Time{}, d.e.Modified)
	}
}

// entryPerm picks the permission bits for a materialized file: the bits a
// unix creator recorded, or 0644 when the creating system had none.
func entryPerm(e *Entry) fs.FileMode {
	if perm, ok := unixPerm(e); ok && perm != 0 {
		return perm
	}
	return 0644
}

// unixPerm returns the entry's permission bits and whether the creating
// system recorded real unix modes. FAT/NTFS creators synthesize 0777/0666
// modes which must not override the process umask.
func unixPerm(e *Entry) (fs.FileMode, bool) {
	switch e.CreatorVersion >> 8 {
	case zipfile.CreatorUnix, zipfile.CreatorMacOSX:
		return e.Mode().Perm(), true
	}
	return 0, false
}

// safeRel converts an entry name to a destination-relative path, failing
// with ErrInsecurePath for any name that could resolve outside the
// destination root. This check is mandatory and has no opt-out.
func safeRel(name string) (string, error) {
	// ZIP paths are forward-slash separated; a backslash is either a
	// pre-standard Windows separator or an attempt to smuggle one past
	// this check, and a ':' in the second byte catches drive-letter
	// prefixes on every platform.
	if name == "" || strings.Contains(name, `\`) || (len(name) > 1 && name[1] == ':') {
		return "", fmt.Errorf(`%w: "%s"`, ErrInsecurePath, name)
	}

	p := strings.TrimSuffix(name, "/")
	if p == "" {
		return "", fmt.Errorf(`%w: "%s"`, ErrInsecurePath, name)
	}
	if p = filepath.FromSlash(p); !filepath.IsLocal(p) {
		return "", fmt.Errorf(`%w: "%s"`, ErrInsecurePath, name)
	}

	return p, nil
}
