package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/punzip"
	"github.com/nguyengg/punzip/internal"
	"github.com/nguyengg/punzip/util"
)

type Command struct {
	Dir        flags.Filename `short:"d" long:"dir" description:"extract into this directory; by default a new directory named after each archive is created" value-name:"DIR"`
	Charset    string         `short:"O" long:"charset" description:"decode file names with this charset (e.g. shift_jis, cp866) instead of detecting one; entries flagged as UTF-8 are unaffected" value-name:"CHARSET"`
	Jobs       int            `short:"j" long:"jobs" description:"number of files to extract concurrently; defaults to the number of CPUs" value-name:"N"`
	NoVerify   bool           `long:"no-verify" description:"skip CRC-32 verification of extracted files"`
	Overwrite  bool           `long:"overwrite" description:"replace existing files instead of skipping them"`
	UnwrapRoot bool           `long:"unwrap-root" description:"if all files in an archive share a common root directory, extract its contents without that root"`
	Progress   bool           `long:"progress" description:"show a progress bar instead of periodic logs"`
	Args       struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the local .zip files to be extracted" required:"yes"`
	} `positional-args:"yes"`
}

type Success struct {
	File   string
	Output string
	Files  int
	Bytes  uint64
}

type Failure struct {
	File string
	Err  error
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}
	if c.Jobs < 0 {
		return fmt.Errorf("--jobs must be non-negative")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	// save the results so that at the end, we can reprint them.
	n := len(c.Args.Files)
	successes := make([]Success, 0, n)
	failures := make([]Failure, 0)

	for i, file := range c.Args.Files {
		ctx := internal.WithPrefixLogger(ctx, internal.Prefix(i+1, n, file))
		logger := internal.MustLogger(ctx)

		output, res, err := c.extract(ctx, string(file))
		if err == nil && res.Failed() != 0 {
			err = fmt.Errorf("%d/%d files failed", res.Failed(), len(res.Entries))
		}

		if err == nil {
			logger.Printf(`successfully extracted to "%s"`, output)
			successes = append(successes, Success{
				File:   string(file),
				Output: output,
				Files:  res.Written(),
				Bytes:  res.WrittenBytes(),
			})
			continue
		}

		failures = append(failures, Failure{
			File: string(file),
			Err:  err,
		})

		if errors.Is(err, context.Canceled) {
			logger.Printf("extraction was interrupted")
			break
		}

		logger.Printf("extract error: %v", err)
	}

	log.Printf("successfully extracted %d/%d files", len(successes), n)
	for _, s := range successes {
		log.Printf(`extracted "%s" to "%s" (%d files, %s)`, s.File, s.Output, s.Files, humanize.Bytes(s.Bytes))
	}
	for _, f := range failures {
		log.Printf(`extract "%s" error: %v`, f.File, f.Err)
	}

	if len(failures) != 0 {
		return fmt.Errorf("failed to extract %d/%d files", len(failures), n)
	}
	return nil
}

// extract extracts the content of the named ZIP file and returns the output directory.
func (c *Command) extract(ctx context.Context, name string) (output string, res *punzip.Result, err error) {
	logger := internal.MustLogger(ctx)

	a, err := punzip.Open(name, func(opts *punzip.Options) {
		opts.Ctx = ctx
		opts.Encoding = c.Charset
	})
	if err != nil {
		return "", nil, err
	}
	defer a.Close()

	var stripRoot string
	if c.UnwrapRoot {
		stripRoot = punzip.FindRootDir(a.Entries)
	}

	if output = string(c.Dir); output == "" {
		stem, _ := util.StemAndExt(name)
		if output, err = util.MkExclDir(".", stem, 0755); err != nil {
			return "", nil, err
		}
	}

	var total uint64
	for _, e := range a.Entries {
		if !e.IsDir() {
			total += e.UncompressedSize
		}
	}

	logger.Printf(`extracting %d files (%s) to "%s"`, len(a.Entries), humanize.Bytes(total), output)

	progress := c.newProgress(ctx, total)
	defer progress.Close()

	res, err = a.Extract(ctx, output, func(opts *punzip.ExtractOptions) {
		opts.Workers = c.Jobs
		opts.NoVerify = c.NoVerify
		opts.NoOverwrite = !c.Overwrite
		opts.StripRoot = stripRoot
		opts.Progress = progress
	})
	if err != nil {
		return output, res, err
	}

	for i := range res.Entries {
		er := &res.Entries[i]
		for _, w := range er.Warnings {
			logger.Printf(`"%s": %s`, er.Entry.Name, w)
		}
		if er.Status == punzip.StatusFailed {
			logger.Printf(`extract "%s" error: %v`, er.Entry.Name, er.Err)
		}
	}

	return output, res, nil
}
