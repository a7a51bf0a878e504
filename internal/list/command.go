package list

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/punzip"
	"github.com/nguyengg/punzip/codec"
)

type Command struct {
	Charset string `short:"O" long:"charset" description:"decode file names with this charset (e.g. shift_jis, cp866) instead of detecting one; entries flagged as UTF-8 are unaffected" value-name:"CHARSET"`
	Args    struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the local .zip files to be listed" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	for i, file := range c.Args.Files {
		if i > 0 {
			fmt.Println()
		}

		if err := c.list(string(file)); err != nil {
			return fmt.Errorf(`list "%s" error: %w`, file, err)
		}
	}

	return nil
}

// list prints the catalog of the named ZIP file without extracting anything.
func (c *Command) list(name string) error {
	a, err := punzip.Open(name, func(opts *punzip.Options) {
		opts.Encoding = c.Charset
	})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("%s:\n", name)
	if a.Comment != "" {
		fmt.Printf("comment: %s\n", strings.TrimSpace(a.Comment))
	}

	files := 0
	var compressed, uncompressed uint64
	for _, e := range a.Entries {
		if !e.IsDir() {
			files++
			compressed += e.CompressedSize
			uncompressed += e.UncompressedSize
		}

		fmt.Printf("%10s  %-7s  %s  %s\n",
			humanize.Bytes(e.UncompressedSize),
			codec.Name(e.Method),
			e.Modified.Format("2006-01-02 15:04"),
			e.Name)
	}

	fmt.Printf("%d files, %s uncompressed, %s compressed\n",
		files, humanize.Bytes(uncompressed), humanize.Bytes(compressed))
	return nil
}
