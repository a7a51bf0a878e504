package main

import (
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/punzip/internal/extract"
	"github.com/nguyengg/punzip/internal/list"
)

var opts struct {
	Extract extract.Command `command:"extract" alias:"x" description:"extract ZIP archives in parallel"`
	List    list.Command    `command:"list" alias:"ls" description:"list the contents of ZIP archives without extracting"`
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	_, err := p.Parse()
	exit(err)
}
