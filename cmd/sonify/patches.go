package main

import (
	"flag"
	"fmt"

	"github.com/dudk/sonify/synth"
)

type patchesCommand struct {
	scan stringList
	find string
}

func (cmd *patchesCommand) Name() string {
	return "patches"
}

func (cmd *patchesCommand) Help() string {
	return "Show the list of available synth patches"
}

func (cmd *patchesCommand) Register(fs *flag.FlagSet) {
	fs.Var(&cmd.scan, "scan", "semicolon separated paths to scan for patches")
	fs.StringVar(&cmd.find, "find", "", "print the patch with provided name as JSON")
}

func (cmd *patchesCommand) Run() error {
	lib := synth.NewLibrary(cmd.scan...)
	if cmd.find == "" {
		fmt.Fprint(output, lib)
		return nil
	}
	p, err := lib.Find(cmd.find)
	if err != nil {
		return err
	}
	return printJSON(p)
}
