package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

type config struct {
	args []string
}

type command interface {
	Name() string
	Help() string
	Run() error
	Register(*flag.FlagSet)
}

func (config *config) run() int {
	cmdName, args := parseArgs(config.args)
	if cmdName == "" {
		printUsage()
		return errorExitCode
	}

	for _, cmd := range commands {
		if cmd.Name() == cmdName {
			flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
			cmd.Register(flags)
			if err := flags.Parse(args); err != nil {
				return errorExitCode
			}
			if err := cmd.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
				return errorExitCode
			}
			return successExitCode
		}
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
	printUsage()
	return errorExitCode
}

var (
	successExitCode = 0
	errorExitCode   = 1
	commands        []command
	// output receives command results.
	output io.Writer = os.Stdout
)

func init() {
	commands = []command{
		&mathCommand{},
		&stocksCommand{},
		&imageCommand{},
		&cleanCommand{},
		&patchesCommand{},
		&synthdCommand{},
	}
}

func main() {
	c := config{
		args: os.Args,
	}
	os.Exit(c.run())
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage() {
	fmt.Println("Sonify turns data series into animated plots with a soundtrack")
	fmt.Println()
	fmt.Println("Usage: sonify <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, cmd := range commands {
		fmt.Printf("\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}
