package main

import (
	"context"
	"errors"
	"flag"
	"strings"

	"github.com/dudk/sonify/source"
)

type cleanCommand struct {
	pipelineCommand
	function string
	ticker   string
	image    bool
}

func (cmd *cleanCommand) Name() string {
	return "clean"
}

func (cmd *cleanCommand) Help() string {
	return "Delete artifacts of a function, ticker or image"
}

func (cmd *cleanCommand) Register(fs *flag.FlagSet) {
	cmd.pipelineCommand.register(fs)
	fs.StringVar(&cmd.function, "f", "", "function the artifacts were produced for")
	fs.StringVar(&cmd.ticker, "ticker", "", "ticker the artifacts were produced for")
	fs.BoolVar(&cmd.image, "image", false, "artifacts of the image mode")
}

func (cmd *cleanCommand) identity() (string, error) {
	var identities []string
	if f := strings.TrimSpace(cmd.function); f != "" {
		identities = append(identities, f)
	}
	if t := strings.TrimSpace(cmd.ticker); t != "" {
		identities = append(identities, strings.ToUpper(t))
	}
	if cmd.image {
		identities = append(identities, source.ImageIdentity)
	}
	if len(identities) != 1 {
		return "", errors.New("exactly one of -f, -ticker or -image is required")
	}
	return identities[0], nil
}

func (cmd *cleanCommand) Run() error {
	identity, err := cmd.identity()
	if err != nil {
		return err
	}
	if err := cmd.load(); err != nil {
		return err
	}
	o, err := orchestrator(cmd.cfg, cmd.cfg.Plot, cmd.log)
	if err != nil {
		return err
	}
	res := o.Cleanup(context.Background(), identity)
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.OK() {
		return errFailed
	}
	return nil
}
