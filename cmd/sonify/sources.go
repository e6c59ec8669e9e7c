package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/dudk/sonify/source"
)

type mathCommand struct {
	pipelineCommand
	function string
	xStart   float64
	xEnd     float64
	points   int
}

//Implement command interface
func (cmd *mathCommand) Name() string {
	return "math"
}

func (cmd *mathCommand) Help() string {
	return "Sonify a function of x"
}

func (cmd *mathCommand) Register(fs *flag.FlagSet) {
	cmd.pipelineCommand.register(fs)
	fs.StringVar(&cmd.function, "f", "", "function of x, e.g. sin(x) (required)")
	fs.Float64Var(&cmd.xStart, "start", source.DefaultXStart, "start of x range")
	fs.Float64Var(&cmd.xEnd, "end", source.DefaultXEnd, "end of x range")
	fs.IntVar(&cmd.points, "points", source.DefaultPoints, "number of sampled points")
}

func (cmd *mathCommand) Run() error {
	if strings.TrimSpace(cmd.function) == "" {
		return errors.New("missing -f required flag")
	}
	if err := cmd.load(); err != nil {
		return err
	}
	return cmd.execute(source.NewExpression(cmd.function, cmd.xStart, cmd.xEnd, cmd.points), nil)
}

type stocksCommand struct {
	pipelineCommand
	ticker string
	dir    string
}

func (cmd *stocksCommand) Name() string {
	return "stocks"
}

func (cmd *stocksCommand) Help() string {
	return "Sonify daily close prices of a ticker"
}

func (cmd *stocksCommand) Register(fs *flag.FlagSet) {
	cmd.pipelineCommand.register(fs)
	fs.StringVar(&cmd.ticker, "ticker", "", "ticker symbol, e.g. AAPL (required)")
	fs.StringVar(&cmd.dir, "prices", "", "directory with <TICKER>.csv files")
}

func (cmd *stocksCommand) Run() error {
	if strings.TrimSpace(cmd.ticker) == "" {
		return errors.New("missing -ticker required flag")
	}
	if err := cmd.load(); err != nil {
		return err
	}
	if cmd.dir == "" {
		cmd.dir = cmd.cfg.PricesDir
	}
	src := source.NewPrices(cmd.ticker, cmd.dir)
	return cmd.execute(src, relabel(fmt.Sprintf("%s close", src.Ticker), "day", "close"))
}

type imageCommand struct {
	pipelineCommand
	path string
}

func (cmd *imageCommand) Name() string {
	return "image"
}

func (cmd *imageCommand) Help() string {
	return "Sonify row brightness of an image"
}

func (cmd *imageCommand) Register(fs *flag.FlagSet) {
	cmd.pipelineCommand.register(fs)
	fs.StringVar(&cmd.path, "in", "", "input image: png, jpeg, gif, bmp, tiff or webp (required)")
}

func (cmd *imageCommand) Run() error {
	if cmd.path == "" {
		return errors.New("missing -in required flag")
	}
	if err := cmd.load(); err != nil {
		return err
	}
	return cmd.execute(source.NewImage(cmd.path), relabel("brightness", "row", "brightness"))
}
