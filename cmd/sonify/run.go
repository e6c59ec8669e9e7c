package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify/artifact"
	"github.com/dudk/sonify/backend"
	sconfig "github.com/dudk/sonify/internal/config"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/internal/telemetry"
	"github.com/dudk/sonify/media"
	"github.com/dudk/sonify/pipeline"
)

// errFailed is returned when a stage failed, the failure itself is
// already printed.
var errFailed = errors.New("sonification failed")

// settings are flags shared by all commands.
type settings struct {
	path string
	cfg  sconfig.Config
	log  *logrus.Logger
}

func (s *settings) register(fs *flag.FlagSet) {
	fs.StringVar(&s.path, "config", os.Getenv("SONIFY_CONFIG"), "path to YAML config file")
}

func (s *settings) load() error {
	cfg, err := sconfig.Load(s.path)
	if err != nil {
		return err
	}
	l, err := log.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.log = l
	return nil
}

// pipelineCommand runs the pipeline or one of its stages for a source.
type pipelineCommand struct {
	settings
	stage      string
	workdir    string
	namespace  string
	backend    string
	concurrent bool
}

func (cmd *pipelineCommand) register(fs *flag.FlagSet) {
	cmd.settings.register(fs)
	fs.StringVar(&cmd.stage, "stage", "", "run a single stage: parse, animate, audio, combine or cleanup")
	fs.StringVar(&cmd.workdir, "workdir", "", "working directory for artifacts")
	fs.StringVar(&cmd.namespace, "namespace", "", "prefix of intermediate artifacts")
	fs.StringVar(&cmd.backend, "backend", "", "audio backend: tone-sequencer, continuous-local or continuous-remote")
	fs.BoolVar(&cmd.concurrent, "concurrent", false, "render animation and audio concurrently")
}

// load applies flags on top of config.
func (cmd *pipelineCommand) load() error {
	if err := cmd.settings.load(); err != nil {
		return err
	}
	if cmd.workdir != "" {
		cmd.cfg.Workdir = cmd.workdir
	}
	if cmd.namespace != "" {
		cmd.cfg.Namespace = cmd.namespace
	}
	if cmd.backend != "" {
		cmd.cfg.Audio.Kind = backend.ParseKind(cmd.backend)
	}
	if cmd.concurrent {
		cmd.cfg.Concurrent = true
	}
	return nil
}

// execute runs the pipeline for the source and prints the outcome as
// JSON. Style is adjusted by restyle, if provided. Config must be loaded.
func (cmd *pipelineCommand) execute(src pipeline.Source, restyle func(*media.Style)) error {
	var stage pipeline.Stage
	if cmd.stage != "" {
		var err error
		if stage, err = pipeline.ParseStage(cmd.stage); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	tel, err := telemetry.Setup(ctx, cmd.cfg.Telemetry, os.Stderr, cmd.log)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			cmd.log.WithError(err).Warn("telemetry shutdown error")
		}
	}()

	style := cmd.cfg.Plot
	if restyle != nil {
		restyle(&style)
	}
	o, err := orchestrator(cmd.cfg, style, cmd.log)
	if err != nil {
		return err
	}

	if stage == "" {
		r := o.Run(ctx, src)
		if err := printJSON(r); err != nil {
			return err
		}
		if r.Err() != nil {
			return errFailed
		}
		return nil
	}

	var res pipeline.Result
	switch stage {
	case pipeline.Parse:
		res = o.Parse(ctx, src)
	case pipeline.Animate:
		res = o.Animate(ctx, src)
	case pipeline.Audio:
		res = o.Audio(ctx, src)
	case pipeline.Combine:
		res = o.Combine(ctx, src)
	case pipeline.Cleanup:
		res = o.Cleanup(ctx, src.Identity())
	}
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.OK() {
		return errFailed
	}
	return nil
}

// orchestrator wires pipeline components from config.
func orchestrator(cfg sconfig.Config, style media.Style, l *logrus.Logger) (*pipeline.Orchestrator, error) {
	ffmpeg, err := media.NewFFmpeg(cfg.FFmpeg, style)
	if err != nil {
		return nil, err
	}
	store := artifact.New(cfg.Workdir, cfg.Namespace).WithLogger(l)
	selector := backend.New(cfg.Audio, backend.WithLogger(l))
	return pipeline.New(store,
		pipeline.WithFPS(cfg.FPS),
		pipeline.WithAnimator(ffmpeg),
		pipeline.WithBackend(selector),
		pipeline.WithCombiner(ffmpeg),
		pipeline.WithConcurrent(cfg.Concurrent),
		pipeline.WithLogger(l),
	)
}

// relabel replaces title and labels which weren't customized.
func relabel(title, xLabel, yLabel string) func(*media.Style) {
	return func(s *media.Style) {
		d := media.DefaultStyle()
		if s.Title == d.Title {
			s.Title = title
		}
		if s.XLabel == d.XLabel {
			s.XLabel = xLabel
		}
		if s.YLabel == d.YLabel {
			s.YLabel = yLabel
		}
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
