package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/source"
)

// DefaultCommand is the ffmpeg command line all invocations start with.
const DefaultCommand = "ffmpeg -hide_banner -loglevel error -nostdin -y"

// FFmpeg renders animations and combines them with audio.
type FFmpeg struct {
	command []string
	style   Style
	log     logrus.FieldLogger
}

// NewFFmpeg parses command line and returns ffmpeg runner. Empty command
// is DefaultCommand.
func NewFFmpeg(command string, style Style) (*FFmpeg, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse ffmpeg command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("ffmpeg command empty")
	}
	return &FFmpeg{
		command: args,
		style:   style,
		log:     log.GetLogger().WithField("component", "ffmpeg"),
	}, nil
}

// Available checks that ffmpeg executable can be found.
func (f *FFmpeg) Available() error {
	_, err := exec.LookPath(f.command[0])
	return err
}

// AnimateArgs returns arguments to encode raw rgba frames from stdin.
func (f *FFmpeg) AnimateArgs(fps int, path string) []string {
	args := append([]string{}, f.command[1:]...)
	return append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", f.style.Width, f.style.Height),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-b:v", "1800k",
		path,
	)
}

// CombineArgs returns arguments to mux video and audio into out.
func (f *FFmpeg) CombineArgs(video, audio, out string) []string {
	args := append([]string{}, f.command[1:]...)
	return append(args,
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		out,
	)
}

// Animate renders one frame per series sample at fps frames per second.
// Frame i shows the first i+1 points, so the animation lasts as long as
// the series audio.
func (f *FFmpeg) Animate(ctx context.Context, req sonify.Request, path string) error {
	plot, err := NewPlot(f.style, xValues(req), req.Series)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, f.command[0], f.AnimateArgs(req.FPS, path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	werr := writeFrames(stdin, plot)
	stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg animate: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if werr != nil {
		return fmt.Errorf("write frames: %w", werr)
	}
	f.log.WithFields(logrus.Fields{
		"frames": plot.Len(),
		"path":   path,
	}).Debug("animation rendered")
	return nil
}

// Combine muxes video and audio into out.
func (f *FFmpeg) Combine(ctx context.Context, video, audio, out string) error {
	cmd := exec.CommandContext(ctx, f.command[0], f.CombineArgs(video, audio, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg combine: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	f.log.WithField("path", out).Debug("combined")
	return nil
}

func writeFrames(w io.Writer, p *Plot) error {
	for {
		frame, ok := p.Next()
		if !ok {
			return nil
		}
		if _, err := w.Write(frame.Pix); err != nil {
			return err
		}
	}
}

// xValues returns x values of the request: sampled range for functions
// and sample index otherwise.
func xValues(req sonify.Request) []float64 {
	n := len(req.Series)
	p := req.Params
	if p.Function != "" && p.NumPoints == n && p.XEnd != p.XStart {
		return source.Linspace(p.XStart, p.XEnd, n)
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}
