package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/continuous"
	sconfig "github.com/dudk/sonify/internal/config"
	"github.com/dudk/sonify/internal/telemetry"
	"github.com/dudk/sonify/remote"
	"github.com/dudk/sonify/source"
)

type synthdCommand struct {
	settings
	bind     string
	natsURL  string
	embedded bool
	subject  string
	patch    string
}

func (cmd *synthdCommand) Name() string {
	return "synthd"
}

func (cmd *synthdCommand) Help() string {
	return "Serve remote synth renders over HTTP and NATS"
}

func (cmd *synthdCommand) Register(fs *flag.FlagSet) {
	cmd.settings.register(fs)
	fs.StringVar(&cmd.bind, "bind", "", "HTTP listen address")
	fs.StringVar(&cmd.natsURL, "nats", "", "NATS server to subscribe to")
	fs.BoolVar(&cmd.embedded, "embedded-nats", false, "start embedded NATS server")
	fs.StringVar(&cmd.subject, "subject", "", "NATS subject to serve")
	fs.StringVar(&cmd.patch, "patch", "", "synth patch file")
}

func (cmd *synthdCommand) load() error {
	if err := cmd.settings.load(); err != nil {
		return err
	}
	if cmd.bind != "" {
		cmd.cfg.Synthd.Bind = cmd.bind
	}
	if cmd.natsURL != "" {
		cmd.cfg.Synthd.NATSURL = cmd.natsURL
	}
	if cmd.embedded {
		cmd.cfg.Synthd.Embedded = true
	}
	if cmd.subject != "" {
		cmd.cfg.Audio.Remote.Subject = cmd.subject
	}
	if cmd.patch != "" {
		cmd.cfg.Audio.Local.PatchPath = cmd.patch
	}
	return nil
}

func (cmd *synthdCommand) Run() (err error) {
	if err := cmd.load(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c closers
	defer func() {
		err = errors.Join(err, c.close())
	}()

	tel, err := telemetry.Setup(ctx, cmd.cfg.Telemetry, os.Stderr, cmd.log)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	c.add(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tel.Shutdown(shutdownCtx)
	})
	d := newSynthd(cmd.cfg.Audio.Local.PatchPath, tel.Handler, cmd.log)
	if _, err := d.serveNATS(cmd.cfg.Synthd, cmd.cfg.Audio.Remote.Subject, &c, cmd.log); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cmd.cfg.Synthd.Bind,
		Handler:           d.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		cmd.log.WithField("bind", srv.Addr).Info("serving http")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(err, srv.Shutdown(shutdownCtx))
}

const shutdownTimeout = 10 * time.Second

// closers release acquired resources in reverse order.
type closers []func() error

func (c *closers) add(f func() error) {
	*c = append(*c, f)
}

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// serveNATS starts embedded server if configured, connects and subscribes
// the service. Every acquired resource is added to c, also when a later
// step fails. Returns url of the server, empty if nats is not used.
func (d *synthd) serveNATS(cfg sconfig.SynthdConfig, subject string, c *closers, l logrus.FieldLogger) (string, error) {
	url := cfg.NATSURL
	if cfg.Embedded {
		ns, err := startNATS(cfg.NATSPort, cfg.MaxPayload)
		if err != nil {
			return "", err
		}
		c.add(func() error {
			ns.Shutdown()
			ns.WaitForShutdown()
			return nil
		})
		url = ns.ClientURL()
		l.WithField("url", url).Info("embedded nats started")
	}
	if url == "" {
		return "", nil
	}
	nc, err := nats.Connect(url, nats.Name("sonify-synthd"))
	if err != nil {
		return url, fmt.Errorf("connect nats: %w", err)
	}
	c.add(func() error {
		err := nc.Drain()
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return err
	})
	if _, err := d.service.Subscribe(nc, subject); err != nil {
		return url, fmt.Errorf("subscribe: %w", err)
	}
	l.WithField("subject", subject).Info("serving nats")
	return url, nil
}

func startNATS(port, maxPayload int) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:       "127.0.0.1",
		Port:       port,
		MaxPayload: int32(maxPayload),
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("nats server not ready for connections")
	}
	return ns, nil
}

// synthd renders with the local continuous backend.
type synthd struct {
	local   *continuous.Local
	service *remote.Service
	metrics http.Handler
}

func newSynthd(patch string, metrics http.Handler, l logrus.FieldLogger) *synthd {
	local := continuous.NewLocal(patch).WithLogger(l)
	return &synthd{
		local:   local,
		service: remote.NewService(local, resolve).WithLogger(l.WithField("component", "synthd")),
		metrics: metrics,
	}
}

func (d *synthd) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(remote.Path, d.service)
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics)
	}
	mux.HandleFunc("/healthz", d.health)
	return mux
}

// health reports whether the patch can be loaded. Service is healthy
// without it, renders are answered with 503 then.
func (d *synthd) health(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Status string `json:"status"`
		Patch  string `json:"patch"`
		Error  string `json:"error,omitempty"`
	}{
		Status: "ok",
		Patch:  d.local.PatchPath,
	}
	if err := d.local.Available(); err != nil {
		status.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// resolve computes series of a function request without samples.
func resolve(ctx context.Context, p sonify.SourceParams) (sonify.Series, error) {
	if p.Function == "" {
		return nil, sonify.Errorf(sonify.KindInvalidSeries, "resolve", "request has neither series nor function")
	}
	if p.NumPoints == 0 {
		p.NumPoints = source.DefaultPoints
	}
	if p.XStart == p.XEnd {
		p.XStart, p.XEnd = source.DefaultXStart, source.DefaultXEnd
	}
	e := source.NewExpression(p.Function, p.XStart, p.XEnd, p.NumPoints)
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}
	return e.Series(ctx)
}
