package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/signal"
)

// maxPayload limits size of request body.
const maxPayload = 8 << 20

// Resolver produces series from source parameters. It's used when a
// request comes without series.
type Resolver func(ctx context.Context, params sonify.SourceParams) (sonify.Series, error)

// Service is the reference remote synth service. It renders requests with
// a backend and replies with wav bytes over HTTP and NATS.
type Service struct {
	backend sonify.Backend
	resolve Resolver
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewService returns service which renders with provided backend.
// Resolver is optional.
func NewService(backend sonify.Backend, resolve Resolver) *Service {
	return &Service{
		backend: backend,
		resolve: resolve,
		timeout: DefaultTimeout,
		log:     log.GetLogger().WithField("component", "synth-service"),
	}
}

// WithLogger sets service logger.
func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	s.log = l
	return s
}

// Handler returns http handler which serves POST /math_audio.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	return mux
}

// ServeHTTP renders posted payload.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var p Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayload)).Decode(&p); err != nil {
		http.Error(w, fmt.Sprintf("decode payload: %v", err), http.StatusBadRequest)
		return
	}
	data, code, err := s.render(r.Context(), p)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

// Subscribe serves render requests sent to the NATS subject. Reply of a
// failed render carries StatusHeader and error text.
func (s *Service) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		s.handleMsg(nc, msg)
	})
}

func (s *Service) handleMsg(nc *nats.Conn, msg *nats.Msg) {
	if msg.Reply == "" {
		s.log.Warn("render request without reply subject")
		return
	}
	reply := nats.NewMsg(msg.Reply)
	var (
		data []byte
		code = http.StatusOK
		err  error
	)
	var p Payload
	if err = json.Unmarshal(msg.Data, &p); err != nil {
		code = http.StatusBadRequest
		err = fmt.Errorf("decode payload: %w", err)
	} else {
		data, code, err = s.render(context.Background(), p)
	}
	if err == nil && int64(len(data)) > nc.MaxPayload() {
		code = http.StatusRequestEntityTooLarge
		err = fmt.Errorf("waveform of %d bytes exceeds max payload %d", len(data), nc.MaxPayload())
	}
	reply.Header.Set(StatusHeader, strconv.Itoa(code))
	if err != nil {
		reply.Data = []byte(err.Error())
	} else {
		reply.Data = data
	}
	if err := msg.RespondMsg(reply); err != nil {
		s.log.WithError(err).Warn("failed to respond")
	}
}

// render returns wav bytes and http status code.
func (s *Service) render(ctx context.Context, p Payload) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := p.Request()
	if len(req.Series) == 0 && s.resolve != nil {
		series, err := s.resolve(ctx, req.Params)
		if err != nil {
			return nil, statusOf(err), err
		}
		req.Series = series
	}
	l := s.log.WithFields(logrus.Fields{
		"identity": req.Identity,
		"points":   len(req.Series),
		"fps":      req.FPS,
	})
	w, err := s.backend.Render(ctx, req)
	if err != nil {
		l.WithError(err).Warn("render failed")
		return nil, statusOf(err), err
	}
	data, err := signal.Bytes(w)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	l.WithField("bytes", len(data)).Info("rendered")
	return data, http.StatusOK, nil
}

// statusOf maps error kind to http status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, sonify.ErrInvalidSeries):
		return http.StatusBadRequest
	case errors.Is(err, sonify.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
