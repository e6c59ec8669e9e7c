// Package remote renders series on a remote synth service. The service is
// reached over HTTP or NATS depending on the endpoint scheme, and replies
// with the rendered waveform bytes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/internal/log"
	"github.com/dudk/sonify/signal"
)

const (
	// DefaultTimeout bounds a single remote render.
	DefaultTimeout = 30 * time.Second
	// DefaultSubject is the NATS subject render requests are sent to.
	DefaultSubject = "sonify.synth.render"
	// Path is the HTTP path render requests are posted to.
	Path = "/math_audio"
	// StatusHeader is set on NATS replies which carry an error. Its value
	// is an HTTP status code.
	StatusHeader = "Sonify-Status"
)

// Client renders series on the remote service. It implements
// sonify.Backend, every failure is reported as RemoteBackend error.
type Client struct {
	Endpoint string
	Subject  string
	Timeout  time.Duration

	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient returns client for the endpoint. Empty subject and zero
// timeout are replaced with defaults.
func NewClient(endpoint, subject string, timeout time.Duration) *Client {
	if subject == "" {
		subject = DefaultSubject
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Endpoint:   endpoint,
		Subject:    subject,
		Timeout:    timeout,
		httpClient: &http.Client{},
		log:        log.GetLogger().WithField("backend", "continuous-remote"),
	}
}

// WithLogger sets client logger.
func (c *Client) WithLogger(l logrus.FieldLogger) *Client {
	c.log = l.WithField("backend", "continuous-remote")
	return c
}

// Render implements sonify.Backend. Response must hold exactly the
// duration of the series at 44.1 kHz.
func (c *Client) Render(ctx context.Context, req sonify.Request) (*signal.Waveform, error) {
	if err := req.Series.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(NewPayload(req))
	if err != nil {
		return nil, c.fail("encode", err)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, c.fail("endpoint", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	var body []byte
	switch u.Scheme {
	case "http", "https":
		body, err = c.post(ctx, data)
	case "nats", "tls":
		body, err = c.request(ctx, data)
	default:
		err = fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, c.fail("request", err)
	}
	if len(body) == 0 {
		return nil, c.fail("decode", fmt.Errorf("empty response"))
	}
	w, err := signal.DecodeStream(body, signal.SampleRate)
	if err != nil {
		return nil, c.fail("decode", err)
	}
	if w.SampleRate != signal.SampleRate {
		return nil, c.fail("decode", fmt.Errorf("sample rate %d, expected %d", w.SampleRate, signal.SampleRate))
	}
	if expected := signal.SamplesFor(signal.SampleRate, req.Series.Duration(req.FPS)); w.Len() != expected {
		return nil, c.fail("decode", fmt.Errorf("%d samples, expected %d", w.Len(), expected))
	}
	c.log.WithFields(logrus.Fields{
		"endpoint": c.Endpoint,
		"samples":  w.Len(),
		"elapsed":  time.Since(start),
	}).Debug("remote render done")
	return w, nil
}

func (c *Client) fail(op string, err error) error {
	return &sonify.Error{Kind: sonify.KindRemoteBackend, Op: "remote " + op, Err: err}
}

// post sends payload to <endpoint>/math_audio.
func (c *Client) post(ctx context.Context, data []byte) ([]byte, error) {
	target := strings.TrimSuffix(c.Endpoint, "/") + Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// request sends payload to the NATS subject and waits for reply.
func (c *Client) request(ctx context.Context, data []byte) ([]byte, error) {
	nc, err := nats.Connect(c.Endpoint,
		nats.Name("sonify-client"),
		nats.Timeout(c.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Close()

	msg, err := nc.RequestWithContext(ctx, c.Subject, data)
	if err != nil {
		return nil, err
	}
	if status := msg.Header.Get(StatusHeader); status != "" {
		code, _ := strconv.Atoi(status)
		if code != http.StatusOK {
			return nil, fmt.Errorf("status %s: %s", status, strings.TrimSpace(string(msg.Data)))
		}
	}
	return msg.Data, nil
}
