package remote_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/continuous"
	"github.com/dudk/sonify/remote"
	"github.com/dudk/sonify/signal"
	"github.com/dudk/sonify/synth"
)

var request = sonify.Request{
	Identity: "sin(x)",
	Params: sonify.SourceParams{
		Function:  "sin(x)",
		XStart:    0,
		XEnd:      10,
		NumPoints: 6,
	},
	Series: sonify.Series{0, 0.5, 1, 0.5, 0, -0.5},
	FPS:    30,
}

func localBackend(t *testing.T) *continuous.Local {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sine.yaml")
	require.NoError(t, synth.DefaultPatch().Save(path))
	return continuous.NewLocal(path)
}

func TestPayload(t *testing.T) {
	data, err := json.Marshal(remote.NewPayload(request))
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "sin(x)", fields["function"])
	assert.Equal(t, 10.0, fields["x_range_end"])
	assert.Equal(t, 6.0, fields["num_data_points"])
	assert.Equal(t, 30.0, fields["fps"])
	assert.NotContains(t, fields, "ticker")

	var p remote.Payload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, request, p.Request())
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(remote.NewService(localBackend(t), nil).Handler())
	defer srv.Close()

	c := remote.NewClient(srv.URL, "", time.Second)
	w, err := c.Render(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 8820, w.Len())
	assert.False(t, w.Silent())

	expected, err := localBackend(t).Render(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, expected.Equal(w))
}

func TestHTTPResolver(t *testing.T) {
	resolve := func(ctx context.Context, params sonify.SourceParams) (sonify.Series, error) {
		return sonify.Series{1, 2, 3}, nil
	}
	srv := httptest.NewServer(remote.NewService(localBackend(t), resolve).Handler())
	defer srv.Close()

	body := `{"function":"x","x_range_start":0,"x_range_end":1,"num_data_points":3,"fps":30}`
	resp, err := http.Post(srv.URL+remote.Path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
}

func TestHTTPFailures(t *testing.T) {
	unavailable := httptest.NewServer(remote.NewService(continuous.NewLocal(""), nil).Handler())
	defer unavailable.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{1, 2, 3})
	}))
	defer garbage.Close()

	narrowband, err := signal.Bytes(&signal.Waveform{SampleRate: 8000, Samples: make([]float64, 10)})
	require.NoError(t, err)
	mismatched := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(narrowband)
	}))
	defer mismatched.Close()

	// raw pcm is read at 44.1 kHz but holds too few samples
	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 20))
	}))
	defer short.Close()

	tests := []struct {
		description string
		endpoint    string
	}{
		{description: "unavailable patch", endpoint: unavailable.URL},
		{description: "timeout", endpoint: slow.URL},
		{description: "invalid response", endpoint: garbage.URL},
		{description: "wrong sample rate", endpoint: mismatched.URL},
		{description: "wrong length", endpoint: short.URL},
		{description: "unreachable", endpoint: "http://" + closedAddr(t)},
		{description: "unsupported scheme", endpoint: "ftp://localhost"},
	}
	for _, test := range tests {
		c := remote.NewClient(test.endpoint, "", 100*time.Millisecond)
		_, err := c.Render(context.Background(), request)
		assert.ErrorIs(t, err, sonify.ErrRemoteBackend, test.description)
		assert.Equal(t, sonify.KindRemoteBackend, sonify.KindOf(err), test.description)
	}
}

func TestHTTPMethod(t *testing.T) {
	srv := httptest.NewServer(remote.NewService(localBackend(t), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + remote.Path)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+remote.Path, "application/json", strings.NewReader(`{"series":[1],"fps":30}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNATS(t *testing.T) {
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go ns.Start()
	defer ns.Shutdown()
	require.True(t, ns.ReadyForConnections(5*time.Second))

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	sub, err := remote.NewService(localBackend(t), nil).Subscribe(nc, "")
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	c := remote.NewClient(ns.ClientURL(), "", 5*time.Second)
	w, err := c.Render(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 8820, w.Len())

	// 15 seconds of audio doesn't fit default max payload
	long := request
	long.Series = make(sonify.Series, 15)
	for i := range long.Series {
		long.Series[i] = float64(i % 3)
	}
	long.FPS = 1
	_, err = c.Render(context.Background(), long)
	assert.ErrorIs(t, err, sonify.ErrRemoteBackend)

	// nobody listens on the subject
	c = remote.NewClient(ns.ClientURL(), "sonify.nobody", time.Second)
	_, err = c.Render(context.Background(), request)
	assert.ErrorIs(t, err, sonify.ErrRemoteBackend)
}

// closedAddr returns address nobody listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}
