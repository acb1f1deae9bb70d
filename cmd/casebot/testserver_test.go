package main

import (
	"context"
	"fmt"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	timeout := 1 * time.Second
	client := http.Client{}
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			endpoint,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = client.Do(req); err == nil {
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// testEnv returns the environment of a server storing its data in dir without external services.
func testEnv(dir string) map[string]string {
	return map[string]string{
		"ADMIN_ADDR":     "localhost:0",
		"USE_DUMMY_APIS": "true",
		"DATA_DIR":       filepath.Join(dir, "data"),
		"STATE_FILE":     filepath.Join(dir, "data", "app_state.json"),
		"SQLITE_URL":     filepath.Join(dir, "casebot.sqlite"),
	}
}

type testServer struct {
	url    string
	client http.Client
}

// startTestServer starts the test server, waits for it to be ready, and return the server URL for testing.
func startTestServer(t *testing.T, w io.Writer, env map[string]string) testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "Addr" {
				addrCh <- a.Value.String()
			}
			return a
		},
	})))

	lookupEnv := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	// Start the server and wait for it to be ready.
	go func() {
		defer close(stopped)
		if err := run(ctx, logger, lookupEnv); err != nil {
			cancel()
			assert.NoError(t, err)
		}
	}()
	select {
	case <-ctx.Done():
		t.Fatal("server failed to start")
		return testServer{} //nolint:exhaustruct // This is unreachable.
	case addr := <-addrCh:
		serverURL := fmt.Sprintf("http://%s", addr)
		require.NoError(t, waitForReady(ctx, fmt.Sprintf("%s/healthy", serverURL)))
		return testServer{
			url:    serverURL,
			client: http.Client{},
		}
	}
}

// get requests path and returns the status and body.
func (s testServer) get(t *testing.T, path string) (int, http.Header, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, s.url+path, nil)
	require.NoError(t, err)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, string(body)
}
