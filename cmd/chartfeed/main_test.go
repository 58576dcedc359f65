package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nupi-ai/chartfeed/internal/config"
	"github.com/nupi-ai/chartfeed/internal/protocol"
	cfversion "github.com/nupi-ai/chartfeed/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears CHARTFEED_* so the developer's
// own settings never leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{config.EnvEndpoint, config.EnvInterval, config.EnvMode, config.EnvChunkSize} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestModesCommandTable(t *testing.T) {
	out, err := execute(t, "modes")
	require.NoError(t, err)

	assert.Contains(t, out, "MODE")
	assert.Contains(t, out, "SMALL_PERIODIC_CHUNKS (default)")
	assert.Contains(t, out, "500, 1000, 2500, 5000")
	assert.Contains(t, out, "LARGE_INITIAL_CHUNK")
	assert.Contains(t, out, "1000000")
	assert.Contains(t, out, "10000, 20000, 30000, 40000, 50000")
}

func TestModesCommandJSON(t *testing.T) {
	out, err := execute(t, "modes", "--json")
	require.NoError(t, err)

	var payload struct {
		Modes []modeView `json:"modes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload.Modes, 3)

	byName := map[string]modeView{}
	for _, m := range payload.Modes {
		byName[m.Name] = m
	}
	large := byName["LARGE_INITIAL_CHUNK"]
	assert.Equal(t, 1000000, large.InitialChunkSize)
	assert.Equal(t, []int{1, 5, 10, 15}, large.ChunkSizes)
	assert.Equal(t, "LARGE INITIAL CHUNK", large.DisplayName)
	assert.True(t, byName["SMALL_PERIODIC_CHUNKS"].Default)
	assert.False(t, large.Default)
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(cfversion.ForTesting("1.4.0"))

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "chartfeed v1.4.0"), "got %q", out)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "1.4.0", payload["version"])
}

func TestResolveStreamConfigFlagsWin(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: http://file.example\nmode: MEDIUM_PERIODIC_CHUNKS\ninterval: 1s\n"), 0o600))
	t.Setenv(config.EnvChunkSize, "30000")

	cmd := newStreamCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--endpoint", "wss://flag.example", "--interval", "250ms"}))

	cfg, err := resolveStreamConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "wss://flag.example", cfg.Endpoint)
	assert.Equal(t, "MEDIUM_PERIODIC_CHUNKS", cfg.Mode)
	assert.Equal(t, 30000, cfg.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
}

func TestResolveStreamConfigRejectsInvalidChunkSize(t *testing.T) {
	isolate(t)

	cmd := newStreamCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--mode", "MEDIUM_PERIODIC_CHUNKS", "--chunk-size", "99999"}))

	_, err := resolveStreamConfig(cmd)
	assert.Error(t, err)
}

func TestStreamCommandRunsForDuration(t *testing.T) {
	isolate(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var n float64
		for {
			var req protocol.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			n++
			resp := protocol.Response{Data: []protocol.Point{{X: n, Y: n * 2}}, Hash: req.Hash}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	out, err := execute(t, "stream", "--json",
		"--endpoint", srv.URL,
		"--mode", "LARGE_INITIAL_CHUNK",
		"--chunk-size", "5",
		"--interval", "50ms",
		"--duration", "500ms",
	)
	require.NoError(t, err)

	var summary streamSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "LARGE_INITIAL_CHUNK", summary.Mode)
	assert.Equal(t, 5, summary.ChunkSize)
	assert.GreaterOrEqual(t, summary.Points, 1)
	// CONNECTING, OPEN and at least one series update.
	assert.GreaterOrEqual(t, summary.Events, uint64(3))
	assert.True(t, strings.HasPrefix(summary.Endpoint, "ws://"), summary.Endpoint)
}

func TestStreamCommandInvalidMode(t *testing.T) {
	isolate(t)

	_, err := execute(t, "stream", "--mode", "TINY", "--duration", "10ms")
	assert.Error(t, err)
}
