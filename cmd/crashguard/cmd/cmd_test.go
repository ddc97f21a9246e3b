package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/trace"
)

// execute runs the root command with args and returns its stdout.
// Package flag variables persist between runs, so they are reset first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, baseDir = "", ""
	initForce = false
	configOutput = "yaml"
	reportDir = ""
	emitName, emitProfile, emitStack, emitAddr = "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitCommand(t *testing.T) {
	base := t.TempDir()

	out, err := execute(t, "init", "--base-dir", base)
	require.NoError(t, err)

	path := config.Path(base)
	assert.Contains(t, out, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, config.DefaultConfigJSON, string(data))

	t.Run("refuses to overwrite", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`{"CallbackLogSize": 9}`), 0o600))

		_, err := execute(t, "init", "--base-dir", base)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--force")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "9")
	})

	t.Run("force overwrites", func(t *testing.T) {
		_, err := execute(t, "init", "--base-dir", base, "--force")
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, config.DefaultConfigJSON, string(data))
	})
}

func TestConfigShowCommand(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, config.AtomicWrite(config.Path(base),
		[]byte(`{"CallbackLogSize": 12, "ProfileExcludeFilters": ["Think"]}`)))

	out, err := execute(t, "config", "show", "--base-dir", base, "-o", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 12, cfg.CallbackLogSize)
	assert.Equal(t, []string{"Think"}, cfg.ProfileExcludeFilters)
	assert.Equal(t, config.DefaultAPIAddr, cfg.API.Addr)

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, "config", "show", "--base-dir", base)
		require.NoError(t, err)
		assert.Contains(t, out, "CallbackLogSize: 12")
	})

	t.Run("missing document falls back to defaults", func(t *testing.T) {
		out, err := execute(t, "config", "show", "--base-dir", t.TempDir(), "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"CallbackLogSize": 5`)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, "config", "show", "--base-dir", base, "-o", "toml")
		assert.Error(t, err)
	})
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "report", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No crash reports")

	image := filepath.Join(dir, "a.dmp")
	require.NoError(t, os.WriteFile(image, []byte("image"), 0o600))
	require.NoError(t, os.WriteFile(image+".txt",
		[]byte("-------- CONFIG BEGIN --------\nMap=de_dust2\n-------- CONFIG END --------\n"), 0o600))

	out, err = execute(t, "report", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, image+".txt")
	assert.Contains(t, out, "CONFIG BEGIN")
	assert.Contains(t, out, "Map=de_dust2")

	t.Run("missing directory", func(t *testing.T) {
		out, err := execute(t, "report", "--dir", filepath.Join(dir, "nope"))
		require.NoError(t, err)
		assert.Contains(t, out, "No crash reports")
	})
}

// fakeSubsystem serves the two endpoints emit talks to.
func fakeSubsystem(t *testing.T, reg config.Registration, status int) (*httptest.Server, *[][]byte) {
	t.Helper()
	var received [][]byte

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/registration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reg)
	})
	mux.HandleFunc("POST /api/v1/callbacks", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = append(received, body)
		w.WriteHeader(status)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestEmitCommand(t *testing.T) {
	reg := config.Registration{LightweightMode: false, Filters: "OnTick", CallbackLogSize: 5}

	t.Run("stored", func(t *testing.T) {
		srv, received := fakeSubsystem(t, reg, http.StatusAccepted)
		addr := srv.Listener.Addr().String()

		out, err := execute(t, "emit", "--addr", addr,
			"--name", "OnClientConnect", "--profile", "1.2ms", "--stack", "main.go:10")
		require.NoError(t, err)
		assert.Contains(t, out, "stored: OnClientConnect")

		require.Len(t, *received, 1)
		e, err := trace.Decode((*received)[0])
		require.NoError(t, err)
		assert.Equal(t, "OnClientConnect", e.Name)
		assert.Equal(t, "1.2ms", e.Profile)
		assert.Equal(t, "main.go:10", e.CallerStack)
	})

	t.Run("dropped by consumer", func(t *testing.T) {
		srv, _ := fakeSubsystem(t, reg, http.StatusNoContent)

		out, err := execute(t, "emit", "--addr", srv.Listener.Addr().String(), "--name", "OnThink")
		require.NoError(t, err)
		assert.Contains(t, out, "dropped: OnThink")
	})

	t.Run("filtered by producer", func(t *testing.T) {
		srv, received := fakeSubsystem(t, reg, http.StatusAccepted)

		out, err := execute(t, "emit", "--addr", srv.Listener.Addr().String(), "--name", "GameOnTick")
		require.NoError(t, err)
		assert.Contains(t, out, "filtered: GameOnTick")
		assert.Empty(t, *received)
	})

	t.Run("lightweight registration", func(t *testing.T) {
		lw := reg
		lw.LightweightMode = true
		srv, received := fakeSubsystem(t, lw, http.StatusAccepted)

		_, err := execute(t, "emit", "--addr", srv.Listener.Addr().String(),
			"--name", "OnMapStart", "--profile", "p", "--stack", "s")
		require.NoError(t, err)

		require.Len(t, *received, 1)
		e, err := trace.Decode((*received)[0])
		require.NoError(t, err)
		assert.Equal(t, trace.LightweightMarker, e.Profile)
		assert.Equal(t, trace.LightweightMarker, e.CallerStack)
	})

	t.Run("unexpected status", func(t *testing.T) {
		srv, _ := fakeSubsystem(t, reg, http.StatusInternalServerError)

		_, err := execute(t, "emit", "--addr", srv.Listener.Addr().String(), "--name", "OnX")
		assert.Error(t, err)
	})
}
