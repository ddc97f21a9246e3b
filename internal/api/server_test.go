package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/agent"
	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/testutil"
	"github.com/hugo-lorenzo-mato/crashguard/internal/trace"
)

func newTestServer(t *testing.T) (*httptest.Server, *agent.Subsystem) {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, config.AtomicWrite(config.Path(base), []byte(`{
  "CallbackLogSize": 2,
  "ProfileExcludeFilters": ["Tick"]
}`)))

	sub, err := agent.Load(agent.Options{
		BaseDir:         base,
		Table:           testutil.NewFakeSignalTable(0x10),
		LogOutput:       io.Discard,
		CommandLine:     "host",
		ActivationDelay: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unload() })

	srv := httptest.NewServer(NewServer(sub).Handler())
	t.Cleanup(srv.Close)
	return srv, sub
}

func post(t *testing.T, url, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func record(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := trace.Encode(trace.Entry{Name: name, Profile: "p", CallerStack: "at X"})
	require.NoError(t, err)
	return raw
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRegistration(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/registration")
	require.NoError(t, err)
	defer resp.Body.Close()

	var reg config.Registration
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	assert.Equal(t, config.Registration{LightweightMode: true, Filters: "Tick", CallbackLogSize: 2}, reg)

	resp = post(t, srv.URL+"/api/v1/registration", "application/json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngestAndList(t *testing.T) {
	srv, _ := newTestServer(t)
	url := srv.URL + "/api/v1/callbacks"

	assert.Equal(t, http.StatusAccepted, post(t, url, "application/octet-stream", record(t, "A")).StatusCode)
	assert.Equal(t, http.StatusAccepted, post(t, url, "application/octet-stream", record(t, "B")).StatusCode)
	assert.Equal(t, http.StatusAccepted, post(t, url, "application/octet-stream", record(t, "C")).StatusCode)
	assert.Equal(t, http.StatusNoContent, post(t, url, "application/octet-stream", record(t, "OnTick")).StatusCode)
	assert.Equal(t, http.StatusNoContent, post(t, url, "application/octet-stream", []byte{1, 0, 1, 0}).StatusCode)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var list CallbacksResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "C", list.Entries[0].Name)
	assert.Equal(t, "B", list.Entries[1].Name)
	assert.Equal(t, "at X", list.Entries[0].CallerStack)
}

func TestIngest_TooLarge(t *testing.T) {
	srv, _ := newTestServer(t)

	body := make([]byte, trace.MaxRecordSize+1)
	resp := post(t, srv.URL+"/api/v1/callbacks", "application/octet-stream", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestResize(t *testing.T) {
	srv, sub := newTestServer(t)
	url := srv.URL + "/api/v1/callbacks/resize"

	resp := post(t, url, "application/json", []byte(`{"capacity":8}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 8, sub.Ring().Capacity())

	regResp, err := http.Get(srv.URL + "/api/v1/registration")
	require.NoError(t, err)
	defer regResp.Body.Close()
	var reg config.Registration
	require.NoError(t, json.NewDecoder(regResp.Body).Decode(&reg))
	assert.Equal(t, 8, reg.CallbackLogSize, "registration follows the resized ring")

	resp = post(t, url, "application/json", []byte(`{"capacity":0}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 8, sub.Ring().Capacity())

	resp = post(t, url, "application/json", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWatchdog(t *testing.T) {
	srv, sub := newTestServer(t)
	sub.Tick("de_dust2")

	resp, err := http.Get(srv.URL + "/api/v1/watchdog")
	require.NoError(t, err)
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(data), `"state":"intact"`), string(data))
	assert.True(t, strings.Contains(string(data), `"repairs":0`), string(data))
}
