package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-web-bundle/internal/pipeline"
	"github.com/shouni/go-web-bundle/pkg/archive"
	"github.com/shouni/go-web-bundle/pkg/httpclient"
	"github.com/shouni/go-web-bundle/pkg/report"
	"github.com/shouni/go-web-bundle/pkg/types"
)

func newTestServers(t *testing.T) (pages *httptest.Server, api *httptest.Server) {
	t.Helper()
	pages = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			fmt.Fprint(w, "<html><head><title>Hello World</title></head></html>")
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(pages.Close)

	factory := func(n report.Notifier) *pipeline.Pipeline {
		return pipeline.New(httpclient.New(2*time.Second), pipeline.WithNotifier(n))
	}
	api = httptest.NewServer(New(factory, nil).Routes())
	t.Cleanup(api.Close)
	return pages, api
}

func TestHealthz(t *testing.T) {
	_, api := newTestServers(t)

	resp, err := http.Get(api.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestBundle_TextBody(t *testing.T) {
	pages, api := newTestServers(t)

	body := pages.URL + "/ok\r\n\r\n" + pages.URL + "/missing\n"
	resp, err := http.Post(api.URL+"/bundle", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="strony.zip"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "1", resp.Header.Get("X-Pages-Retrieved"))
	assert.NotEmpty(t, resp.Header.Get("X-Run-ID"))

	blob, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	entries, err := archive.Read(blob)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello_world.html", entries[0].Filename)
}

func TestBundle_JSONBody(t *testing.T) {
	pages, api := newTestServers(t)

	payload, err := json.Marshal(BundleRequest{URLs: []string{pages.URL + "/ok", pages.URL + "/ok"}})
	require.NoError(t, err)

	resp, err := http.Post(api.URL+"/bundle", "application/json; charset=utf-8", strings.NewReader(string(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	blob, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	entries, err := archive.Read(blob)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "hello_world.html", entries[0].Filename)
	assert.Equal(t, "hello_world_2.html", entries[1].Filename)
}

func TestBundle_NoPages(t *testing.T) {
	pages, api := newTestServers(t)

	resp, err := http.Post(api.URL+"/bundle", "text/plain", strings.NewReader(pages.URL+"/missing"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, pipeline.ErrNoPagesRetrieved.Error(), body.Error)
	assert.NotEmpty(t, body.RunID)
	require.Len(t, body.Events, 2)
	assert.Equal(t, types.EventFetchFailed, body.Events[0].Code)
	assert.Equal(t, types.EventNoPages, body.Events[1].Code)
}

func TestBundle_EmptyBody(t *testing.T) {
	_, api := newTestServers(t)

	resp, err := http.Post(api.URL+"/bundle", "text/plain", strings.NewReader("  \n"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, types.EventNoURL, body.Events[0].Code)
}

func TestBundle_BadRequest(t *testing.T) {
	_, api := newTestServers(t)

	t.Run("invalid json", func(t *testing.T) {
		resp, err := http.Post(api.URL+"/bundle", "application/json", strings.NewReader(`{"urls": [`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("body too large", func(t *testing.T) {
		big := strings.Repeat("a", MaxRequestBody+1)
		resp, err := http.Post(api.URL+"/bundle", "text/plain", strings.NewReader(big))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Get(api.URL + "/bundle")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
