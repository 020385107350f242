package jobclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scraper-console/internal/model"
)

type recordedRequest struct {
	Method    string
	Path      string
	RequestID string
	Body      map[string]any
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeBackend(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{handler: handler}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, RequestID: r.Header.Get(RequestIDHeader)}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		fb.mu.Lock()
		fb.requests = append(fb.requests, rec)
		fb.mu.Unlock()
		fb.handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := New(Options{BaseURL: server.URL + "/"})
	require.NoError(t, err)
	return fb, client
}

func (fb *fakeBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(t, fb.requests)
	return fb.requests[len(fb.requests)-1]
}

func validParams() model.JobParameters {
	return model.JobParameters{
		Category:       "minería",
		Region:         "Lima",
		Country:        "Perú",
		TargetCount:    100,
		Headless:       true,
		ExpandedSearch: true,
	}
}

func TestStart_SendsParametersAndReturnsMessage(t *testing.T) {
	fb, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Scraping iniciado"}`))
	})

	ack, err := client.Start(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, "Scraping iniciado", ack.Message)

	req := fb.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/scraper/start", req.Path)
	assert.NotEmpty(t, req.RequestID)
	assert.Equal(t, ack.RequestID, req.RequestID)
	assert.Equal(t, "minería", req.Body["rubro"])
	assert.Equal(t, "Lima", req.Body["departamento"])
	assert.Equal(t, "Perú", req.Body["pais"])
	assert.Equal(t, float64(100), req.Body["cantidad"])
	assert.Equal(t, true, req.Body["headless"])
	assert.Equal(t, true, req.Body["expanded_search"])
}

func TestStart_InvalidParametersNeverReachBackend(t *testing.T) {
	fb, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	params := validParams()
	params.TargetCount = 0
	_, err := client.Start(context.Background(), params)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, CommandStart, rejected.Command)
	assert.Contains(t, rejected.Detail, "target count must be greater than 0")
	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Empty(t, fb.requests)
}

func TestCommands_RejectionCarriesDetail(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"string detail", http.StatusConflict, `{"detail":"Ya hay un scraping en curso"}`, "Ya hay un scraping en curso"},
		{"structured detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","cantidad"]}]}`, `[{"loc":["body","cantidad"]}]`},
		{"plain body", http.StatusInternalServerError, "boom\n", "boom"},
		{"empty body", http.StatusBadGateway, "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Pause(context.Background())

			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tc.status, rejected.Status)
			assert.Equal(t, tc.detail, rejected.Detail)
			assert.False(t, errors.Is(err, ErrTransport))
		})
	}
}

func TestCommands_HitLifecycleEndpoints(t *testing.T) {
	fb, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	calls := []struct {
		path string
		do   func() (Ack, error)
	}{
		{"/scraper/pause", func() (Ack, error) { return client.Pause(ctx) }},
		{"/scraper/resume", func() (Ack, error) { return client.Resume(ctx) }},
		{"/scraper/stop", func() (Ack, error) { return client.Stop(ctx) }},
	}
	for _, call := range calls {
		ack, err := call.do()
		require.NoError(t, err, call.path)
		assert.Empty(t, ack.Message)
		assert.Equal(t, call.path, fb.last(t).Path)
	}
}

func TestStop_IdempotentWhenNothingRuns(t *testing.T) {
	_, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"No hay scraping en curso"}`))
	})
	for i := 0; i < 2; i++ {
		ack, err := client.Stop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "No hay scraping en curso", ack.Message)
	}
}

func TestCommands_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	client, err := New(Options{BaseURL: base})
	require.NoError(t, err)

	_, err = client.Resume(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestCommands_MalformedSuccessBodyIsTransportError(t *testing.T) {
	_, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>proxy error</html>`))
	})
	_, err := client.Start(context.Background(), validParams())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestExport_ReturnsBytes(t *testing.T) {
	payload := []byte("PK\x03\x04spreadsheet")
	fb, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write(payload)
	})

	res, err := client.Export(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, payload, res.Data)
	assert.Contains(t, res.ContentType, "spreadsheetml")

	req := fb.last(t)
	assert.Equal(t, "/scraper/export", req.Path)
	assert.Equal(t, "minería", req.Body["rubro"])
	assert.Equal(t, float64(100), req.Body["cantidad"])
	_, hasHeadless := req.Body["headless"]
	assert.False(t, hasHeadless, "export only replays the search parameters")
}

func TestExport_Rejected(t *testing.T) {
	_, client := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"No hay resultados para exportar"}`))
	})
	_, err := client.Export(context.Background(), validParams())

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, CommandExport, rejected.Command)
	assert.Equal(t, "export rejected: No hay resultados para exportar", err.Error())
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "ftp://host", "http://"} {
		_, err := New(Options{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}
