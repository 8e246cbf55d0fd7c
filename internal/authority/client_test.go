package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/salloumtech/fatoora/internal/config"
)

func newHTTPClient(t *testing.T, endpoint string) Client {
	t.Helper()
	return NewClient(config.Config{
		AuthorityEndpoint: endpoint,
		AuthorityTimeout:  2 * time.Second,
	}, zap.NewNop())
}

func TestSubmitAcceptedParsesAuthorityID(t *testing.T) {
	var gotPath string
	var gotBody reportRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "REPORTED",
			"requestID": "RPT-001",
			"warnings":  []string{"minor field"},
		})
	}))
	defer srv.Close()

	out, err := newHTTPClient(t, srv.URL).Submit(context.Background(), "ZG9j", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "/invoices/reporting/single", gotPath)
	assert.Equal(t, "ZG9j", gotBody.Invoice)
	assert.Equal(t, "abc123", gotBody.InvoiceHash)
	assert.Equal(t, Accepted, out.Classification)
	assert.Equal(t, "RPT-001", out.AuthorityID)
	assert.Equal(t, []string{"minor field"}, out.Warnings)
}

func TestSubmitAcceptedWithoutIDGeneratesOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out, err := newHTTPClient(t, srv.URL).Submit(context.Background(), "ZG9j", "abc123")
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Classification)
	assert.NotEmpty(t, out.AuthorityID)
}

func TestSubmitRejectedKeepsAuthorityTextVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`invalid VAT category code`))
	}))
	defer srv.Close()

	out, err := newHTTPClient(t, srv.URL).Submit(context.Background(), "ZG9j", "abc123")
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.Classification)
	assert.Equal(t, "HTTP 400: invalid VAT category code", out.Message)
}

func TestSubmitServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	out, err := newHTTPClient(t, srv.URL).Submit(context.Background(), "ZG9j", "abc123")
	require.NoError(t, err)
	assert.Equal(t, Transient, out.Classification)
}

func TestSubmitTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(config.Config{
		AuthorityEndpoint: srv.URL,
		AuthorityTimeout:  50 * time.Millisecond,
	}, zap.NewNop())

	out, err := c.Submit(context.Background(), "ZG9j", "abc123")
	require.NoError(t, err)
	assert.Equal(t, Transient, out.Classification)
}

func TestSubmitTransportErrorIsTransient(t *testing.T) {
	out, err := newHTTPClient(t, "http://127.0.0.1:1").Submit(context.Background(), "ZG9j", "abc123")
	require.NoError(t, err)
	assert.Equal(t, Transient, out.Classification)
}

func TestSimulationModeAcceptsEverything(t *testing.T) {
	c := NewClient(config.Config{}, zap.NewNop())

	out, err := c.Submit(context.Background(), "ZG9j", "abc123")
	require.NoError(t, err)
	assert.Equal(t, Accepted, out.Classification)
	assert.NotEmpty(t, out.AuthorityID)
	assert.Equal(t, "SIMULATED", out.Message)
}
