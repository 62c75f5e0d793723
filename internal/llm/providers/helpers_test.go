package providers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

// mapCredentials is a fixed credential snapshot for tests.
type mapCredentials map[string]string

func (m mapCredentials) Lookup(ref string) (string, bool) {
	v, ok := m[ref]
	return v, ok
}

// capturedRequest records what a test server received.
type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// newTestServer serves status and body for every request and records the
// last request it saw.
func newTestServer(t *testing.T, status int, body string, header http.Header) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Header = r.Header.Clone()
		captured.Body = map[string]any{}
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &captured.Body))
		}
		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func ptr[T any](v T) *T { return &v }

func testModel(provider, endpoint string) domain.ModelConfig {
	return domain.ModelConfig{
		ID:        provider + "-model",
		Provider:  provider,
		ModelName: "test-" + provider,
		Endpoint:  endpoint,
	}
}
