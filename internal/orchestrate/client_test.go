package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_VerifyJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/claim-verify", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(2), body["claim_id"])
		assert.Equal(t, []any{}, body["snippets"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"claim_checks":{"logical_score":1}}`))
	}))
	defer server.Close()

	got, err := NewHTTPClient(server.URL+"/", time.Second, nil).Verify(context.Background(), VerifyRequest{ClaimID: 2, Claim: "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"claim_checks": map[string]any{"logical_score": float64(1)}}, got)
}

func TestHTTPClient_TextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("looks fine"))
	}))
	defer server.Close()

	got, err := NewHTTPClient(server.URL, time.Second, nil).Assess(context.Background(), AssessRequest{ClaimID: 1, Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "looks fine", got)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"json", "application/json", `{"error": "Missing claim_id or claim"}`, `{"error":"Missing claim_id or claim"}`},
		{"text", "text/plain", "upstream exploded", "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPClient(server.URL, time.Second, nil).SourceCredibility(context.Background(), SourceCredRequest{ClaimID: 1})
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPClient(server.URL, 50*time.Millisecond, nil).Verify(context.Background(), VerifyRequest{ClaimID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestHTTPClient_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/claims", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"claims":[{"short_claim":"x"}]}`))
	}))
	defer server.Close()

	got, err := NewHTTPClient(server.URL, time.Second, nil).Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Contains(t, got, "claims")
}

func TestHTTPClient_ExtractFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Server not configured"}`))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, time.Second, nil).Extract(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, `Extractor failed (500): {"error":"Server not configured"}`, err.Error())
}
