package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestEmbed_FloatEncoding(t *testing.T) {
	var got embeddingRequest
	url := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer mx-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"data":[{"embedding":[0.5,-0.25,0.125],"index":0}]}`)
	})

	c := NewClient(config.EmbeddingConfig{
		APIKey: "mx-key", BaseURL: url, Model: "mixedbread-ai/mxbai-embed-large-v1",
		Dimensions: 3, Encoding: "float", TruncationStrategy: "end",
	})
	v, err := c.Embed(context.Background(), "attention")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.5, -0.25, 0.125}, v.Dense)
	assert.Nil(t, v.Binary)
	assert.Equal(t, []string{"attention"}, got.Input)
	assert.True(t, got.Normalized)
	assert.Equal(t, "float", got.EncodingFormat)
	assert.Equal(t, 3, got.Dimensions)
	assert.Equal(t, "end", got.TruncationStrategy)
}

func TestEmbed_UBinaryPackedByServer(t *testing.T) {
	url := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[143,0,255,1],"index":0}]}`)
	})
	c := NewClient(config.EmbeddingConfig{BaseURL: url, Dimensions: 32, Encoding: "ubinary"})

	v, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []byte{143, 0, 255, 1}, v.Binary)
	assert.Equal(t, 32, v.Dimensions())
}

func TestEmbed_UBinaryFromFloatResponse(t *testing.T) {
	url := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,-0.2,0.3,-0.4,0,0.6,-0.7,0.8],"index":0}]}`)
	})
	c := NewClient(config.EmbeddingConfig{BaseURL: url, Dimensions: 8, Encoding: "ubinary"})

	v, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []byte{0b10101101}, v.Binary)
}

func TestEmbed_UBinaryRejectsOutOfRangeBytes(t *testing.T) {
	url := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[12,300],"index":0}]}`)
	})
	c := NewClient(config.EmbeddingConfig{BaseURL: url, Dimensions: 16, Encoding: "ubinary"})

	_, err := c.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestEmbed_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		upstream bool
	}{
		{"server error is upstream", http.StatusBadGateway, "", true},
		{"rate limited is upstream", http.StatusTooManyRequests, "", true},
		{"unauthorized is permanent", http.StatusUnauthorized, `{"detail":"bad key"}`, false},
		{"empty data", http.StatusOK, `{"data":[]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			c := NewClient(config.EmbeddingConfig{BaseURL: url, Dimensions: 8, Encoding: "float"})

			_, err := c.Embed(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tt.upstream, apperr.IsUpstream(err))
		})
	}
}
