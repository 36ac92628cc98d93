package chatgpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateEmbeddingOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req EmbeddingRequest
		if r.URL.Path != "/embeddings" || r.Header.Get("Authorization") != "Bearer key" || json.NewDecoder(r.Body).Decode(&req) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer srv.Close()

	client, err := NewClient("key", srv.URL)
	require.NoError(t, err)
	resp, err := client.CreateEmbedding(context.Background(), EmbeddingRequest{Model: "m", Input: []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, []float32{1, 0}, resp.Data[0].Embedding)
	require.Equal(t, []float32{0, 1}, resp.Data[1].Embedding)
	require.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestCreateChatCompletionStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	client, err := NewClient("key", srv.URL)
	require.NoError(t, err)
	_, err = client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.True(t, statusErr.Temporary())
	require.Contains(t, err.Error(), "slow down")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(" ", "")
	require.Error(t, err)
}
