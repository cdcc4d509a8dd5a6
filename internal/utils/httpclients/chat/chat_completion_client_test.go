package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"

	"chatlima-server/internal/utils/platformerrors"
)

func collect(t *testing.T, ch <-chan ChunkResult) ([]*StreamChunk, error) {
	t.Helper()
	var chunks []*StreamChunk
	for r := range ch {
		if r.Err != nil {
			return chunks, r.Err
		}
		chunks = append(chunks, r.Chunk)
	}
	return chunks, nil
}

func TestStreamChunksParsesSSE(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hi\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"reasoning\":\"hmm\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2,\"total_tokens\":7}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewChatCompletionClient(resty.New(), "test", srv.URL+"/")
	ch, err := client.StreamChunks(context.Background(), "sk-test", map[string]any{"model": "m", "stream": true})
	require.NoError(t, err)

	chunks, err := collect(t, ch)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Hi", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "hmm", chunks[1].Choices[0].Delta.Reasoning)
	assert.Equal(t, "stop", chunks[1].Choices[0].FinishReason)
	require.NotNil(t, chunks[2].Usage)
	assert.Equal(t, 7, chunks[2].Usage.TotalTokens)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Contains(t, gotBody, `"stream":true`)
}

func TestStreamChunksHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	client := NewChatCompletionClient(resty.New(), "test", srv.URL)
	_, err := client.StreamChunks(context.Background(), "bad", map[string]any{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.Contains(t, err.Error(), "bad key")
}

func TestStreamChunksInStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"Provider overloaded\",\"code\":502}}\n\n")
	}))
	defer srv.Close()

	client := NewChatCompletionClient(resty.New(), "test", srv.URL)
	ch, err := client.StreamChunks(context.Background(), "", map[string]any{})
	require.NoError(t, err)

	chunks, err := collect(t, ch)
	require.Error(t, err)
	assert.Len(t, chunks, 1)
	assert.Contains(t, err.Error(), "Provider overloaded")
}

func TestListModelsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"id":"a/b"}]}`)
	}))
	defer srv.Close()

	client := NewChatModelClient(resty.New(), "test", srv.URL+"/api/v1")
	body, err := client.ListModelsRaw(context.Background(), "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"id":"a/b"}]}`, string(body))
}
