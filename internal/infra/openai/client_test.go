package openai

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

func TestCreateChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "grok-3-mini", req.Model)
		assert.Len(t, req.Messages, 1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello \n"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL+"/v1/", time.Second)
	resp, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Model:    "grok-3-mini",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content())
}

func TestCreateChatCompletionStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, time.Second)
	_, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCreateChatCompletionWithoutKey(t *testing.T) {
	c := NewClient("", "", 0)
	_, err := c.CreateChatCompletion(context.Background(), ChatCompletionRequest{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
