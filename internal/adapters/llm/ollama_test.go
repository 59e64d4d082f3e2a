package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "42", Done: true})
	}))
	defer ts.Close()

	client := NewOllamaClient(ts.URL, "test-model")
	text, err := client.Complete(context.Background(), "question", 64)
	require.NoError(t, err)
	assert.Equal(t, "42", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewOllamaClient(ts.URL, "test-model")
	_, err := client.Complete(context.Background(), "question", 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOllamaCompleteGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewOllamaClient(ts.URL, "test-model")
	_, err := client.Complete(context.Background(), "question", 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}
