package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planovo/planovo-api/internal/events"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEmitter) Emit(_ context.Context, evt events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func TestGenerateReturnsCompletionAndRecordsUsage(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "test-model", req.Model)

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Sehr geehrte Damen und Herren,"}},
			},
			"usage": map[string]int{"total_tokens": 42},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	emitter := &captureEmitter{}
	client, err := NewClient(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL,
	}, emitter, zerolog.Nop())
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "tenant-1", "write a reminder")
	require.NoError(t, err)
	assert.Equal(t, "Sehr geehrte Damen und Herren,", text)
	assert.Equal(t, "Bearer test-key", gotAuth)

	require.Len(t, emitter.events, 1)
	usage, ok := emitter.events[0].(events.AIUsageRecorded)
	require.True(t, ok)
	assert.Equal(t, "tenant-1", usage.TenantID)
	assert.Equal(t, 42, usage.TotalTokens)
}

func TestGenerateSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer server.Close()

	emitter := &captureEmitter{}
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, emitter, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "tenant-1", "write a reminder")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Empty(t, emitter.events)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil, zerolog.Nop())
	require.Error(t, err)
}
