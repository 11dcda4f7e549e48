package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
	})
	return string(body)
}

func newTestClient(baseURL string) (*ChatClient, *[]time.Duration) {
	client := NewChatClient(baseURL, "test-key", "gpt-4o-mini", 0.2, 3, 300*time.Millisecond, 5*time.Second)
	var sleeps []time.Duration
	client.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return client, &sleeps
}

func TestCompleteJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		assert.Equal(t, map[string]interface{}{"type": "json_object"}, req["response_format"])

		w.Write([]byte(chatReply(`{"items":[]}`)))
	}))
	defer srv.Close()

	client, sleeps := newTestClient(srv.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, content)
	assert.Empty(t, *sleeps)
}

func TestCompleteJSONRetriesTransientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte(chatReply(`{"ok":true}`)))
		}
	}))
	defer srv.Close()

	client, sleeps := newTestClient(srv.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
	assert.Equal(t, 3, calls)

	// Linear backoff: base, then 2x base
	require.Len(t, *sleeps, 2)
	assert.Equal(t, 300*time.Millisecond, (*sleeps)[0])
	assert.Equal(t, 600*time.Millisecond, (*sleeps)[1])
}

func TestCompleteJSONRetriesExhausted(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.Equal(t, 3, calls)
}

func TestCompleteJSONHardErrorFailsImmediately(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	client, sleeps := newTestClient(srv.URL)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
}

func TestCompleteJSONToolCallFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{
					"tool_calls": []map[string]interface{}{
						{"function": map[string]interface{}{"arguments": `{"items":[{"i":0}]}`}},
					},
				}},
			},
		})
		w.Write(body)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[{"i":0}]}`, content)
}

func TestCompleteJSONNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "{}", content)
}
