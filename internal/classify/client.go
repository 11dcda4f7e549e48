package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/animequotestudio/studio/internal/metrics"
)

// ChatClient talks to an OpenAI-compatible chat completions endpoint and
// forces JSON-object responses.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	attempts    int
	backoffBase time.Duration
	httpc       *http.Client

	// sleep is swapped out in tests so retry timing can be observed
	// without waiting.
	sleep func(time.Duration)
}

// NewChatClient builds a client from configuration. attempts must be at
// least 1; anything lower is treated as 1.
func NewChatClient(baseURL, apiKey, model string, temperature float64, attempts int, backoffBase, timeout time.Duration) *ChatClient {
	if attempts < 1 {
		attempts = 1
	}
	return &ChatClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		attempts:    attempts,
		backoffBase: backoffBase,
		httpc:       &http.Client{Timeout: timeout},
		sleep:       time.Sleep,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Temperature    float64                `json:"temperature"`
	ResponseFormat map[string]string      `json:"response_format"`
	Messages       []chatMessage          `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteJSON sends a system+user prompt pair and returns the raw JSON
// content string of the first choice. Transient upstream failures (429
// and 5xx) are retried with a linear backoff; any other non-2xx status
// fails immediately.
func (c *ChatClient) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Temperature:    c.temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var lastStatus int
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			metrics.ClassifyRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
			c.sleep(c.backoffBase * time.Duration(attempt))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to build chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to call chat completions: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.ClassifyModelRequestsTotal.WithLabelValues("ok").Inc()
			content, err := decodeChatContent(resp.Body)
			resp.Body.Close()
			return content, err
		}

		lastStatus = resp.StatusCode
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.ClassifyModelRequestsTotal.WithLabelValues("retry").Inc()
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			continue
		}

		metrics.ClassifyModelRequestsTotal.WithLabelValues("error").Inc()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, string(detail))
	}

	return "", fmt.Errorf("chat completions retries exhausted (last status %d)", lastStatus)
}

func decodeChatContent(r io.Reader) (string, error) {
	var out chatResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "{}", nil
	}
	msg := out.Choices[0].Message
	if msg.Content != "" {
		return msg.Content, nil
	}
	if len(msg.ToolCalls) > 0 {
		return msg.ToolCalls[0].Function.Arguments, nil
	}
	return "{}", nil
}
