package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// generateJSON asks a vision model for a JSON-formatted answer about the given images.
func (c *Client) generateJSON(ctx context.Context, prompt string, images [][]byte) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	if len(images) > 0 {
		encoded := make([]string, 0, len(images))
		for _, img := range images {
			encoded = append(encoded, base64.StdEncoding.EncodeToString(img))
		}
		reqBody["images"] = encoded
	}

	text, err := resilience.Call(ctx, c.executor, "ollama.generate", resilience.ClassifyHTTP, func(callCtx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	})
	if err != nil {
		return "", resilience.WrapTemporary("ollama generate", err, resilience.ClassifyHTTP)
	}
	return text, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
