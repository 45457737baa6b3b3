package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

// Client calls an image embedding service (CLIP-style) that answers
// POST /embed {"model","image"} with {"embedding":[...]}.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, dimension int, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	request := map[string]any{
		"model": c.model,
		"image": base64.StdEncoding.EncodeToString(image),
	}

	vector, err := resilience.Call(ctx, c.executor, "embedding.embed", resilience.ClassifyHTTP, func(callCtx context.Context) ([]float32, error) {
		var response struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := c.postJSON(callCtx, "/embed", request, &response); err != nil {
			return nil, err
		}
		return response.Embedding, nil
	})
	if err != nil {
		return nil, resilience.WrapTemporary("embed image", err, resilience.ClassifyHTTP)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty embedding result", domain.ErrInvalidVector)
	}
	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, expected %d", domain.ErrInvalidVector, len(vector), c.dimension)
	}
	return vector, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.StatusError("embedding", "embed", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode embed response: %w", err)
	}
	return nil
}
