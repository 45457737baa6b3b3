package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

var errCollectionMissing = errors.New("qdrant collection missing")

// Client stores reference image vectors, one point per image, with the
// catalog item and category in the payload.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (c *Client) IndexImage(ctx context.Context, image domain.LibraryImage, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidVector)
	}
	if strings.TrimSpace(image.ItemID) == "" {
		return fmt.Errorf("%w: item id is required", domain.ErrInvalidInput)
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	pointID := image.ID
	if _, err := uuid.Parse(pointID); err != nil {
		pointID = uuid.NewString()
	}
	createdAt := image.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	reqBody := map[string]any{
		"points": []map[string]any{
			{
				"id":     pointID,
				"vector": vector,
				"payload": map[string]any{
					"image_id":     image.ID,
					"item_id":      image.ItemID,
					"title":        image.Title,
					"category":     string(image.Category),
					"storage_path": image.StoragePath,
					"primary":      image.Primary,
					"created_at":   createdAt.Format(time.RFC3339),
				},
			},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.execute(ctx, "qdrant.upsert", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, url, reqBody, nil, "upsert")
	})
}

func (c *Client) SearchImages(ctx context.Context, category domain.Category, vector []float32, limit int) ([]domain.ImageHit, error) {
	return c.search(ctx, buildFilter(category, "", false), vector, limit)
}

func (c *Client) SearchItemImages(ctx context.Context, category domain.Category, itemID string, vector []float32, limit int) ([]domain.ImageHit, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("%w: item id is required", domain.ErrInvalidInput)
	}
	return c.search(ctx, buildFilter(category, itemID, false), vector, limit)
}

// Stats counts images and, through the primary flag, distinct items.
// A collection that does not exist yet is an empty library.
func (c *Client) Stats(ctx context.Context, category domain.Category) (domain.LibraryStats, error) {
	stats := domain.LibraryStats{Category: category}

	images, err := c.count(ctx, buildFilter(category, "", false))
	if errors.Is(err, errCollectionMissing) {
		return stats, nil
	}
	if err != nil {
		return domain.LibraryStats{}, err
	}
	items, err := c.count(ctx, buildFilter(category, "", true))
	if err != nil && !errors.Is(err, errCollectionMissing) {
		return domain.LibraryStats{}, err
	}

	stats.ImageCount = images
	stats.ItemCount = items
	return stats, nil
}

func (c *Client) search(ctx context.Context, filter map[string]any, vector []float32, limit int) ([]domain.ImageHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrInvalidVector)
	}
	if limit <= 0 {
		limit = 10
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		reqBody["filter"] = filter
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant.search", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, url, reqBody, &searchResp, "search")
	})
	if errors.Is(err, errCollectionMissing) {
		return []domain.ImageHit{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.ImageHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ImageHit{
			ImageID:    getStringPayload(r.Payload, "image_id"),
			ItemID:     getStringPayload(r.Payload, "item_id"),
			Title:      getStringPayload(r.Payload, "title"),
			Similarity: r.Score,
		})
	}
	return out, nil
}

func (c *Client) count(ctx context.Context, filter map[string]any) (int, error) {
	reqBody := map[string]any{"exact": true}
	if filter != nil {
		reqBody["filter"] = filter
	}
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant.count", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, url, reqBody, &countResp, "count")
	})
	if err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

func buildFilter(category domain.Category, itemID string, primaryOnly bool) map[string]any {
	must := make([]map[string]any, 0, 3)
	if category != "" {
		must = append(must, matchValue("category", string(category)))
	}
	if itemID != "" {
		must = append(must, matchValue("item_id", itemID))
	}
	if primaryOnly {
		must = append(must, matchValue("primary", true))
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor == nil {
		err = fn(ctx)
	} else {
		err = c.executor.Execute(ctx, operation, fn, classifyQdrantError)
	}
	if err == nil || errors.Is(err, errCollectionMissing) {
		return err
	}
	return resilience.WrapTemporary(operation, err, classifyQdrantError)
}

// classifyQdrantError keeps a missing collection out of the breaker counts.
func classifyQdrantError(err error) resilience.ErrorClassification {
	if errors.Is(err, errCollectionMissing) {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyHTTP(err)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errCollectionMissing
	}
	if resp.StatusCode >= 300 {
		return resilience.StatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")

	// 409 if already exists (depends on version/config).
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return resilience.WrapTemporary("qdrant ensure collection", err, resilience.ClassifyHTTP)
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
