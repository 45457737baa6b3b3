package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObserveSendsImageAndSanitizesResponse(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		answer := `{"object_probabilities":{"watch":0.92,"Toaster":0.5,"other":1.4},` +
			`"signals":["dial_and_crown"," "],"brand":"Rolex","brand_confidence":0.8,` +
			`"line":"","line_confidence":0.7,"text":"SUBMARINER"}`
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "Sure! " + answer})
	}))
	defer server.Close()

	classifier := NewStageClassifier(New(server.URL, "llava", time.Second, nil))
	obs, err := classifier.Observe(context.Background(), []byte("jpeg"), "steel diver")
	require.NoError(t, err)

	assert.Equal(t, "llava", payload["model"])
	assert.Equal(t, "json", payload["format"])
	assert.Equal(t, []any{base64.StdEncoding.EncodeToString([]byte("jpeg"))}, payload["images"])
	assert.Contains(t, payload["prompt"], "steel diver")

	assert.Equal(t, map[domain.ObjectType]float64{domain.ObjectWatch: 0.92, domain.ObjectOther: 1}, obs.ObjectProbabilities)
	assert.Equal(t, []string{"dial_and_crown"}, obs.Signals)
	assert.Equal(t, "Rolex", obs.Brand)
	assert.Zero(t, obs.LineConfidence)
	assert.Equal(t, "steel diver SUBMARINER", obs.Text)
}

func TestObserveRejectsEmptyInput(t *testing.T) {
	classifier := NewStageClassifier(New("http://unused", "llava", time.Second, nil))
	_, err := classifier.Observe(context.Background(), nil, "  ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestObserveRetriesUnavailableModel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"{\"object_probabilities\":{\"sneaker\":0.7}}"}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}, zap.NewNop())
	classifier := NewStageClassifier(New(server.URL, "llava", time.Second, exec))

	obs, err := classifier.Observe(context.Background(), nil, "air max 90")
	require.NoError(t, err)
	assert.Equal(t, 0.7, obs.ObjectProbabilities[domain.ObjectSneaker])
	assert.Equal(t, int32(2), calls.Load())
}

func TestObserveMarksPersistentOutageTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	classifier := NewStageClassifier(New(server.URL, "llava", time.Second, nil))
	_, err := classifier.Observe(context.Background(), []byte("x"), "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrTemporary))
	assert.Contains(t, err.Error(), "model unavailable")
}
