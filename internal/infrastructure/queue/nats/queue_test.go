package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

func TestClassifyPublishError(t *testing.T) {
	assert.True(t, classifyPublishError(nats.ErrTimeout).Retryable)
	assert.True(t, classifyPublishError(fmt.Errorf("nats publish: %w", nats.ErrNoServers)).Retryable)
	assert.False(t, classifyPublishError(nats.ErrBadSubject).Retryable)
	assert.True(t, classifyPublishError(nats.ErrBadSubject).RecordFailure)
	assert.False(t, classifyPublishError(context.Canceled).RecordFailure)
}

func TestPublishErrorsWrapTemporaryOnlyWhenReconnectable(t *testing.T) {
	err := resilience.WrapTemporary("nats publish", nats.ErrConnectionClosed, classifyPublishError)
	assert.True(t, domain.IsKind(err, domain.ErrTemporary))

	permanent := errors.New("bad payload")
	assert.Equal(t, permanent, resilience.WrapTemporary("nats publish", permanent, classifyPublishError))
}

func TestObserveLagReadsPublishHeader(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 5, 0, time.UTC)
	var observed time.Duration
	q := newQueue(nil, "scans.requested", Options{LagObserver: func(d time.Duration) { observed = d }}, nil)
	q.now = func() time.Time { return now }

	msg := nats.NewMsg("scans.requested")
	msg.Header.Set(requestedAtHeader, now.Add(-3*time.Second).Format(time.RFC3339Nano))
	q.observeLag(msg)
	assert.Equal(t, 3*time.Second, observed)

	observed = 0
	q.observeLag(&nats.Msg{Subject: "scans.requested"})
	assert.Zero(t, observed)
	assert.Equal(t, "scan-workers", q.group)
}
