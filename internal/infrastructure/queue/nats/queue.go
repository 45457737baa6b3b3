package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
)

// requestedAtHeader carries the publish time so consumers can report queue lag.
const requestedAtHeader = "Flipscout-Requested-At"

type Queue struct {
	conn        *nats.Conn
	subject     string
	group       string
	executor    *resilience.Executor
	logger      *zap.Logger
	lagObserver func(time.Duration)
	now         func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
	Logger               *zap.Logger
	LagObserver          func(time.Duration)
}

func New(url, subject string, options Options) (*Queue, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("flipscout"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newQueue(conn, subject, options, logger), nil
}

func newQueue(conn *nats.Conn, subject string, options Options, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	group := options.QueueGroup
	if group == "" {
		group = "scan-workers"
	}
	return &Queue{
		conn:        conn,
		subject:     subject,
		group:       group,
		executor:    options.ResilienceExecutor,
		logger:      logger,
		lagObserver: options.LagObserver,
		now:         time.Now,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishScanRequested(ctx context.Context, scanID string) error {
	msg := nats.NewMsg(q.subject)
	msg.Data = []byte(scanID)
	msg.Header.Set(requestedAtHeader, q.now().UTC().Format(time.RFC3339Nano))

	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyPublishError)
}

// SubscribeScanRequested blocks until ctx is done, then drains the subscription.
func (q *Queue) SubscribeScanRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		q.observeLag(msg)

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		scanID := string(msg.Data)
		if err := handler(handlerCtx, scanID); err != nil {
			q.logger.Error("worker handler error", zap.String("scan_id", scanID), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) observeLag(msg *nats.Msg) {
	if q.lagObserver == nil || msg.Header == nil {
		return
	}
	requestedAt, err := time.Parse(time.RFC3339Nano, msg.Header.Get(requestedAtHeader))
	if err != nil {
		return
	}
	q.lagObserver(q.now().Sub(requestedAt))
}

// Connection-level failures clear up once the client reconnects; anything
// else (bad subject, oversized payload) will fail the same way again.
var reconnectableErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
}

func classifyPublishError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, target := range reconnectableErrors {
		if errors.Is(err, target) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
