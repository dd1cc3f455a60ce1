package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/markwise-app/markwise-api/internal/dto"
)

const eventBufferSize = 16

// EvaluationEvents publishes pipeline lifecycle events to NATS and fans them
// out to in-process subscribers (the websocket stream).
type EvaluationEvents interface {
	EventPublisher
	Subscribe() (<-chan dto.EvaluationEvent, func())
	Start(ctx context.Context)
}

type evaluationEvents struct {
	nats    *nats.Conn
	subject string
	logger  zerolog.Logger
	tracer  trace.Tracer

	mu          sync.RWMutex
	subscribers map[chan dto.EvaluationEvent]struct{}
}

// NewEvaluationEvents constructs the event hub. A nil NATS connection keeps
// events purely in-process, which is how tests and single-node deployments run.
func NewEvaluationEvents(natsConn *nats.Conn, subject string, logger zerolog.Logger) EvaluationEvents {
	if subject == "" {
		subject = "markwise.evaluations"
	}

	return &evaluationEvents{
		nats:        natsConn,
		subject:     subject,
		logger:      logger.With().Str("component", "evaluation_events").Logger(),
		tracer:      otel.Tracer("github.com/markwise-app/markwise-api/internal/service/events"),
		subscribers: make(map[chan dto.EvaluationEvent]struct{}),
	}
}

// Start subscribes to the NATS subject so events published by other nodes
// reach local websocket subscribers too.
func (e *evaluationEvents) Start(ctx context.Context) {
	if e.nats == nil {
		return
	}

	sub, err := e.nats.Subscribe(e.subject, func(msg *nats.Msg) {
		var event dto.EvaluationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			e.logger.Warn().Err(err).Msg("discarding malformed evaluation event")
			return
		}
		e.broadcast(event)
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to subscribe to evaluation events")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to unsubscribe from evaluation events")
		}
	}()
}

func (e *evaluationEvents) PublishEvaluation(ctx context.Context, event dto.EvaluationEvent) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	_, span := e.tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.String("evaluation.public_id", event.PublicID),
		attribute.String("evaluation.status", event.Status),
	))
	defer span.End()

	e.broadcast(event)

	if e.nats == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to marshal evaluation event")
		return
	}
	if err := e.nats.Publish(e.subject, payload); err != nil {
		e.logger.Warn().Err(err).Msg("failed to publish evaluation event to nats")
	}
}

// Subscribe registers a local listener. The returned cancel func must be
// called to release the channel.
func (e *evaluationEvents) Subscribe() (<-chan dto.EvaluationEvent, func()) {
	ch := make(chan dto.EvaluationEvent, eventBufferSize)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}

	return ch, cancel
}

// broadcast delivers without blocking; slow subscribers drop events rather
// than stalling the pipeline.
func (e *evaluationEvents) broadcast(event dto.EvaluationEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			e.logger.Debug().Str("public_id", event.PublicID).Msg("subscriber buffer full, event dropped")
		}
	}
}
