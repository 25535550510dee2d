package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chainindex/internal/infrastructure/telemetry"
	"chainindex/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EnvelopeHandler receives decoded feed events. Handlers own their error
// policy: a bad event is logged and dropped, never redelivered.
type EnvelopeHandler interface {
	HandleNewBlock(ctx context.Context, env streaming.Envelope)
	HandleNewTransaction(ctx context.Context, env streaming.Envelope)
}

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	TopicPrefix string
	Networks    []string
}

// Consumer reads the live event feed, one reader per network topic, and feeds
// the ingestion handlers.
type Consumer struct {
	cfg     ConsumerConfig
	handler EnvelopeHandler
	readers []*kafka.Reader
}

func NewConsumer(cfg ConsumerConfig, handler EnvelopeHandler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if len(cfg.Networks) == 0 {
		return nil, errors.New("at least one network is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "chainindex-events"
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "chainindex-indexer"
	}
	return &Consumer{cfg: cfg, handler: handler}, nil
}

// Run consumes until ctx is canceled. It blocks.
func (c *Consumer) Run(ctx context.Context) {
	done := make(chan struct{}, len(c.cfg.Networks))
	for _, network := range c.cfg.Networks {
		topic := fmt.Sprintf("%s-%s", c.cfg.TopicPrefix, network)
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		c.readers = append(c.readers, reader)
		go func(network string, r *kafka.Reader) {
			defer func() { done <- struct{}{} }()
			c.consume(ctx, network, r)
		}(network, reader)
	}
	slog.Info("event feed consumer started", "topics", len(c.cfg.Networks), "group", c.cfg.GroupID)
	<-ctx.Done()
	for _, reader := range c.readers {
		_ = reader.Close()
	}
	for range c.cfg.Networks {
		<-done
	}
}

func (c *Consumer) consume(ctx context.Context, network string, reader *kafka.Reader) {
	tracer := otel.Tracer("chainindex/kafka")
	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) {
				return
			}
			slog.Error("kafka fetch error", "topic", reader.Config().Topic, "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		env, err := streaming.Decode(message.Value)
		if err != nil {
			// Malformed feed events are dropped, not redelivered.
			slog.Warn("event decode error", "topic", reader.Config().Topic, "err", err)
			_ = reader.CommitMessages(ctx, message)
			continue
		}
		if env.Network != network {
			slog.Warn("unexpected network on topic", "topic", reader.Config().Topic, "network", env.Network)
		}

		messageCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		if !trace.SpanContextFromContext(messageCtx).IsValid() && env.TraceID != "" {
			if ctxWithTrace, ok := telemetry.ContextWithTraceID(messageCtx, env.TraceID); ok {
				messageCtx = ctxWithTrace
			}
		}
		messageCtx, span := tracer.Start(messageCtx, "indexer.process_event", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("event.kind", string(env.Kind)),
			attribute.String("chain.network", env.Network),
		)

		switch env.Kind {
		case streaming.EnvelopeKindBlock:
			c.handler.HandleNewBlock(messageCtx, env)
		case streaming.EnvelopeKindTx:
			c.handler.HandleNewTransaction(messageCtx, env)
		}
		span.End()

		if err := reader.CommitMessages(ctx, message); err != nil {
			slog.Error("kafka commit error", "topic", reader.Config().Topic, "err", err)
		}
	}
}
