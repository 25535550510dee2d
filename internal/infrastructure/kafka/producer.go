package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainindex/internal/infrastructure/chainrpc"
	"chainindex/internal/infrastructure/telemetry"
	"chainindex/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Producer publishes live block and transaction envelopes onto per-network
// topics. The height poller feeds it; the indexer consumes the other end.
type Producer struct {
	writer *kafka.Writer
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "chainindex-events"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishBlock(ctx context.Context, network string, block *chainrpc.RawBlock) error {
	if block == nil {
		return nil
	}
	tracer := otel.Tracer("chainindex/kafka")
	traceCtx, traceIDHex := p.traceContext(ctx)
	traceCtx, span := tracer.Start(traceCtx, "feed.publish_block", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("chain.network", network),
		attribute.String("block.height", block.Block.Header.Height),
		attribute.String("block.hash", block.BlockID.Hash),
	)

	payload, err := streaming.Encode(streaming.Envelope{
		Kind:    streaming.EnvelopeKindBlock,
		Network: network,
		TraceID: traceIDHex,
		Block:   block,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(traceCtx, &headers)
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topicForNetwork(network),
		Key:     []byte("block:" + block.Block.Header.Height),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Producer) PublishTxs(ctx context.Context, network string, txs []chainrpc.RawTxResult) error {
	if len(txs) == 0 {
		return nil
	}
	tracer := otel.Tracer("chainindex/kafka")
	messages := make([]kafka.Message, 0, len(txs))
	spans := make([]trace.Span, 0, len(txs))
	for i := range txs {
		tx := &txs[i]
		traceCtx, traceIDHex := p.traceContext(ctx)
		traceCtx, span := tracer.Start(traceCtx, "feed.publish_tx", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("chain.network", network),
			attribute.String("tx.hash", tx.Hash),
			attribute.String("block.height", tx.Height),
		)

		payload, err := streaming.Encode(streaming.Envelope{
			Kind:    streaming.EnvelopeKindTx,
			Network: network,
			TraceID: traceIDHex,
			Tx:      tx,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return err
		}
		headers := make([]kafka.Header, 0, 2)
		telemetry.InjectKafkaHeaders(traceCtx, &headers)
		messages = append(messages, kafka.Message{
			Topic:   p.topicForNetwork(network),
			Key:     []byte(tx.Hash),
			Value:   payload,
			Headers: headers,
		})
		spans = append(spans, span)
	}
	err := p.writer.WriteMessages(ctx, messages...)
	if err != nil {
		for _, span := range spans {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	for _, span := range spans {
		span.End()
	}
	return err
}

func (p *Producer) traceContext(ctx context.Context) (context.Context, string) {
	traceID, traceIDHex, ok := telemetry.NewTraceID()
	if !ok {
		return ctx, ""
	}
	if spanCtx, ok := telemetry.NewSpanContext(traceID); ok {
		ctx = trace.ContextWithSpanContext(ctx, spanCtx)
	}
	return ctx, traceIDHex
}

func (p *Producer) topicForNetwork(network string) string {
	return fmt.Sprintf("%s-%s", p.prefix, network)
}
