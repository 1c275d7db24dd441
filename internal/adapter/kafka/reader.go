package kafka

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/config"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/domain"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/pipeline"
)

// Reader consumes one bounded partition of station lines from a topic. It
// implements pipeline.Partition: offsets are committed only on Ack, after the
// partition's output has been committed.
type Reader struct {
	reader     *kafkago.Reader
	topic      string
	maxRecords int
	idle       time.Duration
	logger     *slog.Logger
	pending    []kafkago.Message
}

// NewReader creates a consumer-group reader for src.
func NewReader(cfg *config.Config, src config.KafkaSource, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     src.Brokers,
		GroupID:     cfg.KafkaGroupID,
		Topic:       src.Topic,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Reader{
		reader:     r,
		topic:      src.Topic,
		maxRecords: cfg.KafkaMaxRecords,
		idle:       cfg.KafkaIdleTimeout,
		logger:     logger,
	}
}

func (r *Reader) Index() int   { return 0 }
func (r *Reader) Name() string { return "kafka:" + r.topic }

// Open starts a new bounded read. Messages fetched by an earlier, unacked
// read are forgotten and will be redelivered by the group.
func (r *Reader) Open(context.Context) (pipeline.RecordSource, error) {
	r.pending = r.pending[:0]
	return &batch{r: r}, nil
}

// Ack commits the offsets of every message delivered since Open.
func (r *Reader) Ack(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.reader.CommitMessages(ctx, r.pending...); err != nil {
		return errors.Wrap(err, "commit kafka offsets")
	}
	r.logger.Info("kafka offsets committed", "topic", r.topic, "messages", len(r.pending))
	r.pending = r.pending[:0]
	return nil
}

// Close closes the underlying consumer.
func (r *Reader) Close() error {
	return r.reader.Close()
}

type batch struct {
	r    *Reader
	read int
}

// Next fetches the next message. It returns io.EOF once maxRecords were read
// or no message arrived within the idle timeout.
func (b *batch) Next(ctx context.Context) (domain.RawRecord, error) {
	if b.read >= b.r.maxRecords {
		return domain.RawRecord{}, io.EOF
	}
	fetchCtx, cancel := context.WithTimeout(ctx, b.r.idle)
	defer cancel()

	msg, err := b.r.reader.FetchMessage(fetchCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return domain.RawRecord{}, io.EOF
		}
		return domain.RawRecord{}, errors.Wrap(err, "fetch kafka message")
	}
	b.read++
	b.r.pending = append(b.r.pending, msg)
	return mapMessageToRawRecord(msg), nil
}

func (b *batch) Close() error { return nil }

// mapMessageToRawRecord converts a Kafka message into a raw record keyed by
// topic, partition and offset.
func mapMessageToRawRecord(msg kafkago.Message) domain.RawRecord {
	return domain.RawRecord{
		Position: fmt.Sprintf("%s/%d@%d", msg.Topic, msg.Partition, msg.Offset),
		Line:     bytes.TrimSuffix(msg.Value, []byte("\r")),
	}
}
