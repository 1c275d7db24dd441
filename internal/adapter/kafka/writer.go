package kafka

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes station lines to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
}

// NewWriter creates a producer for topic.
func NewWriter(brokers []string, topic string) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w}
}

// Publish sends lines in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(lines))
	for i, line := range lines {
		msgs[i] = lineToMessage(line)
	}
	return errors.Wrap(w.writer.WriteMessages(ctx, msgs...), "publish station lines")
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// lineToMessage keys a message by the station id when the line carries one,
// so a station always lands on the same partition. Broken lines are sent
// unkeyed.
func lineToMessage(line []byte) kafkago.Message {
	msg := kafkago.Message{Value: line}
	var probe struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(line, &probe) == nil && probe.ID != "" {
		msg.Key = []byte(probe.ID)
	}
	return msg
}
