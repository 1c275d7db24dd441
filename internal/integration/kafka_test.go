//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/filesystem"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/kafka"
	parquetadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/parquet"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/config"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/observability"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/pipeline"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

const testTopic = "ghcnd-stations"

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("stations-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

func readSchema(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "schemas", name))
	require.NoError(t, err)
	return data
}

func kafkaConfig(maxRecords int, idle time.Duration) *config.Config {
	return &config.Config{
		KafkaGroupID:     "stations-etl-test",
		KafkaMaxRecords:  maxRecords,
		KafkaIdleTimeout: idle,
	}
}

// TestKafkaPartitionEndToEnd publishes station lines, runs the job over one
// bounded Kafka partition, and checks both channels and the committed offsets.
func TestKafkaPartitionEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	w := kafka.NewWriter([]string{broker}, testTopic)
	require.NoError(t, w.Publish(ctx, [][]byte{
		[]byte(`{"id":"USW00094846","latitude":41.9786,"longitude":-87.9048,"elevation":201.8,"name":"CHICAGO OHARE INTL AP"}`),
		[]byte(`{not valid json`),
		[]byte(`{"id":"ACW00011604","latitude":17.1167,"longitude":-61.7833,"elevation":10.1,"name":"ST JOHNS COOLIDGE FLD"}`),
	}))
	require.NoError(t, w.Close())

	logger := slog.New(slog.DiscardHandler)
	src := config.KafkaSource{Brokers: []string{broker}, Topic: testTopic}
	reader := kafka.NewReader(kafkaConfig(3, 30*time.Second), src, logger)
	defer reader.Close()

	out := filepath.Join(t.TempDir(), "out")
	committer, err := filesystem.NewCommitter(out, filesystem.Format{
		Extension: ".snappy.parquet",
		Open: func(f *os.File, s *schema.OutputSchema) (pipeline.PrimarySink, error) {
			return parquetadapter.NewWriter(f, s, 1<<20), nil
		},
	})
	require.NoError(t, err)
	job := pipeline.NewJob(pipeline.WorkerConfig{
		InputSchema:  readSchema(t, "station.schema.json"),
		OutputSchema: readSchema(t, "station.avsc"),
	}, committer, logger, observability.NewMetricsForTesting())

	sum, err := job.Run(ctx, []pipeline.Partition{reader})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Read)
	assert.Equal(t, 2, sum.Written)

	recs, err := parquetadapter.ReadRecords(filepath.Join(out, "part-m-00000.snappy.parquet"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "USW00094846", recs[0].ID)

	errs, err := os.ReadFile(filepath.Join(out, "errors-m-00000"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(errs), testTopic+"/0@1\t{not valid json\n"), string(errs))

	// Offsets were committed, so the same group sees nothing new.
	again := kafka.NewReader(kafkaConfig(3, 10*time.Second), src, logger)
	defer again.Close()
	batch, err := again.Open(ctx)
	require.NoError(t, err)
	_, err = batch.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
