package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullArgs = []string{"in/", "out/", "station.avsc", "station.schema.json"}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(fullArgs)
	require.NoError(t, err)

	assert.Equal(t, "in/", cfg.InputPath)
	assert.Equal(t, "out/", cfg.OutputPath)
	assert.Equal(t, "station.avsc", cfg.OutputSchemaPath)
	assert.Equal(t, "station.schema.json", cfg.InputSchemaPath)
	assert.Equal(t, FormatParquet, cfg.OutputFormat)
	assert.Equal(t, int64(500*1024*1024), cfg.BlockSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, 100, cfg.LogFileMaxMB)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "stations-etl", cfg.KafkaGroupID)
	assert.Equal(t, 10000, cfg.KafkaMaxRecords)
	assert.Equal(t, 5*time.Second, cfg.KafkaIdleTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OUTPUT_FORMAT", "AVRO")
	t.Setenv("BLOCK_SIZE", "1048576")
	t.Setenv("WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_FILE", "/var/log/etl.log")
	t.Setenv("LOG_FILE_MAX_MB", "10")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("KAFKA_MAX_RECORDS", "50")
	t.Setenv("KAFKA_IDLE_TIMEOUT", "2s")

	cfg, err := Load(fullArgs)
	require.NoError(t, err)

	assert.Equal(t, FormatAvro, cfg.OutputFormat)
	assert.Equal(t, int64(1048576), cfg.BlockSize)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "/var/log/etl.log", cfg.LogFile)
	assert.Equal(t, 10, cfg.LogFileMaxMB)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.KafkaMaxRecords)
	assert.Equal(t, 2*time.Second, cfg.KafkaIdleTimeout)
}

func TestLoad_InputSchemaFromEnv(t *testing.T) {
	t.Setenv("INPUT_SCHEMA_PATH", "env.schema.json")
	cfg, err := Load(fullArgs[:3])
	require.NoError(t, err)
	assert.Equal(t, "env.schema.json", cfg.InputSchemaPath)
}

func TestLoad_ArgumentWinsOverEnv(t *testing.T) {
	t.Setenv("INPUT_SCHEMA_PATH", "env.schema.json")
	cfg, err := Load(fullArgs)
	require.NoError(t, err)
	assert.Equal(t, "station.schema.json", cfg.InputSchemaPath)
}

func TestLoad_InputSchemaMissing(t *testing.T) {
	_, err := Load(fullArgs[:3])
	require.ErrorIs(t, err, ErrInputSchemaMissing)
}

func TestLoad_TooFewArgs(t *testing.T) {
	_, err := Load(fullArgs[:2])
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"OUTPUT_FORMAT", "orc", "OUTPUT_FORMAT"},
		{"BLOCK_SIZE", "0", "BLOCK_SIZE"},
		{"WORKERS", "many", "WORKERS"},
		{"LOG_FILE_MAX_MB", "-1", "LOG_FILE_MAX_MB"},
		{"KAFKA_MAX_RECORDS", "0", "KAFKA_MAX_RECORDS"},
		{"KAFKA_IDLE_TIMEOUT", "soon", "KAFKA_IDLE_TIMEOUT"},
		{"SHUTDOWN_TIMEOUT", "-1s", "SHUTDOWN_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(fullArgs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseKafkaSource(t *testing.T) {
	src, ok, err := ParseKafkaSource("kafka://b1:9092,b2:9092/ghcnd-stations")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, src.Brokers)
	assert.Equal(t, "ghcnd-stations", src.Topic)

	_, ok, err = ParseKafkaSource("/data/stations")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParseKafkaSource("kafka://b1:9092")
	assert.True(t, ok)
	require.Error(t, err)
}

func TestWriteHelp(t *testing.T) {
	var buf bytes.Buffer
	WriteHelp(&buf)

	assert.Contains(t, buf.String(), "Usage: etl")
	assert.Contains(t, buf.String(), "INPUTSCHEMAPATH")
}
