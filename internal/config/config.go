package config

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/cockroachdb/errors"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Output formats for the primary channel.
const (
	FormatParquet = "parquet"
	FormatAvro    = "avro"
)

// DefaultBlockSize is the row group (parquet) or block (avro) target in bytes.
const DefaultBlockSize = 500 * 1024 * 1024

// ErrInputSchemaMissing is returned when neither the fourth positional
// argument nor INPUT_SCHEMA_PATH names an input schema.
var ErrInputSchemaMissing = errors.New("input schema path not given: pass it as the fourth argument or set INPUT_SCHEMA_PATH")

// Args are the launcher's positional arguments.
type Args struct {
	InputPath        string `arg:"positional,required" help:"input file, directory, or kafka://brokers/topic"`
	OutputPath       string `arg:"positional,required" help:"output directory, cleared before the run"`
	OutputSchemaPath string `arg:"positional,required" help:"Avro schema describing the output records"`
	InputSchemaPath  string `arg:"positional" help:"JSON Schema the input lines are validated against"`
}

// Description is shown by go-arg above the usage text.
func (Args) Description() string {
	return "Validates GHCND station JSONL against a JSON Schema and writes Snappy-compressed columnar output.\n"
}

// Config holds all job settings: positional arguments plus environment tunables.
type Config struct {
	InputPath        string
	OutputPath       string
	OutputSchemaPath string
	InputSchemaPath  string

	OutputFormat string
	BlockSize    int64
	Workers      int

	LogLevel     string
	LogFormat    string
	LogFile      string
	LogFileMaxMB int

	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Kafka input, used when InputPath is a kafka:// URL.
	KafkaGroupID     string
	KafkaMaxRecords  int
	KafkaIdleTimeout time.Duration
}

func newParser(a *Args) (*arg.Parser, error) {
	p, err := arg.NewParser(arg.Config{Program: "etl"}, a)
	return p, errors.Wrap(err, "build argument parser")
}

// ParseArgs parses positional arguments with go-arg.
func ParseArgs(argv []string) (Args, error) {
	var a Args
	p, err := newParser(&a)
	if err != nil {
		return Args{}, err
	}
	if err := p.Parse(argv); err != nil {
		return Args{}, err
	}
	return a, nil
}

// WriteHelp prints the launcher usage and argument help to w.
func WriteHelp(w io.Writer) {
	var a Args
	if p, err := newParser(&a); err == nil {
		p.WriteHelp(w)
	}
}

// Load parses argv and reads the remaining settings from environment
// variables, applying defaults where unset.
func Load(argv []string) (*Config, error) {
	a, err := ParseArgs(argv)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	blockSize, err := parsePositiveInt("BLOCK_SIZE", DefaultBlockSize)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	logFileMaxMB, err := parsePositiveInt("LOG_FILE_MAX_MB", 100)
	if err != nil {
		return nil, err
	}
	kafkaMaxRecords, err := parsePositiveInt("KAFKA_MAX_RECORDS", 10000)
	if err != nil {
		return nil, err
	}

	idleStr := sharedcfg.EnvOrDefault("KAFKA_IDLE_TIMEOUT", "5s")
	kafkaIdle, err := time.ParseDuration(idleStr)
	if err != nil || kafkaIdle <= 0 {
		return nil, errors.New("invalid KAFKA_IDLE_TIMEOUT")
	}

	inputSchema := a.InputSchemaPath
	if inputSchema == "" {
		inputSchema = os.Getenv("INPUT_SCHEMA_PATH")
	}

	cfg := &Config{
		InputPath:        a.InputPath,
		OutputPath:       a.OutputPath,
		OutputSchemaPath: a.OutputSchemaPath,
		InputSchemaPath:  inputSchema,

		OutputFormat: strings.ToLower(sharedcfg.EnvOrDefault("OUTPUT_FORMAT", FormatParquet)),
		BlockSize:    int64(blockSize),
		Workers:      workers,

		LogLevel:     sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogFile:      os.Getenv("LOG_FILE"),
		LogFileMaxMB: logFileMaxMB,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "stations-etl"),
		KafkaMaxRecords:  kafkaMaxRecords,
		KafkaIdleTimeout: kafkaIdle,
	}

	if cfg.InputSchemaPath == "" {
		return nil, ErrInputSchemaMissing
	}
	if cfg.OutputFormat != FormatParquet && cfg.OutputFormat != FormatAvro {
		return nil, errors.Newf("OUTPUT_FORMAT must be %q or %q, got %q", FormatParquet, FormatAvro, cfg.OutputFormat)
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.Newf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// KafkaSource describes a kafka://host1:9092,host2:9092/topic input path.
type KafkaSource struct {
	Brokers []string
	Topic   string
}

// ParseKafkaSource reports whether path is a Kafka input and splits it.
func ParseKafkaSource(path string) (KafkaSource, bool, error) {
	rest, ok := strings.CutPrefix(path, "kafka://")
	if !ok {
		return KafkaSource{}, false, nil
	}
	hosts, topic, _ := strings.Cut(rest, "/")
	brokers := sharedcfg.ParseBrokers(hosts)
	if len(brokers) == 0 || topic == "" {
		return KafkaSource{}, true, errors.Newf("kafka input %q: want kafka://host:port[,host:port]/topic", path)
	}
	return KafkaSource{Brokers: brokers, Topic: topic}, true, nil
}
