// Command etl validates GHCND station JSONL against a JSON Schema and writes
// the valid stations to Snappy-compressed columnar files, diverting every
// other line to a plain-text error channel.
//
// Usage:
//
//	etl inputPath outputPath outputSchemaPath [inputSchemaPath]
//
// inputPath is a file, a directory of files, or kafka://host:port/topic.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"

	avroadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/avro"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/filesystem"
	httpadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/http"
	kafkaadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/kafka"
	parquetadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/parquet"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/config"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/observability"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/pipeline"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/schema"
)

func main() {
	// Registration with the default registry can happen once per process.
	os.Exit(run(os.Args[1:], observability.NewMetrics()))
}

func run(args []string, metrics *observability.Metrics) int {
	if wantsHelp(args) {
		config.WriteHelp(os.Stdout)
		return 0
	}
	// Too few arguments is reported but not treated as a job failure.
	if positional(args) < 3 {
		fmt.Println("ERROR")
		return 0
	}

	cfg, err := config.Load(args)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runJob(ctx, cfg, logger, metrics); err != nil {
		logger.Error("job failed", "error", err)
		return 1
	}
	return 0
}

func runJob(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	inputSchema, err := os.ReadFile(cfg.InputSchemaPath)
	if err != nil {
		return errors.Wrap(err, "read input schema")
	}
	outputSchema, err := os.ReadFile(cfg.OutputSchemaPath)
	if err != nil {
		return errors.Wrap(err, "read output schema")
	}

	partitions, closeInput, err := openInput(cfg, logger)
	if err != nil {
		return err
	}
	defer closeInput()

	if err := filesystem.ResetOutput(cfg.OutputPath); err != nil {
		return err
	}
	committer, err := filesystem.NewCommitter(cfg.OutputPath, primaryFormat(cfg))
	if err != nil {
		return err
	}

	job := pipeline.NewJob(pipeline.WorkerConfig{
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
	}, committer, logger, metrics, pipeline.WithWorkers(cfg.Workers))

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, job, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	_, err = job.Run(ctx, partitions)
	return err
}

// openInput lists the partitions behind cfg.InputPath. The returned func
// releases any connection the partitions hold.
func openInput(cfg *config.Config, logger *slog.Logger) ([]pipeline.Partition, func(), error) {
	src, isKafka, err := config.ParseKafkaSource(cfg.InputPath)
	if err != nil {
		return nil, nil, err
	}
	if isKafka {
		reader := kafkaadapter.NewReader(cfg, src, logger)
		closeFn := func() {
			if err := reader.Close(); err != nil {
				logger.Error("kafka reader close error", "error", err)
			}
		}
		return []pipeline.Partition{reader}, closeFn, nil
	}

	parts, err := filesystem.ListPartitions(cfg.InputPath)
	if err != nil {
		return nil, nil, err
	}
	return parts, func() {}, nil
}

func primaryFormat(cfg *config.Config) filesystem.Format {
	if cfg.OutputFormat == config.FormatAvro {
		return filesystem.Format{
			Extension: ".avro",
			Open: func(f *os.File, out *schema.OutputSchema) (pipeline.PrimarySink, error) {
				w, err := avroadapter.NewWriter(f, out, cfg.BlockSize)
				if err != nil {
					return nil, err
				}
				return w, nil
			},
		}
	}
	return filesystem.Format{
		Extension: ".snappy.parquet",
		Open: func(f *os.File, out *schema.OutputSchema) (pipeline.PrimarySink, error) {
			return parquetadapter.NewWriter(f, out, cfg.BlockSize), nil
		},
	}
}

func positional(args []string) int {
	n := 0
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			n++
		}
	}
	return n
}

func wantsHelp(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			return true
		}
	}
	return false
}
