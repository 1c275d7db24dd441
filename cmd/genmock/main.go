// Command genmock converts the NOAA fixed-width station inventory into JSONL
// fixtures for the ETL, optionally corrupting a fraction of the lines so the
// error channel gets exercised. The lines can also be published to Kafka.
//
// Usage:
//
//	go run ./cmd/genmock -in ghcnd-stations.txt -out data/mock/stations.jsonl -bad-fraction 0.01
//	go run ./cmd/genmock -in ghcnd-stations.txt -kafka-brokers localhost:9092 -topic ghcnd-stations
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/cockroachdb/errors"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	kafkaadapter "github.com/erik-ytterman/nooa-climate-stations-etl/internal/adapter/kafka"
	"github.com/erik-ytterman/nooa-climate-stations-etl/internal/ghcnd"
)

const publishBatch = 500

type args struct {
	In           string  `arg:"-i,--in,required" help:"path to ghcnd-stations.txt"`
	Out          string  `arg:"-o,--out" help:"JSONL file to write"`
	BadFraction  float64 `arg:"--bad-fraction" default:"0" help:"fraction of lines to corrupt, 0..1"`
	Seed         uint64  `arg:"--seed" default:"1" help:"seed for choosing and corrupting lines"`
	KafkaBrokers string  `arg:"--kafka-brokers" help:"comma-separated brokers to publish to"`
	Topic        string  `arg:"--topic" default:"ghcnd-stations" help:"topic to publish to"`
}

func main() {
	var a args
	arg.MustParse(&a)
	if err := run(a); err != nil {
		log.Fatal(err)
	}
}

func run(a args) error {
	if a.Out == "" && a.KafkaBrokers == "" {
		return errors.New("nothing to do: pass --out, --kafka-brokers or both")
	}
	if a.BadFraction < 0 || a.BadFraction > 1 {
		return errors.Newf("--bad-fraction must be within 0..1, got %v", a.BadFraction)
	}

	f, err := os.Open(a.In)
	if err != nil {
		return errors.Wrap(err, "open station inventory")
	}
	defer f.Close()

	stations, err := ghcnd.ReadStations(f, func(n int, err error) {
		log.Printf("skipping line %d: %v", n, err)
	})
	if err != nil {
		return err
	}
	log.Printf("read %d stations", len(stations))

	lines, corrupted, err := renderLines(stations, a.BadFraction, rand.New(rand.NewPCG(a.Seed, a.Seed^0x9e3779b97f4a7c15)))
	if err != nil {
		return err
	}
	log.Printf("corrupted %d of %d lines", corrupted, len(lines))

	if a.Out != "" {
		if err := writeLines(a.Out, lines); err != nil {
			return errors.Wrap(err, "write fixture")
		}
		log.Printf("wrote %s", a.Out)
	}
	if a.KafkaBrokers != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := publish(ctx, sharedcfg.ParseBrokers(a.KafkaBrokers), a.Topic, lines); err != nil {
			return err
		}
		log.Printf("published %d lines to %s", len(lines), a.Topic)
	}
	return nil
}

// renderLines marshals every station and replaces a random subset with a
// broken variant.
func renderLines(stations []ghcnd.Station, badFraction float64, rng *rand.Rand) ([][]byte, int, error) {
	lines := make([][]byte, 0, len(stations))
	corrupted := 0
	for _, s := range stations {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "marshal station %s", s.ID)
		}
		if rng.Float64() < badFraction {
			data = corrupt(s, data, rng)
			corrupted++
		}
		lines = append(lines, data)
	}
	return lines, corrupted, nil
}

// corrupt produces one of the failure shapes the ETL must divert: truncated
// JSON, a missing required field, or an out-of-range coordinate.
func corrupt(s ghcnd.Station, data []byte, rng *rand.Rand) []byte {
	switch rng.IntN(3) {
	case 0:
		return data[:len(data)/2]
	case 1:
		missing := map[string]any{"id": s.ID, "latitude": s.Latitude, "longitude": s.Longitude, "name": s.Name}
		out, _ := json.Marshal(missing)
		return out
	default:
		s.Latitude = 90.5 + rng.Float64()*89
		out, _ := json.Marshal(s)
		return out
	}
}

func writeLines(path string, lines [][]byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		w.Write(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func publish(ctx context.Context, brokers []string, topic string, lines [][]byte) error {
	w := kafkaadapter.NewWriter(brokers, topic)
	defer w.Close()
	for start := 0; start < len(lines); start += publishBatch {
		end := min(start+publishBatch, len(lines))
		if err := w.Publish(ctx, lines[start:end]); err != nil {
			return errors.Wrapf(err, "batch at line %d", start)
		}
	}
	return nil
}
