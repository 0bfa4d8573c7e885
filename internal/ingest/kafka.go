package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/logger"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig configures NewKafkaReader.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaReader returns a reader that starts at the newest offset.
// Backlogged reports would be stale by the time they are fused.
func NewKafkaReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
}

// KafkaConsumer reads JSON encoded reports from a topic and upserts them.
type KafkaConsumer struct {
	reader MessageReader
	sink   Upserter
	source adsb.Source
	log    *logger.Logger

	// errorBackoff is the pause after a failed read.
	errorBackoff time.Duration

	mu    sync.Mutex
	stats Stats
}

// NewKafkaConsumer creates a consumer. source is stamped on messages that
// carry none.
func NewKafkaConsumer(reader MessageReader, sink Upserter, source adsb.Source, log *logger.Logger) *KafkaConsumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &KafkaConsumer{
		reader:       reader,
		sink:         sink,
		source:       source,
		log:          log.Named("kafka").With(logger.String("source", string(source))),
		errorBackoff: time.Second,
	}
}

// Run consumes until ctx is done or the reader is closed, then closes the
// reader.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Error("Kafka read failed", logger.Error(err))
			c.mu.Lock()
			c.stats.Failures++
			c.mu.Unlock()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.errorBackoff):
			}
			continue
		}
		c.handle(m)
	}
}

func (c *KafkaConsumer) handle(m kafka.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Cycles++
	c.stats.LastPoll = time.Now()

	reports, err := decodeReports(m.Value)
	if err != nil {
		c.stats.Rejected++
		c.log.Warn("Undecodable message",
			logger.Int64("offset", m.Offset),
			logger.Int("partition", m.Partition),
			logger.Error(err))
		return
	}
	for i := range reports {
		if reports[i].Source == "" {
			reports[i].Source = c.source
		}
	}

	accepted, rejected := upsertAll(c.sink, reports, c.log)
	c.stats.Accepted += int64(accepted)
	c.stats.Rejected += int64(rejected)
}

// Stats returns a copy of the counters.
func (c *KafkaConsumer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// decodeReports accepts a single report object or an array of them.
func decodeReports(data []byte) ([]adsb.Report, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var rs []adsb.Report
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, err
		}
		return rs, nil
	}
	var r adsb.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return []adsb.Report{r}, nil
}
