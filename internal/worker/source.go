package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

// JobMessage is the payload published for each completed search run. A bare
// run id string is also accepted.
type JobMessage struct {
	SearchRunID string `json:"search_run_id"`
}

// messageReader abstracts kafka.Reader for testability.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource turns search run messages into jobs. Offsets are committed
// only after a job finishes, so a crash redelivers unfinished runs.
type KafkaSource struct {
	reader messageReader
	logger *slog.Logger
}

// NewKafkaSource creates a consumer group reader on topic.
func NewKafkaSource(brokers []string, topic, groupID string, logger *slog.Logger) *KafkaSource {
	var addrs []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	return NewKafkaSourceWith(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  addrs,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), logger)
}

// NewKafkaSourceWith is only for tests to inject a fake reader.
func NewKafkaSourceWith(r messageReader, logger *slog.Logger) *KafkaSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSource{reader: r, logger: logger}
}

// Jobs streams jobs until ctx is done or the reader fails. The returned
// channel is closed when streaming stops; the error channel receives the
// terminal error, if any.
func (s *KafkaSource) Jobs(ctx context.Context) (<-chan Job, <-chan error) {
	jobs := make(chan Job)
	errc := make(chan error, 1)

	go func() {
		defer close(jobs)
		defer close(errc)
		for {
			msg, err := s.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
					errc <- fmt.Errorf("fetch message: %w", err)
				}
				return
			}

			runID, err := ParseJobMessage(msg.Value)
			if err != nil {
				s.logger.Warn("skipping unreadable job message",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
					slog.Any("error", err))
				if err := s.reader.CommitMessages(ctx, msg); err != nil {
					errc <- fmt.Errorf("commit message: %w", err)
					return
				}
				continue
			}

			job := Job{
				RunID: runID,
				Ack: func(ctx context.Context, _ error) error {
					// Committed whether or not the run succeeded.
					return s.reader.CommitMessages(ctx, msg)
				},
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	return jobs, errc
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// ParseJobMessage extracts the search run id from a message value.
func ParseJobMessage(value []byte) (string, error) {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" {
		return "", errors.New("empty job message")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	var m JobMessage
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return "", fmt.Errorf("decode job message: %w", err)
	}
	if strings.TrimSpace(m.SearchRunID) == "" {
		return "", errors.New("job message has no search_run_id")
	}
	return strings.TrimSpace(m.SearchRunID), nil
}
