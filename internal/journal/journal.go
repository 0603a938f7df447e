package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"

	"orderrpa/internal/history"
)

// FileName is the journal file written under the journal directory.
const FileName = "runs.jsonl"

// Writer appends finished run records to a durable log.
type Writer interface {
	Append(rec history.RunRecord) error
}

// MultiWriter fans out to every writer and reports all failures.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(rec history.RunRecord) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Append(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type FileWriter struct {
	path string
}

func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, FileName)}, nil
}

// Path is the JSONL file records are appended to.
func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Append(rec history.RunRecord) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&rec); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// KafkaWriter publishes run records keyed by RunID.
type KafkaWriter struct {
	writer  kafkaMessageWriter
	timeout time.Duration
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaWriter(brokers []string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, timeout: 10 * time.Second}
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w, timeout: time.Second}
}

func (k *KafkaWriter) Append(rec history.RunRecord) error {
	b, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(rec.RunID), Value: b}); err != nil {
		return fmt.Errorf("publish run %s: %w", rec.RunID, err)
	}
	return nil
}

// Close releases the underlying kafka.Writer, if any.
func (k *KafkaWriter) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
