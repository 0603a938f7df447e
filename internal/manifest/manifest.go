package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	FileName = "manifest.latest.json"
	// LatestKey is the compacted record key for the newest report.
	LatestKey = "orderrpa-manifest-latest"
)

// Manifest points at the artifacts of the most recent successful run.
type Manifest struct {
	RunID                string `json:"runId"`
	ReportPath           string `json:"reportPath"`
	JSONPath             string `json:"jsonPath,omitempty"`
	CreatedAtEpochSecond int64  `json:"createdAt"`
}

type Publisher interface {
	PublishLatest(m Manifest) error
}

type Reader interface {
	ReadLatest() (Manifest, error)
}

// MultiPublisher writes to each publisher in order and stops at the first failure.
type MultiPublisher struct {
	pubs []Publisher
}

func NewMultiPublisher(pubs ...Publisher) *MultiPublisher {
	return &MultiPublisher{pubs: pubs}
}

func (m *MultiPublisher) PublishLatest(man Manifest) error {
	for _, p := range m.pubs {
		if err := p.PublishLatest(man); err != nil {
			return err
		}
	}
	return nil
}

func stamp(m Manifest) Manifest {
	if m.CreatedAtEpochSecond == 0 {
		m.CreatedAtEpochSecond = time.Now().UTC().Unix()
	}
	return m
}

type FilesystemManifest struct {
	baseDir string
}

func NewFilesystemManifest(baseDir string) *FilesystemManifest {
	return &FilesystemManifest{baseDir: baseDir}
}

// PublishLatest replaces manifest.latest.json via a temp file and rename.
func (f *FilesystemManifest) PublishLatest(m Manifest) error {
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	m = stamp(m)
	tmp, err := os.CreateTemp(f.baseDir, FileName+".*")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&m); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.baseDir, FileName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (f *FilesystemManifest) ReadLatest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, FileName))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// KafkaManifest publishes the latest manifest as a compacted Kafka record.
type KafkaManifest struct {
	writer kafkaMessageWriter
	key    []byte
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaManifest(brokers []string, topic string) *KafkaManifest {
	return &KafkaManifest{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, key: []byte(LatestKey)}
}

// NewKafkaManifestWith is only for tests to inject a fake writer.
func NewKafkaManifestWith(w kafkaMessageWriter, key string) *KafkaManifest {
	return &KafkaManifest{writer: w, key: []byte(key)}
}

func (k *KafkaManifest) PublishLatest(m Manifest) error {
	m = stamp(m)
	b, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{Key: k.key, Value: b})
}

// Close releases the underlying kafka.Writer, if any.
func (k *KafkaManifest) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// KafkaReader scans the manifest topic and keeps the last record for the key.
type KafkaReader struct {
	open func() messageReader
	key  []byte
	idle time.Duration
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func NewKafkaReader(brokers []string, topic string) *KafkaReader {
	return &KafkaReader{
		open: func() messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:   brokers,
				Topic:     topic,
				Partition: 0,
				MinBytes:  1,
				MaxBytes:  10e6,
			})
		},
		key:  []byte(LatestKey),
		idle: 5 * time.Second,
	}
}

func (k *KafkaReader) ReadLatest() (Manifest, error) {
	r := k.open()
	defer r.Close()

	var last Manifest
	found := false
	for {
		ctx, cancel := context.WithTimeout(context.Background(), k.idle)
		m, err := r.ReadMessage(ctx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return Manifest{}, fmt.Errorf("read kafka: %w", err)
		}
		if string(m.Key) != string(k.key) {
			continue
		}
		var man Manifest
		if err := json.Unmarshal(m.Value, &man); err != nil {
			return Manifest{}, fmt.Errorf("unmarshal kafka manifest: %w", err)
		}
		last, found = man, true
	}
	if !found {
		return Manifest{}, fmt.Errorf("no manifest found for key %s", k.key)
	}
	return last, nil
}
