package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestPublishAndReadLatest(t *testing.T) {
	dir := t.TempDir()
	m := NewFilesystemManifest(dir)
	if err := m.PublishLatest(Manifest{RunID: "run-1", ReportPath: "out/a.xlsx"}); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	if err := m.PublishLatest(Manifest{RunID: "run-2", ReportPath: "out/b.xlsx", JSONPath: "out/run-2/report.json"}); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := m.ReadLatest()
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	if got.RunID != "run-2" || got.ReportPath != "out/b.xlsx" || got.CreatedAtEpochSecond == 0 {
		t.Fatalf("unexpected manifest: %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestReadLatest_Missing(t *testing.T) {
	if _, err := NewFilesystemManifest(filepath.Join(t.TempDir(), "none")).ReadLatest(); err == nil {
		t.Fatalf("expected error")
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaManifest_PublishLatest(t *testing.T) {
	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, LatestKey)
	if err := km.PublishLatest(Manifest{RunID: "run-1", CreatedAtEpochSecond: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 || string(fk.msgs[0].Key) != LatestKey {
		t.Fatalf("msgs=%+v", fk.msgs)
	}

	if err := NewKafkaManifestWith(&fakeKafkaWriter{fail: true}, LatestKey).PublishLatest(Manifest{RunID: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMultiPublisher_StopsOnError(t *testing.T) {
	bad := &fakeKafkaWriter{fail: true}
	after := &fakeKafkaWriter{}
	mp := NewMultiPublisher(NewKafkaManifestWith(bad, LatestKey), NewKafkaManifestWith(after, LatestKey))
	if err := mp.PublishLatest(Manifest{RunID: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(after.msgs) != 0 {
		t.Fatalf("publishers after a failure must not run")
	}
}

type fakeReader struct {
	msgs []kafka.Message
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) Close() error { return nil }

func TestKafkaReader_KeepsLastForKey(t *testing.T) {
	enc := func(id string) []byte { b, _ := json.Marshal(Manifest{RunID: id}); return b }
	fr := &fakeReader{msgs: []kafka.Message{
		{Key: []byte(LatestKey), Value: enc("run-1")},
		{Key: []byte("other"), Value: enc("ignored")},
		{Key: []byte(LatestKey), Value: enc("run-2")},
	}}
	kr := &KafkaReader{open: func() messageReader { return fr }, key: []byte(LatestKey), idle: 20 * time.Millisecond}
	got, err := kr.ReadLatest()
	if err != nil || got.RunID != "run-2" {
		t.Fatalf("got=%+v err=%v", got, err)
	}

	empty := &KafkaReader{open: func() messageReader { return &fakeReader{} }, key: []byte(LatestKey), idle: 10 * time.Millisecond}
	if _, err := empty.ReadLatest(); err == nil {
		t.Fatalf("expected error with no records")
	}
}

func TestKafkaManifest_Close(t *testing.T) {
	fw := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fw, LatestKey)
	if err := km.Close(); err != nil || !fw.closed {
		t.Fatalf("close err=%v closed=%v", err, fw.closed)
	}
}
