package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func writeJournal(t *testing.T, recs ...RunRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, r := range recs {
		if err := enc.Encode(&r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return path
}

func TestReplay_SkipsDuplicates(t *testing.T) {
	path := writeJournal(t, run("a", 0), run("b", time.Hour), run("a", 0))

	st := NewInMemoryStore()
	res, err := Replay(st, path)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Applied != 2 || res.Skipped != 1 {
		t.Fatalf("result=%+v", res)
	}

	again, err := Replay(st, path)
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if again.Applied != 0 || again.Skipped != 3 {
		t.Fatalf("second result=%+v", again)
	}
}

func TestReplay_IntoPebble(t *testing.T) {
	path := writeJournal(t, run("a", 0), run("b", time.Hour))
	st, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	defer st.Close()

	if _, err := Replay(st, path); err != nil {
		t.Fatalf("replay: %v", err)
	}
	latest, err := st.Latest()
	if err != nil || latest.RunID != "b" {
		t.Fatalf("latest=%+v err=%v", latest, err)
	}
}

func TestReplay_Errors(t *testing.T) {
	if _, err := Replay(NewInMemoryStore(), filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatalf("missing journal should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"runId\":\"a\"}\nnot-json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := Replay(NewInMemoryStore(), path)
	if err == nil {
		t.Fatalf("corrupt line should fail")
	}
	if res.Applied != 1 {
		t.Fatalf("lines before the corrupt one should be applied, got %+v", res)
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

func TestReplayFrom_StopsWhenIdle(t *testing.T) {
	var msgs []kafka.Message
	for i, r := range []RunRecord{run("a", 0), run("b", time.Hour), run("a", 0)} {
		b, _ := json.Marshal(&r)
		msgs = append(msgs, kafka.Message{Offset: int64(i), Key: []byte(r.RunID), Value: b})
	}

	st := NewInMemoryStore()
	res, err := replayFrom(context.Background(), st, &fakeReader{msgs: msgs}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Applied != 2 || res.Skipped != 1 {
		t.Fatalf("result=%+v", res)
	}
}
