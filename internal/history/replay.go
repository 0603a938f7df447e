package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
)

type ReplayResult struct {
	Applied int
	Skipped int
}

// Replay rebuilds st from a JSONL journal. Records whose RunID is already
// stored are skipped, so replaying the same journal twice is harmless.
func Replay(st Store, journalPath string) (ReplayResult, error) {
	file, err := os.Open(journalPath)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var res ReplayResult
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return res, fmt.Errorf("unmarshal line %d: %w", lineNum, err)
		}
		if err := apply(st, rec, &res); err != nil {
			return res, fmt.Errorf("apply line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan journal: %w", err)
	}
	return res, nil
}

// messageReader abstracts kafka.Reader for tests.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReplayKafka consumes partition 0 of the runs topic until idle for wait.
func ReplayKafka(ctx context.Context, st Store, brokers []string, topic string, wait time.Duration) (ReplayResult, error) {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	return replayFrom(ctx, st, rd, wait)
}

func replayFrom(ctx context.Context, st Store, rd messageReader, wait time.Duration) (ReplayResult, error) {
	defer rd.Close()
	var res ReplayResult
	for {
		rctx, cancel := context.WithTimeout(ctx, wait)
		m, err := rd.ReadMessage(rctx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return res, nil
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("read kafka: %w", err)
		}
		var rec RunRecord
		if err := json.Unmarshal(m.Value, &rec); err != nil {
			return res, fmt.Errorf("unmarshal offset %d: %w", m.Offset, err)
		}
		if err := apply(st, rec, &res); err != nil {
			return res, fmt.Errorf("apply offset %d: %w", m.Offset, err)
		}
	}
}

func apply(st Store, rec RunRecord, res *ReplayResult) error {
	ok, err := st.Put(rec)
	if err != nil {
		return err
	}
	if ok {
		res.Applied++
	} else {
		res.Skipped++
	}
	return nil
}
