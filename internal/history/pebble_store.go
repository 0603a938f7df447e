package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

var (
	runPrefix = []byte("run/")
	idxPrefix = []byte("idx/")
)

// PebbleStore persists run records in PebbleDB. Records live under
// run/<start-nanos>/<id> so iteration follows start time; idx/<id>
// points at the record key.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func runKey(rec RunRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, rec.StartedAt.UnixNano(), rec.RunID))
}

func idxKey(runID string) []byte {
	return append(append([]byte(nil), idxPrefix...), runID...)
}

// prefixUpper returns the exclusive upper bound for keys starting with prefix.
func prefixUpper(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

func (p *PebbleStore) Put(rec RunRecord) (bool, error) {
	if rec.RunID == "" {
		return false, fmt.Errorf("put: empty run id")
	}
	_, closer, err := p.db.Get(idxKey(rec.RunID))
	if err == nil {
		_ = closer.Close()
		return false, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, fmt.Errorf("lookup %s: %w", rec.RunID, err)
	}

	val, err := json.Marshal(&rec)
	if err != nil {
		return false, fmt.Errorf("marshal: %w", err)
	}
	k := runKey(rec)
	wb := p.db.NewBatch()
	defer wb.Close()
	if err := wb.Set(k, val, nil); err != nil {
		return false, err
	}
	if err := wb.Set(idxKey(rec.RunID), k, nil); err != nil {
		return false, err
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (p *PebbleStore) Get(runID string) (RunRecord, error) {
	k, closer, err := p.db.Get(idxKey(runID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return RunRecord{}, ErrNotFound
		}
		return RunRecord{}, err
	}
	key := append([]byte(nil), k...)
	_ = closer.Close()

	v, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return RunRecord{}, ErrNotFound
		}
		return RunRecord{}, err
	}
	defer closer.Close()
	return decodeRun(v)
}

func (p *PebbleStore) Latest() (RunRecord, error) {
	it, err := p.runIter()
	if err != nil {
		return RunRecord{}, err
	}
	defer it.Close()
	if !it.Last() {
		return RunRecord{}, ErrNotFound
	}
	return decodeRun(it.Value())
}

func (p *PebbleStore) Range(fn func(rec RunRecord) error) error {
	it, err := p.runIter()
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		rec, err := decodeRun(it.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return it.Error()
}

func (p *PebbleStore) runIter() (*pebble.Iterator, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: runPrefix,
		UpperBound: prefixUpper(runPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("new iter: %w", err)
	}
	return it, nil
}

func decodeRun(val []byte) (RunRecord, error) {
	var rec RunRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return RunRecord{}, fmt.Errorf("decode run: %w", err)
	}
	return rec, nil
}
