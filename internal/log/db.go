package log

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const dbAPIversion = "1"

const defaultMaxKeys = 100000

// DB persists the log feed to a bbolt-backed ring buffer bucket.
type DB struct {
	dbPath  string
	maxKeys int

	db *bolt.DB
	wg *sync.WaitGroup

	saveWG *sync.WaitGroup
}

// NewDB returns a DB ready to Init.
func NewDB(dbPath string, wg *sync.WaitGroup) *DB {
	return &DB{
		dbPath:  dbPath,
		maxKeys: defaultMaxKeys,
		wg:      wg,
		saveWG:  &sync.WaitGroup{},
	}
}

// Init opens (creating if absent) the bbolt database and its log bucket.
func (ldb *DB) Init(ctx context.Context) error {
	db, err := bolt.Open(ldb.dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("open log database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(dbAPIversion))
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("create log bucket: %w", err)
	}

	ldb.db = db
	ldb.wg.Add(1)
	go func() {
		<-ctx.Done()
		ldb.saveWG.Wait()
		db.Close()
		ldb.wg.Done()
	}()

	return nil
}

// SaveLogs subscribes to l and persists every entry until ctx is canceled.
func (ldb *DB) SaveLogs(ctx context.Context, l *Logger) {
	feed, cancel := l.Subscribe()
	defer cancel()

	ldb.saveWG.Add(1)
	defer ldb.saveWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-feed:
			if !ok {
				return
			}
			if err := ldb.saveEntry(e); err != nil {
				fmt.Fprintf(os.Stderr, "could not save log entry: %v: %v\n", e.Msg, err)
			}
		}
	}
}

func (ldb *DB) saveEntry(e Entry) error {
	key := encodeKey(uint64(e.Time))
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	return ldb.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))
		if b.Stats().KeyN >= ldb.maxKeys {
			if k, _ := b.Cursor().First(); k != nil {
				if err := b.Delete(k); err != nil {
					return fmt.Errorf("evict oldest log entry: %w", err)
				}
			}
		}
		return b.Put(key, value)
	})
}

func encodeKey(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Query filters persisted entries.
type Query struct {
	Levels  []Level
	Sources []string
	Limit   int
}

// Query returns the most recent entries matching q, newest first.
func (ldb *DB) Query(q Query) ([]Entry, error) {
	var entries []Entry

	err := ldb.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dbAPIversion))
		c := b.Cursor()

		limit := q.Limit
		if limit == 0 {
			limit = defaultMaxKeys
		}

		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal log entry: %w", err)
			}
			if !levelMatches(e.Level, q.Levels) || !srcMatches(e.Src, q.Sources) {
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func levelMatches(l Level, levels []Level) bool {
	if len(levels) == 0 {
		return true
	}
	for _, want := range levels {
		if l == want {
			return true
		}
	}
	return false
}

func srcMatches(src string, sources []string) bool {
	if len(sources) == 0 {
		return true
	}
	for _, want := range sources {
		if src == want {
			return true
		}
	}
	return false
}
