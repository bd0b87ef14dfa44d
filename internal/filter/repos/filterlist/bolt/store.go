package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
)

var (
	bucketSources = []byte("sources")
	bucketMeta    = []byte("meta")
	keySchema     = []byte("schema")
)

const schemaVersion uint64 = 1

// metaStore implements filterlist.MetaStore using bbolt. Each source's
// metadata is stored as a JSON document keyed by source ID.
type metaStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (filterlist.MetaStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open meta db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSources); err != nil {
			return err
		}
		b, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if v := b.Get(keySchema); len(v) == 8 {
			if got := binary.BigEndian.Uint64(v); got != schemaVersion {
				return fmt.Errorf("unsupported meta schema %d", got)
			}
			return nil
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, schemaVersion)
		return b.Put(keySchema, buf)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init meta db %s: %w", path, err)
	}
	return &metaStore{db: db}, nil
}

func (s *metaStore) Close() error { return s.db.Close() }

// Get returns the stored metadata for id. ok is false when nothing has been
// recorded yet.
func (s *metaStore) Get(id domain.SourceID) (domain.SourceMeta, bool, error) {
	var (
		meta domain.SourceMeta
		ok   bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSources)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &meta); err != nil {
			return fmt.Errorf("decode meta for %s: %w", id, err)
		}
		ok = true
		return nil
	})
	return meta, ok, err
}

// Put replaces the stored metadata for id.
func (s *metaStore) Put(id domain.SourceID, meta domain.SourceMeta) error {
	v, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode meta for %s: %w", id, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSources).Put([]byte(id), v)
	})
}
