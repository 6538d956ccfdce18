// Package store saves model and evidence bundles as JSON records in a
// bolt database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("store")

// MAIN is the bucket name for all the records.
var MAIN = []byte("main")

// ErrNotFound is returned when a key is not in the database.
var ErrNotFound = errors.New("record not found")

const (
	modelPrefix = "model/"
	dataPrefix  = "data/"
)

// ModelKey returns the key of a model record.
func ModelKey(name string) []byte {
	return []byte(modelPrefix + name)
}

// DataKey returns the key of an evidence record.
func DataKey(level int) []byte {
	return []byte(dataPrefix + strconv.Itoa(level))
}

// Store is a bolt database with bundle records.
type Store struct {
	db *bolt.DB
}

// Open opens or creates a database file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening database %s: %v", path, err)
	}
	return New(db), nil
}

// New creates a Store using an open database.
func New(db *bolt.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveModel saves a model record.
func (s *Store) SaveModel(r *ModelRecord) error {
	return s.save(ModelKey(r.Name), r)
}

// SaveData saves an evidence record.
func (s *Store) SaveData(r *DataRecord) error {
	return s.save(DataKey(r.Level), r)
}

// LoadModel loads a model record.
func (s *Store) LoadModel(name string) (*ModelRecord, error) {
	var r *ModelRecord
	if err := s.load(ModelKey(name), &r); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadData loads an evidence record.
func (s *Store) LoadData(level int) (*DataRecord, error) {
	var r *DataRecord
	if err := s.load(DataKey(level), &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Keys returns all the keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	sort.Strings(keys)
	return keys, err
}

// Raw returns the JSON stored under a key.
func (s *Store) Raw(key string) ([]byte, error) {
	b, err := LoadData(s.db, []byte(key))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return b, nil
}

// IsModelKey returns true for keys of model records.
func IsModelKey(key string) bool {
	return strings.HasPrefix(key, modelPrefix)
}

// IsDataKey returns true for keys of evidence records.
func IsDataKey(key string) bool {
	return strings.HasPrefix(key, dataPrefix)
}

func (s *Store) save(key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error("Error serializing record", err)
		return err
	}
	err = SaveData(s.db, key, b)
	if err != nil {
		log.Error("Error saving record", err)
		return err
	}
	log.Debugf("Saved %s (%d bytes)", key, len(b))
	return nil
}

func (s *Store) load(key []byte, v interface{}) error {
	b, err := s.Raw(string(key))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database. It returns nil if there is
// no such key.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}

		v := b.Get(key)
		if v != nil {
			// v is only valid inside the transaction
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
