// Package history persists connection state changes in a bolt database so
// the status server can replay them to new clients.
package history

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/boltdb/bolt"

	"github.com/crimson-sun/updash/internal/model"
)

var bucketName = []byte("stateChanges")

// ErrInvalidSample is returned by Record for negative timestamps or
// unclassified statuses.
var ErrInvalidSample = errors.New("history: invalid sample")

// Store is a bolt-backed log of state changes keyed by timestamp.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures the bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores one state change. Recording the same timestamp twice keeps
// the last value.
func (s *Store) Record(sample model.Sample) error {
	if sample.Timestamp < 0 || sample.Status == model.Unclassified {
		return fmt.Errorf("%w: %+v", ErrInvalidSample, sample)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(encodeKey(sample.Timestamp), encodeStatus(sample.Status))
	})
}

// All returns every recorded change in timestamp order.
func (s *Store) All() ([]int64, []model.Status, error) {
	var (
		timestamps []int64
		statuses   []model.Status
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			ts, st, err := decode(k, v)
			if err != nil {
				return err
			}
			timestamps = append(timestamps, ts)
			statuses = append(statuses, st)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("history: read all: %w", err)
	}
	return timestamps, statuses, nil
}

// Latest returns the most recent change. ok is false when nothing has been
// recorded yet.
func (s *Store) Latest() (sample model.Sample, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(bucketName).Cursor().Last()
		if k == nil {
			return nil
		}
		ts, st, err := decode(k, v)
		if err != nil {
			return err
		}
		sample, ok = model.Sample{Timestamp: ts, Status: st}, true
		return nil
	})
	if err != nil {
		return model.Sample{}, false, fmt.Errorf("history: latest: %w", err)
	}
	return sample, ok, nil
}

// Status returns the change recorded at exactly ts.
func (s *Store) Status(ts int64) (model.Status, bool, error) {
	if ts < 0 {
		return model.Unclassified, false, nil
	}
	var (
		status model.Status
		ok     bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(encodeKey(ts))
		if v == nil {
			return nil
		}
		st, err := decodeStatus(v)
		if err != nil {
			return err
		}
		status, ok = st, true
		return nil
	})
	if err != nil {
		return model.Unclassified, false, fmt.Errorf("history: status %d: %w", ts, err)
	}
	return status, ok, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Keys are zero-padded so bolt's byte ordering matches numeric ordering.
func encodeKey(ts int64) []byte {
	return []byte(fmt.Sprintf("%020d", ts))
}

func encodeStatus(st model.Status) []byte {
	return []byte(strconv.FormatBool(st == model.Up))
}

func decode(k, v []byte) (int64, model.Status, error) {
	ts, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil {
		return 0, model.Unclassified, fmt.Errorf("bad key %q: %w", k, err)
	}
	st, err := decodeStatus(v)
	if err != nil {
		return 0, model.Unclassified, err
	}
	return ts, st, nil
}

func decodeStatus(v []byte) (model.Status, error) {
	switch string(v) {
	case "true":
		return model.Up, nil
	case "false":
		return model.Down, nil
	default:
		return model.Unclassified, fmt.Errorf("bad status value %q", v)
	}
}
