package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DBFile is the ledger file name inside the data directory
const DBFile = "dicc.db"

var (
	// Bucket names
	bucketResults    = []byte("results")
	bucketDetections = []byte("detections")
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (creating if needed) the ledger in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	return openBoltStore(dataDir, false)
}

// OpenReadOnly opens an existing ledger without taking the write lock,
// for inspection commands. It fails after a short timeout if a running
// worker holds the database.
func OpenReadOnly(dataDir string) (*BoltStore, error) {
	return openBoltStore(dataDir, true)
}

func openBoltStore(dataDir string, readOnly bool) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout:  2 * time.Second,
		ReadOnly: readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	if readOnly {
		return &BoltStore{db: db}, nil
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketResults, bucketDetections} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// idKey encodes an ID big-endian so cursor order matches numeric order
func idKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (s *BoltStore) put(bucket []byte, id int64, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put(idKey(id), data)
	})
}

// Result operations
func (s *BoltStore) RecordResult(rec *ResultRecord) error {
	return s.put(bucketResults, rec.AssignmentID, rec)
}

func (s *BoltStore) GetResult(assignmentID int64) (*ResultRecord, error) {
	var rec ResultRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		if b == nil {
			return fmt.Errorf("result %d: %w", assignmentID, ErrNotFound)
		}
		data := b.Get(idKey(assignmentID))
		if data == nil {
			return fmt.Errorf("result %d: %w", assignmentID, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ListResults() ([]*ResultRecord, error) {
	var results []*ResultRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec ResultRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			results = append(results, &rec)
			return nil
		})
	})
	return results, err
}

// Detection operations
func (s *BoltStore) RecordDetection(rec *DetectionRecord) error {
	return s.put(bucketDetections, rec.PlatformID, rec)
}

func (s *BoltStore) ListDetections() ([]*DetectionRecord, error) {
	var detections []*DetectionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDetections)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec DetectionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			detections = append(detections, &rec)
			return nil
		})
	})
	return detections, err
}
