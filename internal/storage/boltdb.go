package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

const (
	screenshotsBucket = "screenshots"
	statsBucket       = "stats"
	latestKey         = "latest"
)

// Counter names kept in the stats bucket.
const (
	StatPublished   = "published"
	StatRepublished = "republished"
	StatDropped     = "dropped"
)

// ErrNoRecord is returned by Latest before any screenshot was published.
var ErrNoRecord = errors.New("no screenshot recorded yet")

// Store is what the engine needs from persistence.
type Store interface {
	SaveLatest(rec *types.Record) error
	Latest() (*types.Record, error)
	MarkRepublished(path string) error
	IncStat(name string) error
	Stats() (map[string]uint64, error)
	Close() error
}

// BoltStorage keeps the most recent screenshot and lifetime counters in a
// bbolt database. Only one record is ever kept.
type BoltStorage struct {
	db       *bbolt.DB
	logger   *zap.Logger
	deviceID string
}

// StorageConfig holds configuration for BoltStorage initialization
type StorageConfig struct {
	DBPath   string
	DeviceID string
	Logger   *zap.Logger
	// ReadOnly opens the database without taking the write lock, for CLI
	// commands that run alongside the daemon.
	ReadOnly bool
}

// NewBoltStorage opens (creating if needed) the database at config.DBPath.
func NewBoltStorage(config StorageConfig) (*BoltStorage, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if !config.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(config.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bbolt.Open(config.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: config.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	if !config.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, name := range []string{screenshotsBucket, statsBucket} {
				if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", name, err)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Debug("BoltStorage initialized",
		zap.String("db_path", config.DBPath),
		zap.Bool("read_only", config.ReadOnly))

	return &BoltStorage{db: db, logger: logger, deviceID: config.DeviceID}, nil
}

// SaveLatest replaces the stored record.
func (s *BoltStorage) SaveLatest(rec *types.Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if rec.DeviceID == "" {
		rec.DeviceID = s.deviceID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(screenshotsBucket)).Put([]byte(latestKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	s.logger.Debug("Saved latest screenshot", zap.String("path", rec.Path))
	return nil
}

// Latest returns the stored record or ErrNoRecord.
func (s *BoltStorage) Latest() (*types.Record, error) {
	var rec *types.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(screenshotsBucket))
		if b == nil {
			return ErrNoRecord
		}
		v := b.Get([]byte(latestKey))
		if v == nil {
			return ErrNoRecord
		}
		rec = &types.Record{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkRepublished bumps the republish count of the stored record if it is
// still the one for path.
func (s *BoltStorage) MarkRepublished(path string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(screenshotsBucket))
		v := b.Get([]byte(latestKey))
		if v == nil {
			return nil
		}
		var rec types.Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}
		if rec.Path != path {
			return nil
		}
		rec.Republished++
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(latestKey), data)
	})
}

// IncStat increments a named counter.
func (s *BoltStorage) IncStat(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(statsBucket))
		var n uint64
		if v := b.Get([]byte(name)); len(v) == 8 {
			n = binary.BigEndian.Uint64(v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n+1)
		return b.Put([]byte(name), buf)
	})
}

// Stats returns all counters.
func (s *BoltStorage) Stats() (map[string]uint64, error) {
	stats := make(map[string]uint64)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(statsBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				stats[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	return stats, err
}

// Close closes the database.
func (s *BoltStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
