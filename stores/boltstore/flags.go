// Package boltstore keeps authflow session flags in a bbolt file.
package boltstore

import (
	"context"
	"fmt"
	"time"

	"github.com/nutrijel/authflow"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("session_flags")

var trueValue = []byte("true")

// FlagStore implements authflow.SessionStore on a bolt database
type FlagStore struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path
func Open(path string) (*FlagStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &FlagStore{db: db}, nil
}

// Close releases the database file
func (s *FlagStore) Close() error {
	return s.db.Close()
}

// MarkAuthenticated writes both keys in a single transaction
func (s *FlagStore) MarkAuthenticated(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put([]byte(authflow.KeyAuthenticated), trueValue); err != nil {
			return err
		}
		return b.Delete([]byte(authflow.KeyExploring))
	})
}

func (s *FlagStore) Flags(ctx context.Context) (authflow.PersistedFlags, error) {
	var flags authflow.PersistedFlags
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		flags.IsAuthenticated = string(b.Get([]byte(authflow.KeyAuthenticated))) == "true"
		flags.IsExploring = string(b.Get([]byte(authflow.KeyExploring))) == "true"
		return nil
	})
	return flags, err
}

// SetExploring marks the visitor as browsing without an account
func (s *FlagStore) SetExploring(ctx context.Context, exploring bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if exploring {
			return b.Put([]byte(authflow.KeyExploring), trueValue)
		}
		return b.Delete([]byte(authflow.KeyExploring))
	})
}
