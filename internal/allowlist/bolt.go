// Package allowlist stores the private-mode user allow list. It outlives
// restarts so operators can grant access at runtime without touching the
// environment.
package allowlist

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var usersBucket = []byte("allowed_users")

// BoltList is a bbolt-backed allow list keyed by user id.
type BoltList struct {
	db *bolt.DB
}

func Open(path string) (*BoltList, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating users bucket: %w", err)
	}

	return &BoltList{db: db}, nil
}

// Seed adds ids that are not yet present. Existing entries are left alone so
// runtime additions survive a restart with an unchanged seed list.
func (l *BoltList) Seed(ids []string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		for _, id := range ids {
			if id == "" {
				continue
			}
			if b.Get([]byte(id)) != nil {
				continue
			}
			if err := b.Put([]byte(id), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *BoltList) Add(id string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).Put([]byte(id), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

func (l *BoltList) Remove(id string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).Delete([]byte(id))
	})
}

func (l *BoltList) Allowed(id string) (bool, error) {
	var ok bool
	err := l.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(usersBucket).Get([]byte(id)) != nil
		return nil
	})
	return ok, err
}

// All returns every allowed user id.
func (l *BoltList) All() ([]string, error) {
	var ids []string
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (l *BoltList) Close() error {
	return l.db.Close()
}
