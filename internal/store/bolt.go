package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mbrook/beacon/internal/auth"
)

var bucketUsers = []byte("users")

// userIndexKey maps a username to its user ID within the users bucket.
func userIndexKey(username string) []byte {
	return []byte("idx::username::" + username)
}

// Store wraps a BoltDB database for Beacon persistence.
type Store struct {
	db *bolt.DB
}

// Open creates or opens a BoltDB database at the given path and ensures
// all required buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUsers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser persists a new user and its username index atomically.
// Returns an error if the username is already taken.
func (s *Store) CreateUser(user auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)

		if existing := b.Get(userIndexKey(user.Username)); existing != nil {
			return fmt.Errorf("username %q already exists", user.Username)
		}

		if err := b.Put([]byte(user.ID), data); err != nil {
			return err
		}
		return b.Put(userIndexKey(user.Username), []byte(user.ID))
	})
}

// CreateFirstUser atomically creates the initial user only if no users exist.
// Returns auth.ErrUsersExist if the users bucket already contains records.
func (s *Store) CreateFirstUser(user auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Stats().KeyN > 0 {
			return auth.ErrUsersExist
		}
		if err := b.Put([]byte(user.ID), data); err != nil {
			return err
		}
		return b.Put(userIndexKey(user.Username), []byte(user.ID))
	})
}

// GetUserByUsername looks up a user via the username index.
// Returns nil, nil when the user does not exist.
func (s *Store) GetUserByUsername(username string) (*auth.User, error) {
	var user *auth.User
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		id := b.Get(userIndexKey(username))
		if id == nil {
			return nil
		}
		data := b.Get(id)
		if data == nil {
			return nil
		}
		var u auth.User
		if err := json.Unmarshal(data, &u); err != nil {
			return fmt.Errorf("unmarshal user %q: %w", username, err)
		}
		user = &u
		return nil
	})
	return user, err
}

// UserCount returns the number of stored users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		// Each user has a record key and an index key.
		count = tx.Bucket(bucketUsers).Stats().KeyN / 2
		return nil
	})
	return count, err
}
