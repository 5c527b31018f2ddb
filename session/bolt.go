package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	tokensBucket = []byte("session_tokens")
	claimsBucket = []byte("session_claims")
)

// BoltStore keeps token sets in a bbolt database: one sub-bucket per member
// under a shared root bucket.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore prepares the buckets on db.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(tokensBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(claimsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBoltUnavailable, err)
	}
	return &BoltStore{db: db}, nil
}

// OpenBoltStore opens the database at path and returns a store over it.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	store, err := NewBoltStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Tokens returns the member's stored tokens.
func (s *BoltStore) Tokens(_ context.Context, memberID string) (map[string]Token, error) {
	tokens := make(map[string]Token)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := memberBucket(tx, memberID)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			tok, err := Decode(v)
			if err != nil {
				return nil
			}
			tokens[string(k)] = tok
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBoltUnavailable, err)
	}
	return tokens, nil
}

// Put stores token under hash inside one write transaction.
func (s *BoltStore) Put(_ context.Context, memberID, hash string, token Token, prune bool, now time.Time) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(tokensBucket)
		b, err := root.CreateBucketIfNotExists([]byte(memberID))
		if err != nil {
			return err
		}
		if prune {
			if err := pruneBucket(b, now); err != nil {
				return err
			}
		}
		return b.Put([]byte(hash), Encode(token))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBoltUnavailable, err)
	}
	return nil
}

// Prune removes expired entries, and the member bucket once it is empty.
func (s *BoltStore) Prune(_ context.Context, memberID string, now time.Time) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := memberBucket(tx, memberID)
		if b == nil {
			return nil
		}
		if err := pruneBucket(b, now); err != nil {
			return err
		}
		if k, _ := b.Cursor().First(); k == nil {
			return tx.Bucket(tokensBucket).DeleteBucket([]byte(memberID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBoltUnavailable, err)
	}
	return nil
}

// Remove deletes one entry.
func (s *BoltStore) Remove(_ context.Context, memberID, hash string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := memberBucket(tx, memberID)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(hash))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBoltUnavailable, err)
	}
	return nil
}

// RemoveAll deletes the member's bucket.
func (s *BoltStore) RemoveAll(_ context.Context, memberID string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(tokensBucket)
		if root.Bucket([]byte(memberID)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(memberID))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBoltUnavailable, err)
	}
	return nil
}

// ClaimOnce records key with an expiry of now+ttl. A stale claim past its
// expiry can be claimed again.
func (s *BoltStore) ClaimOnce(_ context.Context, key string, ttl time.Duration, now time.Time) (bool, error) {
	claimed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(claimsBucket)
		if v := b.Get([]byte(key)); len(v) == 8 {
			if int64(binary.BigEndian.Uint64(v)) > now.UnixNano() {
				return nil
			}
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(now.Add(ttl).UnixNano()))
		claimed = true
		return b.Put([]byte(key), buf[:])
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBoltUnavailable, err)
	}
	return claimed, nil
}

func memberBucket(tx *bbolt.Tx, memberID string) *bbolt.Bucket {
	return tx.Bucket(tokensBucket).Bucket([]byte(memberID))
}

func pruneBucket(b *bbolt.Bucket, now time.Time) error {
	var stale [][]byte
	err := b.ForEach(func(k, v []byte) error {
		tok, err := Decode(v)
		if err != nil || !tok.Valid(now) {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
