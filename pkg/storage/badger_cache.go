package storage

import (
	"errors"
	"fmt"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/link-crawler/pkg/log"
	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

const linkKeyPrefix = "link:" // Prefix for link URL keys in DB

// BadgerCache is a LinkCache backed by BadgerDB
type BadgerCache struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Len
}

// NewBadgerCache opens a BadgerDB cache. An empty dir keeps the database in memory.
func NewBadgerCache(dir string, logger *logrus.Entry) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open link cache: %w", utils.ErrDatabase, err)
	}
	logger.WithField("in_memory", dir == "").Debug("Link cache opened")
	return &BadgerCache{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Concurrent transactions on the same key return badger.ErrConflict; these
// resolve quickly, so a tight retry loop is sufficient.
func (c *BadgerCache) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		c.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func (c *BadgerCache) Seen(key string) (bool, error) {
	dbKey := []byte(linkKeyPrefix + key)
	var existed bool

	err := c.dbUpdate(func(txn *badger.Txn) error {
		existed = false
		_, err := txn.Get(dbKey)
		if err == nil {
			existed = true
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(dbKey, []byte{1})
	})
	if err != nil {
		return false, fmt.Errorf("%w: link cache update for '%s': %w", utils.ErrDatabase, key, err)
	}
	if !existed {
		c.keyCount.Add(1)
	}
	return existed, nil
}

func (c *BadgerCache) Clear() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("%w: clearing link cache: %w", utils.ErrDatabase, err)
	}
	c.keyCount.Store(0)
	c.log.Debug("Link cache cleared")
	return nil
}

func (c *BadgerCache) Len() int {
	return int(c.keyCount.Load())
}

func (c *BadgerCache) Close() error {
	c.log.Debug("Closing link cache")
	return c.db.Close()
}
