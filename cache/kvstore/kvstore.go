// Package kvstore implements a persistent key-value cache for immutable
// contract state.
package kvstore

import (
	"fmt"
	stdLog "log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/akrylysov/pogreb"
	"github.com/fxamacker/cbor/v2"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/metrics"
)

// How long OpenKVStore waits for pogreb before continuing without a cache.
const initTimeout = 30 * time.Second

// A key in the KVStore.
type CacheKey []byte

// GenerateCacheKey builds a key from a namespace and its parameters.
func GenerateCacheKey(namespace string, params ...interface{}) CacheKey {
	raw, err := cbor.Marshal([]interface{}{namespace, params})
	if err != nil {
		// Keys are built from plain strings and integers.
		panic(fmt.Sprintf("kvstore: unencodable cache key: %v", err))
	}
	return CacheKey(raw)
}

// A key-value store. Additional method-like functions that give a typed interface
// to the store (i.e. with typed values/keys instead of []byte) are provided below,
// taking KVStore as the first argument so they can use generics.
type KVStore interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Close() error
}

type pogrebKVStore struct {
	db *pogreb.DB

	path    string
	logger  *log.Logger
	metrics *metrics.CacheMetrics // if nil, no metrics are emitted

	// Set once the store is open. The store is opened in a background goroutine.
	initialized atomic.Bool
}

var _ KVStore = (*pogrebKVStore)(nil)

// Get implements KVStore.
// NOTE: Cache hit/miss metrics are not captured if you call this method directly.
// Consider using GetFromCacheOrCall instead.
func (s *pogrebKVStore) Get(key []byte) ([]byte, error) {
	if !s.initialized.Load() {
		return nil, fmt.Errorf("kvstore: not initialized yet")
	}
	return s.db.Get(key)
}

// Has implements KVStore.
func (s *pogrebKVStore) Has(key []byte) (bool, error) {
	if !s.initialized.Load() {
		return false, nil
	}
	return s.db.Has(key)
}

// Put implements KVStore.
func (s *pogrebKVStore) Put(key []byte, value []byte) error {
	if !s.initialized.Load() {
		s.logger.Debug("skipping write to uninitialized KVStore", "key", CacheKey(key).Pretty())
		return nil
	}
	return s.db.Put(key, value)
}

// Close implements KVStore.
func (s *pogrebKVStore) Close() error {
	if !s.initialized.Load() {
		// If pogreb is in the middle of recovery in the background, it will
		// die and have to start over next time.
		s.logger.Warn("skipping closing uninitialized KVStore")
		return nil
	}
	s.logger.Info("closing KVStore", "path", s.path)
	return s.db.Close()
}

// Pogreb backs up its indices into <oldname>.bac on every unclean restart;
// drop the doubly backed-up ones so filenames cannot grow without bound.
func (s *pogrebKVStore) pruneBackups() {
	matches, err := filepath.Glob(filepath.Join(s.path, "*.bac.bac"))
	if err != nil {
		s.logger.Warn("failed to glob pogreb backup files", "err", err)
		return
	}
	for _, f := range matches {
		if err := os.Remove(f); err != nil {
			s.logger.Warn("failed to delete pogreb backup file", "file", f, "err", err)
		}
	}
}

func (s *pogrebKVStore) init() error {
	s.pruneBackups()

	s.logger.Info("(re)opening KVStore", "path", s.path)
	db, err := pogreb.Open(s.path, &pogreb.Options{BackgroundSyncInterval: -1})
	if err != nil {
		s.logger.Error("failed to initialize pogreb store", "err", err)
		return err
	}

	s.db = db
	s.initialized.Store(true)
	s.logger.Info("KVStore opened", "entries", db.Count())
	return nil
}

// SetPogrebLogger routes pogreb's internal logging into logger.
func SetPogrebLogger(logger *log.Logger) {
	pogreb.SetLogger(stdLog.New(logger.WithModule("pogreb").Writer(log.LevelInfo), "", 0))
}

// OpenKVStore initializes a new KVStore backed by a database at `path`, or opens an existing one.
// `metrics` can be `nil`, in which case no metrics are emitted during operation.
func OpenKVStore(logger *log.Logger, path string, metrics *metrics.CacheMetrics) (KVStore, error) {
	store := &pogrebKVStore{
		logger:  logger.WithModule("kvstore"),
		path:    path,
		metrics: metrics,
	}

	// A reindex after a crash can take very long. Continue without a cache
	// while it runs; the cache is used once it is done.
	initErrCh := make(chan error, 1)
	go func() {
		initErrCh <- store.init()
	}()

	select {
	case err := <-initErrCh:
		if err != nil {
			return nil, err
		}
		return store, nil
	case <-time.After(initTimeout):
		store.logger.Warn("KVStore initialization timed out, continuing without cache while the database is reindexing in the background")
		return store, nil
	}
}

// Pretty returns a human-readable version of the cache key.
// Intended only for debugging. Not guaranteed to be a stable representation.
func (cacheKey CacheKey) Pretty() string {
	var pretty string
	var parsed interface{}
	if err := cbor.Unmarshal(cacheKey, &parsed); err == nil {
		pretty = fmt.Sprintf("%+v", parsed)
	} else {
		pretty = fmt.Sprintf("%x", cacheKey)
	}
	if len(pretty) > 100 {
		pretty = pretty[:95] + "[...]"
	}
	return pretty
}

var errNoSuchKey = fmt.Errorf("no such key")

func increaseReadCounter(cache KVStore, status metrics.CacheReadStatus) {
	if metricsCache, ok := cache.(*pogrebKVStore); ok && metricsCache.metrics != nil {
		metricsCache.metrics.LocalCacheReads(status).Inc()
	}
}

// fetchTypedValue fetches the value of `key` from the cache, interpreted as a `Value`.
func fetchTypedValue[Value any](cache KVStore, key CacheKey, value *Value) error {
	isCached, err := cache.Has(key)
	if err != nil {
		increaseReadCounter(cache, metrics.CacheReadStatusError)
		return err
	}
	if !isCached {
		increaseReadCounter(cache, metrics.CacheReadStatusMiss)
		return errNoSuchKey
	}
	raw, err := cache.Get(key)
	if err != nil {
		increaseReadCounter(cache, metrics.CacheReadStatusError)
		return fmt.Errorf("failed to fetch key %s from cache: %w", key.Pretty(), err)
	}
	if err = cbor.Unmarshal(raw, value); err != nil {
		increaseReadCounter(cache, metrics.CacheReadStatusBadValue)
		return fmt.Errorf("failed to unmarshal the value for key %s from cache into %T: %w; raw value was %x", key.Pretty(), value, err, raw)
	}
	increaseReadCounter(cache, metrics.CacheReadStatusHit)
	return nil
}

// GetFromCacheOrCall fetches the value of `key` from the cache if it exists,
// interpreted as a `Value`. Otherwise it calls `valueFunc` and caches the
// result when `cacheable` approves it. A nil cache always calls `valueFunc`.
func GetFromCacheOrCall[Value any](cache KVStore, key CacheKey, valueFunc func() (*Value, error), cacheable func(*Value) bool) (*Value, error) {
	if cache == nil {
		return valueFunc()
	}

	var cached Value
	switch err := fetchTypedValue(cache, key, &cached); err {
	case nil:
		return &cached, nil
	case errNoSuchKey: // Regular cache miss; continue below.
	default:
		if loggingCache, ok := cache.(*pogrebKVStore); ok {
			loggingCache.logger.Warn("error fetching from cache", "key", key.Pretty(), "err", err)
		}
	}

	computed, err := valueFunc()
	if err != nil {
		return nil, err
	}
	if !cacheable(computed) {
		return computed, nil
	}
	raw, err := cbor.Marshal(computed)
	if err == nil {
		err = cache.Put(key, raw)
	}
	if err != nil {
		// The value itself is fine; only caching it failed.
		if loggingCache, ok := cache.(*pogrebKVStore); ok {
			loggingCache.logger.Warn("error storing value in cache", "key", key.Pretty(), "err", err)
		}
	}
	return computed, nil
}

// Contains reports whether key is cached. Errors count as absence.
func Contains(cache KVStore, key CacheKey) bool {
	if cache == nil {
		return false
	}
	ok, err := cache.Has(key)
	return err == nil && ok
}
