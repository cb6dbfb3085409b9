// Package directory stores which wallets belong to which multisigs.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/metrics"
	"github.com/msigvault/msig/storage"
)

const moduleName = "directory_store"

// ErrInvalid is returned for records the store refuses to write.
var ErrInvalid = errors.New("invalid directory record")

// Multisig is one row of the directory.
type Multisig struct {
	ID      string
	Members []string
}

// Store is a wrapper around a storage.TargetStorage with knowledge of the
// directory schema.
type Store struct {
	db      storage.TargetStorage
	logger  *log.Logger
	metrics metrics.DatabaseMetrics
}

func NewStore(db storage.TargetStorage, logger *log.Logger) *Store {
	return &Store{
		db:      db,
		logger:  logger.WithModule(moduleName),
		metrics: metrics.NewDefaultDatabaseMetrics(moduleName),
	}
}

// Lookup returns the multisigs whose member list contains wallet.
func (s *Store) Lookup(ctx context.Context, wallet string) (ms []Multisig, err error) {
	timer := s.metrics.DatabaseLatencies("lookup")
	defer func() { s.metrics.Observe("lookup", timer, err) }()

	rows, err := s.db.Query(ctx, lookupQuery, wallet)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", wallet, err)
	}
	defer rows.Close()

	ms = []Multisig{}
	for rows.Next() {
		var m Multisig
		if err = rows.Scan(&m.ID, &m.Members); err != nil {
			return nil, fmt.Errorf("scan multisig: %w", err)
		}
		ms = append(ms, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ms, nil
}

// Record inserts multisig id with its members, replacing the members of an
// existing row.
func (s *Store) Record(ctx context.Context, id string, members []string) (err error) {
	if id == "" {
		return fmt.Errorf("%w: empty multisig id", ErrInvalid)
	}
	if members == nil {
		members = []string{}
	}
	timer := s.metrics.DatabaseLatencies("record")
	defer func() { s.metrics.Observe("record", timer, err) }()

	if _, err = s.db.Exec(ctx, upsertQuery, id, members); err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	s.logger.Info("multisig recorded", "multisig", id, "members", len(members))
	return nil
}
