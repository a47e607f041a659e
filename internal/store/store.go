// Package store provides storage backends for WarfarinBot.
//
// Two concerns live here. SessionStore holds the ephemeral per-user dialogue sessions (in memory
// by default, optionally Redis). Store records delivery receipts and inbound message ids used to
// drop webhook redeliveries, with in-memory, SQLite and PostgreSQL backends.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// Store persists receipts and inbound deduplication records.
type Store interface {
	DedupRepo
	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string // database connection string (sqlite path or postgres DSN)
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// ApplyOptions folds opts into an Opts value.
func ApplyOptions(opts ...Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// New opens the receipt/dedup store selected by the DSN. An empty DSN yields an in-memory store.
func New(opts ...Option) (Store, error) {
	cfg := ApplyOptions(opts...)
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// InMemoryStore is a simple in-memory store for receipts and dedup records.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts []models.Receipt
	inbound  map[string]DedupRecord
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{inbound: make(map[string]DedupRecord)}
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inbound[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inbound[messageID]; ok {
		return false, nil
	}
	s.inbound[messageID] = DedupRecord{MessageID: messageID, ParticipantID: participantID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.inbound[messageID]
	if !ok {
		return nil
	}
	now := time.Now()
	rec.ProcessedAt = &now
	s.inbound[messageID] = rec
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
