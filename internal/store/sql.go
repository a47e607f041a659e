package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name           string
	insertReceipt  string
	selectReceipts string
	selectInbound  string
	insertInbound  string // must not fail on a duplicate message_id
	markProcessed  string
}

var sqliteDialect = dialect{
	name:           "sqlite3",
	insertReceipt:  `INSERT INTO receipts (recipient, transport, status, time) VALUES (?, ?, ?, ?)`,
	selectReceipts: `SELECT recipient, transport, status, time FROM receipts ORDER BY id`,
	selectInbound:  `SELECT message_id FROM inbound_dedup WHERE message_id = ?`,
	insertInbound:  `INSERT OR IGNORE INTO inbound_dedup (message_id, participant_id, received_at) VALUES (?, ?, ?)`,
	markProcessed:  `UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`,
}

var postgresDialect = dialect{
	name:           "postgres",
	insertReceipt:  `INSERT INTO receipts (recipient, transport, status, time) VALUES ($1, $2, $3, $4)`,
	selectReceipts: `SELECT recipient, transport, status, time FROM receipts ORDER BY id`,
	selectInbound:  `SELECT message_id FROM inbound_dedup WHERE message_id = $1`,
	insertInbound:  `INSERT INTO inbound_dedup (message_id, participant_id, received_at) VALUES ($1, $2, $3) ON CONFLICT (message_id) DO NOTHING`,
	markProcessed:  `UPDATE inbound_dedup SET processed_at = $1 WHERE message_id = $2`,
}

// sqlStore implements Store over database/sql. SQLiteStore and PostgresStore embed it.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

// openSQL opens dsn with the dialect's driver, lets tune adjust the pool, pings and migrates.
func openSQL(d dialect, dsn, migrations string, tune func(*sql.DB)) (*sqlStore, error) {
	db, err := sql.Open(d.name, dsn)
	if err != nil {
		slog.Error("Failed to open database", "driver", d.name, "error", err)
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if tune != nil {
		tune(db)
	}
	if err := db.Ping(); err != nil {
		slog.Error("Database ping failed", "driver", d.name, "error", err)
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		slog.Error("Failed to run migrations", "driver", d.name, "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Database ready", "driver", d.name)
	return &sqlStore{db: db, dialect: d}, nil
}

func (s *sqlStore) AddReceipt(r models.Receipt) error {
	var transport interface{}
	if r.Transport != "" {
		transport = r.Transport
	}
	if _, err := s.db.Exec(s.dialect.insertReceipt, r.To, transport, r.Status, r.Time); err != nil {
		slog.Error("Store AddReceipt failed", "driver", s.dialect.name, "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug("Store AddReceipt succeeded", "driver", s.dialect.name, "to", r.To, "status", r.Status)
	return nil
}

func (s *sqlStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(s.dialect.selectReceipts)
	if err != nil {
		slog.Error("Store GetReceipts query failed", "driver", s.dialect.name, "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		var transport sql.NullString
		if err := rows.Scan(&r.To, &transport, &r.Status, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		r.Transport = transport.String
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

func (s *sqlStore) IsDuplicate(messageID string) (bool, error) {
	var id string
	err := s.db.QueryRow(s.dialect.selectInbound, messageID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

func (s *sqlStore) RecordInbound(messageID, participantID string) (bool, error) {
	result, err := s.db.Exec(s.dialect.insertInbound, messageID, participantID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *sqlStore) MarkProcessed(messageID string) error {
	if _, err := s.db.Exec(s.dialect.markProcessed, time.Now().UTC(), messageID); err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *sqlStore) Close() error {
	return s.db.Close()
}
