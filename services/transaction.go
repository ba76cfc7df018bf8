package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"guestcharge/config"
	"guestcharge/utils"
)

// AuthorizationRecord is one placed card hold.
type AuthorizationRecord struct {
	Time          time.Time
	IntentID      string
	ChargePointID string
	ConnectorID   int
	TenantID      string
	Amount        int64
	Currency      string
	Status        string
}

// Ledger keeps a record of placed authorizations for reconciliation.
type Ledger interface {
	Record(ctx context.Context, rec AuthorizationRecord) error
	Close() error
}

// OpenLedger builds the ledger selected by the configuration.
func OpenLedger(cfg config.LedgerConfig) (Ledger, error) {
	switch cfg.Driver {
	case config.LedgerDriverNone, "":
		return NopLedger{}, nil
	case config.LedgerDriverCSV:
		return NewCSVLedger(cfg.Dir)
	case config.LedgerDriverPostgres:
		db, err := NewPostgresDB(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("ledger: connect postgres: %w", err)
		}
		ledger := NewPostgresLedger(db)
		if err := ledger.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
		return ledger, nil
	default:
		return nil, fmt.Errorf("ledger: unsupported driver %q", cfg.Driver)
	}
}

// NopLedger discards records.
type NopLedger struct{}

func (NopLedger) Record(context.Context, AuthorizationRecord) error { return nil }
func (NopLedger) Close() error                                     { return nil }

// CSVLedger appends records to one CSV file per day.
type CSVLedger struct {
	dir string
	mu  sync.Mutex
}

// NewCSVLedger creates the directory when needed.
func NewCSVLedger(dir string) (*CSVLedger, error) {
	if strings.TrimSpace(dir) == "" {
		dir = config.DefaultLedgerDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	return &CSVLedger{dir: dir}, nil
}

var csvHeaders = []string{
	"Date", "Time", "Payment Intent", "Charge Point ID", "Connector ID",
	"Tenant ID", "Amount", "Currency", "Status",
}

// Record appends rec to authorizations-<date>.csv, writing headers for a new file.
func (l *CSVLedger) Record(_ context.Context, rec AuthorizationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	filename := filepath.Join(l.dir, "authorizations-"+rec.Time.Format("2006-01-02")+".csv")

	// Check if file exists to determine if we need headers
	fileExists := true
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		fileExists = false
	}

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			utils.Error("ledger", "Error closing ledger file", "error", err)
		}
	}()

	writer := csv.NewWriter(file)

	if !fileExists {
		if err := writer.Write(csvHeaders); err != nil {
			return err
		}
	}

	record := []string{
		rec.Time.Format("2006-01-02"),
		rec.Time.Format("15:04:05"),
		rec.IntentID,
		rec.ChargePointID,
		strconv.Itoa(rec.ConnectorID),
		rec.TenantID,
		fmt.Sprintf("%.2f", float64(rec.Amount)/100),
		strings.ToUpper(rec.Currency),
		rec.Status,
	}
	if err := writer.Write(record); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func (l *CSVLedger) Close() error { return nil }

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 2
	defaultConnLifetime = time.Hour
	defaultPingTimeout  = 5 * time.Second
)

// NewPostgresDB creates a pgx/stdlib backed *sql.DB pool and validates the connection.
func NewPostgresDB(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: empty DSN")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// SQLExecer is the subset of *sql.DB used by the ledger.
type SQLExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresLedger stores records in the guest_authorizations table.
type PostgresLedger struct {
	db SQLExecer
}

func NewPostgresLedger(db SQLExecer) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const createAuthorizationsTable = `
CREATE TABLE IF NOT EXISTS guest_authorizations (
	payment_intent  TEXT PRIMARY KEY,
	charge_point_id TEXT NOT NULL,
	connector_id    INTEGER NOT NULL,
	tenant_id       TEXT NOT NULL DEFAULT '',
	amount          BIGINT NOT NULL,
	currency        TEXT NOT NULL,
	status          TEXT NOT NULL,
	authorized_at   TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the table when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createAuthorizationsTable); err != nil {
		return fmt.Errorf("ledger: create table: %w", err)
	}
	return nil
}

// Record inserts rec. A repeated intent id updates the status.
func (l *PostgresLedger) Record(ctx context.Context, rec AuthorizationRecord) error {
	query := `
		INSERT INTO guest_authorizations
			(payment_intent, charge_point_id, connector_id, tenant_id, amount, currency, status, authorized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payment_intent) DO UPDATE SET status = EXCLUDED.status`
	_, err := l.db.ExecContext(ctx, query,
		rec.IntentID, rec.ChargePointID, rec.ConnectorID, rec.TenantID,
		rec.Amount, rec.Currency, rec.Status, rec.Time.UTC())
	if err != nil {
		return fmt.Errorf("ledger: insert authorization: %w", err)
	}
	return nil
}

// Close closes the pool when the ledger owns one.
func (l *PostgresLedger) Close() error {
	if c, ok := l.db.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
