package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestcharge/config"
)

func sampleRecord(at time.Time, id string) AuthorizationRecord {
	return AuthorizationRecord{
		Time:          at,
		IntentID:      id,
		ChargePointID: "CP01",
		ConnectorID:   1,
		TenantID:      "t1",
		Amount:        5000,
		Currency:      "usd",
		Status:        "requires_capture",
	}
}

func TestCSVLedgerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	ledger, err := NewCSVLedger(dir)
	require.NoError(t, err)

	at := time.Date(2025, 8, 1, 14, 30, 5, 0, time.UTC)
	require.NoError(t, ledger.Record(context.Background(), sampleRecord(at, "pi_1")))
	require.NoError(t, ledger.Record(context.Background(), sampleRecord(at.Add(time.Minute), "pi_2")))

	f, err := os.Open(filepath.Join(dir, "authorizations-2025-08-01.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeaders, rows[0])
	assert.Equal(t, []string{"2025-08-01", "14:30:05", "pi_1", "CP01", "1", "t1", "50.00", "USD", "requires_capture"}, rows[1])
	assert.Equal(t, "pi_2", rows[2][2])
}

type execCall struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls []execCall
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return nil, nil
}

func TestPostgresLedger(t *testing.T) {
	db := &fakeExecer{}
	ledger := NewPostgresLedger(db)

	require.NoError(t, ledger.EnsureSchema(context.Background()))
	at := time.Date(2025, 8, 1, 14, 30, 5, 0, time.FixedZone("CEST", 2*3600))
	require.NoError(t, ledger.Record(context.Background(), sampleRecord(at, "pi_1")))

	require.Len(t, db.calls, 2)
	assert.Contains(t, db.calls[0].query, "CREATE TABLE IF NOT EXISTS guest_authorizations")
	assert.True(t, strings.Contains(db.calls[1].query, "ON CONFLICT (payment_intent)"))
	assert.Equal(t, []any{"pi_1", "CP01", 1, "t1", int64(5000), "usd", "requires_capture", at.UTC()}, db.calls[1].args)
	assert.NoError(t, ledger.Close())
}

func TestOpenLedger(t *testing.T) {
	l, err := OpenLedger(config.LedgerConfig{Driver: config.LedgerDriverNone})
	require.NoError(t, err)
	assert.IsType(t, NopLedger{}, l)

	l, err = OpenLedger(config.LedgerConfig{Driver: config.LedgerDriverCSV, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &CSVLedger{}, l)

	_, err = OpenLedger(config.LedgerConfig{Driver: config.LedgerDriverPostgres})
	assert.Error(t, err)

	_, err = OpenLedger(config.LedgerConfig{Driver: "mongo"})
	assert.Error(t, err)
}
