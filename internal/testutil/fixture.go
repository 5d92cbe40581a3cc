// Package testutil provides the SQLite-backed fixtures the other packages'
// tests build on: a migrated in-memory store plus small seed helpers for
// the handful of reference tables a transfer depends on.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/deachawatss/BME-Putaway/internal/store"
)

// NewStore opens a fresh, migrated, in-memory SQLite store for one test.
// Each call gets its own database: SQLite's ":memory:" DSN is per-connection,
// and *sql.DB here is pinned to a single connection by SetMaxOpenConns(1).
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.DB().Close() })
	return st
}

// SeedBin registers a bin in the bin master so precondition checks pass.
func SeedBin(t *testing.T, st *store.Store, location, bin string) {
	t.Helper()
	_, err := st.DB().ExecContext(context.Background(),
		`INSERT INTO bin_master (location, bin_no) VALUES (?, ?)`, location, bin)
	require.NoError(t, err)
}

// SeedTransferrableItem marks item as serial-lot-tracked and multi-bin
// enabled, the combination precondition.Check requires.
func SeedTransferrableItem(t *testing.T, st *store.Store, item string) {
	t.Helper()
	_, err := st.DB().ExecContext(context.Background(),
		`INSERT INTO item_master (item_key, serial_lot_tracked, multi_bin_enabled) VALUES (?, 1, 1)`, item)
	require.NoError(t, err)
}

// LotFixture is the set of fields SeedLotRow needs to insert one lot row.
type LotFixture struct {
	ItemKey        string
	Location       string
	LotNo          string
	BinNo          string
	LotStatus      string
	OnHand         decimal.Decimal
	CommittedSales decimal.Decimal
	VendorKey      string
	VendorLotNo    string
	DateReceived   time.Time
	DateExpiry     time.Time
}

// SeedLotRow inserts a lot row directly, bypassing the engine, so tests can
// set up a source or destination state without going through a transfer.
func SeedLotRow(t *testing.T, st *store.Store, f LotFixture) {
	t.Helper()
	if f.LotStatus == "" {
		f.LotStatus = "A"
	}
	_, err := st.DB().ExecContext(context.Background(), `
		INSERT INTO lot_rows (item_key, location, lot_no, bin_no, vendor_key, vendor_lot_no,
			date_received, date_expiry, lot_status, on_hand, committed_sales, reserved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		f.ItemKey, f.Location, f.LotNo, f.BinNo, f.VendorKey, f.VendorLotNo,
		f.DateReceived, f.DateExpiry, f.LotStatus, f.OnHand, f.CommittedSales)
	require.NoError(t, err)
}

// SeedRemark inserts an active remark catalog entry.
func SeedRemark(t *testing.T, st *store.Store, name string) {
	t.Helper()
	_, err := st.DB().ExecContext(context.Background(),
		`INSERT INTO remark_options (name, active) VALUES (?, 1)`, name)
	require.NoError(t, err)
}

// SeedPendingAuditRow inserts a pending (processed='N') outbound audit row,
// the kind a committed-transfer subset selection references by lot_tran_no.
func SeedPendingAuditRow(t *testing.T, st *store.Store, lot, itemKey, location, bin string, txnType int, qty decimal.Decimal) int64 {
	t.Helper()
	res, err := st.DB().ExecContext(context.Background(), `
		INSERT INTO audit_rows (lot_no, item_key, location, bin_no, transaction_type, qty_issued, processed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'N', ?)`,
		lot, itemKey, location, bin, txnType, qty, time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}
